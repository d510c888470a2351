// ABOUTME: Host byte order detection and word swapping
// ABOUTME: Used by the webmsg codec to normalize payload byte order
// Package endian reports the byte order of the executing machine and
// reverses the byte order of 16- and 32-bit words.
//
// Example:
//
//	if endian.Host() != endian.Little {
//	    word = endian.Swap32(word)
//	}
package endian
