// ABOUTME: VILLAS binary sample message ("webmsg") codec package
// ABOUTME: Encodes, decodes and demultiplexes fixed-layout sample frames
// Package webmsg implements the binary frame format used to exchange
// timestamped vectors of 32-bit floats with a VILLASnode over the
// "live" WebSocket sub-protocol.
//
// A frame is a 16-byte header followed by count little-endian IEEE-754
// floats. Two header generations exist: LayoutA carries a payload
// byte-order flag, LayoutB carries a source id in its place.
//
//	+--------+--------+--------+--------+
//	| flags  | rsvd/id|     count       |  flags: bit1 endian, bits2-3 kind, bits4-7 version
//	+--------+--------+--------+--------+
//	|             sequence              |
//	+--------+--------+--------+--------+
//	|         timestamp seconds         |
//	+--------+--------+--------+--------+
//	|       timestamp nanoseconds       |
//	+--------+--------+--------+--------+
//	|            values ...             |
//
// Example:
//
//	buf, err := webmsg.Encode(webmsg.NewSample(seq, time.Now(), 1.0, -2.5))
//	samples, err := webmsg.DecodeAll(msg) // samples decoded so far are kept on error
//
// All functions are stateless and safe for concurrent use on independent
// buffers.
package webmsg
