// ABOUTME: Host byte order detection and 16/32-bit swaps
// ABOUTME: Detects host order once at init using an unsafe pointer cast
package endian

import (
	"encoding/binary"
	"fmt"
	"unsafe"
)

// ByteOrder identifies little- or big-endian word layout
type ByteOrder uint8

const (
	Little ByteOrder = 0
	Big    ByteOrder = 1
)

var host ByteOrder

func init() {
	switch v := *(*uint16)(unsafe.Pointer(&([]byte{0x12, 0x34}[0]))); v {
	case 0x1234:
		host = Big
	case 0x3412:
		host = Little
	default:
		panic(fmt.Sprintf("endian: failed to determine host byte order: %x", v))
	}
}

// Host returns the byte order of the executing machine
func Host() ByteOrder {
	return host
}

// String returns "little" or "big"
func (o ByteOrder) String() string {
	switch o {
	case Little:
		return "little"
	case Big:
		return "big"
	default:
		return fmt.Sprintf("ByteOrder(%d)", uint8(o))
	}
}

// Binary returns the encoding/binary implementation for o
func (o ByteOrder) Binary() binary.ByteOrder {
	if o == Big {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Valid reports whether o is Little or Big
func (o ByteOrder) Valid() bool {
	return o == Little || o == Big
}

// Swap16 reverses the byte order of a 16-bit word
func Swap16(v uint16) uint16 {
	return v<<8 | v>>8
}

// Swap32 reverses the byte order of a 32-bit word
func Swap32(v uint32) uint32 {
	return v<<24 |
		(v&0x0000ff00)<<8 |
		(v&0x00ff0000)>>8 |
		v>>24
}
