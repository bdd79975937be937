// Package bitmap provides utilities for operating on densely-packed arrays of
// booleans, along with conversions to and from the []int bit slices the
// simulator keeps in its serializable state.
package bitmap

import (
	"fmt"
	"math/bits"
	"strings"
)

const byteSize = 8

// Empty returns an empty, dense bit array.
func Empty() Dense {
	return Dense{}
}

// FromString converts a string of '1's and '0's to a Dense. Spaces are ignored.
func FromString(s string) (Dense, error) {
	d := Dense{}
	for _, c := range s {
		switch c {
		case '1':
			d.AppendBit(true)
		case '0':
			d.AppendBit(false)
		case ' ':
			continue
		default:
			return Dense{}, fmt.Errorf("invalid bitmap string rep: %s", s)
		}
	}
	return d, nil
}

// FromBits converts a slice of 0/1 values into a Dense. Any non-zero value is
// treated as a set bit.
func FromBits(b []int) Dense {
	d := NewDense(nil, len(b))
	for i, v := range b {
		if v != 0 {
			d.Set(i, true)
		}
	}
	return d
}

// FromBools converts a slice of booleans into a Dense.
func FromBools(b []bool) Dense {
	d := NewDense(nil, len(b))
	for i, v := range b {
		if v {
			d.Set(i, true)
		}
	}
	return d
}

// Parity returns the overall parity of d, with true corresponding to 1 and
// false to 0.
func Parity(d Dense) bool {
	var sum byte
	for _, b := range d.bits {
		sum ^= b
	}
	return bits.OnesCount8(sum)%2 == 1
}

// CountOnes returns the total number of bits set in d.
func CountOnes(d Dense) int {
	var sum int
	for _, b := range d.bits {
		sum += bits.OnesCount8(b)
	}
	return sum
}

// Equal returns true iff a and b have the same size and contain the same bits.
func Equal(a, b Dense) bool {
	return a.len == b.len && CountOnes(XOr(a, b)) == 0
}

// BytesFor returns the number of bytes necessary to hold the provided number of
// bits.
func BytesFor(bits int) int {
	return (bits + byteSize - 1) / byteSize
}

// Hex renders d as upper-case hexadecimal, reading bits most significant
// first. Sizes that aren't a multiple of four are left-padded with zeros. An
// empty Dense renders as "0".
func Hex(d Dense) string {
	if d.len == 0 {
		return "0"
	}
	const digits = "0123456789ABCDEF"
	pad := (4 - d.len%4) % 4
	var sb strings.Builder
	sb.Grow((d.len + pad) / 4)
	nibble, k := 0, pad
	for i := 0; i < d.len; i++ {
		nibble <<= 1
		if d.Get(i) {
			nibble |= 1
		}
		k++
		if k == 4 {
			sb.WriteByte(digits[nibble])
			nibble, k = 0, 0
		}
	}
	return sb.String()
}
