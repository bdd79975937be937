package bitmap

import "fmt"

// And returns the bitwise AND of two bitmaps. The result has the length of the
// shorter operand.
func And(a, b Dense) Dense {
	short := a
	if b.len < a.len {
		short = b
	}
	r := Dense{
		bits: make([]byte, BytesFor(short.len)),
		len:  short.len,
	}
	for i := range r.bits {
		r.bits[i] = a.bits[i] & b.bits[i]
	}
	r.clearTail()
	return r
}

// XOr returns the bitwise XOR of two bitmaps. The shorter operand is implicitly
// padded with zeros.
func XOr(a, b Dense) Dense {
	return zipLong(a, b, func(x, y byte) byte { return x ^ y })
}

// XNor returns the bitwise XNOR of two bitmaps. The shorter operand is
// implicitly padded with zeros.
func XNor(a, b Dense) Dense {
	return zipLong(a, b, func(x, y byte) byte { return ^(x ^ y) })
}

// Slice copies bits [start, end) of d into a new bitmap.
func Slice(d Dense, start, end int) (Dense, error) {
	if start < 0 {
		return Dense{}, fmt.Errorf("slicing bitmap with negative start: %d", start)
	}
	if end < start {
		return Dense{}, fmt.Errorf("slicing bitmap to negative length: %d", end-start)
	}
	if end > d.len {
		return Dense{}, fmt.Errorf("slicing bitmap of len %d up to %d", d.len, end)
	}
	r := NewDense(nil, end-start)
	for i := start; i < end; i++ {
		if d.Get(i) {
			r.Set(i-start, true)
		}
	}
	return r, nil
}

func zipLong(a, b Dense, op func(x, y byte) byte) Dense {
	long := a
	if b.len > a.len {
		long = b
	}
	r := Dense{
		bits: make([]byte, BytesFor(long.len)),
		len:  long.len,
	}
	for i := range r.bits {
		r.bits[i] = op(byteAt(a, i), byteAt(b, i))
	}
	r.clearTail()
	return r
}

func byteAt(d Dense, i int) byte {
	if i >= len(d.bits) {
		return 0
	}
	return d.bits[i]
}
