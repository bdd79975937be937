package bitmap

import (
	"bytes"
	"testing"
)

func TestBinaryOperators(t *testing.T) {
	tcs := []struct {
		name string
		op   func(a, b Dense) Dense
		a, b string
		eout string
	}{
		{"AND truncates to shorter", And, "1101", "0111 0110", "0101"},
		{"AND across bytes", And, "1100 1100 11", "1010 1010 10", "1000 1000 10"},
		{"XOR pads shorter", XOr, "11", "1010 1", "0110 1"},
		{"XOR equal inputs", XOr, "1001 1101 011", "1001 1101 011", "0000 0000 000"},
		{"XNOR agreeing bases", XNor, "1100 1", "1010 1", "1001 1"},
		{"XNOR pads with zeros", XNor, "1", "100", "111"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out := tc.op(mustDense(t, tc.a), mustDense(t, tc.b))
			want := mustDense(t, tc.eout)
			if out.Size() != want.Size() {
				t.Fatalf("got bitmap of len %d, want %d", out.Size(), want.Size())
			}
			if !bytes.Equal(out.Data(), want.Data()) {
				t.Errorf("got %s, want %s", out, want)
			}
		})
	}
}

func TestSliceBounds(t *testing.T) {
	d := mustDense(t, "1010 1010")
	tcs := []struct {
		name       string
		start, end int
	}{
		{"negative start", -1, 3},
		{"inverted", 5, 2},
		{"past end", 4, 9},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Slice(d, tc.start, tc.end); err == nil {
				t.Errorf("Slice(%d, %d) succeeded, want error", tc.start, tc.end)
			}
		})
	}
}

func TestSlice(t *testing.T) {
	bits := mustDense(t, "0110 1001 1100 0011 1")
	tcs := []struct {
		name       string
		start, end int
		eout       string
	}{
		{"whole", 0, 17, "0110 1001 1100 0011 1"},
		{"empty", 6, 6, ""},
		{"second byte", 8, 16, "1100 0011"},
		{"straddles bytes", 5, 11, "001 110"},
		{"tail", 15, 17, "11"},
	}

	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			out, err := Slice(bits, tc.start, tc.end)
			if err != nil {
				t.Fatalf("Slice(%d, %d) = %v, want nil error", tc.start, tc.end, err)
			}
			want := mustDense(t, tc.eout)
			if out.Size() != want.Size() || !bytes.Equal(out.Data(), want.Data()) {
				t.Errorf("Slice(%d, %d) == %s, want %s", tc.start, tc.end, out, want)
			}
		})
	}
}
