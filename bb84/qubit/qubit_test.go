package qubit

import (
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"testing"
)

const tol = 1e-12

func TestEncode(t *testing.T) {
	tcs := []struct {
		bit    int
		basis  Basis
		alpha  float64
		beta   float64
		symbol string
	}{
		{0, Z, 1, 0, "|0⟩"},
		{1, Z, 0, 1, "|1⟩"},
		{0, X, invSqrt2, invSqrt2, "|+⟩"},
		{1, X, invSqrt2, -invSqrt2, "|−⟩"},
	}

	for _, tc := range tcs {
		t.Run(tc.symbol, func(t *testing.T) {
			q := Encode(tc.bit, tc.basis)
			if math.Abs(q.Alpha.Real-tc.alpha) > tol || math.Abs(q.Beta.Real-tc.beta) > tol {
				t.Errorf("Encode(%d, %v) == (%v, %v), want (%v, %v)", tc.bit, tc.basis, q.Alpha, q.Beta, tc.alpha, tc.beta)
			}
			if q.Alpha.Imag != 0 || q.Beta.Imag != 0 {
				t.Errorf("Encode(%d, %v) produced a complex phase: %+v", tc.bit, tc.basis, q)
			}
			if q.Symbol != tc.symbol {
				t.Errorf("symbol == %q, want %q", q.Symbol, tc.symbol)
			}
			if q.Basis != tc.basis {
				t.Errorf("basis == %v, want %v", q.Basis, tc.basis)
			}
			if math.Abs(q.Prob0+q.Prob1-1) > tol {
				t.Errorf("prob0 + prob1 == %v, want 1", q.Prob0+q.Prob1)
			}
		})
	}
}

func TestSameBasisRoundTrip(t *testing.T) {
	for _, basis := range []Basis{Z, X} {
		for bit := 0; bit <= 1; bit++ {
			t.Run(fmt.Sprintf("%v/%d", basis, bit), func(t *testing.T) {
				// A nil source panics if Measure ever draws from it.
				if got := Measure(Encode(bit, basis), basis, nil); got != bit {
					t.Errorf("Measure(Encode(%d, %v), %v) == %d", bit, basis, basis, got)
				}
			})
		}
	}
}

func TestCrossBasisStatistics(t *testing.T) {
	r := rand.New(rand.NewSource(7))
	const trials = 20000
	for _, prep := range []Basis{Z, X} {
		meas := !prep
		ones := 0
		for i := 0; i < trials; i++ {
			ones += Measure(Encode(i%2, prep), meas, r)
		}
		frac := float64(ones) / trials
		if math.Abs(frac-0.5) > 0.02 {
			t.Errorf("prepared in %v, measured in %v: P(1) == %v, want ~0.5", prep, meas, frac)
		}
	}
}

func TestProbZero(t *testing.T) {
	tcs := []struct {
		q     Qubit
		basis Basis
		eout  float64
	}{
		{Encode(0, Z), Z, 1},
		{Encode(1, Z), Z, 0},
		{Encode(0, Z), X, 0.5},
		{Encode(0, X), X, 1},
		{Encode(1, X), X, 0},
		{Encode(1, X), Z, 0.5},
	}
	for _, tc := range tcs {
		if got := ProbZero(tc.q, tc.basis); math.Abs(got-tc.eout) > tol {
			t.Errorf("ProbZero(%s, %v) == %v, want %v", tc.q.Symbol, tc.basis, got, tc.eout)
		}
	}
}

func TestBlochVector(t *testing.T) {
	tcs := []struct {
		name    string
		q       Qubit
		x, y, z float64
		theta   float64
	}{
		{"|0⟩", Encode(0, Z), 0, 0, 1, 0},
		{"|1⟩", Encode(1, Z), 0, 0, -1, math.Pi},
		{"|+⟩", Encode(0, X), 1, 0, 0, math.Pi / 2},
		{"|−⟩", Encode(1, X), -1, 0, 0, math.Pi / 2},
	}
	for _, tc := range tcs {
		t.Run(tc.name, func(t *testing.T) {
			b := BlochVector(tc.q.Alpha, tc.q.Beta)
			if math.Abs(b.X-tc.x) > tol || math.Abs(b.Y-tc.y) > tol || math.Abs(b.Z-tc.z) > tol {
				t.Errorf("BlochVector == (%v, %v, %v), want (%v, %v, %v)", b.X, b.Y, b.Z, tc.x, tc.y, tc.z)
			}
			if math.Abs(b.Theta-tc.theta) > tol {
				t.Errorf("theta == %v, want %v", b.Theta, tc.theta)
			}
		})
	}

	t.Run("normalizes", func(t *testing.T) {
		b := BlochVector(Amplitude{Real: 3}, Amplitude{Imag: 3})
		if math.Abs(b.Y-1) > tol || math.Abs(b.Phi-math.Pi/2) > tol {
			t.Errorf("BlochVector(3, 3i) == %+v, want y=1, phi=π/2", b)
		}
	})
	t.Run("zero state", func(t *testing.T) {
		if b := BlochVector(Amplitude{}, Amplitude{}); b != (Bloch{}) {
			t.Errorf("BlochVector(0, 0) == %+v, want origin", b)
		}
	})
}

func TestBasisJSON(t *testing.T) {
	out, err := json.Marshal([]Basis{Z, X})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(out) != "[true,false]" {
		t.Errorf("json.Marshal([Z, X]) == %s, want [true,false]", out)
	}
}
