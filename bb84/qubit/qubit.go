// Package qubit models BB84 qubits as pairs of complex amplitudes, prepared in
// one of two conjugate bases and measured according to the Born rule.
//
// There is no noise model: measuring a qubit in the basis it was prepared in
// always yields the prepared bit, and disagreement between Alice and Bob can
// only come from basis mismatch or from an eavesdropper.
package qubit

import (
	"math"
	"math/cmplx"
	"math/rand"
)

// A Basis is one of the two BB84 measurement orientations. It serializes as a
// boolean, true for the computational (Z) basis.
type Basis bool

const (
	// Z is the computational basis, {|0⟩, |1⟩}.
	Z Basis = true
	// X is the Hadamard basis, {|+⟩, |−⟩}.
	X Basis = false
)

func (b Basis) String() string {
	if b == Z {
		return "Z"
	}
	return "X"
}

// Amplitude is a JSON friendly complex number.
type Amplitude struct {
	Real float64 `json:"real"`
	Imag float64 `json:"imag"`
}

func (a Amplitude) complex() complex128 {
	return complex(a.Real, a.Imag)
}

func fromComplex(c complex128) Amplitude {
	return Amplitude{Real: real(c), Imag: imag(c)}
}

// A Qubit is an immutable two-level state, alpha|0⟩ + beta|1⟩, together with
// the basis it was prepared in and some values derived from its amplitudes.
type Qubit struct {
	Alpha  Amplitude `json:"alpha"`
	Beta   Amplitude `json:"beta"`
	Basis  Basis     `json:"basis"`
	Prob0  float64   `json:"prob0"`
	Prob1  float64   `json:"prob1"`
	Symbol string    `json:"symbol"`
}

var invSqrt2 = 1 / math.Sqrt2

// Encode prepares bit in the given basis.
func Encode(bit int, basis Basis) Qubit {
	var alpha, beta complex128
	var symbol string
	switch {
	case basis == Z && bit == 0:
		alpha, beta, symbol = 1, 0, "|0⟩"
	case basis == Z:
		alpha, beta, symbol = 0, 1, "|1⟩"
	case bit == 0:
		alpha, beta, symbol = complex(invSqrt2, 0), complex(invSqrt2, 0), "|+⟩"
	default:
		alpha, beta, symbol = complex(invSqrt2, 0), complex(-invSqrt2, 0), "|−⟩"
	}
	return Qubit{
		Alpha:  fromComplex(alpha),
		Beta:   fromComplex(beta),
		Basis:  basis,
		Prob0:  sqAbs(alpha),
		Prob1:  sqAbs(beta),
		Symbol: symbol,
	}
}

// ProbZero returns the Born-rule probability that measuring q in basis yields
// a 0: |alpha|² for Z, or the squared projection onto |+⟩ for X.
func ProbZero(q Qubit, basis Basis) float64 {
	a, b := q.Alpha.complex(), q.Beta.complex()
	if basis == Z {
		return sqAbs(a)
	}
	return sqAbs((a + b) * complex(invSqrt2, 0))
}

// Measure measures q in basis. If basis matches the preparation basis the
// outcome is the prepared bit and r is not consulted. Otherwise a uniform
// sample u is drawn from r and the outcome is 1 iff u >= ProbZero(q, basis).
func Measure(q Qubit, basis Basis, r *rand.Rand) int {
	p0 := ProbZero(q, basis)
	if basis == q.Basis {
		if p0 >= 0.5 {
			return 0
		}
		return 1
	}
	if r.Float64() >= p0 {
		return 1
	}
	return 0
}

// Bit returns the bit q was prepared with.
func Bit(q Qubit) int {
	return Measure(q, q.Basis, nil)
}

// A Bloch is a point on (or inside) the Bloch sphere, in both cartesian and
// polar form.
type Bloch struct {
	X     float64 `json:"x"`
	Y     float64 `json:"y"`
	Z     float64 `json:"z"`
	Theta float64 `json:"theta"`
	Phi   float64 `json:"phi"`
}

// BlochVector maps the state alpha|0⟩ + beta|1⟩ onto the Bloch sphere. The
// amplitudes are normalized first; a zero state maps to the origin.
func BlochVector(alpha, beta Amplitude) Bloch {
	a, b := alpha.complex(), beta.complex()
	norm := math.Sqrt(sqAbs(a) + sqAbs(b))
	if norm == 0 {
		return Bloch{}
	}
	a /= complex(norm, 0)
	b /= complex(norm, 0)

	x := 2 * real(a*cmplx.Conj(b))
	y := 2 * imag(cmplx.Conj(a)*b)
	z := sqAbs(a) - sqAbs(b)
	return Bloch{
		X:     x,
		Y:     y,
		Z:     z,
		Theta: math.Acos(math.Max(-1, math.Min(1, z))),
		Phi:   math.Atan2(y, x),
	}
}

func sqAbs(c complex128) float64 {
	return real(c)*real(c) + imag(c)*imag(c)
}
