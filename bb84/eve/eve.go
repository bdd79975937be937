// Package eve simulates an intercept-resend eavesdropper sitting on the
// quantum channel between Alice and Bob.
package eve

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"

	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

// AttackInterceptResend is the only attack the simulator models.
const AttackInterceptResend = "intercept-resend"

// ErrOutOfRange is returned when an attack targets a position outside the
// channel.
var ErrOutOfRange = errors.New("attack index out of range")

// A Policy decides which basis Eve measures each intercepted qubit in.
type Policy struct {
	// Random makes Eve flip a fair coin per qubit. Basis is ignored if set.
	Random bool
	Basis  qubit.Basis
}

// Fixed returns a Policy which always measures in b.
func Fixed(b qubit.Basis) Policy {
	return Policy{Basis: b}
}

// RandomBasis returns a Policy which picks Z or X independently per qubit.
func RandomBasis() Policy {
	return Policy{Random: true}
}

func (p Policy) String() string {
	if p.Random {
		return "random"
	}
	return p.Basis.String()
}

func (p Policy) choose(r *rand.Rand) qubit.Basis {
	if p.Random {
		return qubit.Basis(r.Intn(2) == 0)
	}
	return p.Basis
}

// A Record describes what Eve did to a single channel position.
type Record struct {
	AttackType     string      `json:"attackType"`
	Basis          qubit.Basis `json:"basis"`
	MeasuredBit    int         `json:"measuredBit"`
	ResultingQubit qubit.Qubit `json:"resultingQubit"`
}

// Attack intercepts the qubits of channel at indices, measures each in the
// basis chosen by p, and replaces it with a fresh qubit prepared from the
// outcome in that same basis. The returned channel is a copy; channel itself
// is not modified. Records are keyed by channel position, later indices
// overwriting earlier ones when an index repeats.
//
// If any index is out of range no qubit is touched and an error wrapping
// ErrOutOfRange is returned.
func Attack(channel []qubit.Qubit, indices []int, p Policy, r *rand.Rand) ([]qubit.Qubit, map[int]Record, error) {
	for _, i := range indices {
		if i < 0 || i >= len(channel) {
			return nil, nil, fmt.Errorf("%w: %d not in [0, %d)", ErrOutOfRange, i, len(channel))
		}
	}
	out := make([]qubit.Qubit, len(channel))
	copy(out, channel)
	records := make(map[int]Record, len(indices))
	for _, i := range indices {
		basis := p.choose(r)
		bit := qubit.Measure(out[i], basis, r)
		out[i] = qubit.Encode(bit, basis)
		records[i] = Record{
			AttackType:     AttackInterceptResend,
			Basis:          basis,
			MeasuredBit:    bit,
			ResultingQubit: out[i],
		}
	}
	return out, records, nil
}

// SelectTargets picks round(fraction*n) distinct positions out of n, uniformly
// at random, and returns them in ascending order. fraction is clamped to
// [0, 1].
func SelectTargets(n int, fraction float64, r *rand.Rand) []int {
	if fraction <= 0 || n <= 0 {
		return nil
	}
	if fraction > 1 {
		fraction = 1
	}
	k := int(fraction*float64(n) + 0.5)
	targets := r.Perm(n)[:k]
	sort.Ints(targets)
	return targets
}

// All returns every position of an n qubit channel.
func All(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = i
	}
	return r
}
