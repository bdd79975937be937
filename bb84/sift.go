package bb84

import (
	"math/rand"
	"sort"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

// matchingIndices returns, in ascending order, every position at which the two
// basis choices agree.
func matchingIndices(sendBasis, receiveBasis []qubit.Basis) []int {
	siftMask := bitmap.XNor(basesToDense(sendBasis), basesToDense(receiveBasis))
	n := min(len(sendBasis), len(receiveBasis))
	r := []int{}
	for i := 0; i < n; i++ {
		if siftMask.Get(i) {
			r = append(r, i)
		}
	}
	return r
}

// sift keeps the first minRequired matching positions. ok is false if there
// are not enough of them, in which case kept holds every match found.
func sift(sendBasis, receiveBasis []qubit.Basis, minRequired int) (kept []int, matches int, ok bool) {
	all := matchingIndices(sendBasis, receiveBasis)
	if len(all) < minRequired {
		return all, len(all), false
	}
	return all[:minRequired], len(all), true
}

// sampleCheck draws min(size, len(kept)) positions from kept without
// replacement and returns them sorted.
func sampleCheck(kept []int, size int, r *rand.Rand) []int {
	k := min(size, len(kept))
	perm := r.Perm(len(kept))[:k]
	sample := make([]int, 0, k)
	for _, p := range perm {
		sample = append(sample, kept[p])
	}
	sort.Ints(sample)
	return sample
}

// without returns the elements of all not present in drop, preserving order.
func without(all, drop []int) []int {
	skip := make(map[int]bool, len(drop))
	for _, d := range drop {
		skip[d] = true
	}
	r := make([]int, 0, len(all))
	for _, a := range all {
		if !skip[a] {
			r = append(r, a)
		}
	}
	return r
}

// project returns bits at each of indices.
func project(bits, indices []int) []int {
	r := make([]int, len(indices))
	for i, idx := range indices {
		r[i] = bits[idx]
	}
	return r
}

// countMismatches returns the number of indices at which a and b disagree.
func countMismatches(a, b, indices []int) int {
	return bitmap.CountOnes(bitmap.XOr(
		bitmap.FromBits(project(a, indices)),
		bitmap.FromBits(project(b, indices))))
}

// isSubset reports whether every element of sub appears in set.
func isSubset(sub, set []int) bool {
	in := make(map[int]bool, len(set))
	for _, s := range set {
		in[s] = true
	}
	for _, s := range sub {
		if !in[s] {
			return false
		}
	}
	return true
}

func basesToDense(b []qubit.Basis) bitmap.Dense {
	bools := make([]bool, len(b))
	for i, v := range b {
		bools[i] = bool(v)
	}
	return bitmap.FromBools(bools)
}
