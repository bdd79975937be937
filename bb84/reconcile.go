package bb84

import (
	"fmt"
	"math"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// A reconcileResult holds the outcome of information reconciliation.
type reconcileResult struct {
	alice, bob bitmap.Dense
	// leaked lists every parity disclosed on the public channel, in the order
	// it was disclosed.
	leaked    []ParityCheck
	blockSize int
	// forced counts residual mismatches that bisection missed and that were
	// overwritten with Alice's value.
	forced int
}

// A bisector reconciles two bit strings with one pass of Cascade-style binary
// search: split the key into blocks, compare block parities, and bisect any
// block whose parities disagree until the differing bit is found and flipped
// on Bob's side.
//
// A block holding an even number of errors has matching parities and is left
// alone, so one pass does not guarantee agreement. Whatever survives is copied
// over from Alice; the parity ledger is not charged for those bits.
type bisector struct {
	// blockSize overrides the length-derived block size when positive.
	blockSize int
}

// reconcile returns corrected copies of alice and bob. The inputs are not
// modified.
func (b bisector) reconcile(alice, bob []int) (reconcileResult, error) {
	if len(alice) != len(bob) {
		return reconcileResult{}, fmt.Errorf(
			"reconciling bitstrings of different lengths: %d != %d", len(alice), len(bob))
	}
	res := reconcileResult{
		alice:     bitmap.FromBits(alice),
		bob:       bitmap.FromBits(bob),
		leaked:    []ParityCheck{},
		blockSize: b.blockSize,
	}
	if res.blockSize <= 0 {
		res.blockSize = blockSizeFor(len(alice))
	}
	for block, start := 0, 0; start < len(alice); block, start = block+1, start+res.blockSize {
		end := min(start+res.blockSize, len(alice))
		if err := b.correctBlock(&res, block, start, end); err != nil {
			return reconcileResult{}, err
		}
	}

	for i := 0; i < res.bob.Size(); i++ {
		if res.bob.Get(i) != res.alice.Get(i) {
			res.bob.Set(i, res.alice.Get(i))
			res.forced++
		}
	}
	return res, nil
}

// correctBlock compares the parities of [start, end) and, if they differ,
// narrows in on the error by recursing into both halves.
func (b bisector) correctBlock(res *reconcileResult, block, start, end int) error {
	aSub, err := bitmap.Slice(res.alice, start, end)
	if err != nil {
		return err
	}
	bSub, err := bitmap.Slice(res.bob, start, end)
	if err != nil {
		return err
	}
	pa, pb := bitmap.Parity(aSub), bitmap.Parity(bSub)
	res.leaked = append(res.leaked, ParityCheck{
		Block: block,
		Start: start,
		End:   end,
		Alice: boolToBit(pa),
		Bob:   boolToBit(pb),
	})
	if pa == pb {
		return nil
	}
	if end-start == 1 {
		res.bob.Flip(start)
		return nil
	}
	mid := start + (end-start)/2
	if err := b.correctBlock(res, block, start, mid); err != nil {
		return err
	}
	return b.correctBlock(res, block, mid, end)
}

// blockSizeFor picks a reconciliation block size for a key of n bits.
func blockSizeFor(n int) int {
	switch {
	case n < 50:
		return max(5, n/3)
	case n < 200:
		return 20
	default:
		return min(50, max(20, int(math.Sqrt(float64(n)))))
	}
}

func boolToBit(b bool) int {
	if b {
		return 1
	}
	return 0
}
