package bb84

import (
	"fmt"
	"math/rand"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
	"github.com/alan-christopher/bb84sim/bb84/eve"
	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

// A source supplies all the randomness a protocol run consumes. The func
// fields, when set, replace the corresponding draws from rand so tests can pin
// bit and basis choices.
type source struct {
	rand           *rand.Rand
	aliceBitsFunc  func(n int) []int
	aliceBasesFunc func(n int) []qubit.Basis
	bobBasesFunc   func(n int) []qubit.Basis
}

func (s *source) aliceBits(n int) []int {
	if s.aliceBitsFunc != nil {
		return s.aliceBitsFunc(n)
	}
	return s.bits(n)
}

func (s *source) aliceBases(n int) []qubit.Basis {
	if s.aliceBasesFunc != nil {
		return s.aliceBasesFunc(n)
	}
	return s.bases(n)
}

func (s *source) bobBases(n int) []qubit.Basis {
	if s.bobBasesFunc != nil {
		return s.bobBasesFunc(n)
	}
	return s.bases(n)
}

func (s *source) bits(n int) []int {
	r := make([]int, n)
	for i := range r {
		r[i] = s.rand.Intn(2)
	}
	return r
}

func (s *source) bases(n int) []qubit.Basis {
	r := make([]qubit.Basis, n)
	for i := range r {
		r[i] = qubit.Basis(s.rand.Intn(2) == 0)
	}
	return r
}

func (s *source) seed() int64 {
	for {
		if v := s.rand.Int63(); v != 0 {
			return v
		}
	}
}

// A note is a user-facing message produced while computing a step.
type note struct {
	level string
	msg   string
}

type notes []note

func (n *notes) info(format string, args ...interface{}) {
	*n = append(*n, note{LevelInfo, fmt.Sprintf(format, args...)})
}

func (n *notes) warn(format string, args ...interface{}) {
	*n = append(*n, note{LevelWarning, fmt.Sprintf(format, args...)})
}

// runStep brings s up to date for step, computing only what is missing or
// stale for cfg. It mutates s in place, so callers pass a scratch copy and
// discard it on error. Errors wrap ErrPrecondition, ErrAborted or
// ErrInvariant.
func runStep(step int, s *ProtocolState, cfg Config, src *source) (notes, error) {
	var ns notes
	var err error
	switch step {
	case StepIntro:
	case StepAliceBits:
		err = stepAliceBits(s, cfg, src, &ns)
	case StepAliceBases:
		err = stepAliceBases(s, cfg, src, &ns)
	case StepEncode:
		err = stepEncode(s, cfg, &ns)
	case StepChannel:
		err = stepChannel(s, cfg, &ns)
	case StepReceive:
		err = requireChannel(s, cfg)
	case StepBobMeasure:
		err = stepBobMeasure(s, cfg, src, &ns)
	case StepSift:
		err = stepSift(s, cfg, &ns)
	case StepEveCheck:
		err = stepEveCheck(s, cfg, src, &ns)
	case StepKey:
		err = stepKey(s, cfg, src, &ns)
	default:
		err = fmt.Errorf("%w: %d", ErrOutOfRange, step)
	}
	return ns, err
}

func precondition(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", ErrPrecondition, fmt.Sprintf(format, args...))
}

func stepAliceBits(s *ProtocolState, cfg Config, src *source, ns *notes) error {
	total := cfg.TotalBits()
	if len(s.AliceBits) == total {
		return nil
	}
	bits := src.aliceBits(total)
	if len(bits) != total {
		return fmt.Errorf("%w: bit source returned %d bits, want %d", ErrInvariant, len(bits), total)
	}
	s.AliceBits = bits
	s.AliceQubits = []qubit.Qubit{}
	s.ChannelQubits = []qubit.Qubit{}
	s.clearFrom(StepBobMeasure)
	ns.info("Alice generated %d random bits (n=%d, δ=%v)", total, cfg.N, cfg.Delta)
	return nil
}

func stepAliceBases(s *ProtocolState, cfg Config, src *source, ns *notes) error {
	total := cfg.TotalBits()
	if len(s.AliceBits) != total {
		return precondition("Alice has %d bits, expected %d; generate bits first", len(s.AliceBits), total)
	}
	if len(s.AliceBases) == total {
		return nil
	}
	bases := src.aliceBases(total)
	if len(bases) != total {
		return fmt.Errorf("%w: basis source returned %d bases, want %d", ErrInvariant, len(bases), total)
	}
	s.AliceBases = bases
	s.AliceQubits = []qubit.Qubit{}
	s.ChannelQubits = []qubit.Qubit{}
	s.clearFrom(StepBobMeasure)
	ns.info("Alice chose %d random bases", total)
	return nil
}

func stepEncode(s *ProtocolState, cfg Config, ns *notes) error {
	total := cfg.TotalBits()
	if len(s.AliceBits) != total || len(s.AliceBases) != total {
		return precondition("Alice's bits (%d) and bases (%d) must both number %d", len(s.AliceBits), len(s.AliceBases), total)
	}
	if len(s.AliceQubits) == total {
		return nil
	}
	s.AliceQubits = make([]qubit.Qubit, total)
	for i := range s.AliceQubits {
		s.AliceQubits[i] = qubit.Encode(s.AliceBits[i], s.AliceBases[i])
	}
	s.ChannelQubits = []qubit.Qubit{}
	ns.info("Alice encoded %d qubits", total)
	return nil
}

func stepChannel(s *ProtocolState, cfg Config, ns *notes) error {
	total := cfg.TotalBits()
	if len(s.AliceQubits) != total {
		return precondition("Alice has %d qubits, expected %d; encode qubits first", len(s.AliceQubits), total)
	}
	if len(s.ChannelQubits) == total {
		return nil
	}
	s.ChannelQubits = cloneSlice(s.AliceQubits)
	s.EveAttacks = map[int]eve.Record{}
	s.clearFrom(StepBobMeasure)
	ns.info("%d qubits are in flight on the quantum channel", total)
	return nil
}

func requireChannel(s *ProtocolState, cfg Config) error {
	if total := cfg.TotalBits(); len(s.ChannelQubits) != total {
		return precondition("channel holds %d qubits, expected %d", len(s.ChannelQubits), total)
	}
	return nil
}

func stepBobMeasure(s *ProtocolState, cfg Config, src *source, ns *notes) error {
	if err := requireChannel(s, cfg); err != nil {
		return err
	}
	total := len(s.ChannelQubits)
	if len(s.BobBases) != total {
		bases := src.bobBases(total)
		if len(bases) != total {
			return fmt.Errorf("%w: basis source returned %d bases, want %d", ErrInvariant, len(bases), total)
		}
		s.BobBases = bases
		s.BobBits = []int{}
		ns.info("Bob chose %d random bases", total)
	}
	if len(s.BobBits) != total {
		s.BobBits = make([]int, total)
		for i, q := range s.ChannelQubits {
			s.BobBits[i] = qubit.Measure(q, s.BobBases[i], src.rand)
		}
		s.clearFrom(StepSift)
		ns.info("Bob measured %d qubits", total)
	}
	return nil
}

func stepSift(s *ProtocolState, cfg Config, ns *notes) error {
	total := cfg.TotalBits()
	if len(s.BobBits) != total || len(s.BobBases) != total || len(s.AliceBases) != total {
		return precondition("Bob must measure all %d qubits before sifting", total)
	}
	minRequired := cfg.MinRequired()
	kept, matches, ok := sift(s.AliceBases, s.BobBases, minRequired)
	if !ok {
		reason := AbortReason{
			Step:     StepSift,
			Cause:    AbortInsufficientMatches,
			Observed: matches,
			Limit:    minRequired,
		}
		s.KeptIndices = kept
		s.AliceMatchingBits = project(s.AliceBits, kept)
		s.BobMatchingBits = project(s.BobBits, kept)
		s.abort(reason)
		return fmt.Errorf("%w: %s", ErrAborted, reason)
	}
	if !equalInts(kept, s.KeptIndices) {
		s.clearFrom(StepEveCheck)
	}
	s.KeptIndices = kept
	s.AliceMatchingBits = project(s.AliceBits, kept)
	s.BobMatchingBits = project(s.BobBits, kept)
	ns.info("%d of %d bases matched; keeping the first %d", matches, total, minRequired)
	return nil
}

func stepEveCheck(s *ProtocolState, cfg Config, src *source, ns *notes) error {
	if s.IsProtocolAborted {
		return fmt.Errorf("%w: %s", ErrAborted, s.abortString())
	}
	if len(s.KeptIndices) != cfg.MinRequired() {
		return precondition("sifted key holds %d bits, expected %d; sift first", len(s.KeptIndices), cfg.MinRequired())
	}
	fresh := len(s.EveCheckIndices) == 0 || !isSubset(s.EveCheckIndices, s.KeptIndices)
	if fresh {
		s.EveCheckIndices = sampleCheck(s.KeptIndices, cfg.EveCheckSubsetLen, src.rand)
	}
	s.EveCheckLength = len(s.EveCheckIndices)
	s.EveCheckErrorCount = countMismatches(s.AliceBits, s.BobBits, s.EveCheckIndices)
	if fresh {
		ns.info("Disclosed %d check bits: %d errors (QBER %.1f%%)",
			s.EveCheckLength, s.EveCheckErrorCount, checkQBER(s))
	}
	if s.EveCheckErrorCount > cfg.MaxEveCheckErrors {
		reason := AbortReason{
			Step:     StepEveCheck,
			Cause:    AbortTooManyErrors,
			Observed: s.EveCheckErrorCount,
			Limit:    cfg.MaxEveCheckErrors,
		}
		s.abort(reason)
		return fmt.Errorf("%w: %s", ErrAborted, reason)
	}
	s.ReconciliationIndices = without(s.KeptIndices, s.EveCheckIndices)
	s.AliceReconciliationBits = project(s.AliceBits, s.ReconciliationIndices)
	s.BobReconciliationBits = project(s.BobBits, s.ReconciliationIndices)
	return nil
}

func stepKey(s *ProtocolState, cfg Config, src *source, ns *notes) error {
	if s.IsProtocolAborted {
		return fmt.Errorf("%w: %s", ErrAborted, s.abortString())
	}
	if s.EveCheckLength == 0 || len(s.AliceReconciliationBits) != len(s.ReconciliationIndices) {
		return precondition("the eavesdropper check has not run")
	}
	if len(s.ReconciliationIndices) == 0 {
		return fmt.Errorf("%w: no bits left to reconcile after disclosing %d check bits", ErrInvariant, s.EveCheckLength)
	}
	if s.FinalKeyLength > 0 && len(s.ReconciledAliceBits) == len(s.ReconciliationIndices) &&
		s.Extractor == cfg.extractor() {
		return nil
	}

	rec, err := bisector{}.reconcile(s.AliceReconciliationBits, s.BobReconciliationBits)
	if err != nil {
		return fmt.Errorf("%w: reconciling: %v", ErrInvariant, err)
	}
	aliceRec, bobRec := rec.alice.Bits(), rec.bob.Bits()

	seed := s.HashSeed
	if seed == 0 {
		seed = src.seed()
	}
	n := len(aliceRec)
	errorRate := estimateErrorRate(s)
	m := finalKeyLength(n, len(rec.leaked), errorRate)
	aliceKey, err := extractKey(cfg.extractor(), aliceRec, m, seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	bobKey, err := extractKey(cfg.extractor(), bobRec, m, seed)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvariant, err)
	}
	if len(aliceKey) != m || len(bobKey) != m {
		return fmt.Errorf("%w: privacy amplification produced %d/%d bits, want %d", ErrInvariant, len(aliceKey), len(bobKey), m)
	}

	s.ReconciledAliceBits = aliceRec
	s.ReconciledBobBits = bobRec
	s.ParityRevealed = rec.leaked
	s.BlockSize = rec.blockSize
	s.ForcedCorrections = rec.forced
	s.HashSeed = seed
	s.ErrorRate = errorRate
	s.Extractor = cfg.extractor()
	s.FinalKey = aliceKey
	s.BobFinalKey = bobKey
	s.FinalKeyLength = m

	ns.info("Reconciled %d bits in blocks of %d, revealing %d parities", n, rec.blockSize, len(rec.leaked))
	if rec.forced > 0 {
		ns.warn("%d errors survived bisection and were copied from Alice's key", rec.forced)
	}
	ns.info("Privacy amplification (%s) compressed %d bits to %d", s.Extractor, n, m)
	if !bitmap.Equal(bitmap.FromBits(aliceKey), bitmap.FromBits(bobKey)) {
		ns.warn("Alice's and Bob's final keys differ")
	}
	return nil
}

// estimateErrorRate returns the error rate privacy amplification should
// assume: the check-subset rate, else the rate over all sifted bits, else
// defaultErrorRate. Zero estimates fall through to the next source.
func estimateErrorRate(s *ProtocolState) float64 {
	if s.EveCheckLength > 0 && s.EveCheckErrorCount > 0 {
		return float64(s.EveCheckErrorCount) / float64(s.EveCheckLength)
	}
	if q := siftedQBER(s); q > 0 {
		return q / 100
	}
	return defaultErrorRate
}

func (s *ProtocolState) abortString() string {
	if s.AbortReason == nil {
		return "aborted"
	}
	return s.AbortReason.String()
}

func equalInts(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
