package bb84

import (
	"fmt"

	"github.com/alan-christopher/bb84sim/bb84/eve"
	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

// A ParityCheck is one disclosed parity comparison made during information
// reconciliation. Every entry costs one bit of key secrecy.
type ParityCheck struct {
	Block int `json:"block"`
	Start int `json:"start"`
	End   int `json:"end"`
	Alice int `json:"alice"`
	Bob   int `json:"bob"`
}

// Causes of a protocol abort.
const (
	AbortInsufficientMatches = "insufficient_matches"
	AbortTooManyErrors       = "too_many_errors"
)

// An AbortReason records why and where the protocol aborted, with enough
// numbers to reproduce the decision.
type AbortReason struct {
	Step     int    `json:"step"`
	Cause    string `json:"cause"`
	Observed int    `json:"observed"`
	Limit    int    `json:"limit"`
}

func (a AbortReason) String() string {
	switch a.Cause {
	case AbortInsufficientMatches:
		return fmt.Sprintf("only %d bases matched, %d required", a.Observed, a.Limit)
	case AbortTooManyErrors:
		return fmt.Sprintf("%d errors in the check subset, at most %d allowed", a.Observed, a.Limit)
	}
	return fmt.Sprintf("%s at step %d (%d/%d)", a.Cause, a.Step, a.Observed, a.Limit)
}

// ProtocolState is the full mutable state of one protocol run. Fields are
// filled in step by step; a field is considered stale whenever its length
// disagrees with what the current configuration implies.
type ProtocolState struct {
	AliceBits   []int         `json:"aliceBits"`
	AliceBases  []qubit.Basis `json:"aliceBases"`
	AliceQubits []qubit.Qubit `json:"aliceQubits"`

	ChannelQubits []qubit.Qubit      `json:"channelQubits"`
	EveAttacks    map[int]eve.Record `json:"eveAttacks"`

	BobBases []qubit.Basis `json:"bobBases"`
	BobBits  []int         `json:"bobBits"`

	KeptIndices       []int `json:"keptIndices"`
	AliceMatchingBits []int `json:"aliceMatchingBits"`
	BobMatchingBits   []int `json:"bobMatchingBits"`

	EveCheckIndices    []int `json:"eveCheckIndices"`
	EveCheckErrorCount int   `json:"eveCheckErrorCount"`
	EveCheckLength     int   `json:"eveCheckLength"`

	ReconciliationIndices   []int `json:"reconciliationIndices"`
	AliceReconciliationBits []int `json:"aliceReconciliationBits"`
	BobReconciliationBits   []int `json:"bobReconciliationBits"`

	ReconciledAliceBits []int         `json:"reconciledAliceBits"`
	ReconciledBobBits   []int         `json:"reconciledBobBits"`
	ParityRevealed      []ParityCheck `json:"parityRevealed"`
	BlockSize           int           `json:"blockSize"`
	ForcedCorrections   int           `json:"forcedCorrections"`

	FinalKey       []int   `json:"finalKey"`
	BobFinalKey    []int   `json:"bobFinalKey"`
	FinalKeyLength int     `json:"finalKeyLength"`
	HashSeed       int64   `json:"hashSeed"`
	Extractor      string  `json:"extractor,omitempty"`
	ErrorRate      float64 `json:"errorRate"`

	IsProtocolAborted bool         `json:"isProtocolAborted"`
	AbortReason       *AbortReason `json:"abortReason,omitempty"`
}

// NewState returns an empty ProtocolState with every collection allocated.
func NewState() *ProtocolState {
	s := &ProtocolState{}
	s.repair()
	return s
}

// Clone returns a deep copy of s sharing no memory with it.
func (s *ProtocolState) Clone() *ProtocolState {
	if s == nil {
		return nil
	}
	c := *s
	c.AliceBits = cloneSlice(s.AliceBits)
	c.AliceBases = cloneSlice(s.AliceBases)
	c.AliceQubits = cloneSlice(s.AliceQubits)
	c.ChannelQubits = cloneSlice(s.ChannelQubits)
	c.EveAttacks = make(map[int]eve.Record, len(s.EveAttacks))
	for k, v := range s.EveAttacks {
		c.EveAttacks[k] = v
	}
	c.BobBases = cloneSlice(s.BobBases)
	c.BobBits = cloneSlice(s.BobBits)
	c.KeptIndices = cloneSlice(s.KeptIndices)
	c.AliceMatchingBits = cloneSlice(s.AliceMatchingBits)
	c.BobMatchingBits = cloneSlice(s.BobMatchingBits)
	c.EveCheckIndices = cloneSlice(s.EveCheckIndices)
	c.ReconciliationIndices = cloneSlice(s.ReconciliationIndices)
	c.AliceReconciliationBits = cloneSlice(s.AliceReconciliationBits)
	c.BobReconciliationBits = cloneSlice(s.BobReconciliationBits)
	c.ReconciledAliceBits = cloneSlice(s.ReconciledAliceBits)
	c.ReconciledBobBits = cloneSlice(s.ReconciledBobBits)
	c.ParityRevealed = cloneSlice(s.ParityRevealed)
	c.FinalKey = cloneSlice(s.FinalKey)
	c.BobFinalKey = cloneSlice(s.BobFinalKey)
	if s.AbortReason != nil {
		r := *s.AbortReason
		c.AbortReason = &r
	}
	return &c
}

// repair replaces nil collections with empty ones, so that imported or freshly
// created states serialize and compare consistently.
func (s *ProtocolState) repair() {
	fixInts := func(p *[]int) {
		if *p == nil {
			*p = []int{}
		}
	}
	fixBases := func(p *[]qubit.Basis) {
		if *p == nil {
			*p = []qubit.Basis{}
		}
	}
	fixQubits := func(p *[]qubit.Qubit) {
		if *p == nil {
			*p = []qubit.Qubit{}
		}
	}
	fixInts(&s.AliceBits)
	fixBases(&s.AliceBases)
	fixQubits(&s.AliceQubits)
	fixQubits(&s.ChannelQubits)
	if s.EveAttacks == nil {
		s.EveAttacks = map[int]eve.Record{}
	}
	fixBases(&s.BobBases)
	fixInts(&s.BobBits)
	fixInts(&s.KeptIndices)
	fixInts(&s.AliceMatchingBits)
	fixInts(&s.BobMatchingBits)
	fixInts(&s.EveCheckIndices)
	fixInts(&s.ReconciliationIndices)
	fixInts(&s.AliceReconciliationBits)
	fixInts(&s.BobReconciliationBits)
	fixInts(&s.ReconciledAliceBits)
	fixInts(&s.ReconciledBobBits)
	if s.ParityRevealed == nil {
		s.ParityRevealed = []ParityCheck{}
	}
	fixInts(&s.FinalKey)
	fixInts(&s.BobFinalKey)
}

// abort flags the state as terminally aborted.
func (s *ProtocolState) abort(r AbortReason) {
	s.IsProtocolAborted = true
	s.AbortReason = &r
}

// clearFrom discards everything computed at or after step, keeping earlier
// results. Used when an upstream change invalidates downstream data.
func (s *ProtocolState) clearFrom(step int) {
	if step <= StepBobMeasure {
		s.BobBases = []qubit.Basis{}
		s.BobBits = []int{}
	}
	if step <= StepSift {
		s.KeptIndices = []int{}
		s.AliceMatchingBits = []int{}
		s.BobMatchingBits = []int{}
	}
	if step <= StepEveCheck {
		s.EveCheckIndices = []int{}
		s.EveCheckErrorCount = 0
		s.EveCheckLength = 0
		s.ReconciliationIndices = []int{}
		s.AliceReconciliationBits = []int{}
		s.BobReconciliationBits = []int{}
	}
	if step <= StepKey {
		s.ReconciledAliceBits = []int{}
		s.ReconciledBobBits = []int{}
		s.ParityRevealed = []ParityCheck{}
		s.BlockSize = 0
		s.ForcedCorrections = 0
		s.FinalKey = []int{}
		s.BobFinalKey = []int{}
		s.FinalKeyLength = 0
		s.ErrorRate = 0
		s.HashSeed = 0
		s.Extractor = ""
	}
}

func cloneSlice[T any](s []T) []T {
	if s == nil {
		return nil
	}
	r := make([]T, len(s))
	copy(r, s)
	return r
}
