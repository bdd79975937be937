package bb84

import (
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/alan-christopher/bb84sim/bb84/bitmap"
)

// Metrics summarizes a protocol run for display.
type Metrics struct {
	// QBER is the quantum bit error rate in percent: the check-subset error
	// rate once step 8 has run, else the mismatch rate over all sifted bits.
	QBER             float64 `json:"qber"`
	EveAttackedCount int     `json:"eveAttackedCount"`
	KeySize          int     `json:"keySize"`
	CurrentStep      int     `json:"currentStep"`
	TotalBits        int     `json:"totalBits"`
	TotalQubits      int     `json:"totalQubits"`

	SiftedBits        int    `json:"siftedBits"`
	CheckErrors       int    `json:"checkErrors"`
	CheckLength       int    `json:"checkLength"`
	ParityLeak        int    `json:"parityLeak"`
	ForcedCorrections int    `json:"forcedCorrections"`
	FinalKeyHex       string `json:"finalKeyHex"`
	BobFinalKeyHex    string `json:"bobFinalKeyHex"`
	KeysMatch         bool   `json:"keysMatch"`

	// CompressionRatio is the final key length over the reconciled length.
	CompressionRatio float64 `json:"compressionRatio"`
	// Efficiency is the final key length over the number of qubits sent.
	Efficiency float64 `json:"efficiency"`

	// DetectionProbability is the chance that the eavesdropper check aborts
	// given the current share of intercepted qubits, assuming each one flips
	// a disclosed bit with probability 1/4.
	DetectionProbability float64 `json:"detectionProbability"`

	Aborted     bool   `json:"aborted"`
	AbortReason string `json:"abortReason,omitempty"`
}

func computeMetrics(s *ProtocolState, cfg Config, step int) Metrics {
	m := Metrics{
		QBER:              currentQBER(s),
		EveAttackedCount:  len(s.EveAttacks),
		KeySize:           len(s.FinalKey),
		CurrentStep:       step,
		TotalBits:         cfg.TotalBits(),
		TotalQubits:       len(s.ChannelQubits),
		SiftedBits:        len(s.KeptIndices),
		CheckErrors:       s.EveCheckErrorCount,
		CheckLength:       s.EveCheckLength,
		ParityLeak:        len(s.ParityRevealed),
		ForcedCorrections: s.ForcedCorrections,
		Aborted:           s.IsProtocolAborted,
	}
	if len(s.FinalKey) > 0 {
		m.FinalKeyHex = bitmap.Hex(bitmap.FromBits(s.FinalKey))
		m.BobFinalKeyHex = bitmap.Hex(bitmap.FromBits(s.BobFinalKey))
		m.KeysMatch = m.FinalKeyHex == m.BobFinalKeyHex
	}
	if n := len(s.ReconciledAliceBits); n > 0 {
		m.CompressionRatio = float64(len(s.FinalKey)) / float64(n)
	}
	if n := len(s.AliceBits); n > 0 {
		m.Efficiency = float64(len(s.FinalKey)) / float64(n)
	}
	if s.AbortReason != nil {
		m.AbortReason = s.AbortReason.String()
	}
	m.DetectionProbability = detectionProbability(s, cfg)
	return m
}

func currentQBER(s *ProtocolState) float64 {
	if s.EveCheckLength > 0 {
		return checkQBER(s)
	}
	return siftedQBER(s)
}

// checkQBER is the error rate over the disclosed check subset, in percent.
func checkQBER(s *ProtocolState) float64 {
	if s.EveCheckLength == 0 {
		return 0
	}
	return 100 * float64(s.EveCheckErrorCount) / float64(s.EveCheckLength)
}

// siftedQBER is the error rate over every sifted bit, in percent. Only a
// simulator can know it, since it compares bits neither party discloses.
func siftedQBER(s *ProtocolState) float64 {
	if len(s.KeptIndices) == 0 || len(s.BobBits) != len(s.AliceBits) {
		return 0
	}
	errs := countMismatches(s.AliceBits, s.BobBits, s.KeptIndices)
	return 100 * float64(errs) / float64(len(s.KeptIndices))
}

// detectionProbability returns P(errors > MaxEveCheckErrors) where errors is
// binomially distributed over the check subset.
func detectionProbability(s *ProtocolState, cfg Config) float64 {
	if len(s.ChannelQubits) == 0 || len(s.EveAttacks) == 0 {
		return 0
	}
	checkLen := s.EveCheckLength
	if checkLen == 0 {
		checkLen = min(cfg.EveCheckSubsetLen, cfg.MinRequired())
	}
	p := 0.25 * float64(len(s.EveAttacks)) / float64(len(s.ChannelQubits))
	b := distuv.Binomial{N: float64(checkLen), P: p}
	return 1 - b.CDF(float64(cfg.MaxEveCheckErrors))
}
