package bb84

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"
)

var (
	DefaultN                 = 50
	DefaultDelta             = 0.5
	DefaultEveCheckSubsetLen = 30
	DefaultMaxEveCheckErrors = 2
	DefaultAutoPlayInterval  = 1500 * time.Millisecond
)

// Names of the privacy amplification extractors.
const (
	// ExtractorFold XOR-folds the reconciled key onto the output length. The
	// hash seed is recorded but does not affect the output.
	ExtractorFold = "fold"
	// ExtractorToeplitz multiplies the reconciled key by a random Toeplitz
	// matrix generated from the hash seed.
	ExtractorToeplitz = "toeplitz"
)

// Configuration keys understood by CanApplyConfigChange and ApplyConfigChange.
const (
	KeyN                 = "n"
	KeyDelta             = "delta"
	KeyEveCheckSubsetLen = "eve_check_subset_len"
	KeyMaxEveCheckErrors = "max_eve_check_errors"
	KeyExtractor         = "extractor"
	KeyAutoPlayInterval  = "autoplay_interval"
)

// A Config packages together the tunable parameters of a simulation. The zero
// value is not usable; start from DefaultConfig.
type Config struct {
	// N is the target sifted key size. Alice sends ceil((4+Delta)*N) qubits and
	// the protocol aborts if fewer than 2N of them survive sifting.
	N int `json:"n" yaml:"n"`

	// Delta is the oversampling factor.
	Delta float64 `json:"delta" yaml:"delta"`

	// EveCheckSubsetLen is the number of sifted bits disclosed to estimate the
	// error rate.
	EveCheckSubsetLen int `json:"eve_check_subset_len" yaml:"eve_check_subset_len"`

	// MaxEveCheckErrors is the largest number of disclosed mismatches tolerated
	// before the protocol aborts.
	MaxEveCheckErrors int `json:"max_eve_check_errors" yaml:"max_eve_check_errors"`

	// Extractor selects the privacy amplification hash, ExtractorFold or
	// ExtractorToeplitz.
	Extractor string `json:"extractor,omitempty" yaml:"extractor"`

	// AutoPlayInterval is the delay between automatic steps.
	AutoPlayInterval time.Duration `json:"autoplay_interval,omitempty" yaml:"autoplay_interval"`
}

// DefaultConfig returns the configuration the simulator starts with.
func DefaultConfig() Config {
	return Config{
		N:                 DefaultN,
		Delta:             DefaultDelta,
		EveCheckSubsetLen: DefaultEveCheckSubsetLen,
		MaxEveCheckErrors: DefaultMaxEveCheckErrors,
		Extractor:         ExtractorFold,
		AutoPlayInterval:  DefaultAutoPlayInterval,
	}
}

// Validate returns an error if c is nonsensical.
func (c Config) Validate() error {
	if c.N < 1 {
		return fmt.Errorf("n must be positive, got %d", c.N)
	}
	if c.Delta < 0 || math.IsNaN(c.Delta) || math.IsInf(c.Delta, 0) {
		return fmt.Errorf("delta must be a non-negative number, got %v", c.Delta)
	}
	if c.EveCheckSubsetLen < 1 {
		return fmt.Errorf("eve_check_subset_len must be positive, got %d", c.EveCheckSubsetLen)
	}
	if c.MaxEveCheckErrors < 0 {
		return fmt.Errorf("max_eve_check_errors must not be negative, got %d", c.MaxEveCheckErrors)
	}
	switch c.Extractor {
	case "", ExtractorFold, ExtractorToeplitz:
	default:
		return fmt.Errorf("unknown extractor %q", c.Extractor)
	}
	if c.AutoPlayInterval < 0 {
		return errors.New("autoplay_interval must not be negative")
	}
	return nil
}

// TotalBits returns the number of raw bits Alice generates, ceil((4+δ)·n).
func (c Config) TotalBits() int {
	return int(math.Ceil((4 + c.Delta) * float64(c.N)))
}

// MinRequired returns the number of sifted bits needed to continue past step 7.
func (c Config) MinRequired() int {
	return 2 * c.N
}

func (c Config) extractor() string {
	if c.Extractor == "" {
		return ExtractorFold
	}
	return c.Extractor
}

func (c Config) autoPlayInterval() time.Duration {
	if c.AutoPlayInterval <= 0 {
		return DefaultAutoPlayInterval
	}
	return c.AutoPlayInterval
}

// with returns a copy of c with key set to the parsed value.
func (c Config) with(key, value string) (Config, error) {
	var err error
	switch key {
	case KeyN:
		c.N, err = strconv.Atoi(value)
	case KeyDelta:
		c.Delta, err = strconv.ParseFloat(value, 64)
	case KeyEveCheckSubsetLen:
		c.EveCheckSubsetLen, err = strconv.Atoi(value)
	case KeyMaxEveCheckErrors:
		c.MaxEveCheckErrors, err = strconv.Atoi(value)
	case KeyExtractor:
		c.Extractor = value
	case KeyAutoPlayInterval:
		c.AutoPlayInterval, err = time.ParseDuration(value)
	default:
		return c, fmt.Errorf("unknown config key %q", key)
	}
	if err != nil {
		return c, fmt.Errorf("parsing %s: %w", key, err)
	}
	return c, c.Validate()
}

// get renders the current value of key in the form with accepts.
func (c Config) get(key string) string {
	switch key {
	case KeyN:
		return strconv.Itoa(c.N)
	case KeyDelta:
		return strconv.FormatFloat(c.Delta, 'g', -1, 64)
	case KeyEveCheckSubsetLen:
		return strconv.Itoa(c.EveCheckSubsetLen)
	case KeyMaxEveCheckErrors:
		return strconv.Itoa(c.MaxEveCheckErrors)
	case KeyExtractor:
		return c.extractor()
	case KeyAutoPlayInterval:
		return c.autoPlayInterval().String()
	}
	return ""
}
