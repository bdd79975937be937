package bb84

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"math/rand"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alan-christopher/bb84sim/bb84/eve"
	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func constBases(b qubit.Basis) func(int) []qubit.Basis {
	return func(n int) []qubit.Basis {
		r := make([]qubit.Basis, n)
		for i := range r {
			r[i] = b
		}
		return r
	}
}

func newTestEngine(t *testing.T, cfg Config, seed int64, mods ...func(*EngineOpts)) *Engine {
	t.Helper()
	opts := EngineOpts{
		Config: &cfg,
		Rand:   rand.New(rand.NewSource(seed)),
		Logger: quietLogger(),
	}
	for _, m := range mods {
		m(&opts)
	}
	e, err := NewEngine(opts)
	require.NoError(t, err)
	return e
}

func withBases(alice, bob qubit.Basis) func(*EngineOpts) {
	return func(o *EngineOpts) {
		o.AliceBasesFunc = constBases(alice)
		o.BobBasesFunc = constBases(bob)
	}
}

func TestNewEngineRejectsBadConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.N = 0
	_, err := NewEngine(EngineOpts{Config: &cfg, Logger: quietLogger()})
	assert.Error(t, err)
}

func TestSizingInvariant(t *testing.T) {
	for _, n := range []int{1, 10, 50, 77} {
		for _, delta := range []float64{0, 0.5, 1.3} {
			t.Run(fmt.Sprintf("n=%d,delta=%v", n, delta), func(t *testing.T) {
				cfg := DefaultConfig()
				cfg.N, cfg.Delta = n, delta
				e := newTestEngine(t, cfg, 1)
				require.NoError(t, e.GoToStep(StepChannel))

				want := int(math.Ceil((4 + delta) * float64(n)))
				s := e.State()
				assert.Len(t, s.AliceBits, want)
				assert.Len(t, s.AliceBases, want)
				assert.Len(t, s.AliceQubits, want)
				assert.Len(t, s.ChannelQubits, want)
				assert.Equal(t, want, e.Metrics().TotalBits)
			})
		}
	}
}

func TestEncodingMatchesBits(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 2)
	require.NoError(t, e.GoToStep(StepEncode))
	s := e.State()
	for i, q := range s.AliceQubits {
		assert.Equal(t, s.AliceBases[i], q.Basis)
		assert.Equal(t, s.AliceBits[i], qubit.Bit(q))
	}
}

func TestSiftingAbortsOnInsufficientMatches(t *testing.T) {
	cfg := DefaultConfig()
	cfg.N, cfg.Delta = 10, 0.5
	e := newTestEngine(t, cfg, 3, withBases(qubit.Z, qubit.X))

	require.NoError(t, e.GoToStep(StepBobMeasure))
	err := e.NextStep()
	require.ErrorIs(t, err, ErrAborted)
	assert.Equal(t, StepSift, e.CurrentStep())

	s := e.State()
	require.True(t, s.IsProtocolAborted)
	require.NotNil(t, s.AbortReason)
	assert.Equal(t, AbortReason{Step: StepSift, Cause: AbortInsufficientMatches, Observed: 0, Limit: 20}, *s.AbortReason)

	assert.ErrorIs(t, e.NextStep(), ErrAborted)
	assert.ErrorIs(t, e.StartAutoPlay(), ErrAborted)

	require.NoError(t, e.PrevStep())
	assert.True(t, e.Aborted(), "abort flag must survive backward navigation")
	assert.ErrorIs(t, e.NextStep(), ErrAborted)

	e.Reset()
	assert.False(t, e.Aborted())
	assert.Equal(t, StepIntro, e.CurrentStep())
}

// oddMatches has Alice use Z everywhere and Bob agree with her only on the
// first matches odd positions.
func oddMatches(matches int) func(*EngineOpts) {
	return func(o *EngineOpts) {
		o.AliceBasesFunc = constBases(qubit.Z)
		o.BobBasesFunc = func(n int) []qubit.Basis {
			r := make([]qubit.Basis, n)
			for i := 0; i < matches; i++ {
				r[2*i+1] = qubit.Z
			}
			return r
		}
	}
}

func TestSiftingBoundary(t *testing.T) {
	cfg := DefaultConfig()
	cfg.N, cfg.Delta = 10, 0.5
	require.Equal(t, 45, cfg.TotalBits())

	t.Run("exactly 2n matches", func(t *testing.T) {
		e := newTestEngine(t, cfg, 30, oddMatches(20))
		require.NoError(t, e.GoToStep(StepSift))
		s := e.State()
		assert.False(t, s.IsProtocolAborted)
		want := make([]int, 20)
		for i := range want {
			want[i] = 2*i + 1
		}
		assert.Equal(t, want, s.KeptIndices)
	})

	t.Run("one short", func(t *testing.T) {
		e := newTestEngine(t, cfg, 31, oddMatches(19))
		err := e.GoToStep(StepSift)
		require.ErrorIs(t, err, ErrAborted)
		s := e.State()
		require.NotNil(t, s.AbortReason)
		assert.Equal(t, AbortReason{Step: StepSift, Cause: AbortInsufficientMatches, Observed: 19, Limit: 20}, *s.AbortReason)
		assert.Len(t, s.KeptIndices, 19)
	})
}

func TestClearFromDropsKeyMaterial(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 32, withBases(qubit.Z, qubit.Z))
	require.NoError(t, e.GoToStep(StepKey))
	s := e.State()
	require.NotZero(t, s.HashSeed)
	require.Equal(t, ExtractorFold, s.Extractor)

	for _, step := range []int{StepBobMeasure, StepEveCheck, StepKey} {
		c := s.Clone()
		c.clearFrom(step)
		assert.Zero(t, c.HashSeed, "step %d", step)
		assert.Empty(t, c.Extractor, "step %d", step)
		assert.Empty(t, c.FinalKey, "step %d", step)
	}
}

func TestSiftingKeepsFirstMatches(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, 4, withBases(qubit.Z, qubit.Z))
	require.NoError(t, e.GoToStep(StepSift))

	s := e.State()
	require.Len(t, s.KeptIndices, cfg.MinRequired())
	for i, idx := range s.KeptIndices {
		assert.Equal(t, i, idx)
		assert.Equal(t, s.AliceBits[idx], s.AliceMatchingBits[i])
		assert.Equal(t, s.BobBits[idx], s.BobMatchingBits[i])
	}
	assert.Equal(t, 0.0, e.Metrics().QBER)
}

func TestFullRunWithoutEve(t *testing.T) {
	cfg := DefaultConfig()
	e := newTestEngine(t, cfg, 5, withBases(qubit.Z, qubit.Z))
	require.NoError(t, e.GoToStep(StepKey))
	assert.Equal(t, StepKey, e.CurrentStep())

	s := e.State()
	assert.Equal(t, cfg.EveCheckSubsetLen, s.EveCheckLength)
	assert.Zero(t, s.EveCheckErrorCount)
	assert.Len(t, s.ReconciliationIndices, cfg.MinRequired()-cfg.EveCheckSubsetLen)
	assert.True(t, isSubset(s.EveCheckIndices, s.KeptIndices))
	assert.Equal(t, s.ReconciledAliceBits, s.ReconciledBobBits)

	n := len(s.ReconciledAliceBits)
	assert.Equal(t, s.FinalKeyLength, len(s.FinalKey))
	assert.GreaterOrEqual(t, s.FinalKeyLength, 1)
	assert.LessOrEqual(t, s.FinalKeyLength, n-1)
	assert.Equal(t, s.FinalKey, s.BobFinalKey)
	assert.NotZero(t, s.HashSeed)
	assert.Equal(t, ExtractorFold, s.Extractor)

	m := e.Metrics()
	assert.True(t, m.KeysMatch)
	assert.NotEmpty(t, m.FinalKeyHex)
	assert.Equal(t, len(s.FinalKey), m.KeySize)
	assert.Equal(t, len(s.ParityRevealed), m.ParityLeak)
	assert.Zero(t, m.DetectionProbability)

	assert.ErrorIs(t, e.NextStep(), ErrPrecondition)
}

func TestToeplitzExtractorRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Extractor = ExtractorToeplitz
	e := newTestEngine(t, cfg, 6, withBases(qubit.X, qubit.X))
	require.NoError(t, e.GoToStep(StepKey))
	s := e.State()
	assert.Equal(t, ExtractorToeplitz, s.Extractor)
	assert.Equal(t, s.FinalKey, s.BobFinalKey)
	assert.Len(t, s.FinalKey, s.FinalKeyLength)
}

func TestReconciliationUnderChannelNoise(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxEveCheckErrors = cfg.EveCheckSubsetLen
	e := newTestEngine(t, cfg, 7, withBases(qubit.Z, qubit.Z))
	require.NoError(t, e.GoToStep(StepChannel))
	// Eve in the conjugate basis flips each targeted bit half the time.
	_, err := e.ApplyEveAttack([]int{0, 10, 20, 30, 40, 50, 60, 70, 80, 90}, eve.Fixed(qubit.X))
	require.NoError(t, err)
	require.NoError(t, e.GoToStep(StepKey))

	s := e.State()
	assert.Equal(t, s.ReconciledAliceBits, s.ReconciledBobBits)
	assert.Equal(t, s.FinalKey, s.BobFinalKey)
	assert.GreaterOrEqual(t, len(s.ParityRevealed), 1)
}

func TestFullEveAttackIsDetected(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Delta = 2
	aborts := 0
	for trial := int64(0); trial < 10; trial++ {
		e := newTestEngine(t, cfg, 100+trial)
		require.NoError(t, e.GoToStep(StepChannel))
		total := cfg.TotalBits()
		n, err := e.ApplyEveAttack(eve.All(total), eve.RandomBasis())
		require.NoError(t, err)
		require.Equal(t, total, n)
		assert.Equal(t, total, e.Metrics().EveAttackedCount)
		assert.Greater(t, e.Metrics().DetectionProbability, 0.9)

		err = e.GoToStep(StepKey)
		if err == nil {
			continue
		}
		require.ErrorIs(t, err, ErrAborted)
		s := e.State()
		require.NotNil(t, s.AbortReason)
		if s.AbortReason.Step == StepEveCheck {
			assert.Equal(t, AbortTooManyErrors, s.AbortReason.Cause)
			assert.Greater(t, s.EveCheckErrorCount, cfg.MaxEveCheckErrors)
			assert.Equal(t, StepEveCheck, e.CurrentStep())
			aborts++
		}
	}
	assert.Greater(t, aborts, 0, "a full intercept-resend attack never tripped the check")
}

func TestInvariantFailureStaysAtEveCheck(t *testing.T) {
	cfg := DefaultConfig()
	cfg.N = 10
	// Check subset of 30 swallows all 20 sifted bits.
	e := newTestEngine(t, cfg, 8, withBases(qubit.Z, qubit.Z))
	require.NoError(t, e.GoToStep(StepEveCheck))

	err := e.NextStep()
	require.ErrorIs(t, err, ErrInvariant)
	assert.Equal(t, StepEveCheck, e.CurrentStep())
	assert.Empty(t, e.State().FinalKey)
	assert.False(t, e.Aborted())
}

func TestPreconditionLeavesStateAlone(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 9)
	require.NoError(t, e.GoToStep(StepAliceBases))

	e.mu.Lock()
	e.state.AliceBits = []int{1, 0}
	e.history[StepEncode] = nil
	e.mu.Unlock()

	err := e.NextStep()
	require.ErrorIs(t, err, ErrPrecondition)
	assert.Equal(t, StepAliceBases, e.CurrentStep())
	assert.Empty(t, e.State().AliceQubits)
}

func TestEveAttackRules(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 10)
	require.NoError(t, e.GoToStep(StepEncode))
	_, err := e.ApplyEveAttack([]int{0}, eve.RandomBasis())
	assert.ErrorIs(t, err, ErrPrecondition)

	require.NoError(t, e.GoToStep(StepBobMeasure))
	require.NotNil(t, e.HistoryAt(StepBobMeasure))
	require.NoError(t, e.GoToStep(StepChannel))

	before := e.State()
	_, err = e.ApplyEveAttack([]int{0, 1, 100000}, eve.RandomBasis())
	assert.ErrorIs(t, err, ErrOutOfRange)
	assert.Equal(t, before, e.State(), "a rejected attack must not touch the channel")

	n, err := e.ApplyEveAttack([]int{3, 4}, eve.Fixed(qubit.X))
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	s := e.State()
	assert.Len(t, s.EveAttacks, 2)
	assert.Equal(t, qubit.X, s.ChannelQubits[3].Basis)
	assert.Equal(t, eve.AttackInterceptResend, s.EveAttacks[3].AttackType)
	assert.Equal(t, s, e.HistoryAt(StepChannel))
	for step := StepChannel + 1; step < NumSteps; step++ {
		assert.Nil(t, e.HistoryAt(step), "step %d snapshot survived an attack", step)
	}
}

func TestHistoryTimeTravel(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 11)
	require.NoError(t, e.GoToStep(StepBobMeasure))
	first := e.State()
	require.NotEmpty(t, first.BobBits)

	leaked := e.State()
	leaked.BobBits[0] ^= 1
	leaked.AliceBits[0] ^= 1
	assert.Equal(t, first, e.State(), "State must return a copy")

	require.NoError(t, e.GoToStep(StepEncode))
	assert.Empty(t, e.State().BobBits)
	assert.Equal(t, StepEncode, e.CurrentStep())

	require.NoError(t, e.GoToStep(StepBobMeasure))
	assert.Equal(t, first, e.State(), "moving forward again must replay the same run")

	for step := StepIntro; step <= StepBobMeasure; step++ {
		assert.NotNil(t, e.HistoryAt(step))
	}
	assert.Nil(t, e.HistoryAt(StepSift))
	assert.Nil(t, e.HistoryAt(-1))
	assert.ErrorIs(t, e.GoToStep(NumSteps), ErrOutOfRange)
	assert.ErrorIs(t, e.GoToStep(-1), ErrOutOfRange)
}

func TestPrevStepAtStart(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 12)
	assert.ErrorIs(t, e.PrevStep(), ErrPrecondition)
}

func TestConfigChangeRules(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 13, withBases(qubit.Z, qubit.Z))

	assert.True(t, e.CanApplyConfigChange(KeyN, "50", "60"))
	require.NoError(t, e.ApplyConfigChange(KeyN, "60"))
	assert.Equal(t, 60, e.Config().N)
	assert.Error(t, e.ApplyConfigChange(KeyN, "-3"))
	assert.Error(t, e.ApplyConfigChange("colour", "blue"))

	require.NoError(t, e.GoToStep(StepAliceBits))
	assert.False(t, e.CanApplyConfigChange(KeyN, "60", "70"))
	assert.True(t, e.CanApplyConfigChange(KeyN, "60", "60"))
	assert.ErrorIs(t, e.ApplyConfigChange(KeyDelta, "1"), ErrPrecondition)
	require.NoError(t, e.ApplyConfigChange(KeyDelta, "0.5"), "unchanged values are always accepted")
	require.NoError(t, e.ApplyConfigChange(KeyAutoPlayInterval, "250ms"))
	assert.Equal(t, 250*time.Millisecond, e.Config().AutoPlayInterval)

	require.NoError(t, e.ApplyConfigChange(KeyMaxEveCheckErrors, "3"))
	require.NoError(t, e.GoToStep(StepEveCheck))
	assert.ErrorIs(t, e.ApplyConfigChange(KeyMaxEveCheckErrors, "4"), ErrPrecondition)
	assert.ErrorIs(t, e.ApplyConfigChange(KeyEveCheckSubsetLen, "10"), ErrPrecondition)

	// Going back does not unlock a parameter that already shaped a snapshot.
	require.NoError(t, e.GoToStep(StepSift))
	assert.ErrorIs(t, e.ApplyConfigChange(KeyMaxEveCheckErrors, "4"), ErrPrecondition)

	require.NoError(t, e.ApplyConfigChange(KeyExtractor, ExtractorToeplitz))
	require.NoError(t, e.GoToStep(StepKey))
	assert.ErrorIs(t, e.ApplyConfigChange(KeyExtractor, ExtractorFold), ErrPrecondition)

	e.Reset()
	require.NoError(t, e.ApplyConfigChange(KeyN, "20"))

	v, err := e.ConfigValue(KeyN)
	require.NoError(t, err)
	assert.Equal(t, "20", v)
	_, err = e.ConfigValue("colour")
	assert.Error(t, err)
}

func TestExportImportRoundTrip(t *testing.T) {
	clock := func() time.Time { return time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC) }
	a := newTestEngine(t, DefaultConfig(), 14, func(o *EngineOpts) { o.Clock = clock })
	require.NoError(t, a.GoToStep(StepChannel))
	_, err := a.AttackFraction(0.1, eve.RandomBasis())
	require.NoError(t, err)
	_ = a.GoToStep(StepKey)

	data, err := a.ExportState()
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	for _, k := range []string{"version", "timestamp", "session", "currentStep", "state", "stepHistory", "config"} {
		assert.Contains(t, raw, k)
	}
	assert.Equal(t, SnapshotVersion, raw["version"])

	b := newTestEngine(t, DefaultConfig(), 99)
	require.NoError(t, b.ImportState(data))
	assert.Equal(t, a.CurrentStep(), b.CurrentStep())
	assert.Equal(t, a.State(), b.State())
	assert.Equal(t, a.Config(), b.Config())
	assert.Equal(t, a.Session(), b.Session())
	assert.Equal(t, a.Metrics(), b.Metrics())
	for step := 0; step < NumSteps; step++ {
		assert.Equal(t, a.HistoryAt(step), b.HistoryAt(step), "history at step %d", step)
	}
}

func TestImportRegeneratesMissingData(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 15)
	require.NoError(t, e.ImportState([]byte(`{"version":"1.0","currentStep":1,"config":{"n":8,"delta":0.5}}`)))
	assert.Equal(t, StepAliceBits, e.CurrentStep())
	assert.Len(t, e.State().AliceBits, 36)
	assert.NotNil(t, e.State().EveAttacks)
}

func TestImportKeepsConfigDefaults(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 19)
	require.NoError(t, e.ImportState([]byte(`{"version":"1.0","currentStep":1,"config":{"n":10}}`)))
	cfg := e.Config()
	assert.Equal(t, DefaultDelta, cfg.Delta)
	assert.Equal(t, DefaultMaxEveCheckErrors, cfg.MaxEveCheckErrors)
	assert.Equal(t, DefaultEveCheckSubsetLen, cfg.EveCheckSubsetLen)
	assert.Equal(t, 45, cfg.TotalBits())
	assert.Len(t, e.State().AliceBits, 45)

	require.NoError(t, e.ImportState([]byte(`{"version":"1.0","currentStep":0,"config":{"n":10,"delta":0,"max_eve_check_errors":0}}`)))
	cfg = e.Config()
	assert.Equal(t, 0.0, cfg.Delta)
	assert.Equal(t, 0, cfg.MaxEveCheckErrors)
}

func TestImportRejectsBadSnapshots(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 16)
	require.NoError(t, e.GoToStep(StepAliceBases))
	before := e.State()

	for name, data := range map[string]string{
		"not json":      `{"version":`,
		"wrong version": `{"version":"2.0","currentStep":0}`,
		"step too big":  `{"version":"1.0","currentStep":10}`,
		"bad config":    `{"version":"1.0","currentStep":0,"config":{"n":-1}}`,
		"stale step":    `{"version":"1.0","currentStep":4,"config":{"n":8}}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Error(t, e.ImportState([]byte(data)))
			assert.Equal(t, StepAliceBases, e.CurrentStep())
			assert.Equal(t, before, e.State())
		})
	}
}

func TestEventLogIsCapped(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 17)
	e.Reset()
	for i := 0; i < MaxEvents+50; i++ {
		e.events.add(LevelInfo, 0, fmt.Sprintf("event %d", i))
	}
	evs := e.Events()
	require.Len(t, evs, MaxEvents)
	assert.Equal(t, "event 50", evs[0].Message)
	assert.Equal(t, fmt.Sprintf("event %d", MaxEvents+49), evs[len(evs)-1].Message)
}

func TestEventsRecordProgress(t *testing.T) {
	cfg := DefaultConfig()
	cfg.N = 10
	e := newTestEngine(t, cfg, 18, withBases(qubit.Z, qubit.X))
	_ = e.GoToStep(StepSift)
	evs := e.Events()
	require.NotEmpty(t, evs)
	last := evs[len(evs)-1]
	assert.Equal(t, LevelError, last.Level)
	assert.Equal(t, StepSift, last.Step)
	assert.True(t, strings.HasPrefix(last.Message, "Protocol aborted"), last.Message)
}

func TestAutoPlayTicks(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 19, withBases(qubit.Z, qubit.Z))
	assert.False(t, e.AutoPlaying())
	more, err := e.Tick()
	assert.NoError(t, err)
	assert.False(t, more)
	assert.Equal(t, StepIntro, e.CurrentStep(), "Tick must not advance while disarmed")

	require.NoError(t, e.StartAutoPlay())
	steps := 0
	for {
		more, err := e.Tick()
		require.NoError(t, err)
		steps++
		if !more {
			break
		}
	}
	assert.Equal(t, NumSteps-1, steps)
	assert.Equal(t, StepKey, e.CurrentStep())
	assert.False(t, e.AutoPlaying())
	assert.ErrorIs(t, e.StartAutoPlay(), ErrPrecondition)
}

func TestAutoPlayStopsOnAbort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.N = 10
	e := newTestEngine(t, cfg, 20, withBases(qubit.Z, qubit.X))
	require.NoError(t, e.StartAutoPlay())
	var err error
	for i := 0; i < NumSteps && err == nil; i++ {
		_, err = e.Tick()
	}
	assert.ErrorIs(t, err, ErrAborted)
	assert.False(t, e.AutoPlaying())
	assert.Equal(t, StepSift, e.CurrentStep())
}

func TestRunAutoPlay(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoPlayInterval = time.Millisecond
	e := newTestEngine(t, cfg, 21, withBases(qubit.Z, qubit.Z))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	require.NoError(t, e.RunAutoPlay(ctx))
	assert.Equal(t, StepKey, e.CurrentStep())
}

func TestRunAutoPlayCancelled(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AutoPlayInterval = time.Hour
	e := newTestEngine(t, cfg, 22)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, e.RunAutoPlay(ctx), context.Canceled)
	assert.False(t, e.AutoPlaying())
	assert.Equal(t, StepIntro, e.CurrentStep())
}

func TestConcurrentAccess(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 23, withBases(qubit.Z, qubit.Z))
	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_ = e.NextStep()
				_ = e.Metrics()
				_ = e.State()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, StepKey, e.CurrentStep())
}

func TestResetStartsNewSession(t *testing.T) {
	e := newTestEngine(t, DefaultConfig(), 24)
	require.NoError(t, e.GoToStep(StepChannel))
	session := e.Session()
	e.Reset()
	assert.NotEqual(t, session, e.Session())
	assert.Equal(t, NewState(), e.State())
	assert.Nil(t, e.HistoryAt(StepAliceBits))
	require.Len(t, e.Events(), 1)
}
