package bb84

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/alan-christopher/bb84sim/bb84/eve"
	"github.com/alan-christopher/bb84sim/bb84/qubit"
)

// An EngineOpts packages together the arguments necessary to construct a new
// Engine. Every field has a usable default.
type EngineOpts struct {
	// Config holds the protocol parameters. Defaults to DefaultConfig().
	Config *Config

	// Rand provides the randomness behind every bit, basis, measurement and
	// check subset. Defaults to a PRNG seeded from the clock.
	Rand *rand.Rand

	// Logger receives a structured copy of every event. Defaults to
	// logrus.StandardLogger().
	Logger *logrus.Logger

	// AliceBitsFunc, AliceBasesFunc and BobBasesFunc, when non-nil, replace
	// Rand for the corresponding draws. Useful for reproducing a scenario.
	AliceBitsFunc  func(n int) []int
	AliceBasesFunc func(n int) []qubit.Basis
	BobBasesFunc   func(n int) []qubit.Basis

	// Clock returns the current time. Defaults to time.Now.
	Clock func() time.Time
}

// An Engine drives a BB84 simulation one step at a time. It owns the protocol
// state, a snapshot per visited step for time travel, and the event log. All
// methods are safe for concurrent use.
type Engine struct {
	mu sync.Mutex

	cfg      Config
	src      source
	clock    func() time.Time
	logger   *logrus.Logger
	session  string
	state    *ProtocolState
	history  [NumSteps]*ProtocolState
	step     int
	events   *EventLog
	autoPlay bool
}

// NewEngine returns a new Engine at step 0, configured in accordance with
// opts, or an error if the options are nonsensical.
func NewEngine(opts EngineOpts) (*Engine, error) {
	cfg := DefaultConfig()
	if opts.Config != nil {
		cfg = *opts.Config
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	r := opts.Rand
	if r == nil {
		r = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	e := &Engine{
		cfg: cfg,
		src: source{
			rand:           r,
			aliceBitsFunc:  opts.AliceBitsFunc,
			aliceBasesFunc: opts.AliceBasesFunc,
			bobBasesFunc:   opts.BobBasesFunc,
		},
		clock:   clock,
		logger:  logger,
		session: uuid.NewString(),
		state:   NewState(),
		events:  newEventLog(logger),
	}
	e.events.now = clock
	e.history[StepIntro] = e.state.Clone()
	return e, nil
}

// CurrentStep returns the step the engine is displaying.
func (e *Engine) CurrentStep() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.step
}

// Config returns the active configuration.
func (e *Engine) Config() Config {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg
}

// Session returns the identifier of the current run. It changes on Reset.
func (e *Engine) Session() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session
}

// State returns a deep copy of the current protocol state.
func (e *Engine) State() *ProtocolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// HistoryAt returns a copy of the snapshot recorded for step, or nil if the
// step has not been visited since the last reset.
func (e *Engine) HistoryAt(step int) *ProtocolState {
	e.mu.Lock()
	defer e.mu.Unlock()
	if step < 0 || step >= NumSteps {
		return nil
	}
	return e.history[step].Clone()
}

// Events returns the retained event log, oldest first.
func (e *Engine) Events() []Event {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.events.Events()
}

// Aborted reports whether the protocol has aborted.
func (e *Engine) Aborted() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.IsProtocolAborted
}

// Metrics summarizes the current state.
func (e *Engine) Metrics() Metrics {
	e.mu.Lock()
	defer e.mu.Unlock()
	return computeMetrics(e.state, e.cfg, e.step)
}

// NextStep advances one step.
func (e *Engine) NextStep() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.next()
}

func (e *Engine) next() error {
	if e.step >= NumSteps-1 {
		return fmt.Errorf("%w: already at the final step", ErrPrecondition)
	}
	return e.goTo(e.step + 1)
}

// PrevStep moves back one step, restoring that step's snapshot.
func (e *Engine) PrevStep() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.step == 0 {
		return fmt.Errorf("%w: already at the first step", ErrPrecondition)
	}
	return e.goTo(e.step - 1)
}

// GoToStep jumps to step. Moving forward computes every intermediate step in
// order and stops at the first one that fails; moving backward restores the
// target's snapshot.
func (e *Engine) GoToStep(step int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.goTo(step)
}

func (e *Engine) goTo(target int) error {
	if target < 0 || target >= NumSteps {
		return fmt.Errorf("%w: %d", ErrOutOfRange, target)
	}
	if target > e.step && e.state.IsProtocolAborted {
		return fmt.Errorf("%w: %s; reset to start over", ErrAborted, e.state.abortString())
	}
	if target <= e.step {
		if h := e.history[target]; h != nil && target < e.step {
			e.restore(h)
			e.step = target
			return nil
		}
		return e.enter(target)
	}
	for e.step < target {
		if err := e.enter(e.step + 1); err != nil {
			return err
		}
	}
	return nil
}

// restore replaces the live state with a copy of snap. The abort flag stays
// set once raised.
func (e *Engine) restore(snap *ProtocolState) {
	aborted, reason := e.state.IsProtocolAborted, e.state.AbortReason
	e.state = snap.Clone()
	if aborted && !e.state.IsProtocolAborted {
		e.state.IsProtocolAborted = true
		e.state.AbortReason = reason
	}
}

// enter makes step current, reusing its snapshot when moving forward onto a
// step computed before and computing it otherwise.
func (e *Engine) enter(step int) error {
	if h := e.history[step]; h != nil && step > e.step {
		e.restore(h)
		e.step = step
		return nil
	}

	work := e.state.Clone()
	ns, err := runStep(step, work, e.cfg, &e.src)
	for _, n := range ns {
		e.events.add(n.level, step, n.msg)
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrAborted):
		e.state = work
		e.step = step
		e.history[step] = work.Clone()
		e.autoPlay = false
		e.events.add(LevelError, step, "Protocol aborted: "+work.abortString())
		return err
	case errors.Is(err, ErrPrecondition):
		e.events.add(LevelWarning, step, err.Error())
		return err
	default:
		e.events.add(LevelError, step, err.Error())
		return err
	}
	e.state = work
	e.step = step
	if e.history[step] == nil {
		e.history[step] = work.Clone()
	}
	return nil
}

// Reset discards all state, history and events and returns to step 0 under a
// new session.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.state = NewState()
	e.history = [NumSteps]*ProtocolState{}
	e.history[StepIntro] = e.state.Clone()
	e.step = StepIntro
	e.autoPlay = false
	e.session = uuid.NewString()
	e.events.clear()
	e.events.add(LevelInfo, StepIntro, "Simulation reset")
}

// ApplyEveAttack has Eve intercept, measure and resend the channel qubits at
// indices. It is only possible while the qubits are in flight (StepChannel).
// On success the step's snapshot is replaced and every later snapshot is
// dropped, since they no longer follow from the channel contents. It returns
// the number of qubits attacked.
func (e *Engine) ApplyEveAttack(indices []int, p eve.Policy) (int, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.IsProtocolAborted {
		return 0, fmt.Errorf("%w: %s", ErrAborted, e.state.abortString())
	}
	if e.step != StepChannel {
		return 0, fmt.Errorf("%w: Eve can only attack during step %d (%s), current step is %d",
			ErrPrecondition, StepChannel, StepName(StepChannel), e.step)
	}
	if len(e.state.ChannelQubits) == 0 {
		return 0, fmt.Errorf("%w: the channel is empty", ErrPrecondition)
	}
	out, records, err := eve.Attack(e.state.ChannelQubits, indices, p, e.src.rand)
	if err != nil {
		if errors.Is(err, eve.ErrOutOfRange) {
			err = fmt.Errorf("%w: %v", ErrOutOfRange, err)
		}
		e.events.add(LevelWarning, e.step, err.Error())
		return 0, err
	}
	e.state.ChannelQubits = out
	for i, r := range records {
		e.state.EveAttacks[i] = r
	}
	e.state.clearFrom(StepBobMeasure)
	e.history[StepChannel] = e.state.Clone()
	for s := StepChannel + 1; s < NumSteps; s++ {
		e.history[s] = nil
	}
	e.events.add(LevelWarning, e.step, fmt.Sprintf("Eve intercepted %d qubits (%s basis, %d total)",
		len(records), p, len(e.state.EveAttacks)))
	return len(records), nil
}

// AttackFraction has Eve intercept a random fraction of the channel.
func (e *Engine) AttackFraction(fraction float64, p eve.Policy) (int, error) {
	e.mu.Lock()
	n := len(e.state.ChannelQubits)
	indices := eve.SelectTargets(n, fraction, e.src.rand)
	e.mu.Unlock()
	return e.ApplyEveAttack(indices, p)
}

// CanApplyConfigChange reports whether key may change from oldValue to
// newValue given the current state. Parameters that shaped data already
// generated are locked until Reset.
func (e *Engine) CanApplyConfigChange(key, oldValue, newValue string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.canApply(key, oldValue, newValue)
}

func (e *Engine) canApply(key, oldValue, newValue string) bool {
	if oldValue == newValue {
		return true
	}
	s := e.state
	switch key {
	case KeyN, KeyDelta:
		return len(s.AliceBits) == 0 && e.history[StepAliceBits] == nil
	case KeyEveCheckSubsetLen, KeyMaxEveCheckErrors:
		return s.EveCheckLength == 0 && len(s.EveCheckIndices) == 0 && e.history[StepEveCheck] == nil
	case KeyExtractor:
		return len(s.FinalKey) == 0 && e.history[StepKey] == nil
	case KeyAutoPlayInterval:
		return true
	}
	return false
}

// ApplyConfigChange parses value and sets key, if CanApplyConfigChange allows
// it.
func (e *Engine) ApplyConfigChange(key, value string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	next, err := e.cfg.with(key, value)
	if err != nil {
		return err
	}
	old, nv := e.cfg.get(key), next.get(key)
	if !e.canApply(key, old, nv) {
		err := fmt.Errorf("%w: %s cannot change from %s to %s once it has been used; reset first",
			ErrPrecondition, key, old, nv)
		e.events.add(LevelWarning, e.step, err.Error())
		return err
	}
	e.cfg = next
	if old != nv {
		e.events.add(LevelInfo, e.step, fmt.Sprintf("Set %s to %s", key, nv))
	}
	return nil
}

// ConfigKeys lists the keys ApplyConfigChange accepts.
func ConfigKeys() []string {
	keys := []string{KeyN, KeyDelta, KeyEveCheckSubsetLen, KeyMaxEveCheckErrors, KeyExtractor, KeyAutoPlayInterval}
	sort.Strings(keys)
	return keys
}

// ConfigValue renders the current value of key.
func (e *Engine) ConfigValue(key string) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.cfg.get(key)
	if v == "" {
		return "", fmt.Errorf("unknown config key %q (want one of %s)", key, strings.Join(ConfigKeys(), ", "))
	}
	return v, nil
}

// StartAutoPlay arms automatic advancement; each Tick then moves one step.
func (e *Engine) StartAutoPlay() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state.IsProtocolAborted {
		return fmt.Errorf("%w: %s", ErrAborted, e.state.abortString())
	}
	if e.step >= NumSteps-1 {
		return fmt.Errorf("%w: already at the final step", ErrPrecondition)
	}
	e.autoPlay = true
	e.events.add(LevelInfo, e.step, "Auto-play started")
	return nil
}

// StopAutoPlay disarms automatic advancement.
func (e *Engine) StopAutoPlay() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.autoPlay {
		e.autoPlay = false
		e.events.add(LevelInfo, e.step, "Auto-play stopped")
	}
}

// AutoPlaying reports whether auto-play is armed.
func (e *Engine) AutoPlaying() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.autoPlay
}

// Tick advances one step if auto-play is armed. Auto-play disarms itself on
// reaching the final step or on any error. more reports whether it is still
// armed.
func (e *Engine) Tick() (more bool, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.autoPlay {
		return false, nil
	}
	if err := e.next(); err != nil {
		e.autoPlay = false
		return false, err
	}
	if e.step >= NumSteps-1 {
		e.autoPlay = false
		e.events.add(LevelInfo, e.step, "Auto-play finished")
	}
	return e.autoPlay, nil
}

// RunAutoPlay starts auto-play and ticks once per configured interval until
// the final step, an error, StopAutoPlay, or ctx is done.
func (e *Engine) RunAutoPlay(ctx context.Context) error {
	if err := e.StartAutoPlay(); err != nil {
		return err
	}
	t := time.NewTicker(e.Config().autoPlayInterval())
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			e.StopAutoPlay()
			return ctx.Err()
		case <-t.C:
			more, err := e.Tick()
			if err != nil || !more {
				return err
			}
		}
	}
}
