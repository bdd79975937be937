package bb84

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// SnapshotVersion is written into every exported Snapshot. Imports accept any
// version with the same major number.
const SnapshotVersion = "1.0"

// A Snapshot is a self-contained, serializable copy of an Engine: its state,
// its per-step history and the configuration that produced them.
type Snapshot struct {
	Version     string           `json:"version"`
	Timestamp   time.Time        `json:"timestamp"`
	Session     string           `json:"session,omitempty"`
	CurrentStep int              `json:"currentStep"`
	State       *ProtocolState   `json:"state"`
	StepHistory []*ProtocolState `json:"stepHistory"`
	Config      Config           `json:"config"`
}

// Snapshot returns a deep copy of the engine's current contents.
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	snap := Snapshot{
		Version:     SnapshotVersion,
		Timestamp:   e.clock().UTC(),
		Session:     e.session,
		CurrentStep: e.step,
		State:       e.state.Clone(),
		StepHistory: make([]*ProtocolState, NumSteps),
		Config:      e.cfg,
	}
	for i, h := range e.history {
		snap.StepHistory[i] = h.Clone()
	}
	return snap
}

// ExportState serializes the engine as indented JSON.
func (e *Engine) ExportState() ([]byte, error) {
	snap := e.Snapshot()
	b, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding snapshot: %w", err)
	}
	e.mu.Lock()
	e.events.add(LevelInfo, e.step, fmt.Sprintf("Exported state (%d bytes)", len(b)))
	e.mu.Unlock()
	return b, nil
}

// ParseSnapshot decodes and validates a JSON snapshot produced by
// ExportState. Config keys absent from data keep their DefaultConfig values.
func ParseSnapshot(data []byte) (Snapshot, error) {
	snap := Snapshot{Config: DefaultConfig()}
	if err := json.Unmarshal(data, &snap); err != nil {
		return Snapshot{}, fmt.Errorf("decoding snapshot: %w", err)
	}
	if err := snap.normalize(); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// normalize allocates missing state and rejects snapshots that cannot be
// loaded.
func (s *Snapshot) normalize() error {
	if s.Version != "" && majorVersion(s.Version) != majorVersion(SnapshotVersion) {
		return fmt.Errorf("unsupported snapshot version %q, want %s", s.Version, SnapshotVersion)
	}
	if s.CurrentStep < 0 || s.CurrentStep >= NumSteps {
		return fmt.Errorf("snapshot step %d: %w", s.CurrentStep, ErrOutOfRange)
	}
	if err := s.Config.Validate(); err != nil {
		return fmt.Errorf("snapshot config: %w", err)
	}
	if s.State == nil {
		s.State = NewState()
	}
	s.State.repair()
	hist := make([]*ProtocolState, NumSteps)
	copy(hist, s.StepHistory)
	for _, h := range hist {
		if h != nil {
			h.repair()
		}
	}
	s.StepHistory = hist
	return nil
}

func majorVersion(v string) string {
	major, _, _ := strings.Cut(v, ".")
	return major
}

// ImportState replaces the engine's contents with a JSON snapshot produced by
// ExportState.
func (e *Engine) ImportState(data []byte) error {
	snap, err := ParseSnapshot(data)
	if err != nil {
		return err
	}
	return e.Restore(snap)
}

// Restore replaces the engine's contents with snap and recomputes the current
// step, so anything missing from the snapshot is regenerated. On error the
// engine is left unchanged.
func (e *Engine) Restore(snap Snapshot) error {
	if err := snap.normalize(); err != nil {
		return err
	}
	e.mu.Lock()
	defer e.mu.Unlock()

	prev := struct {
		cfg     Config
		state   *ProtocolState
		history [NumSteps]*ProtocolState
		step    int
		session string
	}{e.cfg, e.state, e.history, e.step, e.session}

	e.cfg = snap.Config
	e.state = snap.State.Clone()
	for i := range e.history {
		e.history[i] = snap.StepHistory[i].Clone()
	}
	e.step = snap.CurrentStep
	e.autoPlay = false
	if snap.Session != "" {
		e.session = snap.Session
	}

	if err := e.enter(snap.CurrentStep); err != nil && !errors.Is(err, ErrAborted) {
		e.cfg, e.state, e.history, e.step, e.session =
			prev.cfg, prev.state, prev.history, prev.step, prev.session
		return fmt.Errorf("resyncing imported state: %w", err)
	}
	e.events.add(LevelInfo, e.step, fmt.Sprintf("Imported state from %s at step %d",
		snap.Timestamp.Format(time.RFC3339), snap.CurrentStep))
	return nil
}
