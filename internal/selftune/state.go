package selftune

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/PAXECT-Interface/paxect-harness/internal/result"
)

const (
	MinTuning     = 0.05
	MaxTuning     = 0.5
	DefaultTuning = 0.3
)

// State is the tuning progress persisted between invocations.
type State struct {
	Cycle       int     `json:"cycle"`
	TuningValue float64 `json:"tuning_value"`
}

func DefaultState() State {
	return State{Cycle: 0, TuningValue: DefaultTuning}
}

// Store reads and writes State at a single path. It assumes one writer;
// concurrent runs race and the last save wins.
type Store struct {
	Path string
	Log  zerolog.Logger
}

func NewStore(path string, log zerolog.Logger) *Store {
	return &Store{Path: path, Log: log}
}

func (s *Store) Exists() bool {
	_, err := os.Stat(s.Path)
	return err == nil
}

// Load returns the saved state, or the default when the file is missing or
// unreadable. Values outside the valid range are clamped.
func (s *Store) Load() State {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.Log.Debug().Err(err).Str("path", s.Path).Msg("unreadable selftune state, starting fresh")
		}
		return DefaultState()
	}
	var raw struct {
		Cycle       *int     `json:"cycle"`
		TuningValue *float64 `json:"tuning_value"`
	}
	if err := json.Unmarshal(data, &raw); err != nil || raw.Cycle == nil || raw.TuningValue == nil {
		s.Log.Debug().Err(err).Str("path", s.Path).Msg("corrupt selftune state, starting fresh")
		return DefaultState()
	}
	st := State{Cycle: *raw.Cycle, TuningValue: clamp(*raw.TuningValue)}
	if st.Cycle < 0 {
		st.Cycle = 0
	}
	return st
}

// Save overwrites the state file with the complete document.
func (s *Store) Save(st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshaling selftune state: %w", err)
	}
	if err := result.WriteFileAtomic(s.Path, data, 0o644); err != nil {
		return fmt.Errorf("saving selftune state: %w", err)
	}
	return nil
}

func (s *Store) Reset() error {
	if err := os.Remove(s.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("removing selftune state: %w", err)
	}
	return nil
}
