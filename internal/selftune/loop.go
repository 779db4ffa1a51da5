package selftune

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"
)

// Loop drives Cycles sequential steps over the stored state. The state is
// loaded once before the first cycle and saved once after the last.
type Loop struct {
	Store  *Store
	Rand   RandSource
	Cycles int

	// Pace runs between cycles; nil means no delay.
	Pace func(ctx context.Context) error

	// OnCycle observes each outcome as it happens.
	OnCycle func(CycleOutcome)
}

type Report struct {
	Start    State
	Final    State
	Outcomes []CycleOutcome
	Resumed  bool
}

func NewLoop(store *Store, cycles int) *Loop {
	return &Loop{
		Store:  store,
		Rand:   rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		Cycles: cycles,
	}
}

// Sleep returns a Pace func that waits d or until ctx is done.
func Sleep(d time.Duration) func(ctx context.Context) error {
	return func(ctx context.Context) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-t.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Run executes the loop. A cancelled context stops it between cycles; the
// completed cycles are still saved and the context error is returned.
func (l *Loop) Run(ctx context.Context) (*Report, error) {
	st := l.Store.Load()
	rep := &Report{Start: st, Resumed: st.Cycle > 0}
	rep.Outcomes = make([]CycleOutcome, 0, l.Cycles)

	var stopErr error
	for i := 0; i < l.Cycles; i++ {
		if err := ctx.Err(); err != nil {
			stopErr = err
			break
		}
		var out CycleOutcome
		out, st = Step(st, l.Rand)
		rep.Outcomes = append(rep.Outcomes, out)
		if l.OnCycle != nil {
			l.OnCycle(out)
		}
		if l.Pace != nil && i < l.Cycles-1 {
			if err := l.Pace(ctx); err != nil {
				stopErr = err
				break
			}
		}
	}

	rep.Final = st
	if err := l.Store.Save(st); err != nil {
		return rep, err
	}
	if stopErr != nil {
		return rep, fmt.Errorf("selftune interrupted after %d cycles: %w", len(rep.Outcomes), stopErr)
	}
	return rep, nil
}
