package selftune

import "math"

type Mode string

const (
	ModeExploring Mode = "exploring"
	ModeOptimized Mode = "optimized"
)

// GoodThreshold is the performance a cycle must exceed to count as good.
const GoodThreshold = 0.7

// RandSource yields uniform draws in [0, 1). *rand.Rand satisfies it.
type RandSource interface {
	Float64() float64
}

// CycleOutcome describes one decision cycle. It is never persisted.
type CycleOutcome struct {
	Cycle       int
	Mode        Mode
	Performance float64
	Good        bool
	TuningNext  float64
}

func (o CycleOutcome) Status() string {
	if o.Good {
		return "good"
	}
	return "poor"
}

// Step runs one epsilon-greedy cycle. The tuning value is the exploration
// probability: a good optimized cycle shrinks it by 5%, a poor cycle of
// either mode adds 0.05, and a good exploring cycle leaves it alone.
func Step(st State, rng RandSource) (CycleOutcome, State) {
	tuning := st.TuningValue
	exploring := rng.Float64() < tuning

	mode := ModeOptimized
	lo, hi := 0.2, 1.0
	if exploring {
		mode = ModeExploring
		lo, hi = 0.0, 0.8
	}
	performance := lo + (hi-lo)*rng.Float64()
	good := performance > GoodThreshold

	switch {
	case good && !exploring:
		tuning = math.Max(MinTuning, tuning*0.95)
	case !good:
		tuning = math.Min(MaxTuning, tuning+0.05)
	}
	tuning = round3(tuning)

	next := State{Cycle: st.Cycle + 1, TuningValue: tuning}
	return CycleOutcome{
		Cycle:       next.Cycle,
		Mode:        mode,
		Performance: round3(performance),
		Good:        good,
		TuningNext:  tuning,
	}, next
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return DefaultTuning
	}
	return math.Min(MaxTuning, math.Max(MinTuning, v))
}
