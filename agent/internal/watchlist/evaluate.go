package watchlist

import (
	"sort"
	"time"

	"mint-sniper/agent/internal/models"
)

// Step sets the minimum growth ratio for entries up to UpTo old.
type Step struct {
	UpTo     time.Duration `mapstructure:"up_to"`
	MinRatio float64       `mapstructure:"min_ratio"`
}

// Thresholds is a stepwise ratio schedule; After applies past the last step.
type Thresholds struct {
	Steps []Step  `mapstructure:"steps"`
	After float64 `mapstructure:"after"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{
		Steps: []Step{
			{UpTo: 20 * time.Second, MinRatio: 1.05},
			{UpTo: 40 * time.Second, MinRatio: 1.07},
		},
		After: 1.09,
	}
}

// MinRatioAt returns the bar for an entry that has been tracked for elapsed.
func (t Thresholds) MinRatioAt(elapsed time.Duration) float64 {
	steps := append([]Step(nil), t.Steps...)
	sort.Slice(steps, func(i, j int) bool { return steps[i].UpTo < steps[j].UpTo })
	for _, s := range steps {
		if elapsed <= s.UpTo {
			return s.MinRatio
		}
	}
	return t.After
}

type Outcome int

const (
	// Stagnant: cap did not rise since the previous observation.
	Stagnant Outcome = iota
	BelowThreshold
	Trigger
)

func (o Outcome) String() string {
	switch o {
	case Stagnant:
		return "stagnant"
	case BelowThreshold:
		return "below_threshold"
	case Trigger:
		return "trigger"
	}
	return "unknown"
}

type Decision struct {
	Outcome   Outcome
	Ratio     float64
	Threshold float64
	Elapsed   time.Duration
}

// Evaluate decides what a fresh cap observation means for entry.
func Evaluate(entry models.WatchlistEntry, currentMcap float64, now time.Time, t Thresholds) Decision {
	elapsed := now.Sub(entry.AddedAt)
	d := Decision{
		Threshold: t.MinRatioAt(elapsed),
		Elapsed:   elapsed,
	}
	if entry.BaselineMarketCap > 0 {
		d.Ratio = currentMcap / entry.BaselineMarketCap
	}

	if currentMcap <= entry.PreviousMarketCap {
		d.Outcome = Stagnant
		return d
	}
	if entry.BaselineMarketCap > 0 && d.Ratio >= d.Threshold {
		d.Outcome = Trigger
		return d
	}
	d.Outcome = BelowThreshold
	return d
}
