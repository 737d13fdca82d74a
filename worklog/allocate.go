package worklog

import (
	"time"

	"github.com/shopspring/decimal"
)

// =============================================================================
// HOUR ALLOCATOR
// =============================================================================

// DistributionMode selects how a budget is split across targets.
type DistributionMode string

const (
	ModeSingle   DistributionMode = "single"
	ModeEqual    DistributionMode = "equal"
	ModeWeighted DistributionMode = "weighted"
)

// Target is one allocation recipient: a work item key with an optional
// nominal hour weight used by ModeWeighted.
type Target struct {
	Key    string
	Weight decimal.Decimal
}

// Allocation is one computed (target, duration) pair.
type Allocation struct {
	Target   string
	Duration time.Duration
}

// Allocate splits total across targets so the returned durations sum to
// total exactly. The ledger's granularity is one second, so all arithmetic
// happens on whole seconds and the integer-division remainder always lands
// on the LAST target in configuration order. Targets whose computed share is
// zero are omitted; their budget is already carried by the remainder rule.
//
//	single:   everything to targets[0]
//	equal:    total div N each, remainder on the last
//	weighted: proportional to Weight, truncated, last target absorbs the
//	          difference; a non-positive weight sum degrades to equal
//
// A zero total returns an empty allocation. Zero targets, negative totals,
// sub-second totals and negative weights are ValidationErrors, rejected
// before any arithmetic.
func Allocate(total time.Duration, targets []Target, mode DistributionMode) ([]Allocation, error) {
	if len(targets) == 0 {
		return nil, &ValidationError{Field: "targets", Message: "no allocation targets"}
	}
	if total < 0 {
		return nil, &ValidationError{Field: "total", Message: "negative duration"}
	}
	if total%time.Second != 0 {
		return nil, &ValidationError{Field: "total", Message: "must be whole seconds"}
	}
	for _, t := range targets {
		if t.Weight.IsNegative() {
			return nil, &ValidationError{Field: "weight", Message: "negative weight for " + t.Key}
		}
	}
	if total == 0 {
		return nil, nil
	}

	totalSec := int64(total / time.Second)
	var shares []int64

	switch mode {
	case ModeSingle:
		return []Allocation{{Target: targets[0].Key, Duration: total}}, nil
	case ModeWeighted:
		shares = weightedShares(totalSec, targets)
	case ModeEqual:
		shares = equalShares(totalSec, len(targets))
	default:
		return nil, &ValidationError{Field: "mode", Message: "unknown distribution mode " + string(mode)}
	}

	out := make([]Allocation, 0, len(targets))
	for i, sec := range shares {
		if sec <= 0 {
			continue
		}
		out = append(out, Allocation{Target: targets[i].Key, Duration: time.Duration(sec) * time.Second})
	}
	return out, nil
}

func equalShares(totalSec int64, n int) []int64 {
	per := totalSec / int64(n)
	shares := make([]int64, n)
	for i := range shares {
		shares[i] = per
	}
	shares[n-1] = totalSec - per*int64(n-1)
	return shares
}

func weightedShares(totalSec int64, targets []Target) []int64 {
	sum := decimal.Zero
	for _, t := range targets {
		sum = sum.Add(t.Weight)
	}
	if !sum.IsPositive() {
		return equalShares(totalSec, len(targets))
	}

	total := decimal.NewFromInt(totalSec)
	shares := make([]int64, len(targets))
	var used int64
	for i, t := range targets {
		if i == len(targets)-1 {
			shares[i] = totalSec - used
			break
		}
		shares[i] = total.Mul(t.Weight).Div(sum).IntPart()
		used += shares[i]
	}
	return shares
}
