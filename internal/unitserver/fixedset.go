package unitserver

import (
	"context"

	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// fixedSet serves units in upload order: the same sequence for every
// coder, except that unpositioned units may be shuffled per-coder when
// Rules.randomize is set.
type fixedSet struct {
	*Server
}

func (f *fixedSet) nextUnit(ctx context.Context) (*schema.Unit, int, error) {
	unit, idx, err := f.getUnitWithStatus(ctx, startedOrInProgress)
	if err != nil {
		return nil, 0, err
	}
	if unit != nil {
		return unit, idx, nil
	}

	idx, err = f.repo.CountStarted(ctx, f.job.ID, f.coder.ID)
	if err != nil {
		return nil, 0, err
	}
	unit, err = f.getUnit(ctx, idx)
	if err != nil {
		return nil, 0, err
	}
	return unit, idx, nil
}

func (f *fixedSet) seekUnit(ctx context.Context, index int) (*schema.Unit, int, error) {
	coded, err := f.repo.CountCodedExcludingInProgress(ctx, f.job.ID, f.coder.ID)
	if err != nil {
		return nil, 0, err
	}
	if index < 0 || (index >= coded && !f.CanSeekForwards()) {
		return f.nextUnit(ctx)
	}

	unit, err := f.getStartedUnit(ctx, index)
	if err != nil {
		return nil, 0, err
	}
	if unit != nil {
		return unit, index, nil
	}

	if !f.CanSeekForwards() {
		return nil, index, nil
	}
	unit, err = f.getUnit(ctx, index)
	if err != nil {
		return nil, 0, err
	}
	return unit, index, nil
}

func (f *fixedSet) nTotal(ctx context.Context) (int, error) {
	return f.repo.CountJobSetUnits(ctx, f.jobset.ID)
}

// getUnit returns the unit at a coder-facing index, applying the
// randomize permutation only within the range of unpositioned ("none")
// units: pre/post fixed-index units always stay at their slot.
func (f *fixedSet) getUnit(ctx context.Context, index int) (*schema.Unit, error) {
	units, err := f.repo.ListUnitsInJobset(ctx, f.jobset.ID)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(units) {
		return nil, nil
	}
	if !f.jobset.Rules.Randomize {
		return &units[index], nil
	}

	start, end := unpositionedRange(units)
	if index < start || index >= end {
		return &units[index], nil
	}
	mapping := shuffledIndices(f.coder.ID, end-start)
	return &units[start+mapping[index-start]], nil
}

// unpositionedRange returns the [start, end) slice bounds of units with
// Position == none, assuming the caller's slice is ordered pre, none,
// post (the order ListUnitsInJobset returns).
func unpositionedRange(units []schema.Unit) (int, int) {
	start, end := 0, 0
	for i, u := range units {
		if u.Position == schema.PositionNone {
			if start == end {
				start = i
			}
			end = i + 1
		}
	}
	return start, end
}
