package unitserver

import (
	"context"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// crowdCoding determines unit order by what other coders have (not) yet
// done: pre/post positional units still keep their fixed slot, but
// unpositioned units are handed out least-coded-first.
type crowdCoding struct {
	*Server
}

func (c *crowdCoding) nextUnit(ctx context.Context) (*schema.Unit, int, error) {
	unit, idx, err := c.getUnitWithStatus(ctx, startedOrInProgress)
	if err != nil {
		return nil, 0, err
	}
	if unit != nil {
		return unit, idx, nil
	}

	idx, err = c.repo.CountStarted(ctx, c.job.ID, c.coder.ID)
	if err != nil {
		return nil, 0, err
	}

	nTotal, err := c.nTotal(ctx)
	if err != nil {
		return nil, 0, err
	}
	if idx >= nTotal {
		return nil, idx, nil
	}

	if unit, err = c.getFixedIndexUnit(ctx, idx, nTotal); err != nil {
		return nil, 0, err
	}
	if unit != nil {
		return unit, idx, nil
	}

	unit, err = c.repo.FindLeastCodedUnit(ctx, c.jobset.ID, c.coder.ID)
	if apierror.Is(err, apierror.KindNotFound) {
		return nil, idx, nil
	}
	if err != nil {
		return nil, 0, err
	}
	return unit, idx, nil
}

func (c *crowdCoding) seekUnit(ctx context.Context, index int) (*schema.Unit, int, error) {
	coded, err := c.repo.CountCodedExcludingInProgress(ctx, c.job.ID, c.coder.ID)
	if err != nil {
		return nil, 0, err
	}
	if index < 0 || index >= coded {
		return c.nextUnit(ctx)
	}

	nTotal, err := c.nTotal(ctx)
	if err != nil {
		return nil, 0, err
	}
	if index >= nTotal {
		return nil, index, nil
	}

	// Seeking forward is impossible in CrowdCoding: the next unit is
	// decided by what the crowd has done, so only already-started units
	// can be revisited.
	unit, err := c.getStartedUnit(ctx, index)
	if err != nil {
		return nil, 0, err
	}
	return unit, index, nil
}

func (c *crowdCoding) nTotal(ctx context.Context) (int, error) {
	n, err := c.repo.CountEligibleJobSetUnits(ctx, c.jobset.ID)
	if err != nil {
		return 0, err
	}
	if max := c.jobset.Rules.UnitsPerCoder; max != nil && *max < n {
		n = *max
	}
	return n, nil
}
