package repository

import (
	"context"
	"database/sql"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

const jobsetUnitColumns = "id, jobset_id, unit_id, fixed_index, has_conditionals, blocked, coders"

// FindJobSetUnitByFixedIndex looks up the membership row for a FixedSet
// pre/post slot.
func (r *Repository) FindJobSetUnitByFixedIndex(ctx context.Context, jobsetID int64, fixedIndex int) (*schema.JobSetUnit, error) {
	var jsu schema.JobSetUnit
	err := r.DB.GetContext(ctx, &jsu,
		`SELECT `+jobsetUnitColumns+` FROM jobsetunits WHERE jobset_id = ? AND fixed_index = ?`,
		jobsetID, fixedIndex)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("no unit at that fixed index")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &jsu, nil
}

// FindJobSetUnit looks up the membership row for a given (jobset, unit) pair.
func (r *Repository) FindJobSetUnit(ctx context.Context, jobsetID, unitID int64) (*schema.JobSetUnit, error) {
	var jsu schema.JobSetUnit
	err := r.DB.GetContext(ctx, &jsu,
		`SELECT `+jobsetUnitColumns+` FROM jobsetunits WHERE jobset_id = ? AND unit_id = ?`,
		jobsetID, unitID)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("unit is not a member of this jobset")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &jsu, nil
}

// ListJobSetUnits returns every membership row for a jobset, in
// fixed_index order (nulls last).
func (r *Repository) ListJobSetUnits(ctx context.Context, jobsetID int64) ([]schema.JobSetUnit, error) {
	var units []schema.JobSetUnit
	err := r.DB.SelectContext(ctx, &units,
		`SELECT `+jobsetUnitColumns+` FROM jobsetunits
		 WHERE jobset_id = ? ORDER BY (fixed_index IS NULL), fixed_index, id`, jobsetID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return units, nil
}

// ListUnitsInJobset returns the units bound to a jobset in the order
// FixedSet serves them in: pre units by fixed_index, then unpositioned
// units in insertion order, then post units (negative fixed_index).
func (r *Repository) ListUnitsInJobset(ctx context.Context, jobsetID int64) ([]schema.Unit, error) {
	var units []schema.Unit
	err := r.DB.SelectContext(ctx, &units, `
		SELECT u.id, u.codingjob_id, u.external_id, u.content, u.conditionals, u.unit_type, u.position
		FROM jobsetunits ju JOIN units u ON u.id = ju.unit_id
		WHERE ju.jobset_id = ?
		ORDER BY CASE WHEN ju.fixed_index >= 0 THEN 0 WHEN ju.fixed_index IS NULL THEN 1 ELSE 2 END,
		         ju.fixed_index, ju.id`, jobsetID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	for i := range units {
		if units[i].Content, err = r.resolveArchived(ctx, units[i].Content); err != nil {
			return nil, apierror.Internal(err)
		}
	}
	return units, nil
}

// CountJobSetUnits returns the number of units bound to a jobset, used by
// FixedSet's n_total.
func (r *Repository) CountJobSetUnits(ctx context.Context, jobsetID int64) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM jobsetunits WHERE jobset_id = ?`, jobsetID); err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}

// CountEligibleJobSetUnits returns the number of non-blocked units in a
// jobset, CrowdCoding's n_total: blocked units shrink
// the pool for every coder, including ones who already joined.
func (r *Repository) CountEligibleJobSetUnits(ctx context.Context, jobsetID int64) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM jobsetunits WHERE jobset_id = ? AND blocked = 0`, jobsetID); err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}

// SetBlocked flips the blocked flag on a jobsetunit, the effect of a
// "block" conditional action: the unit is removed
// from future CrowdCoding candidate pools but existing annotations stand.
func (r *Repository) SetBlocked(ctx context.Context, jobsetUnitID int64, blocked bool) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE jobsetunits SET blocked = ? WHERE id = ?`, blocked, jobsetUnitID)
	if err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// UpdateCoderCount recomputes and stores the number of distinct coders
// who have touched a unit within its jobset, used for progress/Q-A
// display.
func (r *Repository) UpdateCoderCount(ctx context.Context, jobsetID, unitID int64) error {
	_, err := r.DB.ExecContext(ctx, `
		UPDATE jobsetunits SET coders = (
			SELECT COUNT(DISTINCT coder_id) FROM annotations WHERE unit_id = ? AND jobset_id = ?
		) WHERE jobset_id = ? AND unit_id = ?`, unitID, jobsetID, jobsetID, unitID)
	if err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// FindLeastCodedUnit selects, among a jobset's non-blocked units the
// coder has not yet annotated, the one with the fewest annotations from
// other coders — the crowd-coding strategy's "least coded, uncoded by
// me" candidate.
func (r *Repository) FindLeastCodedUnit(ctx context.Context, jobsetID, coderID int64) (*schema.Unit, error) {
	var u schema.Unit
	err := r.DB.GetContext(ctx, &u, `
		SELECT u.id, u.codingjob_id, u.external_id, u.content, u.conditionals, u.unit_type, u.position
		FROM jobsetunits ju
		JOIN units u ON u.id = ju.unit_id
		LEFT JOIN annotations a ON a.unit_id = ju.unit_id AND a.jobset_id = ju.jobset_id
		WHERE ju.jobset_id = ? AND ju.blocked = 0
		  AND NOT EXISTS (
		    SELECT 1 FROM annotations a2
		    WHERE a2.unit_id = ju.unit_id AND a2.jobset_id = ju.jobset_id AND a2.coder_id = ?
		  )
		GROUP BY u.id
		ORDER BY COUNT(a.id), ju.id
		LIMIT 1`, jobsetID, coderID)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("no eligible unit left")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &u, nil
}

// AnnotationCountsByUnit returns, for every unit in a jobset, how many
// coders have an annotation on it — used for Q/A displays of coding
// coverage.
func (r *Repository) AnnotationCountsByUnit(ctx context.Context, jobsetID int64) (map[int64]int, error) {
	rows, err := r.DB.QueryContext(ctx, `
		SELECT ju.unit_id, COUNT(a.id)
		FROM jobsetunits ju
		LEFT JOIN annotations a ON a.unit_id = ju.unit_id AND a.jobset_id = ju.jobset_id
		WHERE ju.jobset_id = ? AND ju.blocked = 0
		GROUP BY ju.unit_id`, jobsetID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var unitID int64
		var n int
		if err := rows.Scan(&unitID, &n); err != nil {
			return nil, apierror.Internal(err)
		}
		counts[unitID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, apierror.Internal(err)
	}
	return counts, nil
}
