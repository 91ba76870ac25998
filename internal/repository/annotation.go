package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// FindAnnotation looks up a coder's annotation on a unit via the
// (unit, coder) index; the unique constraint this also guards is
// annotations_unique_unit_coder.
func (r *Repository) FindAnnotation(ctx context.Context, unitID, coderID int64) (*schema.Annotation, error) {
	var a schema.Annotation
	err := r.DB.GetContext(ctx, &a, `
		SELECT id, codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, modified, annotation, damage, report
		FROM annotations WHERE unit_id = ? AND coder_id = ?`, unitID, coderID)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("no annotation for this unit and coder")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &a, nil
}

// FindAnnotationWithStatus returns the first (lowest id) annotation a
// coder has for a job matching one of the given statuses, used to find
// an IN_PROGRESS or RETRY unit that takes precedence over serving a
// fresh one.
func (r *Repository) FindAnnotationWithStatus(ctx context.Context, jobID, coderID int64, statuses []schema.AnnotationStatus) (*schema.Annotation, error) {
	if len(statuses) == 0 {
		return nil, apierror.NotFound("no statuses given")
	}
	query, args, err := sqlx.In(`
		SELECT id, codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, modified, annotation, damage, report
		FROM annotations WHERE codingjob_id = ? AND coder_id = ? AND status IN (?) ORDER BY id LIMIT 1`,
		jobID, coderID, statuses)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	query = r.DB.Rebind(query)

	var a schema.Annotation
	err = r.DB.GetContext(ctx, &a, query, args...)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("no annotation with that status")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &a, nil
}

// FindAnnotationByIndex returns a coder's annotation at a specific
// unit_index within a job, the lookup behind seeking to an already
// started unit.
func (r *Repository) FindAnnotationByIndex(ctx context.Context, jobID, coderID int64, index int) (*schema.Annotation, error) {
	var a schema.Annotation
	err := r.DB.GetContext(ctx, &a, `
		SELECT id, codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, modified, annotation, damage, report
		FROM annotations WHERE codingjob_id = ? AND coder_id = ? AND unit_index = ?`, jobID, coderID, index)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("no annotation at that index")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &a, nil
}

// CountStarted returns how many units (any status) a coder has started
// within a job, the denominator behind the "next" unit_index.
func (r *Repository) CountStarted(ctx context.Context, jobID, coderID int64) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM annotations WHERE codingjob_id = ? AND coder_id = ?`, jobID, coderID); err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}

// CountCodedExcludingInProgress counts a coder's annotations that have
// left the IN_PROGRESS state (DONE or RETRY both count), used as the
// forward-seek bound.
func (r *Repository) CountCodedExcludingInProgress(ctx context.Context, jobID, coderID int64) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM annotations WHERE codingjob_id = ? AND coder_id = ? AND status != ?`,
		jobID, coderID, schema.StatusInProgress)
	if err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}

// CountOtherCodersOnUnit returns how many coders other than excludeCoderID
// have an annotation on a unit within a jobset (count_coders in the
// original, minus the +1 for the current coder, which callers add).
func (r *Repository) CountOtherCodersOnUnit(ctx context.Context, jobsetID, unitID, excludeCoderID int64) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `
		SELECT COUNT(DISTINCT coder_id) FROM annotations WHERE jobset_id = ? AND unit_id = ? AND coder_id != ?`,
		jobsetID, unitID, excludeCoderID)
	if err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}

// ListAnnotationsByCoder returns every annotation a coder has within a
// jobset, in serve order.
func (r *Repository) ListAnnotationsByCoder(ctx context.Context, jobsetID, coderID int64) ([]schema.Annotation, error) {
	var annotations []schema.Annotation
	err := r.DB.SelectContext(ctx, &annotations, `
		SELECT id, codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, modified, annotation, damage, report
		FROM annotations WHERE jobset_id = ? AND coder_id = ? ORDER BY unit_index`, jobsetID, coderID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return annotations, nil
}

// ListAnnotationsByStatus finds a coder's annotations in a given status
// across all their jobs, e.g. locating in-progress work to resume.
func (r *Repository) ListAnnotationsByStatus(ctx context.Context, coderID int64, status schema.AnnotationStatus) ([]schema.Annotation, error) {
	var annotations []schema.Annotation
	err := r.DB.SelectContext(ctx, &annotations, `
		SELECT id, codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, modified, annotation, damage, report
		FROM annotations WHERE coder_id = ? AND status = ? ORDER BY modified DESC`, coderID, status)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return annotations, nil
}

// NextUnitIndex returns one past the highest unit_index a coder has been
// served within a jobset, the append point for CrowdCoding's next-unit
// allocation.
func (r *Repository) NextUnitIndex(ctx context.Context, jobsetID, coderID int64) (int, error) {
	var max sql.NullInt64
	err := r.DB.GetContext(ctx, &max, `SELECT MAX(unit_index) FROM annotations WHERE jobset_id = ? AND coder_id = ?`, jobsetID, coderID)
	if err != nil {
		return 0, apierror.Internal(err)
	}
	if !max.Valid {
		return 0, nil
	}
	return int(max.Int64) + 1, nil
}

// CountCoded returns how many DONE annotations a coder has submitted for
// a job. Progress reporting counts with CountCodedExcludingInProgress.
func (r *Repository) CountCoded(ctx context.Context, jobID, coderID int64) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM annotations WHERE codingjob_id = ? AND coder_id = ? AND status = ?`,
		jobID, coderID, schema.StatusDone)
	if err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}

// SumDamage returns a coder's accumulated damage within a jobset, used
// to cross-check jobusers.damage and to enforce MaxDamage.
func (r *Repository) SumDamage(ctx context.Context, jobsetID, coderID int64) (float64, error) {
	var sum sql.NullFloat64
	err := r.DB.GetContext(ctx, &sum, `SELECT SUM(damage) FROM annotations WHERE jobset_id = ? AND coder_id = ?`, jobsetID, coderID)
	if err != nil {
		return 0, apierror.Internal(err)
	}
	return sum.Float64, nil
}

// LastModified returns the most recent modification timestamp among a
// coder's annotations in a jobset, used by progress reporting.
func (r *Repository) LastModified(ctx context.Context, jobsetID, coderID int64) (sql.NullTime, error) {
	var t sql.NullTime
	err := r.DB.GetContext(ctx, &t, `SELECT MAX(modified) FROM annotations WHERE jobset_id = ? AND coder_id = ?`, jobsetID, coderID)
	if err != nil {
		return sql.NullTime{}, apierror.Internal(err)
	}
	return t, nil
}

// ReserveAnnotation inserts a provisional row for (unit, coder) — status
// IN_PROGRESS, empty payload, zero damage, the given unit_index — if none
// exists yet, and leaves any existing row untouched otherwise. Serve calls
// this the moment it hands a coder a fresh unit, so the row exists before
// the coder ever submits: CrowdCoding's least-coded ranking
// (FindLeastCodedUnit) sees the reservation immediately, and a coder who
// abandons the session still has an IN_PROGRESS row to resume into.
func (r *Repository) ReserveAnnotation(ctx context.Context, a schema.Annotation) error {
	_, err := r.DB.ExecContext(ctx, `
		INSERT INTO annotations (codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, annotation, damage, report, modified)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(unit_id, coder_id) DO NOTHING`,
		a.CodingJobID, a.UnitID, a.CoderID, a.JobSetID, a.UnitIndex, a.Status, valueOrNil(a.Payload), a.Damage, valueOrNil(a.Report))
	if err != nil {
		return wrapWriteErr(err)
	}
	return nil
}

// UpsertAnnotation is C5's write path on submission: it overwrites the
// payload/status/damage/report for (unit_id, coder_id), creating the row
// if ReserveAnnotation hasn't already (e.g. a FixedSet coder submitting
// without CrowdCoding's reserve-on-serve race to guard against). The
// (unit_id, coder_id) unique constraint is the only double-write guard
// the engine needs either way.
func (r *Repository) UpsertAnnotation(ctx context.Context, a schema.Annotation) (*schema.Annotation, error) {
	var out schema.Annotation
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, `
			INSERT INTO annotations (codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, annotation, damage, report, modified)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP)
			ON CONFLICT(unit_id, coder_id) DO UPDATE SET
				status = excluded.status,
				annotation = excluded.annotation,
				damage = excluded.damage,
				report = excluded.report,
				modified = CURRENT_TIMESTAMP`,
			a.CodingJobID, a.UnitID, a.CoderID, a.JobSetID, a.UnitIndex, a.Status, valueOrNil(a.Payload), a.Damage, valueOrNil(a.Report))
		if err != nil {
			return err
		}

		err = tx.GetContext(ctx, &out, `
			SELECT id, codingjob_id, unit_id, coder_id, jobset_id, unit_index, status, modified, annotation, damage, report
			FROM annotations WHERE unit_id = ? AND coder_id = ?`, a.UnitID, a.CoderID)
		_ = res
		return err
	})
	if err != nil {
		return nil, wrapWriteErr(err)
	}
	return &out, nil
}
