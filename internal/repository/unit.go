package repository

import (
	"context"
	"database/sql"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// FindUnitByID loads a single unit by surrogate key.
func (r *Repository) FindUnitByID(ctx context.Context, id int64) (*schema.Unit, error) {
	var u schema.Unit
	err := r.DB.GetContext(ctx, &u,
		`SELECT id, codingjob_id, external_id, content, conditionals, unit_type, position FROM units WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("unit not found")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	if u.Content, err = r.resolveArchived(ctx, u.Content); err != nil {
		return nil, apierror.Internal(err)
	}
	return &u, nil
}

// FindUnitByExternalID looks a unit up by the (codingjob, external_id)
// pair researchers address units by when uploading annotations externally.
func (r *Repository) FindUnitByExternalID(ctx context.Context, jobID int64, externalID string) (*schema.Unit, error) {
	var u schema.Unit
	err := r.DB.GetContext(ctx, &u,
		`SELECT id, codingjob_id, external_id, content, conditionals, unit_type, position FROM units WHERE codingjob_id = ? AND external_id = ?`,
		jobID, externalID)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("unit not found")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	if u.Content, err = r.resolveArchived(ctx, u.Content); err != nil {
		return nil, apierror.Internal(err)
	}
	return &u, nil
}

// CountUnits returns the total number of units belonging to a job.
// internal/unitserver's n_total counts jobset units instead.
func (r *Repository) CountUnits(ctx context.Context, jobID int64) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM units WHERE codingjob_id = ?`, jobID); err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}
