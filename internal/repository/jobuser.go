package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// FindJobUser looks up the (user, job) binding that pins a coder to a
// single jobset for the job's lifetime.
func (r *Repository) FindJobUser(ctx context.Context, userID, jobID int64) (*schema.JobUser, error) {
	var ju schema.JobUser
	err := r.DB.GetContext(ctx, &ju,
		`SELECT id, user_id, codingjob_id, jobset_id, can_code, can_edit, damage, status FROM jobusers WHERE user_id = ? AND codingjob_id = ?`,
		userID, jobID)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("user is not bound to this job")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &ju, nil
}

// BindJobSet assigns userID to jobsetID for jobID, but only on first
// contact: once a JobUser row names a jobset it is never reassigned.
func (r *Repository) BindJobSet(ctx context.Context, userID, jobID, jobsetID int64) (*schema.JobUser, error) {
	var ju schema.JobUser
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		err := tx.GetContext(ctx, &ju,
			`SELECT id, user_id, codingjob_id, jobset_id, can_code, can_edit, damage, status FROM jobusers WHERE user_id = ? AND codingjob_id = ?`,
			userID, jobID)
		switch {
		case err == sql.ErrNoRows:
			res, err := tx.ExecContext(ctx,
				`INSERT INTO jobusers (user_id, codingjob_id, jobset_id, can_code, can_edit) VALUES (?, ?, ?, 1, 0)`,
				userID, jobID, jobsetID)
			if err != nil {
				return err
			}
			id, err := res.LastInsertId()
			if err != nil {
				return err
			}
			ju = schema.JobUser{ID: id, UserID: userID, CodingJobID: jobID, JobSetID: &jobsetID, CanCode: true, Status: "active"}
			return nil
		case err != nil:
			return err
		default:
			if ju.JobSetID == nil {
				_, err := tx.ExecContext(ctx, `UPDATE jobusers SET jobset_id = ? WHERE id = ?`, jobsetID, ju.ID)
				if err != nil {
					return err
				}
				ju.JobSetID = &jobsetID
			}
			return nil
		}
	})
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &ju, nil
}

// CountJobUsersByJob returns how many coders have ever contacted a job,
// the denominator internal/jobsetrouter's round-robin uses.
func (r *Repository) CountJobUsersByJob(ctx context.Context, jobID int64) (int, error) {
	var n int
	if err := r.DB.GetContext(ctx, &n, `SELECT COUNT(*) FROM jobusers WHERE codingjob_id = ?`, jobID); err != nil {
		return 0, apierror.Internal(err)
	}
	return n, nil
}

// SetDamage overwrites the coder's cached total damage for a job with
// an authoritative sum.
func (r *Repository) SetDamage(ctx context.Context, jobUserID int64, total float64) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE jobusers SET damage = ? WHERE id = ?`, total, jobUserID)
	if err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// SetStatus overrides a coder's job status, e.g. to "blocked" when
// accumulated damage exceeds a jobset's MaxDamage.
func (r *Repository) SetStatus(ctx context.Context, jobUserID int64, status string) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE jobusers SET status = ? WHERE id = ?`, status, jobUserID)
	if err != nil {
		return apierror.Internal(err)
	}
	return nil
}

// SetJobCoders grants or revokes can_code for a set of users on a job;
// existing bindings are updated in place rather than duplicated.
func (r *Repository) SetJobCoders(ctx context.Context, jobID int64, userIDs []int64, canCode bool) error {
	return r.WithTx(ctx, func(tx *sqlx.Tx) error {
		for _, uid := range userIDs {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO jobusers (user_id, codingjob_id, can_code, can_edit) VALUES (?, ?, ?, 0)
				ON CONFLICT(user_id, codingjob_id) DO UPDATE SET can_code = excluded.can_code`,
				uid, jobID, canCode)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
