package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// FindUserByID looks up a user by surrogate key.
func (r *Repository) FindUserByID(ctx context.Context, id int64) (*schema.User, error) {
	var u schema.User
	err := r.DB.GetContext(ctx, &u, `SELECT id, name, email, is_admin, restricted_job, password_hash FROM users WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("user not found")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &u, nil
}

// FindUserByEmail looks up a user by email, used by the password/LDAP
// login boundary (not the engine itself).
func (r *Repository) FindUserByEmail(ctx context.Context, email string) (*schema.User, error) {
	var u schema.User
	err := r.DB.GetContext(ctx, &u, `SELECT id, name, email, is_admin, restricted_job, password_hash FROM users WHERE email = ?`, email)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("user not found")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &u, nil
}

// CreateGuestUser implements auth.GuestUserStore: it mints a user with
// RestrictedJob=jobID and no password, for the guest/job-token flow.
func (r *Repository) CreateGuestUser(ctx context.Context, jobID int64, name string) (*schema.User, error) {
	var user schema.User
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO users (name, restricted_job, is_admin) VALUES (?, ?, 0)`, name, jobID)
		if err != nil {
			return err
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		user = schema.User{ID: id, Name: name, RestrictedJob: &jobID}
		return nil
	})
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("creating guest user: %w", err))
	}
	return &user, nil
}

// CreateUser inserts a new named user.
func (r *Repository) CreateUser(ctx context.Context, name string, email *string, isAdmin bool) (*schema.User, error) {
	res, err := r.DB.ExecContext(ctx, `INSERT INTO users (name, email, is_admin) VALUES (?, ?, ?)`, name, email, isAdmin)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &schema.User{ID: id, Name: name, Email: email, IsAdmin: isAdmin}, nil
}
