package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// NewUnitPlan is one unit to persist as part of a job creation, already
// validated.
type NewUnitPlan struct {
	ExternalID   string
	Content      schema.JSON
	Conditionals schema.JSON
	Type         schema.UnitType
	Position     schema.Position
}

// NewJobSetPlan is one jobset to persist, with the external ids (in
// desired order) of the units it should contain at each position. Nil
// slices mean "all units of this job with that position"; a non-nil
// empty slice means none.
type NewJobSetPlan struct {
	Name       string
	Codebook   schema.JSON
	Rules      schema.Rules
	RulesRaw   schema.JSON
	Debriefing schema.JSON
	PreIDs     []string
	MidIDs     []string
	PostIDs    []string
}

// NewJobPlan is the fully-validated shape of a job-creation request,
// ready to be persisted atomically.
type NewJobPlan struct {
	Title           string
	Restricted      bool
	CreatorID       int64
	Units           []NewUnitPlan
	JobSets         []NewJobSetPlan
	AuthorizedUsers []string
	Debriefing      schema.JSON
}

// CreateJob performs the atomic create of a job: CodingJob + units +
// jobsets + jobsetunits all succeed together or the whole creation
// rolls back.
func (r *Repository) CreateJob(ctx context.Context, plan NewJobPlan) (*schema.CodingJob, error) {
	var job schema.CodingJob
	err := r.WithTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO codingjobs (title, creator_id, restricted) VALUES (?, ?, ?)`,
			plan.Title, plan.CreatorID, plan.Restricted)
		if err != nil {
			return fmt.Errorf("insert codingjob: %w", err)
		}
		jobID, err := res.LastInsertId()
		if err != nil {
			return err
		}

		unitIDByExternal := make(map[string]int64, len(plan.Units))
		unitOrderNone := make([]string, 0, len(plan.Units))
		for _, u := range plan.Units {
			content, err := r.maybeArchive(ctx, fmt.Sprintf("unit/%d/%s/content", jobID, u.ExternalID), u.Content)
			if err != nil {
				return fmt.Errorf("archive unit %q content: %w", u.ExternalID, err)
			}
			ures, err := tx.ExecContext(ctx,
				`INSERT INTO units (codingjob_id, external_id, content, conditionals, unit_type, position) VALUES (?, ?, ?, ?, ?, ?)`,
				jobID, u.ExternalID, valueOrNil(content), valueOrNil(u.Conditionals), string(u.Type), string(u.Position))
			if err != nil {
				return fmt.Errorf("insert unit %q: %w", u.ExternalID, err)
			}
			uid, err := ures.LastInsertId()
			if err != nil {
				return err
			}
			unitIDByExternal[u.ExternalID] = uid
			if u.Position == schema.PositionNone {
				unitOrderNone = append(unitOrderNone, u.ExternalID)
			}
		}

		for _, js := range plan.JobSets {
			codebook, err := r.maybeArchive(ctx, fmt.Sprintf("jobset/%d/%s/codebook", jobID, js.Name), js.Codebook)
			if err != nil {
				return fmt.Errorf("archive jobset %q codebook: %w", js.Name, err)
			}
			jres, err := tx.ExecContext(ctx,
				`INSERT INTO jobsets (codingjob_id, name, codebook, rules, debriefing) VALUES (?, ?, ?, ?, ?)`,
				jobID, js.Name, valueOrNil(codebook), valueOrNil(js.RulesRaw), valueOrNil(js.Debriefing))
			if err != nil {
				return fmt.Errorf("insert jobset %q: %w", js.Name, err)
			}
			jobsetID, err := jres.LastInsertId()
			if err != nil {
				return err
			}

			if err := insertJobSetUnits(ctx, tx, jobsetID, plan, js, unitIDByExternal, unitOrderNone); err != nil {
				return err
			}
		}

		for _, email := range plan.AuthorizedUsers {
			if err := addAuthorizedCoder(ctx, tx, jobID, email); err != nil {
				return err
			}
		}

		job = schema.CodingJob{ID: jobID, Title: plan.Title, CreatorID: plan.CreatorID, Restricted: plan.Restricted}
		return nil
	})
	if err != nil {
		var apiErr *apierror.Error
		if errors.As(err, &apiErr) {
			return nil, apiErr
		}
		return nil, wrapWriteErr(fmt.Errorf("create job: %w", err))
	}
	return &job, nil
}

// insertJobSetUnits binds units to a jobset: pre units get
// fixed_index = i, post units get fixed_index = i - len(ids), and
// unpositioned units get a null fixed_index.
func insertJobSetUnits(ctx context.Context, tx *sqlx.Tx, jobsetID int64, plan NewJobPlan, js NewJobSetPlan, unitIDByExternal map[string]int64, unitOrderNone []string) error {
	type slot struct {
		externalID string
		fixedIndex *int
	}
	var slots []slot

	preIDs := js.PreIDs
	if preIDs == nil {
		preIDs = externalIDsWithPosition(plan.Units, schema.PositionPre)
	}
	for i, id := range preIDs {
		idx := i
		slots = append(slots, slot{id, &idx})
	}

	midIDs := js.MidIDs
	if midIDs == nil {
		midIDs = unitOrderNone
	}
	for _, id := range midIDs {
		slots = append(slots, slot{id, nil})
	}

	postIDs := js.PostIDs
	if postIDs == nil {
		postIDs = externalIDsWithPosition(plan.Units, schema.PositionPost)
	}
	for i, id := range postIDs {
		idx := i - len(postIDs)
		slots = append(slots, slot{id, &idx})
	}

	for _, s := range slots {
		unitID, ok := unitIDByExternal[s.externalID]
		if !ok {
			return apierror.BadRequest(fmt.Sprintf("jobset references unknown unit id %q", s.externalID))
		}
		var hasConditionals bool
		if err := tx.GetContext(ctx, &hasConditionals, `SELECT conditionals IS NOT NULL FROM units WHERE id = ?`, unitID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO jobsetunits (jobset_id, unit_id, fixed_index, has_conditionals, blocked) VALUES (?, ?, ?, ?, 0)`,
			jobsetID, unitID, s.fixedIndex, hasConditionals); err != nil {
			return fmt.Errorf("insert jobsetunit for unit %q: %w", s.externalID, err)
		}
	}
	return nil
}

func externalIDsWithPosition(units []NewUnitPlan, pos schema.Position) []string {
	var ids []string
	for _, u := range units {
		if u.Position == pos {
			ids = append(ids, u.ExternalID)
		}
	}
	return ids
}

func addAuthorizedCoder(ctx context.Context, tx *sqlx.Tx, jobID int64, email string) error {
	var userID int64
	err := tx.GetContext(ctx, &userID, `SELECT id FROM users WHERE email = ?`, email)
	if err == sql.ErrNoRows {
		res, err := tx.ExecContext(ctx, `INSERT INTO users (name, email) VALUES (?, ?)`, email, email)
		if err != nil {
			return err
		}
		userID, err = res.LastInsertId()
		if err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO jobusers (user_id, codingjob_id, can_code, can_edit) VALUES (?, ?, 1, 0)
		 ON CONFLICT(user_id, codingjob_id) DO UPDATE SET can_code = 1`,
		userID, jobID)
	return err
}

func valueOrNil(j schema.JSON) interface{} {
	if j.IsNull() {
		return nil
	}
	return []byte(j)
}

// FindJobByID looks up a CodingJob by its surrogate key.
func (r *Repository) FindJobByID(ctx context.Context, id int64) (*schema.CodingJob, error) {
	var job schema.CodingJob
	err := r.DB.GetContext(ctx, &job, `SELECT id, title, creator_id, restricted, archived, created FROM codingjobs WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("coding job not found")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	return &job, nil
}

// ListJobs returns basic metadata for every job, newest first.
func (r *Repository) ListJobs(ctx context.Context) ([]schema.CodingJob, error) {
	var jobs []schema.CodingJob
	q, args, err := sq.Select("id", "title", "creator_id", "restricted", "archived", "created").
		From("codingjobs").OrderBy("created DESC").ToSql()
	if err != nil {
		return nil, apierror.Internal(err)
	}
	if err := r.DB.SelectContext(ctx, &jobs, q, args...); err != nil {
		return nil, apierror.Internal(err)
	}
	return jobs, nil
}

// ArchiveJob flips the archived flag; archived jobs fail every serve/
// submit with AuthorizationDenied.
func (r *Repository) ArchiveJob(ctx context.Context, jobID int64, archived bool) error {
	_, err := r.DB.ExecContext(ctx, `UPDATE codingjobs SET archived = ? WHERE id = ?`, archived, jobID)
	if err != nil {
		return apierror.Internal(err)
	}
	return nil
}
