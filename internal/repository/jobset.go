package repository

import (
	"context"
	"database/sql"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// FindJobSetByID loads a JobSet, unmarshaling its Rules from RulesRaw.
func (r *Repository) FindJobSetByID(ctx context.Context, id int64) (*schema.JobSet, error) {
	var js schema.JobSet
	err := r.DB.GetContext(ctx, &js,
		`SELECT id, codingjob_id, name, codebook, rules, debriefing FROM jobsets WHERE id = ?`, id)
	if err == sql.ErrNoRows {
		return nil, apierror.NotFound("jobset not found")
	}
	if err != nil {
		return nil, apierror.Internal(err)
	}
	if err := unmarshalRules(&js); err != nil {
		return nil, apierror.Internal(err)
	}
	if js.Codebook, err = r.resolveArchived(ctx, js.Codebook); err != nil {
		return nil, apierror.Internal(err)
	}
	return &js, nil
}

// ListJobSets returns every JobSet belonging to a job, ordered by id —
// the order internal/jobsetrouter's round-robin walks.
func (r *Repository) ListJobSets(ctx context.Context, jobID int64) ([]schema.JobSet, error) {
	var sets []schema.JobSet
	err := r.DB.SelectContext(ctx, &sets,
		`SELECT id, codingjob_id, name, codebook, rules, debriefing FROM jobsets WHERE codingjob_id = ? ORDER BY id`, jobID)
	if err != nil {
		return nil, apierror.Internal(err)
	}
	for i := range sets {
		if err := unmarshalRules(&sets[i]); err != nil {
			return nil, apierror.Internal(err)
		}
		if sets[i].Codebook, err = r.resolveArchived(ctx, sets[i].Codebook); err != nil {
			return nil, apierror.Internal(err)
		}
	}
	return sets, nil
}

func unmarshalRules(js *schema.JobSet) error {
	if js.RulesRaw.IsNull() {
		js.Rules = schema.DefaultRules()
		return nil
	}
	return js.RulesRaw.Unmarshal(&js.Rules)
}
