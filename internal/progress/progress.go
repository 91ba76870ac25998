// Package progress implements C6: a read-only summary of
// a coder's position in a job, used by the client to render progress
// bars and decide whether seek controls should be shown.
package progress

import (
	"context"
	"database/sql"
	"time"

	"github.com/ccs-amsterdam/annotinder-server/internal/unitserver"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Report is the JSON shape the progress call returns.
type Report struct {
	NTotal        int        `json:"nTotal"`
	NCoded        int        `json:"nCoded"`
	SeekBackwards bool       `json:"seekBackwards"`
	SeekForwards  bool       `json:"seekForwards"`
	LastModified  *time.Time `json:"lastModified,omitempty"`
	Damage        *float64   `json:"damage,omitempty"`
	MaxDamage     *float64   `json:"maxDamage,omitempty"`
	GameOver      *bool      `json:"gameOver,omitempty"`
}

// Repository is the slice of internal/repository progress needs.
type Repository interface {
	CountCodedExcludingInProgress(ctx context.Context, jobID, coderID int64) (int, error)
	LastModified(ctx context.Context, jobsetID, coderID int64) (sql.NullTime, error)
	FindJobUser(ctx context.Context, userID, jobID int64) (*schema.JobUser, error)
}

// Reporter builds progress reports for a bound unitserver.Server.
type Reporter struct {
	repo Repository
}

func New(repo Repository) *Reporter {
	return &Reporter{repo: repo}
}

// Report computes a coder's current progress within a job, using the
// same strategy (FixedSet/CrowdCoding) the unit server bound them to so
// n_total matches what Serve would compute.
func (r *Reporter) Report(ctx context.Context, srv *unitserver.Server, jobID, coderID int64) (*Report, error) {
	nTotal, err := srv.NTotal(ctx)
	if err != nil {
		return nil, err
	}
	nCoded, err := r.repo.CountCodedExcludingInProgress(ctx, jobID, coderID)
	if err != nil {
		return nil, err
	}
	lastModified, err := r.repo.LastModified(ctx, srv.JobSet().ID, coderID)
	if err != nil {
		return nil, err
	}

	rep := &Report{
		NTotal:        nTotal,
		NCoded:        nCoded,
		SeekBackwards: srv.CanSeekBackwards(),
		SeekForwards:  srv.CanSeekForwards(),
	}
	if lastModified.Valid {
		rep.LastModified = &lastModified.Time
	}

	if srv.JobSet().Rules.ShowDamage {
		ju, err := r.repo.FindJobUser(ctx, coderID, jobID)
		if err != nil {
			return nil, err
		}
		damage := ju.Damage
		rep.Damage = &damage
		rep.MaxDamage = srv.JobSet().Rules.MaxDamage
		gameOver := ju.Status == "blocked"
		rep.GameOver = &gameOver
	}
	return rep, nil
}
