// Package jobsetrouter implements C2: assigning each
// coder to exactly one JobSet per job, on a sticky round-robin basis.
package jobsetrouter

import (
	"context"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Repository is the slice of internal/repository the router needs.
type Repository interface {
	ListJobSets(ctx context.Context, jobID int64) ([]schema.JobSet, error)
	FindJobUser(ctx context.Context, userID, jobID int64) (*schema.JobUser, error)
	CountJobUsersByJob(ctx context.Context, jobID int64) (int, error)
	BindJobSet(ctx context.Context, userID, jobID, jobsetID int64) (*schema.JobUser, error)
}

// Router resolves the JobSet a coder is bound to for a job.
type Router struct {
	repo Repository
}

func New(repo Repository) *Router {
	return &Router{repo: repo}
}

// Resolve returns the jobset a coder is already bound to, or the one
// they would receive if they had never contacted this job, without
// writing anything (a dry-run used for "would I get this jobset"
// checks). Resolve does not assign; callers that need the binding
// persisted must call Bind.
func (rt *Router) Resolve(ctx context.Context, job *schema.CodingJob, coder *schema.User) (*schema.JobSet, error) {
	return rt.resolve(ctx, job, coder, false)
}

// Bind resolves a coder's jobset and, if they have no JobUser row yet
// or it has no jobset assigned, persists the assignment. Once a
// JobUser names a jobset it is never reassigned — the round-robin only
// ever runs for a coder's first contact with a job.
func (rt *Router) Bind(ctx context.Context, job *schema.CodingJob, coder *schema.User) (*schema.JobSet, error) {
	if job.Archived {
		return nil, apierror.AuthorizationDenied("job is archived")
	}
	return rt.resolve(ctx, job, coder, true)
}

func (rt *Router) resolve(ctx context.Context, job *schema.CodingJob, coder *schema.User, assign bool) (*schema.JobSet, error) {
	if coder.RestrictedJob != nil && *coder.RestrictedJob != job.ID {
		return nil, apierror.AuthorizationDenied("this coder is restricted to a different job")
	}

	jobsets, err := rt.repo.ListJobSets(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	if len(jobsets) == 0 {
		return nil, apierror.NotFound("job has no jobsets")
	}

	ju, err := rt.repo.FindJobUser(ctx, coder.ID, job.ID)
	if err != nil && !apierror.Is(err, apierror.KindNotFound) {
		return nil, err
	}
	guestOfThisJob := coder.RestrictedJob != nil && *coder.RestrictedJob == job.ID
	if ju == nil && job.Restricted && !guestOfThisJob {
		return nil, apierror.AuthorizationDenied("job is restricted and this coder has not been authorized")
	}
	if ju != nil && ju.JobSetID != nil {
		for i := range jobsets {
			if jobsets[i].ID == *ju.JobSetID {
				return &jobsets[i], nil
			}
		}
		return nil, apierror.Internal(nil)
	}

	var chosen *schema.JobSet
	if len(jobsets) == 1 {
		chosen = &jobsets[0]
	} else {
		currentUsers, err := rt.repo.CountJobUsersByJob(ctx, job.ID)
		if err != nil {
			return nil, err
		}
		chosen = &jobsets[currentUsers%len(jobsets)]
	}

	if assign {
		if _, err := rt.repo.BindJobSet(ctx, coder.ID, job.ID, chosen.ID); err != nil {
			return nil, err
		}
	}
	return chosen, nil
}
