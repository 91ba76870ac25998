// Package unitserver implements C4: deciding which unit
// a coder sees next, through one of two strategies (FixedSet,
// CrowdCoding) selected by a jobset's Rules.Ruleset.
package unitserver

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ccs-amsterdam/annotinder-server/internal/jobsetrouter"
	"github.com/ccs-amsterdam/annotinder-server/internal/metrics"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Repository is the slice of internal/repository the unit server needs.
type Repository interface {
	FindJobSetByID(ctx context.Context, id int64) (*schema.JobSet, error)
	FindUnitByID(ctx context.Context, id int64) (*schema.Unit, error)
	ListUnitsInJobset(ctx context.Context, jobsetID int64) ([]schema.Unit, error)
	CountJobSetUnits(ctx context.Context, jobsetID int64) (int, error)
	CountEligibleJobSetUnits(ctx context.Context, jobsetID int64) (int, error)
	FindJobSetUnitByFixedIndex(ctx context.Context, jobsetID int64, fixedIndex int) (*schema.JobSetUnit, error)
	FindAnnotationWithStatus(ctx context.Context, jobID, coderID int64, statuses []schema.AnnotationStatus) (*schema.Annotation, error)
	FindAnnotationByIndex(ctx context.Context, jobID, coderID int64, index int) (*schema.Annotation, error)
	CountStarted(ctx context.Context, jobID, coderID int64) (int, error)
	CountCodedExcludingInProgress(ctx context.Context, jobID, coderID int64) (int, error)
	FindLeastCodedUnit(ctx context.Context, jobsetID, coderID int64) (*schema.Unit, error)
	CountOtherCodersOnUnit(ctx context.Context, jobsetID, unitID, excludeCoderID int64) (int, error)
	UpdateCoderCount(ctx context.Context, jobsetID, unitID int64) error
	LastModified(ctx context.Context, jobsetID, coderID int64) (sql.NullTime, error)
	ReserveAnnotation(ctx context.Context, a schema.Annotation) error
}

// startedOrInProgress is the status set the server checks first, so a
// coder always returns to a unit they've already opened before anything
// new is selected.
var startedOrInProgress = []schema.AnnotationStatus{schema.StatusInProgress, schema.StatusRetry}

// strategyImpl is the ruleset-specific part of serving.
type strategyImpl interface {
	seekUnit(ctx context.Context, index int) (*schema.Unit, int, error)
	nextUnit(ctx context.Context) (*schema.Unit, int, error)
	nTotal(ctx context.Context) (int, error)
}

// Server serves units to one coder within one job, once bound to a
// jobset by internal/jobsetrouter.
type Server struct {
	repo     Repository
	job      *schema.CodingJob
	jobset   *schema.JobSet
	coder    *schema.User
	strategy strategyImpl
}

// New binds coder to a jobset (assigning one on first contact) and
// returns a Server configured with the jobset's ruleset strategy.
func New(ctx context.Context, repo Repository, router *jobsetrouter.Router, job *schema.CodingJob, coder *schema.User) (*Server, error) {
	jobsetStub, err := router.Bind(ctx, job, coder)
	if err != nil {
		return nil, err
	}
	jobset, err := repo.FindJobSetByID(ctx, jobsetStub.ID)
	if err != nil {
		return nil, err
	}

	s := &Server{repo: repo, job: job, jobset: jobset, coder: coder}
	switch jobset.Rules.Ruleset {
	case schema.RulesetCrowdCoding:
		s.strategy = &crowdCoding{s}
	case schema.RulesetFixedSet:
		s.strategy = &fixedSet{s}
	default:
		return nil, apierror.BadRequest(fmt.Sprintf("unknown ruleset %q", jobset.Rules.Ruleset))
	}
	return s, nil
}

// JobSet returns the jobset the coder is bound to.
func (s *Server) JobSet() *schema.JobSet { return s.jobset }

// CanSeekBackwards reports whether the coder may revisit earlier units.
func (s *Server) CanSeekBackwards() bool { return s.jobset.Rules.CanSeekBackwards }

// CanSeekForwards reports whether the coder may jump ahead of their
// next unit.
func (s *Server) CanSeekForwards() bool { return s.jobset.Rules.CanSeekForwards }

// Serve returns the unit at index, or the next unit if index is nil. On
// success it also refreshes the jobsetunit's coder count for progress/Q-A
// display.
func (s *Server) Serve(ctx context.Context, index *int) (*schema.Unit, int, error) {
	var unit *schema.Unit
	var i int
	var err error
	if index != nil {
		unit, i, err = s.strategy.seekUnit(ctx, *index)
	} else {
		unit, i, err = s.strategy.nextUnit(ctx)
	}
	if err != nil {
		return nil, 0, err
	}
	if unit != nil {
		if err := s.repo.ReserveAnnotation(ctx, schema.Annotation{
			CodingJobID: s.job.ID,
			UnitID:      unit.ID,
			CoderID:     s.coder.ID,
			JobSetID:    s.jobset.ID,
			UnitIndex:   i,
			Status:      schema.StatusInProgress,
		}); err != nil {
			return nil, 0, err
		}
		if err := s.repo.UpdateCoderCount(ctx, s.jobset.ID, unit.ID); err != nil {
			return nil, 0, err
		}
		metrics.UnitsServed.WithLabelValues(string(s.jobset.Rules.Ruleset)).Inc()
	}
	return unit, i, nil
}

// NTotal returns the total number of units this coder can code, which
// for CrowdCoding may differ between coders.
func (s *Server) NTotal(ctx context.Context) (int, error) {
	return s.strategy.nTotal(ctx)
}

// getUnitWithStatus returns the first annotation in any of the given
// statuses, resolved to its unit.
func (s *Server) getUnitWithStatus(ctx context.Context, statuses []schema.AnnotationStatus) (*schema.Unit, int, error) {
	ann, err := s.repo.FindAnnotationWithStatus(ctx, s.job.ID, s.coder.ID, statuses)
	if apierror.Is(err, apierror.KindNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	unit, err := s.repo.FindUnitByID(ctx, ann.UnitID)
	if err != nil {
		return nil, 0, err
	}
	return unit, ann.UnitIndex, nil
}

// getStartedUnit returns a unit the coder already has an annotation for
// at `index`, gated by can_seek_backwards once more recent units exist.
func (s *Server) getStartedUnit(ctx context.Context, index int) (*schema.Unit, error) {
	ann, err := s.repo.FindAnnotationByIndex(ctx, s.job.ID, s.coder.ID, index)
	if apierror.Is(err, apierror.KindNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	started, err := s.repo.CountStarted(ctx, s.job.ID, s.coder.ID)
	if err != nil {
		return nil, err
	}
	maxIndex := started - 1
	if index < maxIndex && !s.CanSeekBackwards() {
		return nil, nil
	}
	return s.repo.FindUnitByID(ctx, ann.UnitID)
}

// getFixedIndexUnit tries the exact fixed_index first, then the negative
// wraparound used for post-slots.
func (s *Server) getFixedIndexUnit(ctx context.Context, index, nTotal int) (*schema.Unit, error) {
	jsu, err := s.repo.FindJobSetUnitByFixedIndex(ctx, s.jobset.ID, index)
	if apierror.Is(err, apierror.KindNotFound) {
		jsu, err = s.repo.FindJobSetUnitByFixedIndex(ctx, s.jobset.ID, index-nTotal)
		if apierror.Is(err, apierror.KindNotFound) {
			return nil, nil
		}
	}
	if err != nil {
		return nil, err
	}
	return s.repo.FindUnitByID(ctx, jsu.UnitID)
}
