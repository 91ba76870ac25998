// Package reconciler implements C5: applying a coder's
// submitted annotation, running it through C3's conditional evaluator,
// updating accumulated damage, and deciding whether the coder is
// disqualified from the job.
package reconciler

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ccs-amsterdam/annotinder-server/internal/conditionals"
	"github.com/ccs-amsterdam/annotinder-server/internal/metrics"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Repository is the slice of internal/repository the reconciler needs.
type Repository interface {
	FindUnitByID(ctx context.Context, id int64) (*schema.Unit, error)
	FindJobUser(ctx context.Context, userID, jobID int64) (*schema.JobUser, error)
	FindAnnotation(ctx context.Context, unitID, coderID int64) (*schema.Annotation, error)
	CountStarted(ctx context.Context, jobID, coderID int64) (int, error)
	UpsertAnnotation(ctx context.Context, a schema.Annotation) (*schema.Annotation, error)
	SetDamage(ctx context.Context, jobUserID int64, total float64) error
	SumDamage(ctx context.Context, jobsetID, coderID int64) (float64, error)
	SetStatus(ctx context.Context, jobUserID int64, status string) error
	FindJobSetUnit(ctx context.Context, jobsetID, unitID int64) (*schema.JobSetUnit, error)
	SetBlocked(ctx context.Context, jobsetUnitID int64, blocked bool) error
}

// DamageReport is the `damage` block of the post-annotation response,
// populated only when a jobset opts into showDamage/maxDamage.
type DamageReport struct {
	Damage   *float64 `json:"damage,omitempty"`
	Health   *float64 `json:"health,omitempty"`
	GameOver bool     `json:"gameOver,omitempty"`
}

// Report is the full response to a submitted annotation.
type Report struct {
	Damage     DamageReport                   `json:"damage"`
	Evaluation map[string]conditionals.Result `json:"evaluation"`
}

// Reconciler applies annotations for one job.
type Reconciler struct {
	repo Repository
}

func New(repo Repository) *Reconciler {
	return &Reconciler{repo: repo}
}

// Submit creates or overwrites a coder's annotation on a unit: evaluate
// conditionals, force RETRY on retry/block actions, apply damage
// monotonicity, persist, and report.
func (rc *Reconciler) Submit(ctx context.Context, job *schema.JobSet, coderID int64, unitID int64, annotation []schema.AnnotationItem, status schema.AnnotationStatus) (*Report, error) {
	if status != schema.StatusDone && status != schema.StatusInProgress {
		return nil, apierror.BadRequest("status must be DONE or IN_PROGRESS")
	}

	unit, err := rc.repo.FindUnitByID(ctx, unitID)
	if err != nil {
		return nil, err
	}

	jobuser, err := rc.repo.FindJobUser(ctx, coderID, unit.CodingJobID)
	if err != nil {
		return nil, err
	}

	damage, evaluation, err := conditionals.Evaluate(unit, annotation, status, true)
	if err != nil {
		return nil, apierror.Internal(err)
	}

	blocked := false
	for _, action := range evaluation {
		if action.Action == "retry" || action.Action == "block" {
			status = schema.StatusRetry
		}
		if action.Action == "block" {
			blocked = true
		}
	}
	if blocked {
		// A block action removes the unit from future CrowdCoding
		// candidate pools; past annotations on it still stand.
		if jsu, err := rc.repo.FindJobSetUnit(ctx, job.ID, unitID); err == nil {
			if err := rc.repo.SetBlocked(ctx, jsu.ID, true); err != nil {
				return nil, err
			}
		} else if !apierror.Is(err, apierror.KindNotFound) {
			return nil, err
		}
	}

	existing, err := rc.repo.FindAnnotation(ctx, unitID, coderID)
	notFound := apierror.Is(err, apierror.KindNotFound)
	if err != nil && !notFound {
		return nil, err
	}

	payload, err := schema.MarshalToJSON(annotation)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("marshal annotation: %w", err))
	}
	reportJSON, err := schema.MarshalToJSON(evaluation)
	if err != nil {
		return nil, apierror.Internal(fmt.Errorf("marshal report: %w", err))
	}

	unitIndex := 0
	if notFound {
		n, err := rc.repo.CountStarted(ctx, unit.CodingJobID, coderID)
		if err != nil {
			return nil, err
		}
		unitIndex = n
	} else {
		unitIndex = existing.UnitIndex
		// heal_damage lets a corrected retry reduce recorded damage;
		// otherwise damage only ever grows for a given annotation.
		if !job.Rules.HealDamage && existing.Damage > damage {
			damage = existing.Damage
		}
	}

	if _, err := rc.repo.UpsertAnnotation(ctx, schema.Annotation{
		CodingJobID: unit.CodingJobID,
		UnitID:      unitID,
		CoderID:     coderID,
		JobSetID:    job.ID,
		UnitIndex:   unitIndex,
		Status:      status,
		Payload:     payload,
		Damage:      damage,
		Report:      reportJSON,
	}); err != nil {
		return nil, err
	}
	metrics.AnnotationsSubmitted.Inc()

	report := Report{Evaluation: evaluation}
	if damage > 0 {
		metrics.DamageIncurred.WithLabelValues(strconv.FormatInt(unit.CodingJobID, 10)).Add(damage)
		dr, err := rc.processDamage(ctx, job, jobuser)
		if err != nil {
			return nil, err
		}
		report.Damage = dr
	}
	return &report, nil
}

// processDamage totals a coder's damage across the jobset and, if
// Rules.maxDamage is set and exceeded, flags game over by setting the
// coder's job status to "blocked".
func (rc *Reconciler) processDamage(ctx context.Context, job *schema.JobSet, jobuser *schema.JobUser) (DamageReport, error) {
	total, err := rc.repo.SumDamage(ctx, job.ID, jobuser.UserID)
	if err != nil {
		return DamageReport{}, err
	}
	if err := rc.repo.SetDamage(ctx, jobuser.ID, total); err != nil {
		return DamageReport{}, err
	}

	var dr DamageReport
	if job.Rules.ShowDamage {
		d := total
		dr.Damage = &d
	}
	if job.Rules.MaxDamage != nil {
		if job.Rules.ShowDamage {
			h := *job.Rules.MaxDamage
			dr.Health = &h
		}
		if total > *job.Rules.MaxDamage {
			dr.GameOver = true
			if jobuser.Status != "blocked" {
				metrics.GameOvers.WithLabelValues(strconv.FormatInt(jobuser.CodingJobID, 10)).Inc()
			}
			if err := rc.repo.SetStatus(ctx, jobuser.ID, "blocked"); err != nil {
				return DamageReport{}, err
			}
		}
	}
	return dr, nil
}
