package reconciler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

type fakeRepo struct {
	unit        schema.Unit
	jobUser     schema.JobUser
	annotations map[int64]schema.Annotation // keyed by unitID
	sumDamage   float64
	started     int

	jsu          *schema.JobSetUnit
	blockedCalls []int64
	setDamageArg float64
	setStatusArg string
	upserted     schema.Annotation
}

func (f *fakeRepo) FindUnitByID(ctx context.Context, id int64) (*schema.Unit, error) {
	return &f.unit, nil
}

func (f *fakeRepo) FindJobUser(ctx context.Context, userID, jobID int64) (*schema.JobUser, error) {
	return &f.jobUser, nil
}

func (f *fakeRepo) FindAnnotation(ctx context.Context, unitID, coderID int64) (*schema.Annotation, error) {
	if a, ok := f.annotations[unitID]; ok {
		return &a, nil
	}
	return nil, apierror.NotFound("no annotation")
}

func (f *fakeRepo) CountStarted(ctx context.Context, jobID, coderID int64) (int, error) {
	return f.started, nil
}

func (f *fakeRepo) UpsertAnnotation(ctx context.Context, a schema.Annotation) (*schema.Annotation, error) {
	f.upserted = a
	if f.annotations == nil {
		f.annotations = map[int64]schema.Annotation{}
	}
	f.annotations[a.UnitID] = a
	return &a, nil
}

func (f *fakeRepo) SetDamage(ctx context.Context, jobUserID int64, total float64) error {
	f.setDamageArg = total
	return nil
}

func (f *fakeRepo) SumDamage(ctx context.Context, jobsetID, coderID int64) (float64, error) {
	return f.sumDamage, nil
}

func (f *fakeRepo) SetStatus(ctx context.Context, jobUserID int64, status string) error {
	f.setStatusArg = status
	f.jobUser.Status = status
	return nil
}

func (f *fakeRepo) FindJobSetUnit(ctx context.Context, jobsetID, unitID int64) (*schema.JobSetUnit, error) {
	if f.jsu != nil {
		return f.jsu, nil
	}
	return nil, apierror.NotFound("not a member")
}

func (f *fakeRepo) SetBlocked(ctx context.Context, jobsetUnitID int64, blocked bool) error {
	f.blockedCalls = append(f.blockedCalls, jobsetUnitID)
	return nil
}

func strp(s string) *string     { return &s }
func floatp(f float64) *float64 { return &f }

func TestSubmitRejectsBadStatus(t *testing.T) {
	repo := &fakeRepo{}
	rc := New(repo)

	_, err := rc.Submit(context.Background(), &schema.JobSet{}, 1, 1, nil, schema.StatusRetry)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestSubmitNoConditionalsNoDamage(t *testing.T) {
	repo := &fakeRepo{unit: schema.Unit{ID: 1, CodingJobID: 1}}
	rc := New(repo)
	job := &schema.JobSet{ID: 1}

	report, err := rc.Submit(context.Background(), job, 1, 1, []schema.AnnotationItem{{Variable: "x", Value: "y"}}, schema.StatusDone)
	require.NoError(t, err)
	assert.Nil(t, report.Damage.Damage)
	assert.Equal(t, schema.StatusDone, repo.upserted.Status)
}

func TestSubmitFailedConditionalForcesRetry(t *testing.T) {
	conds := []schema.Conditional{{
		Variable:   "gold",
		Conditions: []schema.Condition{{Value: "A"}},
		OnFail:     strp("retry"),
	}}
	j, err := schema.MarshalToJSON(conds)
	require.NoError(t, err)

	repo := &fakeRepo{unit: schema.Unit{ID: 1, CodingJobID: 1, UnitType: schema.UnitTypeTest, Conditionals: j}, sumDamage: 10}
	rc := New(repo)
	job := &schema.JobSet{ID: 1, Rules: schema.Rules{MaxDamage: floatp(100), ShowDamage: true}}

	report, err := rc.Submit(context.Background(), job, 1, 1, []schema.AnnotationItem{{Variable: "gold", Value: "B"}}, schema.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, schema.StatusRetry, repo.upserted.Status)
	require.NotNil(t, report.Damage.Damage)
	assert.Equal(t, 10.0, *report.Damage.Damage)
	assert.False(t, report.Damage.GameOver)
}

func TestSubmitBlockActionBlocksJobsetUnit(t *testing.T) {
	conds := []schema.Conditional{{
		Variable:   "screen",
		Conditions: []schema.Condition{{Value: "qualify"}},
		OnFail:     strp("block"),
	}}
	j, err := schema.MarshalToJSON(conds)
	require.NoError(t, err)

	repo := &fakeRepo{
		unit: schema.Unit{ID: 1, CodingJobID: 1, UnitType: schema.UnitTypeScreen, Conditionals: j},
		jsu:  &schema.JobSetUnit{ID: 77, JobSetID: 1, UnitID: 1},
	}
	rc := New(repo)
	job := &schema.JobSet{ID: 1}

	_, err = rc.Submit(context.Background(), job, 1, 1, []schema.AnnotationItem{{Variable: "screen", Value: "disqualify"}}, schema.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, []int64{77}, repo.blockedCalls)
}

func TestSubmitHealDamageDisabledKeepsMaxDamage(t *testing.T) {
	repo := &fakeRepo{
		unit: schema.Unit{ID: 1, CodingJobID: 1, UnitType: schema.UnitTypeTest},
		annotations: map[int64]schema.Annotation{
			1: {UnitID: 1, UnitIndex: 3, Damage: 10},
		},
	}
	rc := New(repo)
	job := &schema.JobSet{ID: 1, Rules: schema.Rules{HealDamage: false}}

	_, err := rc.Submit(context.Background(), job, 1, 1, nil, schema.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, 10.0, repo.upserted.Damage)
	assert.Equal(t, 3, repo.upserted.UnitIndex)
}

func TestSubmitGameOverBlocksCoderOnceThreshold(t *testing.T) {
	conds := []schema.Conditional{{
		Variable:   "gold",
		Conditions: []schema.Condition{{Value: "A"}},
	}}
	j, err := schema.MarshalToJSON(conds)
	require.NoError(t, err)

	repo := &fakeRepo{
		unit:      schema.Unit{ID: 1, CodingJobID: 1, UnitType: schema.UnitTypeTest, Conditionals: j},
		sumDamage: 15,
		jobUser:   schema.JobUser{ID: 5, UserID: 1, CodingJobID: 1, Status: "active"},
	}
	rc := New(repo)
	job := &schema.JobSet{ID: 1, Rules: schema.Rules{MaxDamage: floatp(10), ShowDamage: true}}

	report, err := rc.Submit(context.Background(), job, 1, 1, []schema.AnnotationItem{{Variable: "gold", Value: "B"}}, schema.StatusDone)
	require.NoError(t, err)
	assert.True(t, report.Damage.GameOver)
	assert.Equal(t, "blocked", repo.setStatusArg)
	assert.Equal(t, 15.0, repo.setDamageArg)
}

func TestSubmitDoneWithMissingRequiredVariableFails(t *testing.T) {
	conds := []schema.Conditional{{
		Variable:   "gold",
		Conditions: []schema.Condition{{Value: "A"}},
		Damage:     floatp(5),
	}}
	j, err := schema.MarshalToJSON(conds)
	require.NoError(t, err)

	repo := &fakeRepo{unit: schema.Unit{ID: 1, CodingJobID: 1, UnitType: schema.UnitTypeCode, Conditionals: j}}
	rc := New(repo)
	job := &schema.JobSet{ID: 1}

	// The coder never touched "gold" at all, and marks the unit DONE
	// anyway: a required answer is missing, so the conditional must fail
	// rather than be silently skipped.
	report, err := rc.Submit(context.Background(), job, 1, 1, []schema.AnnotationItem{{Variable: "unrelated", Value: "x"}}, schema.StatusDone)
	require.NoError(t, err)
	require.Contains(t, report.Evaluation, "gold")
	assert.Equal(t, schema.StatusDone, repo.upserted.Status)
	assert.Equal(t, 5.0, repo.upserted.Damage)
}

func TestSubmitInProgressWithMissingVariableIsNotAFailure(t *testing.T) {
	conds := []schema.Conditional{{
		Variable:   "gold",
		Conditions: []schema.Condition{{Value: "A"}},
		Damage:     floatp(5),
	}}
	j, err := schema.MarshalToJSON(conds)
	require.NoError(t, err)

	repo := &fakeRepo{unit: schema.Unit{ID: 1, CodingJobID: 1, UnitType: schema.UnitTypeCode, Conditionals: j}}
	rc := New(repo)
	job := &schema.JobSet{ID: 1}

	report, err := rc.Submit(context.Background(), job, 1, 1, []schema.AnnotationItem{{Variable: "unrelated", Value: "x"}}, schema.StatusInProgress)
	require.NoError(t, err)
	assert.NotContains(t, report.Evaluation, "gold")
	assert.Equal(t, schema.StatusInProgress, repo.upserted.Status)
	assert.Zero(t, repo.upserted.Damage)
}

func TestSubmitUnderThresholdNoGameOver(t *testing.T) {
	conds := []schema.Conditional{{
		Variable:   "gold",
		Conditions: []schema.Condition{{Value: "A"}},
	}}
	j, err := schema.MarshalToJSON(conds)
	require.NoError(t, err)

	repo := &fakeRepo{
		unit:      schema.Unit{ID: 1, CodingJobID: 1, UnitType: schema.UnitTypeTest, Conditionals: j},
		sumDamage: 5,
		jobUser:   schema.JobUser{ID: 5, UserID: 1, CodingJobID: 1, Status: "active"},
	}
	rc := New(repo)
	job := &schema.JobSet{ID: 1, Rules: schema.Rules{MaxDamage: floatp(10)}}

	report, err := rc.Submit(context.Background(), job, 1, 1, []schema.AnnotationItem{{Variable: "gold", Value: "B"}}, schema.StatusDone)
	require.NoError(t, err)
	assert.False(t, report.Damage.GameOver)
	assert.Empty(t, repo.setStatusArg)
}
