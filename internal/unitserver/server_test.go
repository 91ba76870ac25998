package unitserver

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccs-amsterdam/annotinder-server/internal/jobsetrouter"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// fakeRepo satisfies both jobsetrouter.Repository and unitserver.Repository
// with in-memory state, enough to drive FixedSet end to end without a
// database.
type fakeRepo struct {
	jobset       schema.JobSet
	units        []schema.Unit
	jobUser      *schema.JobUser
	started      int
	coded        int
	coderCounts  map[int64]int
	annByIndex   map[int]*schema.Annotation
	fixedByIndex map[int]*schema.JobSetUnit
	leastCoded   *schema.Unit
	reserved     []schema.Annotation
}

func (f *fakeRepo) ListJobSets(ctx context.Context, jobID int64) ([]schema.JobSet, error) {
	return []schema.JobSet{f.jobset}, nil
}

func (f *fakeRepo) FindJobUser(ctx context.Context, userID, jobID int64) (*schema.JobUser, error) {
	if f.jobUser == nil {
		return nil, apierror.NotFound("no job user")
	}
	return f.jobUser, nil
}

func (f *fakeRepo) CountJobUsersByJob(ctx context.Context, jobID int64) (int, error) { return 0, nil }

func (f *fakeRepo) BindJobSet(ctx context.Context, userID, jobID, jobsetID int64) (*schema.JobUser, error) {
	f.jobUser = &schema.JobUser{UserID: userID, CodingJobID: jobID, JobSetID: &jobsetID}
	return f.jobUser, nil
}

func (f *fakeRepo) FindJobSetByID(ctx context.Context, id int64) (*schema.JobSet, error) {
	return &f.jobset, nil
}

func (f *fakeRepo) FindUnitByID(ctx context.Context, id int64) (*schema.Unit, error) {
	for i := range f.units {
		if f.units[i].ID == id {
			return &f.units[i], nil
		}
	}
	return nil, apierror.NotFound("unit not found")
}

func (f *fakeRepo) ListUnitsInJobset(ctx context.Context, jobsetID int64) ([]schema.Unit, error) {
	return f.units, nil
}

func (f *fakeRepo) CountJobSetUnits(ctx context.Context, jobsetID int64) (int, error) {
	return len(f.units), nil
}

func (f *fakeRepo) CountEligibleJobSetUnits(ctx context.Context, jobsetID int64) (int, error) {
	return len(f.units), nil
}

func (f *fakeRepo) FindJobSetUnitByFixedIndex(ctx context.Context, jobsetID int64, fixedIndex int) (*schema.JobSetUnit, error) {
	if jsu, ok := f.fixedByIndex[fixedIndex]; ok {
		return jsu, nil
	}
	return nil, apierror.NotFound("no unit at that fixed index")
}

func (f *fakeRepo) FindAnnotationWithStatus(ctx context.Context, jobID, coderID int64, statuses []schema.AnnotationStatus) (*schema.Annotation, error) {
	return nil, apierror.NotFound("no in-progress annotation")
}

func (f *fakeRepo) FindAnnotationByIndex(ctx context.Context, jobID, coderID int64, index int) (*schema.Annotation, error) {
	if ann, ok := f.annByIndex[index]; ok {
		return ann, nil
	}
	return nil, apierror.NotFound("no annotation at index")
}

func (f *fakeRepo) CountStarted(ctx context.Context, jobID, coderID int64) (int, error) {
	return f.started, nil
}

func (f *fakeRepo) CountCodedExcludingInProgress(ctx context.Context, jobID, coderID int64) (int, error) {
	return f.coded, nil
}

func (f *fakeRepo) FindLeastCodedUnit(ctx context.Context, jobsetID, coderID int64) (*schema.Unit, error) {
	if f.leastCoded != nil {
		return f.leastCoded, nil
	}
	return nil, apierror.NotFound("no eligible unit left")
}

func (f *fakeRepo) CountOtherCodersOnUnit(ctx context.Context, jobsetID, unitID, excludeCoderID int64) (int, error) {
	return 0, nil
}

func (f *fakeRepo) UpdateCoderCount(ctx context.Context, jobsetID, unitID int64) error {
	if f.coderCounts == nil {
		f.coderCounts = map[int64]int{}
	}
	f.coderCounts[unitID]++
	return nil
}

func (f *fakeRepo) LastModified(ctx context.Context, jobsetID, coderID int64) (sql.NullTime, error) {
	return sql.NullTime{}, nil
}

func (f *fakeRepo) ReserveAnnotation(ctx context.Context, a schema.Annotation) error {
	f.reserved = append(f.reserved, a)
	return nil
}

func newFixedSetRepo() *fakeRepo {
	return &fakeRepo{
		jobset: schema.JobSet{ID: 1, CodingJobID: 1, Rules: schema.Rules{Ruleset: schema.RulesetFixedSet, CanSeekBackwards: true}},
		units: []schema.Unit{
			{ID: 10, ExternalID: "a", Position: schema.PositionNone},
			{ID: 11, ExternalID: "b", Position: schema.PositionNone},
		},
	}
}

func newCrowdCodingRepo() *fakeRepo {
	return &fakeRepo{
		jobset: schema.JobSet{ID: 1, CodingJobID: 1, Rules: schema.Rules{Ruleset: schema.RulesetCrowdCoding}},
		units: []schema.Unit{
			{ID: 20, ExternalID: "a", Position: schema.PositionNone},
			{ID: 21, ExternalID: "b", Position: schema.PositionNone},
		},
		leastCoded: &schema.Unit{ID: 20, ExternalID: "a", Position: schema.PositionNone},
	}
}

func TestServeReservesAnnotationOnFreshCrowdCodingUnit(t *testing.T) {
	repo := newCrowdCodingRepo()
	router := jobsetrouter.New(repo)
	job := &schema.CodingJob{ID: 1}
	coder := &schema.User{ID: 7}

	srv, err := New(context.Background(), repo, router, job, coder)
	require.NoError(t, err)

	unit, idx, err := srv.Serve(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, int64(20), unit.ID)

	require.Len(t, repo.reserved, 1)
	reserved := repo.reserved[0]
	assert.Equal(t, int64(20), reserved.UnitID)
	assert.Equal(t, int64(7), reserved.CoderID)
	assert.Equal(t, int64(1), reserved.JobSetID)
	assert.Equal(t, idx, reserved.UnitIndex)
	assert.Equal(t, schema.StatusInProgress, reserved.Status)
	assert.Zero(t, reserved.Damage)
	assert.Empty(t, reserved.Payload)
}

func TestNewBindsAndSelectsStrategy(t *testing.T) {
	repo := newFixedSetRepo()
	router := jobsetrouter.New(repo)
	job := &schema.CodingJob{ID: 1}
	coder := &schema.User{ID: 1}

	srv, err := New(context.Background(), repo, router, job, coder)
	require.NoError(t, err)
	assert.Equal(t, int64(1), srv.JobSet().ID)
	assert.True(t, srv.CanSeekBackwards())
	assert.False(t, srv.CanSeekForwards())
}

func TestNewRejectsUnknownRuleset(t *testing.T) {
	repo := newFixedSetRepo()
	repo.jobset.Rules.Ruleset = "bogus"
	router := jobsetrouter.New(repo)
	job := &schema.CodingJob{ID: 1}
	coder := &schema.User{ID: 1}

	_, err := New(context.Background(), repo, router, job, coder)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestServeReturnsNextUncodedUnit(t *testing.T) {
	repo := newFixedSetRepo()
	router := jobsetrouter.New(repo)
	job := &schema.CodingJob{ID: 1}
	coder := &schema.User{ID: 1}

	srv, err := New(context.Background(), repo, router, job, coder)
	require.NoError(t, err)

	unit, idx, err := srv.Serve(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, unit)
	assert.Equal(t, 0, idx)
	assert.Equal(t, int64(10), unit.ID)
	assert.Equal(t, 1, repo.coderCounts[10])
}

func TestServeReturnsNilPastEnd(t *testing.T) {
	repo := newFixedSetRepo()
	repo.started = len(repo.units)
	router := jobsetrouter.New(repo)
	job := &schema.CodingJob{ID: 1}
	coder := &schema.User{ID: 1}

	srv, err := New(context.Background(), repo, router, job, coder)
	require.NoError(t, err)

	unit, _, err := srv.Serve(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, unit)
}

func TestNTotalReflectsJobsetSize(t *testing.T) {
	repo := newFixedSetRepo()
	router := jobsetrouter.New(repo)
	job := &schema.CodingJob{ID: 1}
	coder := &schema.User{ID: 1}

	srv, err := New(context.Background(), repo, router, job, coder)
	require.NoError(t, err)

	n, err := srv.NTotal(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}
