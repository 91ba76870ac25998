package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccs-amsterdam/annotinder-server/internal/repository"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

func TestBuildJobPlanSynthesizesDefaultJobset(t *testing.T) {
	req := createJobRequest{
		Title:    "sentiment",
		Codebook: json.RawMessage(`{"type":"questions","questions":[{"name":"sentiment"}]}`),
		Rules:    json.RawMessage(`{"ruleset":"fixedset"}`),
		Units: []unitRequest{
			{ID: "u1", Unit: json.RawMessage(`{}`)},
		},
	}

	plan, err := buildJobPlan(req, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(7), plan.CreatorID)
	require.Len(t, plan.JobSets, 1)
	assert.Equal(t, "default", plan.JobSets[0].Name)
	assert.JSONEq(t, string(req.Codebook), string(plan.JobSets[0].Codebook))
}

func TestBuildJobPlanRejectsJobsetWithoutCodebook(t *testing.T) {
	req := createJobRequest{
		Title: "no codebook anywhere",
		Rules: json.RawMessage(`{"ruleset":"fixedset"}`),
		Units: []unitRequest{
			{ID: "u1", Unit: json.RawMessage(`{}`)},
		},
	}

	_, err := buildJobPlan(req, 1)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestBuildJobPlanDefaultsUnitTypeAndPosition(t *testing.T) {
	req := createJobRequest{
		Title:    "defaults",
		Codebook: json.RawMessage(`{"type":"questions","questions":[]}`),
		Rules:    json.RawMessage(`{"ruleset":"fixedset"}`),
		Units: []unitRequest{
			{ID: "u1", Unit: json.RawMessage(`{}`)},
		},
	}

	plan, err := buildJobPlan(req, 1)
	require.NoError(t, err)
	require.Len(t, plan.Units, 1)
	assert.Equal(t, schema.UnitTypeCode, plan.Units[0].Type)
	assert.Equal(t, schema.PositionNone, plan.Units[0].Position)
}

func TestBuildJobPlanGoldFallsBackWhenNoConditionals(t *testing.T) {
	req := createJobRequest{
		Title:    "gold fallback",
		Codebook: json.RawMessage(`{"type":"questions","questions":[{"name":"sentiment"}]}`),
		Rules:    json.RawMessage(`{"ruleset":"fixedset"}`),
		Units: []unitRequest{
			{ID: "u1", Unit: json.RawMessage(`{}`), Gold: json.RawMessage(`[{"variable":"sentiment","conditions":[{"value":"positive"}]}]`)},
		},
	}

	plan, err := buildJobPlan(req, 1)
	require.NoError(t, err)
	assert.JSONEq(t, string(req.Units[0].Gold), string(plan.Units[0].Conditionals))
}

func TestBuildJobPlanConditionalsPreferredOverGold(t *testing.T) {
	req := createJobRequest{
		Title:    "prefer conditionals",
		Codebook: json.RawMessage(`{"type":"questions","questions":[{"name":"sentiment"}]}`),
		Rules:    json.RawMessage(`{"ruleset":"fixedset"}`),
		Units: []unitRequest{{
			ID:           "u1",
			Unit:         json.RawMessage(`{}`),
			Conditionals: json.RawMessage(`[{"variable":"sentiment","conditions":[{"value":"negative"}]}]`),
			Gold:         json.RawMessage(`[{"variable":"sentiment","conditions":[{"value":"positive"}]}]`),
		}},
	}

	plan, err := buildJobPlan(req, 1)
	require.NoError(t, err)
	assert.JSONEq(t, string(req.Units[0].Conditionals), string(plan.Units[0].Conditionals))
}

func TestBuildJobPlanRejectsUnreachableConditional(t *testing.T) {
	req := createJobRequest{
		Title:    "unreachable",
		Codebook: json.RawMessage(`{"type":"questions","questions":[{"name":"sentiment"}]}`),
		Rules:    json.RawMessage(`{"ruleset":"fixedset"}`),
		Units: []unitRequest{{
			ID:           "u1",
			Unit:         json.RawMessage(`{}`),
			Conditionals: json.RawMessage(`[{"variable":"nonexistent","conditions":[{"value":"x"}]}]`),
		}},
	}

	_, err := buildJobPlan(req, 1)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestBuildJobPlanJobsetOwnCodebookOverridesTopLevel(t *testing.T) {
	req := createJobRequest{
		Title:    "per-jobset codebook",
		Codebook: json.RawMessage(`{"type":"questions","questions":[{"name":"a"}]}`),
		Rules:    json.RawMessage(`{"ruleset":"fixedset"}`),
		Units: []unitRequest{
			{ID: "u1", Unit: json.RawMessage(`{}`)},
		},
		JobSets: []jobsetRequest{{
			Name:     "custom",
			Codebook: json.RawMessage(`{"type":"questions","questions":[{"name":"b"}]}`),
			IDs:      []string{"u1"},
		}},
	}

	plan, err := buildJobPlan(req, 1)
	require.NoError(t, err)
	require.Len(t, plan.JobSets, 1)
	assert.Equal(t, "custom", plan.JobSets[0].Name)
	assert.JSONEq(t, string(req.JobSets[0].Codebook), string(plan.JobSets[0].Codebook))
}

func TestJobsetMemberIDsOrdersPreMidPost(t *testing.T) {
	units := []repository.NewUnitPlan{
		{ExternalID: "pre1", Position: schema.PositionPre},
		{ExternalID: "mid1", Position: schema.PositionNone},
		{ExternalID: "post1", Position: schema.PositionPost},
	}

	ids := jobsetMemberIDs(units, jobsetRequest{Name: "default"})
	assert.Equal(t, []string{"pre1", "mid1", "post1"}, ids)
}

func TestJobsetMemberIDsHonorsExplicitIDOrder(t *testing.T) {
	units := []repository.NewUnitPlan{
		{ExternalID: "a", Position: schema.PositionNone},
		{ExternalID: "b", Position: schema.PositionNone},
	}

	ids := jobsetMemberIDs(units, jobsetRequest{Name: "custom", IDs: []string{"b", "a"}})
	assert.Equal(t, []string{"b", "a"}, ids)
}
