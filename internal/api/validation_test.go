package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
)

func decodeDoc(t *testing.T, raw string) interface{} {
	t.Helper()
	var doc interface{}
	require.NoError(t, json.Unmarshal([]byte(raw), &doc))
	return doc
}

func TestJobCreateValidatorAcceptsMinimalValidPayload(t *testing.T) {
	v, err := newJobCreateValidator()
	require.NoError(t, err)

	doc := decodeDoc(t, `{
		"title": "my job",
		"rules": {"ruleset": "fixedset"},
		"units": [{"id": "u1", "unit": {}}]
	}`)
	assert.NoError(t, v.Validate(doc))
}

func TestJobCreateValidatorRejectsMissingRequiredFields(t *testing.T) {
	v, err := newJobCreateValidator()
	require.NoError(t, err)

	doc := decodeDoc(t, `{"title": "my job"}`)
	err = v.Validate(doc)
	require.Error(t, err)
	assert.True(t, apierror.Is(err, apierror.KindBadRequest))
}

func TestJobCreateValidatorRejectsUnknownRuleset(t *testing.T) {
	v, err := newJobCreateValidator()
	require.NoError(t, err)

	doc := decodeDoc(t, `{
		"title": "my job",
		"rules": {"ruleset": "roundrobin"},
		"units": [{"id": "u1", "unit": {}}]
	}`)
	assert.Error(t, v.Validate(doc))
}

func TestJobCreateValidatorRejectsEmptyUnits(t *testing.T) {
	v, err := newJobCreateValidator()
	require.NoError(t, err)

	doc := decodeDoc(t, `{
		"title": "my job",
		"rules": {"ruleset": "fixedset"},
		"units": []
	}`)
	assert.Error(t, v.Validate(doc))
}

func TestJobCreateValidatorRejectsUnknownUnitType(t *testing.T) {
	v, err := newJobCreateValidator()
	require.NoError(t, err)

	doc := decodeDoc(t, `{
		"title": "my job",
		"rules": {"ruleset": "fixedset"},
		"units": [{"id": "u1", "unit": {}, "type": "quiz"}]
	}`)
	assert.Error(t, v.Validate(doc))
}

func TestJobCreateValidatorNilValidatorIsNoop(t *testing.T) {
	var v *jobCreateValidator
	assert.NoError(t, v.Validate(map[string]interface{}{}))
}
