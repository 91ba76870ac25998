package api

import (
	"bytes"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
)

// jobCreateSchema covers the structural shape of a job-creation payload.
// Cross-field rules it cannot express (a codebook present somewhere for
// every unit, conditionals actually reachable against that codebook) are
// checked in Go after this passes.
const jobCreateSchema = `{
	"$schema": "http://json-schema.org/draft-07/schema#",
	"type": "object",
	"required": ["title", "units", "rules"],
	"properties": {
		"title": {"type": "string", "minLength": 1},
		"codebook": {},
		"debriefing": {},
		"restricted": {"type": "boolean"},
		"authorization": {
			"type": "object",
			"properties": {
				"restricted": {"type": "boolean"},
				"users": {"type": "array", "items": {"type": "string"}}
			}
		},
		"rules": {
			"type": "object",
			"required": ["ruleset"],
			"properties": {
				"ruleset": {"type": "string", "enum": ["fixedset", "crowdcoding"]},
				"canSeekBackwards": {"type": "boolean"},
				"canSeekForwards": {"type": "boolean"},
				"unitsPerCoder": {"type": "integer", "minimum": 1},
				"randomize": {"type": "boolean"},
				"showDamage": {"type": "boolean"},
				"healDamage": {"type": "boolean"},
				"maxDamage": {"type": "number"}
			}
		},
		"units": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "object",
				"required": ["id", "unit"],
				"properties": {
					"id": {"type": "string", "minLength": 1},
					"unit": {},
					"type": {"type": "string", "enum": ["code", "train", "test", "survey"]},
					"position": {"type": "string", "enum": ["pre", "post", "none"]},
					"conditionals": {"type": "array"},
					"gold": {"type": "array"}
				}
			}
		},
		"jobsets": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"codebook": {},
					"rules": {"type": "object"},
					"debriefing": {},
					"ids": {"type": "array", "items": {"type": "string"}},
					"preIds": {"type": "array", "items": {"type": "string"}},
					"postIds": {"type": "array", "items": {"type": "string"}}
				}
			}
		}
	}
}`

// jobCreateValidator structurally validates a job-creation payload
// before it is decoded into Go structs.
type jobCreateValidator struct {
	schema *jsonschema.Schema
}

func newJobCreateValidator() (*jobCreateValidator, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("jobcreate.json", bytes.NewReader([]byte(jobCreateSchema))); err != nil {
		return nil, err
	}
	schema, err := compiler.Compile("jobcreate.json")
	if err != nil {
		return nil, err
	}
	return &jobCreateValidator{schema: schema}, nil
}

// Validate checks doc (already decoded into a generic interface{} via
// encoding/json, as jsonschema/v5 requires) against the job-creation
// schema.
func (v *jobCreateValidator) Validate(doc interface{}) error {
	if v == nil {
		return nil
	}
	if err := v.schema.Validate(doc); err != nil {
		return apierror.Wrap(apierror.KindBadRequest, "job payload failed schema validation", err)
	}
	return nil
}
