// Package docs registers the engine's swagger document with swaggo/swag
// so internal/api can serve it through http-swagger. The document is
// hand-written; the handlers carry no swag annotations for `swag init`
// to generate it from.
package docs

import "github.com/swaggo/swag"

const doc = `{
    "swagger": "2.0",
    "info": {
        "title": "{{.Title}}",
        "description": "{{.Description}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/jobs": {
            "post": {"summary": "Create a coding job", "responses": {"201": {"description": "created"}}},
            "get": {"summary": "List coding jobs", "responses": {"200": {"description": "ok"}}}
        },
        "/jobs/{job_id}/archive": {
            "post": {"summary": "Archive or unarchive a job", "responses": {"200": {"description": "ok"}}}
        },
        "/jobs/{job_id}/coders": {
            "post": {"summary": "Grant or revoke coding access", "responses": {"200": {"description": "ok"}}}
        },
        "/jobs/{job_id}/token": {
            "post": {"summary": "Mint a guest job token", "responses": {"200": {"description": "ok"}}}
        },
        "/jobs/{job_id}/unit": {
            "get": {"summary": "Serve the coder's next (or indexed) unit", "responses": {"200": {"description": "ok"}}}
        },
        "/jobs/{job_id}/unit/{unit_id}/annotation": {
            "post": {"summary": "Submit an annotation for a unit", "responses": {"200": {"description": "ok"}}}
        },
        "/jobs/{job_id}/progress": {
            "get": {"summary": "Report a coder's progress in a job", "responses": {"200": {"description": "ok"}}}
        },
        "/guest/redeem": {
            "post": {"summary": "Redeem a job token for a bearer token", "responses": {"200": {"description": "ok"}}}
        }
    }
}`

// SwaggerInfo holds exported swagger information, the shape swag's
// generated docs.go carries so deployments can override host/basePath
// at startup without recompiling the document itself.
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Coding engine API",
	Description:      "Job creation, unit serving, and annotation submission.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  doc,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
