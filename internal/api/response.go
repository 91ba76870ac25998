package api

import (
	"encoding/json"
	"net/http"

	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/log"
)

// errorBody is the JSON shape every failed request gets back.
type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Errorf("api: encoding response: %s", err.Error())
	}
}

// writeError maps an engine error's apierror.Kind to an HTTP status per
// §7's table; anything that isn't a tagged *apierror.Error is treated as
// Internal.
func writeError(w http.ResponseWriter, err error) {
	var status int
	switch {
	case apierror.Is(err, apierror.KindBadRequest):
		status = http.StatusBadRequest
	case apierror.Is(err, apierror.KindNotFound):
		status = http.StatusNotFound
	case apierror.Is(err, apierror.KindAuthorizationDenied):
		status = http.StatusUnauthorized
	case apierror.Is(err, apierror.KindConflict):
		status = http.StatusConflict
	default:
		status = http.StatusInternalServerError
		log.Errorf("api: internal error: %s", err.Error())
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apierror.Wrap(apierror.KindBadRequest, "malformed request body", err)
	}
	return nil
}
