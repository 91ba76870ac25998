package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ccs-amsterdam/annotinder-server/internal/unitserver"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

type unitResponse struct {
	Done       bool                     `json:"done,omitempty"`
	ID         int64                    `json:"id,omitempty"`
	Unit       json.RawMessage          `json:"unit,omitempty"`
	Index      int                      `json:"index,omitempty"`
	Annotation []schema.AnnotationItem  `json:"annotation,omitempty"`
	Status     schema.AnnotationStatus  `json:"status,omitempty"`
	Report     json.RawMessage          `json:"report,omitempty"`
}

// getUnit serves the next unit in a coder's sequence, or the unit at an
// explicit ?index=, binding the coder to a jobset on first contact.
func (h *Handler) getUnit(w http.ResponseWriter, r *http.Request) {
	coder, err := requireCoder(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobID, err := pathInt64(r, "job_id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.Repo.FindJobByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}

	var index *int
	if raw := r.URL.Query().Get("index"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, apierror.BadRequest("invalid index"))
			return
		}
		index = &n
	}

	srv, err := unitserver.New(r.Context(), h.Repo, h.Router, job, coder)
	if err != nil {
		writeError(w, err)
		return
	}
	unit, idx, err := srv.Serve(r.Context(), index)
	if err != nil {
		writeError(w, err)
		return
	}
	if unit == nil {
		writeJSON(w, http.StatusOK, unitResponse{Done: true})
		return
	}

	resp := unitResponse{ID: unit.ID, Unit: json.RawMessage(unit.Content), Index: idx}
	if ann, err := h.Repo.FindAnnotation(r.Context(), unit.ID, coder.ID); err == nil {
		resp.Annotation = nil
		if err := ann.Payload.Unmarshal(&resp.Annotation); err != nil {
			writeError(w, apierror.Internal(err))
			return
		}
		resp.Status = ann.Status
		resp.Report = json.RawMessage(ann.Report)
	} else if !apierror.Is(err, apierror.KindNotFound) {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type postAnnotationRequest struct {
	Annotation []schema.AnnotationItem `json:"annotation"`
	Status     schema.AnnotationStatus `json:"status"`
}

// postAnnotation submits a coder's answer for a unit. A Conflict means
// another write raced on the (unit, coder) pair; the engine retries once
// before surfacing the error.
func (h *Handler) postAnnotation(w http.ResponseWriter, r *http.Request) {
	coder, err := requireCoder(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobID, err := pathInt64(r, "job_id")
	if err != nil {
		writeError(w, err)
		return
	}
	unitID, err := pathInt64(r, "unit_id")
	if err != nil {
		writeError(w, err)
		return
	}
	var body postAnnotationRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}

	job, err := h.Repo.FindJobByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	jobsetStub, err := h.Router.Bind(r.Context(), job, coder)
	if err != nil {
		writeError(w, err)
		return
	}
	jobset, err := h.Repo.FindJobSetByID(r.Context(), jobsetStub.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	report, err := h.Recon.Submit(r.Context(), jobset, coder.ID, unitID, body.Annotation, body.Status)
	if apierror.Is(err, apierror.KindConflict) {
		report, err = h.Recon.Submit(r.Context(), jobset, coder.ID, unitID, body.Annotation, body.Status)
	}
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// getProgress reports a coder's position in a job.
func (h *Handler) getProgress(w http.ResponseWriter, r *http.Request) {
	coder, err := requireCoder(r)
	if err != nil {
		writeError(w, err)
		return
	}
	jobID, err := pathInt64(r, "job_id")
	if err != nil {
		writeError(w, err)
		return
	}
	job, err := h.Repo.FindJobByID(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	srv, err := unitserver.New(r.Context(), h.Repo, h.Router, job, coder)
	if err != nil {
		writeError(w, err)
		return
	}
	rep, err := h.Progress.Report(r.Context(), srv, jobID, coder.ID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}
