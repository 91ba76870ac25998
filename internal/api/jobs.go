package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/ccs-amsterdam/annotinder-server/internal/auth"
	"github.com/ccs-amsterdam/annotinder-server/internal/conditionals"
	"github.com/ccs-amsterdam/annotinder-server/internal/repository"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

type unitRequest struct {
	ID           string          `json:"id"`
	Unit         json.RawMessage `json:"unit"`
	Type         string          `json:"type,omitempty"`
	Position     string          `json:"position,omitempty"`
	Conditionals json.RawMessage `json:"conditionals,omitempty"`
	Gold         json.RawMessage `json:"gold,omitempty"`
}

type jobsetRequest struct {
	Name       string          `json:"name"`
	Codebook   json.RawMessage `json:"codebook,omitempty"`
	Rules      json.RawMessage `json:"rules,omitempty"`
	Debriefing json.RawMessage `json:"debriefing,omitempty"`
	IDs        []string        `json:"ids,omitempty"`
	PreIDs     []string        `json:"preIds,omitempty"`
	PostIDs    []string        `json:"postIds,omitempty"`
}

type authorizationRequest struct {
	Restricted bool     `json:"restricted,omitempty"`
	Users      []string `json:"users,omitempty"`
}

type createJobRequest struct {
	Title         string                `json:"title"`
	Codebook      json.RawMessage       `json:"codebook,omitempty"`
	Debriefing    json.RawMessage       `json:"debriefing,omitempty"`
	Authorization *authorizationRequest `json:"authorization,omitempty"`
	Rules         json.RawMessage       `json:"rules"`
	Units         []unitRequest         `json:"units"`
	JobSets       []jobsetRequest       `json:"jobsets,omitempty"`
}

// createJob validates a job-creation payload in two passes: a
// json-schema structural check, then the cross-field rules a schema
// can't express (every unit reachable from some codebook, conditionals
// reachable against it).
func (h *Handler) createJob(w http.ResponseWriter, r *http.Request) {
	coder, err := requireCoder(r)
	if err != nil {
		writeError(w, err)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, apierror.Wrap(apierror.KindBadRequest, "reading request body", err))
		return
	}

	var generic interface{}
	if err := json.Unmarshal(body, &generic); err != nil {
		writeError(w, apierror.Wrap(apierror.KindBadRequest, "malformed request body", err))
		return
	}
	if err := h.jobSchema.Validate(generic); err != nil {
		writeError(w, err)
		return
	}

	var req createJobRequest
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, apierror.Wrap(apierror.KindBadRequest, "malformed request body", err))
		return
	}

	plan, err := buildJobPlan(req, coder.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	job, err := h.Repo.CreateJob(r.Context(), *plan)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, job)
}

// buildJobPlan converts a validated request into a repository.NewJobPlan,
// enforcing the rules the json schema leaves to Go: a codebook reachable
// for every jobset, and every unit's conditionals reachable against it.
func buildJobPlan(req createJobRequest, creatorID int64) (*repository.NewJobPlan, error) {
	var defaultRules schema.Rules
	if len(req.Rules) > 0 {
		if err := json.Unmarshal(req.Rules, &defaultRules); err != nil {
			return nil, apierror.Wrap(apierror.KindBadRequest, "rules", err)
		}
	}

	units := make([]repository.NewUnitPlan, 0, len(req.Units))
	for _, u := range req.Units {
		unitType := schema.UnitType(u.Type)
		if unitType == "" {
			unitType = schema.UnitTypeCode
		}
		position := schema.Position(u.Position)
		if position == "" {
			position = schema.PositionNone
		}
		conds := u.Conditionals
		if len(conds) == 0 {
			conds = u.Gold
		}
		units = append(units, repository.NewUnitPlan{
			ExternalID:   u.ID,
			Content:      schema.JSON(u.Unit),
			Conditionals: schema.JSON(conds),
			Type:         unitType,
			Position:     position,
		})
	}

	jobsetReqs := req.JobSets
	if len(jobsetReqs) == 0 {
		jobsetReqs = []jobsetRequest{{Name: "default"}}
	}

	jobsets := make([]repository.NewJobSetPlan, 0, len(jobsetReqs))
	for _, js := range jobsetReqs {
		codebook := js.Codebook
		if len(codebook) == 0 {
			codebook = req.Codebook
		}
		if len(codebook) == 0 {
			return nil, apierror.BadRequest("jobset " + js.Name + " has no codebook, and no top-level codebook was given")
		}

		rules := defaultRules
		if len(js.Rules) > 0 {
			if err := json.Unmarshal(js.Rules, &rules); err != nil {
				return nil, apierror.Wrap(apierror.KindBadRequest, "jobset "+js.Name+" rules", err)
			}
		}
		rulesRaw, err := schema.MarshalToJSON(rules)
		if err != nil {
			return nil, apierror.Internal(err)
		}

		debriefing := js.Debriefing
		if len(debriefing) == 0 {
			debriefing = req.Debriefing
		}

		memberIDs := jobsetMemberIDs(units, js)
		for _, id := range memberIDs {
			unit := findUnitPlan(units, id)
			if unit == nil {
				return nil, apierror.BadRequest("jobset " + js.Name + " references unknown unit id " + id)
			}
			unreachable, err := conditionals.Unreachable(&schema.Unit{Conditionals: unit.Conditionals, Content: unit.Content}, codebook)
			if err != nil {
				return nil, apierror.Wrap(apierror.KindBadRequest, "unit "+id+" conditionals", err)
			}
			if len(unreachable) > 0 {
				return nil, apierror.BadRequest("unit " + id + " has unreachable conditionals: " + joinNames(unreachable))
			}
		}

		jobsets = append(jobsets, repository.NewJobSetPlan{
			Name:       js.Name,
			Codebook:   schema.JSON(codebook),
			Rules:      rules,
			RulesRaw:   rulesRaw,
			Debriefing: schema.JSON(debriefing),
			PreIDs:     js.PreIDs,
			MidIDs:     js.IDs,
			PostIDs:    js.PostIDs,
		})
	}

	plan := &repository.NewJobPlan{
		Title:      req.Title,
		CreatorID:  creatorID,
		Units:      units,
		JobSets:    jobsets,
		Debriefing: schema.JSON(req.Debriefing),
	}
	if req.Authorization != nil {
		plan.Restricted = req.Authorization.Restricted
		plan.AuthorizedUsers = req.Authorization.Users
	}
	return plan, nil
}

// jobsetMemberIDs mirrors internal/repository's slot computation so
// reachability can be checked against the units a jobset will actually
// receive, without needing the units to already be in the database.
func jobsetMemberIDs(units []repository.NewUnitPlan, js jobsetRequest) []string {
	var ids []string
	preIDs := js.PreIDs
	if preIDs == nil {
		preIDs = idsWithPosition(units, schema.PositionPre)
	}
	ids = append(ids, preIDs...)

	midIDs := js.IDs
	if midIDs == nil {
		midIDs = idsWithPosition(units, schema.PositionNone)
	}
	ids = append(ids, midIDs...)

	postIDs := js.PostIDs
	if postIDs == nil {
		postIDs = idsWithPosition(units, schema.PositionPost)
	}
	ids = append(ids, postIDs...)
	return ids
}

func idsWithPosition(units []repository.NewUnitPlan, pos schema.Position) []string {
	var ids []string
	for _, u := range units {
		if u.Position == pos {
			ids = append(ids, u.ExternalID)
		}
	}
	return ids
}

func findUnitPlan(units []repository.NewUnitPlan, externalID string) *repository.NewUnitPlan {
	for i := range units {
		if units[i].ExternalID == externalID {
			return &units[i]
		}
	}
	return nil
}

func joinNames(names []string) string {
	out := ""
	for i, n := range names {
		if i > 0 {
			out += ", "
		}
		out += n
	}
	return out
}

// listJobs returns every job's metadata; restricted to admins since the
// engine has no per-creator job listing.
func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	user, err := requireCoder(r)
	if err != nil {
		writeError(w, err)
		return
	}
	if !auth.HasRole(user, auth.RoleAdmin) {
		writeError(w, apierror.AuthorizationDenied("admin role required"))
		return
	}
	jobs, err := h.Repo.ListJobs(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (h *Handler) requireJobOwner(r *http.Request) (*schema.CodingJob, error) {
	user, err := requireCoder(r)
	if err != nil {
		return nil, err
	}
	jobID, err := pathInt64(r, "job_id")
	if err != nil {
		return nil, err
	}
	job, err := h.Repo.FindJobByID(r.Context(), jobID)
	if err != nil {
		return nil, err
	}
	if !auth.HasRole(user, auth.RoleAdmin) && job.CreatorID != user.ID {
		return nil, apierror.AuthorizationDenied("only the job's creator or an admin may manage it")
	}
	return job, nil
}

func (h *Handler) archiveJob(w http.ResponseWriter, r *http.Request) {
	job, err := h.requireJobOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		Archived bool `json:"archived"`
	}
	body.Archived = true
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
	}
	if err := h.Repo.ArchiveJob(r.Context(), job.ID, body.Archived); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

func (h *Handler) setJobCoders(w http.ResponseWriter, r *http.Request) {
	job, err := h.requireJobOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		UserIDs []int64 `json:"userIds"`
		CanCode bool    `json:"canCode"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	if err := h.Repo.SetJobCoders(r.Context(), job.ID, body.UserIDs, body.CanCode); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, nil)
}

// mintJobToken issues a guest link: a token that redeems into a bearer
// token for a freshly minted user restricted to this job.
func (h *Handler) mintJobToken(w http.ResponseWriter, r *http.Request) {
	job, err := h.requireJobOwner(r)
	if err != nil {
		writeError(w, err)
		return
	}
	var body struct {
		TTLSeconds int `json:"ttlSeconds"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &body); err != nil {
			writeError(w, err)
			return
		}
	}
	ttl := 30 * 24 * time.Hour
	if body.TTLSeconds > 0 {
		ttl = time.Duration(body.TTLSeconds) * time.Second
	}
	token, err := h.Guests.MintJobToken(job.ID, ttl)
	if err != nil {
		writeError(w, apierror.Internal(err))
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string `json:"token"`
	}{token})
}

func (h *Handler) redeemGuestToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Token string `json:"token"`
		Name  string `json:"name,omitempty"`
	}
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, err)
		return
	}
	bearer, user, err := h.Guests.Redeem(r.Context(), body.Token, body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Token string      `json:"token"`
		User  *schema.User `json:"user"`
	}{bearer, user})
}
