// Package api implements the engine's REST boundary (§6): job creation
// and management, the get-unit and post-annotation calls, progress
// reporting, and the guest/job-token flow, routed with gorilla/mux and
// wrapped in gorilla/handlers' access-log and panic-recovery middleware.
package api

import (
	"net/http"
	"os"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "github.com/ccs-amsterdam/annotinder-server/internal/api/docs"
	"github.com/ccs-amsterdam/annotinder-server/internal/auth"
	"github.com/ccs-amsterdam/annotinder-server/internal/jobsetrouter"
	"github.com/ccs-amsterdam/annotinder-server/internal/progress"
	"github.com/ccs-amsterdam/annotinder-server/internal/reconciler"
	"github.com/ccs-amsterdam/annotinder-server/internal/repository"
	"github.com/ccs-amsterdam/annotinder-server/pkg/apierror"
	"github.com/ccs-amsterdam/annotinder-server/pkg/log"
	"github.com/ccs-amsterdam/annotinder-server/pkg/schema"
)

// Handler wires the engine's components to HTTP handlers.
type Handler struct {
	Repo     *repository.Repository
	Router   *jobsetrouter.Router
	Recon    *reconciler.Reconciler
	Progress *progress.Reporter
	Issuer   *auth.TokenIssuer
	Guests   *auth.GuestRedeemer
	Sessions *auth.SessionStore

	jobSchema *jobCreateValidator
}

// New builds a Handler. The job-creation JSON-schema document is
// compiled once at startup; a compile failure is logged and validation
// falls back to the Go-level structural checks alone.
func New(repo *repository.Repository, router *jobsetrouter.Router, recon *reconciler.Reconciler, prog *progress.Reporter, issuer *auth.TokenIssuer, guests *auth.GuestRedeemer, sessions *auth.SessionStore) *Handler {
	validator, err := newJobCreateValidator()
	if err != nil {
		log.Errorf("api: compiling job-creation schema: %s", err.Error())
		validator = nil
	}
	return &Handler{
		Repo:      repo,
		Router:    router,
		Recon:     recon,
		Progress:  prog,
		Issuer:    issuer,
		Guests:    guests,
		Sessions:  sessions,
		jobSchema: validator,
	}
}

// Routes returns the fully wired HTTP handler, access-logged and
// panic-recovering the way gorilla/handlers wraps a net/http-native
// router.
func (h *Handler) Routes() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/jobs", h.createJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs", h.listJobs).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{job_id:[0-9]+}/archive", h.archiveJob).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{job_id:[0-9]+}/coders", h.setJobCoders).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{job_id:[0-9]+}/token", h.mintJobToken).Methods(http.MethodPost)

	r.HandleFunc("/jobs/{job_id:[0-9]+}/unit", h.getUnit).Methods(http.MethodGet)
	r.HandleFunc("/jobs/{job_id:[0-9]+}/unit/{unit_id:[0-9]+}/annotation", h.postAnnotation).Methods(http.MethodPost)
	r.HandleFunc("/jobs/{job_id:[0-9]+}/progress", h.getProgress).Methods(http.MethodGet)

	r.HandleFunc("/guest/redeem", h.redeemGuestToken).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)
	r.HandleFunc("/auth/logout", h.logout).Methods(http.MethodPost)

	r.PathPrefix("/docs/").Handler(httpSwagger.WrapHandler)

	return handlers.RecoveryHandler()(
		handlers.CombinedLoggingHandler(os.Stderr, r),
	)
}

// requireCoder returns the authenticated user for the request, or an
// AuthorizationDenied error if the request carries no bearer token.
func requireCoder(r *http.Request) (*schema.User, error) {
	user := auth.GetUser(r.Context())
	if user == nil {
		return nil, apierror.AuthorizationDenied("authentication required")
	}
	return user, nil
}

func pathInt64(r *http.Request, name string) (int64, error) {
	n, err := parseInt64(mux.Vars(r)[name])
	if err != nil {
		return 0, apierror.BadRequest("invalid " + name)
	}
	return n, nil
}
