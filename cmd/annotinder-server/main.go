// Command annotinder-server runs the coding engine: it loads
// configuration, opens the SQLite store, wires C1-C6, and serves the
// REST boundary over HTTP.
package main

import (
	"flag"
	"net/http"
	"time"

	"github.com/google/gops/agent"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ccs-amsterdam/annotinder-server/internal/api"
	"github.com/ccs-amsterdam/annotinder-server/internal/archive"
	"github.com/ccs-amsterdam/annotinder-server/internal/auth"
	"github.com/ccs-amsterdam/annotinder-server/internal/config"
	"github.com/ccs-amsterdam/annotinder-server/internal/jobsetrouter"
	"github.com/ccs-amsterdam/annotinder-server/internal/progress"
	"github.com/ccs-amsterdam/annotinder-server/internal/reconciler"
	"github.com/ccs-amsterdam/annotinder-server/internal/repository"
	"github.com/ccs-amsterdam/annotinder-server/pkg/log"
)

func main() {
	configFile := flag.String("config", "config.json", "path to the JSON configuration file")
	flag.Parse()

	if err := config.Init(*configFile); err != nil {
		log.Fatalf("loading configuration: %s", err.Error())
	}
	cfg := config.Keys
	log.Init(cfg.Debug)

	if cfg.EnableGops {
		if err := agent.Listen(agent.Options{}); err != nil {
			log.Warnf("gops: %s", err.Error())
		}
	}

	store, err := archive.New(cfg.Archive)
	if err != nil {
		log.Fatalf("archive: %s", err.Error())
	}

	repo, err := repository.Connect(cfg.DBDriver, cfg.DBConnectionString)
	if err != nil {
		log.Fatalf("repository: %s", err.Error())
	}
	repo.SetArchive(store)

	issuer := auth.NewTokenIssuer(cfg.JWTSecret, time.Duration(cfg.BearerTokenTTL)*time.Second)
	sessions := auth.NewSessionStore(cfg.SessionSecret)
	guests := auth.NewGuestRedeemer(issuer, repo)

	router := jobsetrouter.New(repo)
	recon := reconciler.New(repo)
	prog := progress.New(repo)

	handler := api.New(repo, router, recon, prog, issuer, guests, sessions)

	srv := &http.Server{
		Addr:         cfg.Addr,
		Handler:      auth.Middleware(issuer)(handler.Routes()),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	metricsServer := &http.Server{Addr: ":9090", Handler: promhttp.Handler()}
	go func() {
		log.Printf("metrics: listening on %s", metricsServer.Addr)
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorf("metrics server: %s", err.Error())
		}
	}()

	log.Printf("annotinder-server: listening on %s", cfg.Addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("server: %s", err.Error())
	}
}
