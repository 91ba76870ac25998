// Package config loads the service's runtime configuration: a JSON
// config file layered with optional .env overrides (joho/godotenv) so
// secrets like JWTSecret can be injected without editing the checked-in
// config file.
package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/ccs-amsterdam/annotinder-server/pkg/log"
)

// Keys holds the process-wide configuration as a package variable set
// once at startup.
var Keys Config

// Config is the on-disk shape of the service's configuration file.
type Config struct {
	Addr string `json:"addr"`

	DBDriver           string `json:"dbDriver"`
	DBConnectionString string `json:"dbConnectionString"`

	JWTSecret       string `json:"jwtSecret"`
	SessionSecret   string `json:"sessionSecret"`
	GuestTokenTTL   int    `json:"guestTokenTtlSeconds"`
	BearerTokenTTL  int    `json:"bearerTokenTtlSeconds"`

	Archive ArchiveConfig `json:"archive"`

	LDAP *LDAPConfig `json:"ldap,omitempty"`
	OIDC *OIDCConfig `json:"oidc,omitempty"`

	Debug      bool `json:"debug"`
	EnableGops bool `json:"enableGops"`
}

// ArchiveConfig selects the backend for internal/archive (file or s3).
type ArchiveConfig struct {
	Kind      string `json:"kind"` // "file" | "s3"
	Path      string `json:"path,omitempty"`
	Bucket    string `json:"bucket,omitempty"`
	Region    string `json:"region,omitempty"`
	AccessKey string `json:"accessKey,omitempty"`
	SecretKey string `json:"secretKey,omitempty"`
}

// LDAPConfig describes an optional LDAP bind provider (boundary auth backend).
type LDAPConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	BindDN       string `json:"bindDN"`
	BindPassword string `json:"bindPassword"`
	BaseDN       string `json:"baseDN"`
	UserFilter   string `json:"userFilter"`
}

// OIDCConfig describes an optional OIDC provider (boundary, client config only).
type OIDCConfig struct {
	IssuerURL    string `json:"issuerURL"`
	ClientID     string `json:"clientID"`
	ClientSecret string `json:"clientSecret"`
	RedirectURL  string `json:"redirectURL"`
}

// Init loads configFile (JSON) into Keys and overlays values from a .env
// file in the working directory, populating package state once at startup.
func Init(configFile string) error {
	if err := godotenv.Overload(); err != nil && !os.IsNotExist(err) {
		log.Warnf("config: could not load .env: %s", err.Error())
	}

	bytes, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("config: reading %s: %w", configFile, err)
	}

	cfg := Default()
	if err := json.Unmarshal(bytes, &cfg); err != nil {
		return fmt.Errorf("config: parsing %s: %w", configFile, err)
	}

	applyEnvOverrides(&cfg)
	Keys = cfg
	return nil
}

// Default returns the configuration used when no file is supplied (e.g. in tests).
func Default() Config {
	return Config{
		Addr:               "localhost:8080",
		DBDriver:           "sqlite3",
		DBConnectionString: ":memory:",
		JWTSecret:          "dev-secret-change-me",
		SessionSecret:      "dev-session-secret-change-me",
		GuestTokenTTL:      3600,
		BearerTokenTTL:     24 * 3600,
		Archive:            ArchiveConfig{Kind: "file", Path: "./var/archive"},
	}
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("ANNOTINDER_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("ANNOTINDER_SESSION_SECRET"); v != "" {
		cfg.SessionSecret = v
	}
	if v := os.Getenv("ANNOTINDER_DB_CONNECTION_STRING"); v != "" {
		cfg.DBConnectionString = v
	}
	if v := os.Getenv("ANNOTINDER_ADDR"); v != "" {
		cfg.Addr = v
	}
}
