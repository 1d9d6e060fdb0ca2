package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variable names.
const (
	EnvAuthToken      = "YM_AUTH_TOKEN"
	EnvDBKind         = "DB_KIND"
	EnvDBHost         = "DB_HOST"
	EnvDBPort         = "DB_PORT"
	EnvDBUser         = "DB_USER"
	EnvDBPassword     = "DB_PASSWORD"
	EnvDBName         = "DB_NAME"
	EnvDBDSN          = "DB_DSN"
	EnvMetricsBackend = "METRICS_BACKEND"
	EnvPushgatewayURL = "PUSHGATEWAY_URL"
	EnvDogStatsDAddr  = "DOGSTATSD_ADDR"
)

// DefaultDBKind is the storage backend used when DB_KIND is unset.
const DefaultDBKind = "clickhouse"

// legacyDBVars maps the generic DB_* names to the older CLICKHOUSE_* names,
// which are consulted as fallbacks.
var legacyDBVars = map[string]string{
	EnvDBHost:     "CLICKHOUSE_HOST",
	EnvDBPort:     "CLICKHOUSE_PORT",
	EnvDBUser:     "CLICKHOUSE_USER",
	EnvDBPassword: "CLICKHOUSE_PASSWORD",
	EnvDBName:     "CLICKHOUSE_DATABASE",
}

// Env is the process environment relevant to the tools.
type Env struct {
	AuthToken string
	DB        DB

	MetricsBackend string
	PushgatewayURL string
	DogStatsDAddr  string
}

// DB holds destination database connection settings.
type DB struct {
	Kind     string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	DSN      string

	portRaw string
}

// LoadDotEnv loads variables from the given .env files (default ".env")
// without overriding variables already present in the process environment.
// Missing files are not an error.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return Errorf("env", "load %s: %v", f, err)
		}
	}
	return nil
}

// LookupFunc matches os.LookupEnv; tests inject a map-backed version.
type LookupFunc func(key string) (string, bool)

// FromOS reads Env from the process environment.
func FromOS() Env { return FromLookup(os.LookupEnv) }

// FromLookup reads Env through lookup. Values are trimmed; nothing is
// validated here (see RequireAuthToken and DB.Validate).
func FromLookup(lookup LookupFunc) Env {
	get := func(key string) string {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
		if legacy, ok := legacyDBVars[key]; ok {
			if v, ok := lookup(legacy); ok {
				return strings.TrimSpace(v)
			}
		}
		return ""
	}

	db := DB{
		Kind:     strings.ToLower(get(EnvDBKind)),
		Host:     get(EnvDBHost),
		User:     get(EnvDBUser),
		Password: get(EnvDBPassword),
		Name:     get(EnvDBName),
		DSN:      get(EnvDBDSN),
		portRaw:  get(EnvDBPort),
	}
	if db.Kind == "" {
		db.Kind = DefaultDBKind
	}
	if p, err := strconv.Atoi(db.portRaw); err == nil {
		db.Port = p
	}

	return Env{
		AuthToken:      get(EnvAuthToken),
		DB:             db,
		MetricsBackend: get(EnvMetricsBackend),
		PushgatewayURL: get(EnvPushgatewayURL),
		DogStatsDAddr:  get(EnvDogStatsDAddr),
	}
}

// RequireAuthToken reports a configuration error when the API token is unset.
func (e Env) RequireAuthToken() error {
	if e.AuthToken == "" {
		return Errorf("env."+EnvAuthToken, "environment variable `%s` is missing", EnvAuthToken)
	}
	return nil
}

// Validate checks that enough connection settings are present for Kind.
// DB_DSN, when set, replaces host/port/user; sqlite only needs a file name.
// The password is optional.
func (d DB) Validate() []Issue {
	var issues []Issue
	if d.DSN != "" {
		return nil
	}
	missing := func(name string) {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "env." + name,
			Message:  "environment variable `" + name + "` is missing",
		})
	}
	if d.Kind == "sqlite" {
		if d.Name == "" {
			missing(EnvDBName)
		}
		return issues
	}
	if d.Host == "" {
		missing(EnvDBHost)
	}
	if d.portRaw == "" {
		missing(EnvDBPort)
	} else if d.Port <= 0 || d.Port > 65535 {
		issues = append(issues, Issue{
			Severity: SeverityError,
			Path:     "env." + EnvDBPort,
			Message:  "`" + EnvDBPort + "` must be a TCP port number, got " + strconv.Quote(d.portRaw),
		})
	}
	if d.User == "" {
		missing(EnvDBUser)
	}
	return issues
}
