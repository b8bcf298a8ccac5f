// Package config binds the environment configuration of the client and of
// `habio serve`. Fields carry kong tags so they double as CLI flags.
package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"

	"github.com/julianstephens/habio/internal/constants"
	apperrors "github.com/julianstephens/habio/internal/errors"
)

// Client is the configuration consumed by the app: where the backend lives and
// which database and collections hold habits and completions.
type Client struct {
	Endpoint                string `help:"Backend endpoint URL. Empty uses the embedded backend." env:"HABIO_ENDPOINT"`
	ProjectID               string `help:"Backend project identifier." env:"HABIO_PROJECT_ID" default:"habio"`
	DatabaseID              string `help:"Database identifier." env:"HABIO_DATABASE_ID" default:"main"`
	HabitsCollectionID      string `help:"Habits collection identifier." env:"HABIO_HABITS_COLLECTION_ID" default:"habits"`
	CompletionsCollectionID string `help:"Completions collection identifier." env:"HABIO_COMPLETIONS_COLLECTION_ID" default:"completions"`
	Platform                string `help:"Platform identifier sent to the backend." env:"HABIO_PLATFORM" default:"co.habio.tracker"`
	DataPath                string `help:"Embedded backend database file." env:"HABIO_DATA" default:"~/.config/habio/habio.db" name:"data"`
}

// Server is the configuration of `habio serve`.
type Server struct {
	Listen      string   `help:"Listen address." env:"HABIO_LISTEN" default:":8780"`
	DB          string   `help:"SQLite path or PostgreSQL URL. Defaults to --data." env:"HABIO_DB" name:"db"`
	RedisAddr   string   `help:"Redis address for sharing realtime events between server processes." env:"HABIO_REDIS_ADDR"`
	CORSOrigins []string `help:"Allowed CORS origins." env:"HABIO_CORS_ORIGINS" name:"cors-origins"`
}

// LoadDotEnv loads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error.
func LoadDotEnv(path string) error {
	if path == "" {
		path = ".env"
	}
	err := godotenv.Load(path)
	if err != nil && errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// Validate fails with a validation error naming every missing identifier.
func (c Client) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"HABIO_PROJECT_ID", c.ProjectID},
		{"HABIO_DATABASE_ID", c.DatabaseID},
		{"HABIO_HABITS_COLLECTION_ID", c.HabitsCollectionID},
		{"HABIO_COMPLETIONS_COLLECTION_ID", c.CompletionsCollectionID},
		{"HABIO_PLATFORM", c.Platform},
	}

	var missing []string
	for _, r := range required {
		if strings.TrimSpace(r.value) == "" {
			missing = append(missing, r.key)
		}
	}
	if c.Embedded() && strings.TrimSpace(c.DataPath) == "" {
		missing = append(missing, "HABIO_DATA")
	}
	if len(missing) > 0 {
		return apperrors.Newf(apperrors.KindValidation, "missing configuration: %s", strings.Join(missing, ", "))
	}
	return nil
}

// Embedded reports whether the client runs against the in-process backend
func (c Client) Embedded() bool {
	return strings.TrimSpace(c.Endpoint) == ""
}

// Profile names the backend the session secret belongs to
func (c Client) Profile() string {
	if c.Embedded() {
		return "embedded"
	}
	return strings.TrimRight(c.Endpoint, "/") + "#" + c.ProjectID
}

// ResolvedDataPath returns DataPath with a leading ~ expanded
func (c Client) ResolvedDataPath() (string, error) {
	return ExpandPath(c.DataPath)
}

// DataDir is the directory holding the data file, logs and pid files
func (c Client) DataDir() (string, error) {
	path, err := c.ResolvedDataPath()
	if err != nil {
		return "", err
	}
	return filepath.Dir(path), nil
}

// StorageURL returns the database the server should open
func (s Server) StorageURL(client Client) (string, error) {
	if s.DB != "" {
		if IsPostgresURL(s.DB) {
			return s.DB, nil
		}
		return ExpandPath(s.DB)
	}
	return client.ResolvedDataPath()
}

// IsPostgresURL reports whether dsn names a PostgreSQL database
func IsPostgresURL(dsn string) bool {
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// DefaultClient returns the configuration kong would produce with no flags or
// environment set.
func DefaultClient() Client {
	return Client{
		ProjectID:               "habio",
		DatabaseID:              "main",
		HabitsCollectionID:      "habits",
		CompletionsCollectionID: "completions",
		Platform:                constants.DefaultPlatform,
		DataPath:                constants.DefaultDataPath,
	}
}
