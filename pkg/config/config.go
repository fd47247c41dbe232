package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

var (
	ErrMissingGitHubToken = errors.New("a GitHub token is required (--github-token or GITHUB_PAT)")
	ErrMissingDatabaseURL = errors.New("a database url is required (--database-url or DATABASE_URL)")
)

type GitHub struct {
	Token      string
	APIURL     string
	RateLimit  float64
	MaxRetries uint64
	CacheSize  int
}

type BigQuery struct {
	ProjectID string
	Dataset   string
	Table     string
}

// Enabled reports whether loaded rows should be mirrored to BigQuery.
func (b BigQuery) Enabled() bool { return b.ProjectID != "" }

type Config struct {
	GitHub   GitHub
	BigQuery BigQuery

	DatabaseURL  string
	MigrateDB    bool
	PipelineName string
	ParquetDir   string
	Debug        bool

	ListenAddr    string
	Schedule      string
	Retries       uint64
	RetryInterval time.Duration
}

// LoadDotEnv loads variables from the given files, or .env, into the
// environment without overriding anything already set. Missing files are
// not an error.
func LoadDotEnv(files ...string) {
	_ = godotenv.Load(files...)
}

// FromCLI reads the global flags off cctx.
func FromCLI(cctx *cli.Context) Config {
	return Config{
		GitHub: GitHub{
			Token:      cctx.String("github-token"),
			APIURL:     cctx.String("github-api-url"),
			RateLimit:  cctx.Float64("github-rate-limit"),
			MaxRetries: cctx.Uint64("github-max-retries"),
			CacheSize:  cctx.Int("cache-size"),
		},
		BigQuery: BigQuery{
			ProjectID: cctx.String("bigquery-project-id"),
			Dataset:   cctx.String("bigquery-dataset"),
			Table:     cctx.String("bigquery-table"),
		},
		DatabaseURL:   cctx.String("database-url"),
		MigrateDB:     cctx.Bool("migrate-db"),
		PipelineName:  cctx.String("pipeline-name"),
		ParquetDir:    cctx.String("parquet-dir"),
		Debug:         cctx.Bool("debug"),
		ListenAddr:    cctx.String("listen-addr"),
		Schedule:      cctx.String("schedule"),
		Retries:       cctx.Uint64("retries"),
		RetryInterval: cctx.Duration("retry-interval"),
	}
}

// Validate checks settings every command depends on.
func (c Config) Validate() error {
	if c.PipelineName == "" {
		return errors.New("pipeline name must not be empty")
	}
	if c.GitHub.RateLimit < 0 {
		return fmt.Errorf("github rate limit must not be negative, got %v", c.GitHub.RateLimit)
	}
	if c.GitHub.CacheSize < 0 {
		return fmt.Errorf("cache size must not be negative, got %d", c.GitHub.CacheSize)
	}
	if c.BigQuery.Enabled() && (c.BigQuery.Dataset == "" || c.BigQuery.Table == "") {
		return errors.New("bigquery dataset and table are required when a project id is set")
	}
	return nil
}

func (c Config) RequireGitHub() error {
	if c.GitHub.Token == "" {
		return ErrMissingGitHubToken
	}
	return nil
}

func (c Config) RequireDatabase() error {
	if c.DatabaseURL == "" {
		return ErrMissingDatabaseURL
	}
	return nil
}
