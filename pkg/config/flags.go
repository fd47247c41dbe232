package config

import (
	"time"

	"github.com/urfave/cli/v2"
)

// Flags are the global flags every subcommand reads through FromCLI.
func Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "github-token",
			Usage:   "GitHub personal access token",
			EnvVars: []string{"GITHUB_PAT", "GITHUB_TOKEN"},
		},
		&cli.StringFlag{
			Name:    "github-api-url",
			Usage:   "base url of the GitHub REST API",
			Value:   "https://api.github.com",
			EnvVars: []string{"ETL_GITHUB_API_URL"},
		},
		&cli.Float64Flag{
			Name:    "github-rate-limit",
			Usage:   "rate limit for GitHub API requests in requests per second",
			Value:   1,
			EnvVars: []string{"ETL_GITHUB_RATE_LIMIT"},
		},
		&cli.Uint64Flag{
			Name:    "github-max-retries",
			Usage:   "retries of rate limited or failed GitHub API requests",
			Value:   3,
			EnvVars: []string{"ETL_GITHUB_MAX_RETRIES"},
		},
		&cli.IntFlag{
			Name:    "cache-size",
			Usage:   "number of issues whose comments and timeline are cached per run",
			Value:   10_000,
			EnvVars: []string{"ETL_CACHE_SIZE"},
		},
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "postgres url or sqlite path of the warehouse",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.BoolFlag{
			Name:    "migrate-db",
			Usage:   "create missing tables on startup (local development)",
			Value:   false,
			EnvVars: []string{"ETL_MIGRATE_DB"},
		},
		&cli.StringFlag{
			Name:    "pipeline-name",
			Usage:   "watermark key of the pipeline",
			Value:   "github_issues",
			EnvVars: []string{"ETL_PIPELINE_NAME"},
		},
		&cli.BoolFlag{
			Name:    "debug",
			Usage:   "enable debug logging",
			Value:   false,
			EnvVars: []string{"ETL_DEBUG"},
		},
		&cli.StringFlag{
			Name:    "parquet-dir",
			Usage:   "directory to archive each loaded batch to as parquet",
			EnvVars: []string{"ETL_PARQUET_DIR"},
		},
		&cli.StringFlag{
			Name:    "bigquery-project-id",
			Usage:   "Google Cloud project ID for BigQuery",
			EnvVars: []string{"ETL_BIGQUERY_PROJECT_ID"},
		},
		&cli.StringFlag{
			Name:    "bigquery-dataset",
			Usage:   "BigQuery dataset name",
			EnvVars: []string{"ETL_BIGQUERY_DATASET"},
		},
		&cli.StringFlag{
			Name:    "bigquery-table",
			Usage:   "BigQuery table name",
			Value:   "real_github_issues",
			EnvVars: []string{"ETL_BIGQUERY_TABLE"},
		},
		&cli.StringFlag{
			Name:    "listen-addr",
			Usage:   "address to serve the http api on",
			Value:   ":8080",
			EnvVars: []string{"ETL_LISTEN_ADDR"},
		},
		&cli.StringFlag{
			Name:    "schedule",
			Usage:   "cron schedule of pipeline runs when serving",
			Value:   "@daily",
			EnvVars: []string{"ETL_SCHEDULE"},
		},
		&cli.Uint64Flag{
			Name:    "retries",
			Usage:   "retries of a failed scheduled run",
			Value:   2,
			EnvVars: []string{"ETL_RETRIES"},
		},
		&cli.DurationFlag{
			Name:    "retry-interval",
			Usage:   "initial wait before retrying a failed scheduled run",
			Value:   5 * time.Minute,
			EnvVars: []string{"ETL_RETRY_INTERVAL"},
		},
	}
}
