package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/ericvolp12/issues-etl/pkg/frame"
	"github.com/ericvolp12/issues-etl/pkg/parq"
	"github.com/urfave/cli/v2"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

var runCommand = &cli.Command{
	Name:  "run",
	Usage: "extract everything updated since the watermark, load it and advance the watermark",
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx, needs{github: true, database: true})
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.pipeline.Run(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var extractCommand = &cli.Command{
	Name:  "extract",
	Usage: "extract issue activity to a frame file without loading it",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "out",
			Usage: "file to write the extracted frame to, - for stdout",
			Value: "-",
		},
		&cli.TimestampFlag{
			Name:   "since",
			Usage:  "extract issues updated at or after this time instead of the stored watermark",
			Layout: time.RFC3339,
		},
		&cli.BoolFlag{
			Name:  "full",
			Usage: "extract the whole history",
		},
	},
	Action: func(cctx *cli.Context) error {
		since := cctx.Timestamp("since")
		full := cctx.Bool("full")
		if since != nil && full {
			return fmt.Errorf("--since and --full are mutually exclusive")
		}

		e, err := setup(cctx, needs{github: true, database: since == nil && !full})
		if err != nil {
			return err
		}
		defer e.Close()

		if since == nil && !full {
			since, err = e.pipeline.ReadWatermark(cctx.Context)
			if err != nil {
				return err
			}
		}

		f, report, err := e.extractor.Extract(cctx.Context, since)
		if err != nil {
			return err
		}
		e.logger.Info("extracted",
			"rows", report.Rows,
			"succeeded", len(report.Succeeded),
			"skipped", report.Skipped,
		)

		var w io.Writer = os.Stdout
		if out := cctx.String("out"); out != "-" {
			file, err := os.Create(out)
			if err != nil {
				return fmt.Errorf("failed to create output file: %w", err)
			}
			defer file.Close()
			w = file
		}
		return frame.Write(w, f)
	},
}

var loadCommand = &cli.Command{
	Name:  "load",
	Usage: "normalize and load a frame file written by extract",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:  "in",
			Usage: "frame file to load, - for stdin",
			Value: "-",
		},
	},
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx, needs{database: true})
		if err != nil {
			return err
		}
		defer e.Close()

		var r io.Reader = os.Stdin
		if in := cctx.String("in"); in != "-" {
			file, err := os.Open(in)
			if err != nil {
				return fmt.Errorf("failed to open input file: %w", err)
			}
			defer file.Close()
			r = file
		}

		f, err := frame.Read(r)
		if err != nil {
			return err
		}

		res, err := e.pipeline.Load(cctx.Context, f)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var reposCommand = &cli.Command{
	Name:  "repos",
	Usage: "load a snapshot of the repository catalog",
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx, needs{github: true, database: true})
		if err != nil {
			return err
		}
		defer e.Close()

		res, err := e.pipeline.SyncRepositories(cctx.Context)
		if err != nil {
			return err
		}
		return printJSON(res)
	},
}

var watermarkCommand = &cli.Command{
	Name:  "watermark",
	Usage: "inspect or move the pipeline watermark",
	Subcommands: []*cli.Command{
		{
			Name:  "get",
			Usage: "print the watermark, or nothing before the first successful run",
			Action: func(cctx *cli.Context) error {
				e, err := setup(cctx, needs{database: true})
				if err != nil {
					return err
				}
				defer e.Close()

				w, err := e.pipeline.ReadWatermark(cctx.Context)
				if err != nil {
					return err
				}
				if w == nil {
					e.logger.Info("no watermark recorded", "pipeline", e.pipeline.Name())
					return nil
				}
				fmt.Println(w.UTC().Format(time.RFC3339Nano))
				return nil
			},
		},
		{
			Name:  "advance",
			Usage: "advance the watermark, to now unless --to is given",
			Flags: []cli.Flag{
				&cli.TimestampFlag{
					Name:   "to",
					Usage:  "time to advance the watermark to",
					Layout: time.RFC3339,
				},
			},
			Action: func(cctx *cli.Context) error {
				e, err := setup(cctx, needs{database: true})
				if err != nil {
					return err
				}
				defer e.Close()

				to := time.Now()
				if t := cctx.Timestamp("to"); t != nil {
					to = *t
				}

				w, err := e.pipeline.AdvanceWatermark(cctx.Context, to)
				if err != nil {
					return err
				}
				fmt.Println(w.UTC().Format(time.RFC3339Nano))
				return nil
			},
		},
	},
}

var exportCommand = &cli.Command{
	Name:  "export",
	Usage: "write every stored issue event to a parquet file",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "out",
			Usage:    "parquet file to write",
			Required: true,
		},
		&cli.IntFlag{
			Name:  "batch-size",
			Usage: "rows read from the database per batch",
			Value: 1000,
		},
	},
	Action: func(cctx *cli.Context) error {
		e, err := setup(cctx, needs{database: true})
		if err != nil {
			return err
		}
		defer e.Close()

		out := cctx.String("out")
		p, err := parq.NewParq(e.logger, filepath.Dir(out), "export")
		if err != nil {
			return err
		}

		n, err := p.Export(cctx.Context, e.store, out, cctx.Int("batch-size"))
		if err != nil {
			return err
		}
		e.logger.Info("exported issue events", "file_path", out, "rows", n)
		return nil
	},
}
