// Package main hosts the harvester entrypoint.
//
// Architecture overview:
//   - Worklist: internal/rowsource reads the input spreadsheet with excelize. Each data row becomes a
//     harvest.WorkItem keyed by the configured key column (or its row number) with one or more source
//     references, optionally built from a URL template such as https://host/drb/{value}/EE.
//   - Tasks: each subcommand (html, translate, chapters, parlinks, pdfpage) selects an Extractor. HTML tasks
//     fetch through the Colly fetcher with a per-host token bucket; the link task drives Chrome via chromedp;
//     the translate task wraps the html extractor with the chunked transformer.
//   - Pipeline: a fixed pool of workers (run.concurrency) processes rows; one coordinator applies outcomes to
//     the result table and writes the full table every run.checkpoint_every rows and once more at the end.
//     Row failures are recorded as visible "Error: ..." cells and never stop the run.
//   - Persistence: the table is encoded as xlsx and atomically replaced on disk or in GCS; when db.dsn is
//     set the same rows are also written to Postgres in one transaction per checkpoint.
//   - Progress: pipeline events feed a non-blocking hub that logs with zap, updates Prometheus collectors,
//     publishes checkpoints to Pub/Sub when configured, and backs GET /v1/progress on the status server.
//
// Operational notes:
//   - SIGINT/SIGTERM stops dispatching new rows; rows already in flight finish, the table is flushed, and
//     the process exits non-zero. Rows never dispatched keep their input values and empty result cells.
//   - Configuration comes from an optional file (--config) and HARVEST_* environment variables, e.g.
//     HARVEST_RUN_CONCURRENCY, HARVEST_INPUT_PATH, HARVEST_OUTPUT_GCS_BUCKET, HARVEST_DB_DSN.
//   - --dry-run (output.dry_run) keeps checkpoints and Pub/Sub notifications in memory; HARVEST_HEADLESS_RENDER
//     fetches html, chapters and translate pages through Chrome.
//
// Quick checklist:
//   - go run ./cmd/harvester html -i TA_input.xlsx -o output.xlsx
//   - go run ./cmd/harvester chapters -i input.xlsx -o output6.xlsx -c 10 --port 8080
//   - go run ./cmd/harvester html -i TA_input.xlsx --dry-run --port 8080
package main
