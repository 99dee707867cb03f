// The main package for the kobarchive executable.
//
// Architecture overview:
//   - Store: internal/store persists exhibitions, artists, images and the
//     scrape audit log in Postgres via pgx. All passes read and write through
//     it; nothing else touches the database.
//   - Metadata crawl: internal/scraper walks year listings to detail pages
//     and inserts new exhibitions with their artist links and URL-only image
//     rows. The crawl is additive; existing exhibitions are never updated.
//   - Image passes: internal/images downloads pending thumbnails to a
//     deterministic <dir>/<year>/<exhibition>/<file> layout; internal/highres
//     follows per-image view links to full-resolution bytes and reconciles
//     them against existing rows by filename.
//   - Export: internal/store.Export flattens the relational data into one
//     JSON document for static consumption.
//   - Plumbing: Viper populates config from file and KOBARCHIVE_* env vars;
//     zap provides structured logging; Prometheus counters track request and
//     download activity; Cobra wires the command surface.
package main

import (
	"github.com/klingogbang/archive/cmd"
)

// main defers all execution to the Cobra CLI.
func main() {
	cmd.Execute()
}
