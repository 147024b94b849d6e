// Package cli implements catalogctl, the command-line client of the catalog
// media pipeline.
//
// Every command loads the client configuration, opens the local state
// database (session and upload journal) and talks to the catalog API with the
// stored session token. Typical flow:
//
//	catalogctl login --email admin@example.com
//	catalogctl product images <id> --hero hero.jpg --add a.png --add b.png
//	catalogctl discard --pending
//
// Uploads print progress on stderr; on a terminal the line is redrawn in
// place.
package cli
