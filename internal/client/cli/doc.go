// Package cli implements the interactive capsule-authoring client: a REPL
// over the upload queue, the media reconciliation engine, the local draft
// store and the ingestion API.
package cli
