package config

import (
	"flag"
	"os"

	"github.com/love-developer/eras/internal/flagx"
)

// parseFlags populates selected Config fields from command-line flags.
//
// Supported flags (short forms):
//
//	-a string   base URL of the ingestion API (default from Config)
//	-d string   DSN of the local draft database (default from Config)
//	-w int      maximum concurrent uploads (default from Config)
//
// Note: The function filters os.Args to only include the flags it knows about,
// using flagx.FilterArgs, to avoid interference with other components.
func parseFlags(cfg *Config) {
	// Filter args to include only those handled here.
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-d", "-w"})

	fs := flag.NewFlagSet("main", flag.ContinueOnError)

	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "base URL of the ingestion API")
	fs.StringVar(&cfg.DraftDBDsn, "d", cfg.DraftDBDsn, "DSN of the local draft database")
	fs.IntVar(&cfg.UploadConcurrency, "w", cfg.UploadConcurrency, "maximum concurrent uploads")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}
