package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/love-developer/eras/internal/buildinfo"
	"github.com/love-developer/eras/internal/client/cli"
	"github.com/love-developer/eras/internal/client/config"
	"github.com/love-developer/eras/internal/logging"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()
	logger := logging.NewText(os.Stderr, slog.LevelInfo)

	app, err := cli.NewApp(cfg, logger)
	if err != nil {
		log.Fatalf("%v", err)
		return
	}

	app.Run(ctx)

}
