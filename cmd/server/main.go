package main

import (
	"context"
	"log"
	"os"

	"github.com/love-developer/eras/internal/buildinfo"
	"github.com/love-developer/eras/internal/server"
	"github.com/love-developer/eras/internal/server/config"
)

func main() {
	buildinfo.PrintBuildData(os.Stdout)

	ctx := context.Background()
	cfg := config.LoadConfig()

	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
