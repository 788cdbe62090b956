package main

import (
	"context"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/squeakhq/squeakd/cmd/squeakd/passwd"
	"github.com/squeakhq/squeakd/cmd/squeakd/serve"
	"github.com/urfave/cli/v2"
)

func main() {
	// Optional; deployments provision real env vars instead.
	_ = godotenv.Load()
	app := &cli.App{
		Name:  "squeakd",
		Usage: "Authentication and anti-forgery core of the Squeak! board",
		Commands: []*cli.Command{
			serve.Cmd(),
			passwd.Cmd(),
		},
	}
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()
	err := app.RunContext(ctx, os.Args)
	if err != nil {
		log.Error().Err(err).Msg("Application failed")
	}
}
