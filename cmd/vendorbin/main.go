package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattjoyce/vendorbin/internal/app"
	"github.com/mattjoyce/vendorbin/internal/config"
	"github.com/mattjoyce/vendorbin/internal/invocation"
	"github.com/mattjoyce/vendorbin/internal/log"
)

var (
	version   = "0.1.0-dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	env, err := config.LoadEnvironment()
	if err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}

	log.SetupWriter(stderr, env.LogLevel, env.LogFormat)
	if invocation.New(args...).HasFlag("-v", "--verbose") {
		log.SetLevel(slog.LevelDebug)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application := app.New(app.Options{
		Stderr:  stderr,
		Version: currentVersionInfo(),
	})
	return application.Main(ctx, args, stdout)
}
