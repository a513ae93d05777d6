package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/common-nighthawk/go-figure"
	"github.com/joho/godotenv"
	"github.com/jrsteele09/go-sso-connect/internal/config"
	"github.com/jrsteele09/go-sso-connect/internal/logging"
	"github.com/jrsteele09/go-sso-connect/token"
	"github.com/rs/zerolog/log"
)

var version = "dev" // Overridden by ldflags

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) (exitCode int) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Bytes("stack", debug.Stack()).Msg("recovered from panic")
			exitCode = 2
		}
	}()

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Error loading .env: %s\n", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading configuration: %s\n", err)
		return 1
	}
	if err := logging.Setup(cfg.GetLogLevel(), cfg.GetLogFile()); err != nil {
		fmt.Fprintf(os.Stderr, "Error configuring logging: %s\n", err)
		return 1
	}
	defer logging.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(cfg, version)
	root.SetArgs(args)
	if len(args) > 0 && args[0] == "serve" {
		displayAppname(cfg.GetAppName())
	}
	if err := root.ExecuteContext(ctx); err != nil {
		return reportError(err)
	}
	return 0
}

// reportError prints err for the user. Cancelled logins stay silent.
func reportError(err error) int {
	log.Debug().Err(err).Msg("command failed")
	if errors.Is(err, token.ErrAuthCancelled) {
		return 130
	}
	var authErr *token.AuthError
	if errors.As(err, &authErr) {
		fmt.Fprintln(os.Stderr, token.UserMessage(err))
		return 1
	}
	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	return 1
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
