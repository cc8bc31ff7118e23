package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/cexll/firstfix/internal/config"
	"github.com/cexll/firstfix/internal/github"
	"github.com/cexll/firstfix/internal/llm"
)

var (
	loadDotEnv         = godotenv.Load
	loadConfig         = config.Load
	newGenerator       = newGeminiGenerator
	newRunner          = newExecRunner
	defaultListenServe = listenAndServe
)

// serveFunc blocks serving srv until it fails or is shut down.
type serveFunc func(srv *http.Server) error

func listenAndServe(srv *http.Server) error {
	return srv.ListenAndServe()
}

func newGeminiGenerator(ctx context.Context, cfg llm.GeminiConfig) (llm.Generator, error) {
	return llm.NewGeminiClient(ctx, cfg)
}

func newExecRunner(timeout time.Duration) github.CommandRunner {
	return github.NewExecRunner(timeout)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdout, defaultListenServe); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, out io.Writer, serve serveFunc) error {
	// Load .env file (ignore error if file doesn't exist)
	if err := loadDotEnv(); err == nil {
		log.Printf("Loaded environment from .env")
	}

	root := newRootCommand(out, serve)
	root.SetArgs(args)
	root.SetOut(out)
	return root.ExecuteContext(ctx)
}
