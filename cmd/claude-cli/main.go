package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/GlassOnTin/claude-cli/internal/anthropic"
	"github.com/GlassOnTin/claude-cli/internal/config"
	"github.com/GlassOnTin/claude-cli/internal/executor"
	"github.com/GlassOnTin/claude-cli/internal/logging"
	"github.com/GlassOnTin/claude-cli/internal/repl"
	"github.com/GlassOnTin/claude-cli/internal/session"
	"github.com/GlassOnTin/claude-cli/internal/tokens"
	"github.com/GlassOnTin/claude-cli/internal/validate"
)

// Version is set via -ldflags during build
var Version = "dev"

func usage() {
	fmt.Printf(`Usage: claude-cli [options] [message]

An interactive shell assistant. With a message argument the reply is printed
once and the program exits; without one an interactive session starts.

Options:
  --config <file>   Use an alternate config file
  --strict          Only run blocks tagged bash/python (default)
  --permissive      Also consider untagged code blocks
  --version         Print version and exit
  -h, --help        Show this help

The ANTHROPIC_API_KEY environment variable must be set. It is removed from
the environment of every command the assistant runs.
`)
}

func main() {
	for _, arg := range os.Args[1:] {
		if arg == "-h" || arg == "--help" {
			usage()
			return
		}
	}

	var (
		configPath  = flag.String("config", "", "Use an alternate config file")
		strictFlag  = flag.Bool("strict", false, "Only run blocks tagged bash/python")
		permissive  = flag.Bool("permissive", false, "Also consider untagged code blocks")
		versionFlag = flag.Bool("version", false, "Print version and exit")
	)
	flag.Usage = usage
	flag.Parse()

	if *versionFlag {
		fmt.Printf("claude-cli version %s\n", Version)
		return
	}

	apiKey := os.Getenv(anthropic.APIKeyEnv)
	if apiKey == "" {
		log.Fatalf("%s environment variable is not set", anthropic.APIKeyEnv)
	}

	var cfg config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.Load(*configPath)
	} else {
		cfg, err = config.LoadUserConfig()
	}
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *strictFlag && *permissive {
		log.Fatal("--strict and --permissive are mutually exclusive")
	}
	if *strictFlag {
		cfg.ExtractionMode = "strict"
	}
	if *permissive {
		cfg.ExtractionMode = "permissive"
	}

	if err := os.MkdirAll(config.GetConfigDir(), 0o755); err != nil {
		log.Fatalf("Failed to create config directory: %v", err)
	}
	logCloser, err := logging.Setup(cfg.LogPath)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	logger := logging.Logger
	logger.Printf("starting claude-cli %s (model %s, mode %s)", Version, cfg.Model, cfg.ExtractionMode)

	client := anthropic.NewClient(cfg.Endpoint, apiKey, cfg.RequestTimeout(), logger)
	checker := validate.New(logger)
	exec := executor.New(executor.NewRecorder(), logger)
	dispatcher := executor.NewDispatcher(exec, logger)
	dispatcher.Install()
	defer dispatcher.Uninstall()

	hist := session.NewHistory(cfg.Mode(), logger)
	usageTotals := tokens.NewUsage(cfg.CostPerMillionTokens)

	r := repl.New(cfg, client, checker, exec, dispatcher, hist, usageTotals, logger)

	ctx := context.Background()
	if args := flag.Args(); len(args) > 0 {
		if err := r.RunOnce(ctx, strings.Join(args, " ")); err != nil {
			log.Fatalf("Error: %v", err)
		}
		return
	}
	if err := r.Run(ctx); err != nil {
		log.Fatalf("Error: %v", err)
	}
}
