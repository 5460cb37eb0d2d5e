// Copyright 2026 The SpanServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main implements the span anchoring server and CLI [DBG] application.

Note: This is a BETA release. APIs and functionality may rapidly change.

SpanServe anchors quoted text spans inside free-form prompts and keeps them
anchored as the prompt drifts. It can operate as a MessagePack IPC server
for integration with prompt editors, or as a CLI application for testing
and debugging.

The server mode combines a lexicon pass over a Patricia trie of domain
terms with an optional remote labeling service, resolves overlaps between
the two, and streams the results back in confidence-ordered reveal batches.
A keyed position cache memoizes every locator lookup so repeated anchoring
of the same quote costs one string search in total.

# Usage

Start the server with default settings:

	spanserve

Use a custom lexicon directory and enable debug mode:

	spanserve -lexdir /path/to/terms -d

Run in CLI mode for interactive testing:

	spanserve -c

The lexicon directory holds term files named lex_0001.bin, lex_0002.bin,
etc., plus optional tab-separated lex_*.txt files for hand-maintained
terms. Files that fail to parse are skipped with a warning; the built-in
term set is used when no directory is configured.

# Configuration

Runtime configuration is managed through a TOML file covering server
parameters, locator and reveal tuning, and the external service endpoints:

	[server]
	max_prompt_bytes = 65536
	debounce_ms = 300

	[reveal]
	high_threshold = 0.8
	medium_threshold = 0.6
	medium_delay_ms = 50
	low_delay_ms = 100

	[labeling]
	url = ""
	max_spans = 64
	min_confidence = 0.3
	template_version = "v1"

The config file is automatically created with defaults if it doesn't exist.
Reveal thresholds can also be updated at runtime through the IPC config
command.

# IPC Protocol

The server communicates via MessagePack over stdin/stdout. Requests are
processed synchronously; reveal and suggestion events arrive asynchronously
on the same stream, tagged with the originating request id.

Send a labeling request:

	{"id": "req1", "cmd": "label", "text": "A golden hour photo of a cat"}

Receive the full span set plus timing, then reveal batches as the lower
confidence tiers come due:

	{"id": "req1", "status": "ok", "spans": [...], "count": 2, "t": 3}
	{"id": "req1", "event": "reveal", "tier": "high", "spans": [...], "progress": 50}

Locate and edit requests anchor a quote and synthesize prompt mutations:

	{"id": "loc1", "cmd": "locate", "text": "...", "quote": "golden hour"}
	{"id": "ed1", "cmd": "apply_edit", "text": "...", "edit": {"type": "replaceSpanText", ...}}

# Server Mode

The default mode starts a MessagePack IPC server that processes anchoring
requests from stdin and writes responses to stdout. This design enables
integration with editors and browser-extension hosts through process
communication.

	srv := server.NewServer(cfg, configPath, matcher, os.Stdin, os.Stdout)
	err := srv.Start()

The server keeps one position cache, one reveal scheduler and one in-flight
suggestion fetch per session; a newer suggestion request silently cancels
the one it supersedes.

# CLI Mode

CLI mode provides an interactive interface for testing and debugging the
lexicon and locator. It reads prompts from stdin, labels them through the
same debounce path editor keystrokes use, and locates quotes against the
last prompt on demand.

	inputHandler := cli.NewInputHandler(matcher, cacheSize, debounce)
	err := inputHandler.Start()

This mode is primarily intended for development and testing new features
before deploying to server mode.

# Command Line Flags

The following flags control application behavior:

	-config string
	    Path to the TOML config file (default resolved per-user)
	-lexdir string
	    Directory containing lexicon term files (default from config)
	-d  Enable debug mode with detailed logging
	-c  Run in CLI mode instead of server mode

The application resolves the config path per-user when -config is not set,
creating the file with defaults on first run.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/bastiangx/spanserve/internal/cli"
	"github.com/bastiangx/spanserve/pkg/config"
	"github.com/bastiangx/spanserve/pkg/lexicon"
	"github.com/bastiangx/spanserve/pkg/server"
)

const (
	Version = "0.3.0-beta"
	AppName = "spanserve"
	gh      = "https://github.com/bastiangx/spanserve"
)

// sigHandler is a simple handler for OS signals to exit normally.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main calls other packages to initialize the server or CLI inputs.
// main() does not implement logic for them and only manages the flow.
func main() {
	sigHandler()

	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to the TOML config file")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	lexDir := flag.String("lexdir", "", "Directory containing lexicon term files")

	flag.Parse()

	if *showVersion {
		logger := log.NewWithOptions(os.Stderr, log.Options{
			ReportCaller:    false,
			ReportTimestamp: false,
			Prefix:          "",
		})

		styles := log.DefaultStyles()

		styles.Values["version"] = lipgloss.NewStyle().Bold(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
		styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
			Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})

		logger.SetStyles(styles)

		logger.Print("")
		logger.Print("[ SpanServe ] Anchors prompt spans and keeps them anchored!")
		logger.Print("", "version", Version)
		logger.Print("")
		logger.Print("use -h or --help to see available options")
		logger.Print("Github Repo", "gh", gh)

		os.Exit(0)
	}

	if *debugMode {
		log.SetLevel(log.DebugLevel)
		log.SetReportTimestamp(true)
	} else {
		log.SetLevel(log.WarnLevel)
	}

	appConfig, activePath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	log.Debugf("Using config file: (%s)", activePath)

	if *lexDir != "" {
		appConfig.Lexicon.Dir = *lexDir
	}

	matcher, err := loadMatcher(appConfig)
	if err != nil {
		log.Fatalf("Failed to init lexicon: %v", err)
	}

	// CLI would be mainly used for testing and dbg purposes.
	// Any new features or changes should be tested in CLI mode first.
	if *cliMode {
		if matcher == nil {
			log.Fatal("CLI mode needs the lexicon enabled")
		}
		log.SetReportTimestamp(false)
		inputHandler := cli.NewInputHandler(matcher,
			appConfig.Locator.CacheMaxEntries,
			time.Duration(appConfig.Server.DebounceMs)*time.Millisecond)
		if err := inputHandler.Start(); err != nil {
			log.Fatalf("CLI error: %v", err)
		}
		return
	}

	log.Debug("spawning IPC")
	srv := server.NewServer(appConfig, activePath, matcher, os.Stdin, os.Stdout)

	showStartupInfo(appConfig)

	if err := srv.Start(); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// loadMatcher builds the lexicon matcher from the configured directory,
// falling back to the built-in term set.
func loadMatcher(cfg *config.Config) (*lexicon.Matcher, error) {
	if !cfg.Lexicon.Enabled {
		log.Warn("Lexicon disabled, running without local labeling...")
		return nil, nil
	}
	if cfg.Lexicon.Dir == "" {
		log.Debug("No lexicon dir specified, using built-in terms")
		return lexicon.NewBuiltinMatcher(), nil
	}
	matcher := lexicon.NewMatcher(cfg.Lexicon.Confidence)
	if err := matcher.LoadDirectory(cfg.Lexicon.Dir); err != nil {
		return nil, err
	}
	return matcher, nil
}

// showStartupInfo displays some basic info about the init process.
func showStartupInfo(cfg *config.Config) {
	pid := os.Getpid()
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)

	println("===========")
	println(" SpanServe ")
	println("===========")
	log.Infof("Version: %s", Version)
	log.Infof("Process ID: [ %d ]", pid)
	log.Info("init: OK")
	if cfg.Labeling.URL != "" {
		log.Infof("labeling: ( %s )", cfg.Labeling.URL)
	}
	if cfg.Suggest.URL != "" {
		log.Infof("suggestions: ( %s )", cfg.Suggest.URL)
	}
	log.Info("status: ready")
	println("===========")
	println("Press Ctrl+C to exit")

	log.SetLevel(currentLevel)
}
