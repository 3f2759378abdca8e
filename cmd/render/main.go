package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/maltedev/amazonlight/internal/app"
	"github.com/maltedev/amazonlight/internal/config"
)

func main() {
	var (
		doc    = flag.Bool("doc", false, "Read a document from stdin and expand every directive in it")
		asJSON = flag.Bool("json", false, "Print the full render result as JSON instead of markup")
		source = flag.String("source", "", "Override AMAZON_SOURCE (page, widget or delegate)")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] 'de:B001 200x200 noprice' ...\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if !*doc && flag.NArg() == 0 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *source != "" {
		cfg.Fetcher.Source = *source
		if err := cfg.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
			os.Exit(1)
		}
	}

	// Logs go to stderr so stdout carries only markup.
	logger := app.NewLogger(cfg.Logging, os.Stderr)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if *doc {
		input, err := io.ReadAll(os.Stdin)
		if err != nil {
			logger.Error("failed to read stdin", "error", err)
			os.Exit(1)
		}
		fmt.Print(a.Pipeline.ExpandDocument(ctx, string(input)))
		return
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	for _, token := range flag.Args() {
		result := a.Pipeline.Render(ctx, token)
		if *asJSON {
			if err := enc.Encode(result); err != nil {
				logger.Error("failed to encode result", "error", err)
			}
			continue
		}
		fmt.Println(result.HTML)
	}
}
