package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/raine/skinalyzer-bot/config"
	"github.com/raine/skinalyzer-bot/internal/analysis"
	"github.com/raine/skinalyzer-bot/internal/chat"
	"github.com/raine/skinalyzer-bot/internal/intake"
	"github.com/raine/skinalyzer-bot/internal/presenter"
	"github.com/raine/skinalyzer-bot/internal/remote"
	"github.com/raine/skinalyzer-bot/internal/workflow"
)

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintf(os.Stderr, "Usage: %s <image-path> [question]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\nEnvironment variables:\n")
		fmt.Fprintf(os.Stderr, "  SKIN_API_BASE_URL - Analysis service (default %s)\n", config.DefaultAPIBaseURL)
		fmt.Fprintf(os.Stderr, "  SKIN_API_TIMEOUT  - Request timeout, e.g. 30s\n")
		os.Exit(1)
	}

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	config.LoadEnvFile()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid config: %v\n", err)
		os.Exit(1)
	}

	imagePath := os.Args[1]
	imageData, err := os.ReadFile(imagePath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read image: %v\n", err)
		os.Exit(1)
	}

	opts := remote.Options{BaseURL: cfg.APIBaseURL, Timeout: cfg.APITimeout}
	wf := workflow.New(
		intake.New(intake.NewPreviewStore(cfg.PreviewTTL), cfg.MaxImageBytes),
		analysis.NewClient(opts),
		chat.NewClient(opts),
	)

	name := filepath.Base(imagePath)
	if _, err := wf.Stage(intake.File{Name: name, MimeType: intake.MimeTypeFromName(name), Data: imageData}); err != nil {
		fmt.Fprintf(os.Stderr, "Image rejected: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	if _, err := wf.Analyze(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Analysis failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(presenter.Render(wf.Display()))

	if len(os.Args) >= 3 {
		question := strings.Join(os.Args[2:], " ")
		fmt.Println("\n" + strings.Repeat("-", 50) + "\n")
		msg, ok := wf.Ask(ctx, question)
		if !ok {
			fmt.Fprintln(os.Stderr, "Question was empty")
			os.Exit(1)
		}
		fmt.Printf("You:       %s\n", question)
		fmt.Printf("Assistant: %s\n", msg.Text)
	}
}
