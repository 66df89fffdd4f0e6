package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/dfryer1193/cms/internal/config"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const usage = `usage: cms [-log-level level] <command> [flags]

commands:
  init     create the project metadata file and content directory
  new      create an empty post
  publish  rebuild the publish directory from the source documents
  blocks   show how the body of a document is split into markdown blocks
  serve    serve the published posts
  sync     download source documents from the configured GitHub repository
`

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &app{
		metaPath: config.MetadataFile,
		out:      os.Stdout,
		now:      time.Now,
	}

	if err := a.run(ctx, os.Args[1:]); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func setupLogging(level string) error {
	if level == "" {
		level = os.Getenv("CMS_LOG_LEVEL")
	}
	if level == "" {
		level = zerolog.LevelInfoValue
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level %q: %w", level, err)
	}

	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	return nil
}

func printUsage(w io.Writer) {
	fmt.Fprint(w, usage)
}
