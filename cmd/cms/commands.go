package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/dfryer1193/cms/blog/application"
	"github.com/dfryer1193/cms/blog/domain"
	"github.com/dfryer1193/cms/blog/persistence"
	"github.com/dfryer1193/cms/internal/config"
	"github.com/dfryer1193/cms/internal/server"
	"github.com/dfryer1193/cms/shared/db/sqlite"
	gh "github.com/dfryer1193/cms/shared/github"
	"github.com/fatih/color"
	"github.com/google/go-github/v75/github"
)

type app struct {
	metaPath string
	out      io.Writer
	now      func() time.Time
}

func (a *app) run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("cms", flag.ContinueOnError)
	fs.SetOutput(a.out)
	fs.Usage = func() { printUsage(a.out) }
	logLevel := fs.String("log-level", "", "Log level (debug, info, warn, error); defaults to CMS_LOG_LEVEL or info")

	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := setupLogging(*logLevel); err != nil {
		return err
	}

	if fs.NArg() == 0 {
		printUsage(a.out)
		return errors.New("missing command")
	}

	cmd, cmdArgs := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "init":
		return a.runInit(cmdArgs)
	case "new":
		return a.runNew(cmdArgs)
	case "publish":
		return a.runPublish(ctx, cmdArgs)
	case "blocks":
		return a.runBlocks(cmdArgs)
	case "serve":
		return a.runServe(ctx, cmdArgs)
	case "sync":
		return a.runSync(ctx, cmdArgs)
	default:
		printUsage(a.out)
		return fmt.Errorf("unknown command %q", cmd)
	}
}

func (a *app) runInit(args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	fs.SetOutput(a.out)
	contentDir := fs.String("content-dir", config.DefaultContentDir, "Path to the content root")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := config.Init(a.metaPath, *contentDir); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "initialized cms at %s\n", *contentDir)
	return nil
}

func (a *app) runNew(args []string) error {
	fs := flag.NewFlagSet("new", flag.ContinueOnError)
	fs.SetOutput(a.out)
	name := fs.String("name", "", "Name of the post; also used as its title")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *name == "" {
		return errors.New("-name is required")
	}

	cfg, err := config.Load(a.metaPath)
	if err != nil {
		return fmt.Errorf("could not get content directory: %w", err)
	}

	post := &domain.Post{
		Title:     *name,
		Published: a.now().UTC().Truncate(time.Minute),
	}
	document, err := application.FormatPost(post)
	if err != nil {
		return err
	}

	path := filepath.Join(cfg.SourceDir(), *name+".md")
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("post name '%s' already exists", *name)
	}
	if err != nil {
		return fmt.Errorf("failed to create a new post file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(document); err != nil {
		return fmt.Errorf("failed writing file metadata: %w", err)
	}

	fmt.Fprintf(a.out, "created empty post at %s\n", path)
	return nil
}

func (a *app) runPublish(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("publish", flag.ContinueOnError)
	fs.SetOutput(a.out)
	onError := fs.String("on-error", "", "What to do when a document fails: abort or skip_and_warn")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(a.metaPath)
	if err != nil {
		return fmt.Errorf("could not get content directory: %w", err)
	}

	if *onError != "" {
		policy, err := application.ParseErrorPolicy(*onError)
		if err != nil {
			return err
		}
		cfg.OnDocumentError = policy
	}

	conn, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	publisher := application.NewPublishService(application.NewMarkdownRenderer(), persistence.NewCatalogRepository(conn))
	summary, err := publisher.Publish(ctx, publishConfig(cfg))
	if err != nil {
		return err
	}

	a.printSummary(summary)
	return nil
}

func (a *app) runBlocks(args []string) error {
	fs := flag.NewFlagSet("blocks", flag.ContinueOnError)
	fs.SetOutput(a.out)
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return errors.New("blocks expects exactly one document path")
	}

	path := fs.Arg(0)
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed opening %s: %w", path, err)
	}
	defer file.Close()

	post, err := application.ParsePost(file)
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", path, err)
	}

	fmt.Fprintf(a.out, "title: %s\npublished: %s\n", post.Title, post.Published.Format(time.RFC3339))
	for _, b := range application.NewMarkdownRenderer().Blocks([]byte(post.Content)) {
		fmt.Fprintf(a.out, "%4d %-16s %q\n", b.Line, b.Kind, b.Text)
	}
	return nil
}

func (a *app) runServe(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	fs.SetOutput(a.out)
	addr := fs.String("addr", "", "Address to listen on; defaults to CMS_ADDR or "+config.DefaultAddr)
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(a.metaPath)
	if err != nil {
		return fmt.Errorf("could not get content directory: %w", err)
	}
	if *addr != "" {
		cfg.Addr = *addr
	}

	conn, err := openCatalog(ctx, cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	catalog := persistence.NewCatalogRepository(conn)
	var syncer *application.SyncService
	if cfg.GitHub.Enabled() {
		syncer = application.NewSyncService(newSourceRepository(cfg))
	}

	site := application.NewSiteService(
		syncer,
		syncConfig(cfg, ""),
		application.NewPublishService(application.NewMarkdownRenderer(), catalog),
		publishConfig(cfg),
	)

	srv := server.New(server.Options{
		Addr:          cfg.Addr,
		PublishDir:    cfg.PublishDir(),
		Catalog:       catalog,
		WebhookSecret: cfg.WebhookSecret,
		Rebuilder:     site,
	})

	return srv.Run(ctx)
}

func (a *app) runSync(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("sync", flag.ContinueOnError)
	fs.SetOutput(a.out)
	ref := fs.String("ref", "", "Branch, tag or commit to sync; defaults to the default branch")
	if err := fs.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load(a.metaPath)
	if err != nil {
		return fmt.Errorf("could not get content directory: %w", err)
	}
	if !cfg.GitHub.Enabled() {
		return errors.New("no source repository configured, set CMS_GITHUB_REPO=owner/name")
	}

	synced, err := application.NewSyncService(newSourceRepository(cfg)).Sync(ctx, syncConfig(cfg, *ref))
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "synced %d files\n", synced)
	return nil
}

func (a *app) printSummary(summary *domain.Summary) {
	warn := color.New(color.FgYellow)
	for _, w := range summary.Warnings {
		warn.Fprintln(a.out, w)
	}
	fmt.Fprintf(a.out, "published %d files\n", summary.Published)
}

func openCatalog(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	conn, err := sqlite.Open(ctx, cfg.CatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open the post catalog: %w", err)
	}
	return conn, nil
}

func newSourceRepository(cfg *config.Config) domain.SourceRepository {
	client := github.NewClient(nil)
	if cfg.GitHub.Token != "" {
		client = client.WithAuthToken(cfg.GitHub.Token)
	}
	return gh.NewGithubSourceRepository(client, cfg.GitHub.Owner, cfg.GitHub.Repo)
}

func publishConfig(cfg *config.Config) application.PublishConfig {
	return application.PublishConfig{
		SourceDir:       cfg.SourceDir(),
		TargetDir:       cfg.PublishDir(),
		OnDocumentError: cfg.OnDocumentError,
	}
}

func syncConfig(cfg *config.Config, ref string) application.SyncConfig {
	return application.SyncConfig{
		RemoteDir: cfg.GitHub.RemoteDir,
		Ref:       ref,
		SourceDir: cfg.SourceDir(),
	}
}
