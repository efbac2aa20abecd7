// Command viscalyx builds, publishes and serves the viscalyx.se blog.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cloud.google.com/go/storage"
	"github.com/alecthomas/kong"
	"go.uber.org/automaxprocs/maxprocs"

	viscalyx "github.com/viscalyx/viscalyx.se-sub001"
	"github.com/viscalyx/viscalyx.se-sub001/content"
	"github.com/viscalyx/viscalyx.se-sub001/i18n"
	"github.com/viscalyx/viscalyx.se-sub001/slug"
)

// version is set at build time via ldflags.
var version = "dev"

type cli struct {
	Config  string `help:"Path to a YAML configuration file." short:"c" type:"path"`
	Verbose bool   `help:"Enable debug logging." short:"v"`
	JSON    bool   `help:"Log as JSON."`

	Build   buildCmd   `cmd:"" help:"Build blog content artifacts from Markdown posts."`
	Publish publishCmd `cmd:"" help:"Upload built artifacts to the edge bucket."`
	Serve   serveCmd   `cmd:"" help:"Run the site server."`
	Version versionCmd `cmd:"" help:"Print the version."`
}

// env is passed to every command's Run method.
type env struct {
	ctx    context.Context
	cfg    viscalyx.SiteConfig
	logger *slog.Logger
}

type buildCmd struct {
	Watch  bool   `help:"Rebuild when sources change." short:"w"`
	Drafts bool   `help:"Include posts marked as drafts."`
	Src    string `help:"Directory of Markdown posts (overrides config)." type:"path"`
	Out    string `help:"Output root; artifacts go to <out>/blog-content (overrides config)." type:"path"`
	WPM    int    `help:"Reading speed used for read times." default:"200" name:"wpm"`
}

func (b *buildCmd) Run(e *env) error {
	src, out := e.cfg.SourceDir, e.cfg.ContentRoot
	if b.Src != "" {
		src = b.Src
	}
	if b.Out != "" {
		out = b.Out
	}
	opts := slug.DefaultOptions()
	opts.Locale = e.cfg.Locale

	builder := content.NewBuilder(src, out,
		content.WithSlugOptions(opts),
		content.WithTranslator(i18n.Default().Translator(e.cfg.Locale)),
		content.WithWordsPerMinute(b.WPM),
		content.WithDrafts(b.Drafts),
		content.WithBuildLogger(e.logger),
	)

	res, err := builder.Build(e.ctx)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	e.logger.Info("built content", "posts", len(res.Posts), "drafts", len(res.Skipped), "out", out)
	if !b.Watch {
		return nil
	}

	e.logger.Info("watching for changes", "src", src)
	err = builder.Watch(e.ctx, func(res *content.BuildResult, err error) {
		if err != nil {
			e.logger.Error("rebuild failed", "error", err)
			return
		}
		e.logger.Info("rebuilt content", "posts", len(res.Posts), "removed", len(res.Removed))
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

type publishCmd struct {
	Bucket string `help:"Destination bucket (overrides config)."`
	Prefix string `help:"Object prefix inside the bucket (overrides config)."`
	Root   string `help:"Output root holding blog-content (overrides config)." type:"path"`
}

func (p *publishCmd) Run(e *env) error {
	bucket, prefix, root := e.cfg.EdgeBucket, e.cfg.EdgePrefix, e.cfg.ContentRoot
	if p.Bucket != "" {
		bucket = p.Bucket
	}
	if p.Prefix != "" {
		prefix = p.Prefix
	}
	if p.Root != "" {
		root = p.Root
	}
	if bucket == "" {
		return errors.New("publish: no bucket configured (set edge_bucket or --bucket)")
	}

	client, err := storage.NewClient(e.ctx)
	if err != nil {
		return fmt.Errorf("publish: storage client: %w", err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			e.logger.Warn("failed to close storage client", "error", err)
		}
	}()

	res, err := content.NewPublisher(client, bucket, prefix, e.logger).Publish(e.ctx, root)
	if err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	e.logger.Info("published content", "bucket", bucket, "uploaded", len(res.Uploaded), "deleted", len(res.Deleted))
	return nil
}

type serveCmd struct {
	Addr string `help:"Listen address (overrides config)."`
}

func (s *serveCmd) Run(e *env) error {
	cfg := e.cfg
	if s.Addr != "" {
		cfg.Addr = s.Addr
	}
	app := viscalyx.New(cfg, viscalyx.WithLogger(e.logger))
	defer func() {
		if err := app.Close(); err != nil {
			e.logger.Warn("close failed", "error", err)
		}
	}()

	errc := make(chan error, 1)
	go func() { errc <- app.Start(e.ctx) }()

	select {
	case err := <-errc:
		return err
	case <-e.ctx.Done():
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	e.logger.Info("shutting down")
	if err := app.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return <-errc
}

type versionCmd struct{}

func (versionCmd) Run() error {
	fmt.Printf("viscalyx %s\n", version)
	return nil
}

func newLogger(verbose, asJSON bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	opts := &slog.HandlerOptions{Level: level}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

func main() {
	var params cli
	kctx := kong.Parse(&params,
		kong.Name("viscalyx"),
		kong.Description("Build, publish and serve the viscalyx.se blog."),
		kong.UsageOnError(),
	)

	logger := newLogger(params.Verbose, params.JSON)
	slog.SetDefault(logger)

	// Error ignored: maxprocs.Set only fails if GOMAXPROCS is invalid, in
	// which case the runtime default applies.
	_, _ = maxprocs.Set(maxprocs.Logger(func(format string, args ...interface{}) {
		logger.Debug(fmt.Sprintf(format, args...))
	}))

	cfg, err := viscalyx.LoadConfig(params.Config)
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := kctx.Run(&env{ctx: ctx, cfg: cfg, logger: logger}); err != nil {
		logger.Error("command failed", "command", kctx.Command(), "error", err)
		stop()
		os.Exit(1)
	}
}
