// Package main is the policyrag CLI entry point.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/policyrag/internal/cli"
	"github.com/hyperjump/policyrag/internal/config"
	"github.com/hyperjump/policyrag/internal/embedding"
	"github.com/hyperjump/policyrag/internal/generation"
	"github.com/hyperjump/policyrag/internal/indexer"
	"github.com/hyperjump/policyrag/internal/pipeline"
	"github.com/hyperjump/policyrag/internal/retrieval"
	"github.com/hyperjump/policyrag/internal/server"
	"github.com/hyperjump/policyrag/internal/storage"
	"github.com/hyperjump/policyrag/internal/vector"
	"github.com/hyperjump/policyrag/internal/watcher"
	"github.com/hyperjump/policyrag/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "config.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	// A missing .env is normal; variables may come from the environment.
	_ = godotenv.Load()

	command := os.Args[1]
	args := os.Args[2:]
	switch command {
	case "ask":
		runAsk(args)
	case "retrieve":
		runRetrieve(args)
	case "ingest":
		runIngest(args)
	case "status":
		runStatus(args)
	case "serve", "server":
		runServe(args)
	case "watch":
		runWatch(args)
	case "init":
		runInit(args)
	case "version", "--version", "-v":
		fmt.Printf("policyrag version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
}

// loadConfig loads and validates the config at path. A missing file yields
// defaults plus environment overrides.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.LoadOptional(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads config and builds the logger, exiting on failure.
func setup(configPath string, debug bool) (*config.Config, *zap.Logger) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}
	if debug {
		cfg.Debug = true
	}
	logger, err := utils.NewLogger(cfg.Debug, cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	return cfg, logger
}

func parseFormat(s string) cli.OutputFormat {
	switch s {
	case "json":
		return cli.OutputJSON
	case "text":
		return cli.OutputText
	default:
		fmt.Fprintf(os.Stderr, "Unknown output format %q; use text or json\n", s)
		os.Exit(1)
		return cli.OutputText
	}
}

// argsReorder moves flags (and their values) ahead of the positional arguments,
// wherever they appear, since flag.Parse stops at the first non-flag argument.
// Positional arguments keep their order and everything after "--" is positional.
func argsReorder(fs *flag.FlagSet, args []string) []string {
	var flags, positional []string
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a == "--" {
			positional = append(positional, args[i+1:]...)
			break
		}
		if len(a) < 2 || a[0] != '-' {
			positional = append(positional, a)
			continue
		}
		flags = append(flags, a)
		if strings.Contains(a, "=") {
			continue
		}
		if takesValue(fs, strings.TrimLeft(a, "-")) && i+1 < len(args) {
			i++
			flags = append(flags, args[i])
		}
	}
	if len(positional) == 0 {
		return flags
	}
	reordered := append(flags, "--")
	return append(reordered, positional...)
}

// takesValue reports whether the named flag consumes the following argument.
func takesValue(fs *flag.FlagSet, name string) bool {
	f := fs.Lookup(name)
	if f == nil {
		return false
	}
	if b, ok := f.Value.(interface{ IsBoolFlag() bool }); ok && b.IsBoolFlag() {
		return false
	}
	return true
}

// buildQuery joins all positional args with spaces so multi-word queries work
// with or without shell quoting.
func buildQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// promptQuery asks for a query on out and reads one line from in.
func promptQuery(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, cli.QueryPrompt)
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runAsk(args []string) {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(fs, args))
	format := parseFormat(*outputFormat)

	query := buildQuery(fs.Args())
	if fs.NArg() == 0 {
		var err error
		if query, err = promptQuery(os.Stdin, os.Stdout); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to read query: %v\n", err)
			os.Exit(1)
		}
	}

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	// Pipeline failures are reported on stdout; the exit status stays 0.
	if err := ask(ctx, components.Pipeline, query, os.Stdout, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

// ask runs query through p and prints the outcome. The returned error is set
// only when writing to out fails.
func ask(ctx context.Context, p server.Asker, query string, out io.Writer, format cli.OutputFormat) error {
	if format != cli.OutputJSON {
		if _, err := fmt.Fprintf(out, "%s%s\n", cli.ProcessingPrefix, query); err != nil {
			return err
		}
	}
	res, runErr := p.Run(ctx, query)
	return cli.WriteAnswer(out, res, runErr, format)
}

func runRetrieve(args []string) {
	fs := flag.NewFlagSet("retrieve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(argsReorder(fs, args))
	format := parseFormat(*outputFormat)
	if fs.NArg() < 1 {
		fmt.Println("Usage: policyrag retrieve [flags] <query>")
		os.Exit(1)
	}

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	res, err := components.Retriever.RetrieveHits(ctx, buildQuery(fs.Args()))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Retrieval failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteRetrieval(os.Stdout, res, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runIngest(args []string) {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	dir := fs.String("dir", "", "source directory (default: source.directory from config)")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	cfg, logger := setup(*configPath, *debug)
	defer logger.Sync()
	if *dir != "" {
		cfg.Source.Directory = *dir
	}
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize: %v\n", err)
		os.Exit(1)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	report, ingestErr := components.Indexer.IngestDirectory(ctx, cfg.Source.Directory)
	if report != nil {
		if err := cli.WriteReport(os.Stdout, report, format); err != nil {
			fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		}
	}
	if ingestErr != nil {
		fmt.Fprintf(os.Stderr, "Ingestion stopped: %v\n", ingestErr)
		components.Close()
		os.Exit(1)
	}
}

func runStatus(args []string) {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	outputFormat := fs.String("output", "text", "output format: text or json")
	_ = fs.Parse(args)
	format := parseFormat(*outputFormat)

	cfg, logger := setup(*configPath, false)
	defer logger.Sync()
	store, err := storage.Open(&cfg.Store, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open store: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	st, err := storage.CollectStatus(context.Background(), store, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
		os.Exit(1)
	}
	if err := cli.WriteStatus(os.Stdout, st, format); err != nil {
		fmt.Fprintf(os.Stderr, "Output failed: %v\n", err)
		os.Exit(1)
	}
}

func runServe(args []string) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	watch := fs.Bool("watch", false, "also watch the source directory and ingest new files")
	_ = fs.Parse(args)

	cfg, logger := setup(*configPath, *debug)
	if err := serve(cfg, logger, *watch); err != nil {
		logger.Error("Server failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// serve runs the HTTP API until interrupted. Components are closed before it
// returns, on success and on failure.
func serve(cfg *config.Config, logger *zap.Logger, watch bool) error {
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()

	if watch {
		w := newWatcher(cfg, components.Indexer, logger)
		if err := w.Start(ctx); err != nil {
			return fmt.Errorf("start watcher: %w", err)
		}
		defer w.Stop()
		go func() {
			if err := w.SyncExisting(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("initial sync failed", zap.Error(err))
			}
		}()
	}

	srv := server.NewServer(components.Pipeline, components.Retriever, components.Indexer, components.Store, cfg, logger)
	errc := make(chan error, 1)
	go func() { errc <- srv.Start() }()

	var serveErr error
	select {
	case <-ctx.Done():
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			serveErr = err
		}
	}
	logger.Info("Shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	_ = srv.Stop(shutdownCtx)
	return serveErr
}

func runWatch(args []string) {
	fs := flag.NewFlagSet("watch", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path")
	debug := fs.Bool("debug", false, "enable debug logging")
	_ = fs.Parse(args)

	cfg, logger := setup(*configPath, *debug)
	if err := watchSource(cfg, logger); err != nil {
		logger.Error("Watch failed", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// watchSource ingests existing and new files in the source directory until
// interrupted. Components are closed before it returns.
func watchSource(cfg *config.Config, logger *zap.Logger) error {
	components, err := initializeComponents(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize components: %w", err)
	}
	defer components.Close()

	ctx, cancel := signalContext()
	defer cancel()
	w := newWatcher(cfg, components.Indexer, logger)
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Stop()
	if err := w.SyncExisting(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warn("initial sync failed", zap.Error(err))
	}
	<-ctx.Done()
	logger.Info("Shutting down...")
	return nil
}

// newWatcher builds a watcher over the source directory that ingests files
// without a processed marker.
func newWatcher(cfg *config.Config, idx *indexer.Indexer, logger *zap.Logger) *watcher.Watcher {
	return watcher.NewWatcher(
		cfg.Source.Directory,
		cfg.Source.Extensions,
		func(ctx context.Context, path string) {
			res, err := idx.IngestFile(ctx, path)
			if err != nil {
				logger.Error("watch ingest failed", zap.String("path", path), zap.Error(err))
				return
			}
			if res.Outcome == indexer.OutcomeFailed {
				logger.Warn("watch ingest failed", zap.String("path", path), zap.String("error", res.Error))
			}
		},
		watcher.WithLogger(logger),
		watcher.WithDebounce(cfg.Watch.Debounce),
	)
}

func runInit(args []string) {
	fs := flag.NewFlagSet("init", flag.ExitOnError)
	configPath := fs.String("config", defaultConfigPath, "config file path to write")
	force := fs.Bool("force", false, "overwrite an existing config file")
	_ = fs.Parse(args)

	if err := writeDefaultConfig(*configPath, *force); err != nil {
		fmt.Fprintf(os.Stderr, "Init failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Wrote %s\n", *configPath)
}

// writeDefaultConfig saves the default configuration to path. An existing file
// is kept unless force is set.
func writeDefaultConfig(path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	return config.Save(path, cfg)
}

// Components holds initialized services.
type Components struct {
	Store     vector.Store
	Embedder  embedding.Embedder
	Indexer   *indexer.Indexer
	Retriever *retrieval.Retriever
	Generator *generation.ChatGenerator
	Pipeline  *pipeline.Pipeline
	closed    bool
}

// Close releases the embedder and the store. It is safe to call more than once.
func (c *Components) Close() {
	if c.closed {
		return
	}
	c.closed = true
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(cfg *config.Config, logger *zap.Logger) (*Components, error) {
	store, err := storage.Open(&cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}
	embedder, err := embedding.New(&cfg.Embedding, logger)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize embedder: %w", err)
	}
	idx, err := indexer.NewIndexer(store, embedder, nil, &cfg.Ingest, &cfg.Store,
		indexer.WithLogger(logger),
		indexer.WithExtensions(cfg.Source.Extensions))
	if err != nil {
		_ = embedder.Close()
		_ = store.Close()
		return nil, fmt.Errorf("failed to initialize indexer: %w", err)
	}
	ret := retrieval.NewRetriever(store, embedder, cfg.Store.Collection, cfg.Retrieval.K, retrieval.WithLogger(logger))
	gen := generation.NewChatGenerator(&cfg.Generation, generation.WithLogger(logger))
	logger.Debug("components initialized",
		zap.String("store", cfg.Store.Type),
		zap.String("store_path", cfg.Store.Path),
		zap.String("embedding_provider", cfg.Embedding.Provider),
		zap.String("generation_model", cfg.Generation.Model))

	return &Components{
		Store:     store,
		Embedder:  embedder,
		Indexer:   idx,
		Retriever: ret,
		Generator: gen,
		Pipeline:  pipeline.New(ret, gen, pipeline.WithLogger(logger)),
	}, nil
}

func printUsage() {
	fmt.Println(`policyrag - question answering over a directory of policy documents

Usage:
  policyrag ask [flags] [query...]      Answer a question (prompts when no query is given)
  policyrag retrieve [flags] <query>    Print the retrieved context only
  policyrag ingest [flags]              Ingest new documents from the source directory
  policyrag status [flags]              Show store counts, disk usage and configuration
  policyrag serve [flags]               Start the HTTP API
  policyrag watch [flags]               Watch the source directory and ingest new files
  policyrag init [flags]                Write a default config file
  policyrag version                     Show version
  policyrag help                        Show this help

Common Flags:
  --config string    Config file path (default: config.yaml; missing file = defaults)
  --debug            Enable debug logging
  --output string    Output format for ask, retrieve, ingest, status: text or json

Ingest Flags:
  --dir string       Source directory (overrides source.directory)

Serve Flags:
  --watch            Also watch the source directory

Init Flags:
  --force            Overwrite an existing config file

Environment:
  OLLAMA_BASE_URL, OLLAMA_MODEL, POLICYRAG_STORE_PATH, POLICYRAG_SOURCE_DIR,
  POLICYRAG_CHUNK_SIZE, POLICYRAG_CHUNK_OVERLAP, POLICYRAG_K, ... (.env is loaded)

Examples:
  policyrag ingest --dir ./data
  policyrag ask How many vacation days do employees get?
  policyrag ask --output json "What is the remote work policy?"
  policyrag retrieve parental leave
  policyrag serve --watch`)
}
