// Package main is the Shiryo CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hyperjump/shiryo/internal/cache"
	"github.com/hyperjump/shiryo/internal/chat"
	"github.com/hyperjump/shiryo/internal/cli"
	"github.com/hyperjump/shiryo/internal/config"
	"github.com/hyperjump/shiryo/internal/embedding"
	"github.com/hyperjump/shiryo/internal/indexer"
	"github.com/hyperjump/shiryo/internal/keyword"
	"github.com/hyperjump/shiryo/internal/llm"
	"github.com/hyperjump/shiryo/internal/models"
	"github.com/hyperjump/shiryo/internal/presentation"
	"github.com/hyperjump/shiryo/internal/search"
	"github.com/hyperjump/shiryo/internal/server"
	"github.com/hyperjump/shiryo/internal/storage"
	"github.com/hyperjump/shiryo/internal/watcher"
	"github.com/hyperjump/shiryo/pkg/utils"
)

var version = "dev"

const defaultConfigPath = "/usr/local/etc/shiryo/config.yaml"

// loadConfig loads config from path. When path is the default, it first looks for
// config.yaml in the current directory (for development); if that exists it is used.
// Returns the config and the path that was actually loaded (for saving, etc.).
func loadConfig(path string) (*config.Config, string, error) {
	if path == defaultConfigPath {
		if cwd, cwdErr := os.Getwd(); cwdErr == nil {
			fallback := filepath.Join(cwd, "config.yaml")
			if _, statErr := os.Stat(fallback); statErr == nil {
				cfg, loadErr := config.Load(fallback)
				if loadErr != nil {
					return nil, "", loadErr
				}
				return cfg, fallback, nil
			}
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

func main() {
	// A missing .env is fine; the environment may already be set.
	_ = godotenv.Load()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}
	command := os.Args[1]
	args := os.Args[2:]
	var err error
	switch command {
	case "server":
		err = runServer(args)
	case "ingest":
		err = runIngest(args)
	case "ask":
		err = runAsk(args)
	case "present":
		err = runPresent(args)
	case "categories":
		err = runCategories(args)
	case "documents":
		err = runDocuments(args)
	case "status":
		err = runStatus(args)
	case "version", "--version", "-v":
		fmt.Printf("shiryo version %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Printf("Unknown command: %s\n", command)
		printUsage()
		os.Exit(1)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s failed: %v\n", command, err)
		os.Exit(1)
	}
}

// commonFlags are accepted by every subcommand.
type commonFlags struct {
	configPath *string
	debug      *bool
	format     *string
}

func addCommonFlags(fs *flag.FlagSet) *commonFlags {
	return &commonFlags{
		configPath: fs.String("config", defaultConfigPath, "config file path"),
		debug:      fs.Bool("debug", false, "enable debug logging"),
		format:     fs.String("format", "text", "output format: text or json"),
	}
}

// env is a loaded configuration with its logger and output format.
type env struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger
	format     cli.OutputFormat
}

func (c *commonFlags) load() (*env, error) {
	format, err := cli.ParseFormat(*c.format)
	if err != nil {
		return nil, err
	}
	cfg, resolved, err := loadConfig(*c.configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	debugMode := cfg.Debug || *c.debug
	logger, err := utils.NewLogger(debugMode)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	logger.Debug("config loaded", zap.String("config_path", resolved), zap.Bool("debug", debugMode))
	return &env{cfg: cfg, configPath: resolved, logger: logger, format: format}, nil
}

// reorderArgs moves any flags (and their values) that appear after positional arguments to
// the front, since flag.Parse stops at the first non-flag argument.
func reorderArgs(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

// joinArgs joins positional args so multi-word input works with or without shell quoting.
func joinArgs(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// Components holds initialized services.
type Components struct {
	Storage       storage.Storage
	LLM           llm.Client
	Embedder      embedding.Embedder
	KeywordIndex  keyword.DocumentIndex
	Cache         cache.Cache
	Categories    *storage.CategoryBootstrapper
	Indexer       *indexer.Indexer
	Engine        *search.Engine
	Chat          *chat.Service
	Presentations *presentation.Service
}

func (c *Components) Close() {
	if c.KeywordIndex != nil {
		_ = c.KeywordIndex.Close()
	}
	if c.Cache != nil {
		_ = c.Cache.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.LLM != nil {
		_ = c.LLM.Close()
	}
	if c.Storage != nil {
		_ = c.Storage.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := openStorage(ctx, cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Storage = store

	c.LLM, err = llm.New(cfg.LLM, cfg.Embedding, llm.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to initialize llm client: %w", err)
	}

	var embedder embedding.Embedder
	switch cfg.Embedding.Provider {
	case config.EmbeddingONNX:
		onnx, onnxErr := embedding.NewONNXEmbedder(embedding.ONNXConfig{
			ModelPath:  cfg.Embedding.ModelPath,
			Dimensions: cfg.Embedding.Dimensions,
			MaxTokens:  cfg.Embedding.MaxTokens,
		})
		if onnxErr != nil {
			logger.Warn("onnx embedder unavailable, using mock embeddings", zap.Error(onnxErr))
			embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
		} else {
			embedder = onnx
		}
	case config.EmbeddingMock:
		embedder = embedding.NewMockEmbedder(cfg.Embedding.Dimensions)
	default:
		// The gateway client is closed as c.LLM.
		embedder = nopCloseEmbedder{c.LLM}
	}
	c.Embedder = embedding.NewCachedEmbedder(embedder, cfg.Embedding.CacheSize)

	bleve, err := keyword.NewBleveIndex(cfg.Storage.BleveIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize keyword index: %w", err)
	}
	c.KeywordIndex = bleve

	c.Cache = cache.New(ctx, cfg.Redis, logger)
	c.Categories = storage.NewCategoryBootstrapper(c.Storage, nil)

	c.Indexer = indexer.NewIndexer(c.Storage, c.Embedder, c.KeywordIndex, c.LLM, cfg,
		indexer.WithLogger(logger),
		indexer.WithCache(c.Cache),
		indexer.WithCategoryBootstrapper(c.Categories),
	)
	c.Engine = search.NewEngine(c.Storage, c.Embedder, cfg.Retrieval, logger)
	c.Chat = chat.NewService(c.Storage, c.Engine, c.LLM,
		chat.WithLogger(logger),
		chat.WithModel(cfg.LLM.Models.Chat),
	)
	c.Presentations = presentation.NewService(c.Storage, c.LLM, cfg.Presentation,
		presentation.WithLogger(logger),
		presentation.WithModel(cfg.LLM.Models.Presentation),
		presentation.WithPublicBaseURL(cfg.Server.PublicBaseURL),
	)
	ok = true
	return c, nil
}

func openStorage(ctx context.Context, cfg *config.Config, logger *zap.Logger) (storage.Storage, error) {
	if cfg.Storage.Backend == config.BackendSQLite {
		s, err := storage.NewSQLiteStorage(cfg.Storage.DatabasePath)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
	s, err := storage.NewNeo4jStorage(ctx, cfg.Storage.Neo4j, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

type nopCloseEmbedder struct{ embedding.Embedder }

func (nopCloseEmbedder) Close() error { return nil }

func runServer(args []string) error {
	fs := flag.NewFlagSet("server", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	e, err := common.load()
	if err != nil {
		return err
	}
	logger := e.logger
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, e.cfg, logger)
	if err != nil {
		return err
	}
	defer components.Close()
	if err := components.Categories.Ensure(ctx); err != nil {
		logger.Warn("category bootstrap failed", zap.Error(err))
	}

	idx := components.Indexer
	exts := e.cfg.Watch.Extensions
	inbox := watcher.NewInbox(
		e.cfg.Watch.Directories,
		func(path string) bool { return hasExtension(path, exts) && idx.Accepts(path) },
		func(ctx context.Context, path string) { ingestInboxFile(ctx, idx, logger, path) },
		watcher.WithLogger(logger),
		watcher.WithConcurrency(e.cfg.Embedding.Concurrency),
	)
	if err := inbox.Start(ctx); err != nil {
		return fmt.Errorf("start inbox watcher: %w", err)
	}
	go inbox.SyncExistingFiles(ctx)

	srv := server.NewServer(idx, components.Chat, components.Presentations, e.cfg, logger, inbox, e.configPath)
	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down...")
	inbox.Stop()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func ingestInboxFile(ctx context.Context, idx *indexer.Indexer, logger *zap.Logger, path string) {
	res, err := idx.IngestFile(ctx, path)
	switch {
	case err == nil:
		logger.Info("inbox file ingested", zap.String("path", path), zap.String("id", res.Document.ID))
	case errors.Is(err, models.ErrDuplicateContent), errors.Is(err, models.ErrEmptyContent):
		logger.Debug("inbox file skipped", zap.String("path", path), zap.Error(err))
	case errors.Is(err, fs.ErrNotExist):
		// removed before it settled
	default:
		logger.Warn("inbox ingest failed", zap.String("path", path), zap.Error(err))
	}
}

// hasExtension reports whether path ends in one of exts. An empty list allows everything.
func hasExtension(path string, exts []string) bool {
	if len(exts) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range exts {
		if strings.ToLower(e) == ext {
			return true
		}
	}
	return false
}

// collectFiles expands directories into the accepted files below them.
func collectFiles(paths []string, accept func(string) bool) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && accept(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return files, nil
}

func runIngest(args []string) error {
	fs := flag.NewFlagSet("ingest", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(reorderArgs(args))
	if fs.NArg() < 1 {
		fmt.Println("Usage: shiryo ingest [flags] <file-or-directory>...")
		os.Exit(1)
	}

	e, err := common.load()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	files, err := collectFiles(fs.Args(), components.Indexer.Accepts)
	if err != nil {
		return err
	}
	outcomes := make([]cli.IngestOutcome, 0, len(files))
	failed := 0
	for _, f := range files {
		res, err := components.Indexer.IngestFile(ctx, f)
		o := cli.IngestOutcome{Path: f, Result: res}
		switch {
		case err == nil:
		case errors.Is(err, models.ErrDuplicateContent):
			o.Duplicate = true
		default:
			o.Error = err.Error()
			o.Result = nil
			failed++
		}
		outcomes = append(outcomes, o)
	}
	if err := cli.WriteIngestOutcomes(os.Stdout, outcomes, e.format); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d file(s) failed", failed, len(files))
	}
	return nil
}

func runAsk(args []string) error {
	fs := flag.NewFlagSet("ask", flag.ExitOnError)
	common := addCommonFlags(fs)
	sessionID := fs.String("session", "", "existing chat session id")
	documentID := fs.String("document-id", "", "document id to open a new session on")
	documentTitle := fs.String("document", "", "document title to open a new session on")
	userID := fs.String("user", defaultUser(), "user id for a new session")
	_ = fs.Parse(reorderArgs(args))

	question := joinArgs(fs.Args())
	if question == "" || (*sessionID == "" && *documentID == "" && *documentTitle == "") {
		fmt.Println("Usage: shiryo ask (--session <id> | --document <title> | --document-id <id>) <question>")
		os.Exit(1)
	}

	e, err := common.load()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	id := *sessionID
	if id == "" {
		session, err := components.Chat.CreateSession(ctx, chat.SessionRequest{
			UserID:        *userID,
			DocumentID:    *documentID,
			DocumentTitle: *documentTitle,
		})
		if err != nil {
			return err
		}
		id = session.ID
	}
	reply, err := components.Chat.Reply(ctx, id, question)
	if err != nil {
		return err
	}
	return cli.WriteReply(os.Stdout, reply, e.format)
}

func defaultUser() string {
	if u := os.Getenv("USER"); u != "" {
		return u
	}
	return "cli"
}

func runPresent(args []string) error {
	fs := flag.NewFlagSet("present", flag.ExitOnError)
	common := addCommonFlags(fs)
	title := fs.String("title", "", "presentation title; also used to pick the source document")
	numSlides := fs.Int("n", 10, "requested number of slides")
	detail := fs.String("detail", models.DetailIntermediate, "detail level: beginner, intermediate or professional")
	topic := fs.String("topic", "", "restrict to a topic (sets scope specific_topics)")
	pptxPath := fs.String("pptx", "", "also write the finished deck to this .pptx path")
	_ = fs.Parse(reorderArgs(args))

	if *title == "" {
		*title = joinArgs(fs.Args())
	}
	if *title == "" {
		fmt.Println("Usage: shiryo present --title <title> [-n slides] [--pptx out.pptx]")
		os.Exit(1)
	}

	e, err := common.load()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	components, err := initializeComponents(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	cfg := models.PresentationConfig{Title: *title, NumSlides: *numSlides, DetailLevel: *detail}
	if *topic != "" {
		cfg.Scope = models.ScopeSpecificTopics
		cfg.Topic = *topic
	}
	p, events, err := components.Presentations.Stream(ctx, cfg)
	if err != nil {
		return err
	}
	status := ""
	for ev := range events {
		if err := cli.WriteEvent(os.Stdout, ev, e.format); err != nil {
			return err
		}
		if ev.Done {
			status = ev.Status
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if status != models.StatusCompleted {
		return fmt.Errorf("presentation %s %s", p.ID, status)
	}
	if *pptxPath == "" {
		return nil
	}
	data, _, err := components.Presentations.ExportPPTX(ctx, p.ID)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*pptxPath, data, 0o644); err != nil {
		return err
	}
	if e.format == cli.OutputText {
		fmt.Printf("Wrote %s\n", *pptxPath)
	}
	return nil
}

func runCategories(args []string) error {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	e, err := common.load()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	categories, err := components.Indexer.Categories(ctx)
	if err != nil {
		return err
	}
	return cli.WriteCategories(os.Stdout, categories, e.format)
}

func runDocuments(args []string) error {
	fs := flag.NewFlagSet("documents", flag.ExitOnError)
	common := addCommonFlags(fs)
	category := fs.Int("category", 0, "only list documents of this category id")
	query := fs.String("search", "", "keyword search instead of listing")
	fuzzy := fs.Bool("fuzzy", false, "typo-tolerant keyword search")
	limit := fs.Int("limit", 10, "maximum search results")
	del := fs.String("delete", "", "delete the document with this id")
	_ = fs.Parse(reorderArgs(args))

	e, err := common.load()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	if *del != "" {
		if err := components.Indexer.Delete(ctx, *del); err != nil {
			return err
		}
		fmt.Printf("Document deleted: %s\n", *del)
		return nil
	}

	var docs []*models.Document
	if *query != "" {
		docs, err = components.Indexer.Search(ctx, *query, *limit, &keyword.SearchOptions{
			FuzzyEnabled: *fuzzy,
			CategoryID:   *category,
		})
	} else {
		docs, err = components.Indexer.List(ctx, *category)
	}
	if err != nil {
		return err
	}
	return cli.WriteDocuments(os.Stdout, docs, e.format)
}

func runStatus(args []string) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	common := addCommonFlags(fs)
	_ = fs.Parse(args)

	e, err := common.load()
	if err != nil {
		return err
	}
	defer e.logger.Sync()
	ctx := context.Background()
	components, err := initializeComponents(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer components.Close()

	stats, err := components.Indexer.Stats(ctx)
	if err != nil {
		return err
	}
	status := &cli.Status{
		Documents:      stats.Documents,
		Chunks:         stats.Chunks,
		EmbeddedChunks: stats.Embedded,
		StorageBackend: e.cfg.Storage.Backend,
		LLMBackend:     e.cfg.LLM.Backend,
	}
	paths := map[string]string{
		"bleve_index":         e.cfg.Storage.BleveIndexPath,
		"saved_presentations": e.cfg.Presentation.ExportDir,
	}
	if e.cfg.Storage.Backend == config.BackendSQLite {
		paths["database"] = e.cfg.Storage.DatabasePath
	}
	if usage, err := storage.DiskUsageBytes(paths); err == nil {
		status.DiskUsageBytes = usage.Total
	}
	return cli.WriteStatus(os.Stdout, status, e.format)
}

func printUsage() {
	fmt.Println(`shiryo - Bank document chat and presentation generator

Usage:
  shiryo server [flags]                   Start the HTTP server and inbox watcher
  shiryo ingest [flags] <path>...         Ingest files or directories
  shiryo ask [flags] <question>           Ask a question about a document
  shiryo present [flags] --title <title>  Generate a presentation
  shiryo categories [flags]               List service categories
  shiryo documents [flags]                List, search or delete documents
  shiryo status [flags]                   Show library counts and disk usage
  shiryo version                          Show version
  shiryo help                             Show this help

Common Flags:
  --config string    Config file path (default: /usr/local/etc/shiryo/config.yaml)
  --debug            Enable debug logging
  --format string    Output format: text or json (default: text)

Ask Flags:
  --session string       Continue an existing chat session
  --document string      Open a new session on the document with this title
  --document-id string   Open a new session on the document with this id
  --user string          User id for a new session (default: $USER)

Present Flags:
  --title string     Presentation title (also selects the source document)
  -n int             Requested number of slides (default: 10)
  --detail string    beginner, intermediate or professional (default: intermediate)
  --topic string     Focus on one topic
  --pptx string      Write the finished deck as .pptx

Documents Flags:
  --category int     Filter by category id
  --search string    Keyword search over title, file name and text
  --fuzzy            Typo-tolerant search
  --limit int        Maximum search results (default: 10)
  --delete string    Delete a document by id

Examples:
  shiryo server
  shiryo ingest ./brochures
  shiryo ask --document "Gold Card Benefits" what is the annual fee
  shiryo present --title "Retail Loans" -n 8 --pptx loans.pptx
  shiryo documents --search "credit card" --fuzzy
  shiryo status --format json`)
}
