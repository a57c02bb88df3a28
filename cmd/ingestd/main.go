// Command ingestd is the ingestion daemon: it wires every core component
// together (§4), runs crash recovery, processes whatever's already
// discovered, then watches its configured root for further changes.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/corpusgraph/ingestor/internal/config"
	"github.com/corpusgraph/ingestor/internal/content"
	"github.com/corpusgraph/ingestor/internal/domain"
	"github.com/corpusgraph/ingestor/internal/embedding"
	"github.com/corpusgraph/ingestor/internal/embedding/providers"
	"github.com/corpusgraph/ingestor/internal/entities"
	"github.com/corpusgraph/ingestor/internal/filestate"
	"github.com/corpusgraph/ingestor/internal/metadata"
	"github.com/corpusgraph/ingestor/internal/nodestate"
	"github.com/corpusgraph/ingestor/internal/parser"
	"github.com/corpusgraph/ingestor/internal/parser/binarydoc"
	"github.com/corpusgraph/ingestor/internal/parser/datafile"
	"github.com/corpusgraph/ingestor/internal/parser/generic"
	"github.com/corpusgraph/ingestor/internal/parser/markdown"
	"github.com/corpusgraph/ingestor/internal/parser/markup"
	"github.com/corpusgraph/ingestor/internal/parser/sourcecode"
	"github.com/corpusgraph/ingestor/internal/platform/graphstore"
	"github.com/corpusgraph/ingestor/internal/platform/logger"
	"github.com/corpusgraph/ingestor/internal/processor"
	"github.com/corpusgraph/ingestor/internal/relations"
	"github.com/corpusgraph/ingestor/internal/sources"
	"github.com/corpusgraph/ingestor/internal/watcher"
)

func main() {
	log, err := logger.New(os.Getenv("LOG_MODE"))
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg := config.Load(log)
	projectID := config.GetEnv("PROJECT_ID", "default", log)
	watchRoot := config.GetEnv("WATCH_ROOT", "", log)
	diskConcurrency := config.GetEnvAsInt("DISK_READ_CONCURRENCY", cfg.Concurrency.Limit, log)

	store, err := graphstore.NewNeo4jStore(ctx, cfg.GraphStore, log)
	if err != nil {
		log.Fatal("failed to connect to graph store", "error", err)
	}
	defer store.Close(ctx)

	if err := provisionIndexes(ctx, store, cfg.EmbeddingProvider.Dimensions); err != nil {
		log.Fatal("failed to provision indexes", "error", err)
	}

	embedProvider, err := providers.New(cfg.EmbeddingProvider)
	if err != nil {
		log.Fatal("failed to construct embedding provider", "error", err)
	}

	entityClient := entities.NewClient(
		cfg.EntityService.BaseURL,
		cfg.EntityService.MaxTextsPerCall,
		cfg.EntityService.BaseTimeout,
		cfg.EntityService.PerTextTimeout,
	)

	dispatcher := parser.NewDispatcher()
	dispatcher.Register(parser.KindBinaryDoc, binarydoc.New())
	dispatcher.Register(parser.KindSourceCode, sourcecode.New())
	dispatcher.Register(parser.KindStructuredText, markdown.New())
	dispatcher.Register(parser.KindStructuredText, markup.New())
	dispatcher.Register(parser.KindStructuredText, datafile.New())
	dispatcher.Register(parser.KindGeneric, generic.New())

	diskContent := content.NewDisk(diskConcurrency)
	virtualContent := content.NewVirtual(store)
	hybridContent := content.NewHybrid(diskContent, virtualContent)

	proc := &processor.Processor{
		Store:       store,
		Content:     hybridContent,
		Dispatcher:  dispatcher,
		FileState:   filestate.New(store, log),
		NodeState:   nodestate.New(store, log),
		Preserver:   metadata.New(store),
		Resolver:    relations.New(store, log),
		Entities:    entities.NewCoordinator(store, entityClient, cfg.EntityService.ClassifyPrefixLen, cfg.EntityService.DisabledDomains, cfg.EntityService.ConfidenceMin, log),
		Embedding: embedding.New(store, embedProvider, diskConcurrency, embedding.ChunkOptions{
			MaxChars: cfg.Chunking.MaxChars, MaxLines: cfg.Chunking.MaxLines, LineOverlap: cfg.Chunking.LineOverlap,
			MinCharsToEmbed: cfg.Chunking.MinCharsToEmbed,
		}, cfg.SkipEmbeddingTypes, log),
		Concurrency: cfg.Concurrency.Limit,
		MaxRetries:  cfg.MaxRetries,
		Activity:    func(phase, detail string) { log.Debug("activity", "phase", phase, "detail", detail) },
		Log:         log,
	}

	log.Info("running crash recovery", "project", projectID)
	recoverResult, err := proc.Recover(ctx, projectID)
	if err != nil {
		log.Fatal("recover failed", "error", err)
	}
	log.Info("recovery complete", "filesRecovered", recoverResult.FilesRecovered, "filesInError", recoverResult.FilesInError)

	if watchRoot != "" {
		if err := ingestRoot(ctx, log, proc.FileState, projectID, watchRoot); err != nil {
			log.Fatal("initial ingest failed", "error", err)
		}
	}
	if err := runPipeline(ctx, log, proc, projectID); err != nil {
		log.Fatal("pipeline run failed", "error", err)
	}

	if watchRoot == "" {
		log.Info("no WATCH_ROOT configured, exiting after one pass")
		return
	}

	w := watcher.New(watchRoot, projectID, cfg.Watcher.DebounceInterval, nil, sources.DefaultExcludes, proc.FileState, store, log)
	w.OnBatchDone = func(created, reset, removed int) {
		log.Info("watch batch flushed", "created", created, "reset", reset, "removed", removed)
		if created+reset == 0 {
			return
		}
		if err := runPipeline(ctx, log, proc, projectID); err != nil {
			log.Warn("pipeline run after watch batch failed", "error", err)
		}
	}
	if err := w.Start(ctx); err != nil {
		log.Fatal("failed to start watcher", "error", err)
	}
	defer w.Stop()

	log.Info("watching for changes", "root", watchRoot)
	<-ctx.Done()
	log.Info("shutting down")
}

// ingestRoot performs the first disk sweep of watchRoot: every matched file
// is marked discovered directly (not routed through IngestVirtualFiles,
// since these are real on-disk files, not graph-resident ones).
func ingestRoot(ctx context.Context, log *logger.Logger, fs *filestate.Machine, projectID, root string) error {
	disk := sources.NewDisk(root, nil, sources.DefaultExcludes)
	entries, err := disk.List()
	if err != nil {
		return err
	}
	log.Info("disk sweep found files", "count", len(entries))

	candidates := make([]filestate.DiscoverCandidate, 0, len(entries))
	for _, e := range entries {
		data, err := os.ReadFile(e.AbsPath)
		if err != nil {
			log.Warn("failed to read file during sweep", "path", e.AbsPath, "error", err)
			continue
		}
		candidates = append(candidates, filestate.DiscoverCandidate{
			RelPath: e.RelPath, AbsPath: e.AbsPath, Name: e.Name, Extension: e.Extension,
			Directory: e.Directory, RawContentHash: domain.Hash16(data),
		})
	}
	_, err = fs.MarkDiscoveredBatch(ctx, projectID, candidates)
	return err
}

// runPipeline drives one full discover→link→entities→embed pass, honoring
// the fixed phase ordering of §5: processDiscovered fully completes before
// processLinked observes its output.
func runPipeline(ctx context.Context, log *logger.Logger, proc *processor.Processor, projectID string) error {
	start := time.Now()
	discovered, err := proc.ProcessDiscovered(ctx, projectID)
	if err != nil {
		return err
	}
	linked, err := proc.ProcessLinked(ctx, projectID)
	if err != nil {
		return err
	}
	log.Info("pipeline pass complete",
		"filesProcessed", discovered.FilesProcessed+linked.FilesProcessed,
		"filesErrored", discovered.FilesErrored+linked.FilesErrored,
		"entitiesCreated", linked.EntitiesCreated,
		"embeddingsGenerated", linked.EmbeddingsGenerated,
		"durationMs", time.Since(start).Milliseconds(),
	)
	return nil
}

// provisionIndexes ensures the uniqueness constraint plus one vector index
// per (label, embedding property) pair named throughout §6.3 and §4.7's
// view table, so the store is ready before the first batch write lands.
func provisionIndexes(ctx context.Context, store graphstore.Store, dimensions int) error {
	if err := store.EnsureUniqueConstraint(ctx, "File", "uuid"); err != nil {
		return err
	}
	seen := map[string]bool{}
	for label, views := range embedding.LabelViews {
		if err := store.EnsureUniqueConstraint(ctx, label, "uuid"); err != nil {
			return err
		}
		for _, view := range views {
			prop := domain.EmbeddingVectorProp(string(view))
			key := label + "|" + prop
			if seen[key] {
				continue
			}
			seen[key] = true
			if err := store.EnsureVectorIndex(ctx, label, prop, dimensions); err != nil {
				return err
			}
		}
	}
	return nil
}
