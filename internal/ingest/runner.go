package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/codescope/codescope/internal/chunk"
	"github.com/codescope/codescope/internal/config"
	"github.com/codescope/codescope/internal/errors"
	"github.com/codescope/codescope/internal/scanner"
	"github.com/codescope/codescope/internal/store"
)

// progressBuffer is the channel buffer between the run and its consumer.
const progressBuffer = 16

// Fallback batch sizes when the config carries zero values.
const (
	defaultDeleteBatchSize = 5000
	defaultInsertBatchSize = 1000
)

// Deps are the injected collaborators for a Runner. Store and Config are
// required; the rest default to standard instances.
type Deps struct {
	Scanner   *scanner.Scanner
	Chunker   *chunk.Chunker
	Extractor *chunk.EntityExtractor
	Store     store.Store
	Config    *config.Config
}

// Runner executes ingestion cycles. It is safe for concurrent use; runs
// against the same data directory serialize on the ingest lock.
type Runner struct {
	scanner   *scanner.Scanner
	chunker   *chunk.Chunker
	extractor *chunk.EntityExtractor
	store     store.Store
	cfg       *config.Config
}

// NewRunner creates a Runner with injected dependencies.
func NewRunner(deps Deps) (*Runner, error) {
	if deps.Store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}

	sc := deps.Scanner
	if sc == nil {
		var err error
		sc, err = scanner.New()
		if err != nil {
			return nil, fmt.Errorf("create scanner: %w", err)
		}
	}

	ch := deps.Chunker
	if ch == nil {
		ch = chunk.NewChunkerWithOptions(chunk.ChunkerOptions{
			ChunkSize:    deps.Config.Ingest.ChunkSize,
			ChunkOverlap: deps.Config.Ingest.ChunkOverlap,
		})
	}

	ex := deps.Extractor
	if ex == nil {
		ex = chunk.NewEntityExtractor()
	}

	return &Runner{
		scanner:   sc,
		chunker:   ch,
		extractor: ex,
		store:     deps.Store,
		cfg:       deps.Config,
	}, nil
}

// Close releases the entity extractor's parsers.
func (r *Runner) Close() error {
	if r.extractor != nil {
		r.extractor.Close()
	}
	return nil
}

// Run executes one full ingestion cycle over repoPath. It fails fast,
// before any stream exists, when the path is not a directory or another
// run holds the ingest lock. The returned channel delivers progress and
// closes when the run finishes; the terminal update carries the summary
// or the fatal error.
func (r *Runner) Run(ctx context.Context, repoPath string) (<-chan Progress, error) {
	info, err := os.Stat(repoPath)
	if err != nil || !info.IsDir() {
		return nil, errors.PathNotFound(repoPath)
	}

	lock := newRunLock(r.cfg.ResolveDataDir(repoPath))
	if err := lock.acquire(); err != nil {
		return nil, err
	}

	events := make(chan Progress, progressBuffer)
	go func() {
		defer close(events)
		defer lock.release()
		r.run(ctx, repoPath, events)
	}()
	return events, nil
}

// RunSync executes a cycle and blocks until it completes, discarding
// intermediate progress.
func (r *Runner) RunSync(ctx context.Context, repoPath string) (*Summary, error) {
	events, err := r.Run(ctx, repoPath)
	if err != nil {
		return nil, err
	}

	var last Progress
	for p := range events {
		last = p
	}
	if last.Err != nil {
		return nil, last.Err
	}
	if last.Summary == nil {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("ingestion ended without a summary")
	}
	return last.Summary, nil
}

func (r *Runner) run(ctx context.Context, repoPath string, events chan<- Progress) {
	start := time.Now()
	runID := uuid.NewString()
	log := slog.With(slog.String("run_id", runID), slog.String("path", repoPath))
	summary := &Summary{RunID: runID}

	emit := func(p Progress) {
		select {
		case events <- p:
		case <-ctx.Done():
		}
	}
	fail := func(err error) {
		summary.Duration = time.Since(start)
		log.Error("ingest_failed",
			slog.String("error", err.Error()),
			slog.Int64("duration_ms", summary.Duration.Milliseconds()))
		emit(Progress{Stage: StageDone, Message: fmt.Sprintf("Ingestion failed: %v", err), Err: err})
	}

	emit(Progress{Stage: StageScanning, Message: fmt.Sprintf("Scanning %s...", repoPath)})
	log.Info("ingest_started")

	files, skipped, err := r.collectFiles(ctx, repoPath, emit, log)
	if err != nil {
		fail(err)
		return
	}
	summary.Files = len(files)
	summary.Skipped = skipped
	emit(Progress{Stage: StageScanning,
		Message: fmt.Sprintf("Loaded %d files (%d skipped)", len(files), skipped)})
	log.Info("ingest_scan_complete",
		slog.Int("files", len(files)),
		slog.Int("skipped", skipped))

	// An empty walk leaves the existing index alone rather than wiping
	// it: pointing at the wrong directory should not destroy the corpus.
	if len(files) == 0 {
		summary.Duration = time.Since(start)
		log.Info("ingest_complete_no_files")
		emit(Progress{Stage: StageDone,
			Message: "No indexable files found; index left unchanged",
			Summary: summary})
		return
	}

	chunks, err := r.chunkFiles(ctx, files, emit)
	if err != nil {
		fail(err)
		return
	}
	summary.Chunks = len(chunks)
	log.Info("ingest_chunking_complete", slog.Int("chunks", len(chunks)))

	emit(Progress{Stage: StageExtracting, Message: "Extracting code entities..."})
	entities := r.extractor.ExtractAll(ctx, files)
	chunk.AttachEntities(chunks, entities)
	log.Info("ingest_entities_attached",
		slog.Int("files_with_entities", len(entities)))

	if err := r.replace(ctx, recordsFromChunks(chunks), emit, log, summary); err != nil {
		fail(err)
		return
	}

	summary.Duration = time.Since(start)
	log.Info("ingest_complete",
		slog.Int("files", summary.Files),
		slog.Int("skipped", summary.Skipped),
		slog.Int("chunks", summary.Chunks),
		slog.Int("warnings", summary.Warnings),
		slog.Int64("duration_ms", summary.Duration.Milliseconds()))
	emit(Progress{Stage: StageDone,
		Message: fmt.Sprintf("Ingestion complete: %d files, %d chunks in %s",
			summary.Files, summary.Chunks, summary.Duration.Round(time.Millisecond)),
		Summary: summary})
}

// collectFiles walks the repository and loads every indexable file. A
// file that fails to load is reported, counted, and skipped; the walk
// itself failing aborts the run.
func (r *Runner) collectFiles(ctx context.Context, repoPath string, emit func(Progress), log *slog.Logger) ([]*chunk.FileInput, int, error) {
	results, err := r.scanner.Scan(ctx, &scanner.Options{
		RootDir:          repoPath,
		ExcludePatterns:  r.cfg.Paths.Exclude,
		RespectGitignore: r.cfg.Ingest.RespectGitignore,
		MaxFileSize:      int64(r.cfg.Ingest.MaxFileSizeMB) * 1024 * 1024,
	})
	if err != nil {
		return nil, 0, err
	}

	var files []*chunk.FileInput
	skipped := 0
	for res := range results {
		if res.Err != nil {
			return nil, skipped, res.Err
		}

		text, err := scanner.LoadText(res.File.AbsPath)
		if err != nil {
			skipped++
			log.Warn("ingest_file_skipped",
				slog.String("file", res.File.Path),
				slog.String("reason", err.Error()))
			emit(Progress{Stage: StageScanning,
				Message: fmt.Sprintf("Skipped %s: %v", res.File.Path, err),
				Warn:    true})
			continue
		}

		files = append(files, &chunk.FileInput{
			Path:    res.File.Path,
			AbsPath: res.File.AbsPath,
			Content: []byte(text),
		})
	}
	return files, skipped, nil
}

func (r *Runner) chunkFiles(ctx context.Context, files []*chunk.FileInput, emit func(Progress)) ([]*chunk.Chunk, error) {
	var chunks []*chunk.Chunk
	for i, f := range files {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("ingestion interrupted: %w", err)
		}
		emit(Progress{Stage: StageChunking,
			Current: i + 1,
			Total:   len(files),
			Message: fmt.Sprintf("Chunking %s", f.Path)})
		chunks = append(chunks, r.chunker.ChunkFile(f)...)
	}
	return chunks, nil
}

// replace swaps the store's collection for the new records: list the
// existing IDs, delete them in batches, then insert the replacements in
// batches, strictly in that order. Listing or deleting failures demote
// to warnings and the insert pass still runs; shared IDs are overwritten
// there, so a stale partial index beats an aborted run. An insert
// failure is fatal and may leave the index partially replaced.
func (r *Runner) replace(ctx context.Context, records []store.Record, emit func(Progress), log *slog.Logger, summary *Summary) error {
	deleteBatch := r.cfg.Ingest.DeleteBatchSize
	if deleteBatch <= 0 {
		deleteBatch = defaultDeleteBatchSize
	}
	insertBatch := r.cfg.Ingest.InsertBatchSize
	if insertBatch <= 0 {
		insertBatch = defaultInsertBatchSize
	}

	emit(Progress{Stage: StageReplacing, Message: "Clearing previous index..."})

	existing, err := r.store.GetAll(ctx)
	if err != nil {
		summary.Warnings++
		log.Warn("ingest_replace_list_failed",
			slog.String("error", errors.IndexReplace(err).Error()))
		emit(Progress{Stage: StageReplacing,
			Message: "Warning: could not list previous records; inserting anyway",
			Warn:    true})
	} else if len(existing) > 0 {
		ids := make([]string, len(existing))
		for i, rec := range existing {
			ids[i] = rec.ID
		}

		deleted := 0
		for from := 0; from < len(ids); from += deleteBatch {
			to := min(from+deleteBatch, len(ids))
			if err := r.store.Delete(ctx, ids[from:to]); err != nil {
				summary.Warnings++
				log.Warn("ingest_replace_delete_failed",
					slog.Int("offset", from),
					slog.String("error", errors.IndexReplace(err).Error()))
				emit(Progress{Stage: StageReplacing,
					Message: "Warning: could not clear previous records; inserting anyway",
					Warn:    true})
				break
			}
			deleted += to - from
			emit(Progress{Stage: StageReplacing,
				Current: deleted,
				Total:   len(ids),
				Message: fmt.Sprintf("Deleted %d/%d stale records", deleted, len(ids))})
		}
	}

	inserted := 0
	for from := 0; from < len(records); from += insertBatch {
		to := min(from+insertBatch, len(records))
		if err := r.store.Add(ctx, records[from:to]); err != nil {
			emit(Progress{Stage: StageReplacing,
				Message: "Insert failed; the index may be partially replaced"})
			return errors.IndexInsert(err)
		}
		inserted += to - from
		emit(Progress{Stage: StageReplacing,
			Current: inserted,
			Total:   len(records),
			Message: fmt.Sprintf("Indexed %d/%d records", inserted, len(records))})
	}
	return nil
}

// recordsFromChunks converts chunks into store records, carrying the
// chunk metadata over verbatim.
func recordsFromChunks(chunks []*chunk.Chunk) []store.Record {
	records := make([]store.Record, len(chunks))
	for i, c := range chunks {
		records[i] = store.Record{
			ID:       c.ID,
			Content:  c.Content,
			Metadata: c.Metadata,
		}
	}
	return records
}
