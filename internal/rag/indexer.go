package rag

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/fatih/color"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
	"golang.org/x/sync/errgroup"
)

// BuildOptions configures BuildIndex.
type BuildOptions struct {
	DataDir      string
	IndexDir     string
	Recursive    bool
	Exclude      []string
	MaxFileBytes int64
	MaxWords     int
	Overlap      int
	BatchSize    int
	// Workers bounds parallel extraction. Zero means GOMAXPROCS.
	Workers int
	// Out receives human-readable progress. Nil discards it.
	Out    io.Writer
	Logger *charmlog.Logger
}

// BuildReport summarises one build.
type BuildReport struct {
	Files    int
	Indexed  int
	Skipped  int
	Failed   int
	Chunks   int
	Dim      int
	Model    string
	Duration time.Duration
}

type fileResult struct {
	path   string
	chunks []string
	err    error
}

// BuildIndex extracts, chunks and embeds every supported file under
// opts.DataDir and writes the artifact to opts.IndexDir. A file that fails to
// extract is logged and contributes nothing. When no chunks are produced the
// build returns ErrNoChunks and leaves opts.IndexDir untouched.
func BuildIndex(ctx context.Context, opts BuildOptions, embedder providers.Embedder) (BuildReport, error) {
	start := time.Now()
	log := opts.Logger
	if log == nil {
		log = logging.Logger()
	}
	out := opts.Out
	if out == nil {
		out = io.Discard
	}
	info := color.New(color.FgCyan)
	warn := color.New(color.FgYellow)
	fail := color.New(color.FgRed)
	ok := color.New(color.FgGreen, color.Bold)
	status := func(c *color.Color, format string, args ...any) {
		elapsed := time.Since(start).Truncate(time.Millisecond)
		_, _ = c.Fprintf(out, "[%s] %s\n", elapsed, fmt.Sprintf(format, args...))
	}

	report := BuildReport{Model: embedder.Model()}
	status(info, "Indexing %s -> %s", opts.DataDir, opts.IndexDir)
	status(info, "Embedding model: %s, chunk: %d words, overlap: %d", embedder.Model(), opts.MaxWords, opts.Overlap)

	files, err := DiscoverFiles(opts.DataDir, opts.Recursive, opts.Exclude)
	if err != nil {
		return report, stageErr(StageIndex, err)
	}
	report.Files = len(files)
	status(info, "Found %d files", len(files))

	results := extractAll(ctx, files, opts)
	if err := ctx.Err(); err != nil {
		return report, stageErr(StageIndex, err)
	}

	var texts, sources []string
	for _, r := range results {
		source := sourceID(opts.DataDir, r.path)
		switch {
		case errors.Is(r.err, ErrUnsupportedFormat), errors.Is(r.err, ErrNeedsConversion), errors.Is(r.err, ErrEmptyContent), errors.Is(r.err, ErrFileTooLarge):
			report.Skipped++
			log.Warn("skipped file", "source", source, "reason", r.err)
			status(warn, "SKIPPED %s: %v", source, r.err)
			continue
		case r.err != nil:
			report.Failed++
			log.Error("extraction failed", "source", source, "err", r.err)
			status(fail, "ERROR %s: %v", source, r.err)
			continue
		}
		report.Indexed++
		log.Debug("extracted file", "source", source, "chunks", len(r.chunks))
		status(info, "%s: %d chunks", source, len(r.chunks))
		for _, c := range r.chunks {
			texts = append(texts, c)
			sources = append(sources, source)
		}
	}
	report.Chunks = len(texts)
	if len(texts) == 0 {
		status(fail, "No chunks produced; convert PDFs to text first. Index not written.")
		return report, ErrNoChunks
	}

	vectors, err := embedAll(ctx, embedder, texts, opts.BatchSize, func(done int) {
		status(info, "Embedded %d/%d chunks", done, len(texts))
	})
	if err != nil {
		return report, stageErr(StageEmbed, err)
	}

	idx, err := NewIndex(embedder.Model(), vectors, texts, sources)
	if err != nil {
		return report, stageErr(StageIndex, err)
	}
	if err := WriteIndex(opts.IndexDir, idx); err != nil {
		return report, stageErr(StageIndex, err)
	}
	report.Dim = idx.Dim
	report.Duration = time.Since(start)

	log.Info("index built", "files", report.Files, "indexed", report.Indexed, "skipped", report.Skipped,
		"failed", report.Failed, "chunks", report.Chunks, "dim", report.Dim, "duration", report.Duration)
	status(ok, "Index saved to %s (%d chunks from %d files)", opts.IndexDir, report.Chunks, report.Indexed)
	return report, nil
}

// extractAll extracts and chunks files concurrently. Results keep the order of files.
func extractAll(ctx context.Context, files []string, opts BuildOptions) []fileResult {
	results := make([]fileResult, len(files))
	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, path := range files {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				results[i] = fileResult{path: path, err: err}
				return nil
			}
			text, err := ExtractText(path, opts.MaxFileBytes)
			if err != nil {
				results[i] = fileResult{path: path, err: err}
				return nil
			}
			results[i] = fileResult{path: path, chunks: ChunkText(text, opts.MaxWords, opts.Overlap)}
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// embedAll embeds texts in batches and normalizes every vector to unit length.
func embedAll(ctx context.Context, embedder providers.Embedder, texts []string, batchSize int, progress func(int)) ([][]float32, error) {
	if batchSize <= 0 {
		batchSize = 32
	}
	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := min(start+batchSize, len(texts))
		batch, err := embedder.Embed(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("batch %d-%d: %w", start, end, err)
		}
		if len(batch) != end-start {
			return nil, fmt.Errorf("batch %d-%d: got %d vectors", start, end, len(batch))
		}
		for _, v := range batch {
			vectors = append(vectors, Normalize(v))
		}
		if progress != nil {
			progress(end)
		}
	}
	return vectors, nil
}

// sourceID names a file by its slash-separated path relative to the data
// directory, so files in different sub-directories never share an id.
func sourceID(root, path string) string {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return filepath.Base(path)
	}
	return filepath.ToSlash(rel)
}
