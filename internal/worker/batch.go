package worker

import (
	"bufio"
	"context"
	"os"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/ppiankov/text2med/internal/pipeline"
)

// Builder builds claims from one chunk table
type Builder interface {
	BuildTable(ctx context.Context, path string) (*pipeline.BuildResult, error)
}

// TableJob is one chunk table queued for a build
type TableJob struct {
	Index   int
	Path    string
	Builder Builder
}

// Execute runs the build for the table
func (j *TableJob) Execute(ctx context.Context) Result {
	started := time.Now()
	res, err := j.Builder.BuildTable(ctx, j.Path)
	if err != nil {
		zap.L().Warn("worker: table failed", zap.String("path", j.Path), zap.Error(err))
	}
	return &TableResult{
		Index:    j.Index,
		Path:     j.Path,
		Build:    res,
		Error:    err,
		Duration: time.Since(started),
	}
}

// TableResult is the outcome of one table build
type TableResult struct {
	Index    int
	Path     string
	Build    *pipeline.BuildResult
	Error    error
	Duration time.Duration
}

// Err returns the build error, if any
func (r *TableResult) Err() error {
	return r.Error
}

// BatchProcessor builds several chunk tables concurrently
type BatchProcessor struct {
	builder     Builder
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(builder Builder, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		builder:     builder,
		concurrency: concurrency,
	}
}

// ProcessTables builds every table; results follow the order of paths
func (b *BatchProcessor) ProcessTables(ctx context.Context, paths []string) []*TableResult {
	if len(paths) == 0 {
		return []*TableResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for i, path := range paths {
		if !pool.Submit(&TableJob{Index: i, Path: path, Builder: b.builder}) {
			break
		}
	}

	results := pool.Wait()

	out := make([]*TableResult, len(paths))
	for _, r := range results {
		tr := r.(*TableResult)
		out[tr.Index] = tr
	}
	// tables never started because the context ended
	for i := range out {
		if out[i] == nil {
			err := ctx.Err()
			if err == nil {
				err = context.Canceled
			}
			out[i] = &TableResult{Index: i, Path: paths[i], Error: eris.Wrap(err, "worker: table not processed")}
		}
	}
	return out
}

// ProcessFile reads table paths from a file and builds them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*TableResult, error) {
	paths, err := ReadPathsFromFile(filePath)
	if err != nil {
		return nil, err
	}
	return b.ProcessTables(ctx, paths), nil
}

// ReadPathsFromFile reads table paths (one per line), skipping blanks,
// comments and repeats
func ReadPathsFromFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, eris.Wrapf(err, "worker: open %s", filePath)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, eris.Wrapf(err, "worker: scan %s", filePath)
	}

	return paths, nil
}
