package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/ppiankov/text2med/internal/cache"
	"github.com/ppiankov/text2med/internal/ontology"
	"github.com/ppiankov/text2med/internal/pipeline"
	"github.com/ppiankov/text2med/internal/store"
)

// newPipeline wires the ontology, cache and store configured for this run.
// The returned cleanup closes the store.
func newPipeline(ctx context.Context, withStore bool) (*pipeline.Pipeline, func(), error) {
	ont := ontology.Load(cfg.Paths.Capabilities, cfg.Paths.Prerequisites)
	zap.L().Debug("cli: ontology loaded",
		zap.Int("capabilities", ont.Len()),
		zap.String("fingerprint", ont.Fingerprint()),
	)

	var opts []pipeline.Option
	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		layered := cache.NewLayeredCache(ttl, cfg.Cache.Dir, ttl)
		opts = append(opts, pipeline.WithExtractionCache(layered), pipeline.WithScoreCache(layered))
	}

	cleanup := func() {}
	if withStore && cfg.Store.Enabled {
		s, err := store.Open(ctx, cfg.Store.Path)
		if err != nil {
			return nil, nil, err
		}
		opts = append(opts, pipeline.WithStore(s))
		cleanup = func() {
			if err := s.Close(); err != nil {
				zap.L().Warn("cli: close store", zap.Error(err))
			}
		}
	}

	return pipeline.NewPipeline(cfg, ont, opts...), cleanup, nil
}

func outputPath(name string) string {
	return filepath.Join(cfg.Paths.OutputDir, name)
}

func printWritten(paths []string) {
	for _, p := range paths {
		fmt.Fprintf(os.Stderr, "✓ Wrote %s\n", p)
	}
}
