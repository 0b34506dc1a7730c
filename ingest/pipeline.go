package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/twinfer/ontograph"
	"github.com/twinfer/ontograph/ontology"
	"github.com/twinfer/ontograph/reasoner"
)

// SourceLoader fetches and parses one configured source. Satisfied by
// ontology.Loader; tests substitute fakes.
type SourceLoader interface {
	Load(ctx context.Context, src ontology.Source) ([]ontology.Statement, error)
}

// SkippedSource records a source that could not be loaded. The run
// continues without it.
type SkippedSource struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Summary reports the outcome of one ingestion run.
type Summary struct {
	Loaded  []string        `json:"loaded"`
	Skipped []SkippedSource `json:"skipped"`
	// Nodes and Edges are the store totals after the run.
	Nodes   int `json:"nodes"`
	Edges   int `json:"edges"`
	Aliases int `json:"aliases"`
	// RemovedUnsatisfiable sums the classes dropped across all sources.
	RemovedUnsatisfiable int `json:"removed_unsatisfiable"`
}

// Pipeline runs the full ingestion: sources are loaded, reasoned and
// built into fragments concurrently, then merged into the store one at a
// time. Only the merge is serialized; reasoning is the expensive part
// and parallelizes freely because each source is independent.
type Pipeline struct {
	loader      SourceLoader
	builder     *Builder
	store       *ontograph.Store
	concurrency int
	logger      *slog.Logger
}

// NewPipeline wires an ingestion pipeline. concurrency bounds the number
// of sources processed at once; values below 1 mean sequential.
func NewPipeline(loader SourceLoader, builder *Builder, store *ontograph.Store, concurrency int, logger *slog.Logger) *Pipeline {
	if concurrency < 1 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		loader:      loader,
		builder:     builder,
		store:       store,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Run ingests all sources and returns the run summary.
//
// A source that fails to load or that the reasoner proves inconsistent
// is skipped and reported; the run goes on with the remaining sources.
// Build failures abort the whole run: a broken property mapping poisons
// every answer the graph would give, so there is nothing to continue
// with.
func (p *Pipeline) Run(ctx context.Context, sources []ontology.Source) (*Summary, error) {
	summary := &Summary{Loaded: []string{}, Skipped: []SkippedSource{}}
	var mu sync.Mutex // guards summary and serializes merges

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(p.concurrency)

	for _, src := range sources {
		g.Go(func() error {
			frag, err := p.processSource(ctx, src)
			if err != nil {
				if errors.Is(err, ontology.ErrSourceLoadFailed) || errors.Is(err, reasoner.ErrOntologyInconsistent) {
					p.logger.Warn("skipping ontology source",
						slog.String("url", src.URL),
						slog.String("error", err.Error()))
					mu.Lock()
					summary.Skipped = append(summary.Skipped, SkippedSource{URL: src.URL, Reason: err.Error()})
					mu.Unlock()
					return nil
				}
				return err
			}

			mu.Lock()
			defer mu.Unlock()
			p.store.Merge(frag.Nodes, frag.Edges, frag.Aliases)
			summary.Loaded = append(summary.Loaded, src.URL)
			summary.RemovedUnsatisfiable += frag.RemovedUnsatisfiable
			p.logger.Info("merged ontology source",
				slog.String("url", src.URL),
				slog.Int("nodes", len(frag.Nodes)),
				slog.Int("edges", len(frag.Edges)),
				slog.Int("aliases", len(frag.Aliases)))
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Merge order across sources is scheduling-dependent; sort the report
	// so runs over the same sources produce the same summary.
	sort.Strings(summary.Loaded)
	sort.Slice(summary.Skipped, func(i, j int) bool { return summary.Skipped[i].URL < summary.Skipped[j].URL })

	snap := p.store.Snapshot()
	summary.Nodes = snap.NodeCount()
	summary.Edges = snap.EdgeCount()
	summary.Aliases = len(snap.Aliases())
	return summary, nil
}

// processSource runs the per-source stages: load, classify, build.
func (p *Pipeline) processSource(ctx context.Context, src ontology.Source) (*Fragment, error) {
	stmts, err := p.loader.Load(ctx, src)
	if err != nil {
		return nil, err
	}

	r, err := reasoner.New(src.Reasoner.Factory)
	if err != nil {
		return nil, err
	}
	closure, err := r.Classify(ctx, stmts)
	if err != nil {
		return nil, err
	}

	return p.builder.Build(stmts, closure, src.Reasoner)
}
