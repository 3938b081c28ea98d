// Package metrics defines the opencensus measures and views exported on
// the indexer's prometheus endpoint.
package metrics

import (
	"context"
	"net/http"
	"time"

	"contrib.go.opencensus.io/exporter/prometheus"
	logging "github.com/ipfs/go-log/v2"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.opencensus.io/stats"
	"go.opencensus.io/stats/view"
	"go.opencensus.io/tag"
)

var log = logging.Logger("metrics")

var defaultMillisecondsDistribution = view.Distribution(0.01, 0.05, 0.1, 0.3, 0.6, 0.8, 1, 2, 3, 4, 5, 6, 8, 10, 13, 16, 20, 25, 30, 40, 50, 65, 80, 100, 130, 160, 200, 250, 300, 400, 500, 650, 800, 1000, 2000, 5000, 10000, 20000, 30000, 50000, 100000)

var (
	// EventKind tags counters with the pallet-qualified event name.
	EventKind, _ = tag.NewKey("event_kind")
	// Table tags counters with the entity table persisted to.
	Table, _ = tag.NewKey("table")
)

var (
	BatchDuration     = stats.Float64("batch_duration_ms", "Time taken to aggregate one event batch", stats.UnitMilliseconds)
	PersistDuration   = stats.Float64("persist_duration_ms", "Duration of a batch persistence flush", stats.UnitMilliseconds)
	BootstrapDuration = stats.Float64("bootstrap_duration_ms", "Duration of the one-time snapshot bootstrap", stats.UnitMilliseconds)
	EventsProcessed   = stats.Int64("events_processed", "Number of events applied", stats.UnitDimensionless)
	PersistModel      = stats.Int64("persist_model", "Number of models persisted", stats.UnitDimensionless)
	ProcessingFailure = stats.Int64("processing_failure", "Number of aborted batches", stats.UnitDimensionless)
	WatchHeight       = stats.Int64("watch_height", "Last block height processed by the watcher", stats.UnitDimensionless)
)

var DefaultViews = []*view.View{
	{Measure: BatchDuration, Aggregation: defaultMillisecondsDistribution},
	{Measure: PersistDuration, Aggregation: defaultMillisecondsDistribution},
	{Measure: BootstrapDuration, Aggregation: defaultMillisecondsDistribution},
	{Measure: EventsProcessed, Aggregation: view.Sum(), TagKeys: []tag.Key{EventKind}},
	{Measure: PersistModel, Aggregation: view.Sum(), TagKeys: []tag.Key{Table}},
	{Measure: ProcessingFailure, Aggregation: view.Count()},
	{Measure: WatchHeight, Aggregation: view.LastValue()},
}

// RecordCount adds n to a counter measure.
func RecordCount(ctx context.Context, m *stats.Int64Measure, n int) {
	stats.Record(ctx, m.M(int64(n)))
}

// RecordGauge sets a last-value measure.
func RecordGauge(ctx context.Context, m *stats.Int64Measure, v int64) {
	stats.Record(ctx, m.M(v))
}

// Timer records elapsed milliseconds on a duration measure when the
// returned stop function runs.
func Timer(ctx context.Context, m *stats.Float64Measure) func() {
	start := time.Now()
	return func() {
		stats.Record(ctx, m.M(float64(time.Since(start).Milliseconds())))
	}
}

// ListenAndServe registers the default views and serves the prometheus
// scrape endpoint until the context is done.
func ListenAndServe(ctx context.Context, addr string) error {
	if err := view.Register(DefaultViews...); err != nil {
		return err
	}
	registry := prom.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exporter, err := prometheus.NewExporter(prometheus.Options{
		Registry:  registry,
		Namespace: "computation_indexer",
	})
	if err != nil {
		return err
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", exporter)
	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		<-ctx.Done()
		if err := srv.Close(); err != nil {
			log.Errorw("close metrics server", "error", err)
		}
	}()
	log.Infow("serving metrics", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}
