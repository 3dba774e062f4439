package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/pflag"

	"github.com/whatevertogo/asset-analyzer/pkg/analysis"
	"github.com/whatevertogo/asset-analyzer/pkg/catalog"
	"github.com/whatevertogo/asset-analyzer/pkg/config"
	"github.com/whatevertogo/asset-analyzer/pkg/graph"
	"github.com/whatevertogo/asset-analyzer/pkg/logging"
	"github.com/whatevertogo/asset-analyzer/pkg/output"
	"github.com/whatevertogo/asset-analyzer/pkg/pubsub"
	"github.com/whatevertogo/asset-analyzer/pkg/query"
	"github.com/whatevertogo/asset-analyzer/pkg/record"
	"github.com/whatevertogo/asset-analyzer/pkg/schema"
	"github.com/whatevertogo/asset-analyzer/pkg/watcher"
	"github.com/whatevertogo/asset-analyzer/pkg/web"
)

func main() {
	flags := pflag.NewFlagSet("asset-analyzer", pflag.ExitOnError)
	flags.String("catalog", ".", "Path to the catalog directory")
	flags.Bool("web", false, "Serve the HTTP API instead of printing a report")
	flags.Int("port", 8080, "Port for the web server")
	flags.Bool("watch", false, "Watch the catalog and rebuild on change (web mode)")
	flags.Int("cache-ttl", 30, "Graph cache validity window in seconds")
	flags.Int("top", 10, "How many most-referenced records to report")
	flags.StringSlice("exclude-types", nil, "Type names excluded from orphan reports")
	flags.String("verbosity", "", "Log level: debug, info, warn, error")
	flags.Bool("json-logs", false, "Emit JSON logs")

	queryField := flags.String("query-field", "", "Field name for a one-shot query")
	queryOp := flags.String("query-op", "eq", "Query operator (eq, ne, lt, le, gt, ge, contains, not-contains, has-prefix, has-suffix, matches, is-null, is-not-null)")
	queryValue := flags.String("query-value", "", "Comparison value for a one-shot query")

	if err := flags.Parse(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load(flags)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	logging.Configure(cfg.Verbosity, cfg.JSONLogs)

	cat, err := catalog.Open(cfg.Catalog)
	if err != nil {
		logging.Fatal("failed to open catalog", "error", err)
	}

	registry := schema.NewRegistry()
	builder := graph.NewBuilder(cat, cat, cfg.CacheTTL())

	if cfg.WebMode {
		runServer(cfg, cat, registry, builder)
		return
	}

	runReport(cfg, cat, registry, builder, *queryField, *queryOp, *queryValue)
}

// runReport is the one-shot CLI path: build the graph, print the report,
// optionally run a single-condition query.
func runReport(cfg *config.Config, cat *catalog.Catalog, registry *schema.Registry, builder *graph.Builder, queryField, queryOp, queryValue string) {
	store, err := builder.Build(context.Background())
	if err != nil {
		logging.Fatal("graph build failed", "error", err)
	}

	orphans := graph.FindOrphans(store, cfg.ExcludeTypes...)
	top := store.MostReferenced(cfg.TopN)
	output.PrintGraphReport(cfg.Catalog, store.Stats(), orphans, top)
	output.PrintCycles(graph.Cycles(store))

	if queryField == "" {
		return
	}

	op, ok := query.OpFromName(queryOp)
	if !ok {
		logging.Fatal("unknown query operator", "op", queryOp)
	}
	group := query.NewGroup(query.And,
		query.NewCondition(queryField, op, record.String(queryValue)))

	records, err := cat.ListAll()
	if err != nil {
		logging.Fatal("failed to list records", "error", err)
	}
	fmt.Println()
	output.PrintQueryResults(query.Run(registry, group, records))
}

// runServer is the long-running path: HTTP API, initial build, optional
// catalog watching.
func runServer(cfg *config.Config, cat *catalog.Catalog, registry *schema.Registry, builder *graph.Builder) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	publisher := pubsub.NewSSEPublisher()
	defer publisher.Close()

	runner := analysis.NewRunner(cat, registry, builder, publisher)
	server := web.NewServer(cat, registry, builder, publisher)

	// Initial build so the first request does not pay for it.
	if err := runner.Run(ctx, "initial analysis"); err != nil {
		logging.Error("initial analysis failed", "error", err)
	}

	if cfg.Watch {
		cw, err := watcher.NewCatalogWatcher(cfg.Catalog)
		if err != nil {
			logging.Fatal("failed to create catalog watcher", "error", err)
		}
		if err := cw.Start(ctx); err != nil {
			logging.Fatal("failed to start catalog watcher", "error", err)
		}
		debouncer := watcher.NewDebouncer(cw.Events(), 500*time.Millisecond, 5*time.Second)
		debouncer.Start(ctx)
		go runner.Watch(ctx, debouncer.Output())
	}

	if err := server.Serve(cfg.Port); err != nil {
		logging.Fatal("web server failed", "error", err)
	}
}
