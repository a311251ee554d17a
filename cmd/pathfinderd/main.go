// Package main is the entry point for pathfinderd.
//
// pathfinderd exposes the transitive-transfer pathfinding engine over a
// single JSON endpoint. It answers three kinds of request:
//
//	compute_transfer    - find the maximum transitive transfer between two
//	                      accounts, bounded by an optional value, hop count,
//	                      transfer count, and exclusion set, and decompose
//	                      it into atomic token transfers.
//	load_safes_binary   - replace the account store from a safes snapshot
//	                      and re-derive + publish a fresh capacity graph.
//	update_edges        - upsert an explicit edge list onto the current
//	                      capacity graph and publish the result, bypassing
//	                      the account store.
//
// # Architecture
//
// Requests land on a thin HTTP transport (pkg/server), which hands decoded
// JSON off to a bounded worker pool. Each worker calls into internal/query,
// which pins a snapshot off internal/dispenser, lowers the account-derived
// capacity edges into the three-vertex flow graph of internal/flownet, runs
// the augmenting-search push loop (internal/maxflow, internal/augment),
// prunes down to the requested value and transfer-count ceiling
// (internal/prune), and finally decomposes the realized flow into an
// ordered list of atomic transfers (internal/extract). load_safes_binary
// re-derives the capacity edges (internal/accountdb) and update_edges
// upserts edges onto the current snapshot; both publish a new dispenser
// version, and in-flight readers keep working against their pinned
// version until they release it.
//
// # Configuration
//
// Configuration loads from, in increasing priority: built-in defaults,
// a config.yaml found in the working directory, config/, or
// /etc/pathfinder/, and PATHFINDER_-prefixed environment variables. See
// pkg/config for the full key set; the ones most often overridden:
//
//	PATHFINDER_HTTP_PORT          - JSON endpoint port (default 8080)
//	PATHFINDER_LOG_LEVEL          - debug, info, warn, error
//	PATHFINDER_SNAPSHOT_SAFES_PATH - safes file loaded at startup
//	PATHFINDER_SNAPSHOT_EDGES_PATH - CSV edge file loaded at startup
//	PATHFINDER_SNAPSHOT_RELOAD_PERIOD - re-read the snapshot path on an interval
//	PATHFINDER_CACHE_ENABLED      - memoize compute_transfer by pinned version
//	PATHFINDER_AUDIT_ENABLED      - record audit entries for handled requests
//
// # Observability
//
// pkg/server starts the Prometheus exporter and, if tracing is enabled,
// the OpenTelemetry provider; both are torn down on graceful shutdown.
// pkg/server writes one audit entry per handled request. compute_transfer
// also writes its own audit entry, with the realized flow and transfer
// count, when it computes a result or fails, and logs failures via slog;
// a cache hit writes neither.
package main

import (
	"context"
	"os"
	"time"

	"pathfinder/internal/accountdb"
	"pathfinder/internal/dispenser"
	"pathfinder/internal/ioformat"
	"pathfinder/internal/query"
	"pathfinder/pkg/audit"
	"pathfinder/pkg/cache"
	"pathfinder/pkg/config"
	"pathfinder/pkg/logger"
	"pathfinder/pkg/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	logger.InitWithConfig(logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		FilePath:   cfg.Log.FilePath,
		MaxSize:    cfg.Log.MaxSize,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAge:     cfg.Log.MaxAge,
		Compress:   cfg.Log.Compress,
	})

	accounts := accountdb.New()
	d := dispenser.New(nil)

	var queryCache cache.Cache
	if cfg.Cache.Enabled {
		c, err := cache.New(cache.FromConfig(&cfg.Cache))
		if err != nil {
			logger.Log.Warn("failed to create cache, continuing without cache", "error", err)
		} else {
			queryCache = c
		}
	}

	auditLogger, err := audit.New(&audit.Config{
		Enabled:     cfg.Audit.Enabled,
		Backend:     cfg.Audit.Backend,
		FilePath:    cfg.Audit.FilePath,
		BufferSize:  cfg.Audit.BufferSize,
		FlushPeriod: cfg.Audit.FlushPeriod,
	})
	if err != nil {
		logger.Log.Warn("failed to create audit logger, continuing without audit", "error", err)
		auditLogger = &audit.NoopLogger{}
	}

	handler := query.New(d, accounts, queryCache, cfg.App.Name)
	handler.SetAuditLogger(auditLogger)

	srv := server.New(cfg, dispatch(handler))
	srv.SetAuditLogger(auditLogger)

	loadInitialSnapshot(handler, cfg.Snapshot.SafesPath, cfg.Snapshot.EdgesPath)
	srv.SetReady(true)

	if cfg.Snapshot.ReloadPeriod > 0 && (cfg.Snapshot.SafesPath != "" || cfg.Snapshot.EdgesPath != "") {
		go reloadLoop(handler, cfg.Snapshot.SafesPath, cfg.Snapshot.EdgesPath, cfg.Snapshot.ReloadPeriod)
	}

	logger.Info("starting pathfinderd",
		"port", cfg.HTTP.Port,
		"environment", cfg.App.Environment,
		"version", cfg.App.Version,
		"cache_enabled", queryCache != nil,
	)

	if err := srv.Run(); err != nil {
		logger.Fatal("server failed", "error", err)
	}
}

// loadInitialSnapshot publishes the configured safes or edges file before
// the server is marked ready, so the first request never races an empty
// dispenser. A missing or unset path is not fatal: the server comes up
// empty and waits for an update_edges/load_safes_binary call.
func loadInitialSnapshot(h *query.Handler, safesPath, edgesPath string) {
	ctx := context.Background()

	switch {
	case safesPath != "":
		payload, err := os.ReadFile(safesPath)
		if err != nil {
			logger.Log.Warn("failed to read safes snapshot, starting empty", "path", safesPath, "error", err)
			return
		}
		if _, err := h.LoadSafesBinary(ctx, payload); err != nil {
			logger.Log.Warn("failed to load safes snapshot, starting empty", "path", safesPath, "error", err)
		}
	case edgesPath != "":
		f, err := os.Open(edgesPath)
		if err != nil {
			logger.Log.Warn("failed to open edges snapshot, starting empty", "path", edgesPath, "error", err)
			return
		}
		defer f.Close()

		edges, err := ioformat.ReadEdgesCSV(f)
		if err != nil {
			logger.Log.Warn("failed to parse edges snapshot, starting empty", "path", edgesPath, "error", err)
			return
		}
		if _, err := h.UpdateEdges(ctx, edges); err != nil {
			logger.Log.Warn("failed to publish edges snapshot, starting empty", "path", edgesPath, "error", err)
		}
	}
}

// reloadLoop re-reads the configured snapshot file on every tick, letting
// an operator refresh the served graph by replacing the file on disk
// without restarting the process.
func reloadLoop(h *query.Handler, safesPath, edgesPath string, period time.Duration) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for range ticker.C {
		loadInitialSnapshot(h, safesPath, edgesPath)
	}
}
