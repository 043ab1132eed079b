// Package server assembles the engine's internal packages — zones, hosts,
// cache, resolver strategies, transport listeners, and metrics — from
// on-disk configuration. Command-line parsing and process startup are out
// of scope for the engine itself (spec §1); this is the thin assembly layer
// such an external collaborator calls into.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"sort"

	"github.com/kelanmoore/homedns/internal/cache"
	homeerrors "github.com/kelanmoore/homedns/internal/errors"
	"github.com/kelanmoore/homedns/internal/hosts"
	"github.com/kelanmoore/homedns/internal/hostsfile"
	"github.com/kelanmoore/homedns/internal/metrics"
	"github.com/kelanmoore/homedns/internal/transport"
	"github.com/kelanmoore/homedns/internal/zone"
	"github.com/kelanmoore/homedns/internal/zonefile"
)

// Config collects everything needed to assemble an Engine. Only one of
// Forward or RootHints should be set; Forward takes priority if both are.
type Config struct {
	Addr string

	ZoneFiles  []string
	ZoneDirs   []string
	HostsFiles []string
	HostsDirs  []string

	Forward        net.IP
	RootHints      []net.IP
	RecursionLimit int
	CacheSize      int

	// MetricsAddr, if non-empty, serves the Prometheus registry at
	// "/metrics" on this address for as long as the Engine runs.
	MetricsAddr string

	Logger *slog.Logger
}

// Engine is a fully assembled, ready-to-run resolver.
type Engine struct {
	cfg       Config
	logger    *slog.Logger
	transport *transport.Server
	reg       *metrics.Registry
	cache     *cache.Shared
}

// New loads every configured zone and hosts source, merges them into one
// zone set, and builds the transport server. A load failure here is fatal
// (spec §7: "zone/hosts load errors: surfaced to the operator at startup").
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	zones := zone.NewZones()
	for _, path := range cfg.ZoneFiles {
		if err := loadZoneFile(zones, path); err != nil {
			return nil, err
		}
	}
	for _, dir := range cfg.ZoneDirs {
		if err := loadDir(dir, func(path string) error { return loadZoneFile(zones, path) }); err != nil {
			return nil, err
		}
	}

	h := hosts.New()
	for _, path := range cfg.HostsFiles {
		if err := loadHostsFile(h, path); err != nil {
			return nil, err
		}
	}
	for _, dir := range cfg.HostsDirs {
		if err := loadDir(dir, func(path string) error { return loadHostsFile(h, path) }); err != nil {
			return nil, err
		}
	}
	if err := zones.InsertMerge(h.ToZone()); err != nil {
		return nil, &homeerrors.LoadError{Source: "hosts-derived zone", Err: err}
	}

	cacheSize := cfg.CacheSize
	if cacheSize <= 0 {
		cacheSize = cache.DefaultDesiredSize
	}
	sharedCache := cache.NewShared(cacheSize)
	reg := metrics.NewRegistry(func() float64 { return float64(sharedCache.CurrentSize()) })

	opts := []transport.Option{
		transport.WithZones(zones),
		transport.WithCache(sharedCache),
		transport.WithMetrics(reg),
		transport.WithLogger(logger),
	}
	if cfg.Addr != "" {
		opts = append(opts, transport.WithAddr(cfg.Addr))
	}
	switch {
	case cfg.Forward != nil:
		opts = append(opts, transport.WithForward(cfg.Forward))
	case len(cfg.RootHints) > 0:
		opts = append(opts, transport.WithRootHints(cfg.RootHints))
	}
	if cfg.RecursionLimit > 0 {
		opts = append(opts, transport.WithRecursionLimit(cfg.RecursionLimit))
	}

	srv, err := transport.New(opts...)
	if err != nil {
		return nil, err
	}

	return &Engine{cfg: cfg, logger: logger, transport: srv, reg: reg, cache: sharedCache}, nil
}

// Run serves DNS, and the metrics endpoint if configured, until ctx is
// cancelled.
func (e *Engine) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() { errCh <- e.transport.ListenAndServe(ctx) }()

	var metricsSrv *http.Server
	if e.cfg.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", e.reg.Handler())
		metricsSrv = &http.Server{Addr: e.cfg.MetricsAddr, Handler: mux}
		go func() {
			e.logger.Info("metrics endpoint listening", "addr", e.cfg.MetricsAddr)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				e.logger.Error("metrics endpoint failed", "error", err)
			}
		}()
	}

	err := <-errCh
	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	return err
}

func loadZoneFile(zones *zone.Zones, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &homeerrors.LoadError{Source: path, Err: err}
	}
	z, err := zonefile.Read(string(data))
	if err != nil {
		return &homeerrors.LoadError{Source: path, Err: err}
	}
	if err := zones.InsertMerge(z); err != nil {
		return &homeerrors.LoadError{Source: path, Err: err}
	}
	return nil
}

func loadHostsFile(h *hosts.Hosts, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &homeerrors.LoadError{Source: path, Err: err}
	}
	parsed, err := hostsfile.Read(string(data))
	if err != nil {
		return &homeerrors.LoadError{Source: path, Err: err}
	}
	parsed.ForEachV4(h.AddV4)
	parsed.ForEachV6(h.AddV6)
	return nil
}

// loadDir loads every regular file directly inside dir, in sorted order, so
// a directory of zone or hosts fragments behaves deterministically.
func loadDir(dir string, loadFile func(path string) error) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return &homeerrors.LoadError{Source: dir, Err: err}
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	for _, name := range names {
		if err := loadFile(filepath.Join(dir, name)); err != nil {
			return err
		}
	}
	return nil
}
