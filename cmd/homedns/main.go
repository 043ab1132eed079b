// Command homedns is the thin CLI wrapper around the server package: it
// parses flags, builds a server.Config, and runs the engine until
// interrupted. Flag parsing and process startup are the external-collaborator
// surface named in spec.md §1 — the engine itself lives in server and
// internal/.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/kelanmoore/homedns/server"
)

type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }
func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	fs := flag.NewFlagSet("homedns", flag.ContinueOnError)
	addr := fs.String("addr", ":53", "address to listen on for DNS queries")
	metricsAddr := fs.String("metrics-addr", "", "address to serve Prometheus metrics on (disabled if empty)")
	forward := fs.String("forward", "", "upstream IPv4 address to forward all queries to")
	recursionLimit := fs.Int("recursion-limit", 0, "max CNAME/delegation recursion depth (0 = default)")
	cacheSize := fs.Int("cache-size", 0, "desired cache size in entries (0 = default)")

	var zoneFiles, zoneDirs, hostsFiles, hostsDirs, rootHints stringList
	fs.Var(&zoneFiles, "zone-file", "path to a zone file (repeatable)")
	fs.Var(&zoneDirs, "zone-dir", "directory of zone files (repeatable)")
	fs.Var(&hostsFiles, "hosts-file", "path to a hosts file (repeatable)")
	fs.Var(&hostsDirs, "hosts-dir", "directory of hosts files (repeatable)")
	fs.Var(&rootHints, "root-hint", "IPv4 address of a root nameserver (repeatable)")

	if err := fs.Parse(args); err != nil {
		return 1
	}

	cfg := server.Config{
		Addr:           *addr,
		ZoneFiles:      zoneFiles,
		ZoneDirs:       zoneDirs,
		HostsFiles:     hostsFiles,
		HostsDirs:      hostsDirs,
		RecursionLimit: *recursionLimit,
		CacheSize:      *cacheSize,
		MetricsAddr:    *metricsAddr,
		Logger:         logger,
	}

	if *forward != "" {
		ip := net.ParseIP(*forward)
		if ip == nil {
			fmt.Fprintf(os.Stderr, "homedns: invalid -forward address %q\n", *forward)
			return 1
		}
		cfg.Forward = ip
	}
	for _, h := range rootHints {
		ip := net.ParseIP(h)
		if ip == nil {
			fmt.Fprintf(os.Stderr, "homedns: invalid -root-hint address %q\n", h)
			return 1
		}
		cfg.RootHints = append(cfg.RootHints, ip)
	}

	engine, err := server.New(cfg)
	if err != nil {
		logger.Error("failed to start", "error", err)
		return 1
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := engine.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("engine exited", "error", err)
		return 1
	}
	return 0
}
