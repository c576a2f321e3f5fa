package main

import (
	"context"
	"encoding/json"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/hydroapi"
	natsadapter "github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/nats"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/adapters/valkey"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/core/domain"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/config"
	"github.com/TheAcademyofNaturalSciences/basinscope/internal/pkg/logging"
)

// statusTTL keeps a dead sentinel from serving week-old health forever.
const statusTTL = 10 * time.Minute

var probePaths = []string{
	hydroapi.DelineatePath,
	hydroapi.ResourcesPath,
	hydroapi.LandCoverPath,
}

func main() {
	cfg, err := config.Load("basinscope-sentinel")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup("basinscope-sentinel", logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Both sinks are optional; the sentinel keeps probing and logs what
	// it sees even when nobody can read the results.
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, status will not be cached", "error", err)
		cache = nil
	} else {
		defer cache.Close()
	}

	publisher, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable, status will not be broadcast", "error", err)
		publisher = nil
	} else {
		defer publisher.Close()
	}

	client := &http.Client{Timeout: 15 * time.Second}
	probeInterval := 60 * time.Second

	ticker := time.NewTicker(probeInterval)
	defer ticker.Stop()

	slog.Info("upstream sentinel started",
		"base_url", cfg.Upstream.BaseURL, "interval", probeInterval.String())

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	// Run once immediately
	probeAll(ctx, client, cache, publisher, cfg.Upstream.BaseURL)

	for {
		select {
		case <-ticker.C:
			probeAll(ctx, client, cache, publisher, cfg.Upstream.BaseURL)
		case <-ctx.Done():
			return
		case sig := <-quit:
			slog.Info("shutting down sentinel", "signal", sig.String())
			cancel()
			return
		}
	}
}

// probeAll checks every endpoint concurrently and fans the combined
// status out to the cache and the broker.
func probeAll(ctx context.Context, client *http.Client, cache *valkey.Cache, publisher *natsadapter.Publisher, baseURL string) {
	status := domain.UpstreamStatus{
		BaseURL:   baseURL,
		Healthy:   true,
		Endpoints: make([]domain.EndpointStatus, len(probePaths)),
		CheckedAt: time.Now().UTC(),
	}

	var wg sync.WaitGroup
	for i, path := range probePaths {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			status.Endpoints[i] = probe(ctx, client, baseURL, path)
		}(i, path)
	}
	wg.Wait()

	for _, ep := range status.Endpoints {
		if !ep.Healthy {
			status.Healthy = false
			slog.Warn("upstream endpoint down", "endpoint", ep.Endpoint, "error", ep.Error)
		}
	}

	data, err := json.Marshal(status)
	if err != nil {
		slog.Error("marshal status", "error", err)
		return
	}

	if cache != nil {
		if err := cache.Set(ctx, domain.UpstreamStatusKey, data, int(statusTTL.Seconds())); err != nil {
			slog.Warn("cache status", "error", err)
		}
	}
	if publisher != nil {
		if err := publisher.PublishUpstreamStatus(ctx, &status); err != nil {
			slog.Warn("publish status", "error", err)
		}
	}

	slog.Info("upstream probed", "healthy", status.Healthy)
}

// probe sends a HEAD request so no delineation is triggered. Any HTTP
// response counts as the endpoint answering; only transport failures
// mark it down.
func probe(ctx context.Context, client *http.Client, baseURL, path string) domain.EndpointStatus {
	ep := domain.EndpointStatus{Endpoint: path}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, baseURL+path, nil)
	if err != nil {
		ep.Error = err.Error()
		return ep
	}

	start := time.Now()
	resp, err := client.Do(req)
	ep.LatencyMS = time.Since(start).Milliseconds()
	if err != nil {
		ep.Error = err.Error()
		return ep
	}
	defer resp.Body.Close()

	ep.Healthy = true
	ep.StatusCode = resp.StatusCode
	return ep
}
