// Command pixeld runs the pixel display scheduling daemon.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/R3E-Network/pixeldaemon/internal/bootstrap"
	"github.com/R3E-Network/pixeldaemon/internal/bus/memory"
	"github.com/R3E-Network/pixeldaemon/internal/config"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML config file (overrides CONFIG_FILE env var)")
	flag.Parse()

	if *configPath != "" {
		os.Setenv("CONFIG_FILE", *configPath)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// No concrete bus transport is implemented: the bus client library is
	// an external collaborator, out of scope. The in-process fake stands
	// in until a real client is wired at this seam.
	transport := memory.New()

	daemon, err := bootstrap.New(cfg, bootstrap.WithBusClient(transport))
	if err != nil {
		log.Fatalf("bootstrap daemon: %v", err)
	}

	if cfg.Metrics.Enabled {
		go serveMetrics(cfg.Metrics.Addr)
	}

	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	transport.Connect()

	log.Printf("pixeld started, %d device(s) configured", len(cfg.Devices))
	if err := daemon.Run(ctx); err != nil {
		log.Fatalf("daemon exited with error: %v", err)
	}
}

func serveMetrics(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Printf("metrics server stopped: %v", err)
	}
}
