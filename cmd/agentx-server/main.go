// Command agentx-server runs the RPC Transport (C10): a JSON-RPC 2.0 server
// over coder/websocket exposing a Local runtime to remote Platform API
// clients, generalizing cmd/opencode-server/main.go's flag parsing and
// signal-driven graceful shutdown.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/agentx/agentx/internal/config"
	"github.com/agentx/agentx/internal/logging"
	"github.com/agentx/agentx/internal/rpc"
	"github.com/agentx/agentx/internal/runtime"
)

var (
	port      = flag.Int("port", 8080, "Server port")
	directory = flag.String("directory", "", "Working directory (.agentx/agentx.jsonc overrides)")
	version   = flag.Bool("version", false, "Print version and exit")
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
)

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("agentx-server %s (%s)\n", Version, BuildTime)
		os.Exit(0)
	}

	log := logging.New(logging.DefaultConfig())

	paths := config.DefaultPaths()
	if err := paths.EnsurePaths(); err != nil {
		log.Fatal().Err(err).Msg("failed to create data directories")
	}

	cfg, err := config.Load(*directory)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	rt, err := runtime.NewLocal(cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to start local runtime")
	}

	serverCfg := rpc.DefaultServerConfig()
	serverCfg.Port = *port
	serverCfg.AuthToken = cfg.AuthToken
	serverCfg.ReliableDelivery = cfg.ReliableDelivery
	srv := rpc.NewServer(serverCfg, rt, log)

	go func() {
		log.Info().Int("port", *port).Msg("agentx-server listening")
		if err := srv.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown error")
	}
	if err := rt.Close(); err != nil {
		log.Error().Err(err).Msg("runtime close error")
	}

	log.Info().Msg("server stopped")
}
