package main

import (
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"whist-lobby/internal/config"
	"whist-lobby/internal/handlers"
	"whist-lobby/internal/lobby"
	"whist-lobby/internal/middleware"
	"whist-lobby/internal/presence"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}

	directory := lobby.NewDirectory(logger, cfg.MinCapacity, cfg.MaxCapacity)
	gateway := handlers.NewGateway(logger, directory)
	monitor := presence.NewMonitor(logger, cfg.HeartbeatInterval, gateway.Disconnect)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/health", handlers.HealthHandler(directory))
	mux.Handle("/lobby/ws", handlers.LobbyWSHandler(logger, gateway, monitor, cfg.AllowedOrigins, cfg.PingInterval))

	server := &http.Server{
		Handler:     middleware.LogMiddleware(logger)(mux),
		ReadTimeout: time.Second * 10,
		// No WriteTimeout: it would sever long-lived websockets.
	}

	l, err := net.Listen("tcp", fmt.Sprintf(":%s", cfg.Port))
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}

	logger.Infof("listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
