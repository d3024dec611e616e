package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/dreamsneakers/storeclient/internal/config"
	"github.com/dreamsneakers/storeclient/internal/devserver"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	logger, _ := zap.NewDevelopment()
	defer logger.Sync()

	server := devserver.New(logger)
	router := server.Router()

	addr := ":" + cfg.DevServer.Port
	logger.Info("devserver listening", zap.String("addr", addr))
	if err := router.Run(addr); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
