// Package main implements the entry point for the StockPulse API server,
// which queues stock analysis requests and executes them asynchronously on a
// worker pool backed by Redis or, when Redis is unavailable, process memory.
package main

import (
	"fmt"
	"log"
	"os"
)

func main() {
	fmt.Println("StockPulse API Server Starting...")

	app, err := newApplication()
	if err != nil {
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if err := app.run(); err != nil {
		app.logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}
