package main

import (
	"flag"
	"os"
	"strings"

	"github.com/himanishpuri/AutoPianist/pkg/logger"
	"github.com/himanishpuri/AutoPianist/pkg/pianist"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/hand"
	"github.com/himanishpuri/AutoPianist/pkg/pianist/storage"
)

var (
	port           int
	dbPath         string
	handPath       string
	bpm            float64
	allowedOrigins string
)

func init() {
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&dbPath, "db", getEnvOrDefault("PIANIST_DB_PATH", storage.DefaultDBFile), "Path to SQLite database")
	flag.StringVar(&handPath, "hand", os.Getenv("PIANIST_HAND_CONFIG"), "YAML hand configuration used when a request does not send one")
	flag.Float64Var(&bpm, "bpm", 120, "Tempo for MIDI export")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	flag.Parse()
	log := logger.GetLogger()

	// Parse allowed origins
	var origins []string
	if allowedOrigins == "*" {
		origins = []string{"*"}
	} else {
		origins = strings.Split(allowedOrigins, ",")
		for i := range origins {
			origins[i] = strings.TrimSpace(origins[i])
		}
	}

	handCfg := hand.DefaultConfig()
	if handPath != "" {
		var err error
		if handCfg, err = hand.LoadConfig(handPath); err != nil {
			log.Fatalf("Failed to load hand configuration: %v", err)
		}
	}

	service, err := pianist.NewService(
		pianist.WithDBPath(dbPath),
		pianist.WithHandConfig(handCfg),
		pianist.WithTempo(bpm),
		pianist.WithLogger(log.WithComponent("pianist")),
	)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	config := &ServerConfig{
		Port:           port,
		DBPath:         dbPath,
		Hand:           handCfg,
		AllowedOrigins: origins,
	}

	server := NewServer(service, config)
	if err := server.Start(); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
