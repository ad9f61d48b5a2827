package main

import (
	"flag"
	"log"
	"os"

	"VoltX/internal/di"
	"VoltX/pkg/config"
)

func main() {
	configPath := flag.String("config", "config/config.yaml", "path to the YAML config")
	flag.Parse()

	cfg, err := config.LoadWithEnv(*configPath)
	if err != nil {
		log.Fatalf("voltx: load config: %v", err)
	}

	app, err := di.InitializeApp(cfg)
	if err != nil {
		log.Fatalf("voltx: wire app: %v", err)
	}

	if err := app.Run(); err != nil {
		log.Printf("voltx: %v", err)
		os.Exit(1)
	}
}
