package main

import (
	"log"
	"net/http"
	"os"

	"github.com/trandlrparis/brief-tool/internal/config"
	"github.com/trandlrparis/brief-tool/internal/serverapp"
)

func main() {
	configPath := os.Getenv("BRIEF_TOOL_CONFIG")
	if configPath == "" {
		configPath = "brief_tool_config.yml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	cfg.ApplyEnv()

	if cfg.Asana.Token == "" {
		log.Print("warning: ASANA_ACCESS_TOKEN not set, tracker calls will fail without it")
	}

	handler, err := serverapp.NewHandler(serverapp.Options{
		Config: cfg,
		Logger: log.Default(),
	})
	if err != nil {
		log.Fatalf("build server: %v", err)
	}

	log.Printf("listening on %s", cfg.Addr)
	log.Fatal(http.ListenAndServe(cfg.Addr, handler))
}
