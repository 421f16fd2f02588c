package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/quillfeed/quillfeed-backend/internal/domain/content"
	"github.com/quillfeed/quillfeed-backend/internal/platform/envutil"
	"github.com/quillfeed/quillfeed-backend/internal/platform/logger"
	"github.com/quillfeed/quillfeed-backend/internal/quality"
)

func main() {
	var input, checkContext, rulesPath string
	flag.StringVar(&input, "input", "", "path to a JSON array of content items")
	flag.StringVar(&checkContext, "context", "ingest", "check context: ingest, ranking or featured")
	flag.StringVar(&rulesPath, "rules", "", "rules document path (default QUALITY_RULES_PATH)")
	flag.Parse()

	_ = godotenv.Load()

	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if input == "" {
		fmt.Println("usage: qualitycheck -input items.json [-context ingest] [-rules path]")
		os.Exit(2)
	}

	cctx := quality.CheckContext(checkContext)
	if !cctx.Valid() {
		log.Fatal("Invalid check context", "context", checkContext)
	}

	if rulesPath == "" {
		rulesPath = envutil.GetEnv("QUALITY_RULES_PATH", "configs/quality_rules.yaml", log)
	}
	rules, err := quality.LoadRules(rulesPath)
	if err != nil {
		log.Fatal("Failed to load quality rules", "path", rulesPath, "error", err)
	}
	engine, err := quality.NewEngine(rules, log)
	if err != nil {
		log.Fatal("Failed to build quality engine", "error", err)
	}

	raw, err := os.ReadFile(input)
	if err != nil {
		log.Fatal("Failed to read input", "path", input, "error", err)
	}
	var items []*content.Item
	if err := json.Unmarshal(raw, &items); err != nil {
		log.Fatal("Failed to parse input", "path", input, "error", err)
	}

	gated := 0
	for _, item := range items {
		d := engine.Check(item, cctx)
		fmt.Printf("%-40s action=%-10s tier=%-10s score=%.1f\n", item.ID, d.Action, d.Tier, d.Score)
		for _, v := range d.Violations {
			fmt.Printf("    [%s] %s: %s\n", v.Severity, v.Type, v.Message)
		}
		if d.Action == quality.ActionReject || d.Action == quality.ActionQuarantine {
			gated++
		}
	}

	fmt.Printf("\nchecked %d items, %d rejected or quarantined\n", len(items), gated)
	if gated > 0 {
		os.Exit(1)
	}
}
