package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/gonuts/flag"

	"github.com/biotinker/peppergrade"
	"github.com/biotinker/peppergrade/internal/config"

	"go.viam.com/rdk/logging"
)

func main() {
	configPath := flag.String("config", "", "path to a YAML configuration file (optional)")
	flag.Parse()

	logger := logging.NewDebugLogger("peppergrade")

	cfg := peppergrade.DefaultConfig()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			logger.Fatal(err)
		}
		cfg = *loaded
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	p, err := peppergrade.NewPipeline(&cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}
	if err := peppergrade.Run(ctx, p); err != nil {
		logger.Fatal(err)
	}

	report, err := p.Report()
	if err != nil {
		logger.Fatal(err)
	}
	b, err := peppergrade.MarshalReport(report)
	if err != nil {
		logger.Fatal(err)
	}
	fmt.Println(string(b))
}
