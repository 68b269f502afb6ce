package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noah-isme/content-admin-api/pkg/config"
	"github.com/noah-isme/content-admin-api/pkg/logger"
)

var rootCmd = &cobra.Command{
	Use:           "content-api",
	Short:         "Content administration API",
	SilenceUsage:  true,
}

// bootstrap loads configuration and the process logger shared by every subcommand.
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logr, nil
}
