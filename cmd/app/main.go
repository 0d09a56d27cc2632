package main

import (
	"fmt"
	"os"

	"github.com/waste3d/coursemarket-api/config"
	"github.com/waste3d/coursemarket-api/internal/infrastructure/repository"
	"github.com/waste3d/coursemarket-api/internal/obs"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

var configDir string

func main() {
	rootCmd := &cobra.Command{
		Use:          "coursemarket",
		Short:        "Course marketplace: purchases, enrollments and progress",
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory with app.env")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap: конфиг, логгер и база с применёнными миграциями.
func bootstrap() (config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig(configDir)
	if err != nil {
		return cfg, nil, fmt.Errorf("config load failed: %w", err)
	}
	obs.InitLogger(cfg.LogLevel)

	dsn := cfg.SQLitePath
	if cfg.DBDriver == "postgres" {
		dsn = cfg.PostgresDSN()
	}
	db, err := repository.Open(cfg.DBDriver, dsn)
	if err != nil {
		return cfg, nil, fmt.Errorf("db connect failed: %w", err)
	}
	if err := repository.Migrate(db); err != nil {
		return cfg, nil, fmt.Errorf("migration failed: %w", err)
	}
	return cfg, db, nil
}
