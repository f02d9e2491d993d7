package main

import (
	"fmt"
	"os"

	"Niche_Community/internal/config"
	"Niche_Community/internal/pkg"
	"Niche_Community/internal/repository/mysql"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var rootCmd = &cobra.Command{
	Use:   "api",
	Short: "Niche community API server",
	RunE:  runServe,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the outbox relayer",
	RunE:  runServe,
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the MySQL tables (documents, community_outbox)",
	RunE:  runMigrate,
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap 读取配置并创建 logger，两个子命令共用
func bootstrap() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := pkg.NewLogger(cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	if err := mysql.InitDB(cfg.MySQLDSN); err != nil {
		return fmt.Errorf("connect mysql: %w", err)
	}
	if err := mysql.AutoMigrate(mysql.DB); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	log.Info("migration finished")
	return nil
}
