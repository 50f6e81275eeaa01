// Command admin provides account and maintenance utilities for Agora.
package main

import (
	"fmt"
	"os"

	"agora/internal/config"
	"agora/internal/database"
	"agora/internal/middleware"

	"gorm.io/gorm"
)

func main() {
	root := newRootCmd(openDatabase, os.Stdout)
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDatabase() (*gorm.DB, func() error, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	if _, err := middleware.InitLogger(middleware.LogConfig{Level: cfg.LogLevel}); err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	db, err := database.Connect(cfg)
	if err != nil {
		return nil, nil, err
	}
	return db, func() error { return database.Close(db) }, nil
}
