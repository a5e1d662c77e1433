package main

import (
	"context"
	"fmt"

	"github.com/Hetham1/pillbot/internal/backup"
	"github.com/Hetham1/pillbot/internal/storage"
)

type ImportCmd struct {
	Users string `help:"Legacy users file (defaults to USERS_FILE)" type:"path"`
	Logs  string `help:"Legacy logs file (defaults to LOGS_FILE)" type:"path"`
}

func (c *ImportCmd) Run(cli *CLI) error {
	cfg, log, err := cli.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	users, logs := cfg.UsersFile, cfg.LogsFile
	if c.Users != "" {
		users = c.Users
	}
	if c.Logs != "" {
		logs = c.Logs
	}

	src, err := storage.NewFileStore(users, logs)
	if err != nil {
		return fmt.Errorf("open legacy files: %w", err)
	}
	defer src.Close()

	dst, err := storage.New(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer dst.Close()

	n, err := storage.Import(dst, src)
	if err != nil {
		return err
	}
	log.Info().Str("users_file", users).Str("logs_file", logs).Str("database", cfg.DatabasePath).Int("days", n).Msg("Import finished")
	return nil
}

type BackupCmd struct {
	Dir string `help:"Target directory (defaults to BACKUP_DIR)" type:"path"`
}

func (c *BackupCmd) Run(cli *CLI) error {
	cfg, log, err := cli.load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	dir := cfg.BackupDir
	if c.Dir != "" {
		dir = c.Dir
	}
	if dir == "" {
		return fmt.Errorf("no backup directory: set BACKUP_DIR or pass --dir")
	}

	store, err := storage.Open(cfg)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}
	defer store.Close()

	w, err := backup.NewWriter(dir, store)
	if err != nil {
		return err
	}
	defer w.Close()

	path, err := w.Run(context.Background())
	if err != nil {
		return err
	}
	log.Info().Str("path", path).Msg("Backup written")
	return nil
}
