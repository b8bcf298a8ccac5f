package cli

import (
	"fmt"
	"path/filepath"

	"github.com/julianstephens/habio/internal/backup"
	"github.com/julianstephens/habio/internal/errors"
	"github.com/julianstephens/habio/internal/logger"
)

func (ctx *Context) backupManager() (*backup.Manager, error) {
	if !ctx.Config.Embedded() {
		return nil, errors.New(errors.KindValidation, "Backups are only available for the embedded backend")
	}
	path, err := ctx.Config.ResolvedDataPath()
	if err != nil {
		return nil, err
	}
	return backup.NewManager(path), nil
}

// PerformAutomaticBackup backs up the embedded data file, logging failures
func (ctx *Context) PerformAutomaticBackup() {
	if !ctx.Config.Embedded() {
		return
	}
	mgr, err := ctx.backupManager()
	if err == nil {
		_, err = mgr.Create(ctx.context())
	}
	if err != nil {
		logger.Warn("Automatic backup failed", "error", err)
	}
}

type BackupCreateCmd struct{}

func (cmd *BackupCreateCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	path, err := mgr.Create(ctx.context())
	if err != nil {
		return err
	}
	ctx.printf("✓ Backup created: %s\n", path)
	return nil
}

type BackupListCmd struct{}

func (cmd *BackupListCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	backups, err := mgr.List()
	if err != nil {
		return err
	}
	if len(backups) == 0 {
		ctx.printf("No backups found in %s\n", mgr.Dir())
		return nil
	}
	for _, b := range backups {
		ctx.printf("%s  %s  %d KB\n", b.Timestamp.Local().Format("2006-01-02 15:04:05"), filepath.Base(b.Path), b.Size/1024)
	}
	return nil
}

type BackupRestoreCmd struct {
	File string `arg:"" help:"Backup file name or path."`
}

func (cmd *BackupRestoreCmd) Run(ctx *Context) error {
	mgr, err := ctx.backupManager()
	if err != nil {
		return err
	}
	path := cmd.File
	if filepath.Base(path) == path {
		path = filepath.Join(mgr.Dir(), path)
	}
	if err := mgr.Restore(ctx.context(), path); err != nil {
		return fmt.Errorf("restore failed: %w", err)
	}
	ctx.printf("✓ Restored %s\n", filepath.Base(path))
	return nil
}

type BackupCmd struct {
	Create  BackupCreateCmd  `cmd:"" help:"Create a backup of the embedded database." default:"1"`
	List    BackupListCmd    `cmd:"" help:"List backups."`
	Restore BackupRestoreCmd `cmd:"" help:"Restore the embedded database from a backup."`
}
