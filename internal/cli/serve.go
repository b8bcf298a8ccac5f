package cli

import (
	"context"
	"time"

	"github.com/julianstephens/habio/internal/backend/embedded"
	"github.com/julianstephens/habio/internal/config"
	"github.com/julianstephens/habio/internal/logger"
	"github.com/julianstephens/habio/internal/server"
)

const sessionPurgeInterval = time.Hour

type ServeCmd struct {
	config.Server `embed:""`
}

func (cmd *ServeCmd) Run(ctx *Context) error {
	c := ctx.context()
	dsn, err := cmd.StorageURL(ctx.Config)
	if err != nil {
		return err
	}

	var opts embedded.Options
	if cmd.RedisAddr != "" {
		broker, err := embedded.NewRedisBroker(c, cmd.RedisAddr, embedded.DefaultRedisChannel)
		if err != nil {
			return err
		}
		opts.Broker = broker
		logger.Info("Sharing realtime events through redis", "addr", cmd.RedisAddr)
	}

	b, err := embedded.Open(c, dsn, opts)
	if err != nil {
		if opts.Broker != nil {
			opts.Broker.Close()
		}
		return err
	}
	defer b.Close()

	go purgeSessions(c, b)

	dir, err := ctx.Config.DataDir()
	if err != nil {
		return err
	}
	cleanup, err := server.WritePidFile(dir, cmd.Listen)
	if err != nil {
		return err
	}
	defer cleanup()

	srv := server.New(b, server.Options{
		ProjectID:   ctx.Config.ProjectID,
		CORSOrigins: cmd.CORSOrigins,
	})
	ctx.printf("habio server listening on %s (%s)\n", cmd.Listen, b.Dialect())
	return srv.Run(c, cmd.Listen)
}

func purgeSessions(ctx context.Context, b *embedded.Backend) {
	ticker := time.NewTicker(sessionPurgeInterval)
	defer ticker.Stop()
	for {
		n, err := b.PurgeExpiredSessions(ctx)
		if err != nil {
			logger.Warn("Failed to purge expired sessions", "error", err)
		} else if n > 0 {
			logger.Info("Purged expired sessions", "count", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
