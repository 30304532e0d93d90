package commands

import (
	"context"

	zlog "github.com/rs/zerolog/log"
	"github.com/wolfeidau/tenantdesk/internal/logger"
)

type MigrateCmd struct {
	PostgresStore PostgresStoreFlags `embed:"" prefix:"postgres-"`
}

func (c *MigrateCmd) Run(ctx context.Context, globals *Globals) error {
	zlog.Logger = logger.Setup(globals.Debug)

	pool, err := c.PostgresStore.openPool(ctx, true)
	if err != nil {
		return err
	}
	pool.Close()

	return nil
}
