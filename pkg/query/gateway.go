package query

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sirrobot01/dbforge/pkg/engine"
	"github.com/sirrobot01/dbforge/pkg/storage"
)

const (
	readyTimeout     = 60 * time.Second
	readyPollInitial = 500 * time.Millisecond
	readyPollMax     = 2 * time.Second
)

// Gateway gives the provisioning path native-driver access to instances:
// a readiness probe and the starter schema bootstrap.
type Gateway struct{}

// NewGateway creates a gateway
func NewGateway() *Gateway {
	return &Gateway{}
}

// WaitReady polls the engine's native ping with backoff until it answers
// or the window closes. Engines report ready at different speeds, so a
// fixed sleep either wastes time or races the server.
func (g *Gateway) WaitReady(ctx context.Context, inst *storage.Instance) error {
	eng, err := engine.Get(inst.Engine)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(readyTimeout)
	delay := readyPollInitial
	var lastErr error

	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if lastErr = g.ping(ctx, inst, eng.Category()); lastErr == nil {
			return nil
		}
		log.Debug().Err(lastErr).Str("id", inst.ID).Msg("Instance not ready yet")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		if delay < readyPollMax {
			delay *= 2
		}
	}
	return fmt.Errorf("instance %s did not become ready within %s: %w", inst.ID, readyTimeout, lastErr)
}

func (g *Gateway) ping(ctx context.Context, inst *storage.Instance, category engine.Category) error {
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	switch category {
	case engine.Relational:
		db, err := OpenSQL(inst)
		if err != nil {
			return err
		}
		defer db.Close()
		return db.PingContext(pingCtx)
	case engine.Document:
		client, err := OpenMongo(pingCtx, inst)
		if err != nil {
			return err
		}
		defer client.Disconnect(context.Background())
		return client.Ping(pingCtx, nil)
	case engine.KeyValue:
		rdb := OpenRedis(inst)
		defer rdb.Close()
		return rdb.Ping(pingCtx).Err()
	}
	return fmt.Errorf("no probe for category %s", category)
}

// Bootstrap applies the engine's starter DDL. Only relational engines
// carry one.
func (g *Gateway) Bootstrap(ctx context.Context, inst *storage.Instance, ddl string) error {
	eng, err := engine.Get(inst.Engine)
	if err != nil {
		return err
	}
	if eng.Category() != engine.Relational {
		return nil
	}

	db, err := OpenSQL(inst)
	if err != nil {
		return err
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("bootstrap DDL failed: %w", err)
	}
	return nil
}
