package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-accounts-api/internal/config"
	"github.com/go-accounts-api/internal/infrastructure/dynamo"
	mongoinfra "github.com/go-accounts-api/internal/infrastructure/mongo"
	transporthttp "github.com/go-accounts-api/internal/transport/http"
)

// openUserStore connects the credential store selected by STORE_DRIVER and
// makes sure its uniqueness constraints exist. The returned func releases it.
func openUserStore(ctx context.Context, cfg *config.Config) (transporthttp.UserRepository, func(), error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		client, err := mongoinfra.Connect(ctx, cfg.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		db := client.Database(cfg.MongoDatabase)
		if err := mongoinfra.EnsureIndexes(ctx, db); err != nil {
			_ = client.Disconnect(ctx)
			return nil, nil, err
		}
		closeFn := func() {
			dctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := client.Disconnect(dctx); err != nil {
				slog.Warn("mongo disconnect failed", "err", err)
			}
		}
		return mongoinfra.NewUserRepo(db), closeFn, nil

	case config.StoreDynamo:
		client, err := dynamo.NewClient(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		if err := dynamo.Bootstrap(ctx, client, cfg.UsersTable); err != nil {
			return nil, nil, err
		}
		return dynamo.NewUserRepo(client, cfg.UsersTable), func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
}
