package document

import (
	"context"
	"fmt"
	"time"

	"notekeeper/internal/config"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

// Open подключается к MongoDB, проверяет соединение и возвращает адаптер
// вместе с функцией закрытия клиента
func Open(ctx context.Context, cfg *config.ConfigMongo, logger *zap.Logger) (*Store, func(context.Context) error, error) {
	connectCtx, cancel := context.WithTimeout(ctx, time.Duration(cfg.ConnectTimeout)*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, nil, fmt.Errorf("mongo.Connect: %w", err)
	}
	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, nil, fmt.Errorf("client.Ping: %w", err)
	}

	db := client.Database(cfg.Database)
	logger.Info("connected to document store",
		zap.String("database", cfg.Database),
		zap.String("notes", cfg.NotesCollection),
		zap.String("accounts", cfg.AccountsCollection))

	store := New(db.Collection(cfg.NotesCollection), db.Collection(cfg.AccountsCollection), logger)
	return store, client.Disconnect, nil
}
