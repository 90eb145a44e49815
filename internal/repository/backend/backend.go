// Package backend выбирает реализацию CRUD-контракта по конфигурации.
// Выбор делается один раз при старте процесса.
package backend

import (
	"context"
	"fmt"

	"notekeeper/internal/config"
	"notekeeper/internal/repository"
	"notekeeper/internal/repository/document"
	"notekeeper/internal/repository/indexed"
	"notekeeper/internal/repository/memory"
	"notekeeper/internal/repository/object"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"
)

// CloseFunc освобождает клиент хранилища при остановке процесса
type CloseFunc func(ctx context.Context) error

func noopClose(context.Context) error { return nil }

// Open создает клиент выбранного бэкенда и адаптер над ним
func Open(ctx context.Context, cfg *config.ConfigStorage, logger *zap.Logger) (repository.Store, CloseFunc, error) {
	logger = logger.With(zap.String("backend", cfg.Backend))

	switch cfg.Backend {
	case config.BackendMemory:
		logger.Info("using in-memory storage")
		return memory.NewRepository(), noopClose, nil

	case config.BackendMongo:
		store, closeFn, err := document.Open(ctx, cfg.Mongo, logger)
		if err != nil {
			return nil, nil, err
		}
		return store, closeFn, nil

	case config.BackendDynamoDB:
		awsCfg, err := loadAWSConfig(ctx, cfg.DynamoDB.ConfigAWS)
		if err != nil {
			return nil, nil, err
		}
		client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
			if cfg.DynamoDB.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.DynamoDB.Endpoint)
			}
		})
		logger.Info("using key-value storage",
			zap.String("notes_table", cfg.DynamoDB.NotesTable),
			zap.String("accounts_table", cfg.DynamoDB.AccountsTable))
		return indexed.New(client, cfg.DynamoDB, logger), noopClose, nil

	case config.BackendS3:
		awsCfg, err := loadAWSConfig(ctx, cfg.S3.ConfigAWS)
		if err != nil {
			return nil, nil, err
		}
		client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
			if cfg.S3.Endpoint != "" {
				o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
			}
			o.UsePathStyle = cfg.S3.UsePathStyle
		})
		logger.Info("using object storage", zap.String("bucket", cfg.S3.Bucket))
		return object.New(client, cfg.S3, logger), noopClose, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func loadAWSConfig(ctx context.Context, cfg config.ConfigAWS) (aws.Config, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return aws.Config{}, fmt.Errorf("awsconfig.LoadDefaultConfig: %w", err)
	}
	return awsCfg, nil
}
