package config

import (
	"fmt"
	"strings"
)

// Load читает конфигурацию приложения и заполняет значения по умолчанию
func Load(configFile string) (*Config, error) {
	cfg, err := InitConfig[Config](configFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize заполняет отсутствующие секции значениями по умолчанию и проверяет выбор бэкенда
func (c *Config) Normalize() error {
	if c.Logger == nil {
		c.Logger = &ConfigLogger{}
	}
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}

	if c.Server == nil {
		c.Server = &ConfigServer{}
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.GracefulShutdownTimeout == 0 {
		c.Server.GracefulShutdownTimeout = 10
	}

	if c.Gateway == nil {
		c.Gateway = &ConfigGateway{CORSAllowedOrigins: "*"}
	}
	if c.Auth == nil {
		c.Auth = &ConfigAuth{}
	}
	if c.Auth.SessionTTL <= 0 {
		c.Auth.SessionTTL = 86400
	}

	if c.Storage == nil {
		c.Storage = &ConfigStorage{}
	}
	c.Storage.Backend = strings.ToLower(strings.TrimSpace(c.Storage.Backend))
	if c.Storage.Backend == "" {
		c.Storage.Backend = BackendMemory
	}

	switch c.Storage.Backend {
	case BackendMemory:
	case BackendMongo:
		if c.Storage.Mongo == nil {
			c.Storage.Mongo = &ConfigMongo{}
		}
		m := c.Storage.Mongo
		if m.URI == "" {
			return fmt.Errorf("storage.mongo.uri is required for backend %q", BackendMongo)
		}
		m.Database = orDefault(m.Database, "notekeeper")
		m.NotesCollection = orDefault(m.NotesCollection, "notes")
		m.AccountsCollection = orDefault(m.AccountsCollection, "accounts")
		if m.ConnectTimeout == 0 {
			m.ConnectTimeout = 10
		}
	case BackendDynamoDB:
		if c.Storage.DynamoDB == nil {
			c.Storage.DynamoDB = &ConfigDynamoDB{}
		}
		d := c.Storage.DynamoDB
		d.NotesTable = orDefault(d.NotesTable, "notes")
		d.AccountsTable = orDefault(d.AccountsTable, "users")
		d.OwnerIndex = orDefault(d.OwnerIndex, "owner_id-name-index")
		d.EmailIndex = orDefault(d.EmailIndex, "email-index")
		if d.DeleteConcurrency <= 0 {
			d.DeleteConcurrency = 8
		}
	case BackendS3:
		if c.Storage.S3 == nil {
			c.Storage.S3 = &ConfigS3{}
		}
		s := c.Storage.S3
		if s.Bucket == "" {
			return fmt.Errorf("storage.s3.bucket is required for backend %q", BackendS3)
		}
		s.NotesPrefix = orDefault(s.NotesPrefix, "notes")
		s.AccountsPrefix = orDefault(s.AccountsPrefix, "accounts")
		if s.PageSize <= 0 {
			s.PageSize = 1000
		}
		if s.WorkerConcurrency <= 0 {
			s.WorkerConcurrency = 8
		}
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}

	return nil
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
