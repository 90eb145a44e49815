package config

// ConfigLogger настройки логирования
type ConfigLogger struct {
	Level string `mapstructure:"level"`
}

// ConfigServer настройки HTTP сервера
type ConfigServer struct {
	Port                    int `mapstructure:"port"`
	HTTPReadTimeout         int `mapstructure:"http_read_timeout"`
	HTTPWriteTimeout        int `mapstructure:"http_write_timeout"`
	HTTPIdleTimeout         int `mapstructure:"http_idle_timeout"`
	HTTPReadHeaderTimeout   int `mapstructure:"http_read_header_timeout"`
	GracefulShutdownTimeout int `mapstructure:"graceful_shutdown_timeout"`
}

// ConfigGateway настройки HTTP middleware
type ConfigGateway struct {
	CORSAllowedOrigins string `mapstructure:"cors_allowed_origins"`
	CORSMaxAge         int    `mapstructure:"cors_max_age"`
	RateLimitRPS       int    `mapstructure:"rate_limit_rps"`
	RateLimitBurst     int    `mapstructure:"rate_limit_burst"`
}

// ConfigAuth настройки аутентификации запросов
type ConfigAuth struct {
	SessionSecret string `mapstructure:"session_secret"`
	SessionTTL    int    `mapstructure:"session_ttl"`
	BcryptCost    int    `mapstructure:"bcrypt_cost"`
}

// Имена бэкендов хранилища
const (
	BackendMemory   = "memory"
	BackendMongo    = "mongo"
	BackendDynamoDB = "dynamodb"
	BackendS3       = "s3"
)

// ConfigMongo настройки документного хранилища
type ConfigMongo struct {
	URI                string `mapstructure:"uri"`
	Database           string `mapstructure:"database"`
	NotesCollection    string `mapstructure:"notes_collection"`
	AccountsCollection string `mapstructure:"accounts_collection"`
	ConnectTimeout     int    `mapstructure:"connect_timeout"`
}

// ConfigAWS общие настройки клиента AWS
type ConfigAWS struct {
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// ConfigDynamoDB настройки key-value хранилища с вторичными индексами
type ConfigDynamoDB struct {
	ConfigAWS         `mapstructure:",squash"`
	NotesTable        string `mapstructure:"notes_table"`
	AccountsTable     string `mapstructure:"accounts_table"`
	OwnerIndex        string `mapstructure:"owner_index"`
	EmailIndex        string `mapstructure:"email_index"`
	DeleteConcurrency int    `mapstructure:"delete_concurrency"`
}

// ConfigS3 настройки объектного хранилища
type ConfigS3 struct {
	ConfigAWS         `mapstructure:",squash"`
	Bucket            string `mapstructure:"bucket"`
	NotesPrefix       string `mapstructure:"notes_prefix"`
	AccountsPrefix    string `mapstructure:"accounts_prefix"`
	PageSize          int    `mapstructure:"page_size"`
	UsePathStyle      bool   `mapstructure:"use_path_style"`
	WorkerConcurrency int    `mapstructure:"worker_concurrency"`
}

// ConfigStorage выбор и настройки бэкенда хранилища
type ConfigStorage struct {
	Backend  string          `mapstructure:"backend"`
	Mongo    *ConfigMongo    `mapstructure:"mongo"`
	DynamoDB *ConfigDynamoDB `mapstructure:"dynamodb"`
	S3       *ConfigS3       `mapstructure:"s3"`
}

// Config основная структура конфигурации
type Config struct {
	Logger  *ConfigLogger  `mapstructure:"logger"`
	Server  *ConfigServer  `mapstructure:"server"`
	Gateway *ConfigGateway `mapstructure:"gateway"`
	Auth    *ConfigAuth    `mapstructure:"auth"`
	Storage *ConfigStorage `mapstructure:"storage"`
}
