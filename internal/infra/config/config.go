package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config aggregates runtime configuration used across the tool.
type Config struct {
	Log          LogConfig          `yaml:"log"`
	Data         DataConfig         `yaml:"data"`
	Gladly       GladlyConfig       `yaml:"gladly"`
	Shopify      ShopifyConfig      `yaml:"shopify"`
	Mapping      MappingConfig      `yaml:"mapping"`
	Backup       BackupConfig       `yaml:"backup"`
	Archive      ArchiveConfig      `yaml:"archive"`
	MappingStore MappingStoreConfig `yaml:"mappingStore"`
	HTTP         HTTPConfig         `yaml:"http"`
	Admin        AdminConfig        `yaml:"admin"`
}

// LogConfig controls the slog handler.
type LogConfig struct {
	Level string `yaml:"level" env:"LOG_LEVEL"`
}

// DataConfig locates the tabular export files.
type DataConfig struct {
	Dir string `yaml:"dir" env:"DATA_DIR" validate:"required"`
}

// GladlyConfig holds the source knowledge base credentials.
type GladlyConfig struct {
	BaseURL            string        `yaml:"baseUrl"            env:"GLADLY_BASE_URL"            validate:"required,url"`
	OrgID              string        `yaml:"orgId"              env:"GLADLY_ORG_ID"              validate:"required"`
	Username           string        `yaml:"username"           env:"GLADLY_USERNAME"            validate:"required"`
	APIToken           string        `yaml:"apiToken"           env:"GLADLY_API_TOKEN"           validate:"required"`
	SupportedLanguages []string      `yaml:"supportedLanguages" env:"GLADLY_SUPPORTED_LANGUAGES" validate:"required,min=1,dive,required"`
	Timeout            time.Duration `yaml:"timeout"            env:"GLADLY_TIMEOUT"`
}

// ShopifyConfig holds the storefront theme coordinates.
type ShopifyConfig struct {
	StoreURL          string        `yaml:"storeUrl"          env:"SHOPIFY_STORE_URL"           validate:"required"`
	AccessToken       string        `yaml:"accessToken"       env:"SHOPIFY_ACCESS_TOKEN"        validate:"required"`
	ThemeID           string        `yaml:"themeId"           env:"SHOPIFY_THEME_ID"            validate:"required"`
	FAQSectionID      string        `yaml:"faqSectionId"      env:"SHOPIFY_FAQ_SECTION_ID"      validate:"required"`
	FAQFilePath       string        `yaml:"faqFilePath"       env:"SHOPIFY_FAQ_FILE_PATH"       validate:"required"`
	APIVersion        string        `yaml:"apiVersion"        env:"SHOPIFY_API_VERSION"         validate:"required"`
	RequestsPerSecond float64       `yaml:"requestsPerSecond" env:"SHOPIFY_REQUESTS_PER_SECOND" validate:"gte=0"`
	Timeout           time.Duration `yaml:"timeout"           env:"SHOPIFY_TIMEOUT"`
}

// MappingConfig drives how rows turn into theme questions.
type MappingConfig struct {
	DefaultCategory string  `yaml:"defaultCategory" env:"MAPPING_DEFAULT_CATEGORY"`
	DefaultIcon     string  `yaml:"defaultIcon"     env:"MAPPING_DEFAULT_ICON"`
	BackupEnabled   bool    `yaml:"backupEnabled"   env:"MAPPING_BACKUP_ENABLED"`
	HandleStrategy  string  `yaml:"handleStrategy"  env:"MAPPING_HANDLE_STRATEGY"  validate:"oneof=id slug"`
	OnDuplicate     string  `yaml:"onDuplicate"     env:"MAPPING_ON_DUPLICATE"     validate:"oneof=fail skip update"`
	MappingFile     string  `yaml:"mappingFile"     env:"MAPPING_FILE"`
	MatchThreshold  float64 `yaml:"matchThreshold"  env:"MAPPING_MATCH_THRESHOLD"  validate:"gte=0,lte=100"`
}

// BackupConfig selects where pre-write snapshots are kept.
type BackupConfig struct {
	Driver string   `yaml:"driver" env:"BACKUP_DRIVER" validate:"oneof=local asset r2 memory"`
	Dir    string   `yaml:"dir"    env:"BACKUP_DIR"`
	R2     R2Config `yaml:"r2"`
}

// R2Config contains S3-compatible bucket settings.
type R2Config struct {
	Endpoint  string `yaml:"endpoint"  env:"BACKUP_R2_ENDPOINT"`
	AccessKey string `yaml:"accessKey" env:"BACKUP_R2_ACCESS_KEY"`
	SecretKey string `yaml:"secretKey" env:"BACKUP_R2_SECRET_KEY"`
	Bucket    string `yaml:"bucket"    env:"BACKUP_R2_BUCKET"`
	Region    string `yaml:"region"    env:"BACKUP_R2_REGION"`
	Prefix    string `yaml:"prefix"    env:"BACKUP_R2_PREFIX"`
}

// ArchiveConfig contains the optional Postgres mirror of fetched records.
type ArchiveConfig struct {
	DSN      string `yaml:"dsn"      env:"ARCHIVE_POSTGRES_DSN"`
	MaxConns int32  `yaml:"maxConns" env:"ARCHIVE_POSTGRES_MAX_CONNS"`
	MinConns int32  `yaml:"minConns" env:"ARCHIVE_POSTGRES_MIN_CONNS"`
	Migrate  bool   `yaml:"migrate"  env:"ARCHIVE_POSTGRES_MIGRATE"`
}

// MappingStoreConfig selects where source/destination links are kept.
type MappingStoreConfig struct {
	Driver string `yaml:"driver" env:"MAPPING_STORE_DRIVER" validate:"oneof=csv valkey memory"`
	Addr   string `yaml:"addr"   env:"MAPPING_STORE_ADDR"`
	Prefix string `yaml:"prefix" env:"MAPPING_STORE_PREFIX"`
}

// HTTPConfig controls the admin server.
type HTTPConfig struct {
	Address      string          `yaml:"address"      env:"HTTP_ADDRESS"`
	ReadTimeout  time.Duration   `yaml:"readTimeout"  env:"HTTP_READ_TIMEOUT"`
	WriteTimeout time.Duration   `yaml:"writeTimeout" env:"HTTP_WRITE_TIMEOUT"`
	AllowOrigins []string        `yaml:"allowOrigins" env:"HTTP_ALLOW_ORIGINS"`
	RateLimit    RateLimitConfig `yaml:"rateLimit"`
}

// RateLimitConfig drives the request limiting middleware.
type RateLimitConfig struct {
	Enabled           bool `yaml:"enabled"           env:"HTTP_RATE_LIMIT_ENABLED"`
	RequestsPerMinute int  `yaml:"requestsPerMinute" env:"HTTP_RATE_LIMIT_RPM"`
	Burst             int  `yaml:"burst"             env:"HTTP_RATE_LIMIT_BURST"`
}

// AdminConfig protects the admin API. An empty secret disables auth.
type AdminConfig struct {
	JWTSecret string `yaml:"jwtSecret" env:"ADMIN_JWT_SECRET"`
}

// Load reads configuration from a YAML file, a .env file and environment variables.
func Load() (*Config, error) {
	cfg := defaultConfig()

	if path := os.Getenv("CONFIG_PATH"); path != "" {
		if err := hydrateFromFile(cfg, path); err != nil {
			return nil, err
		}
	} else if _, err := os.Stat("configs/config.yaml"); err == nil {
		if err := hydrateFromFile(cfg, "configs/config.yaml"); err != nil {
			return nil, err
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

func hydrateFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config file: %w", err)
	}
	return nil
}

func applyEnvOverrides(cfg *Config) error {
	if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("read env: %w", err)
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Log:  LogConfig{Level: "info"},
		Data: DataConfig{Dir: "data"},
		Gladly: GladlyConfig{
			SupportedLanguages: []string{"fr-ca", "en-us"},
			Timeout:            30 * time.Second,
		},
		Shopify: ShopifyConfig{
			FAQFilePath:       "templates/page.faq-questions.json",
			APIVersion:        "2024-04",
			RequestsPerSecond: 2,
			Timeout:           30 * time.Second,
		},
		Mapping: MappingConfig{
			BackupEnabled:  true,
			HandleStrategy: "id",
			OnDuplicate:    "fail",
			MappingFile:    "mapping.csv",
			MatchThreshold: 80,
		},
		Backup: BackupConfig{
			Driver: "local",
			Dir:    "backups",
		},
		Archive: ArchiveConfig{
			MaxConns: 4,
		},
		MappingStore: MappingStoreConfig{
			Driver: "csv",
			Prefix: "faqsync",
		},
		HTTP: HTTPConfig{
			Address:      ":8080",
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			RateLimit: RateLimitConfig{
				Enabled:           true,
				RequestsPerMinute: 60,
				Burst:             20,
			},
		},
	}
}

// Validate ensures the configuration is safe to use.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}
	for _, lang := range c.Gladly.SupportedLanguages {
		if lang != strings.ToLower(strings.TrimSpace(lang)) {
			return fmt.Errorf("gladly.supportedLanguages: %q must be lower-case without spaces", lang)
		}
	}
	if !strings.HasSuffix(c.Shopify.FAQFilePath, ".json") {
		return errors.New("shopify.faqFilePath must point to a .json asset")
	}
	if c.Backup.Driver == "local" && strings.TrimSpace(c.Backup.Dir) == "" {
		return errors.New("backup.dir cannot be empty when backup.driver is local")
	}
	if c.Backup.Driver == "r2" {
		if c.Backup.R2.Endpoint == "" || c.Backup.R2.Bucket == "" {
			return errors.New("backup.r2.endpoint and backup.r2.bucket are required when backup.driver is r2")
		}
	}
	if c.MappingStore.Driver == "valkey" && strings.TrimSpace(c.MappingStore.Addr) == "" {
		return errors.New("mappingStore.addr cannot be empty when mappingStore.driver is valkey")
	}
	if c.MappingStore.Driver == "csv" && strings.TrimSpace(c.Mapping.MappingFile) == "" {
		return errors.New("mapping.mappingFile cannot be empty when mappingStore.driver is csv")
	}
	if c.HTTP.RateLimit.Enabled {
		if c.HTTP.RateLimit.RequestsPerMinute <= 0 {
			return errors.New("http.rateLimit.requestsPerMinute must be positive")
		}
		if c.HTTP.RateLimit.Burst <= 0 {
			return errors.New("http.rateLimit.burst must be positive")
		}
	}
	return nil
}
