package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/valkey-io/valkey-go"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/export"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/faq"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/mapper"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/backup"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/config"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/faqrepo"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/gladly"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/mappingstore"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/shopify"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/tabular"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
)

func provideGladlyClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *gladly.Client {
	return gladly.NewClient(gladly.Config{
		BaseURL:  cfg.Gladly.BaseURL,
		OrgID:    cfg.Gladly.OrgID,
		Username: cfg.Gladly.Username,
		APIToken: cfg.Gladly.APIToken,
		Timeout:  cfg.Gladly.Timeout,
	}, m, logger)
}

func provideShopifyClient(cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *shopify.Client {
	return shopify.NewClient(shopify.Config{
		StoreURL:          cfg.Shopify.StoreURL,
		AccessToken:       cfg.Shopify.AccessToken,
		ThemeID:           cfg.Shopify.ThemeID,
		APIVersion:        cfg.Shopify.APIVersion,
		RequestsPerSecond: cfg.Shopify.RequestsPerSecond,
		Timeout:           cfg.Shopify.Timeout,
	}, m, logger)
}

func provideDataDir(cfg *config.Config) *tabular.Dir {
	return tabular.NewDir(cfg.Data.Dir)
}

func provideBackupStore(cfg *config.Config, assets *shopify.Client, logger *slog.Logger) (storefront.BackupStore, error) {
	switch cfg.Backup.Driver {
	case "asset":
		return backup.NewAssetStore(assets), nil
	case "r2":
		r2 := cfg.Backup.R2
		store, err := backup.NewR2Store(backup.R2Config{
			Endpoint:  r2.Endpoint,
			AccessKey: r2.AccessKey,
			SecretKey: r2.SecretKey,
			Bucket:    r2.Bucket,
			Region:    r2.Region,
			Prefix:    r2.Prefix,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("init r2 backup store: %w", err)
		}
		return store, nil
	case "memory":
		return backup.NewMemoryStore(), nil
	default:
		return backup.NewLocalStore(cfg.Backup.Dir, logger), nil
	}
}

func provideArchive(cfg *config.Config, logger *slog.Logger) (export.Archive, func(), error) {
	fallback := faqrepo.NewMemoryRepository()
	noop := func() {}
	dsn := strings.TrimSpace(cfg.Archive.DSN)
	if dsn == "" {
		logger.Debug("archive postgres dsn not set, using memory repository")
		return fallback, noop, nil
	}
	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		logger.Error("invalid postgres dsn, using memory repository", "error", err)
		return fallback, noop, nil
	}
	if cfg.Archive.MaxConns > 0 {
		poolConfig.MaxConns = cfg.Archive.MaxConns
	}
	if cfg.Archive.MinConns > 0 {
		poolConfig.MinConns = cfg.Archive.MinConns
	}
	pool, err := pgxpool.NewWithConfig(context.Background(), poolConfig)
	if err != nil {
		logger.Error("failed to initialize postgres pool, using memory repository", "error", err)
		return fallback, noop, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := pool.Ping(ctx); err != nil {
		logger.Error("postgres ping failed, using memory repository", "error", err)
		pool.Close()
		return fallback, noop, nil
	}
	if cfg.Archive.Migrate {
		if err := faqrepo.Migrate(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, fmt.Errorf("migrate archive: %w", err)
		}
	}
	logger.Info("archive postgres repository enabled")
	return faqrepo.NewPostgresRepository(pool), pool.Close, nil
}

func provideLinkStore(cfg *config.Config, dir *tabular.Dir, logger *slog.Logger) (mapper.LinkStore, func(), error) {
	noop := func() {}
	switch cfg.MappingStore.Driver {
	case "valkey":
		opt, err := buildValkeyOptions(cfg)
		if err != nil {
			return nil, nil, fmt.Errorf("invalid valkey configuration: %w", err)
		}
		client, err := valkey.NewClient(opt)
		if err != nil {
			return nil, nil, fmt.Errorf("create valkey client: %w", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := client.Do(ctx, client.B().Ping().Build()).Error(); err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("valkey ping: %w", err)
		}
		logger.Info("mapping valkey store enabled", "addr", cfg.MappingStore.Addr)
		return mappingstore.NewValkeyStore(client, cfg.MappingStore.Prefix), client.Close, nil
	case "memory":
		return mappingstore.NewMemoryStore(), noop, nil
	default:
		return mappingstore.NewFileStore(dir.Path(cfg.Mapping.MappingFile)), noop, nil
	}
}

func buildValkeyOptions(cfg *config.Config) (valkey.ClientOption, error) {
	var (
		opt valkey.ClientOption
		err error
	)
	if strings.Contains(cfg.MappingStore.Addr, "://") {
		opt, err = valkey.ParseURL(cfg.MappingStore.Addr)
	} else {
		opt = valkey.ClientOption{InitAddress: []string{cfg.MappingStore.Addr}}
	}
	if err != nil {
		return valkey.ClientOption{}, err
	}
	return opt, nil
}

func provideStorefrontConfig(cfg *config.Config) storefront.Config {
	return storefront.Config{
		FilePath:      cfg.Shopify.FAQFilePath,
		SectionID:     cfg.Shopify.FAQSectionID,
		BackupEnabled: cfg.Mapping.BackupEnabled,
	}
}

func provideExportConfig(cfg *config.Config) export.Config {
	return export.Config{
		SupportedLanguages: faq.Languages(cfg.Gladly.SupportedLanguages),
		CombinedFile:       tabular.CombinedFileName,
		LanguageFile:       tabular.LanguageFileName,
	}
}

func provideMapperConfig(cfg *config.Config) mapper.Config {
	return mapper.Config{
		SupportedLanguages: faq.Languages(cfg.Gladly.SupportedLanguages),
		DefaultCategory:    cfg.Mapping.DefaultCategory,
		DefaultIcon:        cfg.Mapping.DefaultIcon,
		HandleStrategy:     cfg.Mapping.HandleStrategy,
		OnDuplicate:        cfg.Mapping.OnDuplicate,
		MatchThreshold:     cfg.Mapping.MatchThreshold,
		CombinedFile:       tabular.CombinedFileName,
		LanguageFile:       tabular.LanguageFileName,
	}
}

func provideMapperDependencies(store storefront.Service, files *tabular.Dir, exporter export.Service, search *gladly.Client, links mapper.LinkStore, m *metrics.Metrics, logger *slog.Logger) mapper.Dependencies {
	return mapper.Dependencies{
		Storefront: store,
		Files:      files,
		Source:     exporter,
		Search:     search,
		Links:      links,
		Metrics:    m,
		Logger:     logger,
	}
}
