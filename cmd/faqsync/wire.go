//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/bootstrap"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/export"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/mapper"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/domain/storefront"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/config"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/gladly"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/shopify"
	"github.com/AxialDev/faq-mapping-gladly-shopify/internal/infra/tabular"
	httpiface "github.com/AxialDev/faq-mapping-gladly-shopify/internal/interface/http"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/logger"
	"github.com/AxialDev/faq-mapping-gladly-shopify/pkg/metrics"
)

func initializeApp() (*bootstrap.App, func(), error) {
	wire.Build(
		config.Load,
		logger.New,
		metrics.New,
		provideGladlyClient,
		provideShopifyClient,
		provideDataDir,
		provideBackupStore,
		provideArchive,
		provideLinkStore,
		provideStorefrontConfig,
		provideExportConfig,
		provideMapperConfig,
		provideMapperDependencies,
		storefront.NewService,
		export.NewService,
		mapper.NewService,
		wire.Bind(new(storefront.AssetClient), new(*shopify.Client)),
		wire.Bind(new(export.Source), new(*gladly.Client)),
		wire.Bind(new(export.FileWriter), new(*tabular.Dir)),
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil, nil
}
