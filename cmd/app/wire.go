//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"

	"github.com/yanqian/ai-notesum/internal/bootstrap"
	"github.com/yanqian/ai-notesum/internal/infra/config"
	httpiface "github.com/yanqian/ai-notesum/internal/interface/http"
	"github.com/yanqian/ai-notesum/pkg/logger"
)

func initializeApp() (*bootstrap.App, error) {
	wire.Build(
		config.Load,
		logger.New,
		summarizerSet,
		bootstrap.NewDocumentRepository,
		bootstrap.NewPlugin,
		httpiface.NewHandler,
		httpiface.NewRouter,
		bootstrap.NewApp,
	)
	return nil, nil
}
