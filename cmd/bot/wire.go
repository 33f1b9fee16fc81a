//go:build wireinject
// +build wireinject

package main

import (
	"github.com/Jacobbrewer1/kennel/cmd/bot/config"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
	"github.com/google/wire"
	"github.com/gorilla/mux"
)

func InitializeApp() (*App, error) {
	wire.Build(
		wire.Value(logging.Name(config.AppName)),
		newLoggingConfig,
		logging.CommonLogger,
		config.Parse,
		mux.NewRouter,
		NewApp,
	)
	return new(App), nil
}
