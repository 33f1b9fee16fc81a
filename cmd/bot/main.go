package main

import (
	"log"
	"log/slog"
	"os"

	"github.com/Jacobbrewer1/kennel/cmd/bot/config"
	"github.com/Jacobbrewer1/kennel/pkg/logging"
)

func main() {
	if err := config.LoadEnvFile(); err != nil {
		log.Fatalln(err)
	}

	a, err := InitializeApp()
	if err != nil {
		log.Fatalln(err)
	}
	a.Info("Starting application")
	if err := a.Run(); err != nil {
		a.Error("Error running application", slog.String(logging.KeyError, err.Error()))
		os.Exit(1)
	}
}

// newLoggingConfig creates the logging config at the level set in the environment.
func newLoggingConfig(name logging.Name) (*logging.Config, error) {
	c := logging.NewConfig(name)
	if err := c.WithLevel(os.Getenv(config.EnvLogLevel)); err != nil {
		return nil, err
	}
	return c, nil
}
