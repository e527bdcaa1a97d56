package infra

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/umalmyha/customers-api/internal/config"
)

// ConfigureLogger sets up standard logrus logger according to configuration
func ConfigureLogger(cfg config.LogCfg) error {
	lvl, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("failed to parse log level - %w", err)
	}

	switch cfg.Format {
	case "json":
		logrus.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(lvl)
	return nil
}
