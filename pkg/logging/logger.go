package logging

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds a zap logger appropriate for the environment.
// "local" gets a human-readable development logger at debug level;
// everything else gets the JSON production logger.
func NewLogger(env string) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error

	if env == "local" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}

	return logger.With(zap.String("service", "atlasform-engine")), nil
}
