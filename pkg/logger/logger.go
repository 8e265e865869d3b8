// Path: pkg/logger/logger.go
package logger

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var Logger *zap.Logger

// InitLogger initializes the global Logger for the given environment (dev, qa, prod).
func InitLogger(env string) {
	logger, err := New(env)
	if err != nil {
		panic(err)
	}
	Logger = logger
}

// New builds a development logger for dev/qa and a JSON production logger otherwise.
func New(env string) (*zap.Logger, error) {
	var config zap.Config

	if env == "dev" || env == "qa" {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else { // pre. prod, or default
		config = zap.NewProductionConfig()
		config.OutputPaths = []string{"stdout"}
		config.ErrorOutputPaths = []string{"stderr"}
	}

	return config.Build(zap.AddStacktrace(zap.DPanicLevel))
}
