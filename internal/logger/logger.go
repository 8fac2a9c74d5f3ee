package logger

import "go.uber.org/zap"

// New builds the process logger. Production JSON output unless appEnv is development.
func New(appEnv string) (*zap.Logger, error) {
	if appEnv == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// Must is New that panics on error, for use in main.
func Must(appEnv string) *zap.Logger {
	return zap.Must(New(appEnv))
}
