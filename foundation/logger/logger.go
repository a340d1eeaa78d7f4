package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// New builds a SugaredLogger writing to stdout. When logDirectory is not
// empty, a <service>.log file inside it receives the same output.
func New(service string, logDirectory string) (*zap.SugaredLogger, error) {
	outputs := []string{"stdout"}

	if logDirectory != "" {
		if _, err := os.Stat(logDirectory); os.IsNotExist(err) {
			if err := os.MkdirAll(logDirectory, os.ModePerm); err != nil {
				return nil, err
			}
		}

		logPath := filepath.Join(logDirectory, service+".log")
		f, err := os.OpenFile(logPath, os.O_CREATE|os.O_RDWR, os.ModePerm)
		if err != nil {
			return nil, err
		}
		f.Close()

		outputs = append(outputs, logPath)
	}

	config := zap.NewProductionConfig()
	config.OutputPaths = outputs
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.DisableStacktrace = false
	config.InitialFields = map[string]any{"service": service}

	log, err := config.Build()
	if err != nil {
		return nil, err
	}

	return log.Sugar(), nil
}
