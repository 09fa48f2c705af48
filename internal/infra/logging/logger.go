// Package logging builds the process-wide zap logger from configuration.
package logging

import (
	"fmt"
	"io"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/matiasleandrokruk/macrometer/pkg/apperr"
)

// New returns a logger writing to w at level ("debug", "info", "warn", "error")
// in format "json" or "console". Commands pass os.Stderr so stdout stays free
// for results and the MCP stdio protocol.
func New(w io.Writer, level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: LOG_LEVEL: %v", apperr.ErrConfiguration, err)
	}

	var encoder zapcore.Encoder
	switch format {
	case "json", "":
		cfg := zap.NewProductionEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		encoder = zapcore.NewJSONEncoder(cfg)
	case "console":
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(cfg)
	default:
		return nil, fmt.Errorf("%w: LOG_FORMAT %q is not one of json, console", apperr.ErrConfiguration, format)
	}

	core := zapcore.NewCore(encoder, zapcore.Lock(zapcore.AddSync(w)), lvl)
	return zap.New(core, zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel)), nil
}
