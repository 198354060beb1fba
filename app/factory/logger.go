package factory

import (
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

func NewModuleLogger(module string) logrus.FieldLogger {
	return logrus.WithField("module", module)
}

// LoggerWithContext enriches logger with the request and tab identifiers of ctx.
func LoggerWithContext(logger logrus.FieldLogger, ctx echo.Context) logrus.FieldLogger {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if ctx == nil {
		return logger
	}

	req := ctx.Request()
	if requestID := strings.TrimSpace(req.Header.Get(echo.HeaderXRequestID)); requestID != "" {
		logger = logger.WithField("request_id", requestID)
	}
	if tabID := strings.TrimSpace(req.Header.Get("X-Tab-ID")); tabID != "" {
		logger = logger.WithField("tab_id", tabID)
	}
	return logger
}
