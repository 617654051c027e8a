package httplog

import (
	"net/http"
	"time"

	"go.uber.org/zap"
)

// RoundTripper logs every outbound provider request to a dedicated file.
// URLs pass through redact before logging so credentials in query
// strings never reach the log.
type RoundTripper struct {
	logger *zap.Logger
	proxy  http.RoundTripper
	redact func(string) string
}

func NewRoundTripper(logger *zap.Logger, redact func(string) string) *RoundTripper {
	if redact == nil {
		redact = func(s string) string { return s }
	}
	return &RoundTripper{
		logger: logger,
		proxy:  http.DefaultTransport,
		redact: redact,
	}
}

func (l *RoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := l.proxy.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		l.logger.Error("HTTP request failed",
			zap.String("method", req.Method),
			zap.String("url", l.redact(req.URL.String())),
			zap.Duration("duration", duration),
			zap.String("error", l.redact(err.Error())),
		)
		return nil, err
	}

	l.logger.Info("HTTP request completed",
		zap.String("method", req.Method),
		zap.String("url", l.redact(req.URL.String())),
		zap.Int("status_code", resp.StatusCode),
		zap.Duration("duration", duration),
	)

	return resp, nil
}
