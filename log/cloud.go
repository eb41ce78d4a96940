package log

import (
	"context"
	"log/slog"

	"cloud.google.com/go/logging"
)

// CloudClientHandler sends records to Cloud Logging through the API instead of
// stdout, for runs outside of Cloud Functions.
type CloudClientHandler struct {
	logger *logging.Logger
	attrs  []slog.Attr
	level  slog.Leveler
}

func NewCloudClientHandler(client *logging.Client, logID string, level slog.Leveler) *CloudClientHandler {
	return &CloudClientHandler{logger: client.Logger(logID), level: level}
}

func (h *CloudClientHandler) Handle(ctx context.Context, r slog.Record) error {
	payload := map[string]any{"message": r.Message}
	for _, attr := range h.attrs {
		payload[attr.Key] = attr.Value.Any()
	}
	r.Attrs(func(attr slog.Attr) bool {
		payload[attr.Key] = attr.Value.Any()
		return true
	})

	h.logger.Log(logging.Entry{
		Timestamp: r.Time,
		Severity:  logging.ParseSeverity(severity(r.Level)),
		Payload:   payload,
		Trace:     TraceID(ctx),
	})
	return nil
}

func (h *CloudClientHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *CloudClientHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &CloudClientHandler{logger: h.logger, attrs: appendAttrs(h.attrs, attrs), level: h.level}
}

func (h *CloudClientHandler) WithGroup(_ string) slog.Handler {
	return h
}

func (h *CloudClientHandler) Flush() error {
	return h.logger.Flush()
}
