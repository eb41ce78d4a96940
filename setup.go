package chatroom

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"cloud.google.com/go/logging"
	"github.com/klipach/chatroom/auth"
	"github.com/klipach/chatroom/config"
	"github.com/klipach/chatroom/log"
	"github.com/klipach/chatroom/store"
)

const logID = "chat"

// Setup wires the server described by the environment.
func Setup(ctx context.Context) (*Server, error) {
	cfg, err := config.Load(ctx)
	if err != nil {
		return nil, err
	}
	return SetupWithConfig(ctx, cfg)
}

func SetupWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	logger, flush, err := newLogger(ctx, cfg)
	if err != nil {
		return nil, err
	}
	st, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		st.Close()
		return nil, err
	}

	logger.Info("chat configured",
		slog.String("store", cfg.StoreBackend),
		slog.String("auth", cfg.AuthMode),
		slog.String("project", cfg.ProjectID),
	)
	s := NewServer(st, verifier, logger, WithProjectID(cfg.ProjectID))
	s.onClose = flush
	return s, nil
}

func newLogger(ctx context.Context, cfg *config.Config) (*slog.Logger, func() error, error) {
	level := log.ParseLevel(cfg.LogLevel)
	if cfg.LogSink != config.SinkCloud {
		return slog.New(log.NewCloudLoggingHandlerTo(os.Stdout, level)), nil, nil
	}
	client, err := logging.NewClient(ctx, cfg.ProjectID)
	if err != nil {
		return nil, nil, fmt.Errorf("creating logging client: %w", err)
	}
	return slog.New(log.NewCloudClientHandler(client, logID, level)), client.Close, nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, error) {
	switch cfg.StoreBackend {
	case config.BackendFirestore:
		return store.OpenFirestore(ctx, cfg.ProjectID, logger)
	case config.BackendPostgres:
		return store.OpenPostgres(ctx, cfg.DatabaseURL, logger)
	case config.BackendBadger:
		return store.OpenBadger(cfg.BadgerPath, logger)
	case config.BackendMemory:
		return store.NewMemory(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}

func newVerifier(ctx context.Context, cfg *config.Config) (auth.Verifier, error) {
	if cfg.AuthMode == config.AuthDev {
		return auth.NewDevVerifier(cfg.DevTokenSecret)
	}
	return auth.NewFirebaseVerifier(ctx, cfg.ProjectID)
}
