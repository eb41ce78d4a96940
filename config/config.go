// Package config loads the service settings from the environment.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"cloud.google.com/go/compute/metadata"
	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendFirestore = "firestore"
	BackendPostgres  = "postgres"
	BackendBadger    = "badger"
	BackendMemory    = "memory"

	AuthFirebase = "firebase"
	AuthDev      = "dev"

	SinkStdout = "stdout"
	SinkCloud  = "cloud"
)

var ErrNoProjectID = errors.New("GOOGLE_CLOUD_PROJECT is not set and metadata server is unavailable")

type Config struct {
	StoreBackend   string `env:"STORE_BACKEND,default=firestore" validate:"oneof=firestore postgres badger memory"`
	ProjectID      string `env:"GOOGLE_CLOUD_PROJECT"`
	DatabaseURL    string `env:"DATABASE_URL" validate:"required_if=StoreBackend postgres"`
	BadgerPath     string `env:"BADGER_PATH,default=./data/badger" validate:"required_if=StoreBackend badger"`
	AuthMode       string `env:"AUTH_MODE,default=firebase" validate:"oneof=firebase dev"`
	DevTokenSecret string `env:"DEV_TOKEN_SECRET" validate:"required_if=AuthMode dev"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`
	LogSink        string `env:"LOG_SINK,default=stdout" validate:"oneof=stdout cloud"`
	Port           string `env:"PORT,default=8082" validate:"required,numeric"`
}

// NeedsProject reports whether a Google Cloud project id is required.
func (c Config) NeedsProject() bool {
	return c.StoreBackend == BackendFirestore || c.AuthMode == AuthFirebase || c.LogSink == SinkCloud
}

// Load reads an optional .env file, then the process environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}
	es, err := env.EnvironToEnvSet(os.Environ())
	if err != nil {
		return nil, err
	}
	return FromEnvSet(ctx, es)
}

// FromEnvSet builds and validates a Config from es.
func FromEnvSet(ctx context.Context, es env.EnvSet) (*Config, error) {
	var cfg Config
	if err := env.Unmarshal(es, &cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("config error: %w", err)
	}
	if cfg.ProjectID == "" && cfg.NeedsProject() {
		projectID, err := discoverProjectID(ctx)
		if err != nil {
			return nil, err
		}
		cfg.ProjectID = projectID
	}
	return &cfg, nil
}

func discoverProjectID(ctx context.Context) (string, error) {
	if !metadata.OnGCE() {
		return "", ErrNoProjectID
	}
	projectID, err := metadata.ProjectIDWithContext(ctx)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNoProjectID, err)
	}
	return projectID, nil
}
