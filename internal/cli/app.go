package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-multierror"

	"github.com/PabloGalante/farum-studio/internal/adapters/llm"
	"github.com/PabloGalante/farum-studio/internal/adapters/storage/file"
	firestorestore "github.com/PabloGalante/farum-studio/internal/adapters/storage/firestore"
	"github.com/PabloGalante/farum-studio/internal/adapters/storage/memory"
	"github.com/PabloGalante/farum-studio/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/farum-studio/internal/app/account"
	"github.com/PabloGalante/farum-studio/internal/app/workspace"
	"github.com/PabloGalante/farum-studio/internal/config"
	"github.com/PabloGalante/farum-studio/internal/domain"
	"github.com/PabloGalante/farum-studio/internal/observability"
)

// app is the wired process: storage, upstream and the services on top.
type app struct {
	cfg        *config.Config
	kv         domain.KVStore
	gen        domain.Generator
	creds      *account.Credentials
	users      *account.Users
	workspaces *workspace.Registry
	closers    []io.Closer
}

func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	kv, err := a.openStorage(ctx)
	if err != nil {
		return nil, err
	}
	a.kv = kv

	log := observability.Logger()
	if cfg.UseMockLLM {
		log.Info("using mock LLM client")
		a.gen = llm.NewMockLLM()
	} else {
		log.Info("using Gemini client", "model", cfg.ModelName, "vertex", cfg.Mode == config.ModeGCP)
		a.gen = llm.NewGeminiClient(llm.GeminiConfig{
			ChatModel:   cfg.ModelName,
			ImageModel:  cfg.ImageModel,
			VideoModel:  cfg.VideoModel,
			SpeechModel: cfg.SpeechModel,
			Voice:       cfg.Voice,
			Vertex:      cfg.Mode == config.ModeGCP,
			Project:     cfg.GCPProjectID,
			Location:    cfg.GCPLocation,
		})
	}

	defaultKey := cfg.APIKey
	if cfg.UseMockLLM && defaultKey == "" {
		defaultKey = "mock"
	}
	a.creds = account.NewCredentials(kv, defaultKey)
	a.users = account.NewUsers(kv)
	a.workspaces = workspace.NewRegistry(kv, a.gen, a.creds, cfg.VideoPollInterval)

	return a, nil
}

func (a *app) openStorage(ctx context.Context) (domain.KVStore, error) {
	log := observability.Logger()

	switch a.cfg.StorageBackend {
	case config.StorageFirestore:
		log.Info("using Firestore storage", "project", a.cfg.GCPProjectID)
		fs, err := firestorestore.NewStore(ctx, a.cfg.GCPProjectID)
		if err != nil {
			return nil, fmt.Errorf("error initializing Firestore store: %w", err)
		}
		a.closers = append(a.closers, fs)
		return fs, nil

	case config.StorageSQLite:
		if err := os.MkdirAll(a.cfg.StoragePath, 0o755); err != nil {
			return nil, fmt.Errorf("creating storage dir: %w", err)
		}
		path := filepath.Join(a.cfg.StoragePath, "farum.db")
		log.Info("using SQLite storage", "path", path)
		db, err := sqlite.NewKVStore(path)
		if err != nil {
			return nil, fmt.Errorf("error initializing SQLite store: %w", err)
		}
		a.closers = append(a.closers, db)
		return db, nil

	case config.StorageFile:
		log.Info("using file storage", "path", a.cfg.StoragePath)
		fkv, err := file.NewKVStore(a.cfg.StoragePath)
		if err != nil {
			return nil, fmt.Errorf("error initializing file store: %w", err)
		}
		return fkv, nil

	default:
		log.Info("using in-memory storage")
		return memory.NewKVStore(), nil
	}
}

// Close releases every backend and reports all failures together.
func (a *app) Close() error {
	var result *multierror.Error
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
