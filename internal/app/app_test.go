package app

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/InfiniteCod3/chatplugins/internal/assistant"
	"github.com/InfiniteCod3/chatplugins/internal/config"
	"github.com/InfiniteCod3/chatplugins/internal/kv"
	"github.com/InfiniteCod3/chatplugins/internal/model"
	"github.com/InfiniteCod3/chatplugins/pkg/logger"
)

func testConfig(t *testing.T, backend string) *config.Config {
	t.Helper()
	cfg := config.Load()
	cfg.StoreBackend = backend
	cfg.StorePath = filepath.Join(t.TempDir(), "state.db")
	cfg.AIAPIKey = ""
	cfg.NATSURL = ""
	return cfg
}

func TestNew_PersistsAcrossRestarts(t *testing.T) {
	for _, backend := range []string{"bolt", "sqlite"} {
		t.Run(backend, func(t *testing.T) {
			ctx := context.Background()
			cfg := testConfig(t, backend)

			a, err := New(ctx, cfg, logger.NewNop())
			if err != nil {
				t.Fatalf("New failed: %v", err)
			}
			if err := a.Load(ctx); err != nil {
				t.Fatal(err)
			}
			a.Store.Append("42", model.RoleUser, "remember me")
			if err := a.Close(ctx); err != nil {
				t.Fatalf("Close failed: %v", err)
			}

			b, err := New(ctx, cfg, logger.NewNop())
			if err != nil {
				t.Fatal(err)
			}
			defer b.Close(ctx)
			if err := b.Load(ctx); err != nil {
				t.Fatal(err)
			}
			got := b.Store.Get("42")
			if len(got) != 1 || got[0].Content != "remember me" {
				t.Fatalf("history not persisted: %+v", got)
			}
		})
	}
}

func TestNew_WithoutAIKey(t *testing.T) {
	ctx := context.Background()
	a, err := New(ctx, testConfig(t, "memory"), logger.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer a.Close(ctx)

	if a.Assistant.Configured() {
		t.Fatal("assistant should be unconfigured without a key")
	}
	if _, err := a.Assistant.Ask(ctx, "42", "hi"); !errors.Is(err, assistant.ErrConfigurationMissing) {
		t.Fatalf("expected ErrConfigurationMissing, got %v", err)
	}
}

func TestNew_RejectsBadRules(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.QuietHours = "late"
	if _, err := New(context.Background(), cfg, logger.NewNop()); err == nil {
		t.Fatal("expected error for malformed quiet hours")
	}
}

func TestNew_RejectsUnknownProvider(t *testing.T) {
	cfg := testConfig(t, "memory")
	cfg.AIAPIKey = "k"
	cfg.AIProvider = "carrier-pigeon"
	if _, err := New(context.Background(), cfg, logger.NewNop()); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestNew_WithoutHistoryNeverOpensBackend(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "bolt")
	cfg.StorePath = filepath.Join(t.TempDir(), "absent", "state.db")

	a, err := New(ctx, cfg, logger.NewNop(), WithoutHistory())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if a.Store != nil || a.Assistant != nil {
		t.Fatal("expected no store or assistant")
	}
	if a.Exporter == nil || a.Fetcher == nil {
		t.Fatal("expected the export path to be wired")
	}
	if err := a.Load(ctx); err != nil {
		t.Fatalf("Load should be a no-op, got %v", err)
	}
	if err := a.Close(ctx); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(cfg.StorePath)); !os.IsNotExist(err) {
		t.Fatalf("backend directory should not exist, stat err = %v", err)
	}
}

func TestNew_WithoutHistoryRunsBesideHeldStore(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t, "bolt")

	held, err := kv.OpenBolt(cfg.StorePath)
	if err != nil {
		t.Fatal(err)
	}
	defer held.Close()

	a, err := New(ctx, cfg, logger.NewNop(), WithoutHistory())
	if err != nil {
		t.Fatalf("export path should not contend for the store: %v", err)
	}
	a.Close(ctx)
}
