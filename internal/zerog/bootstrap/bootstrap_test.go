package bootstrap

import (
	"context"
	"testing"

	"github.com/tiptapinc/zerog-go/pkg/config"
)

func TestOpenStore_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()

	store, err := OpenStore(context.Background(), cfg)
	if err != nil {
		t.Fatalf("OpenStore: %v", err)
	}
	defer store.Close()
}

func TestOpenStore_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Datastore.Backend = "bogus"

	if _, err := OpenStore(context.Background(), cfg); err == nil {
		t.Fatal("expected an error for an unknown datastore backend")
	}
}

func TestOpenQueue_MemoryBackend(t *testing.T) {
	cfg := config.DefaultConfig()

	que, err := OpenQueue(cfg)
	if err != nil {
		t.Fatalf("OpenQueue: %v", err)
	}
	defer que.Close()
}

func TestOpenQueue_UnknownBackend(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Queue.Backend = "bogus"

	if _, err := OpenQueue(cfg); err == nil {
		t.Fatal("expected an error for an unknown queue backend")
	}
}

func TestNewRegistry_RegistersExampleJobTypes(t *testing.T) {
	r := NewRegistry()
	store, _ := OpenStore(context.Background(), config.DefaultConfig())
	defer store.Close()
	que, _ := OpenQueue(config.DefaultConfig())
	defer que.Close()

	j, err := r.MakeJob([]byte(`{"jobType":"sleep","seconds":1}`), store, que, "")
	if err != nil {
		t.Fatalf("MakeJob(sleep): %v", err)
	}
	if j == nil {
		t.Fatal("expected sleep job type to be registered")
	}

	j, err = r.MakeJob([]byte(`{"jobType":"flaky","failCount":1}`), store, que, "")
	if err != nil {
		t.Fatalf("MakeJob(flaky): %v", err)
	}
	if j == nil {
		t.Fatal("expected flaky job type to be registered")
	}
}
