package sessionRepo

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"flexify/models"

	"github.com/go-redis/redis/v8"
)

func TestMemorySessionStorageRoundTripAndClear(t *testing.T) {
	ctx := context.Background()
	store := NewMemorySessionStorage()

	want := models.PersistedSession{Token: "t", RefreshToken: "r", User: `{"id":"1"}`, Role: "user"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != want {
		t.Fatalf("Load = %+v, want %+v", got, want)
	}

	store.Set("unrelated", "x")
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, _ = store.Load(ctx)
	if !got.Empty() {
		t.Fatalf("after Clear got %+v, want empty", got)
	}
	if store.Len() != 1 {
		t.Fatalf("Clear removed keys it does not own: len=%d", store.Len())
	}
}

func TestFileSessionStorage(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileSessionStorage(path)

	got, err := store.Load(ctx)
	if err != nil || !got.Empty() {
		t.Fatalf("Load on missing file = %+v, %v", got, err)
	}

	want := models.PersistedSession{Token: "t", RefreshToken: "r", User: `{"id":"1"}`, Role: "provider"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// A second instance over the same file sees the saved set.
	got, err = NewFileSessionStorage(path).Load(ctx)
	if err != nil || got != want {
		t.Fatalf("Load = %+v, %v; want %+v", got, err, want)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("second Clear: %v", err)
	}
	got, _ = store.Load(ctx)
	if !got.Empty() {
		t.Fatalf("after Clear got %+v", got)
	}
}

func TestFileSessionStorageCorrupt(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "session.json")
	if err := os.WriteFile(path, []byte(`{"sf_token":"abc","sf_user":`), 0o600); err != nil {
		t.Fatal(err)
	}
	store := NewFileSessionStorage(path)

	if _, err := store.Load(ctx); !errors.Is(err, ErrCorruptSession) {
		t.Fatalf("Load err = %v, want ErrCorruptSession", err)
	}
	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	got, err := store.Load(ctx)
	if err != nil || !got.Empty() {
		t.Fatalf("Load after Clear = %+v, %v", got, err)
	}
}

func TestFileSessionStorageReadError(t *testing.T) {
	// A directory in place of the file is an I/O failure, not corruption.
	path := t.TempDir()
	_, err := NewFileSessionStorage(path).Load(context.Background())
	if err == nil || errors.Is(err, ErrCorruptSession) {
		t.Fatalf("Load err = %v, want a plain read error", err)
	}
}

// TestRedisSessionStorage needs a Redis server at REDIS_ADDR.
func TestRedisSessionStorage(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
	defer client.Close()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("redis unavailable: %v", err)
	}

	ns := "test-" + strconv.FormatInt(time.Now().UnixNano(), 36)
	store := NewRedisSessionStorage(client, ns)
	other := NewRedisSessionStorage(client, ns+"-other")
	t.Cleanup(func() {
		store.Clear(ctx)
		other.Clear(ctx)
	})

	got, err := store.Load(ctx)
	if err != nil || !got.Empty() {
		t.Fatalf("Load on empty namespace = %+v, %v", got, err)
	}

	want := models.PersistedSession{Token: "t", RefreshToken: "r", User: `{"id":"1"}`, Role: "admin"}
	if err := store.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if got, err = store.Load(ctx); err != nil || got != want {
		t.Fatalf("Load = %+v, %v; want %+v", got, err, want)
	}
	if got, _ = other.Load(ctx); !got.Empty() {
		t.Fatalf("namespaces leaked: %+v", got)
	}

	if err := store.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	n, err := client.Exists(ctx, "session:"+ns+":"+KeyToken, "session:"+ns+":"+KeyUser).Result()
	if err != nil || n != 0 {
		t.Fatalf("keys left after Clear: %d, %v", n, err)
	}
	if got, _ = store.Load(ctx); !got.Empty() {
		t.Fatalf("after Clear got %+v", got)
	}
}
