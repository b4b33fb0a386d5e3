package vault

import (
	"errors"
	"sync"
	"testing"
)

// memBackend is an in-memory Backend for tests.
type memBackend struct {
	mu     sync.Mutex
	data   map[string]string
	gets   int
	sets   int
	failed bool
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (b *memBackend) Get(key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.gets++
	v, ok := b.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (b *memBackend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sets++
	if b.failed {
		return errors.New("backend unavailable")
	}
	b.data[key] = value
	return nil
}

func (b *memBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; !ok {
		return ErrNotFound
	}
	delete(b.data, key)
	return nil
}

func newTestVault() (*Vault, *memBackend, *memBackend) {
	secure := newMemBackend()
	meta := newMemBackend()
	return New(secure, meta), secure, meta
}

func TestSaveThenReadRoundTrip(t *testing.T) {
	v, _, _ := newTestVault()

	if err := v.Save("acc1", FieldSessionKey, "sk-12345"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	got, ok := v.Read("acc1", FieldSessionKey)
	if !ok || got != "sk-12345" {
		t.Errorf("Read = (%q, %v), want (%q, true)", got, ok, "sk-12345")
	}
}

func TestReadServedFromCacheAfterSave(t *testing.T) {
	v, secure, _ := newTestVault()

	if err := v.Save("acc1", FieldSessionKey, "sk-12345"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	before := secure.gets
	for i := 0; i < 5; i++ {
		if _, ok := v.Read("acc1", FieldSessionKey); !ok {
			t.Fatal("read miss after save")
		}
	}
	if secure.gets != before {
		t.Errorf("reads hit the backend %d times, want 0", secure.gets-before)
	}
}

func TestSaveKeepsCacheOnBackendFailure(t *testing.T) {
	v, secure, _ := newTestVault()
	secure.failed = true

	err := v.Save("acc1", FieldSessionKey, "sk-12345")
	if err == nil {
		t.Fatal("expected backend error")
	}

	// The cached value survives the failed persist for the rest of the process.
	got, ok := v.Read("acc1", FieldSessionKey)
	if !ok || got != "sk-12345" {
		t.Errorf("Read after failed save = (%q, %v), want cached value", got, ok)
	}
}

func TestOrgIDRoutedToMetaBackend(t *testing.T) {
	v, secure, meta := newTestVault()

	if err := v.Save("acc1", FieldOrgID, "org-99"); err != nil {
		t.Fatalf("save failed: %v", err)
	}

	if meta.sets != 1 {
		t.Errorf("meta backend sets = %d, want 1", meta.sets)
	}
	if secure.sets != 0 {
		t.Errorf("secure backend sets = %d, want 0", secure.sets)
	}
}

func TestReadPopulatesCacheFromBackend(t *testing.T) {
	v, secure, _ := newTestVault()
	secure.data["acc1-sessionKey"] = "sk-backend"

	got, ok := v.Read("acc1", FieldSessionKey)
	if !ok || got != "sk-backend" {
		t.Fatalf("Read = (%q, %v), want backend value", got, ok)
	}

	before := secure.gets
	v.Read("acc1", FieldSessionKey)
	if secure.gets != before {
		t.Error("second read should be served from cache")
	}
}

func TestDeleteClearsCacheAndBackend(t *testing.T) {
	v, secure, _ := newTestVault()

	if err := v.Save("acc1", FieldSessionKey, "sk-12345"); err != nil {
		t.Fatalf("save failed: %v", err)
	}
	if err := v.Delete("acc1", FieldSessionKey); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, ok := v.Read("acc1", FieldSessionKey); ok {
		t.Error("read succeeded after delete")
	}
	if _, ok := secure.data["acc1-sessionKey"]; ok {
		t.Error("backend still holds deleted key")
	}
}

func TestDeleteMissingKeyIsNoError(t *testing.T) {
	v, _, _ := newTestVault()
	if err := v.Delete("acc1", FieldSessionKey); err != nil {
		t.Errorf("deleting absent key returned %v", err)
	}
}

func TestLegacyUnscopedKeys(t *testing.T) {
	v, secure, _ := newTestVault()
	secure.data[FieldSessionKey] = "sk-legacy"

	got, ok := v.Read("", FieldSessionKey)
	if !ok || got != "sk-legacy" {
		t.Errorf("legacy read = (%q, %v), want (%q, true)", got, ok, "sk-legacy")
	}
}

func TestScopesAreIsolated(t *testing.T) {
	v, _, _ := newTestVault()

	if err := v.Save("acc1", FieldSessionKey, "sk-one"); err != nil {
		t.Fatal(err)
	}
	if err := v.Save("acc2", FieldSessionKey, "sk-two"); err != nil {
		t.Fatal(err)
	}

	if got, _ := v.Read("acc1", FieldSessionKey); got != "sk-one" {
		t.Errorf("acc1 read = %q, want sk-one", got)
	}
	if got, _ := v.Read("acc2", FieldSessionKey); got != "sk-two" {
		t.Errorf("acc2 read = %q, want sk-two", got)
	}
}

func TestAgeFileStoreRoundTrip(t *testing.T) {
	store, err := NewAgeFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := store.Set("acc1-sessionKey", "sk-secret"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := store.Get("acc1-sessionKey")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got != "sk-secret" {
		t.Errorf("got %q, want %q", got, "sk-secret")
	}

	if _, err := store.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("missing key error = %v, want ErrNotFound", err)
	}
}

func TestAgeFileStoreCiphertextOnDisk(t *testing.T) {
	dir := t.TempDir()
	store, err := NewAgeFileStore(dir)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Set("key", "super-secret-value"); err != nil {
		t.Fatalf("set failed: %v", err)
	}

	// Reopen with the persisted identity and decrypt.
	reopened, err := NewAgeFileStore(dir)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	got, err := reopened.Get("key")
	if err != nil || got != "super-secret-value" {
		t.Errorf("reopened Get = (%q, %v)", got, err)
	}
}

func TestFileNameForKeyRejectsTraversal(t *testing.T) {
	for _, key := range []string{"", "..", "a/b", `a\b`, "."} {
		if _, err := fileNameForKey(key); err == nil {
			t.Errorf("fileNameForKey(%q) accepted, want error", key)
		}
	}
}

func TestPlainFileStoreRoundTrip(t *testing.T) {
	store, err := NewPlainFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("open store: %v", err)
	}

	if err := store.Set("acc1-orgId", "org-99"); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	got, err := store.Get("acc1-orgId")
	if err != nil || got != "org-99" {
		t.Errorf("Get = (%q, %v), want (org-99, nil)", got, err)
	}

	if err := store.Delete("acc1-orgId"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := store.Get("acc1-orgId"); !errors.Is(err, ErrNotFound) {
		t.Errorf("deleted key error = %v, want ErrNotFound", err)
	}
}
