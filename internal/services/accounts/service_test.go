package accounts

import (
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/linuxlewis/claude-usage/internal/vault"
)

// memBackend is an in-memory vault backend for tests.
type memBackend struct {
	mu   sync.Mutex
	data map[string]string
}

func newMemBackend() *memBackend {
	return &memBackend{data: make(map[string]string)}
}

func (b *memBackend) Get(key string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.data[key]
	if !ok {
		return "", vault.ErrNotFound
	}
	return v, nil
}

func (b *memBackend) Set(key, value string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.data[key] = value
	return nil
}

func (b *memBackend) Delete(key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.data[key]; !ok {
		return vault.ErrNotFound
	}
	delete(b.data, key)
	return nil
}

type fixture struct {
	service *Service
	vault   *vault.Vault
	secure  *memBackend
	meta    *memBackend
	path    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	secure := newMemBackend()
	meta := newMemBackend()
	v := vault.New(secure, meta)
	path := filepath.Join(t.TempDir(), "accounts.json")

	svc, err := New(path, v)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	return &fixture{service: svc, vault: v, secure: secure, meta: meta, path: path}
}

func TestAddFirstAccountBecomesActive(t *testing.T) {
	f := newFixture(t)

	acc, err := f.service.Add("Work")
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if acc.ID == "" {
		t.Fatal("account id is empty")
	}
	if got := f.service.ActiveAccountID(); got != acc.ID {
		t.Errorf("active = %q, want %q", got, acc.ID)
	}

	second, err := f.service.Add("Personal")
	if err != nil {
		t.Fatalf("add second: %v", err)
	}
	if got := f.service.ActiveAccountID(); got != acc.ID {
		t.Errorf("active changed to %q after second add, want %q", got, second.ID)
	}
}

func TestRemoveActiveReselectsFirstRemaining(t *testing.T) {
	f := newFixture(t)
	a, _ := f.service.Add("A")
	b, _ := f.service.Add("B")

	if err := f.service.Remove(a.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := f.service.ActiveAccountID(); got != b.ID {
		t.Errorf("active = %q, want %q", got, b.ID)
	}

	if err := f.service.Remove(b.ID); err != nil {
		t.Fatalf("remove last: %v", err)
	}
	if got := f.service.ActiveAccountID(); got != "" {
		t.Errorf("active = %q after removing all accounts, want empty", got)
	}
}

func TestRemoveCascadesVaultDeletion(t *testing.T) {
	f := newFixture(t)
	acc, _ := f.service.Add("A")
	f.service.SaveSessionKey("sk-secret", acc.ID)
	f.service.SaveOrgID("org-1", acc.ID)

	if err := f.service.Remove(acc.ID); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if _, ok := f.vault.Read(acc.ID, vault.FieldSessionKey); ok {
		t.Error("session key survived account removal")
	}
	if _, ok := f.vault.Read(acc.ID, vault.FieldOrgID); ok {
		t.Error("org id survived account removal")
	}
}

func TestSetActiveUnknownIsNoOp(t *testing.T) {
	f := newFixture(t)
	acc, _ := f.service.Add("A")

	if err := f.service.SetActive("no-such-id"); err != nil {
		t.Fatalf("SetActive returned %v for unknown id", err)
	}
	if got := f.service.ActiveAccountID(); got != acc.ID {
		t.Errorf("active = %q, want unchanged %q", got, acc.ID)
	}
}

func TestSetActivePersistsBeforeObservable(t *testing.T) {
	f := newFixture(t)
	f.service.Add("A")
	b, _ := f.service.Add("B")

	if err := f.service.SetActive(b.ID); err != nil {
		t.Fatalf("SetActive: %v", err)
	}

	// The persisted file must agree with the observable field.
	data, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("read accounts file: %v", err)
	}
	if !strings.Contains(string(data), b.ID) {
		t.Error("persisted file missing new active id")
	}
	if got := f.service.ActiveAccountID(); got != b.ID {
		t.Errorf("active = %q, want %q", got, b.ID)
	}
}

func TestRename(t *testing.T) {
	f := newFixture(t)
	acc, _ := f.service.Add("Old")

	if err := f.service.Rename(acc.ID, "New"); err != nil {
		t.Fatalf("rename: %v", err)
	}
	all := f.service.Accounts()
	if len(all) != 1 || all[0].Label != "New" {
		t.Errorf("accounts = %+v, want one account labelled New", all)
	}
}

func TestCredentialsPreferMemoryThenVault(t *testing.T) {
	f := newFixture(t)
	acc, _ := f.service.Add("A")

	// Nothing stored yet.
	if got := f.service.SessionKey(acc.ID); got != "" {
		t.Errorf("SessionKey = %q, want empty", got)
	}

	// Vault-only value (simulates a fresh process before any save).
	if err := f.vault.Save(acc.ID, vault.FieldSessionKey, "sk-vault"); err != nil {
		t.Fatal(err)
	}
	if got := f.service.SessionKey(acc.ID); got != "sk-vault" {
		t.Errorf("SessionKey = %q, want vault fallback sk-vault", got)
	}

	// In-memory copy wins once set.
	f.service.SaveSessionKey("sk-memory", acc.ID)
	if got := f.service.SessionKey(acc.ID); got != "sk-memory" {
		t.Errorf("SessionKey = %q, want sk-memory", got)
	}
}

func TestMetadataFileHoldsNoSecrets(t *testing.T) {
	f := newFixture(t)
	acc, _ := f.service.Add("A")
	f.service.SaveSessionKey("sk-super-secret", acc.ID)
	f.service.SaveOrgID("org-1", acc.ID)

	data, err := os.ReadFile(f.path)
	if err != nil {
		t.Fatalf("read accounts file: %v", err)
	}
	if strings.Contains(string(data), "sk-super-secret") {
		t.Error("session key leaked into metadata file")
	}
	if !strings.Contains(string(data), "org-1") {
		t.Error("org id missing from metadata file")
	}
}

func TestPersistenceRoundTrip(t *testing.T) {
	f := newFixture(t)
	a, _ := f.service.Add("A")
	b, _ := f.service.Add("B")
	f.service.SaveSessionKey("sk-a", a.ID)
	f.service.SaveOrgID("org-a", a.ID)
	if err := f.service.SetActive(b.ID); err != nil {
		t.Fatal(err)
	}
	_ = f.service.Close()

	reopened, err := New(f.path, f.vault)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = reopened.Close() }()

	if got := reopened.Count(); got != 2 {
		t.Fatalf("count = %d, want 2", got)
	}
	if got := reopened.ActiveAccountID(); got != b.ID {
		t.Errorf("active = %q, want %q", got, b.ID)
	}
	if got := reopened.SessionKey(a.ID); got != "sk-a" {
		t.Errorf("SessionKey after reload = %q, want sk-a", got)
	}
}

func TestLegacyMigration(t *testing.T) {
	secure := newMemBackend()
	meta := newMemBackend()
	v := vault.New(secure, meta)

	// Legacy single-account install: unscoped vault keys, no accounts file.
	if err := v.Save("", vault.FieldSessionKey, "sk-legacy"); err != nil {
		t.Fatal(err)
	}
	if err := v.Save("", vault.FieldOrgID, "org-legacy"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "accounts.json")
	svc, err := New(path, v)
	if err != nil {
		t.Fatalf("create service: %v", err)
	}
	defer func() { _ = svc.Close() }()

	all := svc.Accounts()
	if len(all) != 1 {
		t.Fatalf("count = %d, want 1 migrated account", len(all))
	}
	acc := all[0]
	if acc.Label != "Account 1" {
		t.Errorf("label = %q, want Account 1", acc.Label)
	}
	if svc.ActiveAccountID() != acc.ID {
		t.Error("migrated account is not active")
	}
	if got := svc.SessionKey(acc.ID); got != "sk-legacy" {
		t.Errorf("SessionKey = %q, want sk-legacy", got)
	}
	if got := svc.OrgID(acc.ID); got != "org-legacy" {
		t.Errorf("OrgID = %q, want org-legacy", got)
	}

	// Legacy unscoped keys are gone.
	if _, ok := v.Read("", vault.FieldSessionKey); ok {
		t.Error("legacy session key not deleted")
	}
	if _, ok := v.Read("", vault.FieldOrgID); ok {
		t.Error("legacy org id not deleted")
	}
}

func TestMigrationIdempotent(t *testing.T) {
	secure := newMemBackend()
	meta := newMemBackend()
	v := vault.New(secure, meta)
	if err := v.Save("", vault.FieldSessionKey, "sk-legacy"); err != nil {
		t.Fatal(err)
	}

	path := filepath.Join(t.TempDir(), "accounts.json")
	svc, err := New(path, v)
	if err != nil {
		t.Fatal(err)
	}
	first := svc.Accounts()
	_ = svc.Close()

	// A second startup with accounts already present must not migrate again.
	svc2, err := New(path, v)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = svc2.Close() }()

	second := svc2.Accounts()
	if len(second) != 1 {
		t.Fatalf("count after second startup = %d, want 1", len(second))
	}
	if second[0].ID != first[0].ID {
		t.Error("migration ran twice and replaced the account")
	}
}
