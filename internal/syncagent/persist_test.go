package syncagent

import (
	"os"
	"path/filepath"
	"testing"

	"orderhub/internal/order/domain/models"
)

func TestFileStoreRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	fs := NewFileStore(dir)
	scope := Scope{Kind: ScopeUser, ID: "alice"}

	orders, err := fs.Load(scope)
	if err != nil || orders != nil {
		t.Fatalf("expected empty load, got %v, %v", orders, err)
	}

	want := []models.Order{order("b", models.StatusReady, true, 4), order("a", models.StatusPending, false, 1)}
	if err := fs.Save(scope, want); err != nil {
		t.Fatalf("Save returned error: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "user-alice.json.tmp")); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}

	got, err := fs.Load(scope)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if len(got) != 2 || got[0].ID != "b" || got[0].Status != models.StatusReady || got[1].PaymentStatus != models.PaymentPending {
		t.Fatalf("unexpected orders: %+v", got)
	}
}

func TestFileStoreRejectsCorruptFile(t *testing.T) {
	dir := t.TempDir()
	fs := NewFileStore(dir)
	scope := Scope{Kind: ScopeOutlet, ID: "o1"}
	if err := os.WriteFile(filepath.Join(dir, "outlet-o1.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := fs.Load(scope); err == nil {
		t.Fatal("expected decode error")
	}
}
