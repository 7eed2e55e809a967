package wallet

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/ethereum/go-ethereum/common"
)

func TestFileRegistryRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")

	r, err := NewFileRegistry(path)
	if err != nil {
		t.Fatalf("NewFileRegistry: %v", err)
	}
	if users := r.Users(); len(users) != 0 {
		t.Fatalf("fresh registry has %d users, want 0", len(users))
	}

	alice := common.HexToAddress("0x1111111111111111111111111111111111111111")
	bob := common.HexToAddress("0x2222222222222222222222222222222222222222")
	if err := r.Register("alice", alice); err != nil {
		t.Fatalf("Register alice: %v", err)
	}
	if err := r.Register("bob", bob); err != nil {
		t.Fatalf("Register bob: %v", err)
	}

	reloaded, err := NewFileRegistry(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	addr, err := reloaded.Address("alice")
	if err != nil {
		t.Fatalf("Address: %v", err)
	}
	if addr != alice {
		t.Fatalf("alice = %s, want %s", addr.Hex(), alice.Hex())
	}
	users := reloaded.Users()
	if len(users) != 2 || users[0] != "alice" || users[1] != "bob" {
		t.Fatalf("users = %v, want [alice bob]", users)
	}
}

func TestFileRegistryUnknownUser(t *testing.T) {
	r, err := NewFileRegistry(filepath.Join(t.TempDir(), "wallets.json"))
	if err != nil {
		t.Fatalf("NewFileRegistry: %v", err)
	}
	if _, err := r.Address("nobody"); err == nil {
		t.Fatal("expected error for unregistered user")
	}
}

func TestFileRegistryRejectsBadAddress(t *testing.T) {
	path := filepath.Join(t.TempDir(), "wallets.json")
	bad := `{"wallets":{"alice":{"address":"not-an-address"}}}`
	if err := os.WriteFile(path, []byte(bad), 0o644); err != nil {
		t.Fatalf("seed file: %v", err)
	}
	if _, err := NewFileRegistry(path); err == nil {
		t.Fatal("expected error for malformed address")
	}
}
