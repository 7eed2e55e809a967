// Package wallet maps user identifiers to on-chain addresses. No key
// material is stored here; signing lives behind the exec.Sender capability.
package wallet

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Registry resolves the wallet address registered for a user.
type Registry interface {
	Address(userID string) (common.Address, error)
	Users() []string
}

type walletRecord struct {
	Address   string `json:"address"`
	UpdatedAt string `json:"updated_at"`
}

type walletFile struct {
	Wallets map[string]walletRecord `json:"wallets"`
}

// FileRegistry persists the user-to-address mapping as a JSON file. Writes go
// through a temp file and rename so a crash never leaves a torn file.
type FileRegistry struct {
	path string

	mu      sync.RWMutex
	wallets map[string]common.Address
}

// NewFileRegistry loads the registry at path, starting empty when the file
// does not exist yet.
func NewFileRegistry(path string) (*FileRegistry, error) {
	r := &FileRegistry{path: path, wallets: make(map[string]common.Address)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return r, nil
		}
		return nil, fmt.Errorf("read wallet file: %w", err)
	}

	var file walletFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse wallet file: %w", err)
	}
	for userID, rec := range file.Wallets {
		if !common.IsHexAddress(rec.Address) {
			return nil, fmt.Errorf("wallet file: invalid address %q for user %s", rec.Address, userID)
		}
		r.wallets[userID] = common.HexToAddress(rec.Address)
	}
	return r, nil
}

func (r *FileRegistry) Address(userID string) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	addr, ok := r.wallets[userID]
	if !ok {
		return common.Address{}, fmt.Errorf("no wallet registered for user %s", userID)
	}
	return addr, nil
}

// Users returns registered user IDs in sorted order.
func (r *FileRegistry) Users() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	users := make([]string, 0, len(r.wallets))
	for userID := range r.wallets {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// Register stores the address for a user and persists the file.
func (r *FileRegistry) Register(userID string, addr common.Address) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.wallets[userID] = addr
	return r.save()
}

func (r *FileRegistry) save() error {
	dir := filepath.Dir(r.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create wallet dir: %w", err)
		}
	}

	file := walletFile{Wallets: make(map[string]walletRecord, len(r.wallets))}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	for userID, addr := range r.wallets {
		file.Wallets[userID] = walletRecord{Address: addr.Hex(), UpdatedAt: now}
	}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal wallet file: %w", err)
	}

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write wallet tmp: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		return fmt.Errorf("rename wallet file: %w", err)
	}
	return nil
}
