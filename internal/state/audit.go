// internal/state/audit.go
package state

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/user/stashbot/internal/types"
)

// Audit actions recorded by the router after successful mutations.
const (
	AuditCategoryCreated  = "category_created"
	AuditCategoryRenamed  = "category_renamed"
	AuditCategoryDeleted  = "category_deleted"
	AuditReferenceFiled   = "reference_filed"
	AuditReferenceDeleted = "reference_deleted"
)

// AuditStore is a JSONL-backed append-only log of mutations.
// Entries are stored per-owner in owners/<owner>/audit.jsonl.
type AuditStore struct {
	root  string
	mu    sync.Mutex
	locks map[types.OwnerID]*sync.Mutex
}

// NewAuditStore creates a new file-backed AuditStore rooted at the given directory.
func NewAuditStore(root string) *AuditStore {
	return &AuditStore{
		root:  root,
		locks: make(map[types.OwnerID]*sync.Mutex),
	}
}

// getLock returns the per-owner mutex, creating one if it doesn't exist.
func (a *AuditStore) getLock(owner types.OwnerID) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	if lock, ok := a.locks[owner]; ok {
		return lock
	}
	lock := &sync.Mutex{}
	a.locks[owner] = lock
	return lock
}

func (a *AuditStore) auditPath(owner types.OwnerID) string {
	return filepath.Join(a.root, "owners", string(owner), "audit.jsonl")
}

// count reads the audit file and counts lines. Caller must hold the owner lock.
func (a *AuditStore) count(owner types.OwnerID) (int64, error) {
	f, err := os.Open(a.auditPath(owner))
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	var count int64
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		count++
	}
	if err := scanner.Err(); err != nil {
		return 0, fmt.Errorf("scan audit file: %w", err)
	}
	return count, nil
}

// Append adds an entry to the owner's audit log with an auto-incremented
// sequence number.
func (a *AuditStore) Append(_ context.Context, entry *types.AuditEntry) error {
	lock := a.getLock(entry.Owner)
	lock.Lock()
	defer lock.Unlock()

	dir := filepath.Dir(a.auditPath(entry.Owner))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create owner dir: %w", err)
	}

	existing, err := a.count(entry.Owner)
	if err != nil {
		return err
	}
	entry.Seq = existing + 1

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}

	f, err := os.OpenFile(a.auditPath(entry.Owner), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	data = append(data, '\n')
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("write audit entry: %w", err)
	}

	return nil
}

// Tail returns the last N entries for the given owner.
func (a *AuditStore) Tail(_ context.Context, owner types.OwnerID, limit int) ([]*types.AuditEntry, error) {
	lock := a.getLock(owner)
	lock.Lock()
	defer lock.Unlock()

	f, err := os.Open(a.auditPath(owner))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	defer f.Close()

	var entries []*types.AuditEntry
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var entry types.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, fmt.Errorf("unmarshal audit entry: %w", err)
		}
		entries = append(entries, &entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan audit file: %w", err)
	}

	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}

	return entries, nil
}

// Count returns the number of audit entries for the given owner.
func (a *AuditStore) Count(_ context.Context, owner types.OwnerID) (int64, error) {
	lock := a.getLock(owner)
	lock.Lock()
	defer lock.Unlock()

	return a.count(owner)
}
