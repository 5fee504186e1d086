// internal/state/store_test.go
package state

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/user/stashbot/internal/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "stash.json"))
}

func TestCreateAndList(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	first, err := store.Create(ctx, owner, "Receipts")
	if err != nil {
		t.Fatal(err)
	}
	if first.ID == "" {
		t.Error("expected non-empty category ID")
	}
	second, err := store.Create(ctx, owner, "Ideas")
	if err != nil {
		t.Fatal(err)
	}

	cats, err := store.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 2 {
		t.Fatalf("expected 2 categories, got %d", len(cats))
	}
	// Ordered by creation
	if cats[0].ID != first.ID || cats[1].ID != second.ID {
		t.Error("expected categories ordered by creation time")
	}
}

func TestCreateDuplicateName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	if _, err := store.Create(ctx, owner, "Receipts"); err != nil {
		t.Fatal(err)
	}
	_, err := store.Create(ctx, owner, "Receipts")
	if !errors.Is(err, types.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	cats, err := store.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 {
		t.Errorf("expected category count unchanged at 1, got %d", len(cats))
	}
}

func TestCreateNamesAreCaseSensitiveAndPerOwner(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "owner-1", "Work"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, "owner-1", "work"); err != nil {
		t.Errorf("case-sensitive names should not collide: %v", err)
	}
	if _, err := store.Create(ctx, "owner-2", "Work"); err != nil {
		t.Errorf("same name under a different owner should not collide: %v", err)
	}
}

func TestCreateInvalidName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "owner-1", ""); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for empty name, got %v", err)
	}

	long := make([]byte, MaxNameLength+1)
	for i := range long {
		long[i] = 'x'
	}
	if _, err := store.Create(ctx, "owner-1", string(long)); !errors.Is(err, types.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput for oversized name, got %v", err)
	}
}

func TestRename(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	cat, err := store.Create(ctx, owner, "Work")
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Rename(ctx, owner, cat.ID, "Job"); err != nil {
		t.Fatal(err)
	}

	got, err := store.Get(ctx, owner, cat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Job" {
		t.Errorf("expected renamed to Job, got %s", got.Name)
	}
	if got.ID != cat.ID {
		t.Error("rename must preserve identity")
	}
}

func TestRenameDuplicateKeepsOriginal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	work, err := store.Create(ctx, owner, "Work")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, owner, "Job"); err != nil {
		t.Fatal(err)
	}

	err = store.Rename(ctx, owner, work.ID, "Job")
	if !errors.Is(err, types.ErrDuplicateName) {
		t.Fatalf("expected ErrDuplicateName, got %v", err)
	}

	got, err := store.Get(ctx, owner, work.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Name != "Work" {
		t.Errorf("expected original name Work preserved, got %s", got.Name)
	}
}

func TestRenameToOwnNameAllowed(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	cat, err := store.Create(ctx, owner, "Work")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.Rename(ctx, owner, cat.ID, "Work"); err != nil {
		t.Errorf("renaming a category to its current name should succeed: %v", err)
	}
}

func TestDeleteCascades(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	cat, err := store.Create(ctx, owner, "Receipts")
	if err != nil {
		t.Fatal(err)
	}
	other, err := store.Create(ctx, owner, "Ideas")
	if err != nil {
		t.Fatal(err)
	}

	for i := 0; i < 3; i++ {
		if _, err := store.Add(ctx, owner, cat.ID, 100, types.MessageID(200+i), types.ContentPhoto); err != nil {
			t.Fatal(err)
		}
	}
	kept, err := store.Add(ctx, owner, other.ID, 100, 999, types.ContentText)
	if err != nil {
		t.Fatal(err)
	}

	if err := store.Delete(ctx, owner, cat.ID); err != nil {
		t.Fatal(err)
	}

	if _, err := store.ListReferences(ctx, owner, cat.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound listing a deleted category, got %v", err)
	}

	// The other category's references are untouched.
	refs, err := store.ListReferences(ctx, owner, other.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ID != kept.ID {
		t.Error("cascade must only remove the deleted category's references")
	}
}

func TestCrossOwnerAccessIsNotFound(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	cat, err := store.Create(ctx, "owner-1", "Secrets")
	if err != nil {
		t.Fatal(err)
	}

	if _, err := store.Get(ctx, "owner-2", cat.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for cross-owner get, got %v", err)
	}
	if err := store.Rename(ctx, "owner-2", cat.ID, "Mine"); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for cross-owner rename, got %v", err)
	}
	if err := store.Delete(ctx, "owner-2", cat.ID); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for cross-owner delete, got %v", err)
	}
	if _, err := store.Add(ctx, "owner-2", cat.ID, 1, 2, types.ContentText); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound for cross-owner add, got %v", err)
	}
}

func TestAddToMissingCategory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Add(ctx, "owner-1", "no-such-category", 1, 2, types.ContentText)
	if !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestReferenceOrderingAndDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	cat, err := store.Create(ctx, owner, "Receipts")
	if err != nil {
		t.Fatal(err)
	}

	var ids []types.ReferenceID
	for i := 0; i < 3; i++ {
		ref, err := store.Add(ctx, owner, cat.ID, 100, types.MessageID(i), types.ContentDocument)
		if err != nil {
			t.Fatal(err)
		}
		ids = append(ids, ref.ID)
	}

	refs, err := store.ListReferences(ctx, owner, cat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 references, got %d", len(refs))
	}
	for i, ref := range refs {
		if ref.ID != ids[i] {
			t.Errorf("expected filing-time order at %d", i)
		}
	}

	if err := store.DeleteReference(ctx, owner, ids[1]); err != nil {
		t.Fatal(err)
	}
	if err := store.DeleteReference(ctx, owner, ids[1]); !errors.Is(err, types.ErrNotFound) {
		t.Errorf("expected ErrNotFound deleting twice, got %v", err)
	}

	refs, err = store.ListReferences(ctx, owner, cat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 2 {
		t.Errorf("expected 2 references after delete, got %d", len(refs))
	}
}

func TestConcurrentCreateSameName(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	const workers = 8
	var wg sync.WaitGroup
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = store.Create(ctx, owner, "Ideas")
		}(i)
	}
	wg.Wait()

	var ok, dup int
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, types.ErrDuplicateName):
			dup++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if ok != 1 {
		t.Errorf("expected exactly one successful create, got %d", ok)
	}
	if dup != workers-1 {
		t.Errorf("expected %d duplicate errors, got %d", workers-1, dup)
	}

	cats, err := store.List(ctx, owner)
	if err != nil {
		t.Fatal(err)
	}
	if len(cats) != 1 {
		t.Errorf("expected no duplicate rows, got %d", len(cats))
	}
}

func TestOwners(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.Create(ctx, "bob", "A"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, "alice", "B"); err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(ctx, "alice", "C"); err != nil {
		t.Fatal(err)
	}

	owners, err := store.Owners(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(owners) != 2 || owners[0] != "alice" || owners[1] != "bob" {
		t.Errorf("expected sorted [alice bob], got %v", owners)
	}
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stash.json")
	ctx := context.Background()
	owner := types.OwnerID("owner-1")

	store := NewStore(path)
	cat, err := store.Create(ctx, owner, "Receipts")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Add(ctx, owner, cat.ID, 5, 6, types.ContentVideo); err != nil {
		t.Fatal(err)
	}

	reopened := NewStore(path)
	refs, err := reopened.ListReferences(ctx, owner, cat.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(refs) != 1 || refs[0].ChatID != 5 || refs[0].MessageID != 6 {
		t.Error("expected reference to survive reopen")
	}
}
