// internal/state/store.go
package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/user/stashbot/internal/types"
)

// MaxNameLength is the longest accepted category name.
const MaxNameLength = 64

// Store is a JSON-file-backed store for categories and message references.
// Both tables live in one document written atomically (temp file + rename),
// so a category delete and its reference cascade land in a single snapshot
// with no observable intermediate state.
type Store struct {
	path string
	mu   sync.RWMutex
}

// document is the on-disk shape of the store.
type document struct {
	Categories []*types.Category         `json:"categories"`
	References []*types.MessageReference `json:"references"`
}

// NewStore creates a file-backed Store at the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the file path used by this store.
func (s *Store) Path() string {
	return s.path
}

// load reads the document from disk. Returns an empty document if the file
// doesn't exist. I/O and decode failures are reported as transient.
func (s *Store) load() (*document, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &document{}, nil
		}
		return nil, fmt.Errorf("%w: read store file: %v", types.ErrUnavailable, err)
	}

	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: unmarshal store file: %v", types.ErrUnavailable, err)
	}
	return &doc, nil
}

// save writes the document to disk using atomic write (temp file + rename).
func (s *Store) save(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: create store dir: %v", types.ErrUnavailable, err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("%w: write temp store file: %v", types.ErrUnavailable, err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename temp store file: %v", types.ErrUnavailable, err)
	}
	return nil
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty category name", types.ErrInvalidInput)
	}
	if len(name) > MaxNameLength {
		return fmt.Errorf("%w: category name exceeds %d characters", types.ErrInvalidInput, MaxNameLength)
	}
	return nil
}

// findCategory returns the category with the given id if it belongs to owner.
// Rows owned by someone else look exactly like missing rows.
func findCategory(doc *document, owner types.OwnerID, id types.CategoryID) *types.Category {
	for _, cat := range doc.Categories {
		if cat.ID == id && cat.Owner == owner {
			return cat
		}
	}
	return nil
}

func nameTaken(doc *document, owner types.OwnerID, name string, exclude types.CategoryID) bool {
	for _, cat := range doc.Categories {
		if cat.Owner == owner && cat.Name == name && cat.ID != exclude {
			return true
		}
	}
	return false
}

// Create adds a category for the owner. Names are case-sensitive and unique
// per owner.
func (s *Store) Create(_ context.Context, owner types.OwnerID, name string) (*types.Category, error) {
	if err := validateName(name); err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	if nameTaken(doc, owner, name, "") {
		return nil, fmt.Errorf("%w: %s", types.ErrDuplicateName, name)
	}

	cat := &types.Category{
		ID:        types.NewCategoryID(),
		Owner:     owner,
		Name:      name,
		CreatedAt: time.Now(),
	}
	doc.Categories = append(doc.Categories, cat)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return cat, nil
}

// Rename changes a category's name in place, preserving its identity.
func (s *Store) Rename(_ context.Context, owner types.OwnerID, id types.CategoryID, newName string) error {
	if err := validateName(newName); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	cat := findCategory(doc, owner, id)
	if cat == nil {
		return fmt.Errorf("%w: category %s", types.ErrNotFound, id)
	}
	if nameTaken(doc, owner, newName, id) {
		return fmt.Errorf("%w: %s", types.ErrDuplicateName, newName)
	}

	cat.Name = newName
	return s.save(doc)
}

// Delete removes a category and cascades to every reference filed under it.
// The cascade is part of the same snapshot write.
func (s *Store) Delete(_ context.Context, owner types.OwnerID, id types.CategoryID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	if findCategory(doc, owner, id) == nil {
		return fmt.Errorf("%w: category %s", types.ErrNotFound, id)
	}

	cats := doc.Categories[:0]
	for _, cat := range doc.Categories {
		if !(cat.ID == id && cat.Owner == owner) {
			cats = append(cats, cat)
		}
	}
	doc.Categories = cats

	refs := doc.References[:0]
	for _, ref := range doc.References {
		if ref.CategoryID != id {
			refs = append(refs, ref)
		}
	}
	doc.References = refs

	return s.save(doc)
}

// Get returns the owner's category with the given id.
func (s *Store) Get(_ context.Context, owner types.OwnerID, id types.CategoryID) (*types.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	cat := findCategory(doc, owner, id)
	if cat == nil {
		return nil, fmt.Errorf("%w: category %s", types.ErrNotFound, id)
	}
	return cat, nil
}

// List returns the owner's categories ordered by creation time.
func (s *Store) List(_ context.Context, owner types.OwnerID) ([]*types.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	out := make([]*types.Category, 0)
	for _, cat := range doc.Categories {
		if cat.Owner == owner {
			out = append(out, cat)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// Add files a message reference under an existing category of the owner.
func (s *Store) Add(_ context.Context, owner types.OwnerID, category types.CategoryID, chat types.ChatID, message types.MessageID, kind types.ContentKind) (*types.MessageReference, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	if findCategory(doc, owner, category) == nil {
		return nil, fmt.Errorf("%w: category %s", types.ErrNotFound, category)
	}

	ref := &types.MessageReference{
		ID:         types.NewReferenceID(),
		Owner:      owner,
		CategoryID: category,
		ChatID:     chat,
		MessageID:  message,
		Kind:       kind,
		FiledAt:    time.Now(),
	}
	doc.References = append(doc.References, ref)

	if err := s.save(doc); err != nil {
		return nil, err
	}
	return ref, nil
}

// ListReferences returns the references filed under the owner's category,
// ordered by filing time.
func (s *Store) ListReferences(_ context.Context, owner types.OwnerID, category types.CategoryID) ([]*types.MessageReference, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	if findCategory(doc, owner, category) == nil {
		return nil, fmt.Errorf("%w: category %s", types.ErrNotFound, category)
	}

	out := make([]*types.MessageReference, 0)
	for _, ref := range doc.References {
		if ref.CategoryID == category && ref.Owner == owner {
			out = append(out, ref)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].FiledAt.Before(out[j].FiledAt)
	})
	return out, nil
}

// DeleteReference removes a single filed reference.
func (s *Store) DeleteReference(_ context.Context, owner types.OwnerID, id types.ReferenceID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	for i, ref := range doc.References {
		if ref.ID == id && ref.Owner == owner {
			doc.References = append(doc.References[:i], doc.References[i+1:]...)
			return s.save(doc)
		}
	}
	return fmt.Errorf("%w: reference %s", types.ErrNotFound, id)
}

// Owners returns every owner with at least one category, sorted.
func (s *Store) Owners(_ context.Context) ([]types.OwnerID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	seen := make(map[types.OwnerID]bool)
	out := make([]types.OwnerID, 0)
	for _, cat := range doc.Categories {
		if !seen[cat.Owner] {
			seen[cat.Owner] = true
			out = append(out, cat.Owner)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out, nil
}
