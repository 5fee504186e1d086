// internal/webhook/server.go
package webhook

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/user/stashbot/internal/state"
	"github.com/user/stashbot/internal/types"
)

// Server is a read-only HTTP handler for ops and debugging: owner and
// category listings plus the audit log. It never mutates the stores.
type Server struct {
	store *state.Store
	audit *state.AuditStore
	mux   *http.ServeMux
}

// NewServer creates a new ops Server over the given stores.
func NewServer(store *state.Store, audit *state.AuditStore) *Server {
	s := &Server{
		store: store,
		audit: audit,
		mux:   http.NewServeMux(),
	}
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /api/owners", s.handleOwners)
	s.mux.HandleFunc("GET /api/owners/", s.handleOwnerDetail)
	return s
}

// ServeHTTP delegates to the internal mux, implementing http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

type ownerResponse struct {
	Owner      string `json:"owner"`
	Categories int    `json:"categories"`
	AuditCount int64  `json:"audit_count"`
}

func (s *Server) handleOwners(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	owners, err := s.store.Owners(ctx)
	if err != nil {
		slog.Error("list owners failed", "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]ownerResponse, 0, len(owners))
	for _, owner := range owners {
		cats, err := s.store.List(ctx, owner)
		if err != nil {
			slog.Warn("list categories failed", "owner", string(owner), "error", err)
			continue
		}
		count, err := s.audit.Count(ctx, owner)
		if err != nil {
			slog.Warn("count audit failed", "owner", string(owner), "error", err)
		}
		result = append(result, ownerResponse{
			Owner:      string(owner),
			Categories: len(cats),
			AuditCount: count,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

type categoryResponse struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  string `json:"created_at"`
	References int    `json:"references"`
}

// handleOwnerDetail serves /api/owners/{id}/categories and
// /api/owners/{id}/audit.
func (s *Server) handleOwnerDetail(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/owners/")
	parts := strings.SplitN(path, "/", 2)
	if len(parts) < 2 {
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
		return
	}
	owner := types.OwnerID(parts[0])

	switch parts[1] {
	case "categories":
		s.serveCategories(w, r, owner)
	case "audit":
		s.serveAudit(w, r, owner)
	default:
		http.Error(w, `{"error":"not found"}`, http.StatusNotFound)
	}
}

func (s *Server) serveCategories(w http.ResponseWriter, r *http.Request, owner types.OwnerID) {
	ctx := r.Context()
	cats, err := s.store.List(ctx, owner)
	if err != nil {
		slog.Error("list categories failed", "owner", string(owner), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}

	result := make([]categoryResponse, 0, len(cats))
	for _, cat := range cats {
		refs, err := s.store.ListReferences(ctx, owner, cat.ID)
		if err != nil {
			slog.Warn("list references failed", "category", string(cat.ID), "error", err)
		}
		result = append(result, categoryResponse{
			ID:         string(cat.ID),
			Name:       cat.Name,
			CreatedAt:  cat.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
			References: len(refs),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(result)
}

func (s *Server) serveAudit(w http.ResponseWriter, r *http.Request, owner types.OwnerID) {
	limit := 200
	if q := r.URL.Query().Get("limit"); q != "" {
		if n, err := strconv.Atoi(q); err == nil && n > 0 {
			limit = n
		}
	}

	entries, err := s.audit.Tail(r.Context(), owner, limit)
	if err != nil {
		slog.Error("tail audit failed", "owner", string(owner), "error", err)
		http.Error(w, `{"error":"internal server error"}`, http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*types.AuditEntry{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}
