package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/qforge/qbank/repository"
)

// EntityEndpoints is one CRUD surface over a bank entity. Every entity shares
// the same handler set; what differs per entity is the path name, the default
// sort, and the column allow-lists. Columns not allow-listed are ignored for
// filtering and rejected for updates, so callers can never reach into columns
// the entity does not expose.
type EntityEndpoints[T any] struct {
	repo        *repository.Repository
	validate    *validator.Validate
	name        string
	defaultSort string
	sortable    map[string]bool
	filterable  map[string]bool
	updatable   map[string]bool
	preloads    []string
}

func NewEntityEndpoints[T any](repo *repository.Repository, name, defaultSort string, sortable, filterable, updatable []string, preloads ...string) *EntityEndpoints[T] {
	return &EntityEndpoints[T]{
		repo:        repo,
		validate:    validator.New(),
		name:        name,
		defaultSort: defaultSort,
		sortable:    toSet(sortable),
		filterable:  toSet(filterable),
		updatable:   toSet(updatable),
		preloads:    preloads,
	}
}

func toSet(columns []string) map[string]bool {
	set := make(map[string]bool, len(columns))
	for _, c := range columns {
		set[c] = true
	}
	return set
}

// RegisterReadRoutes registers the list and get handlers.
func (e *EntityEndpoints[T]) RegisterReadRoutes(r chi.Router) {
	r.Route("/"+e.name, func(r chi.Router) {
		r.Get("/", e.ListHandler)
		r.Get("/{id}", e.GetHandler)
	})
}

// RegisterWriteRoutes registers the mutating handlers. Kept separate so the
// server can put them behind a role guard.
func (e *EntityEndpoints[T]) RegisterWriteRoutes(r chi.Router) {
	r.Route("/"+e.name, func(r chi.Router) {
		r.Post("/", e.CreateHandler)
		r.Put("/{id}", e.UpdateHandler)
		r.Delete("/{id}", e.DeleteHandler)
	})
}

func (e *EntityEndpoints[T]) ListHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	sortKey := e.defaultSort
	if s := query.Get("sort"); s != "" && e.sortable[s] {
		sortKey = s
	}
	asc := query.Get("order") != "desc"

	criteria := make(map[string]any)
	for column := range e.filterable {
		if v := query.Get(column); v != "" {
			criteria[column] = v
		}
	}

	var (
		items []T
		err   error
	)
	if len(criteria) > 0 {
		items, err = repository.Filter[T](r.Context(), e.repo, criteria, sortKey, asc, e.preloads...)
	} else {
		items, err = repository.List[T](r.Context(), e.repo, sortKey, asc, e.preloads...)
	}
	if err != nil {
		slog.Error("Failed to list entities", "error", err, "entity", e.name)
		http.Error(w, "Failed to list "+e.name, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		e.name:  items,
		"count": len(items),
	})
}

func (e *EntityEndpoints[T]) GetHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "ID is required", http.StatusBadRequest)
		return
	}

	item, err := repository.Get[T](r.Context(), e.repo, id, e.preloads...)
	if err != nil {
		e.writeRepoError(w, err, id)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(item)
}

func (e *EntityEndpoints[T]) CreateHandler(w http.ResponseWriter, r *http.Request) {
	var record T
	if err := json.NewDecoder(r.Body).Decode(&record); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(&record); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	created, err := repository.Create[T](r.Context(), e.repo, &record)
	if err != nil {
		slog.Error("Failed to create entity", "error", err, "entity", e.name)
		http.Error(w, "Failed to create "+e.name, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)

	slog.Info("Entity created", "entity", e.name)
}

func (e *EntityEndpoints[T]) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "ID is required", http.StatusBadRequest)
		return
	}

	var body map[string]any
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	changes := make(map[string]any, len(body))
	for column, value := range body {
		if !e.updatable[column] {
			http.Error(w, "Column cannot be updated: "+column, http.StatusBadRequest)
			return
		}
		changes[column] = value
	}
	if len(changes) == 0 {
		http.Error(w, "No updatable columns in request", http.StatusBadRequest)
		return
	}

	updated, err := repository.Update[T](r.Context(), e.repo, id, changes)
	if err != nil {
		e.writeRepoError(w, err, id)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)

	slog.Info("Entity updated", "entity", e.name, "id", id)
}

func (e *EntityEndpoints[T]) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "ID is required", http.StatusBadRequest)
		return
	}

	// Deleting an id that does not exist is not an error.
	if err := repository.Delete[T](r.Context(), e.repo, id); err != nil {
		slog.Error("Failed to delete entity", "error", err, "entity", e.name, "id", id)
		http.Error(w, "Failed to delete "+e.name, http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	slog.Info("Entity deleted", "entity", e.name, "id", id)
}

func (e *EntityEndpoints[T]) writeRepoError(w http.ResponseWriter, err error, id string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.Error(w, e.name+" not found", http.StatusNotFound)
	case errors.Is(err, repository.ErrNotUnique):
		slog.Error("Entity id matched multiple rows", "entity", e.name, "id", id)
		http.Error(w, "Conflicting records for id", http.StatusInternalServerError)
	default:
		slog.Error("Entity lookup failed", "error", err, "entity", e.name, "id", id)
		http.Error(w, "Failed to get "+e.name, http.StatusInternalServerError)
	}
}
