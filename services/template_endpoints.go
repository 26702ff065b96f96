package services

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/qforge/qbank/models"
	"github.com/qforge/qbank/repository"
)

// TemplateEndpoints serves paper templates with their owned sections. Unlike
// the generic entities, template writes carry the full nested section set.
type TemplateEndpoints struct {
	repo     *repository.Repository
	validate *validator.Validate
}

type TemplateSectionRequest struct {
	Title         string `json:"title" validate:"required"`
	Instructions  string `json:"instructions"`
	Marks         int    `json:"marks" validate:"min=0"`
	QuestionCount int    `json:"question_count" validate:"min=0"`
}

type TemplateRequest struct {
	Title           string                   `json:"title" validate:"required"`
	Description     string                   `json:"description"`
	SubjectID       *string                  `json:"subject_id"`
	CourseID        *string                  `json:"course_id"`
	ProgramID       *string                  `json:"program_id"`
	TotalMarks      int                      `json:"total_marks" validate:"min=0"`
	DurationMinutes int                      `json:"duration_minutes" validate:"min=0"`
	Sections        []TemplateSectionRequest `json:"sections" validate:"dive"`
}

func NewTemplateEndpoints(repo *repository.Repository) *TemplateEndpoints {
	return &TemplateEndpoints{
		repo:     repo,
		validate: validator.New(),
	}
}

func (e *TemplateEndpoints) RegisterReadRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Get("/", e.ListTemplatesHandler)
		r.Get("/{id}", e.GetTemplateHandler)
	})
}

func (e *TemplateEndpoints) RegisterWriteRoutes(r chi.Router) {
	r.Route("/templates", func(r chi.Router) {
		r.Post("/", e.CreateTemplateHandler)
		r.Put("/{id}", e.UpdateTemplateHandler)
		r.Delete("/{id}", e.DeleteTemplateHandler)
	})
}

// sectionRows converts request sections to rows, numbering sort_order from
// the request order.
func sectionRows(sections []TemplateSectionRequest) []models.TemplateSection {
	rows := make([]models.TemplateSection, 0, len(sections))
	for i, s := range sections {
		rows = append(rows, models.TemplateSection{
			Title:         s.Title,
			Instructions:  s.Instructions,
			Marks:         s.Marks,
			QuestionCount: s.QuestionCount,
			SortOrder:     i,
		})
	}
	return rows
}

func (e *TemplateEndpoints) ListTemplatesHandler(w http.ResponseWriter, r *http.Request) {
	asc := r.URL.Query().Get("order") != "desc"
	templates, err := e.repo.ListTemplates(r.Context(), "created_at", asc)
	if err != nil {
		slog.Error("Failed to list templates", "error", err)
		http.Error(w, "Failed to list templates", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"templates": templates,
		"count":     len(templates),
	})
}

func (e *TemplateEndpoints) GetTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Template ID is required", http.StatusBadRequest)
		return
	}

	template, err := e.repo.GetTemplate(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Template not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get template", "error", err, "template_id", id)
		http.Error(w, "Failed to get template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(template)
}

func (e *TemplateEndpoints) CreateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	template := models.PaperTemplate{
		Title:           req.Title,
		Description:     req.Description,
		SubjectID:       req.SubjectID,
		CourseID:        req.CourseID,
		ProgramID:       req.ProgramID,
		TotalMarks:      req.TotalMarks,
		DurationMinutes: req.DurationMinutes,
	}

	created, err := e.repo.CreateTemplate(r.Context(), &template, sectionRows(req.Sections))
	if err != nil {
		slog.Error("Failed to create template", "error", err)
		http.Error(w, "Failed to create template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(created)

	slog.Info("Template created", "template_id", created.ID, "sections", len(req.Sections))
}

func (e *TemplateEndpoints) UpdateTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Template ID is required", http.StatusBadRequest)
		return
	}

	var req TemplateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	changes := map[string]any{
		"title":            req.Title,
		"description":      req.Description,
		"subject_id":       req.SubjectID,
		"course_id":        req.CourseID,
		"program_id":       req.ProgramID,
		"total_marks":      req.TotalMarks,
		"duration_minutes": req.DurationMinutes,
	}

	updated, err := e.repo.UpdateTemplate(r.Context(), id, changes, sectionRows(req.Sections))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Template not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to update template", "error", err, "template_id", id)
		http.Error(w, "Failed to update template", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated)

	slog.Info("Template updated", "template_id", id)
}

func (e *TemplateEndpoints) DeleteTemplateHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Template ID is required", http.StatusBadRequest)
		return
	}

	if err := e.repo.DeleteTemplate(r.Context(), id); err != nil {
		slog.Error("Failed to delete template", "error", err, "template_id", id)
		http.Error(w, "Failed to delete template", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	slog.Info("Template deleted", "template_id", id)
}
