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

// PaperEndpoints serves generated question papers. Papers are immutable once
// generated: the surface is create, read, and delete only.
type PaperEndpoints struct {
	repo     *repository.Repository
	validate *validator.Validate
}

type PaperSectionRequest struct {
	TemplateSectionID *string  `json:"template_section_id"`
	Title             string   `json:"title"`
	QuestionIDs       []string `json:"question_ids" validate:"required,min=1,dive,required"`
}

type GeneratePaperRequest struct {
	TemplateID string                `json:"template_id" validate:"required"`
	Sections   []PaperSectionRequest `json:"sections" validate:"required,min=1,dive"`
}

func NewPaperEndpoints(repo *repository.Repository) *PaperEndpoints {
	return &PaperEndpoints{
		repo:     repo,
		validate: validator.New(),
	}
}

func (e *PaperEndpoints) RegisterReadRoutes(r chi.Router) {
	r.Route("/papers", func(r chi.Router) {
		r.Get("/", e.ListPapersHandler)
		r.Get("/{id}", e.GetPaperHandler)
	})
}

func (e *PaperEndpoints) RegisterWriteRoutes(r chi.Router) {
	r.Route("/papers", func(r chi.Router) {
		r.Post("/", e.GeneratePaperHandler)
		r.Delete("/{id}", e.DeletePaperHandler)
	})
}

func (e *PaperEndpoints) GeneratePaperHandler(w http.ResponseWriter, r *http.Request) {
	var req GeneratePaperRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := e.validate.Struct(&req); err != nil {
		http.Error(w, "Validation failed: "+err.Error(), http.StatusBadRequest)
		return
	}

	sections := make([]repository.PaperSectionInput, 0, len(req.Sections))
	for i, s := range req.Sections {
		sections = append(sections, repository.PaperSectionInput{
			Section: models.PaperSection{
				TemplateSectionID: s.TemplateSectionID,
				Title:             s.Title,
				SortOrder:         i,
			},
			QuestionIDs: s.QuestionIDs,
		})
	}

	paper, err := e.repo.CreatePaper(r.Context(), req.TemplateID, sections)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Template not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to generate paper", "error", err, "template_id", req.TemplateID)
		http.Error(w, "Failed to generate paper", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(paper)

	slog.Info("Paper generated", "paper_id", paper.ID, "template_id", req.TemplateID)
}

func (e *PaperEndpoints) ListPapersHandler(w http.ResponseWriter, r *http.Request) {
	asc := r.URL.Query().Get("order") != "desc"
	papers, err := e.repo.ListPapers(r.Context(), "created_at", asc)
	if err != nil {
		slog.Error("Failed to list papers", "error", err)
		http.Error(w, "Failed to list papers", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"papers": papers,
		"count":  len(papers),
	})
}

func (e *PaperEndpoints) GetPaperHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Paper ID is required", http.StatusBadRequest)
		return
	}

	paper, err := e.repo.GetPaper(r.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			http.Error(w, "Paper not found", http.StatusNotFound)
			return
		}
		slog.Error("Failed to get paper", "error", err, "paper_id", id)
		http.Error(w, "Failed to get paper", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(paper)
}

func (e *PaperEndpoints) DeletePaperHandler(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Paper ID is required", http.StatusBadRequest)
		return
	}

	if err := e.repo.DeletePaper(r.Context(), id); err != nil {
		slog.Error("Failed to delete paper", "error", err, "paper_id", id)
		http.Error(w, "Failed to delete paper", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
	slog.Info("Paper deleted", "paper_id", id)
}
