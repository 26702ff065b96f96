package repository

import (
	"context"
	"log/slog"

	"github.com/qforge/qbank/models"
)

// PaperSectionInput is one section of a paper to generate: the section row
// plus the ids of the bank questions it references, in order.
type PaperSectionInput struct {
	Section     models.PaperSection
	QuestionIDs []string
}

// CreatePaper generates a question paper from a template snapshot. The paper
// row is written first, copying the template's title at creation time. The
// sections are then written strictly sequentially: each section insert must
// complete before its question references can be tagged with the generated
// section id. Any failure aborts the remaining iterations; sections already
// inserted remain, and the error surfaces to the caller.
func (r *Repository) CreatePaper(ctx context.Context, templateID string, sections []PaperSectionInput) (*models.QuestionPaper, error) {
	template, err := r.GetTemplate(ctx, templateID)
	if err != nil {
		slog.Error("Failed to load template for paper", "error", err, "template_id", templateID)
		return nil, err
	}

	paper := models.QuestionPaper{
		TemplateID: template.ID,
		Title:      template.Title,
	}
	if err := r.db.WithContext(ctx).Omit("Sections", "Template").Create(&paper).Error; err != nil {
		slog.Error("Failed to create paper", "error", err, "template_id", templateID)
		return nil, err
	}

	for i := range sections {
		section := sections[i].Section
		section.ID = ""
		section.PaperID = paper.ID
		if err := r.db.WithContext(ctx).Omit("Questions", "TemplateSection").Create(&section).Error; err != nil {
			slog.Error("Failed to create paper section", "error", err, "paper_id", paper.ID)
			return nil, err
		}

		if len(sections[i].QuestionIDs) == 0 {
			continue
		}
		refs := make([]models.PaperSectionQuestion, 0, len(sections[i].QuestionIDs))
		for order, questionID := range sections[i].QuestionIDs {
			refs = append(refs, models.PaperSectionQuestion{
				SectionID:  section.ID,
				QuestionID: questionID,
				SortOrder:  order,
			})
		}
		if err := r.db.WithContext(ctx).Create(&refs).Error; err != nil {
			slog.Error("Failed to create paper question references", "error", err, "paper_id", paper.ID, "section_id", section.ID)
			return nil, err
		}
	}

	slog.Info("Paper created", "paper_id", paper.ID, "template_id", templateID, "sections", len(sections))
	return r.GetPaper(ctx, paper.ID)
}

// GetPaper returns the full paper tree: paper -> template (with its
// subject/course/program) -> sections -> template section and ordered
// question references -> question.
func (r *Repository) GetPaper(ctx context.Context, id string) (*models.QuestionPaper, error) {
	q := r.db.WithContext(ctx).
		Preload("Template").
		Preload("Template.Subject").
		Preload("Template.Course").
		Preload("Template.Program").
		Preload("Sections", sectionOrder).
		Preload("Sections.TemplateSection").
		Preload("Sections.Questions", sectionOrder).
		Preload("Sections.Questions.Question")
	var rows []models.QuestionPaper
	if err := q.Where("id = ?", id).Limit(2).Find(&rows).Error; err != nil {
		slog.Error("Failed to get paper", "error", err, "paper_id", id)
		return nil, err
	}
	switch len(rows) {
	case 0:
		return nil, ErrNotFound
	case 1:
		return &rows[0], nil
	default:
		return nil, ErrNotUnique
	}
}

// ListPapers returns shallow paper+template joins for listing views; no
// section depth.
func (r *Repository) ListPapers(ctx context.Context, sortKey string, asc bool) ([]models.QuestionPaper, error) {
	var papers []models.QuestionPaper
	err := r.db.WithContext(ctx).
		Preload("Template").
		Preload("Template.Subject").
		Preload("Template.Course").
		Preload("Template.Program").
		Order(orderClause(sortKey, asc)).
		Find(&papers).Error
	if err != nil {
		slog.Error("Failed to list papers", "error", err)
		return nil, err
	}
	return papers, nil
}

// DeletePaper removes the paper with its sections and question references.
// Deleting a paper that does not exist is not an error.
func (r *Repository) DeletePaper(ctx context.Context, id string) error {
	var sectionIDs []string
	if err := r.db.WithContext(ctx).Model(&models.PaperSection{}).Where("paper_id = ?", id).Pluck("id", &sectionIDs).Error; err != nil {
		slog.Error("Failed to list paper sections for delete", "error", err, "paper_id", id)
		return err
	}
	if len(sectionIDs) > 0 {
		if err := r.db.WithContext(ctx).Where("section_id IN ?", sectionIDs).Delete(&models.PaperSectionQuestion{}).Error; err != nil {
			slog.Error("Failed to delete paper question references", "error", err, "paper_id", id)
			return err
		}
		if err := r.db.WithContext(ctx).Where("paper_id = ?", id).Delete(&models.PaperSection{}).Error; err != nil {
			slog.Error("Failed to delete paper sections", "error", err, "paper_id", id)
			return err
		}
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.QuestionPaper{}).Error; err != nil {
		slog.Error("Failed to delete paper", "error", err, "paper_id", id)
		return err
	}
	slog.Info("Paper deleted", "paper_id", id)
	return nil
}
