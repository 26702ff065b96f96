package repository

import (
	"context"
	"log/slog"

	"github.com/qforge/qbank/models"
	"gorm.io/gorm"
)

// Composite writes for paper templates. The steps are sequential round trips
// with no cross-step transaction: a failure partway through leaves the
// already-committed rows in place and surfaces the error to the caller.

func sectionOrder(db *gorm.DB) *gorm.DB {
	return db.Order("sort_order")
}

// GetTemplate returns the template with its ordered sections and its
// subject/course/program references eagerly loaded.
func (r *Repository) GetTemplate(ctx context.Context, id string) (*models.PaperTemplate, error) {
	q := r.db.WithContext(ctx).
		Preload("Sections", sectionOrder).
		Preload("Subject").
		Preload("Course").
		Preload("Program")
	var rows []models.PaperTemplate
	if err := q.Where("id = ?", id).Limit(2).Find(&rows).Error; err != nil {
		slog.Error("Failed to get template", "error", err, "template_id", id)
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

func (r *Repository) ListTemplates(ctx context.Context, sortKey string, asc bool) ([]models.PaperTemplate, error) {
	var templates []models.PaperTemplate
	err := r.db.WithContext(ctx).
		Preload("Sections", sectionOrder).
		Preload("Subject").
		Preload("Course").
		Preload("Program").
		Order(orderClause(sortKey, asc)).
		Find(&templates).Error
	if err != nil {
		slog.Error("Failed to list templates", "error", err)
		return nil, err
	}
	return templates, nil
}

// CreateTemplate inserts the template row first and bulk-inserts its sections
// only if that succeeded. A section failure after the template committed
// leaves the template row without sections; the error is the caller's to see.
func (r *Repository) CreateTemplate(ctx context.Context, template *models.PaperTemplate, sections []models.TemplateSection) (*models.PaperTemplate, error) {
	if err := r.db.WithContext(ctx).Omit("Sections").Create(template).Error; err != nil {
		slog.Error("Failed to create template", "error", err)
		return nil, err
	}
	if len(sections) > 0 {
		for i := range sections {
			sections[i].TemplateID = template.ID
		}
		if err := r.db.WithContext(ctx).Create(&sections).Error; err != nil {
			slog.Error("Failed to create template sections", "error", err, "template_id", template.ID)
			return nil, err
		}
	}
	slog.Info("Template created", "template_id", template.ID, "sections", len(sections))
	return r.GetTemplate(ctx, template.ID)
}

// UpdateTemplate updates the template fields, then unconditionally deletes
// every existing section and bulk-inserts the new set. Sections are always a
// full replace, never an incremental edit. A failed delete step surfaces as a
// failed update even though the field changes already committed.
func (r *Repository) UpdateTemplate(ctx context.Context, id string, changes map[string]any, sections []models.TemplateSection) (*models.PaperTemplate, error) {
	if len(changes) > 0 {
		res := r.db.WithContext(ctx).Model(&models.PaperTemplate{}).Where("id = ?", id).Updates(changes)
		if res.Error != nil {
			slog.Error("Failed to update template", "error", res.Error, "template_id", id)
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	} else {
		// No field changes to piggyback the existence check on; verify the
		// template exists before replacing sections, or a bad id would leave
		// orphan section rows.
		var count int64
		if err := r.db.WithContext(ctx).Model(&models.PaperTemplate{}).Where("id = ?", id).Count(&count).Error; err != nil {
			slog.Error("Failed to check template", "error", err, "template_id", id)
			return nil, err
		}
		if count == 0 {
			return nil, ErrNotFound
		}
	}

	if err := r.db.WithContext(ctx).Where("template_id = ?", id).Delete(&models.TemplateSection{}).Error; err != nil {
		slog.Error("Failed to delete template sections", "error", err, "template_id", id)
		return nil, err
	}
	if len(sections) > 0 {
		for i := range sections {
			sections[i].ID = ""
			sections[i].TemplateID = id
		}
		if err := r.db.WithContext(ctx).Create(&sections).Error; err != nil {
			slog.Error("Failed to replace template sections", "error", err, "template_id", id)
			return nil, err
		}
	}

	slog.Info("Template updated", "template_id", id, "sections", len(sections))
	return r.GetTemplate(ctx, id)
}

// DeleteTemplate removes the template and its sections. Deleting a template
// that does not exist is not an error.
func (r *Repository) DeleteTemplate(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Where("template_id = ?", id).Delete(&models.TemplateSection{}).Error; err != nil {
		slog.Error("Failed to delete template sections", "error", err, "template_id", id)
		return err
	}
	if err := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.PaperTemplate{}).Error; err != nil {
		slog.Error("Failed to delete template", "error", err, "template_id", id)
		return err
	}
	slog.Info("Template deleted", "template_id", id)
	return nil
}
