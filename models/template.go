package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PaperTemplate is the blueprint a question paper is generated from. Its
// sections are owned children: every template update replaces the full
// section set, there are no partial section edits.
type PaperTemplate struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string         `gorm:"size:255;not null" json:"title" validate:"required"`
	Description     string         `gorm:"type:text" json:"description,omitempty"`
	SubjectID       *string        `gorm:"type:uuid;index" json:"subject_id,omitempty"`
	CourseID        *string        `gorm:"type:uuid;index" json:"course_id,omitempty"`
	ProgramID       *string        `gorm:"type:uuid;index" json:"program_id,omitempty"`
	TotalMarks      int            `gorm:"default:0" json:"total_marks"`
	DurationMinutes int            `gorm:"default:60" json:"duration_minutes"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Sections []TemplateSection `gorm:"foreignKey:TemplateID" json:"sections,omitempty"`
	Subject  *Subject          `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Course   *Course           `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Program  *Program          `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
}

func (t *PaperTemplate) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	return nil
}

type TemplateSection struct {
	ID            string         `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID    string         `gorm:"type:uuid;not null;index" json:"template_id"`
	Title         string         `gorm:"size:255;not null" json:"title"`
	Instructions  string         `gorm:"type:text" json:"instructions,omitempty"`
	Marks         int            `gorm:"default:0" json:"marks"`
	QuestionCount int            `gorm:"default:0" json:"question_count"`
	SortOrder     int            `gorm:"default:0" json:"sort_order"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}

func (s *TemplateSection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}
