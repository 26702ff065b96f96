package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// QuestionPaper is generated from a template snapshot. The title is copied
// from the template at creation time and the section/question structure is
// fixed once created: papers support create and delete only, no updates.
type QuestionPaper struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	TemplateID string         `gorm:"type:uuid;not null;index" json:"template_id"`
	Title      string         `gorm:"size:255;not null" json:"title"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Template *PaperTemplate `gorm:"foreignKey:TemplateID" json:"template,omitempty"`
	Sections []PaperSection `gorm:"foreignKey:PaperID" json:"sections,omitempty"`
}

func (p *QuestionPaper) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

type PaperSection struct {
	ID                string         `gorm:"type:uuid;primaryKey" json:"id"`
	PaperID           string         `gorm:"type:uuid;not null;index" json:"paper_id"`
	TemplateSectionID *string        `gorm:"type:uuid;index" json:"template_section_id,omitempty"`
	Title             string         `gorm:"size:255" json:"title,omitempty"`
	SortOrder         int            `gorm:"default:0" json:"sort_order"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	TemplateSection *TemplateSection       `gorm:"foreignKey:TemplateSectionID" json:"template_section,omitempty"`
	Questions       []PaperSectionQuestion `gorm:"foreignKey:SectionID" json:"questions,omitempty"`
}

func (s *PaperSection) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// PaperSectionQuestion references a question-bank entry from a paper section.
type PaperSectionQuestion struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	SectionID  string         `gorm:"type:uuid;not null;index" json:"section_id"`
	QuestionID string         `gorm:"type:uuid;not null;index" json:"question_id"`
	SortOrder  int            `gorm:"default:0" json:"sort_order"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Question *Question `gorm:"foreignKey:QuestionID" json:"question,omitempty"`
}

func (q *PaperSectionQuestion) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}
