package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Program is the top of the catalog hierarchy: program -> course -> subject.
type Program struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name        string         `gorm:"size:255;not null" json:"name" validate:"required"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Courses []Course `gorm:"foreignKey:ProgramID" json:"courses,omitempty"`
}

func (p *Program) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	return nil
}

type Course struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	ProgramID   *string        `gorm:"type:uuid;index" json:"program_id,omitempty"`
	Name        string         `gorm:"size:255;not null" json:"name" validate:"required"`
	Description string         `gorm:"type:text" json:"description,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Program  *Program  `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	Subjects []Subject `gorm:"foreignKey:CourseID" json:"subjects,omitempty"`
}

func (c *Course) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

type Subject struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	CourseID  *string        `gorm:"type:uuid;index" json:"course_id,omitempty"`
	Name      string         `gorm:"size:255;not null" json:"name" validate:"required"`
	Code      string         `gorm:"size:50" json:"code,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Course    *Course    `gorm:"foreignKey:CourseID" json:"course,omitempty"`
	Questions []Question `gorm:"foreignKey:SubjectID" json:"questions,omitempty"`
}

func (s *Subject) BeforeCreate(tx *gorm.DB) error {
	if s.ID == "" {
		s.ID = uuid.New().String()
	}
	return nil
}

// Question is a single question-bank entry. Options holds the choice list for
// objective questions as a JSON array; subjective questions leave it empty.
type Question struct {
	ID         string         `gorm:"type:uuid;primaryKey" json:"id"`
	SubjectID  *string        `gorm:"type:uuid;index" json:"subject_id,omitempty"`
	Text       string         `gorm:"type:text;not null" json:"text" validate:"required"`
	Type       string         `gorm:"size:50;not null;default:'mcq'" json:"type"` // mcq, true_false, short_answer, essay
	Options    datatypes.JSON `gorm:"type:json" json:"options,omitempty"`
	Answer     string         `gorm:"type:text" json:"answer,omitempty"`
	Marks      int            `gorm:"default:1" json:"marks"`
	Difficulty string         `gorm:"size:50;default:'medium'" json:"difficulty"` // easy, medium, hard
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
	DeletedAt  gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Subject *Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

func (q *Question) BeforeCreate(tx *gorm.DB) error {
	if q.ID == "" {
		q.ID = uuid.New().String()
	}
	return nil
}
