package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Candidate is a student record in the examination register. It is distinct
// from the auth User: candidates exist before (and without) portal accounts.
type Candidate struct {
	ID          string         `gorm:"type:uuid;primaryKey" json:"id"`
	FullName    string         `gorm:"size:255;not null" json:"full_name" validate:"required"`
	Email       string         `gorm:"size:255;index" json:"email,omitempty" validate:"omitempty,email"`
	RollNumber  string         `gorm:"size:100" json:"roll_number,omitempty"`
	ClassroomID *string        `gorm:"type:uuid;index" json:"classroom_id,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Classroom *Classroom `gorm:"foreignKey:ClassroomID" json:"classroom,omitempty"`
}

func (c *Candidate) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

type Classroom struct {
	ID        string         `gorm:"type:uuid;primaryKey" json:"id"`
	Name      string         `gorm:"size:255;not null" json:"name" validate:"required"`
	ProgramID *string        `gorm:"type:uuid;index" json:"program_id,omitempty"`
	TrainerID *string        `gorm:"type:uuid;index" json:"trainer_id,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Program    *Program    `gorm:"foreignKey:ProgramID" json:"program,omitempty"`
	Candidates []Candidate `gorm:"foreignKey:ClassroomID" json:"candidates,omitempty"`
}

func (c *Classroom) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	return nil
}

// Exam schedules a generated paper (or an external paper) for a classroom.
type Exam struct {
	ID              string         `gorm:"type:uuid;primaryKey" json:"id"`
	Title           string         `gorm:"size:255;not null" json:"title" validate:"required"`
	SubjectID       *string        `gorm:"type:uuid;index" json:"subject_id,omitempty"`
	ClassroomID     *string        `gorm:"type:uuid;index" json:"classroom_id,omitempty"`
	PaperID         *string        `gorm:"type:uuid;index" json:"paper_id,omitempty"`
	ScheduledAt     *time.Time     `json:"scheduled_at,omitempty"`
	DurationMinutes int            `gorm:"default:60" json:"duration_minutes"`
	Status          string         `gorm:"size:50;not null;default:'draft'" json:"status"` // draft, scheduled, completed
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`

	// Relationships
	Subject   *Subject       `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
	Classroom *Classroom     `gorm:"foreignKey:ClassroomID" json:"classroom,omitempty"`
	Paper     *QuestionPaper `gorm:"foreignKey:PaperID" json:"paper,omitempty"`
}

func (e *Exam) BeforeCreate(tx *gorm.DB) error {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	return nil
}
