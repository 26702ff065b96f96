package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/qforge/qbank/models"
	"github.com/qforge/qbank/repository"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/datatypes"
)

// DatabaseSeeder handles database seeding operations
type DatabaseSeeder struct {
	repo *repository.Repository
}

// NewDatabaseSeeder creates a new database seeder
func NewDatabaseSeeder(repo *repository.Repository) *DatabaseSeeder {
	return &DatabaseSeeder{repo: repo}
}

// SeedDatabase seeds the database with initial data (idempotent). Every step
// checks for its own records, so a partially seeded database heals on the
// next run.
func (s *DatabaseSeeder) SeedDatabase() error {
	ctx := context.Background()

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	accounts := []struct {
		email    string
		fullName string
		role     string
	}{
		{"admin@example.com", "Portal Admin", models.RoleAdmin},
		{"trainer@example.com", "Demo Trainer", models.RoleTrainer},
		{"student@example.com", "Demo Student", models.RoleStudent},
	}
	for _, a := range accounts {
		if err := s.seedAccount(ctx, a.email, a.fullName, a.role, string(hashedPassword)); err != nil {
			slog.Error("Failed to seed account", "email", a.email, "error", err)
		}
	}

	subject, err := s.seedCatalog(ctx)
	if err != nil {
		slog.Error("Failed to seed catalog", "error", err)
		return nil
	}

	if err := s.seedQuestions(ctx, subject); err != nil {
		slog.Error("Failed to seed questions", "error", err)
	}

	if err := s.seedTemplate(ctx, subject); err != nil {
		slog.Error("Failed to seed template", "error", err)
	}

	slog.Info("Database seeding completed")
	return nil
}

// seedAccount creates a user with its role-bearing profile if neither exists.
func (s *DatabaseSeeder) seedAccount(ctx context.Context, email, fullName, role, hashedPassword string) error {
	user, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return fmt.Errorf("error checking user %s: %w", email, err)
	}

	if user == nil {
		user = &models.User{
			Email:    email,
			Password: hashedPassword,
			FullName: fullName,
		}
		if err := s.repo.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("failed to create user %s: %w", email, err)
		}
		slog.Info("Created user", "email", email)
	}

	profile, err := s.repo.ProfileByUser(ctx, user.ID)
	if err != nil {
		return fmt.Errorf("error checking profile for %s: %w", email, err)
	}
	if profile != nil {
		return nil
	}

	profile = &models.Profile{
		ID:       user.ID,
		FullName: fullName,
		Role:     role,
	}
	if err := s.repo.CreateProfile(ctx, profile); err != nil {
		return fmt.Errorf("failed to create profile for %s: %w", email, err)
	}
	slog.Info("Created profile", "email", email, "role", role)
	return nil
}

// seedCatalog creates the starter program/course/subject chain and returns
// the subject.
func (s *DatabaseSeeder) seedCatalog(ctx context.Context) (*models.Subject, error) {
	program, err := s.findOrCreateProgram(ctx, "Computer Science", "Undergraduate computer science program")
	if err != nil {
		return nil, err
	}

	course, err := s.findOrCreateCourse(ctx, program.ID, "Programming Fundamentals", "Introductory programming course")
	if err != nil {
		return nil, err
	}

	return s.findOrCreateSubject(ctx, course.ID, "Data Structures", "CS201")
}

func (s *DatabaseSeeder) findOrCreateProgram(ctx context.Context, name, description string) (*models.Program, error) {
	existing, err := repository.Filter[models.Program](ctx, s.repo, map[string]any{"name": name}, "name", true)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}
	return repository.Create(ctx, s.repo, &models.Program{Name: name, Description: description})
}

func (s *DatabaseSeeder) findOrCreateCourse(ctx context.Context, programID, name, description string) (*models.Course, error) {
	existing, err := repository.Filter[models.Course](ctx, s.repo, map[string]any{"name": name}, "name", true)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}
	return repository.Create(ctx, s.repo, &models.Course{ProgramID: &programID, Name: name, Description: description})
}

func (s *DatabaseSeeder) findOrCreateSubject(ctx context.Context, courseID, name, code string) (*models.Subject, error) {
	existing, err := repository.Filter[models.Subject](ctx, s.repo, map[string]any{"code": code}, "name", true)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return &existing[0], nil
	}
	return repository.Create(ctx, s.repo, &models.Subject{CourseID: &courseID, Name: name, Code: code})
}

func (s *DatabaseSeeder) seedQuestions(ctx context.Context, subject *models.Subject) error {
	existing, err := repository.Filter[models.Question](ctx, s.repo, map[string]any{"subject_id": subject.ID}, "created_at", true)
	if err != nil {
		return err
	}
	if len(existing) > 0 {
		slog.Info("Questions already seeded, skipping", "subject_id", subject.ID)
		return nil
	}

	questions := []models.Question{
		{
			SubjectID:  &subject.ID,
			Text:       "Which data structure uses LIFO ordering?",
			Type:       "mcq",
			Options:    datatypes.JSON([]byte(`["Queue","Stack","Heap","Graph"]`)),
			Answer:     "Stack",
			Marks:      1,
			Difficulty: "easy",
		},
		{
			SubjectID:  &subject.ID,
			Text:       "What is the average-case time complexity of binary search?",
			Type:       "mcq",
			Options:    datatypes.JSON([]byte(`["O(n)","O(n log n)","O(log n)","O(1)"]`)),
			Answer:     "O(log n)",
			Marks:      1,
			Difficulty: "easy",
		},
		{
			SubjectID:  &subject.ID,
			Text:       "A balanced binary search tree guarantees O(log n) lookups.",
			Type:       "true_false",
			Options:    datatypes.JSON([]byte(`["True","False"]`)),
			Answer:     "True",
			Marks:      1,
			Difficulty: "medium",
		},
		{
			SubjectID:  &subject.ID,
			Text:       "Explain the difference between an array and a linked list, including the trade-offs of each.",
			Type:       "essay",
			Answer:     "",
			Marks:      5,
			Difficulty: "medium",
		},
	}

	for i := range questions {
		if _, err := repository.Create(ctx, s.repo, &questions[i]); err != nil {
			return fmt.Errorf("failed to create question: %w", err)
		}
	}

	slog.Info("Seeded questions", "subject_id", subject.ID, "count", len(questions))
	return nil
}

func (s *DatabaseSeeder) seedTemplate(ctx context.Context, subject *models.Subject) error {
	existing, err := s.repo.ListTemplates(ctx, "created_at", true)
	if err != nil {
		return err
	}
	for _, t := range existing {
		if t.Title == "Midterm Template" {
			slog.Info("Template already seeded, skipping")
			return nil
		}
	}

	template := models.PaperTemplate{
		Title:           "Midterm Template",
		Description:     "Standard midterm layout: objective section followed by descriptive answers",
		SubjectID:       &subject.ID,
		TotalMarks:      20,
		DurationMinutes: 90,
	}
	sections := []models.TemplateSection{
		{Title: "Section A - Objective", Instructions: "Answer all questions", Marks: 10, QuestionCount: 10, SortOrder: 0},
		{Title: "Section B - Descriptive", Instructions: "Answer any two questions", Marks: 10, QuestionCount: 2, SortOrder: 1},
	}

	if _, err := s.repo.CreateTemplate(ctx, &template, sections); err != nil {
		return fmt.Errorf("failed to create template: %w", err)
	}
	slog.Info("Seeded template", "title", template.Title)
	return nil
}
