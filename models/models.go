package models

// This file serves as the central export point for all database models
// Import this package to access all model types

// All models are automatically exported from their respective files:
// - User, Profile, RefreshToken, PermanentToken from user.go
// - Program, Course, Subject, Question from catalog.go
// - Candidate, Classroom, Exam from exam.go
// - PaperTemplate, TemplateSection from template.go
// - QuestionPaper, PaperSection, PaperSectionQuestion from paper.go

// Database schema overview:
// 1. users - Managed by cookie-based authentication
// 2. profiles - Role-bearing record keyed by user id, created on first login
// 3. programs/courses/subjects - The catalog hierarchy questions hang off
// 4. questions - The question bank
// 5. candidates/classrooms/exams - The examination register
// 6. paper_templates/template_sections - Paper blueprints with ordered sections
// 7. question_papers/paper_sections/paper_section_questions - Generated papers
