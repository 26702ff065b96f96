package repository

import (
	"context"
	"testing"

	"github.com/qforge/qbank/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedQuestions(t *testing.T, repo *Repository, count int) []string {
	t.Helper()
	ids := make([]string, 0, count)
	for i := 0; i < count; i++ {
		q, err := Create(context.Background(), repo, &models.Question{
			Text:  "Question body",
			Type:  "mcq",
			Marks: 1,
		})
		require.NoError(t, err)
		ids = append(ids, q.ID)
	}
	return ids
}

func TestCreatePaperCopiesTemplateTitle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	template := seedTemplate(t, repo)
	questionIDs := seedQuestions(t, repo, 3)

	paper, err := repo.CreatePaper(ctx, template.ID, []PaperSectionInput{
		{
			Section:     models.PaperSection{Title: "Part A", SortOrder: 0},
			QuestionIDs: questionIDs[:2],
		},
		{
			Section:     models.PaperSection{Title: "Part B", SortOrder: 1},
			QuestionIDs: questionIDs[2:],
		},
	})
	require.NoError(t, err)

	assert.Equal(t, template.Title, paper.Title)
	assert.Equal(t, template.ID, paper.TemplateID)
	require.Len(t, paper.Sections, 2)
	require.Len(t, paper.Sections[0].Questions, 2)
	require.Len(t, paper.Sections[1].Questions, 1)
}

func TestCreatePaperMissingTemplate(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.CreatePaper(context.Background(), "no-such-template", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetPaperPreservesQuestionOrder(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	template := seedTemplate(t, repo)
	questionIDs := seedQuestions(t, repo, 3)

	created, err := repo.CreatePaper(ctx, template.ID, []PaperSectionInput{
		{
			Section:     models.PaperSection{Title: "Ordered", SortOrder: 0},
			QuestionIDs: questionIDs,
		},
	})
	require.NoError(t, err)

	got, err := repo.GetPaper(ctx, created.ID)
	require.NoError(t, err)
	require.Len(t, got.Sections, 1)
	refs := got.Sections[0].Questions
	require.Len(t, refs, 3)
	for i, ref := range refs {
		assert.Equal(t, i, ref.SortOrder)
		assert.Equal(t, questionIDs[i], ref.QuestionID)
		require.NotNil(t, ref.Question)
	}
}

func TestDeletePaperRemovesChildren(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	template := seedTemplate(t, repo)
	questionIDs := seedQuestions(t, repo, 2)

	paper, err := repo.CreatePaper(ctx, template.ID, []PaperSectionInput{
		{
			Section:     models.PaperSection{Title: "To Delete", SortOrder: 0},
			QuestionIDs: questionIDs,
		},
	})
	require.NoError(t, err)
	sectionID := paper.Sections[0].ID

	require.NoError(t, repo.DeletePaper(ctx, paper.ID))

	_, err = repo.GetPaper(ctx, paper.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	sections, err := Filter[models.PaperSection](ctx, repo, map[string]any{"paper_id": paper.ID}, "sort_order", true)
	require.NoError(t, err)
	assert.Empty(t, sections)

	refs, err := Filter[models.PaperSectionQuestion](ctx, repo, map[string]any{"section_id": sectionID}, "sort_order", true)
	require.NoError(t, err)
	assert.Empty(t, refs)

	// Bank questions are referenced, not owned; deleting a paper keeps them.
	remaining, err := List[models.Question](ctx, repo, "created_at", true)
	require.NoError(t, err)
	assert.Len(t, remaining, 2)
}

func TestDeletePaperMissingIsNotAnError(t *testing.T) {
	repo := newTestRepository(t)

	assert.NoError(t, repo.DeletePaper(context.Background(), "no-such-id"))
}
