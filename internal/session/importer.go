package session

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/pavelanni/satsession/internal/model"
	"github.com/pavelanni/satsession/internal/store"
)

// GeneralConcept tags imported questions that arrive without a concept.
const GeneralConcept = "general"

// ImportResult reports what ImportTest did.
type ImportResult struct {
	Test    model.Test
	Skipped bool
}

// ImportTest loads a test from its JSON document. Questions are renumbered
// 1..n in file order. A file whose SHA-256 was imported before is skipped
// and the earlier test is returned.
func (s *Service) ImportTest(ctx context.Context, tutor *model.User, raw []byte) (ImportResult, error) {
	sum := sha256.Sum256(raw)
	hash := hex.EncodeToString(sum[:])
	key := store.ImportedFileKey(hash)

	prev, err := s.store.GetMetadata(ctx, key)
	if err != nil {
		return ImportResult{}, fmt.Errorf("check import history: %w", err)
	}
	if prev != "" {
		t, err := s.store.GetTest(ctx, prev)
		if err == nil {
			slog.Info("test file already imported, skipping", "sha256", hash, "test_id", t.ID)
			return ImportResult{Test: t, Skipped: true}, nil
		}
		slog.Warn("imported test is gone, importing again", "sha256", hash, "test_id", prev)
	}

	var doc model.TestImport
	if err := json.Unmarshal(raw, &doc); err != nil {
		return ImportResult{}, fmt.Errorf("parse test file: %w: %w", model.ErrInvalid, err)
	}
	questions, err := normalizeQuestions(doc.Questions)
	if err != nil {
		return ImportResult{}, err
	}
	name := strings.TrimSpace(doc.Name)
	if name == "" {
		return ImportResult{}, fmt.Errorf("test name is required: %w", model.ErrInvalid)
	}

	t, err := s.store.CreateTest(ctx, model.Test{
		OrgID:     tutor.OrgID,
		Name:      name,
		CreatedBy: tutor.ID,
		CreatedAt: s.now(),
	}, questions)
	if err != nil {
		return ImportResult{}, err
	}
	if err := s.store.SetMetadata(ctx, key, t.ID); err != nil {
		return ImportResult{}, fmt.Errorf("record import: %w", err)
	}
	slog.Info("imported test", "test_id", t.ID, "name", t.Name, "questions", t.TotalQuestions)
	return ImportResult{Test: t}, nil
}

func normalizeQuestions(in []model.QuestionImport) ([]model.Question, error) {
	if len(in) == 0 {
		return nil, fmt.Errorf("test has no questions: %w", model.ErrInvalid)
	}
	out := make([]model.Question, 0, len(in))
	for i, qi := range in {
		if !qi.CorrectAnswer.Valid() {
			return nil, fmt.Errorf("question %d: correct answer %q must be A-D: %w", i+1, qi.CorrectAnswer, model.ErrInvalid)
		}
		section := qi.Section
		switch section {
		case model.SectionMath, model.SectionReadingWriting:
		case "":
			section = model.SectionReadingWriting
		default:
			return nil, fmt.Errorf("question %d: unknown section %q: %w", i+1, section, model.ErrInvalid)
		}
		concept := strings.TrimSpace(qi.ConceptTag)
		if concept == "" {
			concept = GeneralConcept
		}
		out = append(out, model.Question{
			QuestionNumber:   i + 1,
			Text:             qi.Text,
			AnswerA:          qi.AnswerA,
			AnswerB:          qi.AnswerB,
			AnswerC:          qi.AnswerC,
			AnswerD:          qi.AnswerD,
			CorrectAnswer:    qi.CorrectAnswer,
			Section:          section,
			ConceptTag:       concept,
			AIConfidence:     min(max(qi.AIConfidence, 0), 1),
			HasGraphic:       qi.HasGraphic,
			AnswersAreVisual: qi.AnswersAreVisual,
		})
	}
	return out, nil
}
