package exam

import (
	"fmt"
	"math"
	"strings"

	"triaright-platform/errors"
	"triaright-platform/models"
)

// Grade scores answers against the exam's correct answers. Unknown question
// ids are ignored.
func Grade(exam *models.Exam, answers map[int]string) models.AttemptResult {
	score := 0
	for _, q := range exam.Questions {
		if a, ok := answers[q.ID]; ok && a == q.CorrectAnswer {
			score++
		}
	}
	total := len(exam.Questions)
	var pct float64
	if total > 0 {
		pct = math.Round(float64(score)/float64(total)*10000) / 100
	}
	return models.AttemptResult{
		Score:      score,
		Total:      total,
		Percentage: pct,
		Passed:     pct >= exam.PassingScore,
	}
}

// ValidateExam checks an exam definition and assigns question ids where missing.
func ValidateExam(exam *models.Exam) error {
	exam.Title = strings.TrimSpace(exam.Title)
	switch {
	case exam.Title == "":
		return errors.E(errors.Invalid, "exam title is required")
	case exam.TimeLimitMinutes <= 0:
		return errors.E(errors.Invalid, "time limit must be positive")
	case exam.PassingScore < 0 || exam.PassingScore > 100:
		return errors.E(errors.Invalid, "passing score must be between 0 and 100")
	case exam.MaxAttempts < 0:
		return errors.E(errors.Invalid, "max attempts cannot be negative")
	}
	return ValidateQuestions(exam.Questions)
}

// ValidateQuestions checks every question and numbers unnumbered ones.
func ValidateQuestions(questions []models.Question) error {
	seen := make(map[int]bool, len(questions))
	next := 1
	for _, q := range questions {
		if q.ID > 0 {
			seen[q.ID] = true
		}
	}
	for i := range questions {
		q := &questions[i]
		if q.ID <= 0 {
			for seen[next] {
				next++
			}
			q.ID = next
			seen[next] = true
		}
		if strings.TrimSpace(q.Text) == "" {
			return errors.E(errors.Invalid, fmt.Sprintf("question %d has no text", i+1))
		}
		if len(q.Options) < 2 {
			return errors.E(errors.Invalid, fmt.Sprintf("question %d needs at least two options", i+1))
		}
		if !q.HasOption(q.CorrectAnswer) {
			return errors.E(errors.Invalid, fmt.Sprintf("question %d: correct answer must be one of the options", i+1))
		}
	}
	ids := make(map[int]bool, len(questions))
	for _, q := range questions {
		if ids[q.ID] {
			return errors.E(errors.Invalid, fmt.Sprintf("duplicate question id %d", q.ID))
		}
		ids[q.ID] = true
	}
	return nil
}
