// Package report reads and writes spreadsheets: question banks in, exam
// results out.
package report

import (
	"fmt"
	"io"
	"strings"

	"triaright-platform/errors"
	"triaright-platform/logger"
	"triaright-platform/models"

	"github.com/xuri/excelize/v2"
)

type questionColumns struct {
	question int
	options  []int // one column per option
	joined   int   // single column with options separated by "|"
	answer   int
}

// ParseQuestions reads the first sheet of an xlsx question bank. The header
// row must name a question column, an answer column and either one column
// per option ("Option A", "Option B"...) or a single "Options" column with
// choices separated by "|". Answers may be the option text or its letter.
func ParseQuestions(r io.Reader) ([]models.Question, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, errors.E(errors.Invalid, "failed to open Excel file", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.E(errors.Invalid, "no sheets found in Excel file")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, errors.E(errors.Invalid, "failed to read rows", err)
	}
	if len(rows) < 2 {
		return nil, errors.E(errors.Invalid, "no data in sheet")
	}

	cols := detectQuestionColumns(rows[0])
	if cols.question < 0 || cols.answer < 0 || (len(cols.options) == 0 && cols.joined < 0) {
		return nil, errors.E(errors.Invalid, "sheet must have question, options and answer columns")
	}
	logger.Debug("[REPORT] question columns: %+v", cols)

	var questions []models.Question
	for i := 1; i < len(rows); i++ {
		row := rows[i]
		text := extractField(row, cols.question)
		if text == "" {
			continue
		}

		var options []string
		if cols.joined >= 0 {
			for _, o := range strings.Split(extractField(row, cols.joined), "|") {
				if o = strings.TrimSpace(o); o != "" {
					options = append(options, o)
				}
			}
		}
		for _, idx := range cols.options {
			if o := extractField(row, idx); o != "" {
				options = append(options, o)
			}
		}
		if len(options) < 2 {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("row %d: a question needs at least two options", i+1))
		}

		answer, ok := resolveAnswer(extractField(row, cols.answer), options)
		if !ok {
			return nil, errors.E(errors.Invalid, fmt.Sprintf("row %d: answer does not match any option", i+1))
		}

		questions = append(questions, models.Question{
			ID:            len(questions) + 1,
			Text:          text,
			Options:       options,
			CorrectAnswer: answer,
		})
	}
	if len(questions) == 0 {
		return nil, errors.E(errors.Invalid, "no questions found in sheet")
	}
	return questions, nil
}

func detectQuestionColumns(headers []string) questionColumns {
	cols := questionColumns{question: -1, joined: -1, answer: -1}
	for i, header := range headers {
		lower := strings.ToLower(strings.TrimSpace(header))
		switch {
		case lower == "question" || lower == "question text" || lower == "text":
			cols.question = i
		case lower == "options" || lower == "choices":
			cols.joined = i
		case strings.HasPrefix(lower, "option ") || strings.HasPrefix(lower, "choice "):
			cols.options = append(cols.options, i)
		case lower == "answer" || lower == "correct answer" || lower == "correct":
			cols.answer = i
		}
	}
	return cols
}

// resolveAnswer maps a letter ("B") or the option text itself to the option.
func resolveAnswer(raw string, options []string) (string, bool) {
	if raw == "" {
		return "", false
	}
	for _, o := range options {
		if strings.EqualFold(o, raw) {
			return o, true
		}
	}
	if len(raw) == 1 {
		idx := int(strings.ToUpper(raw)[0] - 'A')
		if idx >= 0 && idx < len(options) {
			return options[idx], true
		}
	}
	return "", false
}

func extractField(row []string, index int) string {
	if index < 0 || index >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[index])
}
