package chat

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// MaxQuestionBytes bounds a single question.
const MaxQuestionBytes = 4000

// ErrInvalidQuestion wraps every question validation failure.
var ErrInvalidQuestion = errors.New("invalid question")

var injectionPattern = regexp.MustCompile(
	`(?i)(ignore\s+(previous|all|above)|system\s*prompt|you\s+are\s+now|` +
		`act\s+as\s+|pretend\s+|forget\s+(everything|all)|override|` +
		`new\s+instructions)`,
)

// ValidateQuestion trims q and checks it can be sent to the model.
func ValidateQuestion(q string) (string, error) {
	q = strings.TrimSpace(q)
	switch {
	case q == "":
		return "", fmt.Errorf("%w: question is empty", ErrInvalidQuestion)
	case !utf8.ValidString(q):
		return "", fmt.Errorf("%w: question is not valid UTF-8", ErrInvalidQuestion)
	case len(q) > MaxQuestionBytes:
		return "", fmt.Errorf("%w: question exceeds %d bytes", ErrInvalidQuestion, MaxQuestionBytes)
	}
	return q, nil
}

// looksLikeInjection reports text that tries to steer the model away from
// the system prompt. Such questions are answered but logged.
func looksLikeInjection(s string) bool {
	return injectionPattern.MatchString(s)
}

// sessionTitle derives a short title from the opening question.
func sessionTitle(q string) string {
	const maxRunes = 60
	q = strings.Join(strings.Fields(q), " ")
	if utf8.RuneCountInString(q) <= maxRunes {
		return q
	}
	r := []rune(q)
	return strings.TrimSpace(string(r[:maxRunes])) + "..."
}
