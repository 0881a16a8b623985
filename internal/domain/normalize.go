package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// ValidateConfig normalizes and validates a create-session payload in place:
// trims text, forces choices onto the A-D layout, and degrades a correct key
// that points at a disabled slot to poll mode.
func ValidateConfig(cfg *SessionConfig) error {
	cfg.Title = strings.TrimSpace(cfg.Title)
	if cfg.Title == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if len(cfg.Questions) == 0 {
		return fmt.Errorf("%w: at least one question is required", ErrValidation)
	}
	if cfg.SecondsPerQuestion != nil && *cfg.SecondsPerQuestion <= 0 {
		cfg.SecondsPerQuestion = nil
	}
	for i := range cfg.Questions {
		q, err := normalizeQuestion(cfg.Questions[i])
		if err != nil {
			return err
		}
		cfg.Questions[i] = q
	}
	return nil
}

func normalizeQuestion(q Question) (Question, error) {
	q.ID = strings.TrimSpace(q.ID)
	q.Prompt = strings.TrimSpace(q.Prompt)
	if q.ID == "" || q.Prompt == "" {
		return q, fmt.Errorf("%w: each question needs an id and a prompt", ErrValidation)
	}

	choices := make(map[string]string, len(ChoiceKeys))
	populated := 0
	for _, key := range ChoiceKeys {
		text := strings.TrimSpace(q.Choices[key])
		choices[key] = text
		if text != "" {
			populated++
		}
	}
	if populated < 2 {
		return q, fmt.Errorf("%w: question %q needs at least 2 options", ErrValidation, q.Prompt)
	}
	q.Choices = choices

	correct := strings.ToUpper(strings.TrimSpace(q.Correct))
	if choices[correct] == "" {
		correct = ""
	}
	q.Correct = correct
	return q, nil
}

// savedQuestion mirrors the loose shapes the frontend's quiz bank has stored
// over time: prompts under several names, choices as an object or an array,
// and the correct answer as a key, an index, or the option text itself.
type savedQuestion struct {
	ID       string          `json:"id"`
	Prompt   string          `json:"prompt"`
	Question string          `json:"question"`
	Text     string          `json:"text"`
	Choices  json.RawMessage `json:"choices"`
	Options  json.RawMessage `json:"options"`
	Correct  json.RawMessage `json:"correct"`
	Answer   json.RawMessage `json:"answer"`
}

// ParseSavedQuiz normalizes an untrusted saved-quiz document into canonical
// questions. The bank is written by several frontend versions, so the shape
// is treated as a variant type and resolved once here; anything that does not
// land on at least 2 populated choices is rejected.
func ParseSavedQuiz(raw []byte) ([]Question, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty quiz document", ErrValidation)
	}

	var items []savedQuestion
	if strings.HasPrefix(trimmed, "{") {
		var wrapper struct {
			Questions []savedQuestion `json:"questions"`
		}
		if err := json.Unmarshal(raw, &wrapper); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrValidation, err)
		}
		items = wrapper.Questions
	} else if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: quiz has no questions", ErrValidation)
	}

	questions := make([]Question, 0, len(items))
	for i, item := range items {
		q, err := resolveSavedQuestion(item, i)
		if err != nil {
			return nil, err
		}
		questions = append(questions, q)
	}
	return questions, nil
}

func resolveSavedQuestion(item savedQuestion, idx int) (Question, error) {
	prompt := firstNonEmpty(item.Prompt, item.Question, item.Text)

	id := strings.TrimSpace(item.ID)
	if id == "" {
		id = fmt.Sprintf("q%d", idx+1)
	}

	choicesRaw := item.Choices
	if len(choicesRaw) == 0 {
		choicesRaw = item.Options
	}
	choices, err := resolveChoices(choicesRaw)
	if err != nil {
		return Question{}, fmt.Errorf("%w: question %q: %v", ErrValidation, prompt, err)
	}

	correctRaw := item.Correct
	if len(correctRaw) == 0 {
		correctRaw = item.Answer
	}

	return normalizeQuestion(Question{
		ID:      id,
		Prompt:  prompt,
		Choices: choices,
		Correct: resolveCorrect(correctRaw, choices),
	})
}

func resolveChoices(raw json.RawMessage) (map[string]string, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("missing choices")
	}

	var asMap map[string]string
	if err := json.Unmarshal(raw, &asMap); err == nil {
		choices := make(map[string]string, len(ChoiceKeys))
		for key, text := range asMap {
			key = strings.ToUpper(strings.TrimSpace(key))
			if len(key) == 1 && strings.Contains("ABCD", key) {
				choices[key] = text
			}
		}
		return choices, nil
	}

	var asList []string
	if err := json.Unmarshal(raw, &asList); err == nil {
		choices := make(map[string]string, len(ChoiceKeys))
		for i, text := range asList {
			if i >= len(ChoiceKeys) {
				break
			}
			choices[ChoiceKeys[i]] = text
		}
		return choices, nil
	}

	return nil, fmt.Errorf("unrecognized choices shape")
}

// resolveCorrect maps whatever the bank stored (a key, a zero-based index, or
// the full option text) to a choice key, or "" for poll questions.
func resolveCorrect(raw json.RawMessage, choices map[string]string) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}

	var asString string
	if err := json.Unmarshal(raw, &asString); err == nil {
		key := strings.ToUpper(strings.TrimSpace(asString))
		if len(key) == 1 && strings.Contains("ABCD", key) {
			return key
		}
		for _, candidate := range ChoiceKeys {
			if strings.EqualFold(strings.TrimSpace(choices[candidate]), strings.TrimSpace(asString)) && choices[candidate] != "" {
				return candidate
			}
		}
		return ""
	}

	var asIndex int
	if err := json.Unmarshal(raw, &asIndex); err == nil {
		if asIndex >= 0 && asIndex < len(ChoiceKeys) {
			return ChoiceKeys[asIndex]
		}
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
