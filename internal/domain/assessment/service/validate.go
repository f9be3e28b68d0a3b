package service

import (
	"fmt"
	"strings"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

// NormalizeAnswer проверяет, что значение подходит к типу вопроса, и приводит его к форме,
// которую ожидает сервер: string для single_choice, free_text и code, []string для multi_choice, bool для boolean.
func NormalizeAnswer(q model.Question, value any) (any, error) {
	switch q.Type {
	case model.QuestionSingleChoice:
		s, ok := value.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: question %d expects one option", ErrInvalidAnswer, q.ID)
		}
		if len(q.Options) > 0 && !q.HasOption(s) {
			return nil, fmt.Errorf("%w: unknown option %q", ErrInvalidAnswer, s)
		}
		return s, nil

	case model.QuestionMultiChoice:
		values, err := toStrings(value)
		if err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidAnswer, q.ID, err)
		}
		if len(values) == 0 {
			return nil, fmt.Errorf("%w: question %d expects at least one option", ErrInvalidAnswer, q.ID)
		}
		seen := make(map[string]bool, len(values))
		out := make([]string, 0, len(values))
		for _, v := range values {
			if len(q.Options) > 0 && !q.HasOption(v) {
				return nil, fmt.Errorf("%w: unknown option %q", ErrInvalidAnswer, v)
			}
			if seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
		return out, nil

	case model.QuestionBoolean:
		switch v := value.(type) {
		case bool:
			return v, nil
		case string:
			switch strings.ToLower(v) {
			case "true", "yes", "да":
				return true, nil
			case "false", "no", "нет":
				return false, nil
			}
		}
		return nil, fmt.Errorf("%w: question %d expects true or false", ErrInvalidAnswer, q.ID)

	case model.QuestionFreeText, model.QuestionCode:
		s, ok := value.(string)
		if !ok || strings.TrimSpace(s) == "" {
			return nil, fmt.Errorf("%w: question %d expects non-empty text", ErrInvalidAnswer, q.ID)
		}
		if q.Type == model.QuestionFreeText {
			s = strings.TrimSpace(s)
		}
		return s, nil
	}

	return nil, fmt.Errorf("%w: unsupported question type %q", ErrInvalidAnswer, q.Type)
}

func toStrings(value any) ([]string, error) {
	switch v := value.(type) {
	case []string:
		return v, nil
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, fmt.Errorf("option %v is not a string", item)
			}
			out = append(out, s)
		}
		return out, nil
	case string:
		if v == "" {
			return nil, nil
		}
		return []string{v}, nil
	}
	return nil, fmt.Errorf("unexpected value of type %T", value)
}
