package model

// QuestionType тип вопроса, определяет форму ответа
type QuestionType string

const (
	QuestionSingleChoice QuestionType = "single_choice"
	QuestionMultiChoice  QuestionType = "multi_choice"
	QuestionBoolean      QuestionType = "boolean"
	QuestionFreeText     QuestionType = "free_text"
	QuestionCode         QuestionType = "code"
)

// Option вариант ответа
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Question представляет вопрос теста. После получения для сессии не меняется.
type Question struct {
	ID      int          `json:"id"`
	Prompt  string       `json:"prompt"`
	Type    QuestionType `json:"type"`
	Options []Option     `json:"options,omitempty"`
	Order   int          `json:"order"`
	Points  int          `json:"points"`
}

// HasOption проверяет, что value входит в список вариантов
func (q Question) HasOption(value string) bool {
	for _, o := range q.Options {
		if o.Value == value {
			return true
		}
	}
	return false
}
