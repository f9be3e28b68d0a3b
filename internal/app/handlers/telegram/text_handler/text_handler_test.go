package text_handler

import (
	"reflect"
	"testing"

	"github.com/IT-Nick/assessbot/internal/domain/model"
)

func TestTextValue(t *testing.T) {
	options := []model.Option{{Value: "a"}, {Value: "b"}, {Value: "c"}}

	v, err := TextValue(model.Question{Type: model.QuestionMultiChoice, Options: options}, " 1, 3 ")
	if err != nil || !reflect.DeepEqual(v, []string{"a", "c"}) {
		t.Errorf("ожидались a и c, получено %v, %v", v, err)
	}
	if _, err := TextValue(model.Question{Type: model.QuestionMultiChoice, Options: options}, "1,4"); err == nil {
		t.Errorf("номер вне диапазона должен отклоняться")
	}
	if v, _ := TextValue(model.Question{Type: model.QuestionSingleChoice, Options: options}, "2"); v != "b" {
		t.Errorf("ожидался b, получено %v", v)
	}
	if v, _ := TextValue(model.Question{Type: model.QuestionCode}, "  fmt.Println()  "); v != "fmt.Println()" {
		t.Errorf("неожиданный текст %q", v)
	}
}
