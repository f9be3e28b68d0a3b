package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrConflict         = errors.New("assessment already in progress")
	ErrAlreadySubmitted = errors.New("assessment already submitted")
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrBadRequest       = errors.New("bad request")
	ErrValidation       = errors.New("validation failed")
	ErrTransient        = errors.New("temporary backend failure")
)

// APIError ошибка, возвращенная бэкендом, с причиной из тела ответа
type APIError struct {
	Status int
	Reason string
	// AssessmentID заполняется, если бэкенд сослался на существующую сессию
	AssessmentID string
	kind         error
}

func (e *APIError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("backend responded %d", e.Status)
	}
	return fmt.Sprintf("backend responded %d: %s", e.Status, e.Reason)
}

func (e *APIError) Unwrap() error {
	return e.kind
}

// ConflictError сессия по этому тесту уже идет; AssessmentID указывает на нее
type ConflictError struct {
	AssessmentID string
	Reason       string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("assessment %s already in progress", e.AssessmentID)
}

func (e *ConflictError) Unwrap() error {
	return ErrConflict
}

// AsConflict достает ConflictError из цепочки ошибок
func AsConflict(err error) (*ConflictError, bool) {
	var conflict *ConflictError
	if errors.As(err, &conflict) {
		return conflict, true
	}
	return nil, false
}

// classify сопоставляет HTTP-статус с категорией ошибки
func classify(status int) error {
	switch {
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return ErrForbidden
	case status == http.StatusBadRequest:
		return ErrBadRequest
	case status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests || status >= 500:
		return ErrTransient
	default:
		return ErrBadRequest
	}
}
