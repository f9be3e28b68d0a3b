package service

import "errors"

var (
	// ErrCannotStart старт теста или загрузка вопросов не удались
	ErrCannotStart = errors.New("cannot start assessment")
	// ErrStartCancelled пользователь отказался от старта при конфликте
	ErrStartCancelled = errors.New("start cancelled by user")
	ErrCannotResume   = errors.New("cannot resume assessment")
	ErrNoQuestions    = errors.New("assessment has no questions")

	ErrNotActive       = errors.New("assessment is not in progress")
	ErrOutOfRange      = errors.New("question index out of range")
	ErrUnknownQuestion = errors.New("question does not belong to assessment")
	ErrNotPresented    = errors.New("question has not been presented yet")
	ErrSubmitInFlight  = errors.New("previous answer is still being saved")
	// ErrTimeUp время вышло: ответы и навигация закрыты, остается только завершение
	ErrTimeUp = errors.New("time is up")
	ErrInvalidAnswer   = errors.New("invalid answer")
)
