package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type tokenKey struct{}

// WithToken кладет токен пользователя в контекст запроса
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func tokenFrom(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}

// Client клиент REST API бэкенда оценки навыков
type Client struct {
	baseURL string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient создает клиента. baseURL без завершающего слэша, например https://host/api
func NewClient(baseURL string, timeout time.Duration, logger *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger.Named("backend"),
	}
}

// envelope общий формат ответа бэкенда
type envelope struct {
	Data         json.RawMessage `json:"data"`
	Message      string          `json:"message"`
	AssessmentID string          `json:"assessment_id"`
}

// do выполняет запрос и раскладывает data в out. Повторов нет: повтор инициирует пользователь.
func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := tokenFrom(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("request failed",
			zap.String("method", method), zap.String("path", path),
			zap.String("request_id", requestID), zap.Error(err))
		if errors.Is(err, context.Canceled) {
			return err
		}
		return fmt.Errorf("%s %s: %w: %v", method, path, ErrTransient, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s %s: read body: %w: %v", method, path, ErrTransient, err)
	}

	c.logger.Debug("request done",
		zap.String("method", method), zap.String("path", path),
		zap.Int("status", resp.StatusCode), zap.Duration("latency", time.Since(started)),
		zap.String("request_id", requestID))

	var env envelope
	if len(raw) > 0 {
		// тело ошибки может быть не JSON, тогда причина берется как текст
		if err := json.Unmarshal(raw, &env); err != nil && resp.StatusCode < 300 {
			return fmt.Errorf("%s %s: decode response: %w", method, path, err)
		} else if err != nil {
			env.Message = strings.TrimSpace(string(raw))
		}
	}

	if resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Reason: env.Message, kind: classify(resp.StatusCode)}
		apiErr.AssessmentID = env.AssessmentID
		if apiErr.AssessmentID == "" && len(env.Data) > 0 {
			var ref struct {
				AssessmentID string `json:"assessment_id"`
			}
			if json.Unmarshal(env.Data, &ref) == nil {
				apiErr.AssessmentID = ref.AssessmentID
			}
		}
		return apiErr
	}

	if out == nil || len(env.Data) == 0 || string(env.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%s %s: decode data: %w", method, path, err)
	}
	return nil
}
