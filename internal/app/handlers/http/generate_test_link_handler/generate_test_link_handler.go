package generate_test_link_handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/skip2/go-qrcode"
	"go.uber.org/zap"

	httpResponse "github.com/IT-Nick/assessbot/pkg/http"
)

// refPattern допустимые символы метки в параметре start
var refPattern = regexp.MustCompile(`^[A-Za-z0-9]{1,32}$`)

// DeepLink ссылка на запуск теста в боте. ref метка приглашения, попадает в логи при старте.
func DeepLink(botUsername string, testID int, ref string) string {
	payload := fmt.Sprintf("test_%d", testID)
	if ref != "" {
		payload += "_" + ref
	}
	return fmt.Sprintf("https://t.me/%s?start=%s", botUsername, payload)
}

// GenerateTestLinkHandler структура для обработчика
type GenerateTestLinkHandler struct {
	botUsername string
	logger      *zap.Logger
}

// NewGenerateTestLinkHandler создает новый экземпляр обработчика
func NewGenerateTestLinkHandler(botUsername string, logger *zap.Logger) *GenerateTestLinkHandler {
	return &GenerateTestLinkHandler{
		botUsername: botUsername,
		logger:      logger,
	}
}

// ServeHTTP метод для обработки запроса
func (h *GenerateTestLinkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var req GenerateTestLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.TestID <= 0 {
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Missing test_id")
		return
	}

	// Генерируем уникальную метку приглашения
	ref := strings.ReplaceAll(uuid.New().String(), "-", "")

	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	qrURL := fmt.Sprintf("%s://%s/tests/%d/qr.png?ref=%s", scheme, r.Host, req.TestID, url.QueryEscape(ref))

	h.logger.Info("test link generated", zap.Int("test_id", req.TestID), zap.String("ref", ref))
	httpResponse.JSONResponse(w, http.StatusOK, GenerateTestLinkResponse{
		Link:      DeepLink(h.botUsername, req.TestID, ref),
		Ref:       ref,
		QRCodeURL: qrURL,
	})
}

// QRCodeHandler отдает PNG с QR-кодом ссылки на тест
type QRCodeHandler struct {
	botUsername string
	size        int
}

func NewQRCodeHandler(botUsername string) *QRCodeHandler {
	return &QRCodeHandler{botUsername: botUsername, size: 256}
}

func (h *QRCodeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	testID, err := strconv.Atoi(mux.Vars(r)["id"])
	if err != nil || testID <= 0 {
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Invalid test id")
		return
	}
	ref := r.URL.Query().Get("ref")
	if ref != "" && !refPattern.MatchString(ref) {
		httpResponse.ErrorResponse(w, http.StatusBadRequest, "Invalid ref")
		return
	}

	png, err := qrcode.Encode(DeepLink(h.botUsername, testID, ref), qrcode.Medium, h.size)
	if err != nil {
		httpResponse.ErrorResponse(w, http.StatusInternalServerError, fmt.Sprintf("Failed to generate QR code: %v", err))
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}
