package generate_test_link_handler

// GenerateTestLinkRequest структура для данных запроса
type GenerateTestLinkRequest struct {
	TestID int `json:"test_id"`
}

// GenerateTestLinkResponse структура для ответа
type GenerateTestLinkResponse struct {
	Link      string `json:"link"`
	Ref       string `json:"ref"`
	QRCodeURL string `json:"qr_code_url"`
}
