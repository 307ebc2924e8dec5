package model

// GenerateRequest 是 POST /generate 的请求体。
type GenerateRequest struct {
	Query string `json:"query"`
}

// GenerateResponse 是成功时的响应体。
type GenerateResponse struct {
	Response string `json:"response"`
}

// ErrorResponse 是失败时的响应体。
type ErrorResponse struct {
	Error string `json:"error"`
}

// SearchResponse 是 GET /api/v1/search 的响应体。
type SearchResponse struct {
	Query   string   `json:"query"`
	Results []Record `json:"results"`
}
