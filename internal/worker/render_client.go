package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"talentbridge/internal/errcode"
	"talentbridge/internal/resume"
)

// renderData 是内部渲染接口返回的简历数据。
type renderData struct {
	ID      uint           `json:"id"`
	UserID  uint           `json:"user_id"`
	Title   string         `json:"title"`
	Content resume.Content `json:"content"`
}

type renderDataEnvelope struct {
	Code    int        `json:"code"`
	Message string     `json:"message"`
	Data    renderData `json:"data"`
}

// fetchRenderData 从 API 的内部接口拉取渲染 PDF 所需的简历数据。
// 仅 Worker 通过 Header 携带 INTERNAL_API_SECRET 访问。
func fetchRenderData(ctx context.Context, internalAPIBaseURL string, resumeID uint, secret string, correlationID string) (*renderData, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, fmt.Errorf("internal api secret missing")
	}

	internalAPIBaseURL = strings.TrimRight(strings.TrimSpace(internalAPIBaseURL), "/")
	if internalAPIBaseURL == "" {
		return nil, fmt.Errorf("internal api base url missing")
	}

	targetURL := fmt.Sprintf("%s/v1/internal/resumes/%d/render-data", internalAPIBaseURL, resumeID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build internal request: %w", err)
	}
	req.Header.Set("X-Internal-Secret", secret)
	if correlationID != "" {
		req.Header.Set("X-Correlation-ID", correlationID)
	}

	client := &http.Client{Timeout: 15 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request internal render data: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, fmt.Errorf("internal render data status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var envelope renderDataEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("decode internal render data: %w", err)
	}
	if envelope.Code != errcode.OK {
		return nil, fmt.Errorf("internal render data code %d: %s", envelope.Code, envelope.Message)
	}

	return &envelope.Data, nil
}
