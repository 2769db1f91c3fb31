// Package ai proxies resume-writing assistance to a Gemini-style
// generateContent endpoint. Stateless: one prompt in, first candidate out.
package ai

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
)

// ErrMissingCredential 表示未配置 API Key。
var ErrMissingCredential = errors.New("ai api key is not configured")

// GenerationError 表示上游没有返回任何候选结果。
type GenerationError struct {
	Message string
}

func (e *GenerationError) Error() string {
	if e.Message == "" {
		return "generation failed: no candidates returned"
	}
	return "generation failed: " + e.Message
}

// Action 选择指令模板。
const (
	ActionImprove  = "improve"
	ActionGenerate = "generate"
	ActionAnalyze  = "analyze"
)

// AssistRequest 是一次辅助请求。Resume 可选，作为上下文拼接。
type AssistRequest struct {
	Prompt string
	Resume string
	Action string
}

// 固定采样参数，与原有代理保持一致。
type generationConfig struct {
	Temperature     float64 `json:"temperature"`
	TopK            int     `json:"topK"`
	TopP            float64 `json:"topP"`
	MaxOutputTokens int     `json:"maxOutputTokens"`
}

type contentPart struct {
	Text string `json:"text"`
}

type content struct {
	Role  string        `json:"role"`
	Parts []contentPart `json:"parts"`
}

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []contentPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Client 调用生成式后端。
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient 构造 AI 客户端。apiKey 为空时 Generate 直接失败。
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// instructionFor 把动作映射为角色指令；未知动作按透传处理。
func instructionFor(action string) string {
	switch action {
	case ActionImprove:
		return "You are a professional resume writer. Improve the following text to be more impactful and professional, keeping the same meaning. Return only the improved text."
	case ActionGenerate:
		return "You are a professional resume writer. Generate concise, achievement-oriented resume content based on the following description. Return only the generated text."
	case ActionAnalyze:
		return "You are a career advisor. Analyze the following resume content and list concrete, prioritized improvements."
	default:
		return ""
	}
}

// Generate 组装指令与提示词并调用上游，返回第一个候选的文本。
func (c *Client) Generate(ctx context.Context, req AssistRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingCredential
	}
	if strings.TrimSpace(req.Prompt) == "" {
		return "", errors.New("prompt is required")
	}

	var sb strings.Builder
	if instruction := instructionFor(req.Action); instruction != "" {
		sb.WriteString(instruction)
		sb.WriteString("\n\n")
	}
	if strings.TrimSpace(req.Resume) != "" {
		sb.WriteString("Resume context:\n")
		sb.WriteString(req.Resume)
		sb.WriteString("\n\n")
	}
	sb.WriteString(req.Prompt)

	body := generateRequest{
		Contents: []content{
			{Role: "user", Parts: []contentPart{{Text: sb.String()}}},
		},
		GenerationConfig: generationConfig{
			Temperature:     0.4,
			TopK:            32,
			TopP:            1,
			MaxOutputTokens: 2048,
		},
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal generate request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("build generate request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("request generation backend: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read generation response: %w", err)
	}

	var parsed generateResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return "", fmt.Errorf("decode generation response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || len(parsed.Candidates) == 0 {
		msg := ""
		if parsed.Error != nil {
			msg = parsed.Error.Message
		}
		return "", &GenerationError{Message: msg}
	}

	parts := parsed.Candidates[0].Content.Parts
	if len(parts) == 0 {
		return "", &GenerationError{}
	}
	return parts[0].Text, nil
}
