// Package github fetches public GitHub profiles and their recent
// repositories. Two sequential calls, no caching, no retries; upstream
// failures propagate to the caller.
package github

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// ErrNotFound 表示用户名无法解析。
var ErrNotFound = errors.New("github user not found")

// UpstreamError 表示 GitHub 返回了非 2xx/404 的响应。
type UpstreamError struct {
	Status int
	Body   string
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("github upstream status %d: %s", e.Status, e.Body)
}

// Profile 是 /users/{username} 响应中本服务关心的字段。
type Profile struct {
	Login       string `json:"login"`
	Name        string `json:"name"`
	Bio         string `json:"bio"`
	AvatarURL   string `json:"avatar_url"`
	HTMLURL     string `json:"html_url"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Blog        string `json:"blog"`
	Followers   int    `json:"followers"`
	Following   int    `json:"following"`
	PublicRepos int    `json:"public_repos"`
}

// Repository 是 /users/{username}/repos 响应中本服务关心的字段。
type Repository struct {
	Name        string   `json:"name"`
	FullName    string   `json:"full_name"`
	Description string   `json:"description"`
	HTMLURL     string   `json:"html_url"`
	Language    string   `json:"language"`
	Stars       int      `json:"stargazers_count"`
	Forks       int      `json:"forks_count"`
	Topics      []string `json:"topics"`
	UpdatedAt   string   `json:"updated_at"`
}

// Result 聚合一次抓取的产出。
type Result struct {
	Profile      Profile      `json:"profile"`
	Repositories []Repository `json:"repositories"`
}

// Client 访问 GitHub REST API。
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient 构造 GitHub 客户端。
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

const recentRepoLimit = 10

// Fetch 顺序拉取用户资料与最近更新的 10 个仓库。
func (c *Client) Fetch(ctx context.Context, username string) (*Result, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, errors.New("username is required")
	}

	var profile Profile
	profileURL := fmt.Sprintf("%s/users/%s", c.baseURL, username)
	if err := c.getJSON(ctx, profileURL, &profile); err != nil {
		return nil, err
	}

	var repos []Repository
	reposURL := fmt.Sprintf("%s/users/%s/repos?sort=updated&per_page=%d", c.baseURL, username, recentRepoLimit)
	if err := c.getJSON(ctx, reposURL, &repos); err != nil {
		return nil, err
	}

	return &Result{Profile: profile, Repositories: repos}, nil
}

func (c *Client) getJSON(ctx context.Context, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build github request: %w", err)
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request github: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		return &UpstreamError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode github response: %w", err)
	}
	return nil
}
