// Package exec calls the remote code execution service (a Piston-style
// HTTP API). It reports transport and protocol failures as plain
// errors; turning those into user-visible output is the engine's job.
package exec

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/sharepad/sharepad/internal/core"
	"github.com/sharepad/sharepad/internal/domain"
)

const DefaultURL = "https://emkc.org/api/v2/piston/execute"

// Request describes one execution: the buffer snapshot the client sent
// with the intent, not whatever the room holds by the time we run.
type Request struct {
	Language domain.LanguageID
	Version  string
	Source   string
	Stdin    string
}

type Client struct {
	url   string
	inner *http.Client
}

// New builds a client with the given endpoint and transport timeout.
// The timeout is the only bound on a run; a hung service stalls one
// pending result, nothing else.
func New(url string, timeout time.Duration) *Client {
	if url == "" {
		url = DefaultURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		url:   url,
		inner: &http.Client{Timeout: timeout},
	}
}

type executeBody struct {
	Language domain.LanguageID `json:"language"`
	Version  string            `json:"version"`
	Files    []executeFile     `json:"files"`
	Stdin    string            `json:"stdin"`
}

type executeFile struct {
	Content string `json:"content"`
}

func (c *Client) Execute(ctx context.Context, req Request) (core.ExecResult, error) {
	body := executeBody{
		Language: req.Language,
		Version:  req.Version,
		Files:    []executeFile{{Content: req.Source}},
		Stdin:    req.Stdin,
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return core.ExecResult{}, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(raw))
	if err != nil {
		return core.ExecResult{}, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.inner.Do(httpReq)
	if err != nil {
		return core.ExecResult{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return core.ExecResult{}, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return core.ExecResult{}, fmt.Errorf("execute failed with status %d", resp.StatusCode)
	}

	var res core.ExecResult
	if err := json.Unmarshal(respBody, &res); err != nil {
		return core.ExecResult{}, fmt.Errorf("decode execute response: %w", err)
	}
	return res, nil
}
