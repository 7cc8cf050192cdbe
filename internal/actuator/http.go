package actuator

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/skyops/dronectl/internal/model"
)

// commandRequest is the JSON body POSTed to the backend's /command endpoint.
type commandRequest struct {
	Action     string         `json:"action"`
	Parameters map[string]any `json:"parameters,omitempty"`
}

// commandResponse is the backend's reply shape.
type commandResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ErrorCode string `json:"error_code,omitempty"`
}

// Client invokes a drone control backend over JSON/HTTP.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient builds a client for the given base endpoint. The per-command
// deadline comes from the caller's ctx, so no client-level timeout is set.
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     &http.Client{},
	}
}

// Invoke POSTs the command and maps the response to an OperationOutcome.
// Transport failures and context deadlines surface as errors; HTTP-level
// rejections become failed outcomes.
func (c *Client) Invoke(ctx context.Context, action string, params map[string]any) (model.OperationOutcome, error) {
	body, err := json.Marshal(commandRequest{Action: action, Parameters: params})
	if err != nil {
		return model.OperationOutcome{}, fmt.Errorf("marshal command: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/command", bytes.NewReader(body))
	if err != nil {
		return model.OperationOutcome{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.OperationOutcome{}, fmt.Errorf("invoke %s: %w", action, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return model.OperationOutcome{}, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return model.OperationOutcome{
			Success:   false,
			Message:   fmt.Sprintf("backend returned %s", resp.Status),
			ErrorCode: model.CodeExecution,
		}, nil
	}

	var cr commandResponse
	if err := json.Unmarshal(data, &cr); err != nil {
		return model.OperationOutcome{}, fmt.Errorf("parse response: %w", err)
	}

	out := model.OperationOutcome{Success: cr.Success, Message: cr.Message, ErrorCode: cr.ErrorCode}
	if !cr.Success && out.ErrorCode == "" {
		out.ErrorCode = model.CodeExecution
	}
	return out, nil
}
