package feedback

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/JonMunkholm/importcheck/internal/core"
)

// CellRequest is the body of POST /api/templates/{id}/validate-cell.
type CellRequest struct {
	Column string `json:"column"`
	Value  string `json:"value"`
}

// CellResponse is its success body. Error is null when the value passes.
type CellResponse struct {
	Valid bool                  `json:"valid"`
	Error *core.ValidationError `json:"error"`
}

// errorBody mirrors the server's JSON error envelope.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// HTTPChecker checks cells against one template through the HTTP API.
type HTTPChecker struct {
	client   *http.Client
	endpoint string
	userID   string
}

// NewHTTPChecker returns a checker for templateID on the server at
// baseURL. A nil client uses http.DefaultClient.
func NewHTTPChecker(client *http.Client, baseURL, templateID string) (*HTTPChecker, error) {
	if client == nil {
		client = http.DefaultClient
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if templateID == "" {
		return nil, errors.New("template id is required")
	}
	endpoint := base.JoinPath("api", "templates", templateID, "validate-cell")
	return &HTTPChecker{client: client, endpoint: endpoint.String()}, nil
}

// WithUser sets the X-User-ID header sent with every request.
func (c *HTTPChecker) WithUser(userID string) *HTTPChecker {
	c.userID = userID
	return c
}

func (c *HTTPChecker) CheckCell(ctx context.Context, label, value string) (*core.ValidationError, error) {
	body, err := json.Marshal(CellRequest{Column: label, Value: value})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w", core.ErrTimeout, err)
		}
		return nil, fmt.Errorf("validate cell: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var eb errorBody
		if err := json.NewDecoder(resp.Body).Decode(&eb); err != nil || eb.Message == "" {
			return nil, fmt.Errorf("validate cell: unexpected status %d", resp.StatusCode)
		}
		if resp.StatusCode == http.StatusGatewayTimeout {
			return nil, fmt.Errorf("%w: %s", core.ErrTimeout, eb.Message)
		}
		return nil, fmt.Errorf("%s (Code: %s)", eb.Message, eb.Code)
	}

	var out CellResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if out.Valid {
		return nil, nil
	}
	if out.Error == nil {
		e := core.NewValidationError(label, "invalid value")
		return &e, nil
	}
	return out.Error, nil
}
