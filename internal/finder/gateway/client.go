// Package gateway sends Smart Finder leads to the lead API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"smartfinder_backend/platform/apperr"
)

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 64 << 10
	msgLeadFailed   = "lead submission failed"
)

// Lead is the flat record the lead API accepts. Only email is always sent.
type Lead struct {
	Email            string `json:"email"`
	FirstName        string `json:"firstName,omitempty"`
	LastName         string `json:"lastName,omitempty"`
	Phone            string `json:"phone,omitempty"`
	AppInterest      string `json:"app_interest,omitempty"`
	Category         string `json:"category,omitempty"`
	RestaurantName   string `json:"restaurant_name,omitempty"`
	RestaurantTables string `json:"restaurant_tables,omitempty"`
	ProductsCount    string `json:"products_count,omitempty"`
	Modules          string `json:"modules,omitempty"`
	Message          string `json:"message,omitempty"`
}

// Response is the lead API reply.
type Response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// Submitter posts a lead.
type Submitter interface {
	Submit(ctx context.Context, lead Lead) (Response, error)
}

// Client posts leads as JSON to a single endpoint.
type Client struct {
	endpoint string
	http     *http.Client
}

// NewClient creates a client for endpoint. A nil httpClient gets a 10s timeout.
func NewClient(endpoint string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Submit posts lead. Transport errors, unreadable replies and success:false
// all come back as apperr.KindUpstream.
func (c *Client) Submit(ctx context.Context, lead Lead) (Response, error) {
	const op = "gateway.Submit"

	body, err := json.Marshal(lead)
	if err != nil {
		return Response{}, apperr.Upstream(msgLeadFailed, err).WithOp(op)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return Response{}, apperr.Upstream(msgLeadFailed, err).WithOp(op)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, apperr.Upstream(msgLeadFailed, err).WithOp(op)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return Response{}, apperr.Upstream(msgLeadFailed, err).WithOp(op)
	}

	var out Response
	if err := json.Unmarshal(raw, &out); err != nil {
		return Response{}, apperr.Upstream(msgLeadFailed, fmt.Errorf("HTTP %d: undecodable reply: %w", resp.StatusCode, err)).WithOp(op)
	}
	if !out.Success {
		reason := out.Message
		if reason == "" {
			reason = fmt.Sprintf("HTTP %d", resp.StatusCode)
		}
		return out, apperr.Upstream(msgLeadFailed, errors.New(reason)).WithOp(op).WithDetails(out.Message)
	}
	return out, nil
}
