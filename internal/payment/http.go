package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yugal82/sports-screening-server/internal/util"

	"go.uber.org/zap"
)

// HTTPGateway talks JSON to an external payment provider
type HTTPGateway struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

// NewHTTPGateway creates a new provider client
func NewHTTPGateway(baseURL, apiKey string, timeout time.Duration) *HTTPGateway {
	return &HTTPGateway{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  util.GetLogger(),
	}
}

type chargeResponse struct {
	Handle string `json:"handle"`
}

type providerError struct {
	Message string `json:"message"`
}

// Charge creates a payment at the provider
func (g *HTTPGateway) Charge(ctx context.Context, req ChargeRequest) (string, error) {
	ctx, span := util.StartSpan(ctx, "HTTPGateway.Charge")
	defer span.End()

	var resp chargeResponse
	if err := g.do(ctx, "/v1/payments", req, &resp); err != nil {
		util.RecordError(span, err)
		return "", err
	}
	if resp.Handle == "" {
		return "", fmt.Errorf("provider returned no payment handle")
	}
	return resp.Handle, nil
}

// Refund refunds a captured payment
func (g *HTTPGateway) Refund(ctx context.Context, handle string) error {
	ctx, span := util.StartSpan(ctx, "HTTPGateway.Refund")
	defer span.End()

	err := g.do(ctx, "/v1/payments/"+url.PathEscape(handle)+"/refund", struct{}{}, nil)
	if err != nil {
		util.RecordError(span, err)
	}
	return err
}

func (g *HTTPGateway) do(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if g.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("payment provider unreachable: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("failed to read provider response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return fmt.Errorf("payment provider error: status %d", resp.StatusCode)
	case resp.StatusCode >= 400:
		var perr providerError
		_ = json.Unmarshal(raw, &perr)
		g.logger.Warn("Payment provider declined request",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", perr.Message))
		return fmt.Errorf("%w: %s", ErrDeclined, perr.Message)
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode provider response: %w", err)
	}
	return nil
}
