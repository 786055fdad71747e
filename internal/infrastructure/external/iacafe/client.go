// Package iacafe is the HTTP client for the IA Café VTU API. The vendor
// publishes no SDK; this client wraps its JSON endpoints and classifies
// every failed call as either transient (indeterminate outcome) or rejected
// (definite business failure) so callers never have to guess whether a
// charge reached the vendor.
package iacafe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	domainErrors "github.com/vectra/vtu-backend/internal/domain/errors"
	"github.com/vectra/vtu-backend/internal/domain/service"
	"github.com/vectra/vtu-backend/internal/domain/valueobject"
	"github.com/vectra/vtu-backend/internal/infrastructure/config"
)

const userAgent = "VectraVTU/1.0"

// Client calls the IA Café API. Transport parameters (timeout, proxy) are
// fixed at construction; the client never downgrades to an insecure
// transport on error.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates an IA Café client from explicit configuration
func NewClient(cfg config.VendorConfig, logger *zap.Logger) (*Client, error) {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			return nil, fmt.Errorf("invalid vendor proxy url: %w", err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
		logger: logger,
	}, nil
}

var _ service.VendorGateway = (*Client)(nil)

// envelope is the vendor's common response shape
type envelope struct {
	Success   bool            `json:"success"`
	Message   string          `json:"message"`
	Status    string          `json:"status"`
	Reference string          `json:"reference"`
	Data      json.RawMessage `json:"data"`
}

// PurchaseAirtime submits an airtime purchase
func (c *Client) PurchaseAirtime(ctx context.Context, requestID, phone string, network valueobject.NetworkType, amount float64) (*service.VendorResult, error) {
	payload := map[string]interface{}{
		"request_id": requestID,
		"phone":      phone,
		"service_id": network.String(),
		"amount":     amount,
	}
	return c.call(ctx, "purchase_airtime", http.MethodPost, "/airtime", payload)
}

// PurchaseData submits a data-plan purchase
func (c *Client) PurchaseData(ctx context.Context, requestID, phone string, network valueobject.NetworkType, planID int) (*service.VendorResult, error) {
	payload := map[string]interface{}{
		"request_id": requestID,
		"phone":      phone,
		"data_plan":  planID,
		"network_id": network.VendorNetworkID(),
	}
	return c.call(ctx, "purchase_data", http.MethodPost, "/budget-data", payload)
}

// Requery asks the vendor for the current state of an order
func (c *Client) Requery(ctx context.Context, requestID string) (*service.VendorResult, error) {
	payload := map[string]interface{}{"request_id": requestID}
	return c.call(ctx, "requery", http.MethodPost, "/requery", payload)
}

// GetDataPlans fetches the data-plan catalog for a network
func (c *Client) GetDataPlans(ctx context.Context, network valueobject.NetworkType) ([]service.DataPlan, error) {
	path := fmt.Sprintf("/budget-data/plans?network_id=%d", network.VendorNetworkID())
	result, err := c.call(ctx, "get_data_plans", http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	var env envelope
	if err := json.Unmarshal(result.Raw, &env); err != nil {
		return nil, transient("get_data_plans", "malformed plan catalog", err)
	}
	var plans []service.DataPlan
	if err := json.Unmarshal(env.Data, &plans); err != nil {
		return nil, transient("get_data_plans", "malformed plan catalog", err)
	}
	return plans, nil
}

// call performs one vendor request and maps the outcome to the failure
// taxonomy. A timeout, transport error, 5xx or unparseable body is
// transient: it must never be read as "the charge failed".
func (c *Client) call(ctx context.Context, op, method, path string, payload map[string]interface{}) (*service.VendorResult, error) {
	var reqBody io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, transient(op, "encode request", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, transient(op, "build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("vendor call transport failure",
			zap.String("op", op),
			zap.Error(err),
		)
		return nil, transient(op, "request failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, transient(op, "read response", err)
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, transient(op, fmt.Sprintf("vendor returned %d", resp.StatusCode), nil)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, transient(op, "malformed response body", err)
	}

	if resp.StatusCode >= http.StatusBadRequest || !env.Success {
		message := env.Message
		if message == "" {
			message = fmt.Sprintf("vendor returned %d", resp.StatusCode)
		}
		c.logger.Info("vendor rejected request",
			zap.String("op", op),
			zap.Int("http_status", resp.StatusCode),
			zap.String("message", message),
		)
		// The reply is a definitive verdict; hand it back alongside the
		// error so callers can persist the evidence.
		return &service.VendorResult{
			Success:   env.Success,
			Status:    env.Status,
			Reference: env.Reference,
			Message:   message,
			Raw:       raw,
		}, &domainErrors.VendorError{
			Kind:    domainErrors.VendorRejected,
			Op:      op,
			Message: message,
		}
	}

	return &service.VendorResult{
		Success:   env.Success,
		Status:    env.Status,
		Reference: env.Reference,
		Message:   env.Message,
		Raw:       raw,
	}, nil
}

func transient(op, message string, err error) error {
	return &domainErrors.VendorError{
		Kind:    domainErrors.VendorTransient,
		Op:      op,
		Message: message,
		Err:     err,
	}
}
