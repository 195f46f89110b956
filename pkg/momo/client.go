package momo

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	initiateTimeout = 30 * time.Second
	queryTimeout    = 15 * time.Second
)

// TransportError marks a call that never produced a usable gateway
// answer: connection failure, timeout, or a 5xx. The underlying payment
// outcome is unknown and the caller should re-query later.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("momo %s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError marks a well-formed refusal from the gateway. The
// payment attempt is definitively failed.
type RejectionError struct {
	Op      string
	Code    int
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("momo %s: gateway rejected request (%d): %s", e.Op, e.Code, e.Message)
}

// IsTransportError reports whether err is a transport-level failure.
func IsTransportError(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsRejection reports whether err is a well-formed gateway rejection.
func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}

// GatewayResponse carries exactly the fields this system consumes from
// the gateway; anything else the provider sends is dropped at decode.
type GatewayResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    GatewayData `json:"data"`
}

// GatewayData is the payload section of a gateway response.
type GatewayData struct {
	ID      string `json:"id"`
	Status  string `json:"status"`
	Amount  string `json:"amount"`
	OrderID string `json:"orderId"`
	Phone   string `json:"phone"`
}

// InitiateRequest is the body sent to the gateway's payment-request
// endpoint.
type InitiateRequest struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Phone       string `json:"phone"`
	Method      string `json:"method"`
	OrderID     string `json:"orderId"`
	Description string `json:"description,omitempty"`
}

// Client talks to the mobile-money gateway. Initiate uses a hard 30s
// timeout and is never retried here: a duplicated initiation could
// charge the subscriber twice. QueryStatus is read-only and safe to
// repeat.
type Client struct {
	BaseURL   string
	APIKey    string
	APISecret string
	MockAPI   bool

	initiateClient *http.Client
	queryClient    *http.Client
}

// NewClient creates a new gateway client.
func NewClient(baseURL, apiKey, apiSecret string, mockAPI bool) *Client {
	return &Client{
		BaseURL:        baseURL,
		APIKey:         apiKey,
		APISecret:      apiSecret,
		MockAPI:        mockAPI,
		initiateClient: &http.Client{Timeout: initiateTimeout},
		queryClient:    &http.Client{Timeout: queryTimeout},
	}
}

// HasCredentials reports whether the client is configured to reach a
// real gateway. Mock mode needs no credentials.
func (c *Client) HasCredentials() bool {
	if c.MockAPI {
		return true
	}
	return c.BaseURL != "" && c.APIKey != "" && c.APISecret != ""
}

// Initiate submits a new payment request to the gateway. Exactly one
// HTTP call is made; a timeout here means the outcome is unknown, not
// that the payment failed.
func (c *Client) Initiate(ctx context.Context, req InitiateRequest) (*GatewayResponse, error) {
	if c.MockAPI {
		return c.mockInitiate(req)
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode initiate request: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, initiateTimeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build initiate request: %w", err)
	}
	c.setHeaders(httpReq)

	return c.do(c.initiateClient, httpReq, "initiate")
}

// QueryStatus asks the gateway for the current state of a payment it
// already knows about.
func (c *Client) QueryStatus(ctx context.Context, providerTransactionID string) (*GatewayResponse, error) {
	if c.MockAPI {
		return c.mockQueryStatus(providerTransactionID)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	url := fmt.Sprintf("%s/v1/payments/%s", c.BaseURL, providerTransactionID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	c.setHeaders(httpReq)

	return c.do(c.queryClient, httpReq, "queryStatus")
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("X-API-Secret", c.APISecret)
}

func (c *Client) do(client *http.Client, req *http.Request, op string) (*GatewayResponse, error) {
	resp, err := client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}

	if resp.StatusCode >= 500 {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("gateway returned %d", resp.StatusCode)}
	}

	var gwResp GatewayResponse
	if err := json.Unmarshal(raw, &gwResp); err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("malformed gateway response: %w", err)}
	}

	if resp.StatusCode >= 400 {
		msg := gwResp.Message
		if msg == "" {
			msg = string(raw)
		}
		return nil, &RejectionError{Op: op, Code: resp.StatusCode, Message: msg}
	}

	return &gwResp, nil
}

// mockInitiate simulates a gateway accepting a payment request.
func (c *Client) mockInitiate(req InitiateRequest) (*GatewayResponse, error) {
	return &GatewayResponse{
		Status: "PENDING",
		Data: GatewayData{
			ID:      fmt.Sprintf("MOMO-MOCK-%d", time.Now().UnixNano()),
			Status:  "PENDING",
			Amount:  req.Amount,
			OrderID: req.OrderID,
			Phone:   req.Phone,
		},
	}, nil
}

// mockQueryStatus simulates a payment that settles roughly a minute
// after initiation.
func (c *Client) mockQueryStatus(providerTransactionID string) (*GatewayResponse, error) {
	status := "PENDING"
	var created int64
	if _, err := fmt.Sscanf(providerTransactionID, "MOMO-MOCK-%d", &created); err == nil {
		if time.Since(time.Unix(0, created)) > time.Minute {
			status = "SUCCESS"
		}
	}
	return &GatewayResponse{
		Status: status,
		Data: GatewayData{
			ID:     providerTransactionID,
			Status: status,
		},
	}, nil
}
