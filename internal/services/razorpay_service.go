package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/farm2market/internal/config"
)

// ErrGatewayNotConfigured is the explicit "not configured" signal: missing
// credentials are a configuration state, not a failure, and route the
// checkout through the simulated-payment fallback.
var ErrGatewayNotConfigured = errors.New("razorpay credentials not configured")

// RazorpayService mints gateway orders for the client checkout widget.
// Calls carry a hard timeout so a silent network stall cannot hang the
// order flow.
type RazorpayService struct {
	keyID     string
	keySecret string
	baseURL   string
	client    *http.Client
}

func NewRazorpayService(cfg *config.Config) *RazorpayService {
	return &RazorpayService{
		keyID:     cfg.RazorpayKeyID,
		keySecret: cfg.RazorpayKeySecret,
		baseURL:   strings.TrimRight(cfg.RazorpayBaseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
	}
}

// Configured reports whether gateway credentials are present.
func (s *RazorpayService) Configured() bool {
	return s.keyID != "" && s.keySecret != ""
}

// KeyID is the public key the client widget is opened with.
func (s *RazorpayService) KeyID() string {
	return s.keyID
}

// GatewayOrder is the minted order handed to the client widget.
type GatewayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type gatewayOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes"`
}

// CreateOrder mints a gateway order for the given amount (major units).
// Returns ErrGatewayNotConfigured when credentials are missing.
func (s *RazorpayService) CreateOrder(ctx context.Context, amount float64, cropID uuid.UUID, quantityKg float64) (*GatewayOrder, error) {
	if !s.Configured() {
		return nil, ErrGatewayNotConfigured
	}

	payload := gatewayOrderRequest{
		// gateway expects the amount in minor units (paise); rounded, not
		// truncated, so 112.13 becomes 11213 and not 11212
		Amount:   int64(math.Round(amount * 100)),
		Currency: "INR",
		Receipt:  fmt.Sprintf("order_%d", time.Now().UnixMilli()),
		Notes: map[string]string{
			"crop_id":     cropID.String(),
			"quantity_kg": fmt.Sprintf("%g", quantityKg),
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/v1/orders", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(s.keyID, s.keySecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("razorpay order request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("razorpay order failed: status %d: %s", resp.StatusCode, string(msg))
	}

	var order GatewayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("razorpay order decode: %w", err)
	}
	return &order, nil
}

// SimulatedOrderID and SimulatedPaymentID produce references for the
// test-mode fallback when the gateway is unreachable or not configured.
func SimulatedOrderID() string {
	return fmt.Sprintf("sim_order_%d", time.Now().UnixMilli())
}

func SimulatedPaymentID() string {
	return fmt.Sprintf("sim_pay_%d", time.Now().UnixMilli())
}
