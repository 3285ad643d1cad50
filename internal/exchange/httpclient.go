package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

const defaultRequestTimeout = 15 * time.Second

// Client talks to a swap venue over HTTP JSON. It implements both
// Exchange and Allowance.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  zerolog.Logger
}

func NewClient(baseURL, apiKey string, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: defaultRequestTimeout},
		logger:  logger,
	}
}

type swapRequest struct {
	AmountIn  int64    `json:"amount_in"`
	MinOut    int64    `json:"min_out"`
	Path      []string `json:"path"`
	Recipient string   `json:"recipient"`
	Deadline  int64    `json:"deadline"` // unix milliseconds
	Native    bool     `json:"native"`
}

type swapResponse struct {
	Amounts []int64 `json:"amounts"`
	Error   string  `json:"error,omitempty"`
}

type approveRequest struct {
	Asset   string `json:"asset"`
	Spender string `json:"spender"`
	Amount  int64  `json:"amount"`
}

func (c *Client) SwapNativeForAsset(ctx context.Context, amountIn, minOut int64, path []string, recipient string, deadline time.Time) ([]int64, error) {
	return c.swap(ctx, swapRequest{
		AmountIn:  amountIn,
		MinOut:    minOut,
		Path:      path,
		Recipient: recipient,
		Deadline:  deadline.UnixMilli(),
		Native:    true,
	})
}

func (c *Client) SwapAssetForAsset(ctx context.Context, amountIn, minOut int64, path []string, recipient string, deadline time.Time) ([]int64, error) {
	return c.swap(ctx, swapRequest{
		AmountIn:  amountIn,
		MinOut:    minOut,
		Path:      path,
		Recipient: recipient,
		Deadline:  deadline.UnixMilli(),
	})
}

func (c *Client) swap(ctx context.Context, req swapRequest) ([]int64, error) {
	var resp swapResponse
	if err := c.post(ctx, "/v1/swap", req, &resp); err != nil {
		return nil, err
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("venue rejected swap: %s", resp.Error)
	}
	return resp.Amounts, nil
}

func (c *Client) Approve(ctx context.Context, assetSymbol, spender string, amount int64) error {
	return c.post(ctx, "/v1/approve", approveRequest{
		Asset:   assetSymbol,
		Spender: spender,
		Amount:  amount,
	}, nil)
}

func (c *Client) post(ctx context.Context, endpoint string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("venue %s: %w", endpoint, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read venue response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().
			Int("status", resp.StatusCode).
			Str("endpoint", endpoint).
			Bytes("body", raw).
			Msg("venue call failed")
		return fmt.Errorf("venue %s returned %d", endpoint, resp.StatusCode)
	}

	if out != nil {
		if err := json.Unmarshal(raw, out); err != nil {
			return fmt.Errorf("decode venue response: %w", err)
		}
	}
	return nil
}
