package token

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/driftlake/merkledrop-go/pkg/types"
)

const defaultRequestTimeout = 30 * time.Second

// TransferRequest is the JSON body posted to the token service.
// Amounts cross the boundary as canonical decimal strings.
type TransferRequest struct {
	RequestID  string `json:"request_id"`
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
}

// Client calls an external fungible-token service over HTTP.
// Each transfer carries a unique request ID so the service can deduplicate
// a retried request that actually succeeded the first time.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a token service client for the given base URL.
func NewClient(baseURL string, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: defaultRequestTimeout},
		logger:     logger,
	}
}

// Transfer posts a transfer to the token service and reports its outcome.
func (c *Client) Transfer(ctx context.Context, recipient types.AccountID, amount *uint256.Int) error {
	req := TransferRequest{
		RequestID:  uuid.New().String(),
		ReceiverID: string(recipient),
		Amount:     amount.Dec(),
	}

	data, err := json.Marshal(req)
	if err != nil {
		return pkgerrors.Wrap(err, "failed to marshal transfer request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transfer", bytes.NewReader(data))
	if err != nil {
		return pkgerrors.Wrap(err, "failed to build transfer request")
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.logger.Sugar().Infow("Invoking token transfer",
		"request_id", req.RequestID,
		"receiver", req.ReceiverID,
		"amount", req.Amount,
	)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return pkgerrors.Wrapf(err, "transfer request %s failed", req.RequestID)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("transfer request %s rejected: status %d: %s", req.RequestID, resp.StatusCode, string(body))
	}

	return nil
}

var _ ITokenTransferor = (*Client)(nil)
