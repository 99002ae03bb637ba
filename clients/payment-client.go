package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/jayampathiw/task-escrow/logging"
	"github.com/jayampathiw/task-escrow/models"

	"github.com/sony/gobreaker"
)

// WalletClient performs payouts and refunds through the wallet service. All
// calls go through the circuit breaker built in main.
type WalletClient struct {
	baseURL    string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

func NewWalletClient(baseURL string, httpClient *http.Client, breaker *gobreaker.CircuitBreaker) *WalletClient {
	return &WalletClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		breaker:    breaker,
	}
}

type transferRequest struct {
	Recipient string `json:"recipient"`
	Amount    int64  `json:"amount"`
}

// Transfer moves amount to recipient. Any failure, including an open
// breaker, is reported as ErrTransferFailed so the ledger aborts the
// transition that requested the payout.
func (c *WalletClient) Transfer(ctx context.Context, recipient string, amount int64) error {
	_, err := c.breaker.Execute(func() (interface{}, error) {
		payload, err := json.Marshal(transferRequest{Recipient: recipient, Amount: amount})
		if err != nil {
			return nil, err
		}

		url := fmt.Sprintf("%s/api/wallet/transfer", c.baseURL)
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return nil, fmt.Errorf("wallet service returned status %d: %s", resp.StatusCode, string(body))
		}
		return nil, nil
	})
	if err != nil {
		logging.Logger.Errorf("Event ID: WALLET_TRANSFER_FAILED, Description: Transfer of %d to %s failed: %v", amount, recipient, err)
		return fmt.Errorf("%w: %v", models.ErrTransferFailed, err)
	}

	logging.Logger.Infof("Event ID: WALLET_TRANSFER_OK, Description: Transferred %d to %s.", amount, recipient)
	return nil
}
