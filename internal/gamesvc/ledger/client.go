package ledger

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

	"github.com/shopspring/decimal"
)

const (
	createTransactionsPath = "api/v1/transactions/create"
	sourcesBalancesPath    = "api/v1/balances/sources"
	depositStatisticsPath  = "api/v1/transactions/deposit-statistics"
)

// Client talks to the billing service that keeps every coin and money balance.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
}

func NewClient(baseURL, token string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/",
		token:   token,
		http:    &http.Client{Timeout: timeout},
	}
}

type transactionRequest struct {
	Action      Action          `json:"action"`
	Amount      decimal.Decimal `json:"amount"`
	Currency    string          `json:"currency"`
	UserID      int64           `json:"user_id"`
	SourceType  string          `json:"source_type"`
	SourceID    int64           `json:"source_id"`
	Description string          `json:"description"`
	ExtraParams string          `json:"extra_params"`
}

// transactionID accepts ids encoded either as JSON strings or numbers.
type transactionID string

func (t *transactionID) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return fmt.Errorf("empty transaction id")
	}
	*t = transactionID(s)
	return nil
}

type errorBody struct {
	Errors struct {
		Data struct {
			CurrentValue *decimal.Decimal `json:"current_value"`
		} `json:"data"`
	} `json:"errors"`
}

func (c *Client) Withdraw(ctx context.Context, tx Transaction) (string, error) {
	action := WithdrawMoney
	if tx.Currency == CurrencyCoin {
		action = WithdrawCoin
	}
	return c.create(ctx, action, tx)
}

func (c *Client) Deposit(ctx context.Context, tx Transaction) (string, error) {
	action := DepositMoney
	if tx.Currency == CurrencyCoin {
		action = DepositCoin
	}
	return c.create(ctx, action, tx)
}

func (c *Client) create(ctx context.Context, action Action, tx Transaction) (string, error) {
	payload := struct {
		Transactions []transactionRequest `json:"transactions"`
	}{
		Transactions: []transactionRequest{{
			Action:      action,
			Amount:      tx.Amount,
			Currency:    tx.Currency,
			UserID:      tx.UserID,
			SourceType:  tx.SourceType,
			SourceID:    tx.SourceID,
			Description: fmt.Sprintf("%s-%s", tx.SourceType, action),
			ExtraParams: "[]",
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	header := http.Header{}
	if tx.IdempotencyKey != "" {
		header.Set("Idempotency-Key", tx.IdempotencyKey)
	}
	status, raw, err := c.do(ctx, http.MethodPost, createTransactionsPath, nil, body, header)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK {
		var eb errorBody
		if json.Unmarshal(raw, &eb) == nil && eb.Errors.Data.CurrentValue != nil {
			return "", &InsufficientFundsError{CurrentValue: *eb.Errors.Data.CurrentValue}
		}
		return "", &StatusError{StatusCode: status, Body: string(raw)}
	}

	var res struct {
		Data []struct {
			ID transactionID `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return "", fmt.Errorf("decode transaction response: %w", err)
	}
	if len(res.Data) == 0 {
		return "", fmt.Errorf("ledger returned no transactions")
	}
	return string(res.Data[0].ID), nil
}

// SourcesBalances returns the per-currency balance of every given source.
func (c *Client) SourcesBalances(ctx context.Context, sourceType string, ids []int64) (Balances, error) {
	if len(ids) == 0 {
		return Balances{}, nil
	}
	body, err := json.Marshal(map[string]any{
		"sources": map[string][]int64{sourceType: ids},
	})
	if err != nil {
		return nil, err
	}
	status, raw, err := c.do(ctx, http.MethodPost, sourcesBalancesPath, nil, body, nil)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, &StatusError{StatusCode: status, Body: string(raw)}
	}

	var res struct {
		Data map[string]Balances `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return nil, fmt.Errorf("decode balances: %w", err)
	}
	b := res.Data[sourceType]
	if b == nil {
		b = Balances{}
	}
	return b, nil
}

func (c *Client) DepositStatistics(ctx context.Context, sourceType, kind string) (DepositStatistics, error) {
	q := url.Values{}
	q.Set("source_type", sourceType)
	q.Set("type", kind)
	status, raw, err := c.do(ctx, http.MethodGet, depositStatisticsPath, q, nil, nil)
	if err != nil {
		return DepositStatistics{}, err
	}
	if status != http.StatusOK {
		return DepositStatistics{}, &StatusError{StatusCode: status, Body: string(raw)}
	}
	var res struct {
		Data DepositStatistics `json:"data"`
	}
	if err := json.Unmarshal(raw, &res); err != nil {
		return DepositStatistics{}, fmt.Errorf("decode deposit statistics: %w", err)
	}
	return res.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte, header http.Header) (int, []byte, error) {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, rd)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Service-Token", c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("ledger %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("ledger %s %s: read body: %w", method, path, err)
	}
	return resp.StatusCode, raw, nil
}
