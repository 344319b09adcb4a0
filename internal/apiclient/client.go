// Package apiclient talks to the exchange API on behalf of a signed-in user.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/MrJamesThe3rd/cambio/internal/auth"
	"github.com/MrJamesThe3rd/cambio/internal/chat"
	"github.com/MrJamesThe3rd/cambio/internal/transaction"
	"github.com/MrJamesThe3rd/cambio/internal/user"
)

const defaultTimeout = 30 * time.Second

// Error is a non-2xx answer. It unwraps to the matching domain error so
// callers can keep using errors.Is with the transaction and user sentinels.
type Error struct {
	StatusCode int
	Message    string
	err        error
}

func (e *Error) Error() string {
	return fmt.Sprintf("api returned %d: %s", e.StatusCode, e.Message)
}

func (e *Error) Unwrap() error {
	return e.err
}

type Client struct {
	baseURL *url.URL
	token   string
	client  *http.Client
}

type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		cl.client = c
	}
}

func New(baseURL, token string, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parsing base url: %w", err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	c := &Client{
		baseURL: u,
		token:   token,
		client:  &http.Client{Timeout: defaultTimeout},
	}

	for _, opt := range opts {
		opt(c)
	}

	return c, nil
}

// Token is the bearer credential sent with every request.
func (c *Client) Token() string {
	return c.token
}

// WebSocketURL is the chat endpoint on the same host.
func (c *Client) WebSocketURL() string {
	u := *c.baseURL
	if u.Scheme == "https" {
		u.Scheme = "wss"
	} else {
		u.Scheme = "ws"
	}

	u.Path += "/ws"

	return u.String()
}

func (c *Client) Me(ctx context.Context) (*user.User, error) {
	var resp userDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/users/me", nil, &resp); err != nil {
		return nil, err
	}

	return resp.toUser(), nil
}

func (c *Client) SetAvailability(ctx context.Context, available bool) (*user.User, error) {
	var resp userDTO
	if err := c.do(ctx, http.MethodPost, "/api/v1/users/me/availability", map[string]bool{"available": available}, &resp); err != nil {
		return nil, err
	}

	return resp.toUser(), nil
}

func (c *Client) PaymentMethods(ctx context.Context) ([]*user.PaymentMethod, error) {
	var resp []paymentMethodDTO
	if err := c.do(ctx, http.MethodGet, "/api/v1/payment-methods", nil, &resp); err != nil {
		return nil, err
	}

	methods := make([]*user.PaymentMethod, len(resp))
	for i := range resp {
		methods[i] = resp[i].toPaymentMethod()
	}

	return methods, nil
}

// History returns the stored chat of a transaction, oldest first.
func (c *Client) History(ctx context.Context, transactionID int64) ([]chat.Message, error) {
	var msgs []chat.Message
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d/messages", transactionID), nil, &msgs); err != nil {
		return nil, err
	}

	if msgs == nil {
		msgs = []chat.Message{}
	}

	return msgs, nil
}

func (c *Client) Request(ctx context.Context, params transaction.RequestParams) (*transaction.Transaction, error) {
	body := requestDTO{
		Operation:       params.Operation,
		Amount:          params.Amount,
		Currency:        params.Currency,
		PaymentMethodID: params.PaymentMethodID,
		FeeOption:       params.FeeOption,
		Notes:           params.Notes,
	}

	return c.one(ctx, http.MethodPost, "/api/v1/transactions", body)
}

func (c *Client) ListMine(ctx context.Context) ([]*transaction.Transaction, error) {
	return c.list(ctx, "/api/v1/transactions/mine")
}

func (c *Client) ListPending(ctx context.Context) ([]*transaction.Transaction, error) {
	return c.list(ctx, "/api/v1/transactions/pending")
}

func (c *Client) ListAssigned(ctx context.Context) ([]*transaction.Transaction, error) {
	return c.list(ctx, "/api/v1/transactions/assigned")
}

func (c *Client) ListAll(ctx context.Context) ([]*transaction.Transaction, error) {
	return c.list(ctx, "/api/v1/transactions")
}

func (c *Client) Get(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return c.one(ctx, http.MethodGet, fmt.Sprintf("/api/v1/transactions/%d", id), nil)
}

func (c *Client) Accept(ctx context.Context, id int64, cashierMethodID *int64) (*transaction.Transaction, error) {
	var body any
	if cashierMethodID != nil {
		body = map[string]int64{"cashier_payment_method_id": *cashierMethodID}
	}

	return c.one(ctx, http.MethodPost, fmt.Sprintf("/api/v1/transactions/%d/accept", id), body)
}

func (c *Client) MarkPaymentStarted(ctx context.Context, id int64, proofRef string) (*transaction.Transaction, error) {
	var body any
	if proofRef != "" {
		body = map[string]string{"proof_ref": proofRef}
	}

	return c.one(ctx, http.MethodPost, fmt.Sprintf("/api/v1/transactions/%d/payment-started", id), body)
}

func (c *Client) MarkCompleted(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return c.one(ctx, http.MethodPost, fmt.Sprintf("/api/v1/transactions/%d/complete", id), nil)
}

func (c *Client) Cancel(ctx context.Context, id int64) (*transaction.Transaction, error) {
	return c.one(ctx, http.MethodPost, fmt.Sprintf("/api/v1/transactions/%d/cancel", id), nil)
}

func (c *Client) OpenDispute(ctx context.Context, id int64, reason, evidenceURL string) (*transaction.Transaction, error) {
	body := map[string]string{"reason": reason}
	if evidenceURL != "" {
		body["evidence_url"] = evidenceURL
	}

	return c.one(ctx, http.MethodPost, fmt.Sprintf("/api/v1/transactions/%d/dispute", id), body)
}

func (c *Client) ResolveDispute(ctx context.Context, id int64, to transaction.State, decision string) (*transaction.Transaction, error) {
	body := map[string]string{"state": string(to), "decision": decision}

	return c.one(ctx, http.MethodPost, fmt.Sprintf("/api/v1/transactions/%d/resolve", id), body)
}

// ListMyDisputes returns the disputes on the user's own transactions.
func (c *Client) ListMyDisputes(ctx context.Context) ([]*transaction.Dispute, error) {
	return c.disputes(ctx, "/api/v1/disputes/mine")
}

// ListAllDisputes returns every dispute. Administrators only.
func (c *Client) ListAllDisputes(ctx context.Context, openOnly bool) ([]*transaction.Dispute, error) {
	path := "/api/v1/disputes"
	if openOnly {
		path += "?open=true"
	}

	return c.disputes(ctx, path)
}

func (c *Client) disputes(ctx context.Context, path string) ([]*transaction.Dispute, error) {
	var resp []disputeDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	disputes := make([]*transaction.Dispute, len(resp))
	for i := range resp {
		disputes[i] = resp[i].toDispute()
	}

	return disputes, nil
}

func (c *Client) one(ctx context.Context, method, path string, body any) (*transaction.Transaction, error) {
	var resp transactionDTO
	if err := c.do(ctx, method, path, body, &resp); err != nil {
		return nil, err
	}

	return resp.toTransaction(), nil
}

func (c *Client) list(ctx context.Context, path string) ([]*transaction.Transaction, error) {
	var resp []transactionDTO
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	txs := make([]*transaction.Transaction, len(resp))
	for i := range resp {
		txs[i] = resp[i].toTransaction()
	}

	return txs, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader

	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}

		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL.String()+path, reader)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFrom(resp)
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}

	return nil
}

func errorFrom(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := strings.TrimSpace(string(data))

	return &Error{StatusCode: resp.StatusCode, Message: msg, err: sentinel(resp.StatusCode, msg)}
}

// sentinel reverses the server's error to status mapping.
func sentinel(status int, msg string) error {
	switch status {
	case http.StatusBadRequest:
		return transaction.ErrValidation
	case http.StatusUnauthorized:
		return auth.ErrUnauthorized
	case http.StatusForbidden:
		switch {
		case strings.HasPrefix(msg, user.ErrNotCashier.Error()):
			return user.ErrNotCashier
		case strings.HasPrefix(msg, user.ErrInactive.Error()):
			return user.ErrInactive
		}

		return transaction.ErrForbidden
	case http.StatusNotFound:
		if strings.HasPrefix(msg, user.ErrNotFound.Error()) {
			return user.ErrNotFound
		}

		return transaction.ErrNotFound
	case http.StatusConflict:
		return transaction.ErrConflict
	case http.StatusUnprocessableEntity:
		if strings.HasPrefix(msg, transaction.ErrValidation.Error()) {
			return transaction.ErrValidation
		}

		return transaction.ErrInvalidTransition
	}

	return errors.New(http.StatusText(status))
}
