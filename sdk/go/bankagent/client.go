package bankagent

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"time"
)

// DefaultHTTPTimeout defines the timeout used by clients created without a
// custom http.Client. A turn waits on the model, so it is longer than a plain
// REST timeout.
const DefaultHTTPTimeout = 90 * time.Second

// Client wraps the HTTP interactions with the bank assistant REST API.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
}

// Reply is the answer to one chat turn.
type Reply struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
	Failed    bool   `json:"failed"`
	Category  string `json:"category,omitempty"`
	Retryable bool   `json:"retryable,omitempty"`
}

// Message is one transcript entry.
type Message struct {
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

// Account is one row of the account list. Balance is a decimal string.
type Account struct {
	ID      string      `json:"account_id"`
	Name    string      `json:"name"`
	Balance json.Number `json:"balance"`
	Display string      `json:"display"`
}

// Transaction is one entry of an account's transaction log.
type Transaction struct {
	ID           string      `json:"id"`
	Timestamp    time.Time   `json:"timestamp"`
	Kind         string      `json:"kind"`
	Amount       json.Number `json:"amount"`
	Counterparty string      `json:"counterparty,omitempty"`
	BalanceAfter json.Number `json:"balance_after"`
}

// APIError represents server side validation or internal errors.
type APIError struct {
	StatusCode int
	Code       string `json:"code"`
	Message    string `json:"error"`
}

func (e *APIError) Error() string {
	if e == nil {
		return ""
	}
	if e.Code != "" {
		return fmt.Sprintf("bankagent api error (%d): %s - %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("bankagent api error (%d): %s", e.StatusCode, e.Message)
}

// NewClient instantiates a client for the bank assistant API. When httpClient
// is nil, a default client with DefaultHTTPTimeout is used.
func NewClient(rawURL string, httpClient *http.Client) (*Client, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, errors.New("base url must be absolute")
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	return &Client{baseURL: parsed, httpClient: httpClient}, nil
}

// CreateSession opens a new conversation and returns its id.
func (c *Client) CreateSession(ctx context.Context) (string, error) {
	var out struct {
		SessionID string `json:"session_id"`
	}
	if err := c.post(ctx, "/api/v1/sessions", struct{}{}, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

// Send posts one user message and waits for the reply.
func (c *Client) Send(ctx context.Context, sessionID, content string) (Reply, error) {
	var reply Reply
	endpoint := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.post(ctx, endpoint, map[string]string{"content": content}, &reply); err != nil {
		return Reply{}, err
	}
	return reply, nil
}

// History returns the transcript of a session.
func (c *Client) History(ctx context.Context, sessionID string) ([]Message, error) {
	var out struct {
		Messages []Message `json:"messages"`
	}
	endpoint := "/api/v1/sessions/" + url.PathEscape(sessionID) + "/messages"
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Messages, nil
}

// Accounts lists every account with its current balance.
func (c *Client) Accounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Accounts []Account `json:"accounts"`
	}
	if err := c.get(ctx, "/api/v1/accounts", &out); err != nil {
		return nil, err
	}
	return out.Accounts, nil
}

// Transactions returns the transaction log of one account.
func (c *Client) Transactions(ctx context.Context, accountID string) ([]Transaction, error) {
	var out struct {
		Transactions []Transaction `json:"transactions"`
	}
	endpoint := "/api/v1/accounts/" + url.PathEscape(accountID) + "/transactions"
	if err := c.get(ctx, endpoint, &out); err != nil {
		return nil, err
	}
	return out.Transactions, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := c.newRequest(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) get(ctx context.Context, endpoint string, out any) error {
	req, err := c.newRequest(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, body io.Reader) (*http.Request, error) {
	rel := &url.URL{Path: path.Join(c.baseURL.Path, endpoint)}
	u := c.baseURL.ResolveReference(rel)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("perform request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := APIError{StatusCode: resp.StatusCode}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("read error response: %w", err)
		}
		if len(data) > 0 {
			_ = json.Unmarshal(data, &apiErr)
		}
		if apiErr.Message == "" {
			apiErr.Message = string(bytes.TrimSpace(data))
		}
		return &apiErr
	}

	if out == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	decoder.UseNumber()
	if err := decoder.Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
