// Package identity cross-checks a scanned digital identity against the
// holder snapshot on an issued ticket. Claims come from an external verifier
// service; the repository owns only the comparison, never the verification
// protocol itself.
package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	dErrors "stagepass/pkg/domain-errors"
	"stagepass/pkg/platform/circuit"
)

const (
	resultPath     = "/api/oidvp/result"
	defaultTimeout = 10 * time.Second
	maxResultBytes = 1 << 20
)

// Claims is the flattened ename → value map returned by the verifier.
type Claims map[string]string

// ClaimsFetcher retrieves the claims payload for a verification transaction.
type ClaimsFetcher interface {
	FetchResult(ctx context.Context, transactionID string) (Claims, error)
}

// Client calls the external verifier over HTTP. Requests carry a hard
// timeout, and a circuit breaker sheds calls while the verifier is down so a
// hung dependency cannot pile up gate-side requests.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *circuit.Breaker
	logger  *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(client *Client) {
		if c != nil {
			client.http = c
		}
	}
}

// WithBreaker overrides the circuit breaker.
func WithBreaker(b *circuit.Breaker) ClientOption {
	return func(client *Client) {
		if b != nil {
			client.breaker = b
		}
	}
}

// WithClientLogger overrides the logger.
func WithClientLogger(logger *slog.Logger) ClientOption {
	return func(client *Client) {
		if logger != nil {
			client.logger = logger
		}
	}
}

// NewClient builds a verifier client for the given base URL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	client := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
		breaker: circuit.New("identity-verifier"),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(client)
	}
	return client
}

type resultRequest struct {
	TransactionID string `json:"transactionId"`
}

type resultResponse struct {
	Data []struct {
		Claims []struct {
			EName string `json:"ename"`
			Value string `json:"value"`
		} `json:"claims"`
	} `json:"data"`
}

// FetchResult posts the transaction ID to the verifier and flattens the
// returned claim sets into one map. While the breaker is open it fails fast
// with an unavailability error instead of dialing; once the breaker's
// cooldown elapses the next call probes the verifier again, so a recovered
// outage re-enables verification on its own.
func (c *Client) FetchResult(ctx context.Context, transactionID string) (Claims, error) {
	if c.breaker.IsOpen() {
		return nil, dErrors.New(dErrors.CodeUnavailable, "identity verifier is temporarily unavailable")
	}

	body, err := json.Marshal(resultRequest{TransactionID: transactionID})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to encode verifier request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+resultPath, bytes.NewReader(body))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to build verifier request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		c.recordFailure(ctx)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity verifier request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.recordFailure(ctx)
		return nil, dErrors.Newf(dErrors.CodeUnavailable,
			"identity verifier returned status %d", resp.StatusCode)
	}

	var parsed resultResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResultBytes)).Decode(&parsed); err != nil {
		c.recordFailure(ctx)
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity verifier returned a malformed payload")
	}
	c.recordSuccess(ctx)

	claims := make(Claims)
	for _, set := range parsed.Data {
		for _, claim := range set.Claims {
			claims[claim.EName] = claim.Value
		}
	}
	if len(claims) == 0 {
		return nil, dErrors.New(dErrors.CodeNotFound,
			fmt.Sprintf("no claims found for transaction %s", transactionID))
	}
	return claims, nil
}

func (c *Client) recordFailure(ctx context.Context) {
	if _, change := c.breaker.RecordFailure(); change.Opened {
		c.logger.WarnContext(ctx, "identity verifier circuit opened", "breaker", c.breaker.Name())
	}
}

func (c *Client) recordSuccess(ctx context.Context) {
	if _, change := c.breaker.RecordSuccess(); change.Closed {
		c.logger.InfoContext(ctx, "identity verifier circuit closed", "breaker", c.breaker.Name())
	}
}
