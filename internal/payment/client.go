// Package payment talks to a MercadoPago compatible checkout API: it creates
// payment preferences for PENDING orders and fetches payments by id when a
// notification or a buyer return needs reconciling.
package payment

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

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/iliyamo/event-ticketing/internal/service/ports"
)

var (
	// ErrNotConfigured is returned when no access token is set.
	ErrNotConfigured = errors.New("payment: access token not configured")
	// ErrProvider wraps every transport, status and decoding failure.
	ErrProvider = errors.New("payment: provider request failed")
)

// Client talks to the payment provider's REST API: checkout preferences
// out, payment lookups in.  It is safe for concurrent use.
type Client struct {
	baseURL     string
	accessToken string
	logger      *logrus.Logger
	hc          *http.Client
}

// NewClient returns a Client.  A nil hc gets a client with a 10 second
// timeout.
func NewClient(baseURL, accessToken string, logger *logrus.Logger, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 10 * time.Second}
	}
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		logger:      logger,
		hc:          hc,
	}
}

// CreatePreference implements ports.PaymentProvider.
func (c *Client) CreatePreference(ctx context.Context, req ports.PreferenceRequest) (ports.Preference, error) {
	if c.accessToken == "" {
		return ports.Preference{}, ErrNotConfigured
	}
	payload := preferenceRequest{
		ExternalReference: req.ExternalReference,
		Items: []preferenceItem{{
			Title:      req.Title,
			Quantity:   req.Quantity,
			UnitPrice:  json.Number(req.UnitPrice.StringFixed(2)),
			CurrencyID: req.Currency,
		}},
		Payer:           preferencePayer{Name: req.PayerName, Email: req.PayerEmail},
		NotificationURL: req.NotificationURL,
	}
	if isPublicURL(req.SuccessURL) && isPublicURL(req.FailureURL) && isPublicURL(req.PendingURL) {
		payload.BackURLs = &backURLs{Success: req.SuccessURL, Failure: req.FailureURL, Pending: req.PendingURL}
		payload.AutoReturn = "approved"
	}
	if req.ExpiresAt != nil {
		payload.Expires = true
		payload.ExpirationDateTo = req.ExpiresAt.UTC().Format("2006-01-02T15:04:05.000-07:00")
	}

	var resp preferenceResponse
	headers := map[string]string{"X-Idempotency-Key": uuid.NewString()}
	if err := c.do(ctx, http.MethodPost, "/checkout/preferences", payload, headers, &resp); err != nil {
		return ports.Preference{}, err
	}
	initPoint := resp.InitPoint
	if initPoint == "" {
		initPoint = resp.SandboxInitPoint
	}
	return ports.Preference{ID: resp.ID, InitPoint: initPoint}, nil
}

// GetPayment implements ports.PaymentProvider.
func (c *Client) GetPayment(ctx context.Context, id string) (ports.Payment, error) {
	if c.accessToken == "" {
		return ports.Payment{}, ErrNotConfigured
	}
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/v1/payments/"+url.PathEscape(id), nil, nil, &resp); err != nil {
		return ports.Payment{}, err
	}
	p := ports.Payment{ID: resp.ID.String(), Status: resp.Status}
	if resp.ExternalReference != nil {
		p.ExternalReference = *resp.ExternalReference
	}
	return p, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, headers map[string]string, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("%w: encode: %v", ErrProvider, err)
		}
		body = bytes.NewReader(buf)
	}
	hr, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("build payment request")
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	hr.Header.Set("Accept", "application/json")
	hr.Header.Set("Authorization", "Bearer "+c.accessToken)
	if in != nil {
		hr.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		hr.Header.Set(k, v)
	}

	hresp, err := c.hc.Do(hr)
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).WithField("path", path).Error("payment provider unreachable")
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	defer hresp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(hresp.Body, 1<<20))
	if err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("read payment response")
		return fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		c.logger.WithContext(ctx).WithFields(logrus.Fields{
			"path":   path,
			"status": hresp.StatusCode,
			"body":   string(respBody),
		}).Error("payment provider returned an error")
		return fmt.Errorf("%w: status %d", ErrProvider, hresp.StatusCode)
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		c.logger.WithContext(ctx).WithError(err).Error("decode payment response")
		return fmt.Errorf("%w: decode: %v", ErrProvider, err)
	}
	return nil
}

// isPublicURL rejects loopback and unspecified hosts, which the provider
// refuses as back URLs.
func isPublicURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case host == "localhost", host == "0.0.0.0", host == "::1", strings.HasPrefix(host, "127."):
		return false
	}
	return true
}
