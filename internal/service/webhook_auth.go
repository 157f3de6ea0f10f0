package service

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// WebhookRequest is the part of a payment notification the processor
// looks at.
type WebhookRequest struct {
	Signature string     // x-signature header
	RequestID string     // x-request-id header
	Query     url.Values // notification URL query
	Body      []byte     // raw body
}

// WebhookAuth authenticates payment notifications with a shared secret.
type WebhookAuth struct {
	Secret        string
	AllowUnsigned bool // accept everything while no secret is configured
}

// NewWebhookAuth accepts unsigned notifications only outside production.
func NewWebhookAuth(secret string, production bool) WebhookAuth {
	return WebhookAuth{Secret: secret, AllowUnsigned: !production}
}

var sha256Hex = regexp.MustCompile(`^[a-f0-9]{64}$`)

// Verify reports whether the notification carries a valid signature.
//
// The header is either the secret itself or a comma separated list of
// key=value pairs with a v1 HMAC-SHA256 and an optional ts. The HMAC is
// checked against the provider's manifest formats and then the raw body.
func (a WebhookAuth) Verify(r WebhookRequest) bool {
	if a.Secret == "" {
		return a.AllowUnsigned
	}
	header := r.Signature
	if header == "" {
		return false
	}
	if hmac.Equal([]byte(header), []byte(a.Secret)) {
		return true
	}

	parts := parseSignatureHeader(header)
	provided, ok := parts["v1"]
	if !ok {
		provided = header
	}
	provided = strings.ToLower(provided)
	provided = strings.TrimPrefix(provided, "sha256=")
	if !sha256Hex.MatchString(provided) {
		return false
	}
	want, _ := hex.DecodeString(provided)

	ts := parts["ts"]
	dataID := notificationDataID(r.Query, r.Body)
	var candidates []string
	if ts != "" && dataID != "" && r.RequestID != "" {
		candidates = append(candidates, fmt.Sprintf("id:%s;request-id:%s;ts:%s;", dataID, r.RequestID, ts))
	}
	if ts != "" && dataID != "" {
		candidates = append(candidates, fmt.Sprintf("id:%s;ts:%s;", dataID, ts))
	}
	if ts != "" && r.RequestID != "" {
		candidates = append(candidates, fmt.Sprintf("request-id:%s;ts:%s;", r.RequestID, ts))
	}
	if len(r.Body) > 0 {
		candidates = append(candidates, string(r.Body))
	}
	for _, c := range candidates {
		mac := hmac.New(sha256.New, []byte(a.Secret))
		mac.Write([]byte(c))
		if hmac.Equal(mac.Sum(nil), want) {
			return true
		}
	}
	return false
}

func parseSignatureHeader(h string) map[string]string {
	out := make(map[string]string)
	for _, part := range strings.Split(h, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		k = strings.ToLower(strings.TrimSpace(k))
		v = strings.Trim(strings.TrimSpace(v), `"`)
		if k != "" && v != "" {
			out[k] = v
		}
	}
	return out
}

type notificationBody struct {
	Type string `json:"type"`
	ID   any    `json:"id"`
	Data struct {
		ID any `json:"id"`
	} `json:"data"`
}

func decodeNotification(body []byte) (notificationBody, bool) {
	var n notificationBody
	if len(body) == 0 {
		return n, false
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return notificationBody{}, false
	}
	return n, true
}

// notificationDataID is the resource id used in signature manifests:
// query data.id, query id, body data.id, body id.
func notificationDataID(q url.Values, body []byte) string {
	if v := q.Get("data.id"); v != "" {
		return v
	}
	if v := q.Get("id"); v != "" {
		return v
	}
	n, ok := decodeNotification(body)
	if !ok {
		return ""
	}
	if v := idString(n.Data.ID); v != "" {
		return v
	}
	return idString(n.ID)
}

// ExtractPaymentID returns the payment id a notification refers to, or ""
// when the notification is about something other than a payment.
func ExtractPaymentID(q url.Values, body []byte) string {
	n, _ := decodeNotification(body)
	kind := q.Get("type")
	if kind == "" {
		kind = q.Get("topic")
	}
	if kind == "" {
		kind = n.Type
	}
	if kind != "" && kind != "payment" {
		return ""
	}
	return notificationDataID(q, body)
}

func idString(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	}
	return ""
}
