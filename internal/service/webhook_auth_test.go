package service

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
)

func hmacHex(secret, msg string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(msg))
	return hex.EncodeToString(mac.Sum(nil))
}

func TestWebhookAuth_Verify(t *testing.T) {
	const secret = "whsec"
	auth := NewWebhookAuth(secret, true)
	body := []byte(`{"type":"payment","data":{"id":"123"}}`)
	q := url.Values{"data.id": {"123"}}

	full := hmacHex(secret, "id:123;request-id:req-9;ts:1700000000;")
	idOnly := hmacHex(secret, "id:123;ts:1700000000;")
	reqOnly := hmacHex(secret, "request-id:req-9;ts:1700000000;")
	raw := hmacHex(secret, string(body))

	cases := []struct {
		name string
		req  WebhookRequest
		want bool
	}{
		{"exact secret", WebhookRequest{Signature: secret}, true},
		{"full manifest", WebhookRequest{Signature: "ts=1700000000,v1=" + full, RequestID: "req-9", Query: q, Body: body}, true},
		{"id manifest", WebhookRequest{Signature: "ts=1700000000, v1=" + idOnly, Query: q}, true},
		{"request id manifest", WebhookRequest{Signature: "ts=1700000000,v1=" + reqOnly, RequestID: "req-9"}, true},
		{"raw body with sha256 prefix", WebhookRequest{Signature: "sha256=" + raw, Body: body}, true},
		{"upper case digest", WebhookRequest{Signature: "v1=" + hexUpper(raw), Body: body}, true},
		{"id from body", WebhookRequest{Signature: "ts=1700000000,v1=" + idOnly, Body: body}, true},
		{"missing header", WebhookRequest{Body: body}, false},
		{"wrong digest", WebhookRequest{Signature: "ts=1700000000,v1=" + hmacHex("other", "id:123;ts:1700000000;"), Query: q}, false},
		{"not hex", WebhookRequest{Signature: "v1=zzz", Body: body}, false},
		{"timestamp mismatch", WebhookRequest{Signature: "ts=1700000001,v1=" + idOnly, Query: q}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, auth.Verify(tc.req))
		})
	}
}

func hexUpper(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'a' && c <= 'f' {
			b[i] = c - 32
		}
	}
	return string(b)
}

func TestWebhookAuth_NoSecret(t *testing.T) {
	assert.True(t, NewWebhookAuth("", false).Verify(WebhookRequest{}))
	assert.False(t, NewWebhookAuth("", true).Verify(WebhookRequest{}))
}

func TestExtractPaymentID(t *testing.T) {
	cases := []struct {
		name string
		q    url.Values
		body string
		want string
	}{
		{"query data.id", url.Values{"data.id": {"55"}, "type": {"payment"}}, "", "55"},
		{"query id with topic", url.Values{"id": {"56"}, "topic": {"payment"}}, "", "56"},
		{"body data id string", nil, `{"type":"payment","data":{"id":"57"}}`, "57"},
		{"body numeric id", nil, `{"data":{"id":58123456789}}`, "58123456789"},
		{"body top level id", nil, `{"id":59}`, "59"},
		{"query wins over body", url.Values{"data.id": {"60"}}, `{"data":{"id":"61"}}`, "60"},
		{"other topic", url.Values{"topic": {"merchant_order"}, "id": {"62"}}, "", ""},
		{"other body type", nil, `{"type":"plan","data":{"id":"63"}}`, ""},
		{"garbage body", nil, `{not json`, ""},
		{"nothing", nil, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ExtractPaymentID(tc.q, []byte(tc.body)))
		})
	}
}
