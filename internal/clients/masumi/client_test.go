package masumi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/yungbote/contentagent/internal/domain"
	"github.com/yungbote/contentagent/internal/platform/logger"
	"github.com/yungbote/contentagent/internal/platform/providererr"
)

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, rt roundTripperFunc) *Client {
	t.Helper()
	c, err := New(logger.Nop(), Options{
		BaseURL:         "https://payments.example/api/v1",
		APIKey:          "pay-key",
		AgentIdentifier: "agent-1",
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	c.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC) }
	c.http.WithHTTPClient(&http.Client{Transport: rt})
	return c
}

func reply(status int, body string) *http.Response {
	return &http.Response{StatusCode: status, Header: http.Header{}, Body: io.NopCloser(strings.NewReader(body))}
}

func TestCreatePaymentRequest(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/payment/" {
			t.Fatalf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("token") != "pay-key" {
			t.Fatalf("missing token header")
		}
		var body createPaymentBody
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if body.AgentIdentifier != "agent-1" || body.Network != "Preprod" || body.InputHash != "abc" || body.IdentifierFromPurchaser != "buyer" {
			t.Fatalf("unexpected body %+v", body)
		}
		if body.PayByTime != "2026-01-02T15:04:05Z" {
			t.Fatalf("payByTime=%s", body.PayByTime)
		}
		return reply(200, `{"status":"success","data":{"blockchainIdentifier":"bc-1","payByTime":"1767366245000","submitResultTime":1767409445000,"unlockTime":"u","externalDisputeUnlockTime":"e"}}`), nil
	})

	terms, err := c.CreatePaymentRequest(context.Background(), domain.PaymentRequest{IdentifierFromPurchaser: "buyer", InputHash: "abc"})
	if err != nil {
		t.Fatalf("CreatePaymentRequest: %v", err)
	}
	if terms.BlockchainIdentifier != "bc-1" || terms.PayByTime != "1767366245000" || terms.SubmitResultTime != "1767409445000" || terms.InputHash != "abc" {
		t.Fatalf("unexpected terms %+v", terms)
	}
}

func TestCreatePaymentRequestMissingIdentifier(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return reply(200, `{"status":"success","data":{}}`), nil
	})
	_, err := c.CreatePaymentRequest(context.Background(), domain.PaymentRequest{InputHash: "abc"})
	if !errors.Is(err, ErrMissingIdentifier) || !providererr.IsPermanent(err) {
		t.Fatalf("expected permanent missing identifier, got %v", err)
	}
}

func TestPaymentStatus(t *testing.T) {
	payload := `{"status":"success","data":{"Payments":[
		{"blockchainIdentifier":"locked","onChainState":"FundsLocked"},
		{"blockchainIdentifier":"waiting","onChainState":null}
	]}}`
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		q := r.URL.Query()
		if r.Method != http.MethodGet || q.Get("limit") != "10" || q.Get("network") != "Preprod" || q.Get("includeHistory") != "false" {
			t.Fatalf("unexpected request %s", r.URL)
		}
		return reply(200, payload), nil
	})

	cases := map[string]domain.ProviderStatus{
		"locked":  domain.ProviderConfirmed,
		"waiting": domain.ProviderPending,
		"missing": domain.ProviderNotFound,
	}
	for ref, want := range cases {
		got, err := c.PaymentStatus(context.Background(), ref)
		if err != nil {
			t.Fatalf("PaymentStatus(%s): %v", ref, err)
		}
		if got != want {
			t.Fatalf("PaymentStatus(%s)=%s want %s", ref, got, want)
		}
	}
}

func TestPaymentStatusFollowsCursorPages(t *testing.T) {
	var firstPage []string
	for i := 0; i < 10; i++ {
		firstPage = append(firstPage, fmt.Sprintf(`{"id":"p%d","blockchainIdentifier":"other-%d","onChainState":null}`, i, i))
	}
	pages := map[string]string{
		"":   `{"status":"success","data":{"Payments":[` + strings.Join(firstPage, ",") + `]}}`,
		"p9": `{"status":"success","data":{"Payments":[{"id":"p10","blockchainIdentifier":"late","onChainState":"FundsLocked"}]}}`,
	}
	var cursors []string
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		cursor := r.URL.Query().Get("cursorId")
		cursors = append(cursors, cursor)
		body, ok := pages[cursor]
		if !ok {
			t.Fatalf("unexpected cursor %q", cursor)
		}
		return reply(200, body), nil
	})

	got, err := c.PaymentStatus(context.Background(), "late")
	if err != nil {
		t.Fatalf("PaymentStatus: %v", err)
	}
	if got != domain.ProviderConfirmed {
		t.Fatalf("status=%s want %s", got, domain.ProviderConfirmed)
	}
	if len(cursors) != 2 || cursors[1] != "p9" {
		t.Fatalf("cursors=%q", cursors)
	}

	cursors = nil
	got, err = c.PaymentStatus(context.Background(), "never")
	if err != nil {
		t.Fatalf("PaymentStatus: %v", err)
	}
	if got != domain.ProviderNotFound || len(cursors) != 2 {
		t.Fatalf("status=%s after %d pages", got, len(cursors))
	}
}

func TestPaymentStatusTransientFailure(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		return reply(503, `down`), nil
	})
	_, err := c.PaymentStatus(context.Background(), "x")
	if !providererr.IsTransient(err) {
		t.Fatalf("expected transient error, got %v", err)
	}
}

func TestSubmitResult(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/api/v1/payment/submit-result" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		var body submitResultBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.BlockchainIdentifier != "bc-1" || body.SubmitResultHash != "hash" || body.Network != "Preprod" {
			t.Fatalf("unexpected body %+v", body)
		}
		return reply(200, `{"status":"success"}`), nil
	})
	if err := c.SubmitResult(context.Background(), "bc-1", "hash"); err != nil {
		t.Fatalf("SubmitResult: %v", err)
	}
}

func TestPurchaseRejectsIncompleteOffer(t *testing.T) {
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	err := c.Purchase(context.Background(), Offer{BlockchainIdentifier: "bc"})
	if !errors.Is(err, ErrIncompleteOffer) {
		t.Fatalf("expected ErrIncompleteOffer, got %v", err)
	}
	if !strings.Contains(err.Error(), "sellerVkey") {
		t.Fatalf("expected missing field list, got %v", err)
	}
}

func TestPurchase(t *testing.T) {
	var offer Offer
	raw := `{"job_id":"j","blockchainIdentifier":"bc","sellerVKey":"vk","agentIdentifier":"img","identifierFromPurchaser":"me",
		"payByTime":1,"submitResultTime":"2","unlockTime":"3","externalDisputeUnlockTime":4,"input_hash":"h"}`
	if err := json.Unmarshal([]byte(raw), &offer); err != nil {
		t.Fatalf("unmarshal offer: %v", err)
	}
	c := newTestClient(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/api/v1/purchase/" {
			t.Fatalf("path=%s", r.URL.Path)
		}
		var body purchaseBody
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.SellerVkey != "vk" || body.PayByTime != "1" || body.ExternalDisputeUnlockTime != "4" || body.InputHash != "h" {
			t.Fatalf("unexpected body %+v", body)
		}
		return reply(200, `{"status":"success"}`), nil
	})
	if err := c.Purchase(context.Background(), offer); err != nil {
		t.Fatalf("Purchase: %v", err)
	}
}
