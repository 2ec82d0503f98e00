package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mercadopago/sdk-go/pkg/config"
	"github.com/mercadopago/sdk-go/pkg/payment"
	"github.com/mercadopago/sdk-go/pkg/preference"
	"github.com/shopspring/decimal"
)

// PaymentPreference is what the gateway needs to build a checkout for one friend.
type PaymentPreference struct {
	ItemID            string
	Title             string
	Amount            decimal.Decimal
	Currency          string
	ExternalReference string
	SuccessURL        string
	FailureURL        string
	PendingURL        string
}

type PaymentInfo struct {
	ID                string
	Status            string
	ExternalReference string
}

type PaymentGateway interface {
	// CreatePreference returns the checkout URL the payer is redirected to.
	CreatePreference(ctx context.Context, p PaymentPreference) (string, error)
	GetPayment(ctx context.Context, id string) (*PaymentInfo, error)
}

const DefaultMercadoPagoURL = "https://api.mercadopago.com"

// MercadoPagoGateway is backed by the Checkout Pro SDK.
type MercadoPagoGateway struct {
	preferences preference.Client
	payments    payment.Client
}

// NewMercadoPagoGateway builds the SDK clients. A non-default baseURL sends
// every SDK request to that host instead, for sandboxes and tests.
func NewMercadoPagoGateway(baseURL, accessToken string) (*MercadoPagoGateway, error) {
	httpClient := &http.Client{Timeout: 15 * time.Second}
	if baseURL != "" && baseURL != DefaultMercadoPagoURL {
		target, err := url.Parse(baseURL)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("mercadopago: invalid base URL %q", baseURL)
		}
		httpClient.Transport = &hostRewriter{target: target, next: http.DefaultTransport}
	}

	cfg, err := config.New(accessToken, config.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("mercadopago: config: %w", err)
	}
	return &MercadoPagoGateway{
		preferences: preference.NewClient(cfg),
		payments:    payment.NewClient(cfg),
	}, nil
}

func (g *MercadoPagoGateway) CreatePreference(ctx context.Context, p PaymentPreference) (string, error) {
	unitPrice, _ := p.Amount.Round(2).Float64()
	req := preference.Request{
		Items: []preference.ItemRequest{{
			ID:         p.ItemID,
			Title:      p.Title,
			Quantity:   1,
			UnitPrice:  unitPrice,
			CurrencyID: p.Currency,
		}},
		ExternalReference: p.ExternalReference,
		BackURLs: &preference.BackURLsRequest{
			Success: p.SuccessURL,
			Failure: p.FailureURL,
			Pending: p.PendingURL,
		},
		AutoReturn: "approved",
	}

	res, err := g.preferences.Create(ctx, req)
	if err != nil {
		return "", fmt.Errorf("mercadopago: create preference: %w", err)
	}
	if res.InitPoint == "" {
		return "", fmt.Errorf("mercadopago: preference %s has no init_point", res.ID)
	}
	return res.InitPoint, nil
}

func (g *MercadoPagoGateway) GetPayment(ctx context.Context, id string) (*PaymentInfo, error) {
	n, err := strconv.Atoi(id)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: payment id %q is not numeric", id)
	}

	res, err := g.payments.Get(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("mercadopago: get payment %s: %w", id, err)
	}
	return &PaymentInfo{
		ID:                strconv.Itoa(res.ID),
		Status:            res.Status,
		ExternalReference: res.ExternalReference,
	}, nil
}

// hostRewriter points SDK requests at another scheme and host, keeping the path.
type hostRewriter struct {
	target *url.URL
	next   http.RoundTripper
}

func (h *hostRewriter) RoundTrip(req *http.Request) (*http.Response, error) {
	r := req.Clone(req.Context())
	r.URL.Scheme = h.target.Scheme
	r.URL.Host = h.target.Host
	r.Host = h.target.Host
	return h.next.RoundTrip(r)
}
