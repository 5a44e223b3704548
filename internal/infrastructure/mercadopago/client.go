package mercadopago

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/Maycon01282/bot2/internal/domain/payment"
	"github.com/Maycon01282/bot2/internal/sink"
)

const DefaultBaseURL = "https://api.mercadopago.com"

type BackURLs struct {
	Success string `json:"success,omitempty"`
	Failure string `json:"failure,omitempty"`
	Pending string `json:"pending,omitempty"`
}

type Config struct {
	BaseURL         string
	AccessToken     string
	Timeout         time.Duration
	BackURLs        BackURLs
	NotificationURL string
	// Sandbox returns sandbox_init_point links instead of init_point.
	Sandbox bool
}

// Client is a minimal Mercado Pago REST client: checkout preferences and
// payment lookup.
type Client struct {
	http *resty.Client
	cfg  Config
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetAuthToken(cfg.AccessToken).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{http: httpClient, cfg: cfg}
}

type preferenceItem struct {
	Title      string  `json:"title"`
	Quantity   int     `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	CurrencyID string  `json:"currency_id"`
}

type preferenceRequest struct {
	Items             []preferenceItem `json:"items"`
	BackURLs          *BackURLs        `json:"back_urls,omitempty"`
	AutoReturn        string           `json:"auto_return,omitempty"`
	NotificationURL   string           `json:"notification_url,omitempty"`
	ExternalReference string           `json:"external_reference,omitempty"`
}

type preferenceResponse struct {
	ID               string `json:"id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, pref sink.Preference) (string, error) {
	if len(pref.Items) == 0 {
		return "", sink.Wrap("create_payment_link", errors.New("preference has no items"))
	}

	body := preferenceRequest{
		NotificationURL:   c.cfg.NotificationURL,
		ExternalReference: pref.ExternalReference,
	}
	for _, it := range pref.Items {
		body.Items = append(body.Items, preferenceItem{
			Title:      it.Title,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			CurrencyID: "BRL",
		})
	}
	if c.cfg.BackURLs != (BackURLs{}) {
		body.BackURLs = &c.cfg.BackURLs
		if c.cfg.BackURLs.Success != "" {
			body.AutoReturn = "approved"
		}
	}

	req := c.http.R().SetContext(ctx).SetBody(body).SetResult(&preferenceResponse{})
	if pref.IdempotencyKey != "" {
		req.SetHeader("X-Idempotency-Key", pref.IdempotencyKey)
	}

	resp, err := req.Post("/checkout/preferences")
	if err != nil {
		return "", sink.Wrap("create_payment_link", err)
	}
	if resp.IsError() {
		return "", sink.Wrap("create_payment_link", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	out := resp.Result().(*preferenceResponse)
	link := out.InitPoint
	if c.cfg.Sandbox && out.SandboxInitPoint != "" {
		link = out.SandboxInitPoint
	}
	if link == "" {
		return "", sink.Wrap("create_payment_link", fmt.Errorf("preference %s has no init_point", out.ID))
	}
	return link, nil
}

type paymentResponse struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	StatusDetail      string  `json:"status_detail"`
	ExternalReference string  `json:"external_reference"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	DateLastUpdated   string  `json:"date_last_updated"`
}

func (c *Client) GetPayment(ctx context.Context, id string) (payment.Payment, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("id", id).
		SetResult(&paymentResponse{}).
		Get("/v1/payments/{id}")
	if err != nil {
		return payment.Payment{}, sink.Wrap("get_payment", err)
	}
	if resp.StatusCode() == http.StatusNotFound {
		return payment.Payment{}, sink.Wrap("get_payment", fmt.Errorf("%w: %s", sink.ErrPaymentNotFound, id))
	}
	if resp.IsError() {
		return payment.Payment{}, sink.Wrap("get_payment", fmt.Errorf("status %d: %s", resp.StatusCode(), resp.String()))
	}

	out := resp.Result().(*paymentResponse)
	p := payment.Payment{
		ID:                strconv.FormatInt(out.ID, 10),
		Status:            out.Status,
		StatusDetail:      out.StatusDetail,
		ExternalReference: out.ExternalReference,
		Amount:            out.TransactionAmount,
		Currency:          out.CurrencyID,
	}
	if t, err := time.Parse(time.RFC3339Nano, out.DateLastUpdated); err == nil {
		p.UpdatedAt = t
	}
	return p, nil
}
