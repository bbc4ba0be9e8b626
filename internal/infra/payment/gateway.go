package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/ledgerline/portal-iam/internal/core/domain"
	"github.com/ledgerline/portal-iam/internal/core/port"
	"github.com/ledgerline/portal-iam/internal/infra/config"
)

// ErrDeclined indicates the provider rejected the charge.
var ErrDeclined = fmt.Errorf("payment: declined by provider")

// HTTPGateway charges cards by POSTing to the brand's payment endpoint.
// The brand has already been validated against the allow-list upstream, so
// it is safe to use as a host name here.
type HTTPGateway struct {
	cfg    config.PaymentSettings
	client *http.Client
	log    *zap.Logger
}

// NewHTTPGateway constructs a gateway with the configured timeout.
func NewHTTPGateway(cfg config.PaymentSettings, log *zap.Logger) *HTTPGateway {
	return &HTTPGateway{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		log:    log,
	}
}

type chargeRequest struct {
	CardNumber string  `json:"card_number"`
	HolderName string  `json:"holder_name"`
	ExpiryMM   int     `json:"expiry_month"`
	ExpiryYY   int     `json:"expiry_year"`
	CVV        string  `json:"cvv"`
	Amount     float64 `json:"amount"`
}

// Charge submits the card to the brand's provider and interprets the status code.
func (g *HTTPGateway) Charge(ctx context.Context, card domain.PaymentCard, amount float64) error {
	body, err := json.Marshal(chargeRequest{
		CardNumber: card.Number,
		HolderName: card.HolderName,
		ExpiryMM:   card.ExpiryMM,
		ExpiryYY:   card.ExpiryYY,
		CVV:        card.CVV,
		Amount:     amount,
	})
	if err != nil {
		return fmt.Errorf("marshal charge request: %w", err)
	}

	url := fmt.Sprintf("%s://%s/payments", g.cfg.Scheme, card.Brand)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build charge request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("charge via %s: %w", card.Brand, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		g.log.Warn("payment declined",
			zap.String("brand", card.Brand),
			zap.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: status %d", ErrDeclined, resp.StatusCode)
	}

	return nil
}

var _ port.PaymentGateway = (*HTTPGateway)(nil)
