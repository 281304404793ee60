package checkout

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/paymentintent"

	stripeclient "github.com/epicerie-app/epicerie-backend/pkg/stripe"
)

// Intent is the gateway-neutral view of a payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountMinor  int64
	Currency     string
	Metadata     map[string]string
}

// Succeeded reports whether the intent has been paid.
func (i *Intent) Succeeded() bool {
	return i != nil && i.Status == string(stripe.PaymentIntentStatusSucceeded)
}

// PaymentGateway abstracts the payment provider so the service can be tested
// without network calls.
type PaymentGateway interface {
	CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error)
	GetIntent(ctx context.Context, id string) (*Intent, error)
}

type stripeGateway struct {
	client *stripeclient.Client
}

// NewStripeGateway adapts the shared Stripe client to the PaymentGateway
// surface.
func NewStripeGateway(client *stripeclient.Client) (PaymentGateway, error) {
	if client == nil {
		return nil, fmt.Errorf("stripe client is required")
	}
	return &stripeGateway{client: client}, nil
}

func (g *stripeGateway) CreateIntent(ctx context.Context, amountMinor int64, currency string, metadata map[string]string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountMinor),
		Currency: stripe.String(currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	for key, value := range metadata {
		params.AddMetadata(key, value)
	}

	pi, err := paymentintent.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func (g *stripeGateway) GetIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := paymentintent.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieving payment intent: %w", err)
	}
	return intentFromStripe(pi), nil
}

func intentFromStripe(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountMinor:  pi.Amount,
		Currency:     string(pi.Currency),
		Metadata:     pi.Metadata,
	}
}
