package payments

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
	"go.uber.org/zap"
)

// StripeGateway implements Gateway on Stripe Checkout.
type StripeGateway struct {
	api    *client.API
	logger *zap.Logger
}

// NewStripeGateway creates a Stripe-backed checkout gateway.
func NewStripeGateway(secretKey string, logger *zap.Logger) *StripeGateway {
	if logger == nil {
		logger = zap.NewNop()
	}
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeGateway{api: api, logger: logger}
}

// CreateSession creates a hosted checkout session with the registrant
// metadata attached. Nothing is persisted on our side for this call.
func (g *StripeGateway) CreateSession(ctx context.Context, in CreateSessionInput) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Params:        stripe.Params{Context: ctx},
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(in.SuccessURL),
		CancelURL:     stripe.String(in.CancelURL),
		CustomerEmail: stripe.String(in.CustomerEmail),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Quantity: stripe.Int64(1),
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(in.Currency),
					UnitAmount: stripe.Int64(in.AmountMinorUnits),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(in.Description),
					},
				},
			},
		},
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	sess, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("create checkout session: %w", err)
	}
	g.logger.Debug("checkout session created", zap.String("session_id", sess.ID))
	return fromStripeSession(sess), nil
}

// GetSession retrieves a checkout session by its reference.
func (g *StripeGateway) GetSession(ctx context.Context, sessionID string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{Params: stripe.Params{Context: ctx}}
	sess, err := g.api.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, fmt.Errorf("get checkout session: %w", err)
	}
	return fromStripeSession(sess), nil
}

func fromStripeSession(sess *stripe.CheckoutSession) *Session {
	return &Session{
		ID:          sess.ID,
		URL:         sess.URL,
		Paid:        sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: sess.AmountTotal,
		Currency:    string(sess.Currency),
		Metadata:    sess.Metadata,
	}
}
