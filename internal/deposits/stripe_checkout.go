package deposits

import (
	"context"
	"fmt"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"
)

// CheckoutProvider creates hosted card-payment sessions. StripeCheckout
// implements it; tests substitute a stub.
type CheckoutProvider interface {
	CreateSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)
}

// CheckoutParams describes the payment page for one deposit.
type CheckoutParams struct {
	DepositID string
	UserID    string
	Amount    int64 // cents
}

// CheckoutSession is the hosted page the worker is redirected to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// StripeCheckout issues Stripe Checkout sessions in payment mode. The
// deposit id rides along as the client reference so the payment can be
// matched back during review.
type StripeCheckout struct {
	api        *client.API
	successURL string
	cancelURL  string
}

func NewStripeCheckout(secretKey, successURL, cancelURL string) *StripeCheckout {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &StripeCheckout{api: api, successURL: successURL, cancelURL: cancelURL}
}

func (s *StripeCheckout) CreateSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{
		Params: stripe.Params{
			Context:  ctx,
			Metadata: map[string]string{"userId": p.UserID, "depositId": p.DepositID},
		},
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(p.DepositID),
		SuccessURL:        stripe.String(s.successURL),
		CancelURL:         stripe.String(s.cancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(p.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Account balance top-up"),
				},
			},
		}},
	}
	sess, err := s.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}
	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}
