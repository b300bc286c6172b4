// Package stripegw implements the payment gateway on Stripe Connect.
// Charges run as destination charges: the companion's connected account
// receives the funds and the platform fee rides as the application fee.
package stripegw

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v81"
	"github.com/stripe/stripe-go/v81/client"

	"github.com/zenofund/companion/internal/metrics"
	"github.com/zenofund/companion/internal/payment"
)

const referenceKey = "booking_reference"

// Gateway is a Stripe-backed payment gateway.
type Gateway struct {
	api        *client.API
	successURL string
}

// New creates a Stripe gateway. successURL is where Checkout redirects
// after payment; the reference query parameter is appended to it.
func New(secretKey, successURL string) *Gateway {
	api := &client.API{}
	api.Init(secretKey, nil)
	return &Gateway{api: api, successURL: successURL}
}

func (g *Gateway) Initialize(ctx context.Context, charge payment.Charge) (*payment.Authorization, error) {
	start := time.Now()
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues("initialize").Observe(time.Since(start).Seconds())
	}()

	successURL := g.successURL
	if successURL == "" {
		successURL = charge.CallbackURL
	}
	successURL = appendReference(successURL, charge.Reference)

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		ClientReferenceID: stripe.String(charge.Reference),
		SuccessURL:        stripe.String(successURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(strings.ToLower(charge.Currency)),
				UnitAmount: stripe.Int64(charge.Amount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Companion booking"),
				},
			},
		}},
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: map[string]string{referenceKey: charge.Reference},
		},
	}
	if charge.Email != "" {
		params.CustomerEmail = stripe.String(charge.Email)
	}
	if charge.SubaccountCode != "" {
		params.PaymentIntentData.ApplicationFeeAmount = stripe.Int64(charge.PlatformFee)
		params.PaymentIntentData.TransferData = &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
			Destination: stripe.String(charge.SubaccountCode),
		}
	}
	params.Context = ctx

	session, err := g.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, fmt.Errorf("creating checkout session: %w", err)
	}
	return &payment.Authorization{Reference: charge.Reference, URL: session.URL}, nil
}

func (g *Gateway) Verify(ctx context.Context, reference string) (*payment.VerifyResult, error) {
	start := time.Now()
	defer func() {
		metrics.GatewayRequestDuration.WithLabelValues("verify").Observe(time.Since(start).Seconds())
	}()

	params := &stripe.PaymentIntentSearchParams{
		SearchParams: stripe.SearchParams{
			Query:   fmt.Sprintf("metadata[%q]:%q", referenceKey, reference),
			Context: ctx,
		},
	}
	iter := g.api.PaymentIntents.Search(params)

	result := &payment.VerifyResult{Reference: reference}
	for iter.Next() {
		pi := iter.PaymentIntent()
		result.Amount = pi.Amount
		result.Currency = strings.ToUpper(string(pi.Currency))
		if pi.Status == stripe.PaymentIntentStatusSucceeded {
			result.Paid = true
			result.PaidAt = time.Unix(pi.Created, 0).UTC()
		}
		break
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("searching payment intent: %w", err)
	}
	if result.PaidAt.IsZero() {
		result.PaidAt = time.Now().UTC()
	}
	return result, nil
}

func appendReference(url, reference string) string {
	sep := "?"
	if strings.Contains(url, "?") {
		sep = "&"
	}
	return url + sep + "reference=" + reference
}
