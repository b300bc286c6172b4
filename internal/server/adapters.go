package server

import (
	"context"

	"github.com/zenofund/companion/internal/booking"
	"github.com/zenofund/companion/internal/companion"
	"github.com/zenofund/companion/internal/paystack"
)

// companionDirectoryAdapter exposes the companion store to the booking
// engine in the narrow shape it needs.
type companionDirectoryAdapter struct {
	store companion.Store
}

func (a *companionDirectoryAdapter) Lookup(ctx context.Context, companionID string) (*booking.CompanionInfo, error) {
	cmp, err := a.store.Get(ctx, companionID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toInfo(cmp), nil
}

func (a *companionDirectoryAdapter) LookupByUser(ctx context.Context, userID string) (*booking.CompanionInfo, error) {
	cmp, err := a.store.GetByUserID(ctx, userID)
	if err != nil {
		return nil, mapNotFound(err)
	}
	return toInfo(cmp), nil
}

func (a *companionDirectoryAdapter) SetAvailability(ctx context.Context, companionID string, available bool) error {
	return mapNotFound(a.store.SetAvailability(ctx, companionID, available))
}

func toInfo(cmp *companion.Companion) *booking.CompanionInfo {
	return &booking.CompanionInfo{
		ID:             cmp.ID,
		UserID:         cmp.UserID,
		HourlyRate:     cmp.HourlyRate,
		Currency:       cmp.Currency,
		Available:      cmp.IsAvailable,
		Approved:       cmp.ModerationStatus == companion.ModerationApproved,
		SubaccountCode: cmp.SubaccountCode,
	}
}

func mapNotFound(err error) error {
	if err == companion.ErrNotFound {
		return booking.ErrNotFound
	}
	return err
}

// subaccountAdapter lets listing registration create Paystack payout
// subaccounts without the companion package knowing the provider.
type subaccountAdapter struct {
	client *paystack.Client
}

func (a *subaccountAdapter) CreateSubaccount(ctx context.Context, businessName, bankCode, accountNumber string) (string, error) {
	return a.client.CreateSubaccount(ctx, paystack.SubaccountRequest{
		BusinessName:  businessName,
		BankCode:      bankCode,
		AccountNumber: accountNumber,
	})
}
