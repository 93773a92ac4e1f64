package entity

import "errors"

var (
	ErrLeadNotFound       = errors.New("lead not found")
	ErrLeadExists         = errors.New("lead already exists within dedup window")
	ErrLeadReferenced     = errors.New("lead is referenced by a listing or purchase")
	ErrListingNotFound    = errors.New("listing not found")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrListingExists      = errors.New("listing already exists for lead")
	ErrListingUnavailable = errors.New("listing is no longer available")
	ErrDuplicatePurchase  = errors.New("buyer already purchased this lead")
)
