package services

import "errors"

// Business-rule and concurrency sentinels. Handlers map these to HTTP
// statuses; anything else bubbling out of a service is an infrastructure
// error and surfaces as a retryable 500.
var (
	ErrAccountNotFound = errors.New("account not found")
	ErrAccountInactive = errors.New("account inactive")

	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNonPositiveAmount   = errors.New("amount must be positive")

	ErrTokenNotFound = errors.New("token not found")
	ErrTokenExpired  = errors.New("token expired")
	// ErrAlreadyConsumed means a concurrent consume won the race — distinct
	// from the token being invalid in the first place.
	ErrAlreadyConsumed = errors.New("token already consumed")

	ErrCouponNotFound = errors.New("coupon not found")
	ErrCouponUsed     = errors.New("coupon already used")
	ErrCouponExpired  = errors.New("coupon expired")

	ErrMerchantNotFound = errors.New("merchant not found or inactive")

	ErrSelfReferral        = errors.New("referral code belongs to the signing-up account")
	ErrReferralRateLimited = errors.New("referrer exceeded the 24h referral limit")
	ErrAlreadyReferred     = errors.New("account was already referred")

	ErrBlockedByRisk = errors.New("action blocked by risk gate")

	ErrSettlementNotFound = errors.New("settlement not found")
	ErrInvalidTransition  = errors.New("invalid settlement status transition")
)
