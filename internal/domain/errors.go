package domain

import "errors"

// ─── Sentinel Errors ────────────────────────────────────────────────────────
// Domain errors are pure — no infrastructure dependency.

var (
	// Player errors
	ErrPlayerNotFound = errors.New("player not found")
	ErrPlayerExists   = errors.New("player already registered for wallet")
	ErrInvalidWallet  = errors.New("wallet address required")

	// Device errors
	ErrInvalidDevice  = errors.New("invalid device type")
	ErrDeviceNotOwned = errors.New("device not owned, purchase it first")
	ErrDeviceMaxLevel = errors.New("device already at max level")
	ErrDeviceOwned    = errors.New("device already owned")

	// Reward errors
	ErrPuffCooldown = errors.New("puff submitted too soon after the previous one")

	// Balance errors
	ErrInsufficientBalance = errors.New("insufficient token balance")
	ErrInsufficientPoints  = errors.New("insufficient points")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrPoolDepleted        = errors.New("rewards pool depleted")

	// On-chain errors
	ErrDuplicateSignature = errors.New("transaction already processed")
	ErrPurchaseRejected   = errors.New("purchase transaction rejected")
	ErrSignatureRequired  = errors.New("transaction signature required")

	// Claim errors
	ErrNothingToClaim = errors.New("no tokens to claim, balance is 0")
	ErrNoPendingClaim = errors.New("no pending claim")
	ErrClaimNotFound  = errors.New("claim not found")
	ErrClaimRejected  = errors.New("claim transaction rejected")

	// Invite errors
	ErrInviteRequired   = errors.New("invite code required")
	ErrInviteInvalid    = errors.New("invalid or already used invite code")
	ErrInviteCodeExists = errors.New("invite code already exists")
	ErrInviteCount      = errors.New("count must be between 1 and 100")
)
