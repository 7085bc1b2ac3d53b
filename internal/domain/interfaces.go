package domain

import (
	"context"
	"time"
)

// ─── Service Interfaces ─────────────────────────────────────────────────────
// These interfaces define boundaries between layers.
// Infrastructure implements them; application layer depends on them.

// PlayerMutation edits a player in place and returns the ledger rows that
// describe the edit. Returning an error aborts the whole update.
type PlayerMutation func(p *Player) ([]Transaction, error)

// PlayerStore abstracts the per-player record store.
type PlayerStore interface {
	CreatePlayer(ctx context.Context, p Player) error
	GetPlayer(ctx context.Context, id string) (*Player, error)
	GetPlayerByWallet(ctx context.Context, wallet string) (*Player, error)

	// UpdatePlayer applies fn atomically: read, mutate, write and append the
	// returned transactions, or nothing at all.
	UpdatePlayer(ctx context.Context, id string, fn PlayerMutation) (*Player, error)

	// ListPassiveEligible returns players owning a device at level 2 or higher.
	ListPassiveEligible(ctx context.Context) ([]Player, error)
}

// StatsStore abstracts the singleton global stats record.
type StatsStore interface {
	GlobalStats(ctx context.Context) (StatsSnapshot, error)
	SaveGlobalStats(ctx context.Context, s StatsSnapshot) error

	// AggregateStats counts players with at least one puff and sums every
	// player's total earned tokens.
	AggregateStats(ctx context.Context) (players int64, distributed float64, err error)
}

// LedgerStore abstracts read access to the transaction ledger.
type LedgerStore interface {
	ListTransactions(ctx context.Context, playerID string, limit int) ([]Transaction, error)
}

// InviteStore abstracts the invite code table.
type InviteStore interface {
	// CreateInviteCode inserts c. A taken code yields ErrInviteCodeExists.
	CreateInviteCode(ctx context.Context, c InviteCode) error
	GetInviteCode(ctx context.Context, code string) (*InviteCode, error)
	ListInviteCodes(ctx context.Context, limit int) ([]InviteCode, error)
	DeactivateInviteCode(ctx context.Context, code string) error

	// CreatePlayerWithInvite redeems code for p.Wallet and inserts p in one
	// transaction. When the insert fails the code stays unused.
	CreatePlayerWithInvite(ctx context.Context, p Player, code string, at time.Time) error
}

// ClaimStore abstracts the claim records.
type ClaimStore interface {
	// CreateClaim records c as pending and fails any older pending claim of
	// the same player.
	CreateClaim(ctx context.Context, c Claim) error
	PendingClaim(ctx context.Context, playerID string) (*Claim, error)
	ConfirmedClaim(ctx context.Context, signature string) (*Claim, error)
	ListClaims(ctx context.Context, playerID string, limit int) ([]Claim, error)

	// ConfirmClaim marks a pending claim confirmed under signature and applies
	// fn to its player, all in one transaction.
	ConfirmClaim(ctx context.Context, claimID, signature string, at time.Time, fn PlayerMutation) (*Player, error)

	// FailClaim marks a pending claim failed with reason.
	FailClaim(ctx context.Context, claimID, signature, reason string, at time.Time) error
}

// Clock supplies the current time; tests inject a fixed one.
type Clock func() time.Time
