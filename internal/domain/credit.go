package domain

import "time"

// ─── Ledger Types ───────────────────────────────────────────────────────────
// Every balance or points movement is logged as one ledger row, written in
// the same database transaction as the player update it describes.

// TransactionType represents the business reason for a ledger entry.
type TransactionType string

const (
	TxEarnPuff    TransactionType = "earn_puff"
	TxEarnPassive TransactionType = "earn_passive"
	TxUpgrade     TransactionType = "upgrade"
	TxPurchase    TransactionType = "purchase"
	TxConvert     TransactionType = "convert"
	TxClaim       TransactionType = "claim"
)

// Transaction is a single row in the player ledger.
type Transaction struct {
	ID            string          `json:"id"`
	PlayerID      string          `json:"player_id"`
	Type          TransactionType `json:"transaction_type"`
	Amount        float64         `json:"amount"`
	BalanceBefore float64         `json:"balance_before"`
	BalanceAfter  float64         `json:"balance_after"`
	Reference     string          `json:"reference,omitempty"` // on-chain signature, unique when set
	Description   string          `json:"description,omitempty"`
	Metadata      map[string]any  `json:"metadata,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

// ─── Claims ─────────────────────────────────────────────────────────────────
// A claim moves the off-chain token balance to the player's wallet. It is
// recorded as pending when prepared and resolved once the on-chain transfer
// is verified or rejected.

// ClaimStatus is the lifecycle state of a claim.
type ClaimStatus string

const (
	ClaimPending   ClaimStatus = "pending"
	ClaimConfirmed ClaimStatus = "confirmed"
	ClaimFailed    ClaimStatus = "failed"
)

// Claim is one withdrawal of the token balance.
type Claim struct {
	ID         string      `json:"id"`
	PlayerID   string      `json:"player_id"`
	Wallet     string      `json:"wallet"`
	Amount     float64     `json:"amount"`
	Fee        float64     `json:"fee"`
	Status     ClaimStatus `json:"status"`
	Signature  string      `json:"transaction_signature,omitempty"`
	Error      string      `json:"error_message,omitempty"`
	CreatedAt  time.Time   `json:"created_at"`
	ResolvedAt *time.Time  `json:"resolved_at,omitempty"`
}
