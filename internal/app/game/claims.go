package game

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/infra/observability"
)

// ClaimFee is the network fee, in SOL, the player pays to submit a claim.
const ClaimFee = 0.02

// ─── Claims ─────────────────────────────────────────────────────────────────

// Claim prepares a withdrawal of the player's whole token balance. The claim
// stays pending until ConfirmClaim settles it; a newer claim supersedes it.
func (s *Service) Claim(ctx context.Context, playerID string) (domain.Claim, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return domain.Claim{}, err
	}
	if p.Balance <= 0 {
		return domain.Claim{}, domain.ErrNothingToClaim
	}

	c := domain.Claim{
		ID:        uuid.NewString(),
		PlayerID:  p.ID,
		Wallet:    p.Wallet,
		Amount:    p.Balance,
		Fee:       ClaimFee,
		Status:    domain.ClaimPending,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateClaim(ctx, c); err != nil {
		return domain.Claim{}, fmt.Errorf("create claim: %w", err)
	}

	observability.Claims.WithLabelValues(string(domain.ClaimPending)).Inc()
	log.Printf("[game] player %s prepared claim %s amount=%.4f", playerID, c.ID, c.Amount)
	return c, nil
}

// ClaimResult is the outcome of a claim confirmation.
type ClaimResult struct {
	Claim            domain.Claim `json:"claim"`
	AmountClaimed    float64      `json:"amount_claimed"`
	NewBalance       float64      `json:"new_balance"`
	AlreadyProcessed bool         `json:"already_processed"`
}

// ConfirmClaim settles the player's pending claim with the on-chain transfer
// signature. Resubmitting a signature that already settled one of the
// player's claims is a no-op reported as AlreadyProcessed.
//
// Only the claimed amount is deducted, so tokens credited between Claim and
// ConfirmClaim stay on the balance.
func (s *Service) ConfirmClaim(ctx context.Context, playerID, signature string) (ClaimResult, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return ClaimResult{}, domain.ErrSignatureRequired
	}

	done, err := s.store.ConfirmedClaim(ctx, signature)
	switch {
	case err == nil && done.PlayerID == playerID:
		p, err := s.store.GetPlayer(ctx, playerID)
		if err != nil {
			return ClaimResult{}, err
		}
		return ClaimResult{Claim: *done, AmountClaimed: done.Amount, NewBalance: p.Balance, AlreadyProcessed: true}, nil
	case err == nil:
		return ClaimResult{}, domain.ErrDuplicateSignature
	case !errors.Is(err, domain.ErrClaimNotFound):
		return ClaimResult{}, err
	}

	pending, err := s.store.PendingClaim(ctx, playerID)
	if err != nil {
		return ClaimResult{}, err
	}

	if err := s.claimVerifier.VerifyClaim(ctx, *pending, signature); err != nil {
		if ferr := s.store.FailClaim(ctx, pending.ID, signature, err.Error(), s.now()); ferr != nil {
			log.Printf("[game] fail claim %s: %v", pending.ID, ferr)
		}
		observability.Claims.WithLabelValues(string(domain.ClaimFailed)).Inc()
		return ClaimResult{}, fmt.Errorf("%w: %v", domain.ErrClaimRejected, err)
	}

	now := s.now()
	var res ClaimResult
	_, err = s.store.ConfirmClaim(ctx, pending.ID, signature, now, func(p *domain.Player) ([]domain.Transaction, error) {
		amount := math.Min(pending.Amount, p.Balance)
		before := p.Balance
		p.Balance -= amount
		p.UpdatedAt = now

		res = ClaimResult{AmountClaimed: amount, NewBalance: p.Balance}
		return []domain.Transaction{{
			Type:          domain.TxClaim,
			Amount:        -amount,
			BalanceBefore: before,
			BalanceAfter:  p.Balance,
			Reference:     signature,
			Description:   fmt.Sprintf("Claimed %.4f tokens to %s", amount, pending.Wallet),
			Metadata: map[string]any{
				"claim_id": pending.ID,
				"fee_paid": pending.Fee,
			},
			CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return ClaimResult{}, err
	}

	res.Claim = *pending
	res.Claim.Status = domain.ClaimConfirmed
	res.Claim.Signature = signature
	res.Claim.ResolvedAt = &now

	observability.Claims.WithLabelValues(string(domain.ClaimConfirmed)).Inc()
	log.Printf("[game] player %s claimed %.4f sig=%s", playerID, res.AmountClaimed, signature)
	return res, nil
}

// Claims returns a player's claims, newest first.
func (s *Service) Claims(ctx context.Context, playerID string, limit int) ([]domain.Claim, error) {
	if _, err := s.store.GetPlayer(ctx, playerID); err != nil {
		return nil, err
	}
	return s.store.ListClaims(ctx, playerID, limit)
}
