package game

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/infra/observability"
)

const (
	// inviteAlphabet drops 0/O and 1/I so codes survive being read aloud.
	inviteAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	inviteLength   = 8

	maxInviteBatch   = 100
	inviteRetryLimit = 5
)

// randomInviteCode draws inviteLength characters from inviteAlphabet. The
// alphabet has 32 symbols, so byte%32 is unbiased.
func randomInviteCode() (string, error) {
	buf := make([]byte, inviteLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	var b strings.Builder
	for _, c := range buf {
		b.WriteByte(inviteAlphabet[int(c)%len(inviteAlphabet)])
	}
	return b.String(), nil
}

// ─── Invites ────────────────────────────────────────────────────────────────

// GenerateInviteCodes issues count fresh single-use codes attributed to
// createdBy. Colliding codes are redrawn.
func (s *Service) GenerateInviteCodes(ctx context.Context, createdBy string, count int) ([]domain.InviteCode, error) {
	if count < 1 || count > maxInviteBatch {
		return nil, domain.ErrInviteCount
	}
	createdBy = strings.TrimSpace(createdBy)
	if createdBy == "" {
		createdBy = "admin"
	}

	out := make([]domain.InviteCode, 0, count)
	for len(out) < count {
		c, err := s.issueInviteCode(ctx, createdBy)
		if err != nil {
			return out, err
		}
		out = append(out, c)
	}

	observability.InvitesIssued.Add(float64(len(out)))
	log.Printf("[game] %s generated %d invite codes", createdBy, len(out))
	return out, nil
}

func (s *Service) issueInviteCode(ctx context.Context, createdBy string) (domain.InviteCode, error) {
	for attempt := 0; attempt < inviteRetryLimit; attempt++ {
		code, err := s.newCode()
		if err != nil {
			return domain.InviteCode{}, fmt.Errorf("draw invite code: %w", err)
		}
		c := domain.InviteCode{Code: code, CreatedBy: createdBy, Active: true, CreatedAt: s.now()}
		err = s.store.CreateInviteCode(ctx, c)
		if errors.Is(err, domain.ErrInviteCodeExists) {
			continue
		}
		if err != nil {
			return domain.InviteCode{}, err
		}
		return c, nil
	}
	return domain.InviteCode{}, fmt.Errorf("no free code after %d attempts: %w", inviteRetryLimit, domain.ErrInviteCodeExists)
}

// ValidateInviteCode reports whether code can still admit a new wallet,
// without redeeming it.
func (s *Service) ValidateInviteCode(ctx context.Context, code string) (*domain.InviteCode, error) {
	code = domain.NormalizeInviteCode(code)
	if code == "" {
		return nil, domain.ErrInviteRequired
	}
	c, err := s.store.GetInviteCode(ctx, code)
	if err != nil {
		return nil, err
	}
	if !c.Redeemable() {
		return nil, domain.ErrInviteInvalid
	}
	return c, nil
}

// InviteCodes lists issued codes, newest first.
func (s *Service) InviteCodes(ctx context.Context, limit int) ([]domain.InviteCode, error) {
	return s.store.ListInviteCodes(ctx, limit)
}

// DeactivateInviteCode withdraws a code so it can no longer be redeemed.
func (s *Service) DeactivateInviteCode(ctx context.Context, code string) error {
	code = domain.NormalizeInviteCode(code)
	if err := s.store.DeactivateInviteCode(ctx, code); err != nil {
		return err
	}
	log.Printf("[game] deactivated invite code %s", code)
	return nil
}
