package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/economy"
)

// ═══════════════════════════════════════════════════════════════════════════
// Claim & Invite Persistence Tests
// ═══════════════════════════════════════════════════════════════════════════

func seedClaim(t *testing.T, db *DB, id, playerID string, amount float64, at time.Time) {
	t.Helper()
	c := domain.Claim{ID: id, PlayerID: playerID, Wallet: "wallet-" + playerID, Amount: amount, Fee: 0.02, CreatedAt: at}
	if err := db.CreateClaim(context.Background(), c); err != nil {
		t.Fatalf("CreateClaim(%s) error: %v", id, err)
	}
}

func withdraw(amount float64, sig string) domain.PlayerMutation {
	return func(p *domain.Player) ([]domain.Transaction, error) {
		before := p.Balance
		p.Balance -= amount
		return []domain.Transaction{{
			Type: domain.TxClaim, Amount: -amount, BalanceBefore: before, BalanceAfter: p.Balance,
			Reference: sig, CreatedAt: time.Now(),
		}}, nil
	}
}

// ─── Claims ─────────────────────────────────────────────────────────────────

func TestCreateClaim_SupersedesPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedPlayer(t, db, "p1", "wallet-p1", economy.DeviceLevels{})
	t0 := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	seedClaim(t, db, "c1", "p1", 10, t0)
	seedClaim(t, db, "c2", "p1", 12, t0.Add(time.Minute))

	pending, err := db.PendingClaim(ctx, "p1")
	if err != nil {
		t.Fatalf("PendingClaim() error: %v", err)
	}
	if pending.ID != "c2" || pending.Amount != 12 || pending.Status != domain.ClaimPending {
		t.Errorf("PendingClaim() = %+v, want c2 pending 12", pending)
	}

	claims, err := db.ListClaims(ctx, "p1", 10)
	if err != nil {
		t.Fatalf("ListClaims() error: %v", err)
	}
	if len(claims) != 2 {
		t.Fatalf("ListClaims() = %d claims, want 2", len(claims))
	}
	old := claims[1]
	if old.ID != "c1" || old.Status != domain.ClaimFailed || old.ResolvedAt == nil || old.Error == "" {
		t.Errorf("superseded claim = %+v, want failed with reason", old)
	}
}

func TestPendingClaim_None(t *testing.T) {
	db := newTestDB(t)
	if _, err := db.PendingClaim(context.Background(), "p1"); !errors.Is(err, domain.ErrNoPendingClaim) {
		t.Errorf("PendingClaim() = %v, want ErrNoPendingClaim", err)
	}
}

func TestConfirmClaim(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedPlayer(t, db, "p1", "wallet-p1", economy.DeviceLevels{})
	db.UpdatePlayer(ctx, "p1", func(p *domain.Player) ([]domain.Transaction, error) {
		p.Balance = 40
		return nil, nil
	})
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	seedClaim(t, db, "c1", "p1", 40, at)

	p, err := db.ConfirmClaim(ctx, "c1", "sig-claim", at.Add(time.Minute), withdraw(40, "sig-claim"))
	if err != nil {
		t.Fatalf("ConfirmClaim() error: %v", err)
	}
	if p.Balance != 0 {
		t.Errorf("Balance = %f, want 0", p.Balance)
	}

	c, err := db.ConfirmedClaim(ctx, "sig-claim")
	if err != nil {
		t.Fatalf("ConfirmedClaim() error: %v", err)
	}
	if c.ID != "c1" || c.Status != domain.ClaimConfirmed || c.ResolvedAt == nil {
		t.Errorf("ConfirmedClaim() = %+v", c)
	}
	if _, err := db.PendingClaim(ctx, "p1"); !errors.Is(err, domain.ErrNoPendingClaim) {
		t.Errorf("PendingClaim() after confirm = %v, want ErrNoPendingClaim", err)
	}

	txs, _ := db.ListTransactions(ctx, "p1", 10)
	if len(txs) != 1 || txs[0].Type != domain.TxClaim || txs[0].Reference != "sig-claim" {
		t.Errorf("ledger = %+v, want one claim row", txs)
	}

	// Resolved claims cannot be confirmed again.
	if _, err := db.ConfirmClaim(ctx, "c1", "sig-other", at, withdraw(1, "sig-other")); !errors.Is(err, domain.ErrNoPendingClaim) {
		t.Errorf("second ConfirmClaim() = %v, want ErrNoPendingClaim", err)
	}
}

func TestConfirmClaim_MutationErrorRollsBack(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedPlayer(t, db, "p1", "wallet-p1", economy.DeviceLevels{})
	seedClaim(t, db, "c1", "p1", 5, time.Now())

	boom := errors.New("boom")
	_, err := db.ConfirmClaim(ctx, "c1", "sig-1", time.Now(), func(*domain.Player) ([]domain.Transaction, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("ConfirmClaim() = %v, want boom", err)
	}
	c, err := db.PendingClaim(ctx, "p1")
	if err != nil || c.ID != "c1" {
		t.Errorf("claim should stay pending after rollback: %+v, %v", c, err)
	}
}

func TestConfirmClaim_SignatureUsedTwice(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedPlayer(t, db, "p1", "wallet-p1", economy.DeviceLevels{})
	seedPlayer(t, db, "p2", "wallet-p2", economy.DeviceLevels{})
	seedClaim(t, db, "c1", "p1", 0, time.Now())
	seedClaim(t, db, "c2", "p2", 0, time.Now())

	if _, err := db.ConfirmClaim(ctx, "c1", "sig-1", time.Now(), withdraw(0, "sig-1")); err != nil {
		t.Fatalf("first ConfirmClaim() error: %v", err)
	}
	if _, err := db.ConfirmClaim(ctx, "c2", "sig-1", time.Now(), withdraw(0, "sig-1")); !errors.Is(err, domain.ErrDuplicateSignature) {
		t.Errorf("replayed ConfirmClaim() = %v, want ErrDuplicateSignature", err)
	}
	if _, err := db.PendingClaim(ctx, "p2"); err != nil {
		t.Errorf("c2 should stay pending: %v", err)
	}
}

func TestFailClaim(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedPlayer(t, db, "p1", "wallet-p1", economy.DeviceLevels{})
	seedClaim(t, db, "c1", "p1", 5, time.Now())

	if err := db.FailClaim(ctx, "c1", "sig-bad", "not found on chain", time.Now()); err != nil {
		t.Fatalf("FailClaim() error: %v", err)
	}
	claims, _ := db.ListClaims(ctx, "p1", 10)
	if len(claims) != 1 || claims[0].Status != domain.ClaimFailed ||
		claims[0].Error != "not found on chain" || claims[0].Signature != "sig-bad" {
		t.Errorf("claims = %+v", claims)
	}
	if err := db.FailClaim(ctx, "c1", "sig-bad", "again", time.Now()); !errors.Is(err, domain.ErrNoPendingClaim) {
		t.Errorf("second FailClaim() = %v, want ErrNoPendingClaim", err)
	}
	// A failed signature does not block a later confirmation.
	if _, err := db.ConfirmedClaim(ctx, "sig-bad"); !errors.Is(err, domain.ErrClaimNotFound) {
		t.Errorf("ConfirmedClaim(failed sig) = %v, want ErrClaimNotFound", err)
	}
}

// ─── Invite Codes ───────────────────────────────────────────────────────────

func seedInvite(t *testing.T, db *DB, code string) {
	t.Helper()
	c := domain.InviteCode{Code: code, CreatedBy: "admin", Active: true, CreatedAt: time.Now()}
	if err := db.CreateInviteCode(context.Background(), c); err != nil {
		t.Fatalf("CreateInviteCode(%s) error: %v", code, err)
	}
}

func TestCreateInviteCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedInvite(t, db, "ABCD2345")

	c, err := db.GetInviteCode(ctx, "ABCD2345")
	if err != nil {
		t.Fatalf("GetInviteCode() error: %v", err)
	}
	if !c.Redeemable() || c.CreatedBy != "admin" {
		t.Errorf("GetInviteCode() = %+v", c)
	}
	dup := domain.InviteCode{Code: "ABCD2345", Active: true, CreatedAt: time.Now()}
	if err := db.CreateInviteCode(ctx, dup); !errors.Is(err, domain.ErrInviteCodeExists) {
		t.Errorf("duplicate CreateInviteCode() = %v, want ErrInviteCodeExists", err)
	}
	if _, err := db.GetInviteCode(ctx, "NOPE2345"); !errors.Is(err, domain.ErrInviteInvalid) {
		t.Errorf("GetInviteCode(unknown) = %v, want ErrInviteInvalid", err)
	}
}

func TestCreatePlayerWithInvite(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedInvite(t, db, "ABCD2345")
	at := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	p := domain.NewPlayer("p1", "wallet-1", at)
	p.InviteCode = "ABCD2345"
	if err := db.CreatePlayerWithInvite(ctx, p, "ABCD2345", at); err != nil {
		t.Fatalf("CreatePlayerWithInvite() error: %v", err)
	}

	c, _ := db.GetInviteCode(ctx, "ABCD2345")
	if c.Redeemable() || c.UsedBy != "wallet-1" || c.UsedAt == nil || !c.UsedAt.Equal(at) {
		t.Errorf("redeemed code = %+v", c)
	}
	got, _ := db.GetPlayer(ctx, "p1")
	if got.InviteCode != "ABCD2345" {
		t.Errorf("InviteCode = %q, want ABCD2345", got.InviteCode)
	}

	// Used codes admit nobody else.
	q := domain.NewPlayer("p2", "wallet-2", at)
	if err := db.CreatePlayerWithInvite(ctx, q, "ABCD2345", at); !errors.Is(err, domain.ErrInviteInvalid) {
		t.Errorf("reused code = %v, want ErrInviteInvalid", err)
	}
	if _, err := db.GetPlayer(ctx, "p2"); !errors.Is(err, domain.ErrPlayerNotFound) {
		t.Errorf("player p2 should not exist: %v", err)
	}
}

func TestCreatePlayerWithInvite_FailedInsertKeepsCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedPlayer(t, db, "p1", "wallet-1", economy.DeviceLevels{})
	seedInvite(t, db, "ABCD2345")

	p := domain.NewPlayer("p2", "wallet-1", time.Now())
	if err := db.CreatePlayerWithInvite(ctx, p, "ABCD2345", time.Now()); !errors.Is(err, domain.ErrPlayerExists) {
		t.Fatalf("CreatePlayerWithInvite(taken wallet) = %v, want ErrPlayerExists", err)
	}
	c, _ := db.GetInviteCode(ctx, "ABCD2345")
	if !c.Redeemable() {
		t.Errorf("code = %+v, want still redeemable", c)
	}
}

func TestDeactivateInviteCode(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seedInvite(t, db, "ABCD2345")

	if err := db.DeactivateInviteCode(ctx, "ABCD2345"); err != nil {
		t.Fatalf("DeactivateInviteCode() error: %v", err)
	}
	p := domain.NewPlayer("p1", "wallet-1", time.Now())
	if err := db.CreatePlayerWithInvite(ctx, p, "ABCD2345", time.Now()); !errors.Is(err, domain.ErrInviteInvalid) {
		t.Errorf("inactive code = %v, want ErrInviteInvalid", err)
	}
	if err := db.DeactivateInviteCode(ctx, "NOPE2345"); !errors.Is(err, domain.ErrInviteInvalid) {
		t.Errorf("DeactivateInviteCode(unknown) = %v, want ErrInviteInvalid", err)
	}

	codes, err := db.ListInviteCodes(ctx, 10)
	if err != nil || len(codes) != 1 || codes[0].Active {
		t.Errorf("ListInviteCodes() = %+v, %v", codes, err)
	}
}
