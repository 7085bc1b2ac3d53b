package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/solpxlb/puffquest/internal/domain"
)

// ─── Claim Operations ───────────────────────────────────────────────────────

const claimColumns = `id, player_id, wallet, amount, fee, status, signature, error_message,
	created_at, resolved_at`

func scanClaim(row rowScanner) (*domain.Claim, error) {
	var (
		c        domain.Claim
		status   string
		created  string
		resolved sql.NullString
	)
	if err := row.Scan(&c.ID, &c.PlayerID, &c.Wallet, &c.Amount, &c.Fee, &status,
		&c.Signature, &c.Error, &created, &resolved); err != nil {
		return nil, err
	}
	c.Status = domain.ClaimStatus(status)
	c.CreatedAt = parseTime(created)
	if resolved.Valid {
		t := parseTime(resolved.String)
		c.ResolvedAt = &t
	}
	return &c, nil
}

// CreateClaim records c as pending. An older pending claim of the same
// player is failed first, so at most one claim awaits confirmation.
func (db *DB) CreateClaim(ctx context.Context, c domain.Claim) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			UPDATE claims SET status = ?, error_message = ?, resolved_at = ?
			WHERE player_id = ? AND status = ?
		`, string(domain.ClaimFailed), "superseded by a newer claim", formatTime(c.CreatedAt),
			c.PlayerID, string(domain.ClaimPending)); err != nil {
			return fmt.Errorf("supersede claims: %w", err)
		}

		_, err := tx.ExecContext(ctx, `
			INSERT INTO claims (id, player_id, wallet, amount, fee, status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
		`, c.ID, c.PlayerID, c.Wallet, c.Amount, c.Fee, string(domain.ClaimPending), formatTime(c.CreatedAt))
		if err != nil {
			return fmt.Errorf("insert claim: %w", err)
		}
		return nil
	})
}

// PendingClaim returns the player's claim awaiting confirmation.
func (db *DB) PendingClaim(ctx context.Context, playerID string) (*domain.Claim, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM claims
		WHERE player_id = ? AND status = ?
		ORDER BY created_at DESC LIMIT 1
	`, playerID, string(domain.ClaimPending))
	c, err := scanClaim(row)
	if isNoRows(err) {
		return nil, domain.ErrNoPendingClaim
	}
	return c, err
}

// ConfirmedClaim returns the claim confirmed under signature.
func (db *DB) ConfirmedClaim(ctx context.Context, signature string) (*domain.Claim, error) {
	row := db.db.QueryRowContext(ctx, `
		SELECT `+claimColumns+` FROM claims WHERE signature = ? AND status = ?
	`, signature, string(domain.ClaimConfirmed))
	c, err := scanClaim(row)
	if isNoRows(err) {
		return nil, domain.ErrClaimNotFound
	}
	return c, err
}

// ListClaims returns a player's claims, newest first.
func (db *DB) ListClaims(ctx context.Context, playerID string, limit int) ([]domain.Claim, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+claimColumns+` FROM claims WHERE player_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ConfirmClaim resolves a pending claim as confirmed and applies fn to its
// player in the same transaction. A signature that already confirmed another
// claim yields ErrDuplicateSignature.
func (db *DB) ConfirmClaim(ctx context.Context, claimID, signature string, at time.Time, fn domain.PlayerMutation) (*domain.Player, error) {
	var p *domain.Player
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var playerID string
		err := tx.QueryRowContext(ctx, `SELECT player_id FROM claims WHERE id = ? AND status = ?`,
			claimID, string(domain.ClaimPending)).Scan(&playerID)
		if isNoRows(err) {
			return domain.ErrNoPendingClaim
		}
		if err != nil {
			return fmt.Errorf("load claim: %w", err)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE claims SET status = ?, signature = ?, resolved_at = ? WHERE id = ?
		`, string(domain.ClaimConfirmed), signature, formatTime(at), claimID)
		if isUniqueViolation(err) {
			return domain.ErrDuplicateSignature
		}
		if err != nil {
			return fmt.Errorf("confirm claim: %w", err)
		}

		p, err = updatePlayerTx(ctx, tx, playerID, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// FailClaim resolves a pending claim as failed.
func (db *DB) FailClaim(ctx context.Context, claimID, signature, reason string, at time.Time) error {
	res, err := db.db.ExecContext(ctx, `
		UPDATE claims SET status = ?, signature = ?, error_message = ?, resolved_at = ?
		WHERE id = ? AND status = ?
	`, string(domain.ClaimFailed), signature, reason, formatTime(at), claimID, string(domain.ClaimPending))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNoPendingClaim
	}
	return nil
}
