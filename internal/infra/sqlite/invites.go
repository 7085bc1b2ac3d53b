package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/solpxlb/puffquest/internal/domain"
)

// ─── Invite Operations ──────────────────────────────────────────────────────

const inviteColumns = `code, created_by, is_active, used_by, used_at, created_at`

func scanInvite(row rowScanner) (*domain.InviteCode, error) {
	var (
		c              domain.InviteCode
		active         int
		usedBy, usedAt sql.NullString
		created        string
	)
	if err := row.Scan(&c.Code, &c.CreatedBy, &active, &usedBy, &usedAt, &created); err != nil {
		return nil, err
	}
	c.Active = active == 1
	c.UsedBy = usedBy.String
	if usedAt.Valid {
		t := parseTime(usedAt.String)
		c.UsedAt = &t
	}
	c.CreatedAt = parseTime(created)
	return &c, nil
}

// CreateInviteCode inserts a new, active code.
func (db *DB) CreateInviteCode(ctx context.Context, c domain.InviteCode) error {
	_, err := db.db.ExecContext(ctx, `
		INSERT INTO invite_codes (code, created_by, is_active, created_at)
		VALUES (?, ?, ?, ?)
	`, c.Code, c.CreatedBy, boolInt(c.Active), formatTime(c.CreatedAt))
	if isUniqueViolation(err) {
		return domain.ErrInviteCodeExists
	}
	return err
}

// GetInviteCode loads a code. An unknown code yields ErrInviteInvalid.
func (db *DB) GetInviteCode(ctx context.Context, code string) (*domain.InviteCode, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM invite_codes WHERE code = ?`, code)
	c, err := scanInvite(row)
	if isNoRows(err) {
		return nil, domain.ErrInviteInvalid
	}
	return c, err
}

// ListInviteCodes returns the most recently issued codes first.
func (db *DB) ListInviteCodes(ctx context.Context, limit int) ([]domain.InviteCode, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+inviteColumns+` FROM invite_codes
		ORDER BY created_at DESC, code LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.InviteCode
	for rows.Next() {
		c, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// DeactivateInviteCode stops an unused code from being redeemed.
func (db *DB) DeactivateInviteCode(ctx context.Context, code string) error {
	res, err := db.db.ExecContext(ctx, `UPDATE invite_codes SET is_active = 0 WHERE code = ?`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrInviteInvalid
	}
	return nil
}

// CreatePlayerWithInvite marks code used by p.Wallet and inserts p. Both
// writes share one transaction, so a failed insert leaves the code unused.
func (db *DB) CreatePlayerWithInvite(ctx context.Context, p domain.Player, code string, at time.Time) error {
	return db.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE invite_codes SET used_by = ?, used_at = ?
			WHERE code = ? AND is_active = 1 AND used_by IS NULL
		`, p.Wallet, formatTime(at), code)
		if err != nil {
			return fmt.Errorf("redeem invite: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return domain.ErrInviteInvalid
		}
		return insertPlayer(ctx, tx, p)
	})
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
