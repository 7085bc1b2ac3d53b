package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/solpxlb/puffquest/internal/domain"
)

const playerColumns = `id, wallet, vape, cigarette, cigar, balance, points, total_earned,
	total_points, total_puffs, streak_days, last_active_day, last_passive_claim,
	passive_accumulated, invite_code, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlayer(row rowScanner) (*domain.Player, error) {
	var (
		p                       domain.Player
		activeDay, passiveClaim sql.NullString
		created, updated        string
	)
	err := row.Scan(&p.ID, &p.Wallet, &p.Devices.Vape, &p.Devices.Cigarette, &p.Devices.Cigar,
		&p.Balance, &p.Points, &p.TotalEarned, &p.TotalPoints, &p.TotalPuffs, &p.StreakDays,
		&activeDay, &passiveClaim, &p.PassiveAccrued, &p.InviteCode, &created, &updated)
	if err != nil {
		return nil, err
	}
	if activeDay.Valid {
		p.LastActiveDay = parseTime(activeDay.String)
	}
	if passiveClaim.Valid {
		t := parseTime(passiveClaim.String)
		p.LastPassiveAt = &t
	}
	p.CreatedAt = parseTime(created)
	p.UpdatedAt = parseTime(updated)
	return &p, nil
}

// ─── Player Operations ──────────────────────────────────────────────────────

// CreatePlayer inserts a new player. A taken wallet yields ErrPlayerExists.
func (db *DB) CreatePlayer(ctx context.Context, p domain.Player) error {
	return insertPlayer(ctx, db.db, p)
}

func insertPlayer(ctx context.Context, ex execer, p domain.Player) error {
	_, err := ex.ExecContext(ctx, `
		INSERT INTO players (`+playerColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, p.ID, p.Wallet, p.Devices.Vape, p.Devices.Cigarette, p.Devices.Cigar,
		p.Balance, p.Points, p.TotalEarned, p.TotalPoints, p.TotalPuffs, p.StreakDays,
		nullTime(&p.LastActiveDay), nullTime(p.LastPassiveAt), p.PassiveAccrued,
		p.InviteCode, formatTime(p.CreatedAt), formatTime(p.UpdatedAt))
	if isUniqueViolation(err) {
		return domain.ErrPlayerExists
	}
	return err
}

// GetPlayer loads a player by ID.
func (db *DB) GetPlayer(ctx context.Context, id string) (*domain.Player, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id)
	p, err := scanPlayer(row)
	if isNoRows(err) {
		return nil, domain.ErrPlayerNotFound
	}
	return p, err
}

// GetPlayerByWallet loads a player by wallet address.
func (db *DB) GetPlayerByWallet(ctx context.Context, wallet string) (*domain.Player, error) {
	row := db.db.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE wallet = ?`, wallet)
	p, err := scanPlayer(row)
	if isNoRows(err) {
		return nil, domain.ErrPlayerNotFound
	}
	return p, err
}

// UpdatePlayer reads the player, applies fn and writes the player plus the
// returned ledger rows inside one SQL transaction.
func (db *DB) UpdatePlayer(ctx context.Context, id string, fn domain.PlayerMutation) (*domain.Player, error) {
	var p *domain.Player
	err := db.withTx(ctx, func(tx *sql.Tx) error {
		var err error
		p, err = updatePlayerTx(ctx, tx, id, fn)
		return err
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

func updatePlayerTx(ctx context.Context, tx *sql.Tx, id string, fn domain.PlayerMutation) (*domain.Player, error) {
	p, err := scanPlayer(tx.QueryRowContext(ctx, `SELECT `+playerColumns+` FROM players WHERE id = ?`, id))
	if isNoRows(err) {
		return nil, domain.ErrPlayerNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load player: %w", err)
	}

	txs, err := fn(p)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE players SET
			vape = ?, cigarette = ?, cigar = ?,
			balance = ?, points = ?, total_earned = ?, total_points = ?, total_puffs = ?,
			streak_days = ?, last_active_day = ?, last_passive_claim = ?,
			passive_accumulated = ?, updated_at = ?
		WHERE id = ?
	`, p.Devices.Vape, p.Devices.Cigarette, p.Devices.Cigar,
		p.Balance, p.Points, p.TotalEarned, p.TotalPoints, p.TotalPuffs,
		p.StreakDays, nullTime(&p.LastActiveDay), nullTime(p.LastPassiveAt),
		p.PassiveAccrued, formatTime(p.UpdatedAt), id)
	if err != nil {
		return nil, fmt.Errorf("update player: %w", err)
	}

	for i := range txs {
		if err := insertTransaction(ctx, tx, p.ID, &txs[i]); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// ListPassiveEligible returns every player with a device at level 2 or higher.
func (db *DB) ListPassiveEligible(ctx context.Context) ([]domain.Player, error) {
	rows, err := db.db.QueryContext(ctx, `
		SELECT `+playerColumns+` FROM players
		WHERE vape >= 2 OR cigarette >= 2 OR cigar >= 2
		ORDER BY created_at, id
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Player
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ─── Ledger Operations ──────────────────────────────────────────────────────

func insertTransaction(ctx context.Context, tx *sql.Tx, playerID string, t *domain.Transaction) error {
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.PlayerID == "" {
		t.PlayerID = playerID
	}
	meta := []byte("{}")
	if len(t.Metadata) > 0 {
		var err error
		if meta, err = json.Marshal(t.Metadata); err != nil {
			return fmt.Errorf("encode metadata: %w", err)
		}
	}

	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (id, player_id, type, amount, balance_before, balance_after,
			reference, description, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, t.ID, t.PlayerID, string(t.Type), t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.Reference, t.Description, string(meta), formatTime(t.CreatedAt))
	if isUniqueViolation(err) && t.Reference != "" {
		return domain.ErrDuplicateSignature
	}
	if err != nil {
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

// ListTransactions returns a player's most recent ledger rows, newest first.
func (db *DB) ListTransactions(ctx context.Context, playerID string, limit int) ([]domain.Transaction, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := db.db.QueryContext(ctx, `
		SELECT id, player_id, type, amount, balance_before, balance_after,
			reference, description, metadata, created_at
		FROM transactions WHERE player_id = ?
		ORDER BY created_at DESC, rowid DESC LIMIT ?
	`, playerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Transaction
	for rows.Next() {
		var (
			t             domain.Transaction
			typ, meta, at string
		)
		if err := rows.Scan(&t.ID, &t.PlayerID, &typ, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.Reference, &t.Description, &meta, &at); err != nil {
			return nil, err
		}
		t.Type = domain.TransactionType(typ)
		t.CreatedAt = parseTime(at)
		if meta != "" && meta != "{}" {
			if err := json.Unmarshal([]byte(meta), &t.Metadata); err != nil {
				return nil, fmt.Errorf("decode metadata: %w", err)
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
