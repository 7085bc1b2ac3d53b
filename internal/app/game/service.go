// Package game is the interactive reward path: every detected puff, device
// upgrade, device purchase, points conversion and token claim goes through
// here.
//
// The service:
//  1. Reads the current global stats snapshot
//  2. Runs the shared economy engine against the player's devices
//  3. Writes the player and a ledger row in one atomic store update
//  4. Reports the outcome to metrics
package game

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"

	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/economy"
	"github.com/solpxlb/puffquest/internal/infra/observability"
)

// Store is everything the service needs from persistence.
type Store interface {
	domain.PlayerStore
	domain.StatsStore
	domain.LedgerStore
	domain.InviteStore
	domain.ClaimStore
}

// PurchaseVerifier confirms an on-chain device purchase before the devices
// are granted. Verification itself lives outside this service.
type PurchaseVerifier interface {
	VerifyPurchase(ctx context.Context, wallet, signature string, devices []economy.DeviceKind) error
}

// TrustingVerifier accepts every signature. It is the default when no chain
// relay is configured.
type TrustingVerifier struct{}

// VerifyPurchase always succeeds.
func (TrustingVerifier) VerifyPurchase(context.Context, string, string, []economy.DeviceKind) error {
	return nil
}

// ClaimVerifier confirms that signature transferred claim.Amount to
// claim.Wallet before the claim is settled.
type ClaimVerifier interface {
	VerifyClaim(ctx context.Context, claim domain.Claim, signature string) error
}

// VerifyClaim always succeeds.
func (TrustingVerifier) VerifyClaim(context.Context, domain.Claim, string) error {
	return nil
}

// Config controls service behavior.
type Config struct {
	// StreakBonus applies the player's real streak to puff rewards. When false
	// every puff uses the one-day multiplier.
	StreakBonus bool

	// ExchangeRate is cost units per reward unit for break-even projections.
	ExchangeRate float64

	// PuffCooldown is the minimum gap between two rewarded puffs of one
	// player. Zero disables the check.
	PuffCooldown time.Duration

	// RequireInvite rejects registrations without a valid invite code.
	RequireInvite bool
}

// recentPuffsSize bounds the in-memory last-puff cache.
const recentPuffsSize = 10_000

// DefaultConfig returns the service defaults.
func DefaultConfig() Config {
	return Config{
		StreakBonus:  true,
		ExchangeRate: economy.DefaultExchangeRate,
		PuffCooldown: 4 * time.Second,
	}
}

// Service implements the interactive game operations.
type Service struct {
	cfg           Config
	store         Store
	verifier      PurchaseVerifier
	claimVerifier ClaimVerifier
	now           domain.Clock
	newCode       func() (string, error)

	mu     sync.Mutex
	recent *lru.Cache // player ID → time of last rewarded puff
}

// New creates a game service. A nil verifier trusts every purchase.
func New(cfg Config, store Store, verifier PurchaseVerifier) *Service {
	if verifier == nil {
		verifier = TrustingVerifier{}
	}
	if cfg.ExchangeRate <= 0 {
		cfg.ExchangeRate = economy.DefaultExchangeRate
	}
	recent, _ := lru.New(recentPuffsSize)
	return &Service{
		cfg:           cfg,
		store:         store,
		verifier:      verifier,
		claimVerifier: TrustingVerifier{},
		now:           time.Now,
		newCode:       randomInviteCode,
		recent:        recent,
	}
}

// SetClock replaces the time source (tests only).
func (s *Service) SetClock(c domain.Clock) { s.now = c }

// SetClaimVerifier replaces the claim verifier. Nil restores the trusting one.
func (s *Service) SetClaimVerifier(v ClaimVerifier) {
	if v == nil {
		v = TrustingVerifier{}
	}
	s.claimVerifier = v
}

// ─── Players ────────────────────────────────────────────────────────────────

// Register creates a player for wallet with no devices. A non-blank
// inviteCode is redeemed in the same store write; with RequireInvite set a
// blank one is rejected.
func (s *Service) Register(ctx context.Context, wallet, inviteCode string) (*domain.Player, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return nil, domain.ErrInvalidWallet
	}
	code := domain.NormalizeInviteCode(inviteCode)
	if code == "" && s.cfg.RequireInvite {
		return nil, domain.ErrInviteRequired
	}

	now := s.now()
	p := domain.NewPlayer(uuid.NewString(), wallet, now)
	if code == "" {
		if err := s.store.CreatePlayer(ctx, p); err != nil {
			return nil, err
		}
	} else {
		p.InviteCode = code
		if err := s.store.CreatePlayerWithInvite(ctx, p, code, now); err != nil {
			return nil, err
		}
		observability.InvitesRedeemed.Inc()
	}
	log.Printf("[game] registered player %s wallet=%s invite=%q", p.ID, wallet, code)
	return &p, nil
}

// Player loads a player by ID.
func (s *Service) Player(ctx context.Context, id string) (*domain.Player, error) {
	return s.store.GetPlayer(ctx, id)
}

// Transactions returns a player's recent ledger rows.
func (s *Service) Transactions(ctx context.Context, id string, limit int) ([]domain.Transaction, error) {
	if _, err := s.store.GetPlayer(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListTransactions(ctx, id, limit)
}

// Stats returns the current global stats snapshot.
func (s *Service) Stats(ctx context.Context) (domain.StatsSnapshot, error) {
	return s.store.GlobalStats(ctx)
}

// ─── Puffs ──────────────────────────────────────────────────────────────────

// PuffResult is the outcome of one recorded puff.
type PuffResult struct {
	Reward     int64   `json:"reward"`
	Points     int64   `json:"points"`
	StreakDays int     `json:"streak_days"`
	Multiplier float64 `json:"streak_multiplier"`
	Active     bool    `json:"active_session"`
}

// RecordPuff awards the per-action reward for one detected puff. Puffs closer
// together than PuffCooldown are rejected with ErrPuffCooldown.
func (s *Service) RecordPuff(ctx context.Context, playerID string, active bool) (PuffResult, error) {
	now := s.now()
	if !s.reservePuff(playerID, now) {
		return PuffResult{}, domain.ErrPuffCooldown
	}

	res, err := s.recordPuff(ctx, playerID, active, now)
	if err != nil {
		s.releasePuff(playerID, now)
		return PuffResult{}, err
	}
	return res, nil
}

// reservePuff claims the cooldown slot for playerID at now.
func (s *Service) reservePuff(playerID string, now time.Time) bool {
	if s.cfg.PuffCooldown <= 0 {
		return true
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.recent.Get(playerID); ok && now.Sub(last.(time.Time)) < s.cfg.PuffCooldown {
		return false
	}
	s.recent.Add(playerID, now)
	return true
}

// releasePuff undoes the reservation made at now, unless a later puff has
// already replaced it.
func (s *Service) releasePuff(playerID string, now time.Time) {
	if s.cfg.PuffCooldown <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.recent.Peek(playerID); ok && last.(time.Time).Equal(now) {
		s.recent.Remove(playerID)
	}
}

func (s *Service) recordPuff(ctx context.Context, playerID string, active bool, now time.Time) (PuffResult, error) {
	snap, err := s.store.GlobalStats(ctx)
	if err != nil {
		return PuffResult{}, fmt.Errorf("load stats: %w", err)
	}

	var res PuffResult
	_, err = s.store.UpdatePlayer(ctx, playerID, func(p *domain.Player) ([]domain.Transaction, error) {
		p.TouchStreak(now)
		streak := 1
		if s.cfg.StreakBonus {
			streak = p.StreakDays
		}

		reward := economy.ActionRewardWithStreak(p.Devices, snap.GlobalStats, active, streak)
		before := p.Points
		p.Points += reward
		p.TotalPoints += reward
		p.TotalPuffs++
		p.UpdatedAt = now

		res = PuffResult{
			Reward:     reward,
			Points:     p.Points,
			StreakDays: p.StreakDays,
			Multiplier: economy.StreakMultiplier(streak),
			Active:     active,
		}
		return []domain.Transaction{{
			Type:          domain.TxEarnPuff,
			Amount:        float64(reward),
			BalanceBefore: float64(before),
			BalanceAfter:  float64(p.Points),
			Description:   fmt.Sprintf("Puff reward: %d points", reward),
			Metadata: map[string]any{
				"unit":           "points",
				"active_session": active,
				"streak_days":    streak,
			},
			CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return PuffResult{}, err
	}

	observability.RewardsAwarded.WithLabelValues("puff").Add(float64(res.Reward))
	observability.PuffsRecorded.WithLabelValues(sessionLabel(active)).Inc()
	return res, nil
}

func sessionLabel(active bool) string {
	if active {
		return "active"
	}
	return "idle"
}

// ─── Upgrades ───────────────────────────────────────────────────────────────

// UpgradeResult is the outcome of a device upgrade.
type UpgradeResult struct {
	Device     economy.DeviceKind `json:"device"`
	NewLevel   int                `json:"new_level"`
	Cost       int64              `json:"upgrade_cost"`
	NewBalance float64            `json:"new_balance"`
}

// Upgrade raises an owned device by one level, paying economy.UpgradeCost.
func (s *Service) Upgrade(ctx context.Context, playerID string, kind economy.DeviceKind) (UpgradeResult, error) {
	if _, err := economy.ParseDeviceKind(string(kind)); err != nil {
		return UpgradeResult{}, domain.ErrInvalidDevice
	}

	now := s.now()
	var res UpgradeResult
	_, err := s.store.UpdatePlayer(ctx, playerID, func(p *domain.Player) ([]domain.Transaction, error) {
		level := p.Devices.Level(kind)
		if level == 0 {
			return nil, domain.ErrDeviceNotOwned
		}
		if level >= economy.MaxLevel {
			return nil, domain.ErrDeviceMaxLevel
		}
		cost := economy.UpgradeCost(level)
		if p.Balance < float64(cost) {
			return nil, fmt.Errorf("need %d, have %.4f: %w", cost, p.Balance, domain.ErrInsufficientBalance)
		}

		before := p.Balance
		p.Balance -= float64(cost)
		p.Devices = p.Devices.With(kind, level+1)
		p.UpdatedAt = now

		res = UpgradeResult{Device: kind, NewLevel: level + 1, Cost: cost, NewBalance: p.Balance}
		return []domain.Transaction{{
			Type:          domain.TxUpgrade,
			Amount:        -float64(cost),
			BalanceBefore: before,
			BalanceAfter:  p.Balance,
			Description:   fmt.Sprintf("Upgraded %s to level %d", kind, level+1),
			Metadata: map[string]any{
				"device_type":    string(kind),
				"previous_level": level,
				"new_level":      level + 1,
			},
			CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return UpgradeResult{}, err
	}

	observability.Upgrades.WithLabelValues(string(kind)).Inc()
	log.Printf("[game] player %s upgraded %s to level %d for %d", playerID, kind, res.NewLevel, res.Cost)
	return res, nil
}

// ─── Purchases ──────────────────────────────────────────────────────────────

// Purchase grants starter-tier (level 1) devices paid for on-chain by
// signature. Each signature is accepted once; already owned devices are
// skipped.
func (s *Service) Purchase(ctx context.Context, playerID string, kinds []economy.DeviceKind, signature string) ([]economy.DeviceKind, error) {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return nil, domain.ErrSignatureRequired
	}
	kinds, err := uniqueDevices(kinds)
	if err != nil {
		return nil, err
	}

	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return nil, err
	}
	if err := s.verifier.VerifyPurchase(ctx, p.Wallet, signature, kinds); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrPurchaseRejected, err)
	}

	now := s.now()
	var granted []economy.DeviceKind
	_, err = s.store.UpdatePlayer(ctx, playerID, func(p *domain.Player) ([]domain.Transaction, error) {
		granted = granted[:0]
		for _, kind := range kinds {
			if p.Devices.Level(kind) > 0 {
				continue
			}
			p.Devices = p.Devices.With(kind, 1)
			granted = append(granted, kind)
		}
		if len(granted) == 0 {
			return nil, domain.ErrDeviceOwned
		}
		p.UpdatedAt = now

		names := make([]string, len(granted))
		for i, k := range granted {
			names[i] = string(k)
		}
		return []domain.Transaction{{
			Type:          domain.TxPurchase,
			BalanceBefore: p.Balance,
			BalanceAfter:  p.Balance,
			Reference:     signature,
			Description:   "Purchased " + strings.Join(names, ", "),
			Metadata:      map[string]any{"devices": names},
			CreatedAt:     now,
		}}, nil
	})
	if err != nil {
		return nil, err
	}

	for _, kind := range granted {
		observability.Purchases.WithLabelValues(string(kind)).Inc()
	}
	log.Printf("[game] player %s purchased %v sig=%s", playerID, granted, signature)
	return granted, nil
}

func uniqueDevices(kinds []economy.DeviceKind) ([]economy.DeviceKind, error) {
	if len(kinds) == 0 {
		return nil, domain.ErrInvalidDevice
	}
	seen := make(map[economy.DeviceKind]bool, len(kinds))
	out := make([]economy.DeviceKind, 0, len(kinds))
	for _, k := range kinds {
		if _, err := economy.ParseDeviceKind(string(k)); err != nil {
			return nil, domain.ErrInvalidDevice
		}
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out, nil
}

// ─── Conversion ─────────────────────────────────────────────────────────────

// ConvertResult is the outcome of a points conversion.
type ConvertResult struct {
	PointsConverted int64   `json:"points_converted"`
	TokensEarned    float64 `json:"tokens_earned"`
	ConversionRate  int64   `json:"conversion_rate"`
	NewBalance      float64 `json:"new_balance"`
}

// ConvertPoints exchanges off-chain points for tokens drawn from the pool at
// the snapshot's current rate.
func (s *Service) ConvertPoints(ctx context.Context, playerID string, points int64) (ConvertResult, error) {
	if points <= 0 {
		return ConvertResult{}, domain.ErrInvalidAmount
	}
	snap, err := s.store.GlobalStats(ctx)
	if err != nil {
		return ConvertResult{}, fmt.Errorf("load stats: %w", err)
	}

	rate := economy.PointsToTokenRate(snap.GlobalStats)
	tokens := economy.TokensForPoints(points, snap.GlobalStats)
	if snap.RewardsPoolRemaining < tokens {
		return ConvertResult{}, domain.ErrPoolDepleted
	}

	now := s.now()
	var res ConvertResult
	_, err = s.store.UpdatePlayer(ctx, playerID, func(p *domain.Player) ([]domain.Transaction, error) {
		if p.Points < points {
			return nil, fmt.Errorf("need %d, have %d: %w", points, p.Points, domain.ErrInsufficientPoints)
		}
		before := p.Balance
		p.Points -= points
		p.Balance += tokens
		p.TotalEarned += tokens
		p.UpdatedAt = now

		res = ConvertResult{PointsConverted: points, TokensEarned: tokens, ConversionRate: rate, NewBalance: p.Balance}
		return []domain.Transaction{{
			Type:          domain.TxConvert,
			Amount:        tokens,
			BalanceBefore: before,
			BalanceAfter:  p.Balance,
			Description:   fmt.Sprintf("Converted %d points to %.4f tokens", points, tokens),
			Metadata: map[string]any{
				"conversion_rate":  rate,
				"points_converted": points,
			},
			CreatedAt: now,
		}}, nil
	})
	if err != nil {
		return ConvertResult{}, err
	}

	observability.PointsConverted.Add(float64(points))
	return res, nil
}

// ─── Projections ────────────────────────────────────────────────────────────

// Projection is a forward-looking view of a player's economy.
type Projection struct {
	Devices        economy.DeviceLevels         `json:"device_levels"`
	Stats          economy.GlobalStats          `json:"global_stats"`
	Daily          economy.DailyEarnings        `json:"daily"`
	Breakeven      economy.Breakeven            `json:"breakeven"`
	HourlyPassive  int64                        `json:"hourly_passive"`
	UpgradeCosts   map[economy.DeviceKind]int64 `json:"upgrade_costs"`
	ConversionRate int64                        `json:"conversion_rate"`
}

// Estimate builds a Projection for a stored player against current stats.
func (s *Service) Estimate(ctx context.Context, playerID string) (Projection, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return Projection{}, err
	}
	snap, err := s.store.GlobalStats(ctx)
	if err != nil {
		return Projection{}, fmt.Errorf("load stats: %w", err)
	}

	streak := 1
	if s.cfg.StreakBonus {
		streak = p.StreakDays
	}
	return NewProjection(p.Devices, snap.GlobalStats, streak, s.cfg.ExchangeRate), nil
}

// Breakeven projects a stored player's payback at exchangeRate. A
// non-positive rate falls back to the configured one.
func (s *Service) Breakeven(ctx context.Context, playerID string, exchangeRate float64) (economy.Breakeven, error) {
	p, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return economy.Breakeven{}, err
	}
	snap, err := s.store.GlobalStats(ctx)
	if err != nil {
		return economy.Breakeven{}, fmt.Errorf("load stats: %w", err)
	}
	if exchangeRate <= 0 {
		exchangeRate = s.cfg.ExchangeRate
	}
	return economy.CanBreakevenInNDays(p.Devices, snap.GlobalStats, exchangeRate), nil
}

// NewProjection computes a Projection from raw inputs.
func NewProjection(levels economy.DeviceLevels, stats economy.GlobalStats, streakDays int, exchangeRate float64) Projection {
	costs := make(map[economy.DeviceKind]int64, len(economy.AllDevices))
	for _, kind := range economy.AllDevices {
		costs[kind] = economy.UpgradeCost(levels.Level(kind))
	}
	return Projection{
		Devices:        levels,
		Stats:          stats,
		Daily:          economy.EstimateDailyEarnings(levels, stats, streakDays),
		Breakeven:      economy.CanBreakevenInNDays(levels, stats, exchangeRate),
		HourlyPassive:  economy.HourlyPassiveRate(levels),
		UpgradeCosts:   costs,
		ConversionRate: economy.PointsToTokenRate(stats),
	}
}
