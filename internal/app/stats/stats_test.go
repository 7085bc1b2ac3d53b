package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/solpxlb/puffquest/internal/domain"
	"github.com/solpxlb/puffquest/internal/economy"
	"github.com/solpxlb/puffquest/internal/infra/observability"
	"github.com/solpxlb/puffquest/internal/infra/sqlite"
)

// ═══════════════════════════════════════════════════════════════════════════
// Stats Refresh Tests
// ═══════════════════════════════════════════════════════════════════════════

var testNow = time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)

func newTestDB(t *testing.T) *sqlite.DB {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("sqlite.Open() error: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func seed(t *testing.T, db *sqlite.DB, id string, puffs int64, earned float64) {
	t.Helper()
	ctx := context.Background()
	if err := db.CreatePlayer(ctx, domain.NewPlayer(id, "wallet-"+id, testNow)); err != nil {
		t.Fatal(err)
	}
	_, err := db.UpdatePlayer(ctx, id, func(p *domain.Player) ([]domain.Transaction, error) {
		p.TotalPuffs = puffs
		p.TotalEarned = earned
		return nil, nil
	})
	if err != nil {
		t.Fatal(err)
	}
}

func newTestAggregator(db *sqlite.DB) *Aggregator {
	a := NewAggregator(db, nil)
	a.SetClock(func() time.Time { return testNow })
	return a
}

func TestRefresh(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	seed(t, db, "a", 10, 1_000)
	seed(t, db, "b", 1, 500)
	seed(t, db, "lurker", 0, 0)

	snap, err := newTestAggregator(db).Refresh(ctx)
	if err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}
	if snap.TotalPlayers != 2 {
		t.Errorf("TotalPlayers = %d, want 2", snap.TotalPlayers)
	}
	if snap.TotalDistributed != 1_500 {
		t.Errorf("TotalDistributed = %f, want 1500", snap.TotalDistributed)
	}
	if want := float64(economy.InitialPool - 1_500); snap.RewardsPoolRemaining != want {
		t.Errorf("RewardsPoolRemaining = %f, want %f", snap.RewardsPoolRemaining, want)
	}

	stored, _ := db.GlobalStats(ctx)
	if stored.GlobalStats != snap.GlobalStats || !stored.UpdatedAt.Equal(testNow) {
		t.Errorf("stored = %+v, want %+v", stored, snap)
	}
	if got := testutil.ToFloat64(observability.TotalPlayers); got != 2 {
		t.Errorf("TotalPlayers gauge = %f, want 2", got)
	}
}

func TestRefresh_PoolNeverNegative(t *testing.T) {
	db := newTestDB(t)
	seed(t, db, "whale", 1, economy.InitialPool+1_000)

	snap, err := newTestAggregator(db).Refresh(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if snap.RewardsPoolRemaining != 0 {
		t.Errorf("RewardsPoolRemaining = %f, want 0", snap.RewardsPoolRemaining)
	}
}

func TestRefresh_KeepsCirculatingSupply(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()

	snap, _ := db.GlobalStats(ctx)
	snap.CirculatingSupply = 12_345
	if err := db.SaveGlobalStats(ctx, snap); err != nil {
		t.Fatal(err)
	}

	got, err := newTestAggregator(db).Refresh(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if got.CirculatingSupply != 12_345 {
		t.Errorf("CirculatingSupply = %f, want 12345", got.CirculatingSupply)
	}
}

type failingStore struct{ domain.StatsStore }

func (failingStore) GlobalStats(context.Context) (domain.StatsSnapshot, error) {
	return domain.StatsSnapshot{}, errors.New("disk on fire")
}

func TestRefresh_StoreError(t *testing.T) {
	tracer := observability.NewTracer(observability.DefaultTracerConfig())
	a := NewAggregator(failingStore{}, tracer)

	if _, err := a.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh() should fail when stats cannot be loaded")
	}
	spans := tracer.Spans(0)
	if len(spans) != 1 || spans[0].Status != observability.SpanError {
		t.Errorf("spans = %+v, want one failed span", spans)
	}
}
