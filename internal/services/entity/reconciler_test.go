package entity

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bobmcallan/ghostwatch/internal/common"
	"github.com/bobmcallan/ghostwatch/internal/models"
)

func allOptions() Options {
	return Options{
		PortfolioName:   "Ghostfolio",
		ConnectionID:    "conn",
		ShowTotals:      true,
		ShowAccounts:    true,
		ShowHoldings:    true,
		ShowWatchlist:   true,
		HoldingLimits:   true,
		WatchlistLimits: true,
	}
}

func testSnapshot() *models.Snapshot {
	return &models.Snapshot{
		Accounts: []models.Account{
			{ID: "a1", Name: "Broker"},
			{ID: "x1", Name: "Hidden", IsExcluded: true},
		},
		HoldingsByAccount: map[string][]models.Holding{
			"a1": {
				{Symbol: "AAPL", Name: "Apple Inc.", Quantity: 3},
				{Symbol: "SOLD", Quantity: 0},
			},
			"x1": {{Symbol: "SECRET", Quantity: 1}},
		},
		Watchlist: []models.WatchlistItem{{Symbol: "BTC-USD", DataSource: "COINGECKO"}},
	}
}

func keys(ds []models.EntityDescriptor) []models.EntityKey {
	out := make([]models.EntityKey, len(ds))
	for i, d := range ds {
		out[i] = d.Key
	}
	return out
}

func TestImpliedEntities_AllKinds(t *testing.T) {
	got := ImpliedEntities(testSnapshot(), allOptions())

	assert.Equal(t, []models.EntityKey{
		"ghostfolio_portfolio_conn",
		"ghostfolio_account_a1_conn",
		"ghostfolio_holding_a1_aapl_conn",
		"ghostfolio_limit_low_a1_aapl_conn",
		"ghostfolio_limit_high_a1_aapl_conn",
		"ghostfolio_watchlist_btc_usd_conn",
		"ghostfolio_watchlist_limit_low_btc_usd_conn",
		"ghostfolio_watchlist_limit_high_btc_usd_conn",
	}, keys(got))
}

func TestImpliedEntities_DescriptorHints(t *testing.T) {
	got := ImpliedEntities(testSnapshot(), allOptions())
	byKey := map[models.EntityKey]models.EntityDescriptor{}
	for _, d := range got {
		byKey[d.Key] = d
	}

	holding := byKey["ghostfolio_holding_a1_aapl_conn"]
	assert.Equal(t, "Apple Inc.", holding.Name)
	assert.Equal(t, "ghostfolio_account_a1_conn", holding.DeviceID)
	assert.Equal(t, "Broker", holding.DeviceName)
	assert.Equal(t, "ghostfolio_portfolio_conn", holding.ViaDevice)

	low := byKey["ghostfolio_limit_low_a1_aapl_conn"]
	assert.Equal(t, "AAPL - Low Limit", low.Name)
	assert.Equal(t, models.LimitLow, low.LimitSide)

	wl := byKey["ghostfolio_watchlist_limit_high_btc_usd_conn"]
	assert.Equal(t, "BTC-USD - High Limit", wl.Name)
	assert.Equal(t, "ghostfolio_account_watchlist_scope_conn", wl.DeviceID)
	assert.Equal(t, "Watchlist", wl.DeviceName)
}

func TestImpliedEntities_Toggles(t *testing.T) {
	opts := allOptions()
	opts.ShowTotals = false
	opts.ShowAccounts = false
	opts.HoldingLimits = false
	opts.ShowWatchlist = false

	got := ImpliedEntities(testSnapshot(), opts)
	assert.Equal(t, []models.EntityKey{
		"ghostfolio_holding_a1_aapl_conn",
		"ghostfolio_watchlist_limit_low_btc_usd_conn",
		"ghostfolio_watchlist_limit_high_btc_usd_conn",
	}, keys(got))
}

func TestImpliedEntities_NilSnapshot(t *testing.T) {
	assert.Empty(t, ImpliedEntities(nil, allOptions()))
}

func TestReconcile_Idempotent(t *testing.T) {
	r := NewReconciler(allOptions(), common.NewSilentLogger())
	snap := testSnapshot()

	first := r.Reconcile(snap)
	assert.Len(t, first, 8)

	second := r.Reconcile(snap)
	assert.Empty(t, second, "identical snapshot discovers nothing new")
	assert.Len(t, r.Known(), 8)
}

func TestReconcile_AdditiveNeverRemoves(t *testing.T) {
	r := NewReconciler(allOptions(), common.NewSilentLogger())
	snap := testSnapshot()
	r.Reconcile(snap)

	// AAPL sold and MSFT bought.
	next := testSnapshot()
	next.HoldingsByAccount["a1"] = []models.Holding{{Symbol: "MSFT", Quantity: 1}}

	added := r.Reconcile(next)
	assert.Equal(t, []models.EntityKey{
		"ghostfolio_holding_a1_msft_conn",
		"ghostfolio_limit_low_a1_msft_conn",
		"ghostfolio_limit_high_a1_msft_conn",
	}, keys(added))

	assert.True(t, r.IsKnown("ghostfolio_holding_a1_aapl_conn"), "stale entity stays known")
	assert.Len(t, r.Known(), 11)
}

func TestReconcile_DuplicateHoldingsOnce(t *testing.T) {
	r := NewReconciler(allOptions(), common.NewSilentLogger())
	snap := testSnapshot()
	snap.HoldingsByAccount["a1"] = append(snap.HoldingsByAccount["a1"], models.Holding{Symbol: "AAPL", Quantity: 1})

	added := r.Reconcile(snap)
	assert.Len(t, added, 8)
}

func TestKnown_SortedByKey(t *testing.T) {
	r := NewReconciler(allOptions(), common.NewSilentLogger())
	r.Reconcile(testSnapshot())

	known := r.Known()
	require.NotEmpty(t, known)
	for i := 1; i < len(known); i++ {
		assert.Less(t, string(known[i-1].Key), string(known[i].Key))
	}
}

func TestReconcile_ConcurrentReaders(t *testing.T) {
	r := NewReconciler(allOptions(), common.NewSilentLogger())
	snap := testSnapshot()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Reconcile(snap)
		}()
		go func() {
			defer wg.Done()
			_ = r.Known()
		}()
	}
	wg.Wait()
	assert.Len(t, r.Known(), 8)
}

func TestOptionsFromConfig(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.Ghostfolio.BaseURL = "http://gf"
	cfg.Sync.ShowTotals = false

	opts := OptionsFromConfig(cfg)
	assert.Equal(t, "http_gf_ghostfolio", opts.ConnectionID)
	assert.False(t, opts.ShowTotals)
	assert.True(t, opts.ShowHoldings)
}
