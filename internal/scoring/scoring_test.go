package scoring

import (
	"testing"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

func TestScore_ClampsToTenEvenWithAllBonusesStacked(t *testing.T) {
	in := Inputs{
		Kind:             model.KindWhale,
		Labels:           []string{"SMART MONEY", "HEAVY ACCUMULATOR", "EARLY BUYER"},
		Performance:      Performance{WinRatePercent: 80, ROIPercent: 300},
		USDAmount:        50_000,
		MarketCap:        500_000,
		VolumeSpikeRatio: 4,
		IsFirstBuy:       true,
		DistinctBuyers:   0,
	}
	if got := Score(in); got != 10 {
		t.Errorf("Score() = %d, want 10", got)
	}
}

func TestScore_ClampsToZeroWithAllPenalties(t *testing.T) {
	in := Inputs{
		Kind:             model.KindWhale,
		Performance:      Performance{WinRatePercent: 5, ROIPercent: -10},
		USDAmount:        100,
		MarketCap:        50_000_000,
		VolumeSpikeRatio: 6,
		DistinctBuyers:   10,
		DailyRepeatHit:   true,
	}
	if got := Score(in); got != 0 {
		t.Errorf("Score() = %d, want 0", got)
	}
}

func TestVolumeSpike_NegativeBranchOnlyAppliesToWhales(t *testing.T) {
	if got := VolumeSpike(6, model.KindWhale); got != -1 {
		t.Errorf("VolumeSpike(6, whale) = %d, want -1", got)
	}
	if got := VolumeSpike(6, model.KindKOL); got != 2 {
		t.Errorf("VolumeSpike(6, kol) = %d, want 2", got)
	}
}

func TestFollowerTier_Thresholds(t *testing.T) {
	tests := []struct {
		followers int64
		want      int
	}{
		{100_000, 3},
		{10_000, 2},
		{1_000, 1},
		{999, 0},
	}
	for _, tt := range tests {
		if got := FollowerTier(tt.followers); got != tt.want {
			t.Errorf("FollowerTier(%d) = %d, want %d", tt.followers, got, tt.want)
		}
	}
}

func TestTiming_UsesSeparateThresholdsPerKind(t *testing.T) {
	// Whale threshold is 6: 5 distinct buyers is still under it.
	if got := Timing(false, 5, model.KindWhale); got != 1 {
		t.Errorf("Timing(false, 5, whale) = %d, want 1", got)
	}
	if got := Timing(false, 6, model.KindWhale); got != 0 {
		t.Errorf("Timing(false, 6, whale) = %d, want 0", got)
	}
	// KOL threshold is 3.
	if got := Timing(false, 2, model.KindKOL); got != 1 {
		t.Errorf("Timing(false, 2, kol) = %d, want 1", got)
	}
	if got := Timing(false, 3, model.KindKOL); got != 0 {
		t.Errorf("Timing(false, 3, kol) = %d, want 0", got)
	}
}

func TestMaxTrackedBuyers_DiffersFromTimingThreshold(t *testing.T) {
	// §3's aggregate buyer-set cap (5 whale) is distinct from §4.7's
	// timing-bonus threshold (6 whale); they only coincide for KOLs.
	if model.MaxTrackedBuyers(model.KindWhale) == model.DistinctBuyerTimingThreshold(model.KindWhale) {
		t.Error("expected MaxTrackedBuyers and DistinctBuyerTimingThreshold to differ for whales")
	}
	if model.MaxTrackedBuyers(model.KindKOL) != model.DistinctBuyerTimingThreshold(model.KindKOL) {
		t.Error("expected MaxTrackedBuyers and DistinctBuyerTimingThreshold to match for KOLs")
	}
}

type fakeTracker struct{ count int }

func (f fakeTracker) CountToday(tokenAddress, trackedAccount, day string) (int, error) {
	return f.count, nil
}

func TestSmallBuyThrottled_AppliesStricterSharedThreshold(t *testing.T) {
	now := time.Now()
	if !SmallBuyThrottled(fakeTracker{count: 1}, "tok", "acct", now, 100) {
		t.Error("expected throttled for a $100 repeat buy")
	}
	if SmallBuyThrottled(fakeTracker{count: 1}, "tok", "acct", now, 140) {
		t.Error("expected not throttled at the $140 threshold")
	}
	if SmallBuyThrottled(fakeTracker{count: 0}, "tok", "acct", now, 50) {
		t.Error("expected not throttled for a first-of-day buy")
	}
}

func TestDailyRepeatPenaltyApplies_RequiresTwoPriorBuys(t *testing.T) {
	now := time.Now()
	if DailyRepeatPenaltyApplies(fakeTracker{count: 1}, "tok", "acct", now) {
		t.Error("expected no penalty with only 1 prior buy")
	}
	if !DailyRepeatPenaltyApplies(fakeTracker{count: 2}, "tok", "acct", now) {
		t.Error("expected penalty with 2 prior buys")
	}
}
