// Package scoring computes the per-trade "hotness" score (§4.7): an integer
// in [0,10] built from tag bonuses, follower tier, historical performance,
// transaction size, market-cap tier, volume spike, timing, and the
// daily-repeat penalty. Every component is a pure function of its inputs;
// only the data gathering (token-buyer aggregates, trade history) reaches
// outside this package.
package scoring

import (
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

// tagPoints is the fixed per-label table from §4.7's tag bonus (whale path
// only).
var tagPoints = map[string]int{
	"SMART MONEY":      3,
	"HEAVY ACCUMULATOR": 2,
	"EARLY BUYER":       2,
	"SNIPER":            1,
	"DORMANT":           1,
	"COORDINATED":       1,
	"FLIPPER":           0,
}

// TagBonus sums the fixed per-label points for a whale's labels. Applies
// only to the whale path per §4.7.
func TagBonus(labels []string) int {
	total := 0
	for _, label := range labels {
		total += tagPoints[label]
	}
	return total
}

// FollowerTier scores a KOL's follower count per §4.7's tier table.
// Applies only to the KOL path.
func FollowerTier(followers int64) int {
	switch {
	case followers >= 100_000:
		return 3
	case followers >= 10_000:
		return 2
	case followers >= 1_000:
		return 1
	default:
		return 0
	}
}

// Performance is the tracked account's 30-day completed-trade summary used
// by the historical-performance component (§4.7): FIFO-lot-matched
// win-rate and ROI, computed upstream by whatever consults trade history.
type Performance struct {
	WinRatePercent float64
	ROIPercent     float64
}

// HistoricalPerformance implements §4.7's mapping from 30-day win-rate and
// ROI to a score component.
func HistoricalPerformance(p Performance) int {
	switch {
	case p.WinRatePercent >= 60 && p.ROIPercent >= 200:
		return 3
	case p.WinRatePercent >= 40 || p.ROIPercent >= 100:
		return 2
	case p.WinRatePercent >= 20 || p.ROIPercent >= 50:
		return 1
	case p.WinRatePercent < 10 && p.ROIPercent < 0:
		return -1
	default:
		return 0
	}
}

// TransactionSizeTier scores the trade's USD size per §4.7.
func TransactionSizeTier(usdAmount float64) int {
	switch {
	case usdAmount > 20_000:
		return 3
	case usdAmount >= 5_000:
		return 2
	case usdAmount >= 1_000:
		return 1
	case usdAmount < 500:
		return -2
	default:
		return 0
	}
}

// MarketCapTier scores the token's market cap per §4.7.
func MarketCapTier(marketCap float64) int {
	switch {
	case marketCap < 1_000_000:
		return 3
	case marketCap < 5_000_000:
		return 2
	case marketCap < 20_000_000:
		return 1
	default:
		return 0
	}
}

// VolumeSpike scores the ratio of the last-15-minute BUY inflow to the 24h
// hourly average for the token. The whale path applies the negative
// branch for a >5x spike (a pump-and-dump signal); the KOL path omits it,
// per §4.7.
func VolumeSpike(ratio float64, kind model.AccountKind) int {
	switch {
	case kind != model.KindKOL && ratio > 5:
		return -1
	case ratio >= 3:
		return 2
	case ratio >= 2:
		return 1
	default:
		return 0
	}
}

// Timing scores the first-buy and distinct-buyer-count bonuses per §4.7.
// isFirstBuy is true when signature is the first recorded buy for the
// token; distinctBuyers is the count of unique tracked accounts who have
// already bought it (before this trade).
func Timing(isFirstBuy bool, distinctBuyers int, kind model.AccountKind) int {
	score := 0
	if isFirstBuy {
		score += 2
	}
	if distinctBuyers < model.DistinctBuyerTimingThreshold(kind) {
		score += 1
	}
	return score
}

// Inputs bundles every component's inputs for one BUY trade's hotness
// computation.
type Inputs struct {
	Kind             model.AccountKind
	Labels           []string // whale only
	FollowerCount    int64    // KOL only
	Performance      Performance
	USDAmount        float64
	MarketCap        float64
	VolumeSpikeRatio float64
	IsFirstBuy       bool
	DistinctBuyers   int
	DailyRepeatHit   bool // §4.7's daily-repeat penalty precondition
}

// Score computes the clamped [0,10] hotness score for a BUY record, per
// §4.7: each component is itself clamped only where the spec defines a
// fixed table; the final sum is clamped to [0,10].
func Score(in Inputs) int {
	total := 0

	if in.Kind == model.KindKOL {
		total += FollowerTier(in.FollowerCount)
	} else {
		total += TagBonus(in.Labels)
	}

	total += HistoricalPerformance(in.Performance)
	total += TransactionSizeTier(in.USDAmount)
	total += MarketCapTier(in.MarketCap)
	total += VolumeSpike(in.VolumeSpikeRatio, in.Kind)
	total += Timing(in.IsFirstBuy, in.DistinctBuyers, in.Kind)

	if in.DailyRepeatHit {
		total -= 1
	}

	return clamp(total, 0, 10)
}

// PromotedTokenBonus is the post-persist tweet-path bonus from §4.7's last
// paragraph, applied by whatever owns the tweet-composer fan-out path.
const PromotedTokenBonus = 3

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// utcDayBucket formats t as the YYYY-MM-DD bucket used by
// RepeatPurchaseRecord (§3, §4.7).
func utcDayBucket(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}
