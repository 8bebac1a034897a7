package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/klingon-exchange/swapwatch/internal/model"
	"github.com/klingon-exchange/swapwatch/pkg/logging"
)

// ErrDuplicateTrade is returned when an insert collides with the compound
// (signature, type) unique index — a concurrent worker already persisted
// this half of the trade.
var ErrDuplicateTrade = errors.New("store: trade already persisted")

// TradeRepository is a single swap collection (whale or KOL), implementing
// worker.RecordCounter and the single/split insert paths of §4.4 steps 2
// and 6.
type TradeRepository struct {
	collection *mongo.Collection
	client     *mongo.Client
	log        *logging.Logger
}

// CountRecords implements worker.RecordCounter: how many documents already
// exist for signature, regardless of type.
func (r *TradeRepository) CountRecords(ctx context.Context, signature string) (int, error) {
	n, err := r.collection.CountDocuments(ctx, bson.M{"signature": signature})
	if err != nil {
		return 0, fmt.Errorf("count records for %s: %w", signature, err)
	}
	return int(n), nil
}

// InsertSwap persists a single non-split trade. A duplicate (signature,
// type) pair — a race with another worker that already completed this job
// — returns ErrDuplicateTrade, which callers should treat as success.
func (r *TradeRepository) InsertSwap(ctx context.Context, t model.StoredTrade) error {
	_, err := r.collection.InsertOne(ctx, toTradeDocument(t))
	return wrapDuplicate(err)
}

// InsertSplitPair persists both halves of a split swap pair atomically: per
// §4.2 step E and §4.8, either both the sell and buy record land or
// neither does. Uses a multi-document transaction, the mechanism
// go.mongodb.org/mongo-driver exposes for this; there is no analogous
// primitive in the corpus's SQL-backed storage layer (see DESIGN.md).
func (r *TradeRepository) InsertSplitPair(ctx context.Context, sell, buy model.StoredTrade) error {
	sess, err := r.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sessCtx mongo.SessionContext) (interface{}, error) {
		if _, err := r.collection.InsertOne(sessCtx, toTradeDocument(sell)); err != nil {
			return nil, wrapDuplicate(err)
		}
		if _, err := r.collection.InsertOne(sessCtx, toTradeDocument(buy)); err != nil {
			return nil, wrapDuplicate(err)
		}
		return nil, nil
	}, transactionOptions())
	return err
}

// UpdateHotnessScore patches a previously-persisted trade's hotnessScore,
// used only by the promoted-token bonus path (§4.7 last paragraph).
func (r *TradeRepository) UpdateHotnessScore(ctx context.Context, signature string, tradeType model.TradeType, score int) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"signature": signature, "type": string(tradeType)},
		bson.M{"$set": bson.M{"hotnessScore": score}},
	)
	if err != nil {
		return fmt.Errorf("update hotness score for %s: %w", signature, err)
	}
	return nil
}

// volumeWindowResult decodes the $sum produced by one arm of
// BuyVolumeRatio's aggregation.
type volumeWindowResult struct {
	Total float64 `bson:"total"`
}

// BuyVolumeRatio implements scoring.VolumeSpike's data dependency (§4.7):
// the ratio of the last-15-minute BUY USD inflow for tokenAddress to its
// trailing-24h hourly average. at is the trade's own timestamp, so
// replaying historical notifications computes the ratio as it stood then,
// not against wall-clock "now".
func (r *TradeRepository) BuyVolumeRatio(ctx context.Context, tokenAddress string, at time.Time) (float64, error) {
	recent, err := r.sumBuyAmount(ctx, tokenAddress, at.Add(-15*time.Minute), at)
	if err != nil {
		return 0, fmt.Errorf("sum recent buy volume: %w", err)
	}
	daily, err := r.sumBuyAmount(ctx, tokenAddress, at.Add(-24*time.Hour), at)
	if err != nil {
		return 0, fmt.Errorf("sum daily buy volume: %w", err)
	}
	hourlyAvg := daily / 24
	if hourlyAvg <= 0 {
		return 0, nil
	}
	return recent / hourlyAvg, nil
}

func (r *TradeRepository) sumBuyAmount(ctx context.Context, tokenAddress string, from, to time.Time) (float64, error) {
	cur, err := r.collection.Aggregate(ctx, bson.A{
		bson.M{"$match": bson.M{
			"type":            string(model.TradeTypeBuy),
			"tokenOut.address": tokenAddress,
			"txTimestamp":     bson.M{"$gte": from, "$lt": to},
		}},
		bson.M{"$group": bson.M{"_id": nil, "total": bson.M{"$sum": "$buyAmount"}}},
	})
	if err != nil {
		return 0, err
	}
	defer cur.Close(ctx)

	if !cur.Next(ctx) {
		return 0, cur.Err()
	}
	var res volumeWindowResult
	if err := cur.Decode(&res); err != nil {
		return 0, err
	}
	return res.Total, nil
}

func wrapDuplicate(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		return ErrDuplicateTrade
	}
	return err
}
