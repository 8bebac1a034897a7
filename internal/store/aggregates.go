package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

type hotnessDocument struct {
	TokenAddress       string    `bson:"tokenAddress"`
	FirstBuySignature  string    `bson:"firstBuySignature"`
	UniqueBuyers       []string  `bson:"uniqueTrackedAccountsWhoBought"`
	CreatedAt          time.Time `bson:"createdAt"`
}

// HotnessRepository backs the §4.7 timing bonuses ("first buy", "distinct
// buyers") with the hotnessScore/kolHotnessScore collections.
type HotnessRepository struct {
	collection *mongo.Collection
	kind       model.AccountKind
}

// HotnessFor returns the whale or KOL hotness repository.
func (s *Store) HotnessFor(kind model.AccountKind) *HotnessRepository {
	name := CollectionHotnessScore
	if kind == model.KindKOL {
		name = CollectionKOLHotnessScore
	}
	return &HotnessRepository{collection: s.db.Collection(name), kind: kind}
}

// Observe records a tracked account's buy of tokenAddress, returning
// whether this was the first recorded buy for the token and how many
// distinct tracked accounts had already bought it before this call — the
// two inputs scoring.Timing needs. The recorded buyer set itself is capped
// at model.MaxTrackedBuyers (§3: "capped at 5 for whales / 3 for KOLs");
// once the cap is reached, further buyers are neither added to the stored
// set nor counted, so the returned total never exceeds the cap.
func (r *HotnessRepository) Observe(ctx context.Context, tokenAddress, signature, trackedAccount string) (isFirstBuy bool, distinctBuyersBefore int, err error) {
	var existing hotnessDocument
	findErr := r.collection.FindOne(ctx, bson.M{"tokenAddress": tokenAddress}).Decode(&existing)
	if findErr == mongo.ErrNoDocuments {
		_, err = r.collection.InsertOne(ctx, hotnessDocument{
			TokenAddress:      tokenAddress,
			FirstBuySignature: signature,
			UniqueBuyers:      []string{trackedAccount},
			CreatedAt:         nowUTC(),
		})
		if err != nil {
			return false, 0, fmt.Errorf("insert hotness aggregate: %w", err)
		}
		return true, 0, nil
	}
	if findErr != nil {
		return false, 0, fmt.Errorf("load hotness aggregate: %w", findErr)
	}

	distinctBuyersBefore = len(existing.UniqueBuyers)
	if distinctBuyersBefore >= model.MaxTrackedBuyers(r.kind) {
		return false, distinctBuyersBefore, nil
	}
	_, err = r.collection.UpdateOne(ctx,
		bson.M{"tokenAddress": tokenAddress},
		bson.M{"$addToSet": bson.M{"uniqueTrackedAccountsWhoBought": trackedAccount}},
	)
	if err != nil {
		return false, distinctBuyersBefore, fmt.Errorf("update hotness aggregate: %w", err)
	}
	return false, distinctBuyersBefore, nil
}

type repeatDocument struct {
	TokenAddress   string  `bson:"tokenAddress"`
	TrackedAccount string  `bson:"trackedAccount"`
	TxnSignature   string  `bson:"txnSignature"`
	USDAmount      float64 `bson:"usdAmount"`
	UTCDayBucket   string  `bson:"utcDayBucket"`
}

// RepeatRepository backs the daily-repeat penalty and small-buy throttle
// (§4.7, §9) via the purchaseRecord/kolPurchaseRecord collections, and
// implements scoring.RepeatTracker.
type RepeatRepository struct {
	collection *mongo.Collection
}

// RepeatsFor returns the whale or KOL repeat-purchase repository.
func (s *Store) RepeatsFor(kind model.AccountKind) *RepeatRepository {
	name := CollectionPurchaseRecord
	if kind == model.KindKOL {
		name = CollectionKOLPurchaseRecord
	}
	return &RepeatRepository{collection: s.db.Collection(name)}
}

// CountToday implements scoring.RepeatTracker.
func (r *RepeatRepository) CountToday(tokenAddress, trackedAccount, day string) (int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	n, err := r.collection.CountDocuments(ctx, bson.M{
		"tokenAddress":   tokenAddress,
		"trackedAccount": trackedAccount,
		"utcDayBucket":   day,
	})
	if err != nil {
		return 0, fmt.Errorf("count repeat purchases: %w", err)
	}
	return int(n), nil
}

// Record persists one same-day purchase for the repeat-penalty count.
func (r *RepeatRepository) Record(ctx context.Context, rec model.RepeatPurchaseRecord) error {
	_, err := r.collection.InsertOne(ctx, repeatDocument{
		TokenAddress:   rec.TokenAddress,
		TrackedAccount: rec.TrackedAccount,
		TxnSignature:   rec.TxnSignature,
		USDAmount:      rec.USDAmount,
		UTCDayBucket:   rec.UTCDayBucket,
	})
	return err
}

// EnsureRepeatIndex creates the lookup index CountToday relies on. Not
// unique: the same account can legitimately buy the same token more than
// once a day, which is exactly the condition being counted.
func (s *Store) EnsureRepeatIndex(ctx context.Context, kind model.AccountKind) error {
	coll := s.RepeatsFor(kind).collection
	_, err := coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "tokenAddress", Value: 1},
			{Key: "trackedAccount", Value: 1},
			{Key: "utcDayBucket", Value: 1},
		},
		Options: options.Index(),
	})
	return err
}
