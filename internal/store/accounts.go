package store

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

type trackedAccountDocument struct {
	Address    string                 `bson:"address"`
	Kind       string                 `bson:"kind"`
	Labels     []string               `bson:"labels,omitempty"`
	Influencer *influencerRefDocument `bson:"influencer,omitempty"`
}

// TrackedAccountRepository loads the watch-list snapshot (§3, §4.1) from
// the trackedWhales/trackedInfluencers collections.
type TrackedAccountRepository struct {
	whales      *mongo.Collection
	influencers *mongo.Collection
}

// TrackedAccounts builds the repository against the Store's two
// watch-list collections.
func (s *Store) TrackedAccounts() *TrackedAccountRepository {
	return &TrackedAccountRepository{
		whales:      s.db.Collection(CollectionTrackedWhales),
		influencers: s.db.Collection(CollectionTrackedInfluencers),
	}
}

// LoadAll returns every tracked whale and influencer account, the
// once-at-start snapshot described in §3/§4.1.
func (r *TrackedAccountRepository) LoadAll(ctx context.Context) ([]model.TrackedAccount, error) {
	accounts, err := r.loadKind(ctx, r.whales, model.KindWhale)
	if err != nil {
		return nil, err
	}
	kols, err := r.loadKind(ctx, r.influencers, model.KindKOL)
	if err != nil {
		return nil, err
	}
	return append(accounts, kols...), nil
}

func (r *TrackedAccountRepository) loadKind(ctx context.Context, coll *mongo.Collection, kind model.AccountKind) ([]model.TrackedAccount, error) {
	cur, err := coll.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("load %s accounts: %w", kind, err)
	}
	defer cur.Close(ctx)

	var out []model.TrackedAccount
	for cur.Next(ctx) {
		var doc trackedAccountDocument
		if err := cur.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode %s account: %w", kind, err)
		}
		account := model.TrackedAccount{
			Address: doc.Address,
			Kind:    kind,
			Labels:  doc.Labels,
		}
		if doc.Influencer != nil {
			account.Influencer = &model.InfluencerProfile{
				Name:          doc.Influencer.Name,
				Handle:        doc.Influencer.Handle,
				FollowerCount: doc.Influencer.FollowerCount,
				Avatar:        doc.Influencer.Avatar,
			}
		}
		out = append(out, account)
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s accounts: %w", kind, err)
	}
	return out, nil
}
