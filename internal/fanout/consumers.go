package fanout

import (
	"context"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

// AlertMatcherClient is the external alert-matching service's call
// surface, invoked per §4.4 step 7 to check a trade against configured
// alert rules. The matcher itself is out of scope for this module.
type AlertMatcherClient interface {
	MatchTrade(ctx context.Context, trade model.StoredTrade) error
}

// AlertMatcherConsumer adapts an AlertMatcherClient to Consumer.
type AlertMatcherConsumer struct {
	Client AlertMatcherClient
}

func (c AlertMatcherConsumer) Name() string { return "alert_matcher" }

func (c AlertMatcherConsumer) Consume(ctx context.Context, trade model.StoredTrade) error {
	return c.Client.MatchTrade(ctx, trade)
}

// BroadcastPublisher is the external websocket fan-out service's call
// surface.
type BroadcastPublisher interface {
	Publish(ctx context.Context, trade model.StoredTrade) error
}

// BroadcastConsumer adapts a BroadcastPublisher to Consumer.
type BroadcastConsumer struct {
	Publisher BroadcastPublisher
}

func (c BroadcastConsumer) Name() string { return "broadcast" }

func (c BroadcastConsumer) Consume(ctx context.Context, trade model.StoredTrade) error {
	return c.Publisher.Publish(ctx, trade)
}

// TweetComposer is the external tweet-drafting service's call surface.
// Only trades above the hotness floor configured by the caller should
// reach it; that filtering happens in the pipeline, not here.
type TweetComposer interface {
	ComposeTweet(ctx context.Context, trade model.StoredTrade) error
}

// TweetConsumer adapts a TweetComposer to Consumer.
type TweetConsumer struct {
	Composer TweetComposer
}

func (c TweetConsumer) Name() string { return "tweet_composer" }

func (c TweetConsumer) Consume(ctx context.Context, trade model.StoredTrade) error {
	return c.Composer.ComposeTweet(ctx, trade)
}
