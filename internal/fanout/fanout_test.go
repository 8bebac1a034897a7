package fanout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

var errConsumerFailed = errors.New("consumer failed")

type recordingConsumer struct {
	name   string
	mu     *sync.Mutex
	called *bool
	delay  time.Duration
	fail   bool
}

func (r recordingConsumer) Name() string { return r.name }

func (r recordingConsumer) Consume(ctx context.Context, trade model.StoredTrade) error {
	if r.delay > 0 {
		select {
		case <-time.After(r.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	r.mu.Lock()
	*r.called = true
	r.mu.Unlock()
	if r.fail {
		return errConsumerFailed
	}
	return nil
}

func TestDispatch_CallsEveryConsumer(t *testing.T) {
	var mu sync.Mutex
	calledA, calledB := false, false
	d := New(DefaultConfig(),
		recordingConsumer{name: "a", mu: &mu, called: &calledA},
		recordingConsumer{name: "b", mu: &mu, called: &calledB},
	)

	d.Dispatch(model.StoredTrade{Signature: "sig"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !calledA {
		t.Error("expected consumer a to be called")
	}
	if !calledB {
		t.Error("expected consumer b to be called")
	}
}

func TestDispatch_OneFailingConsumerDoesNotBlockOthers(t *testing.T) {
	var mu sync.Mutex
	calledOK := false
	d := New(DefaultConfig(),
		recordingConsumer{name: "failing", mu: &mu, called: new(bool), fail: true},
		recordingConsumer{name: "ok", mu: &mu, called: &calledOK},
	)

	d.Dispatch(model.StoredTrade{Signature: "sig"})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	if !calledOK {
		t.Error("expected the non-failing consumer to still be called")
	}
}
