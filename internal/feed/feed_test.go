package feed

import (
	"reflect"
	"testing"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/model"
)

func TestReconnectDelay_Backoff(t *testing.T) {
	cfg := Config{
		BaseDelay:     1 * time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2,
	}

	if got := reconnectDelay(cfg, 0); got != 1*time.Second {
		t.Errorf("attempt 0: expected 1s, got %s", got)
	}
	if got := reconnectDelay(cfg, 1); got != 2*time.Second {
		t.Errorf("attempt 1: expected 2s, got %s", got)
	}
	if got := reconnectDelay(cfg, 2); got != 4*time.Second {
		t.Errorf("attempt 2: expected 4s, got %s", got)
	}
}

func TestReconnectDelay_CapsAtMax(t *testing.T) {
	cfg := Config{
		BaseDelay:     1 * time.Second,
		MaxDelay:      5 * time.Second,
		BackoffFactor: 2,
	}

	if got := reconnectDelay(cfg, 10); got != 5*time.Second {
		t.Errorf("expected delay capped at 5s, got %s", got)
	}
}

func TestBatchAddresses_ExactMultiple(t *testing.T) {
	addrs := []string{"a", "b", "c", "d"}
	groups := batchAddresses(addrs, 2)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if !reflect.DeepEqual(groups[0], []string{"a", "b"}) {
		t.Errorf("group 0: expected [a b], got %v", groups[0])
	}
	if !reflect.DeepEqual(groups[1], []string{"c", "d"}) {
		t.Errorf("group 1: expected [c d], got %v", groups[1])
	}
}

func TestBatchAddresses_Remainder(t *testing.T) {
	addrs := []string{"a", "b", "c"}
	groups := batchAddresses(addrs, 2)
	if len(groups) != 2 {
		t.Fatalf("expected 2 groups, got %d", len(groups))
	}
	if !reflect.DeepEqual(groups[0], []string{"a", "b"}) {
		t.Errorf("group 0: expected [a b], got %v", groups[0])
	}
	if !reflect.DeepEqual(groups[1], []string{"c"}) {
		t.Errorf("group 1: expected [c], got %v", groups[1])
	}
}

func TestBatchAddresses_SizeZeroIsSingleGroup(t *testing.T) {
	addrs := []string{"a", "b", "c"}
	groups := batchAddresses(addrs, 0)
	if len(groups) != 1 {
		t.Fatalf("expected 1 group, got %d", len(groups))
	}
	if !reflect.DeepEqual(groups[0], addrs) {
		t.Errorf("expected group to equal input, got %v", groups[0])
	}
}

func TestNewSubscribeRequest_Shape(t *testing.T) {
	req := newSubscribeRequest(7, []string{"addr1", "addr2"})
	if req.JSONRPC != "2.0" {
		t.Errorf("expected JSONRPC 2.0, got %s", req.JSONRPC)
	}
	if req.ID != int64(7) {
		t.Errorf("expected ID 7, got %d", req.ID)
	}
	if req.Method != "transactionSubscribe" {
		t.Errorf("expected method transactionSubscribe, got %s", req.Method)
	}
	if len(req.Params) != 2 {
		t.Fatalf("expected 2 params, got %d", len(req.Params))
	}

	filter, ok := req.Params[0].(subscribeFilter)
	if !ok {
		t.Fatalf("expected params[0] to be subscribeFilter, got %T", req.Params[0])
	}
	if !reflect.DeepEqual(filter.AccountInclude, []string{"addr1", "addr2"}) {
		t.Errorf("expected AccountInclude [addr1 addr2], got %v", filter.AccountInclude)
	}

	opts, ok := req.Params[1].(subscribeOptions)
	if !ok {
		t.Fatalf("expected params[1] to be subscribeOptions, got %T", req.Params[1])
	}
	if opts.Commitment != "finalized" {
		t.Errorf("expected commitment finalized, got %s", opts.Commitment)
	}
	if opts.Encoding != "jsonParsed" {
		t.Errorf("expected encoding jsonParsed, got %s", opts.Encoding)
	}
}

const notificationJSON = `{
	"method": "transactionNotification",
	"params": {
		"result": {
			"signature": "sig123",
			"slot": 42,
			"transaction": {
				"transaction": {
					"message": {"accountKeys": ["payer1", "other"]},
					"signatures": ["payer1"]
				},
				"meta": {
					"err": null,
					"fee": 5000,
					"preBalances": [2000000000],
					"postBalances": [1000000000],
					"preTokenBalances": [],
					"postTokenBalances": [
						{"accountIndex": 1, "mint": "MintA", "owner": "payer1", "uiTokenAmount": {"uiAmount": 100, "decimals": 6}}
					]
				},
				"blockTime": 1700000000
			}
		}
	}
}`

func TestParseNotification_Valid(t *testing.T) {
	tx, err := parseNotification([]byte(notificationJSON))
	if err != nil {
		t.Fatalf("parseNotification: %v", err)
	}
	if tx == nil {
		t.Fatal("expected a non-nil notification")
	}

	if tx.Signature != "sig123" {
		t.Errorf("expected signature sig123, got %s", tx.Signature)
	}
	if tx.Slot != uint64(42) {
		t.Errorf("expected slot 42, got %d", tx.Slot)
	}
	if tx.FeePayer != "payer1" {
		t.Errorf("expected fee payer payer1, got %s", tx.FeePayer)
	}
	if !reflect.DeepEqual(tx.AccountKeys, []string{"payer1", "other"}) {
		t.Errorf("expected account keys [payer1 other], got %v", tx.AccountKeys)
	}
	if tx.Meta.Err != nil {
		t.Errorf("expected nil meta err, got %v", tx.Meta.Err)
	}
	if tx.Meta.Fee != uint64(5000) {
		t.Errorf("expected fee 5000, got %d", tx.Meta.Fee)
	}
	if len(tx.Meta.PostTokenBalances) != 1 {
		t.Fatalf("expected 1 post token balance, got %d", len(tx.Meta.PostTokenBalances))
	}
	if tx.Meta.PostTokenBalances[0].Mint != "MintA" {
		t.Errorf("expected mint MintA, got %s", tx.Meta.PostTokenBalances[0].Mint)
	}
	if tx.Meta.PostTokenBalances[0].UIAmount != 100.0 {
		t.Errorf("expected UI amount 100, got %v", tx.Meta.PostTokenBalances[0].UIAmount)
	}
	if !tx.BlockTime.Equal(time.Unix(1700000000, 0).UTC()) {
		t.Errorf("expected block time %s, got %s", time.Unix(1700000000, 0).UTC(), tx.BlockTime)
	}
}

func TestParseNotification_IgnoresOtherMethods(t *testing.T) {
	tx, err := parseNotification([]byte(`{"method":"subscriptionConfirmation"}`))
	if err != nil {
		t.Fatalf("parseNotification: %v", err)
	}
	if tx != nil {
		t.Errorf("expected nil notification for non-transaction method, got %+v", tx)
	}
}

func TestParseNotification_OnChainError(t *testing.T) {
	body := `{"method":"transactionNotification","params":{"result":{"signature":"s","transaction":{"transaction":{"message":{"accountKeys":["p"]},"signatures":["p"]},"meta":{"err":{"InstructionError":[0,"Custom"]},"preTokenBalances":[],"postTokenBalances":[]}}}}}`
	tx, err := parseNotification([]byte(body))
	if err != nil {
		t.Fatalf("parseNotification: %v", err)
	}
	if tx == nil {
		t.Fatal("expected a non-nil notification")
	}
	if tx.Meta.Err == nil {
		t.Error("expected a non-nil on-chain error")
	}
}

func TestPrecheck_DelegatesToClassifier(t *testing.T) {
	tracked := map[string]bool{"payer1": true}
	tx := &model.RawTxNotification{
		Signature:   "sig123",
		AccountKeys: []string{"payer1"},
	}

	reason, rejected := precheck(tx, tracked)
	if rejected {
		t.Error("expected not rejected")
	}
	if reason != "" {
		t.Errorf("expected empty reason, got %s", reason)
	}
}

func TestPrecheck_NoTrackedAccount(t *testing.T) {
	tx := &model.RawTxNotification{
		Signature:   "sig123",
		AccountKeys: []string{"untracked"},
	}

	reason, rejected := precheck(tx, map[string]bool{"payer1": true})
	if !rejected {
		t.Error("expected rejected")
	}
	if reason != model.RejectNoTrackedAccount {
		t.Errorf("expected reason %s, got %s", model.RejectNoTrackedAccount, reason)
	}
}

func TestDefaultConfig_Values(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.ConnectTimeout != 15*time.Second {
		t.Errorf("expected ConnectTimeout 15s, got %s", cfg.ConnectTimeout)
	}
	if cfg.BaseDelay != 5*time.Second {
		t.Errorf("expected BaseDelay 5s, got %s", cfg.BaseDelay)
	}
	if cfg.MaxDelay != 60*time.Second {
		t.Errorf("expected MaxDelay 60s, got %s", cfg.MaxDelay)
	}
	if cfg.BatchSize != 50 {
		t.Errorf("expected BatchSize 50, got %d", cfg.BatchSize)
	}
}

func TestRedactURL(t *testing.T) {
	if got := redactURL("wss://example.com?api-key=secret"); got != "wss://example.com?<redacted>" {
		t.Errorf("expected redacted query, got %s", got)
	}
	if got := redactURL("wss://example.com"); got != "wss://example.com" {
		t.Errorf("expected unchanged URL, got %s", got)
	}
}
