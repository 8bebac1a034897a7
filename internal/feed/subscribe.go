package feed

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gorilla/websocket"
)

// subscribeRequest mirrors the transactionSubscribe wire shape from spec §6.
type subscribeRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int64         `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type subscribeFilter struct {
	AccountInclude []string `json:"accountInclude"`
}

type subscribeOptions struct {
	Commitment                     string `json:"commitment"`
	Encoding                       string `json:"encoding"`
	TransactionDetails             string `json:"transactionDetails"`
	ShowRewards                    bool   `json:"showRewards"`
	MaxSupportedTransactionVersion int    `json:"maxSupportedTransactionVersion"`
}

func newSubscribeRequest(id int64, addresses []string) subscribeRequest {
	return subscribeRequest{
		JSONRPC: "2.0",
		ID:      id,
		Method:  "transactionSubscribe",
		Params: []interface{}{
			subscribeFilter{AccountInclude: addresses},
			subscribeOptions{
				Commitment:                     "finalized",
				Encoding:                       "jsonParsed",
				TransactionDetails:             "full",
				ShowRewards:                    false,
				MaxSupportedTransactionVersion: 0,
			},
		},
	}
}

// batchAddresses splits addresses into groups of at most size, per §4.1's
// "batched addresses split into groups of 50" fallback strategy.
func batchAddresses(addresses []string, size int) [][]string {
	if size <= 0 {
		size = len(addresses)
	}
	var groups [][]string
	for i := 0; i < len(addresses); i += size {
		end := i + size
		if end > len(addresses) {
			end = len(addresses)
		}
		groups = append(groups, addresses[i:end])
	}
	return groups
}

// subscribeAll sends one subscription request covering every tracked
// address, or falls back to staggered batched requests when the tracked
// set exceeds cfg.BatchSize (§4.1).
func (m *Manager) subscribeAll(conn *websocket.Conn) error {
	addresses := make([]string, 0, len(m.tracked))
	m.mu.RLock()
	for a := range m.tracked {
		addresses = append(addresses, a)
	}
	m.mu.RUnlock()

	if len(addresses) == 0 {
		return fmt.Errorf("no tracked addresses configured")
	}

	if len(addresses) <= m.cfg.BatchSize {
		return m.sendSubscribe(conn, addresses)
	}

	for _, group := range batchAddresses(addresses, m.cfg.BatchSize) {
		if err := m.sendSubscribe(conn, group); err != nil {
			return err
		}
		time.Sleep(m.cfg.BatchStagger)
	}
	return nil
}

func (m *Manager) sendSubscribe(conn *websocket.Conn, addresses []string) error {
	m.nextID++
	req := newSubscribeRequest(m.nextID, addresses)
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return conn.WriteMessage(websocket.TextMessage, payload)
}
