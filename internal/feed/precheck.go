package feed

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/klingon-exchange/swapwatch/internal/classifier"
	"github.com/klingon-exchange/swapwatch/internal/model"
)

// wireNotification mirrors the transactionNotification shape from §6.
type wireNotification struct {
	Method string `json:"method"`
	Params struct {
		Result struct {
			Signature   string `json:"signature"`
			Slot        uint64 `json:"slot"`
			Transaction struct {
				Transaction struct {
					Message struct {
						AccountKeys []string `json:"accountKeys"`
					} `json:"message"`
					Signatures []string `json:"signatures"`
				} `json:"transaction"`
				Meta struct {
					Err               json.RawMessage        `json:"err"`
					Fee               uint64                 `json:"fee"`
					PreBalances       []uint64               `json:"preBalances"`
					PostBalances      []uint64               `json:"postBalances"`
					PreTokenBalances  []wireTokenBalance      `json:"preTokenBalances"`
					PostTokenBalances []wireTokenBalance      `json:"postTokenBalances"`
				} `json:"meta"`
				BlockTime *int64 `json:"blockTime"`
			} `json:"transaction"`
		} `json:"result"`
	} `json:"params"`
}

type wireTokenBalance struct {
	AccountIndex int    `json:"accountIndex"`
	Mint         string `json:"mint"`
	Owner        string `json:"owner"`
	UITokenAmount struct {
		UIAmount float64 `json:"uiAmount"`
		Decimals uint8   `json:"decimals"`
	} `json:"uiTokenAmount"`
}

// parseNotification converts a raw websocket frame into a RawTxNotification,
// or returns (nil, nil) when the frame is not a transactionNotification.
func parseNotification(data []byte) (*model.RawTxNotification, error) {
	var wn wireNotification
	if err := json.Unmarshal(data, &wn); err != nil {
		return nil, err
	}
	if wn.Method != "transactionNotification" {
		return nil, nil
	}

	result := wn.Params.Result
	tx := &model.RawTxNotification{
		Signature:   result.Signature,
		Slot:        result.Slot,
		AccountKeys: result.Transaction.Transaction.Message.AccountKeys,
		Signers:     result.Transaction.Transaction.Signatures,
	}
	if len(tx.AccountKeys) > 0 {
		tx.FeePayer = tx.AccountKeys[0]
	}
	if result.Transaction.BlockTime != nil {
		tx.BlockTime = time.Unix(*result.Transaction.BlockTime, 0).UTC()
	}

	meta := result.Transaction.Meta
	if len(meta.Err) > 0 && string(meta.Err) != "null" {
		tx.Meta.Err = errors.New(string(meta.Err))
	}
	tx.Meta.Fee = meta.Fee
	tx.Meta.PreBalances = meta.PreBalances
	tx.Meta.PostBalances = meta.PostBalances
	tx.Meta.PreTokenBalances = convertBalances(meta.PreTokenBalances)
	tx.Meta.PostTokenBalances = convertBalances(meta.PostTokenBalances)

	return tx, nil
}

func convertBalances(in []wireTokenBalance) []model.RawTokenBalance {
	out := make([]model.RawTokenBalance, 0, len(in))
	for _, b := range in {
		out = append(out, model.RawTokenBalance{
			AccountIndex: b.AccountIndex,
			Mint:         b.Mint,
			Owner:        b.Owner,
			UIAmount:     b.UITokenAmount.UIAmount,
			Decimals:     b.UITokenAmount.Decimals,
		})
	}
	return out
}

// precheck implements §4.1's pre-check: reject when signature/meta is
// missing, the chain reported an error, or no tracked account matches.
func precheck(tx *model.RawTxNotification, tracked map[string]bool) (model.RejectReason, bool) {
	return classifier.PreCheckReject(tx, tracked)
}
