package classifier

import "github.com/klingon-exchange/swapwatch/internal/model"

// Match is one tracked account found in a raw transaction, tagged with the
// source that first surfaced it (§4.2 step A).
type Match struct {
	Account string
	Source  model.MatchSource
}

// MatchTrackedAccounts implements §4.2 step A: collect candidate tracked
// accounts from accountKeys, postTokenBalances owners, and innerInstructions
// account references (in that priority order), take the union, and record
// which source first matched each account. tracked is the snapshot set of
// addresses currently being watched.
func MatchTrackedAccounts(tx *model.RawTxNotification, tracked map[string]bool) []Match {
	if tx == nil || len(tracked) == 0 {
		return nil
	}

	seen := make(map[string]bool)
	var matches []Match

	for _, key := range tx.AccountKeys {
		if tracked[key] && !seen[key] {
			seen[key] = true
			matches = append(matches, Match{Account: key, Source: model.MatchAccountKeys})
		}
	}

	for _, bal := range tx.Meta.PostTokenBalances {
		if bal.Owner != "" && tracked[bal.Owner] && !seen[bal.Owner] {
			seen[bal.Owner] = true
			matches = append(matches, Match{Account: bal.Owner, Source: model.MatchPostTokenBalances})
		}
	}

	for _, set := range tx.Meta.InnerInstructions {
		for _, indexes := range set.AccountIndexes {
			for _, idx := range indexes {
				if idx < 0 || idx >= len(tx.AccountKeys) {
					continue
				}
				addr := tx.AccountKeys[idx]
				if tracked[addr] && !seen[addr] {
					seen[addr] = true
					matches = append(matches, Match{Account: addr, Source: model.MatchInnerInstructions})
				}
			}
		}
	}

	return matches
}

// PreCheckReject reports whether tx should be rejected before any per-account
// classification is attempted: missing signature, missing meta sentinel
// (RawMeta is always present as a struct, so "missing meta" is modeled as a
// nil tx), an on-chain error, or no tracked-account match at all.
func PreCheckReject(tx *model.RawTxNotification, tracked map[string]bool) (model.RejectReason, bool) {
	if tx == nil || tx.Signature == "" {
		return model.RejectMissingData, true
	}
	if tx.Meta.Err != nil {
		return model.RejectOnChainError, true
	}
	if len(MatchTrackedAccounts(tx, tracked)) == 0 {
		return model.RejectNoTrackedAccount, true
	}
	return "", false
}
