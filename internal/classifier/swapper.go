package classifier

import "github.com/klingon-exchange/swapwatch/internal/model"

// identifySwapper implements §4.2 step B's 3-tier swapper identification:
// fee payer, then first signer, then owner-analysis over net token deltas.
func identifySwapper(tx *model.RawTxNotification, account string) (swapper string, method model.SwapperMethod, ok bool) {
	if tx.FeePayer != "" && tx.FeePayer == account {
		return account, model.MethodFeePayer, true
	}
	if len(tx.Signers) > 0 && tx.Signers[0] == account {
		return account, model.MethodSigner, true
	}
	if ownerFormsConsistentSwap(tx, account) {
		return account, model.MethodOwnerAnalysis, true
	}
	return "", "", false
}

// ownerFormsConsistentSwap checks whether account's net token deltas in tx
// form exactly one net-negative and one net-positive asset, ignoring dust.
func ownerFormsConsistentSwap(tx *model.RawTxNotification, account string) bool {
	deltas := netDeltas(tx, account)
	sent, received, ok := surviving(deltas)
	return ok && sent.Mint != received.Mint
}
