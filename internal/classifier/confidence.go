package classifier

import "github.com/klingon-exchange/swapwatch/internal/model"

// classifyConfidence implements §4.2 step F.
func classifyConfidence(method model.SwapperMethod, unambiguousDeltas bool) model.Confidence {
	switch {
	case method == model.MethodFeePayer && unambiguousDeltas:
		return model.ConfidenceMax
	case method == model.MethodSigner:
		return model.ConfidenceHigh
	case method == model.MethodOwnerAnalysis && unambiguousDeltas:
		return model.ConfidenceMedium
	default:
		return model.ConfidenceLow
	}
}
