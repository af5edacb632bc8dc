package sdk

import (
	"context"
	"log"
	"strings"

	datautils "github.com/soumitsalman/data-utils"
	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/metrics"
	"github.com/soumitsalman/eventsack/nlp"
)

// gatekeep drops candidates hosted by competitors. Admitted candidates keep
// their input order and fields. A batch the service can't judge follows the
// failure policy.
func (svc *Service) gatekeep(ctx context.Context, candidates []feeds.Candidate, window feeds.Window) []feeds.Candidate {
	if len(candidates) == 0 {
		return candidates
	}
	params := svc.promptParams(window)
	admitted := make([]bool, len(candidates))

	for _, batch := range batchInputs(toCandidateInputs(candidates, svc.tokens), svc.classifier_batch, svc.tokens) {
		if svc.classifier == nil {
			svc.gateFallback(batch, admitted, metrics.UNAVAILABLE)
			continue
		}
		ids, err := svc.classifier.Admit(ctx, batch, params)
		if err != nil {
			log.Printf("[gatekeeper] batch of %d failed, applying %s. %v\n", len(batch), svc.policy, err)
			svc.gateFallback(batch, admitted, metrics.FAILED)
			continue
		}
		in_batch := batchIDs(batch)
		// ids the service made up or took from another batch are ignored
		for _, id := range ids {
			id = strings.TrimSpace(id)
			if i, ok := candidateIndex(id, len(candidates)); ok && in_batch[id] {
				admitted[i] = true
			}
		}
	}

	result := make([]feeds.Candidate, 0, len(candidates))
	for i := range candidates {
		if admitted[i] {
			result = append(result, candidates[i])
		}
	}
	log.Printf("[gatekeeper] %d of %d candidates admitted\n", len(result), len(candidates))
	return result
}

func (svc *Service) gateFallback(batch []nlp.CandidateInput, admitted []bool, reason string) {
	metrics.ClassifierFallbacks.WithLabelValues(metrics.GATEKEEPER, reason).Inc()
	if svc.policy != FailOpen {
		return
	}
	datautils.ForEach(batch, func(input *nlp.CandidateInput) {
		if i, ok := candidateIndex(input.ID, len(admitted)); ok {
			admitted[i] = true
		}
	})
}
