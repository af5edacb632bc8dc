package sdk

import (
	"strconv"

	datautils "github.com/soumitsalman/data-utils"
	"github.com/soumitsalman/eventsack/feeds"
	"github.com/soumitsalman/eventsack/nlp"
)

// candidate ids are positions in the stage's input slice
func toCandidateInputs(candidates []feeds.Candidate, tokens *nlp.TokenBudget) []nlp.CandidateInput {
	inputs := make([]nlp.CandidateInput, len(candidates))
	for i := range candidates {
		c := &candidates[i]
		inputs[i] = nlp.CandidateInput{
			ID:          strconv.Itoa(i),
			Title:       c.Title,
			Description: tokens.TruncateDescription(c.Description),
			Link:        c.Link,
			Source:      c.SourceName,
		}
		if c.EventDate != nil {
			inputs[i].Date = c.EventDate.Format(DATE_FORMAT)
		}
	}
	return inputs
}

// batchInputs cuts inputs into prompt sized batches: at most size items and,
// when a token budget is set, no more tokens than it allows. A single item
// over budget still gets a batch of its own.
func batchInputs(inputs []nlp.CandidateInput, size int, tokens *nlp.TokenBudget) [][]nlp.CandidateInput {
	batches := make([][]nlp.CandidateInput, 0, 1+len(inputs)/size)
	current := make([]nlp.CandidateInput, 0, size)
	used := 0
	for _, input := range inputs {
		text := datautils.ToJsonString(input)
		if len(current) > 0 && (len(current) >= size || !tokens.Fits(used, text)) {
			batches = append(batches, current)
			current = make([]nlp.CandidateInput, 0, size)
			used = 0
		}
		current = append(current, input)
		used += tokens.Count(text)
	}
	if len(current) > 0 {
		batches = append(batches, current)
	}
	return batches
}

func (svc *Service) promptParams(window feeds.Window) nlp.PromptParams {
	return nlp.PromptParams{
		Trade:       svc.trade,
		Competitors: svc.Competitors(),
		StartDate:   window.Start.Format(DATE_FORMAT),
		EndDate:     window.End.Format(DATE_FORMAT),
	}
}

func batchIDs(batch []nlp.CandidateInput) map[string]bool {
	ids := make(map[string]bool, len(batch))
	for i := range batch {
		ids[batch[i].ID] = true
	}
	return ids
}

func candidateIndex(id string, n int) (int, bool) {
	i, err := strconv.Atoi(id)
	if err != nil || i < 0 || i >= n {
		return 0, false
	}
	return i, true
}
