package nlp

import (
	"context"
	"log"
	"strings"
	"time"

	datautils "github.com/soumitsalman/data-utils"
	"github.com/tmc/langchaingo/llms"
)

const _DEFAULT_CALL_TIMEOUT = 60 * time.Second

var _PROMPT_VARS = []string{"trade", "competitors", "start_date", "end_date"}

// PromptParams are the run level values both classifier prompts are rendered with.
type PromptParams struct {
	Trade       string
	Competitors []string
	StartDate   string
	EndDate     string
}

func (p PromptParams) values(input_text string) map[string]any {
	competitors := "none listed"
	if len(p.Competitors) > 0 {
		competitors = strings.Join(p.Competitors, ", ")
	}
	return map[string]any{
		INPUT_TEXT:    input_text,
		"trade":       p.Trade,
		"competitors": competitors,
		"start_date":  p.StartDate,
		"end_date":    p.EndDate,
	}
}

type ClassifierOption func(*ClassifierClient)

func WithRetries(attempts uint, delay time.Duration) ClassifierOption {
	return func(c *ClassifierClient) {
		c.attempts = attempts
		c.delay = delay
	}
}

// WithCallTimeout bounds every single completion attempt.
func WithCallTimeout(timeout time.Duration) ClassifierOption {
	return func(c *ClassifierClient) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// ClassifierClient runs the gatekeeper and enrichment chains against one llm.
type ClassifierClient struct {
	gate_chain   *JsonValueExtraction[GatekeeperVerdict]
	enrich_chain *JsonValueExtraction[EnrichmentResult]
	attempts     uint
	delay        time.Duration
	timeout      time.Duration
}

func NewClassifierClient(llm llms.Model, opts ...ClassifierOption) *ClassifierClient {
	c := &ClassifierClient{
		gate_chain:   NewJsonValueExtraction(llm, _GATEKEEPER_INSTRUCTION, _gatekeeper_sample, _PROMPT_VARS...),
		enrich_chain: NewJsonValueExtraction(llm, _ENRICHMENT_INSTRUCTION, _enrichment_sample, _PROMPT_VARS...),
		attempts:     _RETRY_ATTEMPTS,
		delay:        LONG_DELAY,
		timeout:      _DEFAULT_CALL_TIMEOUT,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Admit returns the ids the service admitted out of inputs.
func (c *ClassifierClient) Admit(ctx context.Context, inputs []CandidateInput, params PromptParams) ([]string, error) {
	verdict, err := RetryOnFail(ctx, func() (GatekeeperVerdict, error) {
		verdict, err := callWithTimeout(ctx, c.timeout, c.gate_chain, params.values(datautils.ToJsonString(inputs)))
		if err == nil && verdict.Approved == nil {
			err = UnparsableOutputError("completion has no 'approved' list")
		}
		if err != nil {
			log.Println("[classifier] Admit failed.", err)
		}
		return verdict, err
	}, c.attempts, c.delay)
	if err != nil {
		return nil, err
	}
	return datautils.Transform(verdict.Approved, func(ref *CandidateRef) string { return strings.TrimSpace(ref.ID) }), nil
}

// Enrich returns the service's enrichment for the inputs it kept.
func (c *ClassifierClient) Enrich(ctx context.Context, inputs []CandidateInput, params PromptParams) ([]EventEnrichment, error) {
	result, err := RetryOnFail(ctx, func() (EnrichmentResult, error) {
		result, err := callWithTimeout(ctx, c.timeout, c.enrich_chain, params.values(datautils.ToJsonString(inputs)))
		if err == nil && result.Events == nil {
			err = UnparsableOutputError("completion has no 'events' list")
		}
		if err != nil {
			log.Println("[classifier] Enrich failed.", err)
		}
		return result, err
	}, c.attempts, c.delay)
	if err != nil {
		return nil, err
	}
	return result.Events, nil
}

func callWithTimeout[T any](ctx context.Context, timeout time.Duration, chain *JsonValueExtraction[T], values map[string]any) (T, error) {
	call_ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return chain.Call(call_ctx, values)
}
