package nlp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/invopop/jsonschema"
	datautils "github.com/soumitsalman/data-utils"
	"github.com/tmc/langchaingo/chains"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/tmc/langchaingo/schema"
)

const (
	_TEMPLATE = "CONTEXT:\n%s\n\n" + // 1st %s is for the instruction
		"OUTPUT FORMAT:\nThe output MUST be in json format according to the json schema below.\n```json\n%s\n```\n\n" + // 2nd %s is for schema
		"SAMPLE OUTPUT:\nHere is a sample output format\n```json\n%s\n```\n\n" + // 3rd %s is for `sample value`
		"TASK:\nFollow the instructions defined in CONTEXT and produce output according to OUTPUT FORMAT.\n\n" +
		"INPUT:\n{{.input_text}}"

	INPUT_TEXT          = "input_text"
	_DEFAULT_OUTPUT_KEY = "value"
	_JSON_FENCE         = "```"
)

// UnparsableOutputError means the completion came back but held no usable json.
type UnparsableOutputError string

func (err UnparsableOutputError) Error() string {
	return string(err)
}

// JsonOutputParser decodes a completion into T. Markdown fences and chatter
// around the json object are tolerated.
type JsonOutputParser[T any] struct{}

var _ schema.OutputParser[any] = JsonOutputParser[EnrichmentResult]{}

func NewJsonOutputParser[T any]() JsonOutputParser[T] {
	return JsonOutputParser[T]{}
}

func (p JsonOutputParser[T]) Parse(text string) (any, error) {
	return ParseJson[T](text)
}

func (p JsonOutputParser[T]) ParseWithPrompt(text string, _ llms.PromptValue) (any, error) {
	return p.Parse(text)
}

// GetFormatInstructions returns the inlined json schema of T.
func (p JsonOutputParser[T]) GetFormatInstructions() string {
	return FormatInstructions[T]()
}

func (p JsonOutputParser[T]) Type() string {
	return "json_output_parser"
}

// JsonValueExtraction is an llm chain whose output is decoded as T.
type JsonValueExtraction[T any] struct {
	llm_chain *chains.LLMChain
}

// NewJsonValueExtraction builds the prompt from instruction, the json schema of T and a sample.
// Extra template variables used in the instruction must be listed in input_vars.
func NewJsonValueExtraction[T any](llm llms.Model, instruction string, sample_value T, input_vars ...string) *JsonValueExtraction[T] {
	parser := NewJsonOutputParser[T]()

	extraction_prompt := prompts.NewPromptTemplate(
		fmt.Sprintf(
			_TEMPLATE,
			instruction,
			parser.GetFormatInstructions(),       // output schema
			datautils.ToJsonString(sample_value), // sample output
		),
		append([]string{INPUT_TEXT}, input_vars...),
	)

	internal_chain := chains.NewLLMChain(llm, extraction_prompt, chains.WithTemperature(0))
	internal_chain.OutputParser = parser
	internal_chain.OutputKey = _DEFAULT_OUTPUT_KEY

	return &JsonValueExtraction[T]{internal_chain}
}

func (c *JsonValueExtraction[T]) Call(ctx context.Context, values map[string]any) (T, error) {
	var empty T
	output, err := c.llm_chain.Call(ctx, values, chains.WithTemperature(0))
	if err != nil {
		return empty, err
	}
	value, ok := output[c.llm_chain.OutputKey].(T)
	if !ok {
		return empty, UnparsableOutputError(fmt.Sprintf("chain returned %T", output[c.llm_chain.OutputKey]))
	}
	return value, nil
}

// GetInputKeys returns the expected input keys.
func (c *JsonValueExtraction[T]) GetInputKeys() []string {
	return append([]string{}, c.llm_chain.Prompt.GetInputVariables()...)
}

// FormatInstructions returns the inlined json schema of T.
func FormatInstructions[T any]() string {
	reflector := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}
	var sample T
	output_schema, err := json.Marshal(reflector.Reflect(sample))
	if err != nil {
		return "{}"
	}
	return string(output_schema)
}

// ParseJson decodes the first json object in text.
func ParseJson[T any](text string) (T, error) {
	var value T
	candidate := strings.TrimSpace(text)
	if start := strings.Index(candidate, _JSON_FENCE); start >= 0 {
		fenced := strings.TrimPrefix(candidate[start+len(_JSON_FENCE):], "json")
		if end := strings.Index(fenced, _JSON_FENCE); end >= 0 {
			fenced = fenced[:end]
		}
		candidate = strings.TrimSpace(fenced)
	}
	if start, end := strings.Index(candidate, "{"), strings.LastIndex(candidate, "}"); start >= 0 && end > start {
		candidate = candidate[start : end+1]
	}
	if candidate == "" {
		return value, UnparsableOutputError("empty completion")
	}
	if err := json.Unmarshal([]byte(candidate), &value); err != nil {
		return value, UnparsableOutputError(fmt.Sprintf("unparsable completion: %v", err))
	}
	return value, nil
}
