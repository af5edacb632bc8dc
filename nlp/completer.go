package nlp

import (
	"context"
	"log"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

const (
	DEFAULT_MODEL    = "llama3-8b-8192"
	DEFAULT_BASE_URL = "https://api.groq.com/openai/v1"
)

// NewLLM connects to any OpenAI compatible endpoint in json mode.
func NewLLM(base_url, model, api_key string) (llms.Model, error) {
	if base_url == "" {
		base_url = DEFAULT_BASE_URL
	}
	if model == "" {
		model = DEFAULT_MODEL
	}
	client, err := openai.New(
		openai.WithBaseURL(base_url),
		openai.WithModel(model),
		openai.WithToken(api_key),
		openai.WithResponseFormat(openai.ResponseFormatJSON))
	if err != nil {
		log.Println("[llm] couldn't create llm client.", err)
		return nil, eris.Wrap(err, "creating llm client")
	}
	return client, nil
}

// ModelFunc adapts a plain prompt -> completion function to llms.Model.
type ModelFunc func(ctx context.Context, prompt string) (string, error)

func (f ModelFunc) GenerateContent(ctx context.Context, messages []llms.MessageContent, _ ...llms.CallOption) (*llms.ContentResponse, error) {
	var prompt strings.Builder
	for _, message := range messages {
		for _, part := range message.Parts {
			if text, ok := part.(llms.TextContent); ok {
				prompt.WriteString(text.Text)
			}
		}
	}
	out, err := f(ctx, prompt.String())
	if err != nil {
		return nil, err
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: out}}}, nil
}

func (f ModelFunc) Call(ctx context.Context, prompt string, _ ...llms.CallOption) (string, error) {
	return f(ctx, prompt)
}
