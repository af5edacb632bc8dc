package nlp

import (
	"log"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	datautils "github.com/soumitsalman/data-utils"
	"github.com/tmc/langchaingo/textsplitter"
)

const _ENCODING = "cl100k_base"

// TokenBudget trims descriptions and sizes prompt batches by token count.
// A zero limit turns the matching feature off and the encoder is never loaded.
type TokenBudget struct {
	max_prompt_tokens      int
	max_description_tokens int

	once     sync.Once
	encoder  *tiktoken.Tiktoken
	splitter *textsplitter.TokenSplitter
}

func NewTokenBudget(max_prompt_tokens, max_description_tokens int) *TokenBudget {
	return &TokenBudget{
		max_prompt_tokens:      max_prompt_tokens,
		max_description_tokens: max_description_tokens,
	}
}

func (b *TokenBudget) load() {
	b.once.Do(func() {
		encoder, err := tiktoken.GetEncoding(_ENCODING)
		if err != nil {
			log.Println("[tokens] couldn't load encoding, token limits are off.", err)
			return
		}
		b.encoder = encoder
		if b.max_description_tokens > 0 {
			splitter := textsplitter.NewTokenSplitter(
				textsplitter.WithEncodingName(_ENCODING),
				textsplitter.WithChunkSize(b.max_description_tokens),
				textsplitter.WithChunkOverlap(0))
			b.splitter = &splitter
		}
	})
}

// Count returns the token count of text, or 0 when prompt budgeting is off.
func (b *TokenBudget) Count(text string) int {
	if b == nil || b.max_prompt_tokens <= 0 {
		return 0
	}
	b.load()
	if b.encoder == nil {
		return 0
	}
	return len(b.encoder.Encode(text, nil, nil))
}

// Fits reports whether adding text to a prompt already holding used tokens stays in budget.
func (b *TokenBudget) Fits(used int, text string) bool {
	if b == nil || b.max_prompt_tokens <= 0 {
		return true
	}
	return used+b.Count(text) <= b.max_prompt_tokens
}

// TruncateDescription keeps the first chunk of text that fits max_description_tokens.
func (b *TokenBudget) TruncateDescription(text string) string {
	if b == nil || b.max_description_tokens <= 0 || text == "" {
		return text
	}
	b.load()
	if b.encoder == nil {
		return text
	}
	if b.splitter != nil {
		if chunks, err := b.splitter.SplitText(text); err == nil && len(chunks) > 0 {
			return chunks[0]
		}
	}
	return b.encoder.Decode(datautils.SafeSlice(b.encoder.Encode(text, nil, nil), 0, b.max_description_tokens))
}
