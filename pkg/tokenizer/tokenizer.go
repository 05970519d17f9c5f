package tokenizer

import (
	"math"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// DefaultCharsPerToken is the usual ratio for English text and source code
const DefaultCharsPerToken = 3.5

var encodings sync.Map // model -> *tiktoken.Tiktoken

// CountTokens returns the number of tokens in the given text for the specified model.
// For unknown models, it falls back to cl100k_base encoding (current OpenAI standard).
func CountTokens(text string, model string) int {
	if text == "" {
		return 0
	}

	encoding, err := encodingFor(model)
	if err != nil {
		// Ultimate fallback: estimate based on character count
		return int(float64(len(text)) / DefaultCharsPerToken)
	}

	return len(encoding.Encode(text, nil, nil))
}

func encodingFor(model string) (*tiktoken.Tiktoken, error) {
	if cached, ok := encodings.Load(model); ok {
		return cached.(*tiktoken.Tiktoken), nil
	}

	// Try to get encoding for the specific model
	encoding, err := tiktoken.EncodingForModel(model)
	if err != nil {
		// Fallback to cl100k_base for unknown models
		encoding, err = tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			return nil, err
		}
	}

	encodings.Store(model, encoding)
	return encoding, nil
}

// CharBudget converts a token limit into a character budget,
// floor(tokens * charsPerToken). A non-positive ratio uses DefaultCharsPerToken.
func CharBudget(tokens int, charsPerToken float64) int {
	if tokens <= 0 {
		return 0
	}
	if charsPerToken <= 0 {
		charsPerToken = DefaultCharsPerToken
	}
	return int(math.Floor(float64(tokens) * charsPerToken))
}
