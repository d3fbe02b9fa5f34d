package tokenizer

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

const fallbackModel = "gpt-4o"

var encodings sync.Map // model -> *tiktoken.Tiktoken

// CountTokens counts tokens with the gpt-4o encoding.
func CountTokens(text string) int {
	return CountTokensForModel(text, fallbackModel)
}

// CountTokensForModel counts tokens with the model's BPE encoding. Models tiktoken
// does not know use the gpt-4o encoding; if no encoding can be loaded the count is estimated.
func CountTokensForModel(text, model string) int {
	enc := encodingFor(model)
	if enc == nil {
		return Estimate(text)
	}
	return len(enc.Encode(text, nil, nil))
}

// Estimate approximates a token count from whitespace-separated words.
func Estimate(text string) int {
	words := strings.Fields(text)
	return max(len(words)*4/3, 1)
}

func encodingFor(model string) *tiktoken.Tiktoken {
	if model == "" {
		model = fallbackModel
	}
	if enc, ok := encodings.Load(model); ok {
		return enc.(*tiktoken.Tiktoken)
	}

	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		enc, err = tiktoken.EncodingForModel(fallbackModel)
		if err != nil {
			slog.Warn("token encoding unavailable, estimating", "model", model, "error", err)
			return nil
		}
	}
	encodings.Store(model, enc)
	return enc
}
