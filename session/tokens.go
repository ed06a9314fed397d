package session

import (
	"sync"

	"github.com/pkoukk/tiktoken-go"
)

// TokenCounter estimates how many tokens a text costs against the history
// budget.
type TokenCounter interface {
	Count(text string) int
}

// bpeCounter counts with the cl100k_base encoding shared by the OpenAI
// chat and embedding models.
type bpeCounter struct {
	enc *tiktoken.Tiktoken
}

func (c *bpeCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// approxCounter is the fallback when the BPE tables cannot be loaded
// (offline environments). Four characters per token is the usual rough
// figure for English text.
type approxCounter struct{}

func (approxCounter) Count(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

var (
	counterOnce    sync.Once
	defaultCounter TokenCounter
)

// NewTokenCounter returns the process-wide token counter, preferring the
// real BPE encoding and degrading to the character approximation.
func NewTokenCounter() TokenCounter {
	counterOnce.Do(func() {
		enc, err := tiktoken.GetEncoding("cl100k_base")
		if err != nil {
			defaultCounter = approxCounter{}
			return
		}
		defaultCounter = &bpeCounter{enc: enc}
	})
	return defaultCounter
}
