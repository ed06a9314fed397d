package llm

import (
	"context"

	"github.com/neuroleaf/neuroleaf/message"
)

// Client defines the interface for text-generation providers.
type Client interface {
	// Generate generates a response for the given role-tagged messages.
	// Tools, when non-nil, are JSON-schema descriptors the provider may
	// elect to call; requested calls come back on the reply message.
	Generate(ctx context.Context, messages []*message.Message, tools []map[string]any) (*message.Message, error)

	// SetTemperature updates the temperature setting for generation
	SetTemperature(temp float64)

	// SetMaxTokens updates the maximum tokens limit for generation
	SetMaxTokens(max int64)

	// SetModel updates the model to use for generation
	SetModel(model string)
}
