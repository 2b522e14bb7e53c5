package service

import (
	"context"

	"support-assistant/backend/ai"
)

// AIGenerator adapts the provider client to the ResponseGenerator
// interface consumed by the stream coordinator.
type AIGenerator struct {
	client *ai.Client
}

// NewAIGenerator wraps an AI provider client.
func NewAIGenerator(client *ai.Client) *AIGenerator {
	return &AIGenerator{client: client}
}

// Generate renders the support prompt for the ticket conversation and
// opens one streaming completion session against the provider.
func (g *AIGenerator) Generate(ctx context.Context, ticketDescription string, history []ai.Exchange, latestMessage string) (FragmentStream, error) {
	prompt := ai.BuildSupportPrompt(ticketDescription, history, latestMessage)
	stream, err := g.client.StreamCompletion(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return stream, nil
}
