package ai

import (
	"fmt"
	"strings"
)

// Exchange is one prior conversation entry rendered into the prompt
type Exchange struct {
	Content string
	IsAI    bool
}

// supportPromptTemplate grounds the model in the ticket before it
// answers the customer's latest message.
const supportPromptTemplate = `You are a helpful customer support assistant. Use the ticket details and the conversation so far to answer the customer's latest message. Be concise, accurate and polite. If you do not have enough information to resolve the issue, ask a clarifying question.

Ticket description:
%s

Conversation so far:
%s

Customer's latest message:
%s

Your reply:`

// BuildSupportPrompt renders the fixed support prompt from the ticket
// description, the prior conversation and the message being answered.
func BuildSupportPrompt(ticketDescription string, history []Exchange, latestMessage string) string {
	return fmt.Sprintf(supportPromptTemplate,
		ticketDescription,
		formatMessageHistory(history),
		latestMessage,
	)
}

// formatMessageHistory renders the transcript one line per message,
// chronological, trimmed of trailing whitespace.
func formatMessageHistory(history []Exchange) string {
	if len(history) == 0 {
		return "No previous messages"
	}

	var b strings.Builder
	for _, msg := range history {
		if msg.IsAI {
			b.WriteString("AI assistant: ")
		} else {
			b.WriteString("Customer: ")
		}
		b.WriteString(msg.Content)
		b.WriteString("\n")
	}

	return strings.TrimSpace(b.String())
}
