package ai

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// doneSentinel terminates the provider's SSE stream.
const doneSentinel = "[DONE]"

// completionChunk is one SSE payload in the provider's streaming format
type completionChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// CompletionStream reads content fragments from one provider-side
// streaming session. Recv returns fragments in emission order and
// io.EOF once the provider sends its terminal sentinel. A transport
// error mid-stream surfaces as a non-EOF error: the reply must then be
// treated as incomplete.
type CompletionStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func newCompletionStream(body io.ReadCloser) *CompletionStream {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	return &CompletionStream{
		body:    body,
		scanner: scanner,
	}
}

// Recv returns the next non-empty content fragment.
func (s *CompletionStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			// SSE comments and unknown fields are skipped
			continue
		}

		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == doneSentinel {
			s.done = true
			return "", io.EOF
		}

		var chunk completionChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return "", fmt.Errorf("error unmarshaling stream chunk: %w", err)
		}

		if len(chunk.Choices) == 0 {
			continue
		}
		if content := chunk.Choices[0].Delta.Content; content != "" {
			return content, nil
		}
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("error reading stream: %w", err)
	}

	// The body ended without a terminal sentinel: the provider session
	// was cut short and the reply is incomplete.
	return "", fmt.Errorf("stream ended unexpectedly without terminal sentinel")
}

// Close releases the underlying response body.
func (s *CompletionStream) Close() error {
	return s.body.Close()
}
