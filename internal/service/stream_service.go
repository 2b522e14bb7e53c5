package service

import (
	"context"
	"errors"
	"io"

	"support-assistant/backend/ai"
	"support-assistant/backend/internal/models"
	"support-assistant/backend/pkg/logger"
	"support-assistant/backend/pkg/observability"
	"support-assistant/backend/pkg/resilience"

	"gorm.io/gorm"
)

// ErrGenerationFailed is returned when the upstream provider fails. A
// single upstream failure is terminal for the request; there are no
// retries.
var ErrGenerationFailed = errors.New("upstream response generation failed")

// Fixed payloads emitted when a ticket has nothing to respond to.
const (
	NoMessagesPayload         = "No messages in this ticket to respond to."
	NoCustomerMessagesPayload = "No customer messages to respond to."
)

// fragmentBufferSize bounds the channel between the producer goroutine
// and the transport layer so a slow consumer applies backpressure to
// the provider read loop.
const fragmentBufferSize = 16

// EventType distinguishes stream events so the terminal sentinel can
// never be confused with literal model output.
type EventType int

const (
	// EventFragment carries one incremental unit of generated text
	EventFragment EventType = iota
	// EventInfo carries a fixed informational payload for rejected requests
	EventInfo
	// EventDone signals a successfully completed stream
	EventDone
	// EventError signals a stream-level failure
	EventError
)

// Event is one discrete unit forwarded to the transport layer
type Event struct {
	Type EventType
	Data string
}

// ResponseStream is the consumer side of one AI response request. The
// Events channel is closed once a terminal event (done, info or error)
// has been delivered.
type ResponseStream struct {
	Events <-chan Event
}

// FragmentStream is a lazy, non-restartable sequence of text fragments.
// Recv returns io.EOF after the final fragment; any other error means
// the reply is incomplete.
type FragmentStream interface {
	Recv() (string, error)
	Close() error
}

// ResponseGenerator turns a ticket's conversation into an incremental
// reply. Each call opens one provider-side streaming session.
type ResponseGenerator interface {
	Generate(ctx context.Context, ticketDescription string, history []ai.Exchange, latestMessage string) (FragmentStream, error)
}

// StreamService coordinates one AI response stream per request: it
// validates the ticket, drives the generator, forwards fragments to the
// caller in emission order and persists the complete reply exactly once
// when generation finishes cleanly.
type StreamService struct {
	db        *gorm.DB
	tickets   *TicketService
	generator ResponseGenerator
	breaker   *resilience.CircuitBreaker
	metrics   *observability.Metrics
	log       *logger.Logger
}

// NewStreamService creates a new stream coordinator. The breaker and
// metrics may be nil, in which case they are simply not consulted.
func NewStreamService(
	db *gorm.DB,
	tickets *TicketService,
	generator ResponseGenerator,
	breaker *resilience.CircuitBreaker,
	metrics *observability.Metrics,
	log *logger.Logger,
) *StreamService {
	return &StreamService{
		db:        db,
		tickets:   tickets,
		generator: generator,
		breaker:   breaker,
		metrics:   metrics,
		log:       log,
	}
}

// StreamResponse loads the ticket through the ownership check, selects
// the trigger message and starts the producer. Authorization and
// not-found failures surface as plain errors before any stream exists;
// everything after that is reported through the returned stream.
func (s *StreamService) StreamResponse(ctx context.Context, user *models.User, ticketID uint) (*ResponseStream, error) {
	ticket, err := s.tickets.GetTicketWithMessages(user, ticketID)
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.StreamsStarted.Add(ctx, 1)
	}

	if len(ticket.Messages) == 0 {
		return s.rejectedStream(ctx, NoMessagesPayload), nil
	}

	trigger := latestCustomerMessage(ticket.Messages)
	if trigger == nil {
		return s.rejectedStream(ctx, NoCustomerMessagesPayload), nil
	}

	// History is every message except the trigger, excluded by identity
	// so duplicate content elsewhere on the ticket is retained.
	history := make([]ai.Exchange, 0, len(ticket.Messages)-1)
	for _, msg := range ticket.Messages {
		if msg.ID == trigger.ID {
			continue
		}
		history = append(history, ai.Exchange{Content: msg.Content, IsAI: msg.IsAI})
	}

	events := make(chan Event, fragmentBufferSize)
	go s.produce(ctx, ticket, trigger, history, events)

	return &ResponseStream{Events: events}, nil
}

// latestCustomerMessage returns the most recent non-AI message, or nil
// when the ticket has none.
func latestCustomerMessage(messages []models.Message) *models.Message {
	for i := len(messages) - 1; i >= 0; i-- {
		if !messages[i].IsAI {
			return &messages[i]
		}
	}
	return nil
}

// rejectedStream emits a single fixed informational payload and
// terminates. No persistence occurs on this path.
func (s *StreamService) rejectedStream(ctx context.Context, payload string) *ResponseStream {
	if s.metrics != nil {
		s.metrics.StreamsRejected.Add(ctx, 1)
	}

	events := make(chan Event, 1)
	events <- Event{Type: EventInfo, Data: payload}
	close(events)
	return &ResponseStream{Events: events}
}

// produce drives one generator session. Fragments are forwarded in
// emission order without buffering or reordering; the accumulated reply
// is persisted once, after the final fragment, as a single is_ai
// message. Cancellation of ctx stops the producer early and discards
// the partial accumulator without persisting it.
func (s *StreamService) produce(ctx context.Context, ticket *models.Ticket, trigger *models.Message, history []ai.Exchange, events chan<- Event) {
	defer close(events)

	var stream FragmentStream
	open := func() error {
		var err error
		stream, err = s.generator.Generate(ctx, ticket.Description, history, trigger.Content)
		return err
	}

	var err error
	if s.breaker != nil {
		err = s.breaker.Execute(open)
	} else {
		err = open()
	}
	if err != nil {
		s.failStream(ctx, events, ticket.ID, err)
		return
	}
	defer stream.Close()

	var accumulator []byte
	for {
		fragment, recvErr := stream.Recv()
		if recvErr == io.EOF {
			break
		}
		if recvErr != nil {
			// The partial accumulator is discarded: an incomplete reply
			// is never persisted or reported as success.
			s.failStream(ctx, events, ticket.ID, recvErr)
			return
		}

		accumulator = append(accumulator, fragment...)

		select {
		case events <- Event{Type: EventFragment, Data: fragment}:
			if s.metrics != nil {
				s.metrics.FragmentsForwarded.Add(ctx, 1)
			}
		case <-ctx.Done():
			s.log.Info("AI response stream canceled by caller",
				"ticketID", ticket.ID,
				"fragments_accumulated", len(accumulator),
			)
			return
		}
	}

	// Short replies can fit entirely in the event buffer without any
	// forwarding select observing cancellation, so check once more
	// before persisting: a disconnected caller persists nothing.
	if ctx.Err() != nil {
		s.log.Info("AI response stream canceled by caller",
			"ticketID", ticket.ID,
			"fragments_accumulated", len(accumulator),
		)
		return
	}

	message := models.Message{
		TicketID: ticket.ID,
		Content:  string(accumulator),
		IsAI:     true,
	}
	if err := s.db.Create(&message).Error; err != nil {
		s.failStream(ctx, events, ticket.ID, err)
		return
	}

	if s.metrics != nil {
		s.metrics.StreamsCompleted.Add(ctx, 1)
	}

	select {
	case events <- Event{Type: EventDone}:
	case <-ctx.Done():
	}
}

// failStream reports a stream-level failure to the caller. The event
// channel is closed by the producer's deferred close.
func (s *StreamService) failStream(ctx context.Context, events chan<- Event, ticketID uint, err error) {
	if s.metrics != nil {
		s.metrics.StreamsFailed.Add(ctx, 1)
	}
	s.log.LogError(err, "AI response generation failed", "ticketID", ticketID)

	select {
	case events <- Event{Type: EventError, Data: ErrGenerationFailed.Error()}:
	case <-ctx.Done():
	}
}
