// Package orchestrator composes session resolution, context assembly, the
// streamed completion, safety inspection and memory consolidation into the
// end-to-end message flow.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/auralabs/aura/backend/internal/analysis/sentiment"
	"github.com/auralabs/aura/backend/internal/model/chat"
	memorymodel "github.com/auralabs/aura/backend/internal/model/memory"
	"github.com/auralabs/aura/backend/internal/service/memory"
	"github.com/auralabs/aura/backend/internal/service/safety"
	"github.com/auralabs/aura/backend/internal/service/session"
	"github.com/auralabs/aura/backend/internal/store"
	"github.com/auralabs/aura/backend/internal/stream"
)

// ErrEmptyMessage rejects a submit with no text.
var ErrEmptyMessage = errors.New("orchestrator: message text is required")

// Header defaults applied when the model omits directive fields.
const (
	DefaultAction   = "idle"
	DefaultEmotion  = "neutral"
	DefaultEyeState = "normal"
	DefaultSpeed    = 1.0
)

// TokenStream is an ordered, cancellable sequence of reply deltas. Recv
// returns io.EOF at the end of the stream.
type TokenStream interface {
	Recv() (string, error)
	Close()
}

// Completer opens a completion stream for an assembled prompt context.
type Completer interface {
	StreamReply(ctx context.Context, topic string, dossier *memorymodel.Record, history []chat.Message, message string) (TokenStream, error)
}

// Refiner cleans up a raw voice transcript before it enters the pipeline.
type Refiner interface {
	RefineTranscript(ctx context.Context, raw string) (string, error)
}

// Request is one inbound user message.
type Request struct {
	UserID         string
	Topic          string
	ConversationID string
	Text           string
	Voice          bool
}

// HeaderPayload is the structured event forwarded to the client before any
// text. Field set is a contract with the presentation layer.
type HeaderPayload struct {
	Mode           string           `json:"mode"`
	ConversationID string           `json:"conversationId"`
	Avatar         AvatarDirectives `json:"avatar"`
	Safety         *SafetySignal    `json:"safety"`
}

// AvatarDirectives drive the client-side avatar.
type AvatarDirectives struct {
	Animation        string  `json:"animation"`
	FacialExpression string  `json:"facialExpression"`
	Speed            float64 `json:"speed"`
	EyeState         string  `json:"eye_state"`
}

// SafetySignal is included when the model flagged the exchange.
type SafetySignal struct {
	Detected  bool   `json:"detected"`
	RiskLevel string `json:"riskLevel"`
	Category  string `json:"category"`
}

// Emitter delivers the ordered event stream to the client. Header is called
// at most once and always before the first Text.
type Emitter interface {
	Header(payload HeaderPayload) error
	Text(fragment string) error
	Done() error
}

// Pipeline owns the per-message state machine:
// Init -> ContextGathering -> Streaming -> Finalizing -> Done.
type Pipeline struct {
	sessions     *session.Manager
	cache        *memory.Cache
	memories     store.MemoryStore
	monitor      *safety.Monitor
	consolidator *memory.Consolidator
	completer    Completer
	refiner      Refiner
}

// NewPipeline wires the orchestrator. refiner may be nil; voice messages then
// enter the pipeline untouched.
func NewPipeline(
	sessions *session.Manager,
	cache *memory.Cache,
	memories store.MemoryStore,
	monitor *safety.Monitor,
	consolidator *memory.Consolidator,
	completer Completer,
	refiner Refiner,
) *Pipeline {
	return &Pipeline{
		sessions:     sessions,
		cache:        cache,
		memories:     memories,
		monitor:      monitor,
		consolidator: consolidator,
		completer:    completer,
		refiner:      refiner,
	}
}

// Submit runs one message through the pipeline, emitting events as they are
// produced. A returned error means nothing structured could be delivered;
// once the header has been flushed, upstream failures end the stream silently
// and Submit returns nil.
func (p *Pipeline) Submit(ctx context.Context, req Request, emit Emitter) error {
	// Init.
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return ErrEmptyMessage
	}
	topic := req.Topic
	if topic == "" {
		topic = session.DefaultTopic
	}
	if req.Voice && p.refiner != nil {
		refined, err := p.refiner.RefineTranscript(ctx, text)
		if err != nil {
			log.Printf("[orchestrator] transcript refinement failed, using raw text: %v", err)
		} else if refined != "" {
			text = refined
		}
	}

	// ContextGathering: resolve the thread and fetch the dossier
	// concurrently. The user message is persisted only after history has
	// been read so it does not appear in its own context.
	var (
		conv    chat.Conversation
		history []chat.Message
		dossier *memorymodel.Record
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		resolved, err := p.sessions.Resolve(gctx, req.ConversationID, req.UserID, topic, text)
		if err != nil {
			return err
		}
		conv = resolved
		history, err = p.sessions.RecentHistory(gctx, conv.ID)
		return err
	})
	g.Go(func() error {
		rec, err := p.lookupDossier(gctx, memorymodel.Key{UserID: req.UserID, Topic: topic})
		if err != nil {
			return err
		}
		dossier = rec
		return nil
	})
	if err := g.Wait(); err != nil {
		return fmt.Errorf("context gathering failed: %w", err)
	}

	userMsg, err := p.sessions.AppendMessage(ctx, chat.Message{
		ConversationID: conv.ID,
		Sender:         chat.RoleUser,
		Text:           text,
		Kind:           chat.KindText,
		Emotion:        string(sentiment.Analyze(text)),
	})
	if err != nil {
		return err
	}

	// Streaming.
	tokens, err := p.completer.StreamReply(ctx, topic, dossier, history, text)
	if err != nil {
		return fmt.Errorf("failed to open completion stream: %w", err)
	}
	defer tokens.Close()

	parser := stream.NewParser()
	var (
		header     *stream.Header
		headerSent bool
		reply      strings.Builder
		aborted    bool
	)

	deliver := func(events []stream.Event) error {
		for _, ev := range events {
			if ev.Header != nil {
				header = ev.Header
				alert := p.monitor.Inspect(ctx, header, req.UserID, text)
				payload := buildHeaderPayload(topic, conv.ID, header)
				if alert != nil {
					payload.Safety = &SafetySignal{
						Detected:  true,
						RiskLevel: string(alert.Risk),
						Category:  alert.Category,
					}
				}
				if err := emit.Header(payload); err != nil {
					return err
				}
				headerSent = true
				continue
			}
			reply.WriteString(ev.Text)
			if err := emit.Text(ev.Text); err != nil {
				return err
			}
		}
		return nil
	}

	for {
		delta, err := tokens.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if !headerSent {
				return fmt.Errorf("completion stream failed: %w", err)
			}
			// Transport already committed to a streaming response; stop
			// forwarding and let the client see the stream end.
			log.Printf("[orchestrator] upstream stream aborted mid-reply: %v", err)
			aborted = true
			break
		}
		if err := deliver(parser.Feed(delta)); err != nil {
			log.Printf("[orchestrator] client write failed, aborting stream: %v", err)
			aborted = true
			break
		}
	}
	if aborted {
		return nil
	}
	if err := deliver(parser.Close()); err != nil {
		return nil
	}

	// Finalizing. Errors past this point never fail the exchange.
	assistantMsg, err := p.sessions.AppendMessage(ctx, chat.Message{
		ConversationID: conv.ID,
		Sender:         chat.RoleAssistant,
		Text:           reply.String(),
		Kind:           chat.KindText,
		Emotion:        header.String("emotion", DefaultEmotion),
		Action:         header.String("action", DefaultAction),
	})
	if err != nil {
		log.Printf("[orchestrator] failed to persist assistant message: %v", err)
		assistantMsg = chat.Message{Sender: chat.RoleAssistant, Text: reply.String()}
	}
	if err := p.sessions.Touch(ctx, conv, reply.String()); err != nil {
		log.Printf("[orchestrator] failed to update conversation: %v", err)
	}

	p.consolidator.ConsolidateAsync(req.UserID, topic, []chat.Message{userMsg, assistantMsg})

	if err := emit.Done(); err != nil {
		log.Printf("[orchestrator] failed to deliver completion sentinel: %v", err)
	}
	return nil
}

// lookupDossier serves the dossier from cache when fresh, falling back to the
// store. A user with no dossier yet yields nil without error.
func (p *Pipeline) lookupDossier(ctx context.Context, key memorymodel.Key) (*memorymodel.Record, error) {
	if rec, ok := p.cache.Get(key); ok {
		return &rec, nil
	}

	rec, err := p.memories.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load dossier: %w", err)
	}
	p.cache.Put(key, rec)
	return &rec, nil
}

func buildHeaderPayload(topic, conversationID string, header *stream.Header) HeaderPayload {
	return HeaderPayload{
		Mode:           topic,
		ConversationID: conversationID,
		Avatar: AvatarDirectives{
			Animation:        header.String("action", DefaultAction),
			FacialExpression: header.String("emotion", DefaultEmotion),
			Speed:            header.Float("speed", DefaultSpeed),
			EyeState:         header.String("eyeState", DefaultEyeState),
		},
	}
}
