package orchestrator

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/auralabs/aura/backend/internal/model/chat"
	memorymodel "github.com/auralabs/aura/backend/internal/model/memory"
	safetymodel "github.com/auralabs/aura/backend/internal/model/safety"
	memsvc "github.com/auralabs/aura/backend/internal/service/memory"
	safetysvc "github.com/auralabs/aura/backend/internal/service/safety"
	"github.com/auralabs/aura/backend/internal/service/session"
	"github.com/auralabs/aura/backend/internal/store"
)

type stubStream struct {
	chunks []string
	err    error
	pos    int
	closed bool
}

func (s *stubStream) Recv() (string, error) {
	if s.pos < len(s.chunks) {
		chunk := s.chunks[s.pos]
		s.pos++
		return chunk, nil
	}
	if s.err != nil {
		return "", s.err
	}
	return "", io.EOF
}

func (s *stubStream) Close() { s.closed = true }

type stubCompleter struct {
	stream  *stubStream
	openErr error

	gotTopic   string
	gotDossier *memorymodel.Record
	gotHistory []chat.Message
	gotMessage string
}

func (c *stubCompleter) StreamReply(_ context.Context, topic string, dossier *memorymodel.Record, history []chat.Message, message string) (TokenStream, error) {
	c.gotTopic = topic
	c.gotDossier = dossier
	c.gotHistory = history
	c.gotMessage = message
	if c.openErr != nil {
		return nil, c.openErr
	}
	return c.stream, nil
}

type recordedEvent struct {
	kind   string
	header HeaderPayload
	text   string
}

type stubEmitter struct {
	events   []recordedEvent
	textErr  error
	doneSent bool
}

func (e *stubEmitter) Header(payload HeaderPayload) error {
	e.events = append(e.events, recordedEvent{kind: "header", header: payload})
	return nil
}

func (e *stubEmitter) Text(fragment string) error {
	if e.textErr != nil {
		return e.textErr
	}
	e.events = append(e.events, recordedEvent{kind: "text", text: fragment})
	return nil
}

func (e *stubEmitter) Done() error {
	e.doneSent = true
	return nil
}

func (e *stubEmitter) concatText() string {
	var sb strings.Builder
	for _, ev := range e.events {
		if ev.kind == "text" {
			sb.WriteString(ev.text)
		}
	}
	return sb.String()
}

type stubSummarizer struct{ reply string }

func (s *stubSummarizer) Summarize(_ context.Context, _ memorymodel.Record, _ []chat.Message) (string, error) {
	return s.reply, nil
}

type upperRefiner struct{}

func (upperRefiner) RefineTranscript(_ context.Context, raw string) (string, error) {
	return strings.ToUpper(raw), nil
}

func newPipeline(t *testing.T, completer Completer, refiner Refiner) (*Pipeline, *store.MemStore) {
	t.Helper()
	st := store.NewMemStore()
	cache := memsvc.NewCache(time.Minute)
	sessions := session.NewManager(st.Conversations(), st.Messages(), 10)
	monitor := safetysvc.NewMonitor(st.Alerts())
	consolidator := memsvc.NewConsolidator(st.Memories(), cache, &stubSummarizer{
		reply: `{"updated_summary":"sum","emotional_state":"Calm","new_facts":["f1"]}`,
	})
	return NewPipeline(sessions, cache, st.Memories(), monitor, consolidator, completer, refiner), st
}

const safetyReply = "<METADATA>\naction: talking\nemotion: sad\nsafetyDetected: true\nsafetyRisk: High\nsafetyCategory: self-harm\n</METADATA>\nI'm here with you."

func TestSubmitEndToEndSafetyScenario(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{
		chunks: []string{"<METADATA>\naction: talking\nemotion: sad\nsafetyDetected: true\nsafetyRisk: High\nsafetyCategory: self-harm\n</METADA", "TA>\nI'm here ", "with you."},
	}}
	pipeline, st := newPipeline(t, completer, nil)
	emitter := &stubEmitter{}

	err := pipeline.Submit(context.Background(), Request{
		UserID: "u1",
		Topic:  "Mental Health",
		Text:   "I can't go on anymore",
	}, emitter)
	if err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	if len(emitter.events) < 2 {
		t.Fatalf("expected header plus text events, got %d", len(emitter.events))
	}
	if emitter.events[0].kind != "header" {
		t.Fatalf("first event must be the header, got %s", emitter.events[0].kind)
	}
	for _, ev := range emitter.events[1:] {
		if ev.kind != "text" {
			t.Fatalf("non-text event after header: %s", ev.kind)
		}
	}
	if got := emitter.concatText(); got != "I'm here with you." {
		t.Fatalf("reconstituted text: %q", got)
	}
	if !emitter.doneSent {
		t.Fatal("expected completion sentinel")
	}

	hdr := emitter.events[0].header
	if hdr.Safety == nil || !hdr.Safety.Detected {
		t.Fatalf("header payload missing safety signal: %+v", hdr)
	}
	if hdr.Safety.RiskLevel != "High" || hdr.Safety.Category != "self-harm" {
		t.Fatalf("safety signal: %+v", hdr.Safety)
	}
	if hdr.Avatar.Animation != "talking" || hdr.Avatar.FacialExpression != "sad" {
		t.Fatalf("avatar directives: %+v", hdr.Avatar)
	}
	if hdr.Avatar.Speed != DefaultSpeed || hdr.Avatar.EyeState != DefaultEyeState {
		t.Fatalf("unspecified avatar fields should default: %+v", hdr.Avatar)
	}

	alerts, err := st.Alerts().ListByUser(context.Background(), "u1")
	if err != nil {
		t.Fatalf("ListByUser err: %v", err)
	}
	if len(alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(alerts))
	}
	if alerts[0].Risk != safetymodel.RiskHigh || alerts[0].Category != safetymodel.CategorySelfHarm {
		t.Fatalf("alert: %+v", alerts[0])
	}
	if alerts[0].Message != "I can't go on anymore" {
		t.Fatalf("alert message: %q", alerts[0].Message)
	}

	if !completer.stream.closed {
		t.Fatal("upstream stream must be closed")
	}

	convs, err := st.Conversations().ListByUser(context.Background(), "u1", "")
	if err != nil || len(convs) != 1 {
		t.Fatalf("conversations: %v %v", convs, err)
	}
	msgs, err := st.Messages().ListByConversation(context.Background(), convs[0].ID, 0)
	if err != nil {
		t.Fatalf("ListByConversation err: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant messages, got %d", len(msgs))
	}
	assistant := msgs[1]
	if assistant.Sender != chat.RoleAssistant || assistant.Text != "I'm here with you." {
		t.Fatalf("assistant message: %+v", assistant)
	}
	if assistant.Emotion != "sad" || assistant.Action != "talking" {
		t.Fatalf("assistant tags: emotion=%q action=%q", assistant.Emotion, assistant.Action)
	}
}

func TestSubmitEmptyMessageRejected(t *testing.T) {
	pipeline, st := newPipeline(t, &stubCompleter{stream: &stubStream{}}, nil)

	err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "   "}, &stubEmitter{})
	if !errors.Is(err, ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}

	convs, _ := st.Conversations().ListByUser(context.Background(), "u1", "")
	if len(convs) != 0 {
		t.Fatal("validation failure must not persist anything")
	}
}

func TestSubmitStreamOpenFailureSurfaced(t *testing.T) {
	completer := &stubCompleter{openErr: errors.New("model offline")}
	pipeline, _ := newPipeline(t, completer, nil)
	emitter := &stubEmitter{}

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "hi"}, emitter); err == nil {
		t.Fatal("expected error when the completion stream cannot open")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("no events should be emitted, got %v", emitter.events)
	}
}

func TestSubmitUpstreamErrorBeforeHeaderSurfaced(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{
		chunks: []string{"<METADATA>\naction: idle"},
		err:    errors.New("connection reset"),
	}}
	pipeline, _ := newPipeline(t, completer, nil)
	emitter := &stubEmitter{}

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "hi"}, emitter); err == nil {
		t.Fatal("expected error for upstream failure before the header")
	}
	if len(emitter.events) != 0 {
		t.Fatalf("no events should be emitted, got %v", emitter.events)
	}
}

func TestSubmitUpstreamErrorAfterHeaderEndsSilently(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{
		chunks: []string{"<METADATA>\naction: talking\n</METADATA>\npartial"},
		err:    errors.New("connection reset"),
	}}
	pipeline, _ := newPipeline(t, completer, nil)
	emitter := &stubEmitter{}

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "hi"}, emitter); err != nil {
		t.Fatalf("mid-stream abort must not surface an error, got %v", err)
	}
	if emitter.doneSent {
		t.Fatal("aborted stream must not send the completion sentinel")
	}
	if !completer.stream.closed {
		t.Fatal("upstream stream must be closed on abort")
	}
}

func TestSubmitClientWriteFailureStopsForwarding(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{chunks: []string{safetyReply, " more", " text"}}}
	pipeline, _ := newPipeline(t, completer, nil)
	emitter := &stubEmitter{textErr: errors.New("client gone")}

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "hi"}, emitter); err != nil {
		t.Fatalf("client disconnect after header must not error, got %v", err)
	}
	if !completer.stream.closed {
		t.Fatal("upstream stream must be cancelled when the client goes away")
	}
}

func TestSubmitNoHeaderDegradesToPlainText(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{chunks: []string{"plain ", "text reply"}}}
	pipeline, st := newPipeline(t, completer, nil)
	emitter := &stubEmitter{}

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "hi"}, emitter); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	for _, ev := range emitter.events {
		if ev.kind == "header" {
			t.Fatal("no header event expected for a plain-text reply")
		}
	}
	if got := emitter.concatText(); got != "plain text reply" {
		t.Fatalf("text: %q", got)
	}
	if !emitter.doneSent {
		t.Fatal("expected completion sentinel")
	}

	convs, _ := st.Conversations().ListByUser(context.Background(), "u1", "")
	msgs, _ := st.Messages().ListByConversation(context.Background(), convs[0].ID, 0)
	assistant := msgs[len(msgs)-1]
	if assistant.Emotion != DefaultEmotion || assistant.Action != DefaultAction {
		t.Fatalf("headerless reply should carry defaults: %+v", assistant)
	}
}

func TestSubmitCurrentMessageExcludedFromOwnContext(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{chunks: []string{safetyReply}}}
	pipeline, st := newPipeline(t, completer, nil)

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "first message"}, &stubEmitter{}); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if len(completer.gotHistory) != 0 {
		t.Fatalf("first turn must see empty history, got %v", completer.gotHistory)
	}

	convs, _ := st.Conversations().ListByUser(context.Background(), "u1", "")
	completer.stream = &stubStream{chunks: []string{safetyReply}}
	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", ConversationID: convs[0].ID, Text: "second message"}, &stubEmitter{}); err != nil {
		t.Fatalf("second Submit err: %v", err)
	}
	for _, msg := range completer.gotHistory {
		if msg.Text == "second message" {
			t.Fatal("current message leaked into its own context")
		}
	}
	if len(completer.gotHistory) != 2 {
		t.Fatalf("second turn should see the first exchange, got %d messages", len(completer.gotHistory))
	}
}

func TestSubmitVoiceMessageRefined(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{chunks: []string{safetyReply}}}
	pipeline, _ := newPipeline(t, completer, upperRefiner{})

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "hello there", Voice: true}, &stubEmitter{}); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if completer.gotMessage != "HELLO THERE" {
		t.Fatalf("refined transcript not used: %q", completer.gotMessage)
	}
}

func TestSubmitTriggersConsolidation(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{chunks: []string{safetyReply}}}
	pipeline, st := newPipeline(t, completer, nil)

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Topic: "Study", Text: "hi"}, &stubEmitter{}); err != nil {
		t.Fatalf("Submit err: %v", err)
	}

	key := memorymodel.Key{UserID: "u1", Topic: "Study"}
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if rec, err := st.Memories().Get(context.Background(), key); err == nil {
			if rec.Summary != "sum" || len(rec.Facts) != 1 {
				t.Fatalf("dossier: %+v", rec)
			}
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("consolidation never persisted a dossier")
}

func TestSubmitServesDossierFromCache(t *testing.T) {
	completer := &stubCompleter{stream: &stubStream{chunks: []string{safetyReply}}}
	st := store.NewMemStore()
	cache := memsvc.NewCache(time.Minute)
	sessions := session.NewManager(st.Conversations(), st.Messages(), 10)
	monitor := safetysvc.NewMonitor(st.Alerts())
	consolidator := memsvc.NewConsolidator(st.Memories(), cache, &stubSummarizer{reply: `{}`})
	pipeline := NewPipeline(sessions, cache, st.Memories(), monitor, consolidator, completer, nil)

	key := memorymodel.Key{UserID: "u1", Topic: "General"}
	cache.Put(key, memorymodel.Record{UserID: "u1", Topic: "General", Summary: "cached summary"})

	if err := pipeline.Submit(context.Background(), Request{UserID: "u1", Text: "hi"}, &stubEmitter{}); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	if completer.gotDossier == nil || completer.gotDossier.Summary != "cached summary" {
		t.Fatalf("cached dossier not used: %+v", completer.gotDossier)
	}
}
