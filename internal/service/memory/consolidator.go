package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/auralabs/aura/backend/internal/model/chat"
	memorymodel "github.com/auralabs/aura/backend/internal/model/memory"
	"github.com/auralabs/aura/backend/internal/store"
)

// ErrUnparseableSummary marks a summarizer reply that is not valid JSON even
// after the bounded wrapper cleanup.
var ErrUnparseableSummary = errors.New("memory: summarizer reply is not valid JSON")

// consolidateTimeout bounds one background consolidation run.
const consolidateTimeout = 60 * time.Second

// Summarizer merges a dossier with a recent exchange and returns the model's
// raw reply, expected to be a JSON object with updated_summary,
// emotional_state and new_facts.
type Summarizer interface {
	Summarize(ctx context.Context, current memorymodel.Record, exchange []chat.Message) (string, error)
}

// Consolidator folds completed exchanges into the long-term dossier. It runs
// after the main reply is delivered and its failures never reach the caller.
type Consolidator struct {
	memories   store.MemoryStore
	cache      *Cache
	summarizer Summarizer
}

// NewConsolidator wires the consolidation worker.
func NewConsolidator(memories store.MemoryStore, cache *Cache, summarizer Summarizer) *Consolidator {
	return &Consolidator{
		memories:   memories,
		cache:      cache,
		summarizer: summarizer,
	}
}

type consolidationPayload struct {
	UpdatedSummary string   `json:"updated_summary"`
	EmotionalState string   `json:"emotional_state"`
	NewFacts       []string `json:"new_facts"`
}

// Consolidate loads the dossier, asks the summarizer to merge the exchange
// in, and persists the result. On any failure the stored record is left
// untouched.
func (c *Consolidator) Consolidate(ctx context.Context, userID, topic string, exchange []chat.Message) (memorymodel.Record, error) {
	key := memorymodel.Key{UserID: userID, Topic: topic}

	rec, err := c.memories.Get(ctx, key)
	if errors.Is(err, store.ErrNotFound) {
		rec = memorymodel.NewRecord(key)
	} else if err != nil {
		return memorymodel.Record{}, fmt.Errorf("failed to load dossier: %w", err)
	}

	raw, err := c.summarizer.Summarize(ctx, rec, exchange)
	if err != nil {
		return memorymodel.Record{}, fmt.Errorf("summarizer call failed: %w", err)
	}

	payload, err := parseConsolidation(raw)
	if err != nil {
		return memorymodel.Record{}, err
	}

	if s := strings.TrimSpace(payload.UpdatedSummary); s != "" {
		rec.Summary = clampRunes(s, memorymodel.SummaryMaxRunes)
	}
	if s := strings.TrimSpace(payload.EmotionalState); s != "" {
		rec.EmotionalState = s
	}
	for _, fact := range payload.NewFacts {
		fact = strings.TrimSpace(fact)
		if fact == "" {
			continue
		}
		rec.AddFact(fact)
	}
	rec.LastUpdated = time.Now().UTC()

	if err := c.memories.Upsert(ctx, rec); err != nil {
		return memorymodel.Record{}, fmt.Errorf("failed to persist dossier: %w", err)
	}
	c.cache.Put(key, rec)
	return rec, nil
}

// ConsolidateAsync runs Consolidate on a detached background goroutine with
// its own timeout and panic boundary. Once started it is independent of the
// request that triggered it.
func (c *Consolidator) ConsolidateAsync(userID, topic string, exchange []chat.Message) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("[memory] consolidation panic for user=%s topic=%s: %v", userID, topic, r)
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), consolidateTimeout)
		defer cancel()

		if _, err := c.Consolidate(ctx, userID, topic, exchange); err != nil {
			log.Printf("[memory] consolidation failed for user=%s topic=%s: %v", userID, topic, err)
			return
		}
		log.Printf("[memory] consolidated dossier for user=%s topic=%s", userID, topic)
	}()
}

// parseConsolidation parses the summarizer reply: a strict JSON parse first,
// then one retry with known wrapper markers stripped.
func parseConsolidation(raw string) (consolidationPayload, error) {
	var payload consolidationPayload
	if err := json.Unmarshal([]byte(raw), &payload); err == nil {
		return payload, nil
	}

	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)
	if err := json.Unmarshal([]byte(cleaned), &payload); err != nil {
		return consolidationPayload{}, fmt.Errorf("%w: %v", ErrUnparseableSummary, err)
	}
	return payload, nil
}

func clampRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
