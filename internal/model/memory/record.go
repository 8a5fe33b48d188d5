package memory

import "time"

// SummaryMaxRunes hard-bounds the stored dossier summary regardless of what
// the summarization model returns.
const SummaryMaxRunes = 1200

// Key identifies one long-term memory dossier: a user within one topic.
type Key struct {
	UserID string `json:"userId"`
	Topic  string `json:"topic"`
}

// Record is the long-term memory dossier for one (user, topic) pair.
type Record struct {
	UserID         string    `json:"userId"`
	Topic          string    `json:"topic"`
	Summary        string    `json:"summary"`
	EmotionalState string    `json:"emotionalState"`
	Facts          []string  `json:"facts"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

// NewRecord returns an empty dossier for the given key.
func NewRecord(key Key) Record {
	return Record{
		UserID:         key.UserID,
		Topic:          key.Topic,
		EmotionalState: "Neutral",
	}
}

// Key returns the composite key of the record.
func (r Record) Key() Key {
	return Key{UserID: r.UserID, Topic: r.Topic}
}

// AddFact appends a fact unless an identical string is already present.
// Reports whether the fact was added.
func (r *Record) AddFact(fact string) bool {
	for _, f := range r.Facts {
		if f == fact {
			return false
		}
	}
	r.Facts = append(r.Facts, fact)
	return true
}
