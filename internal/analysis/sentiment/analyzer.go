// Package sentiment provides a local keyword-based emotion scorer. It tags
// the user's own messages at persist time without an extra model call.
package sentiment

import "strings"

// Label is an emotion tag from the avatar vocabulary.
type Label string

const (
	Neutral   Label = "neutral"
	Happy     Label = "happy"
	Sad       Label = "sad"
	Angry     Label = "angry"
	Surprised Label = "surprised"
	Excited   Label = "excited"
)

var keywordBuckets = map[Label][]string{
	Happy: {
		"happy", "glad", "great", "thanks", "thank you", "love", "awesome",
		"wonderful", "nice", "haha", "lol", ":)",
	},
	Sad: {
		"sad", "unhappy", "depressed", "cry", "crying", "lonely", "miss",
		"hurt", "hopeless", "tired of", "can't go on", "give up",
	},
	Angry: {
		"angry", "furious", "mad", "hate", "annoyed", "fed up", "pissed",
		"rage", "unfair",
	},
	Surprised: {
		"what?!", "no way", "really?", "unbelievable", "can't believe",
		"shocked", "whoa", "wow",
	},
	Excited: {
		"excited", "can't wait", "amazing", "incredible", "finally",
		"let's go", "hyped", "yes!",
	},
}

var punctuationBoost = map[Label]int{
	Happy:   2,
	Excited: 3,
}

// Analyze infers the dominant emotion of a user message. Returns Neutral
// when nothing scores.
func Analyze(text string) Label {
	normalized := strings.TrimSpace(strings.ToLower(text))
	if normalized == "" {
		return Neutral
	}

	scores := make(map[Label]int)
	for label, keywords := range keywordBuckets {
		for _, word := range keywords {
			if strings.Contains(normalized, word) {
				scores[label] += 3
			}
		}
	}

	exclamations := strings.Count(text, "!")
	if exclamations > 0 {
		scores[Excited] += exclamations * punctuationBoost[Excited]
		if exclamations == 1 {
			scores[Happy] += punctuationBoost[Happy]
		}
	}

	best := Neutral
	bestScore := 0
	for label, score := range scores {
		if score > bestScore {
			bestScore = score
			best = label
		}
	}
	return best
}
