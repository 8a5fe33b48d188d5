package sentiment

import "testing"

func TestAnalyze(t *testing.T) {
	cases := []struct {
		text string
		want Label
	}{
		{"", Neutral},
		{"what time is it", Neutral},
		{"thank you so much, that was wonderful", Happy},
		{"I feel so lonely and hopeless", Sad},
		{"I'm furious, this is so unfair", Angry},
		{"no way, I can't believe it", Surprised},
		{"I'm so excited, I can't wait!!", Excited},
	}

	for _, tc := range cases {
		if got := Analyze(tc.text); got != tc.want {
			t.Fatalf("Analyze(%q) = %s, want %s", tc.text, got, tc.want)
		}
	}
}
