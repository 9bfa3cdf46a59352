package pipeline

import (
	"strings"
	"testing"
)

func TestBuildChatPromptsRendering(t *testing.T) {
	t.Parallel()
	passages := []Passage{
		{ID: "c1", Text: "Revenue grew 12%."},
		{ID: "c2", Text: "Margins held steady."},
	}

	system, user := BuildChatPrompts("How did Q1 go?", passages)
	if !strings.Contains(system, "ONLY the provided context") {
		t.Fatalf("unexpected system prompt: %q", system)
	}
	want := "Question: How did Q1 go?\n\nContext:\n[1] Revenue grew 12%.\n\n[2] Margins held steady.\n\nAnswer:"
	if user != want {
		t.Fatalf("user prompt mismatch:\n got %q\nwant %q", user, want)
	}
}

func TestBuildChatPromptsDeterministic(t *testing.T) {
	t.Parallel()
	passages := samplePassages(3)
	s1, u1 := BuildChatPrompts("same question", passages)
	s2, u2 := BuildChatPrompts("same question", passages)
	if s1 != s2 || u1 != u2 {
		t.Fatalf("prompt construction must be deterministic")
	}
}

func TestBuildBriefingPrompts(t *testing.T) {
	t.Parallel()
	exchanges := []Exchange{
		{Question: "What happened?", Answer: "Revenue grew."},
		{Question: "Any risks?", Answer: "Currency exposure."},
	}
	passages := []Passage{{ID: "c1", Text: "Q1 revenue was up 12% YoY."}}

	system, user := BuildBriefingPrompts(exchanges, passages)
	if !strings.Contains(system, "research analyst") {
		t.Fatalf("unexpected system prompt: %q", system)
	}
	for _, want := range []string{
		"Create a briefing report based on:",
		"Q1: What happened?\nA1: Revenue grew.",
		"Q2: Any risks?\nA2: Currency exposure.",
		"[1] Q1 revenue was up 12% YoY.",
		"Format: 1. Overview 2. Key Insights 3. Risks 4. Action Items 5. Sources",
	} {
		if !strings.Contains(user, want) {
			t.Fatalf("briefing prompt missing %q:\n%s", want, user)
		}
	}
}

func TestEstimateTokens(t *testing.T) {
	t.Parallel()
	cases := []struct {
		text string
		want int
	}{
		{"", 0},
		{"a", 1},
		{"abcd", 1},
		{"abcde", 2},
		{strings.Repeat("x", 400), 100},
	}
	for _, c := range cases {
		if got := EstimateTokens(c.text); got != c.want {
			t.Fatalf("EstimateTokens(%d chars) = %d, want %d", len(c.text), got, c.want)
		}
	}
}
