package pipeline

import (
	"fmt"
	"strings"
)

// Prompt construction is deliberately template-free string assembly: the
// output must be byte-for-byte deterministic for identical inputs, and the
// passage numbering embedded here is the only citation vocabulary the model
// is allowed to use. Any size budgeting happens before these functions are
// called; they never truncate.

const chatSystemPrompt = `You are a research assistant. Answer questions using ONLY the provided context. Cite sources with (1), (2), etc. If insufficient information, say so. Be concise and factual. Write in plain text.`

const briefingSystemPrompt = `You are a research analyst. Create structured briefing reports with key insights, risks, and action items.`

// BuildChatPrompts renders the system and user instructions for a question
// against the assembled passages.
func BuildChatPrompts(question string, passages []Passage) (system, user string) {
	user = fmt.Sprintf("Question: %s\n\nContext:\n%s\n\nAnswer:", question, renderPassages(passages))
	return chatSystemPrompt, user
}

// BuildBriefingPrompts renders the briefing instructions. Prior exchanges are
// interleaved ahead of the passage block as Q{n}/A{n} pairs, and the
// instruction fixes the five-part report skeleton the section parser keys
// on.
func BuildBriefingPrompts(exchanges []Exchange, passages []Passage) (system, user string) {
	pairs := make([]string, 0, len(exchanges))
	for i, ex := range exchanges {
		pairs = append(pairs, fmt.Sprintf("Q%d: %s\nA%d: %s", i+1, ex.Question, i+1, ex.Answer))
	}

	user = fmt.Sprintf("Create a briefing report based on:\n\nQ&A: %s\n\nContext: %s\n\nFormat: 1. Overview 2. Key Insights 3. Risks 4. Action Items 5. Sources",
		strings.Join(pairs, "\n\n"), renderPassages(passages))
	return briefingSystemPrompt, user
}

// renderPassages numbers passages 1..N in assembler order, the same order
// used when decoding citation markers.
func renderPassages(passages []Passage) string {
	blocks := make([]string, 0, len(passages))
	for i, p := range passages {
		blocks = append(blocks, fmt.Sprintf("[%d] %s", i+1, p.Text))
	}
	return strings.Join(blocks, "\n\n")
}
