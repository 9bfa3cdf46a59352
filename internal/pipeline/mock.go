package pipeline

import (
	"context"
	"fmt"
	"time"
)

// Mock mode bypasses the completion gateway and returns canned,
// template-filled text after a simulated delay. Used for UI testing and as a
// user-triggered fallback when the real call fails. The canned answers carry
// in-range citation markers so the parsing stages exercise their real paths.

const mockDelay = 600 * time.Millisecond

func mockChatAnswer(ctx context.Context, question string, passages []Passage) (string, error) {
	if err := sleepCtx(ctx, mockDelay); err != nil {
		return "", err
	}
	title := "your content"
	if len(passages) > 0 {
		title = passages[0].Source.DocumentTitle
	}
	answer := fmt.Sprintf(
		"This is a mock answer to: %s\n\nBased on the supplied context, the most relevant material comes from %s (1). Mock mode does not call any model; it exists so the rest of the pipeline can be exercised offline.\n\nWould you like to ask about another part of %s?",
		question, title, title)
	return answer, nil
}

func mockBriefingAnswer(ctx context.Context, passages []Passage) (string, error) {
	if err := sleepCtx(ctx, mockDelay); err != nil {
		return "", err
	}
	count := len(passages)
	answer := fmt.Sprintf(`1. **Overview**
This is a mock briefing generated without a model call, covering %d source passage(s) [1].

2. **Key Insights**
Mock mode produces deterministic output so section parsing and citation recovery can be tested offline [1].

3. **Risks**
None identified in mock mode.

4. **Action Items**
Switch to a real model to generate an actual briefing.

5. **Sources**
All numbered references resolve against the supplied passages [1].`, count)
	return answer, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
