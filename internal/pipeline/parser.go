package pipeline

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// The model is not a cooperating component: these routines recover structure
// from free text with documented fallbacks and never fail. Each is a pure
// function of its input.

// citationRe matches one or more digits enclosed in square or round
// brackets, the only citation vocabulary the prompt permits.
var citationRe = regexp.MustCompile(`[\[(](\d+)[\])]`)

// headingRe matches a numbered, bold-titled section heading. Text after the
// closing ** on the same line belongs to the section body.
var headingRe = regexp.MustCompile(`^\s*\d+\.\s*\*\*([^*]+)\*\*:?\s*(.*)$`)

// ExtractCitations scans answer text left-to-right for citation markers and
// resolves each enclosed integer as a 1-based passage index. Out-of-range
// references are silently dropped; repeated references each produce their
// own record. Location offsets point at the literal marker within text.
func ExtractCitations(text string, passages []Passage) []Citation {
	var citations []Citation
	for _, m := range citationRe.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || n < 1 || n > len(passages) {
			continue
		}
		p := passages[n-1]
		citations = append(citations, Citation{
			ID:         fmt.Sprintf("citation-%d", n-1),
			ChunkID:    p.ID,
			DocumentID: p.Source.DocumentID,
			Text:       p.Text,
			Score:      p.Score,
			Page:       p.Source.Page,
			Location:   Location{Start: m[0], End: m[1]},
		})
	}
	return citations
}

// extractCitationRefs is the briefing flavor: same marker scan and range
// rule, but records carry only an id (appearance ordinal) and location.
// Offsets are relative to the scanned text, which for sections is the
// section body.
func extractCitationRefs(text string, passageCount int) []Citation {
	var citations []Citation
	for _, m := range citationRe.FindAllStringSubmatchIndex(text, -1) {
		n, err := strconv.Atoi(text[m[2]:m[3]])
		if err != nil || n < 1 || n > passageCount {
			continue
		}
		citations = append(citations, Citation{
			ID:       fmt.Sprintf("citation-%d", len(citations)),
			Location: Location{Start: m[0], End: m[1]},
		})
	}
	return citations
}

// ExtractSections recovers the briefing report structure from raw model
// output. Boundaries are numbered bold headings; everything up to the next
// heading is the body of the most recent one. When no heading is found the
// whole text becomes a single overview section, so the result is never
// empty.
func ExtractSections(text string, passageCount int) []BriefingSection {
	var sections []BriefingSection
	var title string
	var body []string
	started := false

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if title == "" && content == "" {
			return
		}
		sections = append(sections, BriefingSection{
			ID:        fmt.Sprintf("section-%d", len(sections)),
			Type:      classifySection(title),
			Title:     title,
			Content:   content,
			Citations: extractCitationRefs(content, passageCount),
			Order:     len(sections),
		})
	}

	for _, line := range strings.Split(text, "\n") {
		if m := headingRe.FindStringSubmatch(line); m != nil {
			flush()
			title = strings.TrimSpace(m[1])
			body = body[:0]
			started = true
			if rest := strings.TrimSpace(m[2]); rest != "" {
				body = append(body, rest)
			}
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(sections) == 0 || !started {
		content := strings.TrimSpace(text)
		return []BriefingSection{{
			ID:        "section-0",
			Type:      SectionOverview,
			Title:     "Overview",
			Content:   content,
			Citations: extractCitationRefs(content, passageCount),
			Order:     0,
		}}
	}
	return sections
}

// classifySection maps a heading title onto the fixed section taxonomy by
// case-insensitive keyword match.
func classifySection(title string) SectionType {
	t := strings.ToLower(title)
	switch {
	case strings.Contains(t, "overview"), strings.Contains(t, "summary"):
		return SectionOverview
	case strings.Contains(t, "insight"):
		return SectionKeyInsights
	case strings.Contains(t, "risk"):
		return SectionRisks
	case strings.Contains(t, "action"), strings.Contains(t, "recommendation"):
		return SectionActionItems
	case strings.Contains(t, "source"):
		return SectionSources
	default:
		return SectionCustom
	}
}

// ExtractFollowUpQuestions picks up to three question-like lines from the
// answer. Heuristic only.
func ExtractFollowUpQuestions(text string) []string {
	var questions []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasSuffix(trimmed, "?") && len(trimmed) > 10 {
			questions = append(questions, trimmed)
			if len(questions) == 3 {
				break
			}
		}
	}
	return questions
}

var (
	mdHeader     = regexp.MustCompile(`(?m)^(?:#{1,6}\s+)+`)
	mdBold       = regexp.MustCompile(`\*\*(.*?)\*\*`)
	mdBoldUnder  = regexp.MustCompile(`__(.*?)__`)
	mdItalic     = regexp.MustCompile(`\*(.*?)\*`)
	mdItalicUnd  = regexp.MustCompile(`_(.*?)_`)
	mdCodeFence  = regexp.MustCompile("(?s)```.*?```")
	mdInlineCode = regexp.MustCompile("`([^`]+)`")
	mdHRule      = regexp.MustCompile(`(?m)^---$`)
	mdBullet     = regexp.MustCompile(`(?m)^[ \t]*[-*+][ \t]+`)
	mdOrdered    = regexp.MustCompile(`(?m)^[ \t]*(?:\d+\.[ \t]+)+`)
	mdQuote      = regexp.MustCompile(`(?m)^(?:>[ \t]+)+`)
	mdBlankRuns  = regexp.MustCompile(`\n[ \t]*\n(?:[ \t]*\n)+`)
)

// NormalizeMarkdown strips markdown formatting the model emits despite the
// plain-text instruction, so citation offsets computed afterwards are valid
// against the displayed text. The passes repeat until the text stops
// changing, which makes the whole function idempotent. Every pass either
// shortens the text or leaves it untouched and no rewrite reintroduces a
// marker, so the loop always terminates.
func NormalizeMarkdown(text string) string {
	for {
		next := normalizeOnce(text)
		if next == text {
			return text
		}
		text = next
	}
}

func normalizeOnce(text string) string {
	text = mdCodeFence.ReplaceAllString(text, "")
	text = mdHeader.ReplaceAllString(text, "")
	text = mdBold.ReplaceAllString(text, "$1")
	text = mdBoldUnder.ReplaceAllString(text, "$1")
	text = mdItalic.ReplaceAllString(text, "$1")
	text = mdItalicUnd.ReplaceAllString(text, "$1")
	text = mdInlineCode.ReplaceAllString(text, "$1")
	text = mdHRule.ReplaceAllString(text, "")
	text = mdBullet.ReplaceAllString(text, "• ")
	text = mdOrdered.ReplaceAllString(text, "")
	text = mdQuote.ReplaceAllString(text, "")
	text = mdBlankRuns.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}
