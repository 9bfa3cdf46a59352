package pipeline

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ContentItem is one entry of the user's working set after text extraction:
// the raw text plus whatever metadata the extraction collaborator yielded.
type ContentItem struct {
	ID       string          `json:"id"`
	Text     string          `json:"text"`
	Metadata ContentMetadata `json:"metadata"`
}

// ContentMetadata mirrors the extraction collaborator's output. All fields
// are optional.
type ContentMetadata struct {
	CustomName string `json:"customName,omitempty"`
	Filename   string `json:"filename,omitempty"`
	Title      string `json:"title,omitempty"`
	Summary    string `json:"summary,omitempty"`
	Page       *int   `json:"page,omitempty"`
}

// BuildPassages turns the current content list into passages, one per item,
// in list order. Every passage carries score 1.0: without a semantic index
// the working set is flat and unranked. Passage i (1-based) corresponds to
// content item i-1; that positional identity is what citation decoding
// relies on later.
func BuildPassages(items []ContentItem) []Passage {
	passages := make([]Passage, 0, len(items))
	for i, item := range items {
		id := item.ID
		if id == "" {
			id = fmt.Sprintf("content-%d", i+1)
		}
		passages = append(passages, Passage{
			ID:   id,
			Text: item.Text,
			Source: PassageSource{
				DocumentID:    id,
				DocumentTitle: resolveTitle(item, i),
				ChunkID:       id,
				Page:          item.Metadata.Page,
			},
			Score: 1.0,
		})
	}
	return passages
}

// resolveTitle picks a document title by priority: the user's custom name,
// then the filename, then the URL extraction title or summary, then a
// generic fallback.
func resolveTitle(item ContentItem, index int) string {
	if name := strings.TrimSpace(item.Metadata.CustomName); name != "" {
		return name
	}
	if name := strings.TrimSpace(item.Metadata.Filename); name != "" {
		return name
	}
	if name := strings.TrimSpace(item.Metadata.Title); name != "" {
		return name
	}
	if name := strings.TrimSpace(item.Metadata.Summary); name != "" {
		return name
	}
	return fmt.Sprintf("Content %d", index+1)
}

// ChunkPassages splits oversized passages into multiple passages of at most
// size bytes with the given overlap, preserving presentation order so the
// positional numbering invariant still holds after splitting. Cut points are
// backed off to rune boundaries so every chunk is valid UTF-8. Passages
// already within budget pass through untouched. size <= 0 disables
// splitting.
func ChunkPassages(passages []Passage, size, overlap int) []Passage {
	if size <= 0 {
		return passages
	}
	if overlap < 0 || overlap >= size {
		overlap = 0
	}
	out := make([]Passage, 0, len(passages))
	for _, p := range passages {
		if len(p.Text) <= size {
			out = append(out, p)
			continue
		}
		step := size - overlap
		for n, start := 0, 0; start < len(p.Text); n++ {
			end := start + size
			if end >= len(p.Text) {
				end = len(p.Text)
			} else {
				end = runeStart(p.Text, end)
				if end <= start {
					_, w := utf8.DecodeRuneInString(p.Text[start:])
					end = start + w
				}
			}
			chunk := p
			chunk.ID = fmt.Sprintf("%s#%d", p.ID, n)
			chunk.Text = p.Text[start:end]
			chunk.Source.ChunkID = chunk.ID
			out = append(out, chunk)
			if end == len(p.Text) {
				break
			}
			next := runeStart(p.Text, start+step)
			if next <= start {
				next = end
			}
			start = next
		}
	}
	return out
}

// runeStart backs i off to the nearest rune boundary at or before it.
func runeStart(s string, i int) int {
	for i > 0 && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
