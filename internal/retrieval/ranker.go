// Package retrieval scores passages against a question using an in-memory
// BM25 index. It is the optional replacement for the flat 1.0 relevance
// placeholder: callers opt in per request via retrieval settings.
package retrieval

import (
	"fmt"
	"strconv"

	"github.com/blevesearch/bleve"

	"github.com/mohammad-safakhou/companion/internal/pipeline"
)

// BleveRanker builds a throwaway memory-only index per call. Working sets
// are small (one passage per content item), so indexing cost is negligible
// next to the model call.
type BleveRanker struct{}

func NewBleveRanker() *BleveRanker { return &BleveRanker{} }

type indexedPassage struct {
	Text  string `json:"text"`
	Title string `json:"title"`
}

// Rank returns at most topK passages ordered by BM25 relevance to the
// question, with scores normalized into [0,1] and hits below threshold
// dropped. When nothing matches, the original flat list is returned so the
// caller never loses its working set to an overly strict query.
func (r *BleveRanker) Rank(question string, passages []pipeline.Passage, topK int, threshold float64) ([]pipeline.Passage, error) {
	if len(passages) == 0 || topK <= 0 {
		return passages, nil
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("create index: %w", err)
	}
	defer index.Close()

	for i, p := range passages {
		doc := indexedPassage{Text: p.Text, Title: p.Source.DocumentTitle}
		if err := index.Index(strconv.Itoa(i), doc); err != nil {
			return nil, fmt.Errorf("index passage %d: %w", i, err)
		}
	}

	query := bleve.NewQueryStringQuery(question)
	searchReq := bleve.NewSearchRequestOptions(query, topK, 0, false)
	res, err := index.Search(searchReq)
	if err != nil {
		return nil, fmt.Errorf("search: %w", err)
	}
	if len(res.Hits) == 0 {
		return passages, nil
	}

	maxScore := res.Hits[0].Score
	for _, hit := range res.Hits {
		if hit.Score > maxScore {
			maxScore = hit.Score
		}
	}

	ranked := make([]pipeline.Passage, 0, len(res.Hits))
	for _, hit := range res.Hits {
		i, err := strconv.Atoi(hit.ID)
		if err != nil || i < 0 || i >= len(passages) {
			continue
		}
		score := 1.0
		if maxScore > 0 {
			score = hit.Score / maxScore
		}
		if score < threshold {
			continue
		}
		p := passages[i]
		p.Score = score
		ranked = append(ranked, p)
	}
	if len(ranked) == 0 {
		return passages, nil
	}
	return ranked, nil
}
