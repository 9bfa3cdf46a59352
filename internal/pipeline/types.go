package pipeline

// Passage is a scored, sourced unit of text offered to the model as evidence.
// Passages are created fresh per request and never mutated.
type Passage struct {
	ID     string        `json:"id"`
	Text   string        `json:"text"`
	Source PassageSource `json:"source"`
	Score  float64       `json:"score"`
}

// PassageSource carries enough to resolve a passage back to its origin.
type PassageSource struct {
	DocumentID    string `json:"documentId"`
	DocumentTitle string `json:"documentTitle"`
	ChunkID       string `json:"chunkId"`
	Page          *int   `json:"page,omitempty"`
}

// Location is a half-open character span within answer text. For section
// citations the offsets are relative to the section body, not the full
// answer.
type Location struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Citation is a recovered reference from model output back to a Passage. The
// chunk/document/text/score fields are denormalized copies resolved at parse
// time for chat answers; briefing section citations carry only id and
// location.
type Citation struct {
	ID         string   `json:"id"`
	ChunkID    string   `json:"chunkId,omitempty"`
	DocumentID string   `json:"documentId,omitempty"`
	Text       string   `json:"text,omitempty"`
	Score      float64  `json:"score,omitempty"`
	Page       *int     `json:"page,omitempty"`
	Location   Location `json:"location"`
}

// SectionType is the closed taxonomy for briefing sections.
type SectionType string

const (
	SectionOverview    SectionType = "overview"
	SectionKeyInsights SectionType = "key-insights"
	SectionRisks       SectionType = "risks"
	SectionActionItems SectionType = "action-items"
	SectionSources     SectionType = "sources"
	SectionCustom      SectionType = "custom"
)

// BriefingSection is a titled slice of a generated report.
type BriefingSection struct {
	ID        string      `json:"id"`
	Type      SectionType `json:"type"`
	Title     string      `json:"title"`
	Content   string      `json:"content"`
	Citations []Citation  `json:"citations"`
	Order     int         `json:"order"`
}

// Exchange is one prior question/answer pair interleaved into briefing
// prompts.
type Exchange struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// ResponseMetadata carries timing and a token estimate. Tokens is
// ceil(chars/4), not an authoritative count from the completion service.
type ResponseMetadata struct {
	Model          string `json:"model"`
	Tokens         int    `json:"tokens"`
	ProcessingTime int64  `json:"processingTime"`
}

// AIResponse is the structured pipeline output. Sections is populated for
// briefings only.
type AIResponse struct {
	Answer            string            `json:"answer"`
	Citations         []Citation        `json:"citations"`
	FollowUpQuestions []string          `json:"followUpQuestions"`
	Sections          []BriefingSection `json:"sections,omitempty"`
	Metadata          ResponseMetadata  `json:"metadata"`
}

// RetrievalSettings tune passage selection for one request. Zero values mean
// "keep the flat, unranked behavior".
type RetrievalSettings struct {
	TopK           int     `json:"topK,omitempty"`
	ScoreThreshold float64 `json:"scoreThreshold,omitempty"`
	UseMMR         bool    `json:"useMMR,omitempty"`
	ChunkSize      int     `json:"chunkSize,omitempty"`
	OverlapSize    int     `json:"overlapSize,omitempty"`
}

// EstimateTokens approximates token usage as one token per four characters.
func EstimateTokens(text string) int {
	return (len(text) + 3) / 4
}
