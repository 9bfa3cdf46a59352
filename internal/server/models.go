package server

import (
	"github.com/mohammad-safakhou/companion/internal/pipeline"
)

// Wire shapes for the operation endpoints. Field names follow the public
// JSON contract.

type askRequest struct {
	Question     string                      `json:"question"`
	Context      []pipeline.Passage          `json:"context"`
	CollectionID string                      `json:"collectionId"`
	Model        string                      `json:"model"`
	Settings     *pipeline.RetrievalSettings `json:"settings,omitempty"`
}

type briefingRequest struct {
	CollectionID      string              `json:"collectionId"`
	Exchanges         []pipeline.Exchange `json:"exchanges"`
	RetrievedPassages []pipeline.Passage  `json:"retrievedPassages"`
	Model             string              `json:"model"`
}

type extractRequest struct {
	URL string `json:"url"`
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// streamFrame is one SSE payload: either an incremental chunk or the final
// parsed response.
type streamFrame struct {
	Chunk    string               `json:"chunk,omitempty"`
	Response *pipeline.AIResponse `json:"response,omitempty"`
}
