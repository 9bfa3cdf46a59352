package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/companion/config"
	"github.com/mohammad-safakhou/companion/internal/provider"
	"github.com/mohammad-safakhou/companion/internal/telemetry"
)

// ErrNoContext is returned when an operation is invoked with an empty
// passage list; the model is never called in that case.
var ErrNoContext = errors.New("no content available: add documents or URLs first")

// Ranker reorders and filters passages by relevance to a question. A nil
// ranker keeps the flat, unranked presentation order.
type Ranker interface {
	Rank(question string, passages []Passage, topK int, threshold float64) ([]Passage, error)
}

// AskRequest is one question against the current working set. Model is an
// explicit per-request parameter, never ambient state.
type AskRequest struct {
	Question     string
	Passages     []Passage
	CollectionID string
	Model        string
	Settings     *RetrievalSettings
}

// BriefingRequest generates a structured report from passages and prior
// exchanges.
type BriefingRequest struct {
	CollectionID string
	Exchanges    []Exchange
	Passages     []Passage
	Model        string
}

// TokenBudget is the advisory prompt-size check result.
type TokenBudget struct {
	WithinLimits    bool `json:"withinLimits"`
	EstimatedTokens int  `json:"estimatedTokens"`
	Limit           int  `json:"limit"`
}

// CheckTokenBudget estimates prompt size against the model's context window,
// leaving a 20% buffer. Advisory only; nothing is truncated or rejected.
func CheckTokenBudget(model string, prompt string) TokenBudget {
	estimated := EstimateTokens(prompt)
	limit := provider.ContextWindow(model)
	return TokenBudget{
		WithinLimits:    float64(estimated) < float64(limit)*0.8,
		EstimatedTokens: estimated,
		Limit:           limit,
	}
}

// Orchestrator runs the two pipeline operations end to end: assemble
// passages, render prompts, call the gateway, parse the response. It holds
// no per-request state; concurrent invocations are independent.
type Orchestrator struct {
	cfg       config.LLMConfig
	retrieval config.RetrievalConfig
	completer provider.Completer
	ranker    Ranker
	telemetry *telemetry.Telemetry
	logger    *log.Logger
}

// NewOrchestrator wires the orchestrator. retrievalCfg supplies the passage
// selection defaults applied when a request carries no explicit settings.
// completer must not be nil; ranker and tele may be.
func NewOrchestrator(cfg config.LLMConfig, retrievalCfg config.RetrievalConfig, completer provider.Completer, ranker Ranker, tele *telemetry.Telemetry) *Orchestrator {
	return &Orchestrator{
		cfg:       cfg,
		retrieval: retrievalCfg,
		completer: completer,
		ranker:    ranker,
		telemetry: tele,
		logger:    log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
	}
}

// AskQuestion answers a question against the supplied passages and returns a
// cited, structured response.
func (o *Orchestrator) AskQuestion(ctx context.Context, req AskRequest) (*AIResponse, error) {
	if len(req.Passages) == 0 {
		return nil, ErrNoContext
	}

	passages, err := o.preparePassages(req.Question, req.Passages, req.Settings)
	if err != nil {
		return nil, err
	}

	system, user := BuildChatPrompts(req.Question, passages)
	o.checkBudget(req.Model, system+user)

	start := time.Now()
	result, err := o.complete(ctx, provider.Request{
		System:      system,
		User:        user,
		Model:       req.Model,
		MaxTokens:   o.cfg.ChatMaxTokens,
		Temperature: o.cfg.Temperature,
	}, func(ctx context.Context) (string, error) {
		return mockChatAnswer(ctx, req.Question, passages)
	})
	elapsed := time.Since(start)
	o.telemetry.RecordRequest("ask", req.Model, elapsed, err)
	if err != nil {
		return nil, fmt.Errorf("ask question: %w", err)
	}

	answer := NormalizeMarkdown(result.Text)
	estimated := EstimateTokens(system + user + answer)
	o.telemetry.RecordTokens("ask", result.PromptTokens, result.CompletionTokens, estimated)

	return &AIResponse{
		Answer:            answer,
		Citations:         ExtractCitations(answer, passages),
		FollowUpQuestions: ExtractFollowUpQuestions(answer),
		Metadata: ResponseMetadata{
			Model:          req.Model,
			Tokens:         estimated,
			ProcessingTime: elapsed.Milliseconds(),
		},
	}, nil
}

// AskQuestionStream is the incremental variant of AskQuestion: raw text
// fragments are handed to onChunk as they arrive, and citation/follow-up
// parsing runs once on the fully assembled answer. Completers without
// streaming support degrade to a single fragment.
func (o *Orchestrator) AskQuestionStream(ctx context.Context, req AskRequest, onChunk func(string)) (*AIResponse, error) {
	if len(req.Passages) == 0 {
		return nil, ErrNoContext
	}
	if onChunk == nil {
		onChunk = func(string) {}
	}

	passages, err := o.preparePassages(req.Question, req.Passages, req.Settings)
	if err != nil {
		return nil, err
	}

	system, user := BuildChatPrompts(req.Question, passages)
	o.checkBudget(req.Model, system+user)
	provReq := provider.Request{
		System:      system,
		User:        user,
		Model:       req.Model,
		MaxTokens:   o.cfg.ChatMaxTokens,
		Temperature: o.cfg.Temperature,
	}

	start := time.Now()
	var result provider.Result
	switch {
	case req.Model == provider.MockModel:
		result.Text, err = mockChatAnswer(ctx, req.Question, passages)
		if err == nil {
			onChunk(result.Text)
		}
	default:
		sc, ok := o.completer.(provider.StreamCompleter)
		if !ok {
			result, err = o.completer.Complete(ctx, provReq)
			if err == nil {
				onChunk(result.Text)
			}
			break
		}
		var chunks <-chan string
		var errs <-chan error
		chunks, errs, err = sc.CompleteStream(ctx, provReq)
		if err != nil {
			break
		}
		var assembled strings.Builder
		for chunk := range chunks {
			assembled.WriteString(chunk)
			onChunk(chunk)
		}
		err = <-errs
		result.Text = assembled.String()
	}
	elapsed := time.Since(start)
	o.telemetry.RecordRequest("ask", req.Model, elapsed, err)
	if err != nil {
		return nil, fmt.Errorf("ask question: %w", err)
	}

	answer := NormalizeMarkdown(result.Text)
	estimated := EstimateTokens(system + user + answer)
	o.telemetry.RecordTokens("ask", result.PromptTokens, result.CompletionTokens, estimated)

	return &AIResponse{
		Answer:            answer,
		Citations:         ExtractCitations(answer, passages),
		FollowUpQuestions: ExtractFollowUpQuestions(answer),
		Metadata: ResponseMetadata{
			Model:          req.Model,
			Tokens:         estimated,
			ProcessingTime: elapsed.Milliseconds(),
		},
	}, nil
}

// GenerateBriefing produces a sectioned report from passages and prior
// exchanges.
func (o *Orchestrator) GenerateBriefing(ctx context.Context, req BriefingRequest) (*AIResponse, error) {
	if len(req.Passages) == 0 {
		return nil, ErrNoContext
	}

	system, user := BuildBriefingPrompts(req.Exchanges, req.Passages)
	o.checkBudget(req.Model, system+user)

	start := time.Now()
	result, err := o.complete(ctx, provider.Request{
		System:      system,
		User:        user,
		Model:       req.Model,
		MaxTokens:   o.cfg.BriefingMaxTokens,
		Temperature: o.cfg.Temperature,
	}, func(ctx context.Context) (string, error) {
		return mockBriefingAnswer(ctx, req.Passages)
	})
	elapsed := time.Since(start)
	o.telemetry.RecordRequest("briefing", req.Model, elapsed, err)
	if err != nil {
		return nil, fmt.Errorf("generate briefing: %w", err)
	}

	estimated := EstimateTokens(user + result.Text)
	o.telemetry.RecordTokens("briefing", result.PromptTokens, result.CompletionTokens, estimated)

	return &AIResponse{
		Answer:   result.Text,
		Sections: ExtractSections(result.Text, len(req.Passages)),
		Metadata: ResponseMetadata{
			Model:          req.Model,
			Tokens:         estimated,
			ProcessingTime: elapsed.Milliseconds(),
		},
	}, nil
}

// complete routes through the gateway, or through the canned generator when
// the reserved mock model is selected.
func (o *Orchestrator) complete(ctx context.Context, req provider.Request, mock func(context.Context) (string, error)) (provider.Result, error) {
	if req.Model == provider.MockModel {
		text, err := mock(ctx)
		if err != nil {
			return provider.Result{}, err
		}
		return provider.Result{Text: text}, nil
	}
	return o.completer.Complete(ctx, req)
}

// preparePassages applies the chunking and ranking settings, falling back to
// the configured defaults when the request carries none. Positional
// numbering is re-derived from the returned order, so citations decode
// consistently whatever was applied.
func (o *Orchestrator) preparePassages(question string, passages []Passage, settings *RetrievalSettings) ([]Passage, error) {
	if settings == nil {
		settings = &RetrievalSettings{
			TopK:           o.retrieval.TopK,
			ScoreThreshold: o.retrieval.ScoreThreshold,
			UseMMR:         o.retrieval.UseMMR,
			ChunkSize:      o.retrieval.ChunkSize,
			OverlapSize:    o.retrieval.OverlapSize,
		}
	}
	if settings.ChunkSize > 0 {
		passages = ChunkPassages(passages, settings.ChunkSize, settings.OverlapSize)
	}
	if settings.TopK > 0 && o.ranker != nil {
		ranked, err := o.ranker.Rank(question, passages, settings.TopK, settings.ScoreThreshold)
		if err != nil {
			// Ranking is best-effort; fall back to the flat order.
			o.logger.Printf("ranking failed, using flat order: %v", err)
			return passages, nil
		}
		return ranked, nil
	}
	return passages, nil
}

func (o *Orchestrator) checkBudget(model, prompt string) {
	budget := CheckTokenBudget(model, prompt)
	if !budget.WithinLimits {
		o.logger.Printf("prompt exceeds advisory budget: model=%s estimated=%d limit=%d", model, budget.EstimatedTokens, budget.Limit)
		o.telemetry.RecordOverBudget(model, budget.EstimatedTokens, budget.Limit)
	}
}
