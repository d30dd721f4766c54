package rag

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	charmlog "github.com/charmbracelet/log"
	"github.com/mwiater/manara/internal/logging"
	"github.com/mwiater/manara/internal/providers"
)

// Components are the backends and index a Service answers with. They are
// shared read-only by every query.
type Components struct {
	Embedder  providers.Embedder
	Reranker  providers.Reranker // optional
	Generator providers.Generator
	Index     *Index
}

// Loader builds the Components on first use.
type Loader func() (*Components, error)

// Options tunes the query path. Zero values take the defaults noted.
type Options struct {
	K               int // 30
	TopN            int // 5
	MaxPassageWords int // 200
	HistoryMessages int // 10
	Model           string
	Temperature     float64
	MaxTokens       int           // 300
	Timeout         time.Duration // generation deadline, 60s
	Logger          *charmlog.Logger
	// OnReply, when set, observes every reply Ask returns.
	OnReply func(Reply)
}

func (o Options) withDefaults() Options {
	if o.K <= 0 {
		o.K = 30
	}
	if o.TopN <= 0 {
		o.TopN = 5
	}
	if o.MaxPassageWords <= 0 {
		o.MaxPassageWords = 200
	}
	if o.HistoryMessages < 0 {
		o.HistoryMessages = 0
	} else if o.HistoryMessages == 0 {
		o.HistoryMessages = 10
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = 300
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.Logger == nil {
		o.Logger = logging.Logger()
	}
	return o
}

// Service answers questions from the indexed corpus. Components load once,
// on the first query that needs them; a load failure is returned to every
// later query as well.
type Service struct {
	opts       Options
	components func() (*Components, error)
}

// NewService returns a Service that loads its components with load.
func NewService(load Loader, opts Options) *Service {
	s := &Service{opts: opts.withDefaults()}
	s.components = sync.OnceValues(func() (*Components, error) {
		c, err := load()
		if err != nil {
			return nil, stageErr(StageConfig, err)
		}
		if c == nil || c.Embedder == nil || c.Generator == nil || c.Index == nil {
			return nil, stageErr(StageConfig, errors.New("embedder, generator and index are required"))
		}
		s.opts.Logger.Info("components ready", "chunks", c.Index.Len(), "embedding", c.Embedder.Model(), "generator", c.Generator.Name())
		return c, nil
	})
	return s
}

// Components returns the loaded components, loading them if needed.
func (s *Service) Components() (*Components, error) {
	return s.components()
}

func (s *Service) retriever() (*Retriever, error) {
	c, err := s.components()
	if err != nil {
		return nil, err
	}
	return NewRetriever(c.Index, c.Embedder, c.Reranker, s.opts.Logger), nil
}

// Retrieve returns up to topN reranked passages from a pool of k candidates.
// Non-positive k or topN fall back to the configured values.
func (s *Service) Retrieve(ctx context.Context, query string, k, topN int) ([]Passage, error) {
	if k <= 0 {
		k = s.opts.K
	}
	if topN <= 0 {
		topN = s.opts.TopN
	}
	r, err := s.retriever()
	if err != nil {
		return nil, err
	}
	return r.Retrieve(ctx, query, k, topN)
}

// Answer returns the reply text for query. It never fails; every problem is
// folded into the returned text.
func (s *Service) Answer(ctx context.Context, query string, history []Message) string {
	return s.Ask(ctx, query, history).Text
}

// Ask answers query and reports how the answer was produced.
func (s *Service) Ask(ctx context.Context, query string, history []Message) Reply {
	reply := s.ask(ctx, query, history)
	if s.opts.OnReply != nil {
		s.opts.OnReply(reply)
	}
	return reply
}

func (s *Service) ask(ctx context.Context, query string, history []Message) Reply {
	log := s.opts.Logger
	if strings.TrimSpace(query) == "" {
		return Reply{Text: NotFoundReply, Kind: KindNotFound}
	}
	if IsGreeting(query) {
		return Reply{Text: GreetingReply, Kind: KindGreeting}
	}

	c, err := s.components()
	if err != nil {
		log.Error("components unavailable", "err", err)
		return Reply{Text: ErrorReply(err), Kind: KindError, Err: err}
	}

	passages, err := NewRetriever(c.Index, c.Embedder, c.Reranker, log).Retrieve(ctx, query, s.opts.K, s.opts.TopN)
	if err != nil {
		log.Warn("retrieval failed", "err", err)
		return Reply{Text: NotFoundReply, Kind: KindNotFound, Err: err}
	}
	if len(passages) == 0 {
		return Reply{Text: NotFoundReply, Kind: KindNotFound}
	}

	req := providers.GenerateRequest{
		System:      SystemPrompt,
		Messages:    append(trimHistory(history, s.opts.HistoryMessages), providers.ChatMessage{Role: providers.RoleUser, Content: BuildPrompt(query, FormatContext(passages, s.opts.MaxPassageWords))}),
		Model:       s.opts.Model,
		Temperature: s.opts.Temperature,
		MaxTokens:   s.opts.MaxTokens,
	}
	genCtx, cancel := context.WithTimeout(ctx, s.opts.Timeout)
	defer cancel()
	text, err := c.Generator.Generate(genCtx, req)
	if err != nil {
		err = stageErr(StageGenerate, err)
		log.Error("generation failed", "generator", c.Generator.Name(), "err", err)
		return Reply{Text: ErrorReply(err), Kind: KindError, Passages: passages, Err: err}
	}
	return Reply{Text: ScrubSources(text, passages), Kind: KindAnswered, Passages: passages}
}

// trimHistory keeps the last limit user and assistant turns.
func trimHistory(history []Message, limit int) []providers.ChatMessage {
	out := make([]providers.ChatMessage, 0, len(history)+1)
	for _, m := range history {
		role := strings.ToLower(strings.TrimSpace(m.Role))
		if role != RoleUser && role != RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Content) == "" {
			continue
		}
		out = append(out, providers.ChatMessage{Role: role, Content: m.Content})
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}
