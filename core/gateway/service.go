package gateway

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/lattice/core/index"
	"github.com/adalundhe/lattice/core/latent"
)

// Tool names the service dispatches on.
const (
	ToolArchitectConsult = "architect_consult"
	ToolSkillInjector    = "skill_injector"
)

// Request is one query against the compiled store.
type Request struct {
	Intent     string
	Code       string
	SkillID    string
	ToolName   string
	TopK       int
	TypeFilter string
	MinScore   float64
	SessionID  string
}

// MatchedModule is light metadata for one retrieved module.
type MatchedModule struct {
	ModuleID    string
	Name        string
	ModuleType  string
	Description string
	Score       float64
}

// Metrics carries per-request timing and volume counters.
type Metrics struct {
	TokensSaved     int
	RetrievalTimeMS float64
	DecodeTimeMS    float64
	TotalTimeMS     float64
	ModulesSearched int
	ModulesMatched  int
}

// Response is the result of one query.
type Response struct {
	ResponseID     string
	SessionID      string
	DensePrompt    string
	MatchedModules []MatchedModule
	Metrics        Metrics
}

// Health reports service readiness.
type Health struct {
	ModelLoaded  bool
	IndexedCount int
}

// Service dispatches queries across the three tool surfaces: intent
// retrieval, direct skill lookup, and code compliance checks.
type Service struct {
	engine    *latent.Engine
	intents   *IntentEncoder
	retriever *Retriever
	decoder   *Decoder
	sessions  *SessionManager
	keyword   *index.KeywordIndex
	loaded    func() bool

	defaultTopK     int
	defaultMinScore float64
	logger          *slog.Logger
}

// ServiceConfig wires a Service.
type ServiceConfig struct {
	Engine    *latent.Engine
	Intents   *IntentEncoder
	Retriever *Retriever
	Decoder   *Decoder
	Sessions  *SessionManager

	// Keyword is optional; without it Search returns no results.
	Keyword *index.KeywordIndex

	// ModelLoaded reports whether the model has been loaded, for Health.
	ModelLoaded func() bool

	DefaultTopK     int
	DefaultMinScore float64
	Logger          *slog.Logger
}

// NewService creates the query service.
func NewService(cfg ServiceConfig) *Service {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	loaded := cfg.ModelLoaded
	if loaded == nil {
		loaded = func() bool { return false }
	}
	return &Service{
		engine:          cfg.Engine,
		intents:         cfg.Intents,
		retriever:       cfg.Retriever,
		decoder:         cfg.Decoder,
		sessions:        cfg.Sessions,
		keyword:         cfg.Keyword,
		loaded:          loaded,
		defaultTopK:     cfg.DefaultTopK,
		defaultMinScore: cfg.DefaultMinScore,
		logger:          logger,
	}
}

// Query answers one request. Retrieval and decode failures that stem from a
// missing id or empty query degrade to an empty result; model evaluation
// failures surface as request errors.
func (s *Service) Query(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	topK := req.TopK
	if topK <= 0 {
		topK = s.defaultTopK
	}
	minScore := req.MinScore
	if minScore == 0 {
		minScore = s.defaultMinScore
	}

	var retrieved []RetrievedModule
	var retrievalMS float64

	if req.ToolName == ToolSkillInjector && req.SkillID != "" {
		t := time.Now()
		module, err := s.retriever.RetrieveByID(req.SkillID)
		if err != nil {
			s.logger.Warn("skill lookup failed",
				slog.String("skill_id", req.SkillID),
				slog.Any("error", err))
		} else {
			retrieved = []RetrievedModule{*module}
		}
		retrievalMS = msSince(t)
	} else {
		queryText := req.Intent
		if req.ToolName == ToolComplianceVerify {
			queryText = req.Code
		}
		if queryText == "" {
			return s.emptyResponse(req, "Error: no intent or code provided for query."), nil
		}

		vec, err := s.intents.Encode(ctx, queryText)
		if err != nil {
			return nil, err
		}

		typeFilter := req.TypeFilter
		if req.ToolName == ToolComplianceVerify && typeFilter == "" {
			typeFilter = "rule"
		}

		t := time.Now()
		retrieved = s.retriever.Retrieve(vec, topK, typeFilter, minScore)
		retrievalMS = msSince(t)
	}

	t := time.Now()
	densePrompt := "No matching modules found for this query."
	if len(retrieved) > 0 {
		var err error
		densePrompt, err = s.decoder.Decode(ctx, retrieved, req.ToolName)
		if err != nil {
			return nil, err
		}
	}
	decodeMS := msSince(t)

	tokensSaved, err := s.tokensSaved(ctx, retrieved, densePrompt)
	if err != nil {
		return nil, err
	}

	queryText := req.Intent
	if queryText == "" {
		queryText = req.Code
	}
	if queryText == "" {
		queryText = req.SkillID
	}
	moduleIDs := make([]string, len(retrieved))
	matched := make([]MatchedModule, len(retrieved))
	for i, m := range retrieved {
		moduleIDs[i] = m.ModuleID
		matched[i] = MatchedModule{
			ModuleID:    m.ModuleID,
			Name:        m.Name,
			ModuleType:  m.ModuleType,
			Description: m.Description,
			Score:       m.Score,
		}
	}
	session := s.sessions.RecordQuery(req.SessionID, queryText, moduleIDs, tokensSaved)

	totalMS := msSince(start)
	s.logger.Info("query served",
		slog.String("tool", req.ToolName),
		slog.Int("matched", len(retrieved)),
		slog.Int("tokens_saved", tokensSaved),
		slog.Float64("total_ms", totalMS))

	return &Response{
		ResponseID:  uuid.NewString(),
		SessionID:   session.SessionID,
		DensePrompt: densePrompt,
		Metrics: Metrics{
			TokensSaved:     tokensSaved,
			RetrievalTimeMS: retrievalMS,
			DecodeTimeMS:    decodeMS,
			TotalTimeMS:     totalMS,
			ModulesSearched: s.retriever.Index().Len(),
			ModulesMatched:  len(retrieved),
		},
		MatchedModules: matched,
	}, nil
}

// tokensSaved is the original token mass of the retrieved modules minus the
// dense prompt's token length, floored at zero.
func (s *Service) tokensSaved(ctx context.Context, retrieved []RetrievedModule, densePrompt string) (int, error) {
	if len(retrieved) == 0 {
		return 0, nil
	}
	original := 0
	for _, m := range retrieved {
		original += m.TokenCount
	}
	dense, err := s.engine.CountTokens(ctx, densePrompt)
	if err != nil {
		return 0, err
	}
	if saved := original - dense; saved > 0 {
		return saved, nil
	}
	return 0, nil
}

// emptyResponse records the query and answers without any model invocation.
func (s *Service) emptyResponse(req Request, prompt string) *Response {
	session := s.sessions.RecordQuery(req.SessionID, "", nil, 0)
	return &Response{
		ResponseID:  uuid.NewString(),
		SessionID:   session.SessionID,
		DensePrompt: prompt,
		Metrics: Metrics{
			ModulesSearched: 0,
			ModulesMatched:  0,
		},
		MatchedModules: []MatchedModule{},
	}
}

// ListModules returns light metadata for the compiled corpus.
func (s *Service) ListModules(typeFilter string) []index.Entry {
	return s.retriever.ListModules(typeFilter)
}

// Search runs a full-text keyword query over module text and resolves hits
// against the vector index metadata.
func (s *Service) Search(queryStr, typeFilter string, limit int) ([]MatchedModule, error) {
	if s.keyword == nil {
		return nil, nil
	}
	hits, err := s.keyword.Search(queryStr, typeFilter, limit)
	if err != nil {
		return nil, err
	}

	idx := s.retriever.Index()
	matched := make([]MatchedModule, 0, len(hits))
	for _, hit := range hits {
		entry, ok := idx.GetByID(hit.ModuleID)
		if !ok {
			continue
		}
		matched = append(matched, MatchedModule{
			ModuleID:    entry.ModuleID,
			Name:        entry.Name,
			ModuleType:  entry.ModuleType,
			Description: entry.Description,
			Score:       hit.Score,
		})
	}
	return matched, nil
}

// HealthCheck reports model and index state.
func (s *Service) HealthCheck() Health {
	return Health{
		ModelLoaded:  s.loaded(),
		IndexedCount: s.retriever.Index().Len(),
	}
}

func msSince(t time.Time) float64 {
	return float64(time.Since(t).Microseconds()) / 1000.0
}
