package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/campusolx/backend/internal/logger"
	"go.uber.org/zap"
	"google.golang.org/genai"
)

// Screening is an advisory authenticity assessment. It never changes item state.
type Screening struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale"`
}

type GeminiScreener struct {
	client *genai.Client
	model  string
}

func NewGeminiScreener(ctx context.Context, apiKey, model string) (*GeminiScreener, error) {
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai client: %w", err)
	}
	return &GeminiScreener{client: client, model: model}, nil
}

func (s *GeminiScreener) Screen(ctx context.Context, l Listing) (*Screening, error) {
	log := logger.FromContext(ctx).Named("screening")
	parts := []*genai.Part{
		genai.NewPartFromText(BuildScreeningPrompt(l)),
	}
	contents := []*genai.Content{
		genai.NewContentFromParts(parts, genai.RoleUser),
	}
	temp := float32(0)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}

	start := time.Now()
	res, err := s.client.Models.GenerateContent(ctx, s.model, contents, cfg)
	if err != nil {
		log.Warn("gemini generate failed", zap.String("model", s.model), zap.Error(err))
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	raw := res.Text()
	out, err := ParseScreening(raw)
	if err != nil {
		log.Warn("screening parse failed", zap.Int("len", len(raw)), zap.Error(err))
		return nil, err
	}
	log.Info("screening done", zap.Int("score", out.Score), zap.Duration("elapsed", time.Since(start)))
	return out, nil
}
