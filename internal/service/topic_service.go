package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/middleware"
	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/service/integration"
)

const (
	MessageRateLimited = "AI 요청이 너무 많습니다. 잠시 후 다시 시도해 주세요."
	anonymousViewer    = "anonymous"
)

// TopicService never fails; callers always get something to show.
type TopicService interface {
	RefineTopic(ctx context.Context, viewerKey, topic string) models.TopicSuggestions
	Advise(ctx context.Context, req *models.AdviceRequest) models.AdviceResponse
}

type topicService struct {
	ai      integration.AIClient
	limiter repository.RateLimitRepository
	limit   int
	window  time.Duration
	logger  zerolog.Logger
}

func NewTopicService(ai integration.AIClient, limiter repository.RateLimitRepository, limit int, window time.Duration, logger zerolog.Logger) TopicService {
	return &topicService{
		ai:      ai,
		limiter: limiter,
		limit:   limit,
		window:  window,
		logger:  logger,
	}
}

// allow applies the per-viewer fixed window. A limiter outage lets the call through.
func (s *topicService) allow(ctx context.Context, action, viewerKey string) bool {
	if s.limit <= 0 || s.window <= 0 {
		return true
	}
	if viewerKey == "" {
		viewerKey = anonymousViewer
	}

	n, err := s.limiter.Incr(ctx, action+":"+viewerKey, s.window)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Rate limiter unavailable")
		return true
	}
	if n > int64(s.limit) {
		s.logger.Info().Str("viewer", viewerKey).Str("action", action).Msg("AI request rate limited")
		return false
	}
	return true
}

func (s *topicService) RefineTopic(ctx context.Context, viewerKey, topic string) models.TopicSuggestions {
	if !s.allow(ctx, "topic", viewerKey) {
		return models.TopicSuggestions{RefinedTopic: MessageRateLimited, Suggestions: []string{}, Degraded: true}
	}

	start := time.Now()
	result, err := s.ai.RefineTopic(ctx, topic)
	middleware.RecordAICall("topic", err == nil, time.Since(start))
	if err != nil {
		s.logger.Error().Err(err).Msg("Topic refinement failed")
		return integration.FallbackSuggestions(err)
	}
	return result
}

func (s *topicService) Advise(ctx context.Context, req *models.AdviceRequest) models.AdviceResponse {
	if !s.allow(ctx, "advice", req.ViewerKey) {
		return models.AdviceResponse{Reply: MessageRateLimited}
	}

	start := time.Now()
	reply, err := s.ai.Advise(ctx, req.Progress, req.Question)
	middleware.RecordAICall("advice", err == nil, time.Since(start))
	if err != nil {
		s.logger.Error().Err(err).Msg("Writing advice failed")
		return models.AdviceResponse{Reply: integration.FallbackAdvice(err)}
	}
	return models.AdviceResponse{Reply: reply}
}
