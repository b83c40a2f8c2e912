package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/validation"
)

type CommentService interface {
	ListComments(ctx context.Context, essayID string) ([]models.Comment, error)
	CreateComment(ctx context.Context, req *models.CreateCommentRequest) (*models.Comment, error)
}

type commentService struct {
	commentRepo repository.CommentRepository
	essayRepo   repository.EssayRepository
	logger      zerolog.Logger
	now         func() time.Time
}

func NewCommentService(commentRepo repository.CommentRepository, essayRepo repository.EssayRepository, logger zerolog.Logger) CommentService {
	return &commentService{
		commentRepo: commentRepo,
		essayRepo:   essayRepo,
		logger:      logger,
		now:         time.Now,
	}
}

func (s *commentService) ensureEssay(ctx context.Context, essayID string) error {
	if !validID(essayID) {
		return ErrEssayNotFound
	}
	essay, err := s.essayRepo.GetByID(ctx, essayID)
	if err != nil {
		return fmt.Errorf("failed to get essay: %w", err)
	}
	if essay == nil {
		return ErrEssayNotFound
	}
	return nil
}

func (s *commentService) ListComments(ctx context.Context, essayID string) ([]models.Comment, error) {
	if err := s.ensureEssay(ctx, essayID); err != nil {
		return nil, err
	}

	comments, err := s.commentRepo.ListByEssayID(ctx, essayID)
	if err != nil {
		return nil, fmt.Errorf("failed to list comments: %w", err)
	}
	return comments, nil
}

func (s *commentService) CreateComment(ctx context.Context, req *models.CreateCommentRequest) (*models.Comment, error) {
	req.Content = strings.TrimSpace(req.Content)
	req.AuthorName = strings.TrimSpace(req.AuthorName)
	if err := validation.Struct(req); err != nil {
		return nil, err
	}
	if err := s.ensureEssay(ctx, req.EssayID); err != nil {
		return nil, err
	}

	comment := &models.Comment{
		ID:         uuid.New().String(),
		CreatedAt:  s.now().UTC(),
		EssayID:    req.EssayID,
		AuthorName: req.AuthorName,
		Content:    req.Content,
		Author:     req.Author,
	}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, fmt.Errorf("failed to create comment: %w", err)
	}

	s.logger.Info().
		Str("essay_id", comment.EssayID).
		Str("comment_id", comment.ID).
		Msg("Comment added")

	return comment, nil
}
