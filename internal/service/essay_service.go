package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/editcode"
	"github.com/reset980reset980/write0917/internal/middleware"
	"github.com/reset980reset980/write0917/internal/models"
	"github.com/reset980reset980/write0917/internal/repository"
	"github.com/reset980reset980/write0917/internal/service/integration"
	"github.com/reset980reset980/write0917/internal/validation"
)

const editCodeAttempts = 5

type EssayService interface {
	ListEssays(ctx context.Context) ([]models.Essay, error)
	GetEssay(ctx context.Context, id string) (*models.Essay, error)
	CreateEssay(ctx context.Context, req *models.CreateEssayRequest) (*models.Essay, error)
	FindEssayByCode(ctx context.Context, code string) (*models.Essay, error)
	UpdateEssay(ctx context.Context, code string, data models.EssayData) (*models.Essay, error)
	DeleteEssay(ctx context.Context, id string) error
	DeleteEssayByCode(ctx context.Context, code string) error
	IncrementLikes(ctx context.Context, id string) (*models.Essay, error)
	ExportEssay(ctx context.Context, id string) ([]byte, error)
}

type essayService struct {
	essayRepo repository.EssayRepository
	publisher integration.EventPublisher
	archive   integration.ArchiveClient
	logger    zerolog.Logger
	now       func() time.Time
	newCode   func() (string, error)
}

func NewEssayService(
	essayRepo repository.EssayRepository,
	publisher integration.EventPublisher,
	archive integration.ArchiveClient,
	logger zerolog.Logger,
) EssayService {
	return &essayService{
		essayRepo: essayRepo,
		publisher: publisher,
		archive:   archive,
		logger:    logger,
		now:       time.Now,
		newCode:   editcode.Generate,
	}
}

// validID keeps malformed ids away from the uuid column.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func normalizeCode(code string) (string, error) {
	code = editcode.Normalize(code)
	if err := editcode.Validate(code); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidEditCode, err)
	}
	return code, nil
}

func (s *essayService) ListEssays(ctx context.Context) ([]models.Essay, error) {
	essays, err := s.essayRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list essays: %w", err)
	}
	return essays, nil
}

func (s *essayService) GetEssay(ctx context.Context, id string) (*models.Essay, error) {
	if !validID(id) {
		return nil, ErrEssayNotFound
	}

	essay, err := s.essayRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get essay: %w", err)
	}
	if essay == nil {
		return nil, ErrEssayNotFound
	}
	return essay, nil
}

func (s *essayService) CreateEssay(ctx context.Context, req *models.CreateEssayRequest) (*models.Essay, error) {
	if strings.TrimSpace(req.Student.Grade) == "" {
		req.Student.Grade = models.DefaultGrade
	}
	if err := validation.Struct(req); err != nil {
		return nil, err
	}

	essay := &models.Essay{
		EssayData: req.EssayData,
		ID:        uuid.New().String(),
		CreatedAt: s.now().UTC(),
		Student:   req.Student,
		Likes:     0,
	}
	essay.Topic = strings.TrimSpace(essay.Topic)

	var err error
	for attempt := 1; attempt <= editCodeAttempts; attempt++ {
		essay.EditCode, err = s.newCode()
		if err != nil {
			return nil, fmt.Errorf("failed to generate edit code: %w", err)
		}

		err = s.essayRepo.Create(ctx, essay)
		if err == nil {
			break
		}
		if !errors.Is(err, repository.ErrDuplicateEditCode) {
			return nil, fmt.Errorf("failed to create essay: %w", err)
		}
		s.logger.Warn().Int("attempt", attempt).Msg("Edit code collision, retrying")
	}
	if err != nil {
		return nil, ErrEditCodeExhausted
	}

	middleware.RecordEssaySubmitted()
	s.logger.Info().
		Str("essay_id", essay.ID).
		Str("author", essay.Student.DisplayName()).
		Msg("Essay created")

	s.archiveDocument(ctx, essay)

	event := &models.EssaySubmittedEvent{
		EssayID:     essay.ID,
		Topic:       essay.Topic,
		AuthorName:  essay.Student.Name,
		AuthorGrade: essay.Student.Grade,
		AuthorClass: essay.Student.ClassNumber,
		Characters:  utf8.RuneCountInString(essay.FullText),
		Timestamp:   essay.CreatedAt.Unix(),
	}
	if err := s.publisher.PublishEssaySubmitted(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("essay_id", essay.ID).Msg("Failed to publish essay submitted event")
	}

	return essay, nil
}

func (s *essayService) FindEssayByCode(ctx context.Context, code string) (*models.Essay, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}

	essay, err := s.essayRepo.GetByEditCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to find essay: %w", err)
	}
	if essay == nil {
		return nil, ErrEssayNotFound
	}
	return essay, nil
}

// UpdateEssay replaces only the editable fields; identity, likes and the
// code itself never change.
func (s *essayService) UpdateEssay(ctx context.Context, code string, data models.EssayData) (*models.Essay, error) {
	code, err := normalizeCode(code)
	if err != nil {
		return nil, err
	}
	if err := validation.Struct(&models.UpdateEssayRequest{EssayData: data}); err != nil {
		return nil, err
	}
	data.Topic = strings.TrimSpace(data.Topic)

	essay, err := s.essayRepo.UpdateByEditCode(ctx, code, data)
	if err != nil {
		return nil, fmt.Errorf("failed to update essay: %w", err)
	}
	if essay == nil {
		return nil, ErrEssayNotFound
	}

	s.logger.Info().Str("essay_id", essay.ID).Msg("Essay updated")
	s.archiveDocument(ctx, essay)

	return essay, nil
}

func (s *essayService) DeleteEssay(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrEssayNotFound
	}

	deleted, err := s.essayRepo.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete essay: %w", err)
	}
	if !deleted {
		return ErrEssayNotFound
	}

	s.afterDelete(ctx, id, true)
	return nil
}

func (s *essayService) DeleteEssayByCode(ctx context.Context, code string) error {
	code, err := normalizeCode(code)
	if err != nil {
		return err
	}

	id, err := s.essayRepo.DeleteByEditCode(ctx, code)
	if err != nil {
		return fmt.Errorf("failed to delete essay: %w", err)
	}
	if id == "" {
		return ErrEssayNotFound
	}

	s.afterDelete(ctx, id, false)
	return nil
}

func (s *essayService) afterDelete(ctx context.Context, id string, byTeacher bool) {
	s.logger.Info().Str("essay_id", id).Bool("by_teacher", byTeacher).Msg("Essay deleted")

	if err := s.archive.Remove(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("essay_id", id).Msg("Failed to remove archived essay")
	}

	event := &models.EssayDeletedEvent{EssayID: id, ByTeacher: byTeacher, Timestamp: s.now().Unix()}
	if err := s.publisher.PublishEssayDeleted(ctx, event); err != nil {
		s.logger.Error().Err(err).Str("essay_id", id).Msg("Failed to publish essay deleted event")
	}
}

func (s *essayService) IncrementLikes(ctx context.Context, id string) (*models.Essay, error) {
	if !validID(id) {
		return nil, ErrEssayNotFound
	}

	essay, err := s.essayRepo.IncrementLikes(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to increment likes: %w", err)
	}
	if essay == nil {
		return nil, ErrEssayNotFound
	}
	return essay, nil
}

// ExportEssay serves the archived document, rebuilding it from the database
// when the archive has none.
func (s *essayService) ExportEssay(ctx context.Context, id string) ([]byte, error) {
	if !validID(id) {
		return nil, ErrEssayNotFound
	}

	doc, err := s.archive.Get(ctx, id)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, integration.ErrNotArchived) {
		s.logger.Warn().Err(err).Str("essay_id", id).Msg("Archive unavailable, rendering from database")
	}

	essay, err := s.GetEssay(ctx, id)
	if err != nil {
		return nil, err
	}
	return RenderDocument(essay), nil
}

func (s *essayService) archiveDocument(ctx context.Context, essay *models.Essay) {
	if err := s.archive.Put(ctx, essay.ID, RenderDocument(essay)); err != nil {
		s.logger.Warn().Err(err).Str("essay_id", essay.ID).Msg("Failed to archive essay")
	}
}

// RenderDocument formats an essay as a plain text file.
func RenderDocument(essay *models.Essay) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "제목: %s\n", essay.Topic)
	fmt.Fprintf(&b, "글쓴이: %s\n", essay.Student.DisplayName())
	fmt.Fprintf(&b, "작성일: %s\n\n", essay.CreatedAt.Format("2006-01-02"))
	b.WriteString(essay.FullText)
	b.WriteString("\n")
	return []byte(b.String())
}
