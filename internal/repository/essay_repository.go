package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/models"
)

// EssayRepository lookups return (nil, nil) when nothing matches.
type EssayRepository interface {
	Create(ctx context.Context, essay *models.Essay) error
	GetByID(ctx context.Context, id string) (*models.Essay, error)
	GetByEditCode(ctx context.Context, code string) (*models.Essay, error)
	List(ctx context.Context) ([]models.Essay, error)
	UpdateByEditCode(ctx context.Context, code string, data models.EssayData) (*models.Essay, error)
	Delete(ctx context.Context, id string) (bool, error)
	DeleteByEditCode(ctx context.Context, code string) (string, error)
	IncrementLikes(ctx context.Context, id string) (*models.Essay, error)
}

const essayColumns = `id, title, introduction, body, conclusion, full_text, edit_code,
	author_grade, author_class, author_number, author_name, likes, created_at`

type essayRepository struct {
	*PostgresRepository
}

func NewEssayRepository(db *sql.DB, logger zerolog.Logger) EssayRepository {
	return &essayRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEssay(row rowScanner) (*models.Essay, error) {
	var (
		essay models.Essay
		body  []byte
	)
	err := row.Scan(
		&essay.ID,
		&essay.Topic,
		&essay.Introduction,
		&body,
		&essay.Conclusion,
		&essay.FullText,
		&essay.EditCode,
		&essay.Student.Grade,
		&essay.Student.ClassNumber,
		&essay.Student.StudentID,
		&essay.Student.Name,
		&essay.Likes,
		&essay.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	essay.EditCode = strings.TrimSpace(essay.EditCode)
	essay.Body, err = decodeBody(body)
	if err != nil {
		return nil, fmt.Errorf("essay %s: %w", essay.ID, err)
	}
	return &essay, nil
}

// decodeBody accepts the body column either as a JSON array or as a JSON
// string holding the array, which older rows were written as.
func decodeBody(raw []byte) ([]models.BodyPart, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return []models.BodyPart{}, nil
	}

	var parts []models.BodyPart
	if err := json.Unmarshal(raw, &parts); err == nil {
		return parts, nil
	}

	var encoded string
	if err := json.Unmarshal(raw, &encoded); err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	if err := json.Unmarshal([]byte(encoded), &parts); err != nil {
		return nil, fmt.Errorf("failed to decode body: %w", err)
	}
	return parts, nil
}

func (r *essayRepository) Create(ctx context.Context, essay *models.Essay) error {
	body, err := json.Marshal(essay.Body)
	if err != nil {
		return fmt.Errorf("failed to encode body: %w", err)
	}

	query := `
		INSERT INTO essays (` + essayColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err = r.db.ExecContext(ctx, query,
		essay.ID,
		essay.Topic,
		essay.Introduction,
		body,
		essay.Conclusion,
		essay.FullText,
		essay.EditCode,
		essay.Student.Grade,
		essay.Student.ClassNumber,
		essay.Student.StudentID,
		essay.Student.Name,
		essay.Likes,
		essay.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrDuplicateEditCode
	}

	return err
}

func (r *essayRepository) GetByID(ctx context.Context, id string) (*models.Essay, error) {
	query := `SELECT ` + essayColumns + ` FROM essays WHERE id = $1`

	essay, err := scanEssay(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return essay, err
}

func (r *essayRepository) GetByEditCode(ctx context.Context, code string) (*models.Essay, error) {
	query := `SELECT ` + essayColumns + ` FROM essays WHERE edit_code = $1`

	essay, err := scanEssay(r.db.QueryRowContext(ctx, query, code))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return essay, err
}

func (r *essayRepository) List(ctx context.Context) ([]models.Essay, error) {
	query := `SELECT ` + essayColumns + ` FROM essays ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	essays := []models.Essay{}
	for rows.Next() {
		essay, err := scanEssay(rows)
		if err != nil {
			return nil, err
		}
		essays = append(essays, *essay)
	}

	return essays, rows.Err()
}

func (r *essayRepository) UpdateByEditCode(ctx context.Context, code string, data models.EssayData) (*models.Essay, error) {
	body, err := json.Marshal(data.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode body: %w", err)
	}

	query := `
		UPDATE essays
		SET title = $2, introduction = $3, body = $4, conclusion = $5, full_text = $6
		WHERE edit_code = $1
		RETURNING ` + essayColumns

	essay, err := scanEssay(r.db.QueryRowContext(ctx, query,
		code,
		data.Topic,
		data.Introduction,
		body,
		data.Conclusion,
		data.FullText,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return essay, err
}

func (r *essayRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM essays WHERE id = $1`, id)
	if err != nil {
		return false, err
	}

	n, err := result.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

// DeleteByEditCode returns the id of the removed essay, or "" if none matched.
func (r *essayRepository) DeleteByEditCode(ctx context.Context, code string) (string, error) {
	var id string
	err := r.db.QueryRowContext(ctx, `DELETE FROM essays WHERE edit_code = $1 RETURNING id`, code).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}

	return id, err
}

func (r *essayRepository) IncrementLikes(ctx context.Context, id string) (*models.Essay, error) {
	query := `SELECT ` + essayColumns + ` FROM increment_likes($1)`

	essay, err := scanEssay(r.db.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}

	return essay, err
}
