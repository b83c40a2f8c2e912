package repository

import (
	"context"
	"database/sql"

	"github.com/rs/zerolog"

	"github.com/reset980reset980/write0917/internal/models"
)

type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	ListByEssayID(ctx context.Context, essayID string) ([]models.Comment, error)
}

type commentRepository struct {
	*PostgresRepository
}

func NewCommentRepository(db *sql.DB, logger zerolog.Logger) CommentRepository {
	return &commentRepository{
		PostgresRepository: NewPostgresRepository(db, logger),
	}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	query := `
		INSERT INTO comments (id, essay_id, content, author_grade, author_class, author_number, author_name, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	var grade, class, number sql.NullString
	if a := comment.Author; a != nil {
		grade = sql.NullString{String: a.Grade, Valid: true}
		class = sql.NullString{String: a.ClassNumber, Valid: true}
		number = sql.NullString{String: a.StudentID, Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		comment.ID,
		comment.EssayID,
		comment.Content,
		grade,
		class,
		number,
		comment.AuthorName,
		comment.CreatedAt,
	)

	return err
}

func (r *commentRepository) ListByEssayID(ctx context.Context, essayID string) ([]models.Comment, error) {
	query := `
		SELECT id, essay_id, content, author_grade, author_class, author_number, author_name, created_at
		FROM comments
		WHERE essay_id = $1
		ORDER BY created_at ASC
	`

	rows, err := r.db.QueryContext(ctx, query, essayID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	comments := []models.Comment{}
	for rows.Next() {
		var (
			comment              models.Comment
			grade, class, number sql.NullString
		)
		err := rows.Scan(
			&comment.ID,
			&comment.EssayID,
			&comment.Content,
			&grade,
			&class,
			&number,
			&comment.AuthorName,
			&comment.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if grade.Valid || class.Valid || number.Valid {
			comment.Author = &models.Student{
				Grade:       grade.String,
				ClassNumber: class.String,
				StudentID:   number.String,
				Name:        comment.AuthorName,
			}
		}
		comments = append(comments, comment)
	}

	return comments, rows.Err()
}
