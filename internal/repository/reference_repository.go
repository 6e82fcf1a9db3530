package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"

	"github.com/khanhnq02905/Academic-Calendar/internal/models"
)

// ReferenceRepository reads course, room and student profile reference data.
type ReferenceRepository struct {
	db *sqlx.DB
}

// NewReferenceRepository constructs the repository.
func NewReferenceRepository(db *sqlx.DB) *ReferenceRepository {
	return &ReferenceRepository{db: db}
}

// GetCourse fetches a course; a missing course yields an error wrapping sql.ErrNoRows.
func (r *ReferenceRepository) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	query, args, err := psql.Select("id", "name", "year", "major_id").
		From("courses").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var course models.Course
	if err := r.db.GetContext(ctx, &course, query, args...); err != nil {
		return nil, fmt.Errorf("get course %s: %w", id, err)
	}
	return &course, nil
}

// GetRoom fetches a room; a missing room yields an error wrapping sql.ErrNoRows.
func (r *ReferenceRepository) GetRoom(ctx context.Context, id string) (*models.Room, error) {
	query, args, err := psql.Select("id", "name").
		From("rooms").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var room models.Room
	if err := r.db.GetContext(ctx, &room, query, args...); err != nil {
		return nil, fmt.Errorf("get room %s: %w", id, err)
	}
	return &room, nil
}

// ListStudentIDs resolves the user ids of every student enrolled in the major and year.
func (r *ReferenceRepository) ListStudentIDs(ctx context.Context, majorID string, year int) ([]string, error) {
	query, args, err := psql.Select("user_id").
		From("student_profiles").
		Where(sq.Eq{"major_id": majorID, "year": year}).
		OrderBy("user_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("list student profiles: %w", err)
	}
	return ids, nil
}
