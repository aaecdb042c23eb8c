package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lumenlms/announce-api/internal/models"
)

// MembershipRepository resolves course membership for a user. Enrollment and
// teaching data is owned by the course service; this repository only reads
// the shared views it publishes.
type MembershipRepository struct {
	db *sqlx.DB
}

// NewMembershipRepository constructs the repository.
func NewMembershipRepository(db *sqlx.DB) *MembershipRepository {
	return &MembershipRepository{db: db}
}

// ResolveViewer loads the membership sets backing audience checks.
func (r *MembershipRepository) ResolveViewer(ctx context.Context, email string, role models.UserRole) (*models.ViewerContext, error) {
	viewer := &models.ViewerContext{
		Email:             email,
		Role:              role,
		EnrolledCourseIDs: []string{},
		TaughtCourseIDs:   []string{},
	}

	const enrolledQuery = `SELECT course_id FROM course_enrollments WHERE student_email = $1 AND active = TRUE`
	if err := r.db.SelectContext(ctx, &viewer.EnrolledCourseIDs, enrolledQuery, email); err != nil {
		return nil, fmt.Errorf("resolve enrolled courses: %w", err)
	}

	const taughtQuery = `SELECT course_id FROM course_teachers WHERE teacher_email = $1`
	if err := r.db.SelectContext(ctx, &viewer.TaughtCourseIDs, taughtQuery, email); err != nil {
		return nil, fmt.Errorf("resolve taught courses: %w", err)
	}

	return viewer, nil
}
