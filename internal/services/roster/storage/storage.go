// Package storage defines persistence contracts for the student roster.
package storage

import (
	"context"
	"errors"

	"github.com/louisbranch/students/internal/services/roster/domain"
)

// ErrAlreadyExists indicates a uniqueness-constrained record already exists.
var ErrAlreadyExists = errors.New("record already exists")

// Group is a labeled cohort. Labels are unique.
type Group struct {
	ID    int64
	Label string
}

// Student is one stored student row with its resolved group.
type Student struct {
	ID    int64
	Name  string
	Group Group
	Marks domain.Marks
}

// StudentWriter adds students, creating their group on first use.
type StudentWriter interface {
	AddStudent(ctx context.Context, record domain.Record) (Student, error)
}

// StudentReader lists students joined with their group labels.
type StudentReader interface {
	ListStudents(ctx context.Context) ([]domain.Record, error)
	FindStudents(ctx context.Context, minAverage float64) ([]domain.Record, error)
}

// RosterStore is the full roster persistence contract.
type RosterStore interface {
	StudentWriter
	StudentReader
	Close() error
}
