package domain

import (
	"errors"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// ErrNameRequired indicates a record without a student name.
	ErrNameRequired = errors.New("student name is required")
	// ErrGroupRequired indicates a record without a group label.
	ErrGroupRequired = errors.New("group label is required")
	// ErrMarksRequired indicates a record without any marks.
	ErrMarksRequired = errors.New("at least one mark is required")
	// ErrInvalidMark indicates a mark that is not an integer.
	ErrInvalidMark = errors.New("invalid mark")
)

// Record is one student as the readers return it: the name, the label of the
// group they belong to, and their marks.
type Record struct {
	Name  string `json:"name"`
	Group string `json:"group"`
	Marks Marks  `json:"marks"`
}

// NormalizeRecord trims and NFC-normalizes the text fields so that visually
// identical labels map to the same group row, then checks required fields.
func NormalizeRecord(r Record) (Record, error) {
	r.Name = normalizeText(r.Name)
	r.Group = normalizeText(r.Group)
	if r.Name == "" {
		return Record{}, ErrNameRequired
	}
	if r.Group == "" {
		return Record{}, ErrGroupRequired
	}
	if len(r.Marks) == 0 {
		return Record{}, ErrMarksRequired
	}
	marks := make(Marks, len(r.Marks))
	copy(marks, r.Marks)
	r.Marks = marks
	return r, nil
}

// normalizeText trims value and converts it to Unicode NFC.
func normalizeText(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
