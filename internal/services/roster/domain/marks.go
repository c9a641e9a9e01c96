// Package domain defines student records and the marks they carry.
package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// GoodStandingAverage is the inclusive mark average a student needs to be
// listed by the find command.
const GoodStandingAverage = 4.0

// Mark is a single integer grade.
type Mark int

// Marks is one student's grade history, in the order it was given.
type Marks []Mark

// ParseMarks reads a delimited list of grades such as "4,5,4,3,5".
// Commas, semicolons and whitespace all separate values; empty fields are
// skipped.
func ParseMarks(input string) (Marks, error) {
	fields := strings.FieldsFunc(input, func(r rune) bool {
		switch r {
		case ',', ';', ' ', '\t', '\n', '\r':
			return true
		}
		return false
	})
	if len(fields) == 0 {
		return nil, ErrMarksRequired
	}
	marks := make(Marks, 0, len(fields))
	for _, field := range fields {
		value, err := strconv.Atoi(field)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrInvalidMark, field)
		}
		marks = append(marks, Mark(value))
	}
	return marks, nil
}

// DecodeMarks reads a stored marks column. The canonical form is a JSON
// array; rows written before the JSON form hold a delimited string or a bare
// integer and are accepted too.
func DecodeMarks(stored string) (Marks, error) {
	trimmed := strings.TrimSpace(stored)
	if strings.HasPrefix(trimmed, "[") {
		var marks Marks
		if err := json.Unmarshal([]byte(trimmed), &marks); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidMark, err)
		}
		if marks == nil {
			marks = Marks{}
		}
		return marks, nil
	}
	return ParseMarks(trimmed)
}

// Encode returns the canonical JSON array form stored in the database.
func (m Marks) Encode() (string, error) {
	if m == nil {
		m = Marks{}
	}
	data, err := json.Marshal([]Mark(m))
	if err != nil {
		return "", fmt.Errorf("encode marks: %w", err)
	}
	return string(data), nil
}

// String joins the marks with commas, the form the CLI accepts.
func (m Marks) String() string {
	parts := make([]string, len(m))
	for i, mark := range m {
		parts[i] = strconv.Itoa(int(mark))
	}
	return strings.Join(parts, ",")
}
