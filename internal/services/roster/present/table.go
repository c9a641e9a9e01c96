// Package present renders student records for the terminal.
package present

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/louisbranch/students/internal/services/roster/domain"
)

// EmptyMessage is printed instead of a table when there are no records.
const EmptyMessage = "student list is empty"

// Column widths. Values wider than their column are printed whole and push
// the row out of alignment.
const (
	indexWidth = 4
	nameWidth  = 30
	groupWidth = 20
	marksWidth = 15
)

var border = fmt.Sprintf("+-%s-+-%s-+-%s-+-%s-+",
	strings.Repeat("-", indexWidth),
	strings.Repeat("-", nameWidth),
	strings.Repeat("-", groupWidth),
	strings.Repeat("-", marksWidth),
)

// WriteTable writes records as a bordered fixed-width table with a 1-based
// index column, or EmptyMessage when records is empty.
func WriteTable(w io.Writer, records []domain.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, EmptyMessage)
		return err
	}

	var b strings.Builder
	b.WriteString(border + "\n")
	fmt.Fprintf(&b, "| %s | %s | %s | %s |\n",
		center("No", indexWidth),
		center("Name", nameWidth),
		center("Group", groupWidth),
		center("Marks", marksWidth),
	)
	b.WriteString(border + "\n")
	for i, record := range records {
		fmt.Fprintf(&b, "| %*d | %-*s | %-*s | %*s |\n",
			indexWidth, i+1,
			nameWidth, record.Name,
			groupWidth, record.Group,
			marksWidth, record.Marks.String(),
		)
	}
	b.WriteString(border + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}

// WriteJSON writes records as an indented JSON array; no records yield [].
func WriteJSON(w io.Writer, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("encode records: %w", err)
	}
	return nil
}

// center pads value on both sides to width, putting the odd space on the
// right.
func center(value string, width int) string {
	gap := width - utf8.RuneCountInString(value)
	if gap <= 0 {
		return value
	}
	left := gap / 2
	return strings.Repeat(" ", left) + value + strings.Repeat(" ", gap-left)
}
