package report

import (
	"regexp"
	"strings"
)

// tableStart matches a header row followed by its separator row.
var tableStart = regexp.MustCompile(`\|.*\|[\r\n]+\|[- |]+\|`)

// ExtractTableRows returns the trimmed, non-empty rows following the first table
// header, up to the next blank line or the end of body. A body without a table
// yields no rows.
func ExtractTableRows(body string) []string {
	loc := tableStart.FindStringIndex(body)
	if loc == nil {
		return nil
	}

	rest := strings.ReplaceAll(body[loc[1]:], "\r\n", "\n")
	if end := strings.Index(rest, "\n\n"); end >= 0 {
		rest = rest[:end]
	}

	var rows []string
	for _, line := range strings.Split(rest, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			rows = append(rows, line)
		}
	}
	return rows
}

// HasSignificantChange reports whether the tables of two bodies differ, row by
// row and in length. Text outside the table, such as the date line, is ignored.
func HasSignificantChange(oldBody, newBody string) bool {
	oldRows := ExtractTableRows(oldBody)
	newRows := ExtractTableRows(newBody)

	if len(oldRows) != len(newRows) {
		return true
	}
	for i := range oldRows {
		if oldRows[i] != newRows[i] {
			return true
		}
	}
	return false
}
