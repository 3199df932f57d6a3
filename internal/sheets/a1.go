package sheets

import (
	"fmt"
	"strings"
)

// quoteSheet quotes a tab name for A1 notation: people -> 'people'.
func quoteSheet(name string) string {
	return "'" + strings.ReplaceAll(name, "'", "''") + "'"
}

// columnLetter converts a 1-based column number to its A1 letters
// (1 -> A, 26 -> Z, 27 -> AA).
func columnLetter(n int) string {
	if n < 1 {
		n = 1
	}
	var b []byte
	for n > 0 {
		n--
		b = append([]byte{byte('A' + n%26)}, b...)
		n /= 26
	}
	return string(b)
}

// rowRange addresses columns 1..width of a 1-based sheet row.
func rowRange(name string, row, width int) string {
	return fmt.Sprintf("%s!A%d:%s%d", quoteSheet(name), row, columnLetter(width), row)
}
