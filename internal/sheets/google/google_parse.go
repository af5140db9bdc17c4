package google

import (
	"fmt"
	"strings"
)

// findSummaryRow returns the 1-based sheet row holding userID/monthKey in
// columns A and B. When absent it returns the row after the last one.
func findSummaryRow(values [][]any, userID, monthKey string) (int, bool) {
	for i, row := range values {
		cols := toStrings(row)
		if len(cols) < 2 {
			continue
		}
		if cols[0] == userID && cols[1] == monthKey {
			return i + 1, true
		}
	}
	return len(values) + 1, false
}

func toStrings(in []any) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
