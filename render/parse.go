// Package render turns backend output into file records and formats them
// for display.
package render

import (
	"regexp"
	"strings"

	"gdrivechat/drive"
)

// searchLine matches "<id> <name> (<mimeType>)".
var searchLine = regexp.MustCompile(`^(\S+)\s+(.+?)\s+\(([^)]+)\)$`)

func skipLine(line string) bool {
	return strings.TrimSpace(line) == "" ||
		strings.Contains(line, "Found ") ||
		strings.Contains(line, "files:") ||
		strings.Contains(line, "More results")
}

// ParseSearchText parses the line-oriented text a search tool returns.
// Header, footer and blank lines are skipped and lines of any other shape are
// dropped.
func ParseSearchText(text string) []drive.FileRecord {
	records := []drive.FileRecord{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimRight(line, "\r")
		if skipLine(line) {
			continue
		}

		m := searchLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		records = append(records, drive.FileRecord{
			ID:       strings.TrimSpace(m[1]),
			Name:     strings.TrimSpace(m[2]),
			MimeType: strings.TrimSpace(m[3]),
		})
	}
	return records
}

// MergeUnique concatenates batches, keeping the first record seen for each id.
func MergeUnique(batches ...[]drive.FileRecord) []drive.FileRecord {
	seen := make(map[string]struct{})
	merged := []drive.FileRecord{}
	for _, batch := range batches {
		for _, rec := range batch {
			if _, dup := seen[rec.ID]; dup {
				continue
			}
			seen[rec.ID] = struct{}{}
			merged = append(merged, rec)
		}
	}
	return merged
}
