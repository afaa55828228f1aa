package render

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"gdrivechat/drive"
)

var mimeLabels = []struct {
	needle string
	label  string
}{
	{"document", "Google Doc"},
	{"spreadsheet", "Google Sheet"},
	{"presentation", "Google Slides"},
	{"pdf", "PDF"},
	{"image", "Image"},
	{"video", "Video"},
	{"audio", "Audio"},
	{"folder", "Folder"},
}

// MimeLabel maps a MIME type to a short label. The first matching entry wins.
func MimeLabel(mimeType string) string {
	for _, m := range mimeLabels {
		if strings.Contains(mimeType, m.needle) {
			return m.label
		}
	}
	return "Document"
}

var sizeUnits = []string{"B", "KB", "MB", "GB"}

// FormatFileSize renders a byte count with binary prefixes and at most two
// decimals. Zero and negative counts are "Unknown size".
func FormatFileSize(bytes int64) string {
	if bytes <= 0 {
		return "Unknown size"
	}

	value := float64(bytes)
	unit := 0
	for value >= 1024 && unit < len(sizeUnits)-1 {
		value /= 1024
		unit++
	}
	value = math.Round(value*100) / 100
	return strconv.FormatFloat(value, 'f', -1, 64) + " " + sizeUnits[unit]
}

// SizeOf formats an optional size.
func SizeOf(size *int64) string {
	if size == nil {
		return FormatFileSize(0)
	}
	return FormatFileSize(*size)
}

func Icon(f drive.FileRecord) string {
	if f.IsFolder() {
		return "📁"
	}
	return "📄"
}

// FileLine is the one-line listing entry used by the list and search replies.
func FileLine(f drive.FileRecord) string {
	return fmt.Sprintf("%s **%s** (%s)", Icon(f), f.Name, MimeLabel(f.MimeType))
}

// FileLines joins FileLine for every record.
func FileLines(files []drive.FileRecord) string {
	lines := make([]string, 0, len(files))
	for _, f := range files {
		lines = append(lines, FileLine(f))
	}
	return strings.Join(lines, "\n")
}

// Preview returns the first n characters of text followed by an ellipsis.
func Preview(text string, n int) string {
	if utf8.RuneCountInString(text) > n {
		text = string([]rune(text)[:n])
	}
	return text + "..."
}
