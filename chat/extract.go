package chat

import (
	"regexp"
	"strconv"
	"strings"
)

var numberPattern = regexp.MustCompile(`\d+`)

// extractNumber returns the first run of digits in text.
func extractNumber(text string) (int, bool) {
	m := numberPattern.FindString(text)
	if m == "" {
		return 0, false
	}
	n, err := strconv.Atoi(m)
	if err != nil {
		return 0, false
	}
	return n, true
}

var searchPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)search for (.+)`),
	regexp.MustCompile(`(?i)find (.+)`),
	regexp.MustCompile(`(?i)search (.+)`),
	regexp.MustCompile(`(?i)look for (.+)`),
	regexp.MustCompile(`(?i)show me (.+)`),
}

// typeKeywords map a bare file kind in the message to a type query.
var typeKeywords = []string{"document", "image", "video", "pdf"}

func extractSearchQuery(text string) string {
	for _, p := range searchPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			if q := strings.TrimSpace(m[1]); q != "" {
				return q
			}
		}
	}

	lower := strings.ToLower(text)
	for _, kw := range typeKeywords {
		if strings.Contains(lower, kw) {
			return "type:" + kw
		}
	}
	return ""
}

var folderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)create.*folder.*called (.+)`),
	regexp.MustCompile(`(?i)create.*folder.*named (.+)`),
	regexp.MustCompile(`(?i)make.*folder.*called (.+)`),
	regexp.MustCompile(`(?i)new folder (.+)`),
}

var quoteStripper = strings.NewReplacer(`'`, "", `"`, "")

func extractFolderName(text string) string {
	for _, p := range folderPatterns {
		if m := p.FindStringSubmatch(text); m != nil {
			return quoteStripper.Replace(strings.TrimSpace(m[1]))
		}
	}
	return ""
}
