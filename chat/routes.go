package chat

import (
	"context"
	"strings"
)

// Intent names, in routing order.
const (
	IntentJuneCount    = "june_reports_count"
	IntentJuneAnalysis = "june_documents_analysis"
	IntentShared       = "shared_files"
	IntentFileList     = "file_list"
	IntentSearch       = "search_results"
	IntentUpload       = "upload_instruction"
	IntentCreateFolder = "create_folder"
	IntentDelete       = "delete_instruction"
	IntentOrganize     = "organize_suggestion"
	IntentStorage      = "storage_analysis"
	IntentCapabilities = "capabilities"
)

type handler func(s *Service, ctx context.Context, message string) (Response, error)

type route struct {
	name   string
	match  func(lower string) bool
	handle handler
}

func has(s string, words ...string) bool {
	for _, w := range words {
		if !strings.Contains(s, w) {
			return false
		}
	}
	return true
}

func hasAny(s string, words ...string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// routes is evaluated top to bottom on the lower-cased message and the first
// match wins. Matching is plain substring search.
var routes = []route{
	{
		name:   IntentJuneCount,
		match:  func(m string) bool { return has(m, "june", "reports") && hasAny(m, "count", "navigate") },
		handle: (*Service).juneReportsCount,
	},
	{
		name:   IntentJuneAnalysis,
		match:  func(m string) bool { return has(m, "june") && hasAny(m, "analyze", "preview") },
		handle: (*Service).juneDocumentsAnalysis,
	},
	{
		name:   IntentShared,
		match:  func(m string) bool { return has(m, "shared", "me") },
		handle: (*Service).sharedFiles,
	},
	{
		name:   IntentFileList,
		match:  func(m string) bool { return has(m, "list") && hasAny(m, "file", "recent") },
		handle: (*Service).listFiles,
	},
	{
		name:   IntentSearch,
		match:  func(m string) bool { return hasAny(m, "search", "find") },
		handle: (*Service).search,
	},
	{
		name:   IntentUpload,
		match:  func(m string) bool { return has(m, "upload") },
		handle: (*Service).uploadInstruction,
	},
	{
		name:   IntentCreateFolder,
		match:  func(m string) bool { return has(m, "create", "folder") },
		handle: (*Service).createFolder,
	},
	{
		name:   IntentDelete,
		match:  func(m string) bool { return hasAny(m, "delete", "remove") },
		handle: (*Service).deleteInstruction,
	},
	{
		name:   IntentOrganize,
		match:  func(m string) bool { return hasAny(m, "organize", "sort") },
		handle: (*Service).organizeSuggestion,
	},
	{
		name:   IntentStorage,
		match:  func(m string) bool { return hasAny(m, "storage", "space", "usage") },
		handle: (*Service).storageAnalysis,
	},
	{
		name:   IntentCapabilities,
		match:  func(string) bool { return true },
		handle: (*Service).capabilities,
	},
}

// Classify returns the intent a message routes to.
func Classify(message string) string {
	return match(message).name
}

func match(message string) route {
	lower := strings.ToLower(message)
	for _, r := range routes {
		if r.match(lower) {
			return r
		}
	}
	return routes[len(routes)-1]
}
