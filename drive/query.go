package drive

import (
	"fmt"
	"strings"
)

var queryEscaper = strings.NewReplacer(`\`, `\\`, `'`, `\'`)

func quote(s string) string {
	return "'" + queryEscaper.Replace(s) + "'"
}

// FolderQuery selects the non-trashed children of a folder.
func FolderQuery(folderID string) string {
	return fmt.Sprintf("%s in parents and trashed=false", quote(folderID))
}

// NameQuery selects non-trashed files whose name contains term.
func NameQuery(term string) string {
	return fmt.Sprintf("name contains %s and trashed=false", quote(term))
}

// SharedQuery selects non-trashed files in "Shared with me".
func SharedQuery() string {
	return "sharedWithMe=true and trashed=false"
}

// SearchQuery turns a free search term into a filter. Terms of the form
// "type:<kind>" filter on MIME type instead of name.
func SearchQuery(term string) string {
	if kind, ok := strings.CutPrefix(term, "type:"); ok && kind != "" {
		return fmt.Sprintf("mimeType contains %s and trashed=false", quote(kind))
	}
	return NameQuery(term)
}
