package drive

import "testing"

func TestQueries(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"folder children", FolderQuery("root"), "'root' in parents and trashed=false"},
		{"folder id", FolderQuery("1AbC"), "'1AbC' in parents and trashed=false"},
		{"name contains", NameQuery("june"), "name contains 'june' and trashed=false"},
		{"quote is escaped", NameQuery("o'brien"), `name contains 'o\'brien' and trashed=false`},
		{"backslash is escaped", NameQuery(`a\b`), `name contains 'a\\b' and trashed=false`},
		{"shared", SharedQuery(), "sharedWithMe=true and trashed=false"},
		{"search by name", SearchQuery("budget"), "name contains 'budget' and trashed=false"},
		{"search by type", SearchQuery("type:pdf"), "mimeType contains 'pdf' and trashed=false"},
		{"empty type falls back to name", SearchQuery("type:"), "name contains 'type:' and trashed=false"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.got != tt.want {
				t.Errorf("got %q, want %q", tt.got, tt.want)
			}
		})
	}
}

func TestQueriesAreDeterministic(t *testing.T) {
	if FolderQuery("x") != FolderQuery("x") || NameQuery("y") != NameQuery("y") {
		t.Fatal("same input produced different queries")
	}
}
