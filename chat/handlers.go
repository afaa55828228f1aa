package chat

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"gdrivechat/drive"
	"gdrivechat/render"
)

const (
	juneSearchPageSize = 50
	juneShownLimit     = 10
	previewLength      = 100
	sharedPageSize     = 20
	searchPageSize     = 20
	defaultListCount   = 10
	previewReaders     = 4
)

const manualLocations = "📁 Shared with me 📁 Reports 📁 June"

const juneCountFallback = "⚠️ **No Drive backend available - Using Fallback Mode**\n\n" +
	"To count June reports documents:\n\n" +
	"1. **Open Google Drive** in your browser\n" +
	"2. **Search for \"june\"** or \"reports\" in the search box\n" +
	"3. **Look in these folders:**\n" +
	"   📁 Shared with me\n" +
	"   📁 Reports folder\n" +
	"   📁 June subfolder\n\n" +
	"📋 **Manual Steps:**\n" +
	"• Type \"june reports\" in the search box\n" +
	"• Press Enter to find related files\n" +
	"• Count the documents in the results\n\n" +
	"💡 **Note:** Full functionality will be available once the Drive tool server connects or Drive API credentials are configured."

const juneAnalysisFallback = "⚠️ **No Drive backend available - Using Fallback Mode**\n\n" +
	"To analyze June documents:\n\n" +
	"1. **Open Google Drive** in your browser\n" +
	"2. **Search for \"june\"** in the search box\n" +
	"3. **Look in these folders:**\n" +
	"   📁 Shared with me\n" +
	"   📁 Reports folder\n" +
	"   📁 June subfolder\n\n" +
	"📋 **Manual Steps:**\n" +
	"• Type \"june\" in the search box\n" +
	"• Press Enter to find related files\n" +
	"• Open each document to view its contents\n\n" +
	"💡 **Note:** Full functionality will be available once the Drive tool server connects or Drive API credentials are configured."

const uploadInstructions = "📤 **File Upload**\n\n" +
	"To upload files:\n" +
	"1. Run `gdrivechat drive upload <path>` from a terminal\n" +
	"2. Add `--parent <folder id>` to choose the destination folder\n" +
	"3. Or use the upload button in Google Drive\n\n" +
	"I'll help you organize them once they're uploaded!"

const deleteInstructions = "🗑️ **File Deletion**\n\n" +
	"⚠️ **Important**: File deletion is permanent!\n\n" +
	"To delete files:\n" +
	"1. Find the file id with `gdrivechat drive search <name>`\n" +
	"2. Run `gdrivechat drive rm <file id>`\n" +
	"3. Confirm the deletion\n\n" +
	"Which specific file would you like me to help you find and delete?"

const organizeSuggestions = "🗂️ **File Organization Assistant**\n\n" +
	"I can help you organize your files by:\n\n" +
	"• Creating folders by file type (Documents, Images, Videos, etc.)\n" +
	"• Moving files to appropriate folders\n" +
	"• Cleaning up duplicate files\n" +
	"• Creating date-based organization\n\n" +
	"Which organization method would you prefer? You can also upload files first and I'll help organize them."

// isJuneReport is the name heuristic for June report documents.
func isJuneReport(f drive.FileRecord) bool {
	if f.IsFolder() {
		return false
	}
	name := strings.ToLower(f.Name)
	june := strings.Contains(name, "june")
	return (june && strings.Contains(name, "report")) ||
		strings.Contains(name, "june report") ||
		strings.Contains(name, "reports june") ||
		(june && strings.Contains(name, "analytics")) ||
		(june && strings.Contains(name, "summary"))
}

func (s *Service) juneReportsCount(ctx context.Context, _ string) (Response, error) {
	if !s.backend.Available() {
		return Response{Content: juneCountFallback, Type: TypeFallback}, nil
	}

	queries := []string{"june reports", "reports", "june"}
	batches := make([][]drive.FileRecord, len(queries))

	// Siblings keep running when one search fails so a tool error never
	// cancels a call in flight.
	var g errgroup.Group
	for i, q := range queries {
		g.Go(func() error {
			files, err := s.backend.Search(ctx, q, juneSearchPageSize).Unwrap()
			if err != nil {
				return err
			}
			batches[i] = files
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.logger.Warn("june report search failed", "error", err)
		return Response{
			Content: fmt.Sprintf("❌ **Error accessing June Reports folder:**\n%s\n\n"+
				"💡 **Alternative:** Try navigating manually in Google Drive to:\n%s", err, manualLocations),
			Type: TypeError,
		}, nil
	}

	unique := render.MergeUnique(batches...)
	reports := []drive.FileRecord{}
	for _, f := range unique {
		if isJuneReport(f) {
			reports = append(reports, f)
		}
	}

	var b strings.Builder
	b.WriteString("📊 **June Reports Analysis**\n\n")
	b.WriteString("🔍 **Search Results:**\n")
	fmt.Fprintf(&b, "• Found **%d documents** related to June reports\n", len(reports))
	fmt.Fprintf(&b, "• Total files searched: %d\n\n", len(unique))

	if len(reports) > 0 {
		b.WriteString("📋 **Documents found:**\n")
		for i, f := range reports[:min(len(reports), juneShownLimit)] {
			fmt.Fprintf(&b, "%d. **%s**\n", i+1, f.Name)
			fmt.Fprintf(&b, "   📄 Type: %s\n", render.MimeLabel(f.MimeType))
		}
		if len(reports) > juneShownLimit {
			fmt.Fprintf(&b, "\n... and %d more documents\n", len(reports)-juneShownLimit)
		}
	} else {
		b.WriteString("❌ No documents found matching \"June Reports\" criteria.\n\n")
		b.WriteString("💡 **Suggestions:**\n")
		b.WriteString("• Check if files exist in Google Drive\n")
		b.WriteString("• Try searching manually: \"june\", \"reports\", or \"june reports\"\n")
		b.WriteString("• Verify file names contain relevant keywords\n")
		b.WriteString("• Look in these locations:\n")
		b.WriteString("  📁 Shared with me\n")
		b.WriteString("  📁 Reports folder\n")
		b.WriteString("  📁 June subfolder\n")
	}

	return Response{
		Content: b.String(),
		Type:    TypeJuneCount,
		Data: JuneCountData{
			DocumentCount: len(reports),
			TotalFound:    len(unique),
			Documents:     reports,
		},
	}, nil
}

func (s *Service) juneDocumentsAnalysis(ctx context.Context, _ string) (Response, error) {
	if !s.backend.Available() {
		return Response{Content: juneAnalysisFallback, Type: TypeFallback}, nil
	}

	files, err := s.backend.Search(ctx, "june", juneSearchPageSize).Unwrap()
	if err != nil {
		s.logger.Warn("june document search failed", "error", err)
		return Response{
			Content: fmt.Sprintf("❌ **Error analyzing June documents:**\n%s\n\n"+
				"💡 **Alternative:** Try searching manually for \"june\" documents in Google Drive.", err),
			Type: TypeError,
		}, nil
	}

	docs := []drive.FileRecord{}
	for _, f := range files {
		if !f.IsFolder() && strings.Contains(strings.ToLower(f.Name), "june") {
			docs = append(docs, f)
		}
	}
	if len(docs) == 0 {
		return text("⚠️ No June documents found. Try searching manually for \"june\" in your Google Drive."), nil
	}

	shown := docs[:min(len(docs), juneShownLimit)]
	previews := make([]string, len(shown))

	var g errgroup.Group
	g.SetLimit(previewReaders)
	for i, doc := range shown {
		g.Go(func() error {
			previews[i] = s.preview(ctx, doc)
			return nil
		})
	}
	g.Wait()

	var b strings.Builder
	fmt.Fprintf(&b, "## 📄 June Documents Analysis\n\nFound **%d** documents related to June.\n\n", len(docs))
	for i, doc := range shown {
		fmt.Fprintf(&b, "### %s (%s)\n", doc.Name, render.MimeLabel(doc.MimeType))
		fmt.Fprintf(&b, "**Preview:** %s\n\n", previews[i])
	}
	if len(docs) > juneShownLimit {
		fmt.Fprintf(&b, "\n_...and %d more documents not shown..._\n", len(docs)-juneShownLimit)
	}

	return Response{
		Content: b.String(),
		Type:    TypeJuneAnalysis,
		Data:    JuneAnalysisData{Documents: docs},
	}, nil
}

// preview reads one document and returns the start of its text, or the read
// error in place of the text.
func (s *Service) preview(ctx context.Context, doc drive.FileRecord) string {
	content, err := s.backend.Read(ctx, doc.ID).Unwrap()
	switch {
	case err != nil:
		s.logger.Debug("preview read failed", "file", doc.ID, "error", err)
		return "Unable to read content: " + err.Error()
	case content == "":
		return "(Content preview not available)"
	}
	return render.Preview(content, previewLength)
}

func (s *Service) sharedFiles(ctx context.Context, _ string) (Response, error) {
	files, err := s.backend.Shared(ctx, sharedPageSize).Unwrap()
	if err != nil {
		return Response{Content: "❌ Error accessing shared files: " + err.Error(), Type: TypeError}, nil
	}

	var b strings.Builder
	b.WriteString("📤 **Files Shared With Me**\n\n")
	if len(files) > 0 {
		fmt.Fprintf(&b, "Found **%d** shared files:\n\n", len(files))
		for _, f := range files {
			b.WriteString(render.FileLine(f))
			b.WriteString("\n")
		}
	} else {
		b.WriteString("No files are currently shared with you.")
	}

	return Response{Content: b.String(), Type: TypeShared, Data: files}, nil
}

func (s *Service) listFiles(ctx context.Context, message string) (Response, error) {
	count, ok := extractNumber(message)
	if !ok || count == 0 {
		count = defaultListCount
	}

	files, err := s.backend.List(ctx, "root", count).Unwrap()
	if err != nil {
		return Response{}, fmt.Errorf("failed to list files: %w", err)
	}
	if len(files) == 0 {
		return text("No files found in your Google Drive."), nil
	}

	return Response{
		Content: fmt.Sprintf("Here are your %d most recent files:\n\n%s", len(files), render.FileLines(files)),
		Type:    TypeFileList,
		Data:    files,
	}, nil
}

func (s *Service) search(ctx context.Context, message string) (Response, error) {
	query := extractSearchQuery(message)
	if query == "" {
		return text("Please specify what you want to search for. For example: \"search for documents\" or \"find images\""), nil
	}

	files, err := s.backend.Search(ctx, query, searchPageSize).Unwrap()
	if err != nil {
		return Response{}, fmt.Errorf("search failed: %w", err)
	}
	if len(files) == 0 {
		return text(fmt.Sprintf("No files found matching \"%s\"", query)), nil
	}

	return Response{
		Content: fmt.Sprintf("Found %d files matching \"%s\":\n\n%s", len(files), query, render.FileLines(files)),
		Type:    TypeSearch,
		Data:    files,
	}, nil
}

func (s *Service) uploadInstruction(context.Context, string) (Response, error) {
	return Response{Content: uploadInstructions, Type: TypeUpload}, nil
}

func (s *Service) createFolder(_ context.Context, message string) (Response, error) {
	if extractFolderName(message) == "" {
		return text("Please specify the folder name. For example: \"create a folder called Documents\""), nil
	}
	return text("I'm sorry, I cannot create folders with the current tools."), nil
}

func (s *Service) deleteInstruction(context.Context, string) (Response, error) {
	return Response{Content: deleteInstructions, Type: TypeDelete}, nil
}

func (s *Service) organizeSuggestion(context.Context, string) (Response, error) {
	return Response{Content: organizeSuggestions, Type: TypeOrganize}, nil
}

func (s *Service) storageAnalysis(context.Context, string) (Response, error) {
	return text("I'm sorry, I cannot analyze storage usage with the current tools. I can only search for and read files."), nil
}

func (s *Service) capabilities(_ context.Context, message string) (Response, error) {
	return text(fmt.Sprintf("I understand you want to: \"%s\"\n\n"+
		"I can help you with:\n"+
		"• **June Reports Count** - Navigate to 📁 Shared 📁 Reports 📁 June and count documents\n"+
		"• **Recent Files** - List your most recent files\n"+
		"• **Shared Files** - Show files shared with you\n"+
		"• **Storage Analysis** - Analyze your drive usage\n\n"+
		"Try using one of the quick prompts!", message)), nil
}
