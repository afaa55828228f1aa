package chat

import "gdrivechat/drive"

// Response types.
const (
	TypeText         = "text"
	TypeError        = "error"
	TypeFallback     = "fallback_mode"
	TypeJuneCount    = "june_reports_count"
	TypeJuneAnalysis = "june_documents_analysis"
	TypeShared       = "shared_files"
	TypeFileList     = "file_list"
	TypeSearch       = "search_results"
	TypeUpload       = "upload_instruction"
	TypeDelete       = "delete_instruction"
	TypeOrganize     = "organize_suggestion"
)

// Response is the assistant reply to one message.
type Response struct {
	Content string `json:"content"`
	Type    string `json:"type"`
	Data    any    `json:"data,omitempty"`
}

type JuneCountData struct {
	DocumentCount int                `json:"documentCount"`
	TotalFound    int                `json:"totalFound"`
	Documents     []drive.FileRecord `json:"documents"`
}

type JuneAnalysisData struct {
	Documents []drive.FileRecord `json:"documents"`
}

func text(content string) Response {
	return Response{Content: content, Type: TypeText}
}
