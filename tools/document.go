package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hupe1980/profilermesh/tool"
)

// Document is the extracted content of one exam file.
type Document struct {
	Filename  string `json:"filename"`
	Content   string `json:"content"`
	PageCount int    `json:"page_count"`
	FilePath  string `json:"file_path"`
}

// ReadDocument extracts the text of a plain-text exam file. Form feed
// characters delimit pages; a file without them counts as a single page.
// Page boundaries are annotated inline so models can cite locations.
func ReadDocument(filePath string) (*Document, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("read document: %w", err)
	}

	pages := strings.Split(string(data), "\f")

	var sb strings.Builder
	for i, page := range pages {
		fmt.Fprintf(&sb, "\n--- Page %d ---\n%s", i+1, page)
	}

	return &Document{
		Filename:  filepath.Base(filePath),
		Content:   sb.String(),
		PageCount: len(pages),
		FilePath:  filePath,
	}, nil
}

// NewReadDocumentTool wraps ReadDocument as a model-callable tool.
func NewReadDocumentTool() *tool.Adapter {
	return tool.MustAdapter(
		"read_document",
		"Extract text content from an exam document file",
		[]tool.Param{
			{Name: "file_path", Kind: tool.KindString, Description: "Path to the document file", Required: true},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			filePath, _ := args["file_path"].(string)
			return ReadDocument(filePath)
		},
	)
}
