package tools

import (
	"context"
	"fmt"

	"github.com/hupe1980/profilermesh/tool"
)

// ExamSummary captures the shape of one readable exam in a comparison.
type ExamSummary struct {
	File          string `json:"file"`
	PageCount     int    `json:"page_count"`
	ContentLength int    `json:"content_length"`
}

// Comparison aggregates exam summaries across multiple files.
type Comparison struct {
	TotalExams    int           `json:"total_exams"`
	ExamsAnalyzed []ExamSummary `json:"exams_analyzed"`
	Message       string        `json:"message"`
}

// CompareDocuments reads multiple exam files and summarizes their size and
// page counts for trend analysis. Unreadable files are skipped rather than
// failing the whole comparison.
func CompareDocuments(examFiles []string) (*Comparison, error) {
	if len(examFiles) == 0 {
		return nil, fmt.Errorf("no exam files provided")
	}

	results := []ExamSummary{}
	for _, filePath := range examFiles {
		doc, err := ReadDocument(filePath)
		if err != nil {
			continue
		}
		results = append(results, ExamSummary{
			File:          doc.Filename,
			PageCount:     doc.PageCount,
			ContentLength: len(doc.Content),
		})
	}

	return &Comparison{
		TotalExams:    len(results),
		ExamsAnalyzed: results,
		Message:       fmt.Sprintf("Successfully compared %d exams", len(results)),
	}, nil
}

// NewCompareDocumentsTool wraps CompareDocuments as a model-callable tool.
func NewCompareDocumentsTool() *tool.Adapter {
	return tool.MustAdapter(
		"compare_exams",
		"Compare multiple exam documents to identify trends over time",
		[]tool.Param{
			{Name: "exam_files", Kind: tool.KindArray, Description: "List of exam file paths", Required: true},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			raw, _ := args["exam_files"].([]any)
			files := make([]string, 0, len(raw))
			for _, f := range raw {
				if s, ok := f.(string); ok {
					files = append(files, s)
				}
			}
			return CompareDocuments(files)
		},
	)
}
