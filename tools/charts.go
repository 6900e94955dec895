package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hupe1980/profilermesh/tool"
)

// ChartResult describes a rendered trend chart.
type ChartResult struct {
	ChartPath string `json:"chart_path"`
	ChartType string `json:"chart_type"`
	Success   bool   `json:"success"`
	Message   string `json:"message"`
}

const (
	panelWidth  = 640
	panelHeight = 520
	chartMargin = 60
)

var pieColors = []string{
	"#87ceeb", "#f08080", "#90ee90", "#ffd700", "#dda0dd",
	"#ffa07a", "#20b2aa", "#b0c4de", "#f4a460", "#9370db",
}

// VisualizeTrends renders the topic and Bloom's level distributions of a
// statistics payload into an SVG file with two side-by-side panels. The
// topic panel honors chartType ("bar" or "pie"), the Bloom panel is always
// a bar chart.
func VisualizeTrends(statistics, outputPath, chartType string) (*ChartResult, error) {
	if chartType != "bar" && chartType != "pie" {
		return nil, fmt.Errorf("unsupported chart type %q", chartType)
	}

	var stats Statistics
	if err := json.Unmarshal([]byte(statistics), &stats); err != nil {
		return nil, fmt.Errorf("parse statistics: %w", err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" font-family="sans-serif">`,
		2*panelWidth+3*chartMargin, panelHeight+2*chartMargin)
	sb.WriteString(`<rect width="100%" height="100%" fill="white"/>`)

	topicPanel := panel{x: chartMargin, y: chartMargin, title: "Topic Distribution", color: "#87ceeb"}
	if chartType == "pie" {
		topicPanel.renderPie(&sb, stats.TopicDistribution)
	} else {
		topicPanel.renderBars(&sb, stats.TopicDistribution)
	}

	bloomPanel := panel{
		x:     panelWidth + 2*chartMargin,
		y:     chartMargin,
		title: "Cognitive Complexity Distribution",
		color: "#f08080",
	}
	bloomPanel.renderBars(&sb, stats.BloomDistribution)

	sb.WriteString(`</svg>`)

	if dir := filepath.Dir(outputPath); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output directory: %w", err)
		}
	}
	if err := os.WriteFile(outputPath, []byte(sb.String()), 0o644); err != nil {
		return nil, fmt.Errorf("write chart: %w", err)
	}

	return &ChartResult{
		ChartPath: outputPath,
		ChartType: chartType,
		Success:   true,
		Message:   fmt.Sprintf("Chart saved to %s", outputPath),
	}, nil
}

// NewVisualizeTrendsTool wraps VisualizeTrends as a model-callable tool.
func NewVisualizeTrendsTool() *tool.Adapter {
	return tool.MustAdapter(
		"visualize_trends",
		"Create a trend chart from exam question statistics",
		[]tool.Param{
			{Name: "statistics", Kind: tool.KindString, Description: "JSON statistics payload", Required: true},
			{Name: "output_path", Kind: tool.KindString, Description: "Path to save the chart", Default: "trends_chart.svg"},
			{Name: "chart_type", Kind: tool.KindString, Description: "Chart type: bar or pie", Default: "bar"},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			statistics, _ := args["statistics"].(string)
			outputPath, _ := args["output_path"].(string)
			chartType, _ := args["chart_type"].(string)
			return VisualizeTrends(statistics, outputPath, chartType)
		},
	)
}

type panel struct {
	x, y  int
	title string
	color string
}

// sortedLabels returns the distribution keys in deterministic order.
func sortedLabels(dist map[string]int) []string {
	labels := make([]string, 0, len(dist))
	for label := range dist {
		labels = append(labels, label)
	}
	sort.Strings(labels)
	return labels
}

func (p panel) renderTitle(sb *strings.Builder) {
	fmt.Fprintf(sb, `<text x="%d" y="%d" text-anchor="middle" font-size="18" font-weight="bold">%s</text>`,
		p.x+panelWidth/2, p.y-20, escapeXML(p.title))
}

func (p panel) renderBars(sb *strings.Builder, dist map[string]int) {
	p.renderTitle(sb)
	labels := sortedLabels(dist)
	if len(labels) == 0 {
		return
	}

	maxCount := 0
	for _, label := range labels {
		if dist[label] > maxCount {
			maxCount = dist[label]
		}
	}

	plotHeight := panelHeight - 80
	barSlot := panelWidth / len(labels)
	barWidth := barSlot * 7 / 10

	for i, label := range labels {
		count := dist[label]
		barHeight := 0
		if maxCount > 0 {
			barHeight = plotHeight * count / maxCount
		}
		bx := p.x + i*barSlot + (barSlot-barWidth)/2
		by := p.y + plotHeight - barHeight

		fmt.Fprintf(sb, `<rect x="%d" y="%d" width="%d" height="%d" fill="%s"/>`,
			bx, by, barWidth, barHeight, p.color)
		fmt.Fprintf(sb, `<text x="%d" y="%d" text-anchor="middle" font-size="12">%d</text>`,
			bx+barWidth/2, by-6, count)
		fmt.Fprintf(sb, `<text x="%d" y="%d" text-anchor="end" font-size="12" transform="rotate(-45 %d %d)">%s</text>`,
			bx+barWidth/2, p.y+plotHeight+16, bx+barWidth/2, p.y+plotHeight+16, escapeXML(label))
	}

	// axis line
	fmt.Fprintf(sb, `<line x1="%d" y1="%d" x2="%d" y2="%d" stroke="black"/>`,
		p.x, p.y+plotHeight, p.x+panelWidth, p.y+plotHeight)
}

func (p panel) renderPie(sb *strings.Builder, dist map[string]int) {
	p.renderTitle(sb)
	labels := sortedLabels(dist)

	total := 0
	for _, label := range labels {
		total += dist[label]
	}
	if total == 0 {
		return
	}

	cx := float64(p.x + panelWidth/2)
	cy := float64(p.y + panelHeight/2 - 40)
	radius := float64(panelHeight)/2 - 80

	angle := -math.Pi / 2
	for i, label := range labels {
		share := float64(dist[label]) / float64(total)
		next := angle + share*2*math.Pi

		x1, y1 := cx+radius*math.Cos(angle), cy+radius*math.Sin(angle)
		x2, y2 := cx+radius*math.Cos(next), cy+radius*math.Sin(next)
		largeArc := 0
		if share > 0.5 {
			largeArc = 1
		}

		color := pieColors[i%len(pieColors)]
		if share >= 1 {
			fmt.Fprintf(sb, `<circle cx="%.1f" cy="%.1f" r="%.1f" fill="%s"/>`, cx, cy, radius, color)
		} else {
			fmt.Fprintf(sb,
				`<path d="M %.1f %.1f L %.1f %.1f A %.1f %.1f 0 %d 1 %.1f %.1f Z" fill="%s"/>`,
				cx, cy, x1, y1, radius, radius, largeArc, x2, y2, color)
		}

		mid := (angle + next) / 2
		lx, ly := cx+(radius+24)*math.Cos(mid), cy+(radius+24)*math.Sin(mid)
		fmt.Fprintf(sb, `<text x="%.1f" y="%.1f" text-anchor="middle" font-size="12">%s (%.1f%%)</text>`,
			lx, ly, escapeXML(label), share*100)

		angle = next
	}
}

func escapeXML(s string) string {
	r := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;", `"`, "&quot;")
	return r.Replace(s)
}
