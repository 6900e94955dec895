package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/profilermesh/tool"
)

// TopicCount pairs a topic with its question frequency.
type TopicCount struct {
	Topic string `json:"topic"`
	Count int    `json:"count"`
}

// CognitiveComplexity splits question counts into lower-order
// (remember/understand) and higher-order (apply and above) thinking levels.
type CognitiveComplexity struct {
	LowerOrder  int `json:"lower_order"`
	HigherOrder int `json:"higher_order"`
}

// Statistics is the frequency analysis of a tagged question set.
type Statistics struct {
	TotalQuestions      int                 `json:"total_questions"`
	TopicDistribution   map[string]int      `json:"topic_distribution"`
	BloomDistribution   map[string]int      `json:"bloom_distribution"`
	TopTopics           []TopicCount        `json:"top_topics"`
	CognitiveComplexity CognitiveComplexity `json:"cognitive_complexity"`
}

var lowerOrderLevels = map[string]bool{
	"remember":   true,
	"understand": true,
}

var higherOrderLevels = map[string]bool{
	"apply":    true,
	"analyze":  true,
	"evaluate": true,
	"create":   true,
}

// AnalyzeStatistics computes topic and Bloom's taxonomy distributions from a
// JSON payload of tagged questions. The payload is either a bare array of
// question objects or an object with a "questions" array; each question may
// carry "topic" and "bloom_level" fields, missing ones count as "Unknown".
func AnalyzeStatistics(questionsData string) (*Statistics, error) {
	questions, err := parseQuestions(questionsData)
	if err != nil {
		return nil, err
	}

	topicFreq := map[string]int{}
	bloomFreq := map[string]int{}
	for _, q := range questions {
		topicFreq[stringField(q, "topic")]++
		bloomFreq[stringField(q, "bloom_level")]++
	}

	var complexity CognitiveComplexity
	for level, count := range bloomFreq {
		switch {
		case lowerOrderLevels[strings.ToLower(level)]:
			complexity.LowerOrder += count
		case higherOrderLevels[strings.ToLower(level)]:
			complexity.HigherOrder += count
		}
	}

	return &Statistics{
		TotalQuestions:      len(questions),
		TopicDistribution:   topicFreq,
		BloomDistribution:   bloomFreq,
		TopTopics:           topTopics(topicFreq, 5),
		CognitiveComplexity: complexity,
	}, nil
}

// NewAnalyzeStatisticsTool wraps AnalyzeStatistics as a model-callable tool.
func NewAnalyzeStatisticsTool() *tool.Adapter {
	return tool.MustAdapter(
		"analyze_statistics",
		"Analyze statistical patterns in tagged exam questions",
		[]tool.Param{
			{Name: "questions_data", Kind: tool.KindString, Description: "JSON payload of tagged questions", Required: true},
		},
		func(ctx context.Context, args map[string]any) (any, error) {
			data, _ := args["questions_data"].(string)
			return AnalyzeStatistics(data)
		},
	)
}

func parseQuestions(questionsData string) ([]map[string]any, error) {
	var raw any
	if err := json.Unmarshal([]byte(questionsData), &raw); err != nil {
		return nil, fmt.Errorf("parse questions data: %w", err)
	}

	var items []any
	switch v := raw.(type) {
	case map[string]any:
		items, _ = v["questions"].([]any)
	case []any:
		items = v
	default:
		return nil, fmt.Errorf("invalid questions data format")
	}

	var questions []map[string]any
	for _, item := range items {
		if q, ok := item.(map[string]any); ok {
			questions = append(questions, q)
		}
	}
	return questions, nil
}

func stringField(q map[string]any, key string) string {
	if v, ok := q[key].(string); ok && v != "" {
		return v
	}
	return "Unknown"
}

// topTopics returns the n most frequent topics, breaking count ties
// alphabetically for stable output.
func topTopics(freq map[string]int, n int) []TopicCount {
	out := make([]TopicCount, 0, len(freq))
	for topic, count := range freq {
		out = append(out, TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
