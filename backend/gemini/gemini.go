// Package gemini provides a backend.Backend implementation on top of the
// Google Gemini API. It adapts the normalized prompt, system instruction and
// tool declarations into genai content structures and back.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/hupe1980/profilermesh/backend"
)

// Options configures the Gemini backend adapter.
type Options struct {
	// Model is the default model id used when a request leaves Model empty.
	Model string
	// APIKey overrides the GEMINI_API_KEY environment variable.
	APIKey string
}

// Backend wraps the Gemini generate-content API behind backend.Backend.
type Backend struct {
	client *genai.Client
	opts   Options
}

// New creates a Gemini backend using the official client.
func New(ctx context.Context, optFns ...func(o *Options)) (*Backend, error) {
	opts := Options{Model: "gemini-2.0-flash"}
	for _, fn := range optFns {
		fn(&opts)
	}

	cfg := &genai.ClientConfig{}
	if opts.APIKey != "" {
		cfg.APIKey = opts.APIKey
	}

	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}

	return &Backend{client: client, opts: opts}, nil
}

// NewFromClient creates a Gemini backend from an existing client.
func NewFromClient(client *genai.Client, optFns ...func(o *Options)) *Backend {
	opts := Options{Model: "gemini-2.0-flash"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Backend{client: client, opts: opts}
}

// Generate implements the backend.Backend interface.
func (b *Backend) Generate(ctx context.Context, req backend.Request) (*backend.Response, error) {
	model := req.Model
	if model == "" {
		model = b.opts.Model
	}

	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{{Text: req.Prompt}}},
	}

	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(float32(req.Sampling.Temperature)),
		TopP:            genai.Ptr(float32(req.Sampling.TopP)),
		TopK:            genai.Ptr(float32(req.Sampling.TopK)),
		MaxOutputTokens: int32(req.Sampling.MaxOutputTokens),
	}

	if req.SystemInstruction != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.SystemInstruction}},
		}
	}

	if len(req.Tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: buildDeclarations(req.Tools)}}
	}

	resp, err := b.client.Models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini api error: %w", err)
	}

	return extractResponse(resp)
}

// buildDeclarations converts normalized tool declarations into genai function
// declarations, passing the JSON Schema through untyped.
func buildDeclarations(tools []backend.ToolDeclaration) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, len(tools))
	for i, t := range tools {
		decls[i] = &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.Parameters,
		}
	}
	return decls
}

// extractResponse folds candidate parts into either text or a single tool
// call. The first function call part wins; text parts are concatenated.
func extractResponse(resp *genai.GenerateContentResponse) (*backend.Response, error) {
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return nil, fmt.Errorf("gemini response contained no candidates")
	}

	out := &backend.Response{}
	for _, part := range resp.Candidates[0].Content.Parts {
		if part.FunctionCall != nil && out.ToolCall == nil {
			out.ToolCall = &backend.ToolCall{
				Name: part.FunctionCall.Name,
				Args: part.FunctionCall.Args,
			}
			continue
		}
		out.Text += part.Text
	}
	return out, nil
}
