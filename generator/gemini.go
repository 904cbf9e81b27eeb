package generator

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

const defaultGeminiModel = "gemini-2.5-flash"

var _ Generator = &Gemini{}

// Gemini generates candidates with the Gemini API
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the Gemini generator
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini api key is required")
	}
	if model == "" {
		model = defaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// Name returns the generator name
func (g *Gemini) Name() string {
	return "gemini:" + g.model
}

// Generate asks the model for a JSON packet
func (g *Gemini) Generate(ctx context.Context, req Request) (*Packet, error) {
	system, user := buildPrompt(req)
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		ResponseMIMEType:  "application/json",
		Temperature:       genai.Ptr[float32](0.2),
		TopP:              genai.Ptr[float32](0.95),
		MaxOutputTokens:   8192,
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(user), config)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, g.Name(), err)
	}
	p, err := DecodePacket(resp.Text())
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnavailable, g.Name(), err)
	}
	p.Source = g.Name()
	return p, nil
}
