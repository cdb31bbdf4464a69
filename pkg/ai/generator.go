package ai

import "context"

// TextGenerator generates text from a system prompt and user prompt.
// All LLM providers (OpenAI-compatible, Gemini) implement this interface.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

// ImageGenerator produces an image for a text prompt and returns its URL.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}
