package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const maxIntroLen = 160

// GeminiGreeter implements Greeter using Google's Gemini models.
type GeminiGreeter struct {
	client *genai.Client
	model  *genai.GenerativeModel
}

// NewGeminiGreeter initializes a new Gemini client.
// apiKey should be provided from configuration.
func NewGeminiGreeter(ctx context.Context, apiKey string) (*GeminiGreeter, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	// Flash keeps latency low; intros are one sentence.
	model := client.GenerativeModel("gemini-2.0-flash")
	model.ResponseMIMEType = "application/json"
	model.SetTemperature(0.7)
	model.SetMaxOutputTokens(128)

	return &GeminiGreeter{
		client: client,
		model:  model,
	}, nil
}

// Close cleans up the Gemini client resources.
func (g *GeminiGreeter) Close() {
	g.client.Close()
}

func (g *GeminiGreeter) Intro(ctx context.Context, from, to Player) (string, error) {
	resp, err := g.model.GenerateContent(ctx, genai.Text(buildIntroPrompt(from, to)))
	if err != nil {
		return "", fmt.Errorf("gemini generation error: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("no response candidates from Gemini")
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			text.WriteString(string(txt))
		}
	}
	return parseIntro(text.String())
}

func parseIntro(raw string) (string, error) {
	clean := cleanJSONString(raw)
	var result introResult
	if err := json.Unmarshal([]byte(clean), &result); err != nil {
		return "", fmt.Errorf("failed to parse JSON response: %w. Raw: %s", err, clean)
	}
	intro := strings.TrimSpace(result.Intro)
	if intro == "" {
		return "", fmt.Errorf("empty intro in Gemini response")
	}
	if len([]rune(intro)) > maxIntroLen {
		intro = string([]rune(intro)[:maxIntroLen])
	}
	return intro, nil
}

func describe(p Player) string {
	var parts []string
	name := p.Name
	if name == "" {
		name = "a player"
	}
	parts = append(parts, name)
	if p.Age != nil {
		parts = append(parts, fmt.Sprintf("age %d", *p.Age))
	}
	if p.Rating != nil {
		parts = append(parts, fmt.Sprintf("DUPR %.2f", *p.Rating))
	}
	return strings.Join(parts, ", ")
}

func buildIntroPrompt(from, to Player) string {
	return fmt.Sprintf(`Role: You write notification copy for "pickleheart", an app that connects pickleball players.

Write ONE friendly sentence (max %d characters) telling the recipient that the sender would like to connect and play.
- Sender: %s
- Recipient: %s
Rules:
- Mention the sender by name. Do not invent facts beyond the data above.
- No hashtags, no emoji, no markdown.

Output JSON Schema:
{"intro": "string"}
`, maxIntroLen, describe(from), describe(to))
}

// cleanJSONString removes markdown code blocks if present (e.g. ```json ... ```)
func cleanJSONString(input string) string {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, "```json")
	input = strings.TrimPrefix(input, "```")
	input = strings.TrimSuffix(input, "```")
	return strings.TrimSpace(input)
}
