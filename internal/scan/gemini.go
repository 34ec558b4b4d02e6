package scan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"tally/internal/core"
)

const defaultModel = "gemini-2.5-flash"

// GeminiScanner sends receipt images to the Gemini API and parses the
// structured reply into a Draft.
type GeminiScanner struct {
	client *genai.Client
	model  string
}

// NewGeminiScanner authenticates with the given API key. The model name
// may be empty, in which case the default flash model is used.
func NewGeminiScanner(ctx context.Context, apiKey, model string) (*GeminiScanner, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &GeminiScanner{client: client, model: model}, nil
}

func (s *GeminiScanner) Close() error {
	return s.client.Close()
}

// Scan extracts an expense draft from the image. Any failure returns a
// wrapped ErrNoDraft; the caller falls back to manual entry.
func (s *GeminiScanner) Scan(ctx context.Context, image []byte, mimeType string, categoryNames []string) (*Draft, error) {
	model := s.client.GenerativeModel(s.model)
	model.ResponseMIMEType = "application/json"
	model.ResponseSchema = draftSchema(categoryNames)

	resp, err := model.GenerateContent(ctx,
		genai.ImageData(imageFormat(mimeType), image),
		genai.Text(scanPrompt(categoryNames)),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: generate content: %v", ErrNoDraft, err)
	}

	text, err := responseText(resp)
	if err != nil {
		return nil, err
	}

	draft, err := ParseDraft(text)
	if err != nil {
		slog.WarnContext(ctx, "Unparsable scan response", "error", err, "model", s.model)
		return nil, err
	}
	return draft, nil
}

func scanPrompt(categoryNames []string) string {
	list := strings.Join(categoryNames, ", ")
	return "Analyze this receipt. Extract the total amount, the date (in YYYY-MM-DD format), " +
		"and a concise name for the expense (e.g., 'Groceries at Store Name'). " +
		"From the list of available categories [" + list + "], select the most appropriate one " +
		"for this expense. If any field cannot be determined, use a sensible default."
}

func draftSchema(categoryNames []string) *genai.Schema {
	return &genai.Schema{
		Type: genai.TypeObject,
		Properties: map[string]*genai.Schema{
			"name": {
				Type:        genai.TypeString,
				Description: "A short, descriptive name for the expense.",
			},
			"amount": {
				Type:        genai.TypeNumber,
				Description: "The total amount of the expense.",
			},
			"date": {
				Type:        genai.TypeString,
				Description: "The date of the transaction in YYYY-MM-DD format.",
			},
			"categoryName": {
				Type:        genai.TypeString,
				Description: "The most fitting category from the provided list: [" + strings.Join(categoryNames, ", ") + "].",
			},
		},
		Required: []string{"name", "amount", "date", "categoryName"},
	}
}

// responseText concatenates the text parts of the first candidate.
func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("%w: empty response", ErrNoDraft)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if text, ok := part.(genai.Text); ok {
			b.WriteString(string(text))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("%w: no text in response", ErrNoDraft)
	}
	return b.String(), nil
}

// imageFormat maps a MIME type to the format label the API expects
// ("image/jpeg" -> "jpeg"). Unknown types pass through unchanged and let
// the API reject them.
func imageFormat(mimeType string) string {
	format := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(mimeType)), "image/")
	if format == "jpg" {
		format = "jpeg"
	}
	return format
}

// CategoryNames projects the category list to names, in order, for the
// scan prompt.
func CategoryNames(categories []core.Category) []string {
	names := make([]string, len(categories))
	for i, c := range categories {
		names[i] = c.Name
	}
	return names
}
