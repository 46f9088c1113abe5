// Package analyze turns scraped reviews into a written summary with Gemini.
package analyze

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/JakeFAU/prof-insights/internal/insight"
)

// Config controls the Gemini analyzer.
type Config struct {
	APIKey      string
	Model       string
	Temperature float32
}

// Analyzer implements insight.Analyzer against the Gemini API.
type Analyzer struct {
	client *genai.Client
	cfg    Config
}

// New creates a Gemini-backed analyzer.
func New(ctx context.Context, cfg Config) (*Analyzer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-1.5-flash"
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("create gemini client: %w", err)
	}
	return &Analyzer{client: client, cfg: cfg}, nil
}

var _ insight.Analyzer = (*Analyzer)(nil)

// Summarize asks the model for a summary of the reviews, optionally focused
// on the student's question.
func (a *Analyzer) Summarize(ctx context.Context, reviews []insight.Review, stats insight.ProfessorStats, question string) (string, error) {
	model := a.client.GenerativeModel(a.cfg.Model)
	model.SetTemperature(a.cfg.Temperature)

	prompt := BuildPrompt(reviews, stats, question)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("generate summary: %w", err)
	}
	return extractText(resp)
}

// Close releases resources held by the client.
func (a *Analyzer) Close() error {
	if a.client != nil {
		return a.client.Close()
	}
	return nil
}

// BuildPrompt assembles the summarization prompt from the scraped data.
func BuildPrompt(reviews []insight.Review, stats insight.ProfessorStats, question string) string {
	var b strings.Builder
	b.WriteString("You are helping a student decide whether to take a class.\n")
	b.WriteString("Summarize the following professor reviews in a few short paragraphs. ")
	b.WriteString("Cover teaching quality, difficulty, and common themes from the comments.\n")
	if question != "" {
		fmt.Fprintf(&b, "The student specifically asked: %q. Answer that question directly, using only the reviews below.\n", question)
	}

	fmt.Fprintf(&b, "\nOverall rating: %.1f across %d ratings\n", stats.OverallRating, stats.RatingCount)
	fmt.Fprintf(&b, "Would take again: %.0f%%\n", stats.WouldTakeAgainPct)
	fmt.Fprintf(&b, "Difficulty level: %.1f\n", stats.DifficultyLevel)
	if stats.Department != "" && stats.Department != insight.MissingFieldPlaceholder {
		fmt.Fprintf(&b, "Department: %s\n", stats.Department)
	}

	b.WriteString("\nReviews:\n")
	for i, review := range reviews {
		fmt.Fprintf(&b, "%d. [quality %.1f, difficulty %.1f] %s (%s): %s\n",
			i+1, review.Quality, review.Difficulty, review.Course, review.Date, review.Comment)
		if len(review.Tags) > 0 {
			fmt.Fprintf(&b, "   tags: %s\n", strings.Join(review.Tags, ", "))
		}
	}
	return b.String()
}

func extractText(resp *genai.GenerateContentResponse) (string, error) {
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates in response")
	}
	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("no content in response")
	}

	var parts []string
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			parts = append(parts, string(text))
		}
	}
	if len(parts) == 0 {
		return "", fmt.Errorf("no text parts in response")
	}
	return strings.Join(parts, ""), nil
}
