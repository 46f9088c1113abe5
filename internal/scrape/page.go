package scrape

import (
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/prof-insights/internal/insight"
)

// SearchURL builds the professor search URL for a name and school.
func SearchURL(baseURL, professorName, university string) string {
	query := url.QueryEscape(strings.TrimSpace(professorName + " " + university))
	return strings.TrimRight(baseURL, "/") + "/search/professors?q=" + query
}

// FirstProfessorLink returns the href of the first professor result on a
// search page, resolved against the base URL.
func FirstProfessorLink(baseURL string, body io.Reader) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("parse search page: %w", err)
	}
	href, ok := doc.Find(`a[href^="/professor/"]`).First().Attr("href")
	if !ok {
		return "", fmt.Errorf("no professor results on search page")
	}
	return strings.TrimRight(baseURL, "/") + href, nil
}

// ParsePage extracts the ratings and summary stats from a professor page.
// Missing fields are left at their zero value; the caller normalizes.
func ParsePage(body io.Reader) (insight.ScrapeResult, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return insight.ScrapeResult{}, fmt.Errorf("parse professor page: %w", err)
	}
	result := insight.ScrapeResult{
		Stats: parseStats(doc),
	}
	doc.Find(`div[class*="Rating__RatingBody"]`).Each(func(_ int, sel *goquery.Selection) {
		result.Reviews = append(result.Reviews, parseReview(sel))
	})
	return result, nil
}

func parseStats(doc *goquery.Document) insight.ProfessorStats {
	stats := insight.ProfessorStats{
		OverallRating: parseFloat(doc.Find(`div[class*="RatingValue__Numerator"]`).First().Text()),
		RatingCount:   leadingInt(doc.Find(`div[class*="RatingValue__NumRatings"] a`).First().Text()),
		Department:    strings.TrimSuffix(text(doc.Find(`a[class*="TeacherDepartment"]`).First()), " department"),
	}

	// The feedback block carries two numbers: would-take-again then difficulty.
	doc.Find(`div[class*="FeedbackItem__FeedbackNumber"]`).Each(func(i int, sel *goquery.Selection) {
		value := strings.TrimSpace(sel.Text())
		switch {
		case strings.HasSuffix(value, "%"):
			stats.WouldTakeAgainPct = parseFloat(value)
		case i <= 1:
			stats.DifficultyLevel = parseFloat(value)
		}
	})
	return stats
}

func parseReview(sel *goquery.Selection) insight.Review {
	review := insight.Review{
		Course:  text(sel.Find(`div[class*="RatingHeader__StyledClass"]`).First()),
		Date:    text(sel.Find(`div[class*="TimeStamp__StyledTimeStamp"]`).First()),
		Comment: text(sel.Find(`div[class*="Comments__StyledComments"]`).First()),
	}
	sel.Find(`div[class*="CardNumRating__CardNumRatingNumber"]`).Each(func(i int, num *goquery.Selection) {
		switch i {
		case 0:
			review.Quality = parseFloat(num.Text())
		case 1:
			review.Difficulty = parseFloat(num.Text())
		}
	})
	sel.Find(`span[class*="Tag-"]`).Each(func(_ int, tag *goquery.Selection) {
		if t := strings.TrimSpace(tag.Text()); t != "" {
			review.Tags = append(review.Tags, t)
		}
	})
	sel.Find(`div[class*="Thumbs__ThumbsDisplay"]`).Each(func(i int, thumb *goquery.Selection) {
		switch i {
		case 0:
			review.ThumbsUp = leadingInt(thumb.Text())
		case 1:
			review.ThumbsDown = leadingInt(thumb.Text())
		}
	})
	return review
}

func text(sel *goquery.Selection) string {
	return strings.TrimSpace(sel.Text())
}

func parseFloat(raw string) float64 {
	raw = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(raw), "%"))
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0
	}
	return v
}

// leadingInt parses the integer prefix of strings like "128 ratings".
func leadingInt(raw string) int {
	raw = strings.TrimSpace(raw)
	end := 0
	for end < len(raw) && raw[end] >= '0' && raw[end] <= '9' {
		end++
	}
	if end == 0 {
		return 0
	}
	v, err := strconv.Atoi(raw[:end])
	if err != nil {
		return 0
	}
	return v
}
