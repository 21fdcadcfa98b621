package shopping

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyQuery is returned for blank input; no request must be made for it.
var ErrEmptyQuery = errors.New("query is empty")

const searchPromptTemplate = `You are a shopping assistant. Search for "%s" across e-commerce websites and find the best prices.

Instructions:
1. Search for the product with price information
2. Look for multiple sellers/websites
3. Compare prices and ratings
4. Return results in this EXACT JSON format with no preamble or markdown:

{
  "summary": "Brief summary of findings",
  "products": [
    {
      "name": "Product name",
      "price": "Price with currency",
      "originalPrice": "Original price if on sale",
      "rating": "Rating out of 5",
      "reviews": "Number of reviews",
      "seller": "Website/seller name",
      "url": "Product URL",
      "imageSearch": "Specific search query for this product images",
      "highlights": ["Feature 1", "Feature 2"]
    }
  ],
  "recommendation": "Your recommendation for best value"
}`

const imagePromptTemplate = `Search for images of "%s" and return the first high-quality product image URL you find. Return ONLY the image URL, nothing else.`

// NormalizeQuery trims raw user input and rejects blank queries.
func NormalizeQuery(raw string) (string, error) {
	q := strings.TrimSpace(raw)
	if q == "" {
		return "", ErrEmptyQuery
	}
	return q, nil
}

// BuildSearchPrompt embeds the literal query in the product search instruction.
func BuildSearchPrompt(query string) string {
	return fmt.Sprintf(searchPromptTemplate, query)
}

// BuildImagePrompt asks for a single product image URL.
func BuildImagePrompt(query string) string {
	return fmt.Sprintf(imagePromptTemplate, query)
}
