package shopping

import (
	"bytes"
	"encoding/json"
	"slices"
	"strings"
)

// Fixed texts shown when the model output cannot be used.
const (
	FallbackRecommendation = "Please try refining your search query."
	SearchErrorSummary     = "I encountered an error searching for products. Please try again with a different query."
	GenericErrorSummary    = "Sorry, I encountered an error. Please try again."
)

// FallbackSummaryLimit bounds the raw-text prefix used as a fallback summary.
const FallbackSummaryLimit = 500

// cardHighlights is how many highlights a product card shows.
const cardHighlights = 2

// Text is a best-effort scalar decoded from model output. Strings decode as-is,
// numbers and booleans keep their literal form, and null, objects and arrays
// decode as empty.
type Text string

func (t *Text) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		*t = ""
		return nil
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*t = Text(s)
	case '{', '[', 'n':
		*t = ""
	default:
		*t = Text(data)
	}
	return nil
}

func (t Text) String() string { return string(t) }

// Empty reports whether the text is blank.
func (t Text) Empty() bool { return strings.TrimSpace(string(t)) == "" }

// TextList decodes either a JSON array of scalars or a single scalar.
type TextList []string

func (l *TextList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '[' {
		var t Text
		if err := t.UnmarshalJSON(data); err != nil {
			return err
		}
		if t.Empty() {
			*l = nil
		} else {
			*l = TextList{string(t)}
		}
		return nil
	}

	var items []Text
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make(TextList, 0, len(items))
	for _, it := range items {
		if !it.Empty() {
			out = append(out, string(it))
		}
	}
	*l = out
	return nil
}

// Product is one offer returned by the model. Values are never mutated after
// decoding; enrichment produces copies through WithImage.
type Product struct {
	Name          Text     `json:"name"`
	Price         Text     `json:"price"`
	OriginalPrice Text     `json:"originalPrice,omitempty"`
	Rating        Text     `json:"rating,omitempty"`
	Reviews       Text     `json:"reviews,omitempty"`
	Seller        Text     `json:"seller"`
	URL           Text     `json:"url,omitempty"`
	ImageSearch   Text     `json:"imageSearch,omitempty"`
	Highlights    TextList `json:"highlights"`
	Image         Text     `json:"image,omitempty"`
}

// ImageQuery returns the lookup text for an image search: the imageSearch hint
// when present, otherwise the product name.
func (p Product) ImageQuery() string {
	if q := strings.TrimSpace(string(p.ImageSearch)); q != "" {
		return q
	}
	return strings.TrimSpace(string(p.Name))
}

// WithImage returns a copy of p carrying the given image URL.
func (p Product) WithImage(url string) Product {
	out := p
	out.Highlights = slices.Clone(p.Highlights)
	out.Image = Text(url)
	return out
}

// CardHighlights returns the highlights shown on a product card.
func (p Product) CardHighlights() []string {
	if len(p.Highlights) <= cardHighlights {
		return p.Highlights
	}
	return p.Highlights[:cardHighlights]
}

// SearchResult is the structured assistant payload.
type SearchResult struct {
	Summary        Text      `json:"summary"`
	Products       []Product `json:"products"`
	Recommendation Text      `json:"recommendation"`
}

// WithProducts returns a copy of r with its product list replaced.
func (r SearchResult) WithProducts(products []Product) SearchResult {
	r.Products = products
	return r
}

// FallbackResult wraps unusable model output: a bounded prefix of the raw
// text, no products and the refine-your-query hint.
func FallbackResult(raw string) SearchResult {
	return SearchResult{
		Summary:        Text(truncateRunes(raw, FallbackSummaryLimit)),
		Products:       []Product{},
		Recommendation: FallbackRecommendation,
	}
}

// SearchErrorResult is returned when the product search call itself failed.
func SearchErrorResult() SearchResult {
	return SearchResult{Summary: SearchErrorSummary, Products: []Product{}}
}

// GenericErrorResult is returned when a submission failed unexpectedly.
func GenericErrorResult() SearchResult {
	return SearchResult{Summary: GenericErrorSummary, Products: []Product{}}
}

func truncateRunes(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
