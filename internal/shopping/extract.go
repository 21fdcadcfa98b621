package shopping

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// Extract pulls a SearchResult out of free-form model text. It takes the span
// from the first '{' to the last '}' and decodes it. When no span exists or the
// span does not decode, it returns FallbackResult(text) and false.
func Extract(text string) (SearchResult, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end < start {
		return FallbackResult(text), false
	}

	var result SearchResult
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		slog.Debug("model output is not a JSON object", "error", err)
		return FallbackResult(text), false
	}
	if result.Products == nil {
		result.Products = []Product{}
	}
	return result, true
}
