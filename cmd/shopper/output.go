package main

import (
	"fmt"
	"io"
	"os"

	"github.com/kalambet/shopper/internal/shopping"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
	colorBold   = "\033[1m"
	colorStrike = "\033[9m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

// printResult renders a search result as terminal cards. Empty sections are
// left out.
func printResult(w io.Writer, r shopping.SearchResult) {
	if !r.Summary.Empty() {
		fmt.Fprintf(w, "%s\n\n", r.Summary)
	}

	if len(r.Products) > 0 {
		fmt.Fprintln(w, colorize(colorBold, fmt.Sprintf("Found %d Options", len(r.Products))))
		for _, p := range r.Products {
			fmt.Fprintln(w)
			printCard(w, p)
		}
		fmt.Fprintln(w)
	}

	if !r.Recommendation.Empty() {
		fmt.Fprintf(w, "%s %s\n", colorize(colorGreen+colorBold, "Recommendation:"), r.Recommendation)
	}
}

func printCard(w io.Writer, p shopping.Product) {
	fmt.Fprintf(w, "  %s\n", colorize(colorBold, p.Name.String()))

	price := colorize(colorGreen+colorBold, p.Price.String())
	if !p.OriginalPrice.Empty() {
		price += " " + colorize(colorGray+colorStrike, p.OriginalPrice.String())
	}
	fmt.Fprintf(w, "    %s\n", price)

	meta := ""
	if !p.Rating.Empty() {
		meta = colorize(colorYellow, "★ "+p.Rating.String())
		if !p.Reviews.Empty() {
			meta += " (" + p.Reviews.String() + ")"
		}
		meta += " "
	}
	fmt.Fprintf(w, "    %s• %s\n", meta, p.Seller)

	for _, h := range p.CardHighlights() {
		fmt.Fprintf(w, "    • %s\n", h)
	}
	if !p.URL.Empty() {
		fmt.Fprintf(w, "    %s %s\n", colorize(colorBlue, "View Product:"), p.URL)
	}
	if !p.Image.Empty() {
		fmt.Fprintf(w, "    %s %s\n", colorize(colorGray, "Image:"), p.Image)
	}
}
