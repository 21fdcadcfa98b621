package inference

import "strings"

// WebSearchToolType is the server tool version that enables live web search.
const WebSearchToolType = "web_search_20250305"

// Message is a single conversational message in a Messages API request.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Tool declares a server-side tool available to the model.
type Tool struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// WebSearch returns the tool declaration enabling live web search.
func WebSearch() Tool {
	return Tool{Type: WebSearchToolType, Name: "web_search"}
}

// MessageRequest is the body of POST /v1/messages.
type MessageRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	Messages  []Message `json:"messages"`
	Tools     []Tool    `json:"tools,omitempty"`
}

// UserRequest builds a single-message request with the web search tool enabled.
func UserRequest(model string, maxTokens int, prompt string) MessageRequest {
	return MessageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		Messages:  []Message{{Role: "user", Content: prompt}},
		Tools:     []Tool{WebSearch()},
	}
}

// ContentBlock is one typed segment of a response. Only "text" segments carry
// Text; tool-use and tool-result segments are kept for their type only.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// MessageResponse is the subset of the Messages API response this package reads.
type MessageResponse struct {
	ID         string         `json:"id"`
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []ContentBlock `json:"content"`
}

// Text concatenates every text segment in order, with no separator.
func (r *MessageResponse) Text() string {
	if r == nil {
		return ""
	}
	var sb strings.Builder
	for _, b := range r.Content {
		if b.Type == "text" {
			sb.WriteString(b.Text)
		}
	}
	return sb.String()
}

// FirstText returns the first text segment, or "" when there is none.
func (r *MessageResponse) FirstText() string {
	if r == nil {
		return ""
	}
	for _, b := range r.Content {
		if b.Type == "text" {
			return b.Text
		}
	}
	return ""
}
