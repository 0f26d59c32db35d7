package model

import "time"

// Report represents the result of one fill run over a page
type Report struct {
	RunID     string     `json:"run_id"`
	Subject   string     `json:"subject"`              // Human-readable page name
	Source    string     `json:"source"`               // URL or file path that was filled
	Trigger   string     `json:"trigger,omitempty"`    // What started the run (manual, ready, mutation, file)
	FilledAt  time.Time  `json:"filled_at"`
	FetchMeta *FetchMeta `json:"fetch_meta,omitempty"` // Only set for URL sources

	Questions []QuestionReport `json:"questions"`
	Summary   Summary          `json:"summary"`
}

// FetchMeta contains HTTP metadata from fetching the source
type FetchMeta struct {
	StatusCode   int               `json:"status_code"`
	ContentType  string            `json:"content_type,omitempty"`
	LastModified string            `json:"last_modified,omitempty"`
	ETag         string            `json:"etag,omitempty"`
	FromCache    bool              `json:"from_cache,omitempty"`
	Headers      map[string]string `json:"headers,omitempty"`
}

// QuestionReport records the decision made for one question
type QuestionReport struct {
	ID         string         `json:"id"`
	Options    []OptionReport `json:"options"`
	Winner     int            `json:"winner"` // Index into Options, -1 when skipped
	WinnerText string         `json:"winner_text,omitempty"`
	Score      int            `json:"score"`
	Fallback   bool           `json:"fallback,omitempty"`
	Changed    bool           `json:"changed"`
	Skipped    bool           `json:"skipped,omitempty"`
}

// OptionReport records the transparent scoring of one option
type OptionReport struct {
	Text     string   `json:"text"`
	Score    int      `json:"score"`
	Matched  []string `json:"matched,omitempty"` // Positive patterns found in the text
	Vetoed   []string `json:"vetoed,omitempty"`  // Negative patterns found in the text
	Bonus    bool     `json:"bonus,omitempty"`
	Selected bool     `json:"selected"` // Selection state before the run
}

// Summary aggregates decisions for display
type Summary struct {
	Total     int `json:"total"`
	Changed   int `json:"changed"`
	Skipped   int `json:"skipped,omitempty"`
	Fallbacks int `json:"fallbacks,omitempty"`
}

// Add accumulates another summary into s
func (s *Summary) Add(other Summary) {
	s.Total += other.Total
	s.Changed += other.Changed
	s.Skipped += other.Skipped
	s.Fallbacks += other.Fallbacks
}
