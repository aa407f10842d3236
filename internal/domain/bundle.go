package domain

import "strings"

// NoContextText is the sentinel passage used when no source found anything.
const NoContextText = "No context found in databases."

// PassageSeparator joins passages when the bundle is serialized for a prompt.
const PassageSeparator = "\n\n"

// Passage sources.
const (
	SourceVector = "vector"
	SourceGraph  = "graph"
	SourceNone   = "none"
)

// Passage is one piece of retrieved text.
type Passage struct {
	Text   string  `json:"text"`
	Source string  `json:"source"`
	Score  float32 `json:"score,omitempty"`
	DocID  string  `json:"doc_id,omitempty"`
}

// Bundle is the ordered, bounded context assembled for one query.
type Bundle struct {
	Passages     []Passage        `json:"passages"`
	SourceErrors map[string]error `json:"-"`
}

// SentinelPassage returns the "no context found" placeholder.
func SentinelPassage() Passage {
	return Passage{Text: NoContextText, Source: SourceNone}
}

// IsSentinel reports whether the bundle holds only the placeholder passage.
func (b Bundle) IsSentinel() bool {
	return len(b.Passages) == 1 && b.Passages[0].Source == SourceNone
}

// Serialize joins the passage texts with a blank line.
func (b Bundle) Serialize() string {
	texts := make([]string, len(b.Passages))
	for i, p := range b.Passages {
		texts[i] = p.Text
	}
	return strings.Join(texts, PassageSeparator)
}

// Degraded reports whether at least one source failed for this query.
func (b Bundle) Degraded() bool {
	return len(b.SourceErrors) > 0
}

// ErrorStrings renders SourceErrors for JSON responses.
func (b Bundle) ErrorStrings() map[string]string {
	if len(b.SourceErrors) == 0 {
		return nil
	}
	out := make(map[string]string, len(b.SourceErrors))
	for k, v := range b.SourceErrors {
		out[k] = v.Error()
	}
	return out
}
