package domain

import "strings"

// Origin records where an InsightResult's text came from.
type Origin string

const (
	OriginGenerated Origin = "generated"
	OriginFallback  Origin = "fallback"
)

// FallbackText is shown whenever a generated insight cannot be produced.
const FallbackText = "No silêncio da mente, encontramos as respostas. Respire fundo e tente novamente."

// InsightRequest is the user's self-described feeling, as typed.
type InsightRequest struct {
	RawInput string
}

// Word returns the trimmed input that is interpolated into the prompt.
func (r InsightRequest) Word() string {
	return strings.TrimSpace(r.RawInput)
}

// Valid reports whether the request may be submitted.
func (r InsightRequest) Valid() bool {
	return r.Word() != ""
}

// InsightResult is the text displayed back to the user.
type InsightResult struct {
	Text   string
	Origin Origin
}

func Generated(text string) InsightResult {
	return InsightResult{Text: text, Origin: OriginGenerated}
}

func Fallback() InsightResult {
	return InsightResult{Text: FallbackText, Origin: OriginFallback}
}
