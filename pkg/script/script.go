// Package script turns source text into structured video scripts,
// titles and lyrics using a chat completion model. Model output is
// treated as untrusted: JSON is recovered from markdown fences and
// minor syntax damage before giving up.
package script

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// LLM is the completion interface the generator needs.
type LLM interface {
	ChatCompletion(ctx context.Context, msg string) (string, error)
}

// Scene is one segment of a generated script: a speaker role and the
// text it delivers.
type Scene struct {
	SpeakerType string `json:"speaker_type"`
	Text        string `json:"text"`
}

var validSpeakers = map[string]bool{
	"presenter": true,
	"male":      true,
	"female":    true,
	"god":       true,
	"angel":     true,
}

// Error indicates the model output couldn't be turned into a valid
// script even after recovery attempts.
type Error struct {
	Reason string
	Output string
}

func (e *Error) Error() string {
	return fmt.Sprintf("script: %s", e.Reason)
}

const scriptPrompt = `Write a short video script based on the following Bible passage.
Style: %s. Target duration: %d seconds.
Use 4 to 8 scenes of one or two sentences each.

Respond with JSON only, in this exact shape:
{"scenes": [{"speaker_type": "presenter", "text": "..."}]}

Allowed speaker_type values: presenter, male, female, god, angel.
Use god only for direct words of God and angel only for angelic messengers.

Passage:
%s`

// Generate asks the model for a scene-by-scene script and parses the
// response.
func Generate(ctx context.Context, llm LLM, sourceText, style string, durationSecs int) ([]Scene, error) {
	prompt := fmt.Sprintf(scriptPrompt, style, durationSecs, sourceText)
	out, err := llm.ChatCompletion(ctx, prompt)
	if err != nil {
		return nil, fmt.Errorf("script: couldn't generate script: %w", err)
	}
	return Parse(out)
}

type scriptPayload struct {
	Scenes []Scene `json:"scenes"`
}

// Parse extracts the scene list from raw model output. It tries a
// direct decode first, then strips markdown fences, then hunts for a
// balanced JSON object, then repairs trailing commas.
func Parse(out string) ([]Scene, error) {
	candidates := []string{
		strings.TrimSpace(out),
		stripFences(out),
	}
	if m := matchBrackets(out); m != "" {
		candidates = append(candidates, m)
	}
	var lastErr error
	for _, c := range candidates {
		if c == "" {
			continue
		}
		scenes, err := decode(c)
		if err == nil {
			return scenes, nil
		}
		lastErr = err
		scenes, err = decode(fixTrailingCommas(c))
		if err == nil {
			return scenes, nil
		}
		lastErr = err
	}
	// Content errors (bad speaker, empty scenes) are reported as is,
	// syntax errors collapse into a single parse failure.
	var serr *Error
	if errors.As(lastErr, &serr) {
		return nil, serr
	}
	return nil, &Error{Reason: "couldn't parse model output as JSON", Output: out}
}

func decode(s string) ([]Scene, error) {
	var payload scriptPayload
	if err := json.Unmarshal([]byte(s), &payload); err != nil {
		return nil, err
	}
	if len(payload.Scenes) == 0 {
		return nil, &Error{Reason: "script has no scenes", Output: s}
	}
	for i, scene := range payload.Scenes {
		speaker := strings.ToLower(strings.TrimSpace(scene.SpeakerType))
		if !validSpeakers[speaker] {
			return nil, &Error{
				Reason: fmt.Sprintf("scene %d has invalid speaker type %q", i, scene.SpeakerType),
				Output: s,
			}
		}
		if strings.TrimSpace(scene.Text) == "" {
			return nil, &Error{
				Reason: fmt.Sprintf("scene %d has empty text", i),
				Output: s,
			}
		}
		payload.Scenes[i].SpeakerType = speaker
	}
	return payload.Scenes, nil
}

var fenceRegexp = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)\\s*```")

func stripFences(s string) string {
	m := fenceRegexp.FindStringSubmatch(s)
	if len(m) < 2 {
		return ""
	}
	return strings.TrimSpace(m[1])
}

// matchBrackets returns the first balanced {...} or [...] block found
// in the text, ignoring brackets inside JSON strings.
func matchBrackets(s string) string {
	start := -1
	var open, close rune
	for i, r := range s {
		if r == '{' || r == '[' {
			start = i
			open = r
			if r == '{' {
				close = '}'
			} else {
				close = ']'
			}
			break
		}
	}
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i, r := range s[start:] {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case open:
			depth++
		case close:
			depth--
			if depth == 0 {
				return s[start : start+i+1]
			}
		}
	}
	return ""
}

var trailingCommaRegexp = regexp.MustCompile(`,\s*([}\]])`)

func fixTrailingCommas(s string) string {
	return trailingCommaRegexp.ReplaceAllString(s, "$1")
}

const titlePrompt = `Suggest a short, memorable title for a song based on this Bible passage.
Wrap the title itself in double quotes.

Passage:
%s`

// Title asks the model for a song title. Models tend to answer in the
// form `Here is a title: "The Actual Title"`, sometimes quoting the
// passage first, so the second quoted substring wins when there are
// two or more.
func Title(ctx context.Context, llm LLM, verse string) (string, error) {
	out, err := llm.ChatCompletion(ctx, fmt.Sprintf(titlePrompt, verse))
	if err != nil {
		return "", fmt.Errorf("script: couldn't generate title: %w", err)
	}
	title := ExtractTitle(out)
	if title == "" {
		return "", &Error{Reason: "couldn't extract title from model output", Output: out}
	}
	return title, nil
}

var quotedRegexp = regexp.MustCompile(`"([^"]+)"`)

// ExtractTitle pulls the title out of raw model output: second quoted
// substring if present, else the first, else the first non-empty line.
func ExtractTitle(out string) string {
	matches := quotedRegexp.FindAllStringSubmatch(out, -1)
	switch {
	case len(matches) >= 2:
		return strings.TrimSpace(matches[1][1])
	case len(matches) == 1:
		return strings.TrimSpace(matches[0][1])
	}
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			return line
		}
	}
	return ""
}

// Lyrics builds the generation prompt for a song based on a passage,
// genre and mood. The prompt itself is the lyric input handed to the
// music provider.
func Lyrics(verse, genre, mood string) string {
	return fmt.Sprintf(
		"Create a %s %s song inspired by the following Bible passage. "+
			"Stay faithful to the meaning of the text:\n\n%s",
		mood, genre, verse,
	)
}
