package generation

import (
	"fmt"
	"strconv"
	"strings"
)

// Genres accepted for song generation.
var Genres = []string{
	"worship",
	"classical",
	"gospel",
	"contemporary christian",
	"hymn",
	"pop",
	"rock",
	"afrobeat",
}

// Moods accepted for song generation.
var Moods = []string{
	"uplifting",
	"reflective",
	"joyful",
	"somber",
}

// VideoStyles accepted for video generation.
var VideoStyles = []string{
	"inspirational",
	"cinematic",
	"minimal",
	"documentary",
}

// MaxDurationSecs caps the requested duration of any generation.
const MaxDurationSecs = 180

const defaultDurationSecs = 60

func contains(vs []string, v string) bool {
	for _, c := range vs {
		if c == v {
			return true
		}
	}
	return false
}

// Minutes is a duration in minutes that decodes from either a JSON
// number or a numeric string, since clients send both.
type Minutes float64

func (m *Minutes) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*m = 0
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("generation: invalid duration %q", s)
	}
	*m = Minutes(f)
	return nil
}

// Secs converts the requested minutes to seconds, applying the default
// when unset and the cap otherwise.
func (m Minutes) Secs() int {
	secs := int(float64(m) * 60)
	if secs <= 0 {
		return defaultDurationSecs
	}
	if secs > MaxDurationSecs {
		return MaxDurationSecs
	}
	return secs
}

// SongRequest asks for a music generation from a Bible passage. Title
// is optional; when empty one is derived from the passage.
type SongRequest struct {
	Owner      string `json:"-"`
	SourceText string `json:"source_text"`
	Genre      string `json:"genre"`
	Mood       string `json:"mood"`
	Title      string `json:"title"`
}

func (r *SongRequest) validate() error {
	if strings.TrimSpace(r.SourceText) == "" {
		return &ValidationError{Field: "source_text", Message: "is required"}
	}
	r.Genre = strings.ToLower(strings.TrimSpace(r.Genre))
	if r.Genre == "" {
		r.Genre = "worship"
	}
	if !contains(Genres, r.Genre) {
		return &ValidationError{Field: "genre", Message: fmt.Sprintf("must be one of %s", strings.Join(Genres, ", "))}
	}
	r.Mood = strings.ToLower(strings.TrimSpace(r.Mood))
	if r.Mood == "" {
		r.Mood = "uplifting"
	}
	if !contains(Moods, r.Mood) {
		return &ValidationError{Field: "mood", Message: fmt.Sprintf("must be one of %s", strings.Join(Moods, ", "))}
	}
	return nil
}

// VideoRequest asks for an avatar video generation from a Bible passage.
type VideoRequest struct {
	Owner      string  `json:"-"`
	SourceText string  `json:"source_text"`
	Style      string  `json:"video_style"`
	Title      string  `json:"title"`
	Duration   Minutes `json:"duration_minutes"`
}

func (r *VideoRequest) validate() error {
	if strings.TrimSpace(r.SourceText) == "" {
		return &ValidationError{Field: "source_text", Message: "is required"}
	}
	r.Style = strings.ToLower(strings.TrimSpace(r.Style))
	if r.Style == "" {
		r.Style = "inspirational"
	}
	if !contains(VideoStyles, r.Style) {
		return &ValidationError{Field: "style", Message: fmt.Sprintf("must be one of %s", strings.Join(VideoStyles, ", "))}
	}
	return nil
}
