package script

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type fakeLLM struct {
	out string
	err error
}

func (f *fakeLLM) ChatCompletion(ctx context.Context, msg string) (string, error) {
	return f.out, f.err
}

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want int
	}{
		{
			name: "plain json",
			out:  `{"scenes": [{"speaker_type": "presenter", "text": "In the beginning"}]}`,
			want: 1,
		},
		{
			name: "fenced json",
			out: "Here is your script:\n```json\n" +
				`{"scenes": [{"speaker_type": "god", "text": "Let there be light"}]}` +
				"\n```",
			want: 1,
		},
		{
			name: "fenced with trailing comma",
			out: "```\n" +
				`{"scenes": [{"speaker_type": "male", "text": "And there was light"},]}` +
				"\n```",
			want: 1,
		},
		{
			name: "embedded in prose",
			out: `Sure! The script object is {"scenes": [{"speaker_type": "female", "text": "Amen"}]} ` +
				"as requested.",
			want: 1,
		},
		{
			name: "multiple scenes",
			out: `{"scenes": [` +
				`{"speaker_type": "presenter", "text": "Today we read from Genesis."},` +
				`{"speaker_type": "god", "text": "Let there be light."},` +
				`{"speaker_type": "presenter", "text": "And there was light."}]}`,
			want: 3,
		},
		{
			name: "uppercase speaker is normalized",
			out:  `{"scenes": [{"speaker_type": "Presenter", "text": "Welcome"}]}`,
			want: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			scenes, err := Parse(tt.out)
			if err != nil {
				t.Fatalf("couldn't parse: %v", err)
			}
			if len(scenes) != tt.want {
				t.Errorf("want %d scenes, got %d", tt.want, len(scenes))
			}
			for _, s := range scenes {
				if !validSpeakers[s.SpeakerType] {
					t.Errorf("invalid speaker type %q", s.SpeakerType)
				}
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		out  string
	}{
		{name: "garbage", out: "I'm sorry, I can't help with that."},
		{name: "empty scenes", out: `{"scenes": []}`},
		{name: "invalid speaker", out: `{"scenes": [{"speaker_type": "narrator", "text": "hi"}]}`},
		{name: "empty text", out: `{"scenes": [{"speaker_type": "male", "text": "  "}]}`},
		{name: "unbalanced", out: `{"scenes": [{"speaker_type": "male", "text": "hi"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.out)
			if err == nil {
				t.Fatal("want error, got nil")
			}
			var serr *Error
			if !errors.As(err, &serr) {
				t.Errorf("want *Error, got %T", err)
			}
		})
	}
}

func TestGenerate(t *testing.T) {
	llm := &fakeLLM{
		out: `{"scenes": [{"speaker_type": "angel", "text": "Fear not"}]}`,
	}
	scenes, err := Generate(context.Background(), llm, "Luke 2:10", "inspirational", 60)
	if err != nil {
		t.Fatalf("couldn't generate: %v", err)
	}
	if len(scenes) != 1 || scenes[0].SpeakerType != "angel" {
		t.Errorf("unexpected scenes: %+v", scenes)
	}
}

func TestGenerateLLMError(t *testing.T) {
	llm := &fakeLLM{err: errors.New("boom")}
	if _, err := Generate(context.Background(), llm, "text", "minimal", 60); err == nil {
		t.Fatal("want error, got nil")
	}
}

func TestExtractTitle(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want string
	}{
		{
			name: "second quote wins",
			out:  `Based on "John 3:16", a good title is "Love So Great".`,
			want: "Love So Great",
		},
		{
			name: "single quote",
			out:  `How about "Morning Mercies"?`,
			want: "Morning Mercies",
		},
		{
			name: "no quotes falls back to first line",
			out:  "Everlasting Light\n\nThis title reflects the passage.",
			want: "Everlasting Light",
		},
		{
			name: "empty",
			out:  "   \n  ",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ExtractTitle(tt.out); got != tt.want {
				t.Errorf("want %q, got %q", tt.want, got)
			}
		})
	}
}

func TestTitle(t *testing.T) {
	llm := &fakeLLM{out: `Here's a title for "Psalm 23": "Still Waters"`}
	title, err := Title(context.Background(), llm, "Psalm 23")
	if err != nil {
		t.Fatalf("couldn't generate title: %v", err)
	}
	if title != "Still Waters" {
		t.Errorf("want %q, got %q", "Still Waters", title)
	}
}

func TestLyrics(t *testing.T) {
	prompt := Lyrics("The Lord is my shepherd", "gospel", "uplifting")
	for _, want := range []string{"gospel", "uplifting", "The Lord is my shepherd"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q: %s", want, prompt)
		}
	}
}
