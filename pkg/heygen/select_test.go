package heygen

import "testing"

var testVoices = []Voice{
	{VoiceID: "v1", Name: "Amber", Gender: "female"},
	{VoiceID: "v2", Name: "Deep Marcus", Gender: "male"},
	{VoiceID: "v3", Name: "Tom", Gender: "male"},
	{VoiceID: "v4", Name: "River", Gender: "neutral"},
}

func TestSelectVoice(t *testing.T) {
	tests := []struct {
		speaker string
		want    string
	}{
		{speaker: "god", want: "v2"},
		{speaker: "angel", want: "v1"},
		{speaker: "male", want: "v2"},
		{speaker: "female", want: "v1"},
		{speaker: "presenter", want: "v4"},
		{speaker: "narrator", want: "v4"},
		{speaker: "GOD", want: "v2"},
	}
	for _, tt := range tests {
		t.Run(tt.speaker, func(t *testing.T) {
			got, err := SelectVoice(testVoices, tt.speaker)
			if err != nil {
				t.Fatalf("couldn't select voice: %v", err)
			}
			if got.VoiceID != tt.want {
				t.Errorf("want voice %s, got %s", tt.want, got.VoiceID)
			}
		})
	}
}

func TestSelectVoiceGodFallback(t *testing.T) {
	// No deep or serious male voice, any male voice will do
	voices := []Voice{
		{VoiceID: "v1", Name: "Amber", Gender: "female"},
		{VoiceID: "v2", Name: "Tom", Gender: "male"},
	}
	got, err := SelectVoice(voices, "god")
	if err != nil {
		t.Fatalf("couldn't select voice: %v", err)
	}
	if got.VoiceID != "v2" {
		t.Errorf("want voice v2, got %s", got.VoiceID)
	}
}

func TestSelectVoiceNoNeutral(t *testing.T) {
	voices := []Voice{
		{VoiceID: "v1", Name: "Amber", Gender: "female"},
		{VoiceID: "v2", Name: "Tom", Gender: "male"},
	}
	got, err := SelectVoice(voices, "presenter")
	if err != nil {
		t.Fatalf("couldn't select voice: %v", err)
	}
	if got.VoiceID != "v1" {
		t.Errorf("want first voice v1, got %s", got.VoiceID)
	}
}

func TestSelectVoiceEmpty(t *testing.T) {
	if _, err := SelectVoice(nil, "male"); err != ErrNoVoices {
		t.Errorf("want ErrNoVoices, got %v", err)
	}
}

func TestSelectAvatar(t *testing.T) {
	avatars := []Avatar{
		{AvatarID: "a1", Name: "Grace", Gender: "female"},
		{AvatarID: "a2", Name: "Daniel", Gender: "male"},
		{AvatarID: "a3", Name: "Sky", Gender: "neutral"},
	}
	tests := []struct {
		speaker string
		want    string
	}{
		{speaker: "god", want: "a2"},
		{speaker: "angel", want: "a1"},
		{speaker: "male", want: "a2"},
		{speaker: "female", want: "a1"},
		{speaker: "presenter", want: "a3"},
		{speaker: "unknown", want: "a3"},
	}
	for _, tt := range tests {
		t.Run(tt.speaker, func(t *testing.T) {
			got, err := SelectAvatar(avatars, tt.speaker)
			if err != nil {
				t.Fatalf("couldn't select avatar: %v", err)
			}
			if got.AvatarID != tt.want {
				t.Errorf("want avatar %s, got %s", tt.want, got.AvatarID)
			}
		})
	}
}

func TestSelectAvatarEmpty(t *testing.T) {
	if _, err := SelectAvatar(nil, "male"); err != ErrNoAvatars {
		t.Errorf("want ErrNoAvatars, got %v", err)
	}
}
