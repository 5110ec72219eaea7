package heygen

import (
	"errors"
	"strings"
)

var (
	ErrNoVoices  = errors.New("heygen: no voices available")
	ErrNoAvatars = errors.New("heygen: no avatars available")
)

// Speaker roles that can appear in a generated script.
const (
	SpeakerPresenter = "presenter"
	SpeakerMale      = "male"
	SpeakerFemale    = "female"
	SpeakerGod       = "god"
	SpeakerAngel     = "angel"
)

// SelectVoice picks a voice from the catalog for a speaker role. The
// god role prefers a deep or serious sounding male voice, the angel
// role prefers a female or neutral one, male and female match on
// gender, and anything else falls back to a neutral voice when there
// is one.
func SelectVoice(voices []Voice, speaker string) (Voice, error) {
	if len(voices) == 0 {
		return Voice{}, ErrNoVoices
	}
	switch strings.ToLower(speaker) {
	case SpeakerGod:
		for _, v := range voices {
			if !strings.EqualFold(v.Gender, "male") {
				continue
			}
			name := strings.ToLower(v.Name)
			if strings.Contains(name, "deep") || strings.Contains(name, "serious") {
				return v, nil
			}
		}
		if v, ok := firstGender(voices, "male"); ok {
			return v, nil
		}
	case SpeakerAngel:
		if v, ok := firstGender(voices, "female"); ok {
			return v, nil
		}
		if v, ok := firstGender(voices, "neutral"); ok {
			return v, nil
		}
	case SpeakerMale:
		if v, ok := firstGender(voices, "male"); ok {
			return v, nil
		}
	case SpeakerFemale:
		if v, ok := firstGender(voices, "female"); ok {
			return v, nil
		}
	}
	// Presenter and unknown roles, or no gender match
	if v, ok := firstGender(voices, "neutral"); ok {
		return v, nil
	}
	return voices[0], nil
}

// SelectAvatar picks an avatar from the catalog for a speaker role
// using the same gender rules as SelectVoice.
func SelectAvatar(avatars []Avatar, speaker string) (Avatar, error) {
	if len(avatars) == 0 {
		return Avatar{}, ErrNoAvatars
	}
	switch strings.ToLower(speaker) {
	case SpeakerGod, SpeakerMale:
		if a, ok := firstAvatarGender(avatars, "male"); ok {
			return a, nil
		}
	case SpeakerAngel, SpeakerFemale:
		if a, ok := firstAvatarGender(avatars, "female"); ok {
			return a, nil
		}
		if a, ok := firstAvatarGender(avatars, "neutral"); ok {
			return a, nil
		}
	}
	if a, ok := firstAvatarGender(avatars, "neutral"); ok {
		return a, nil
	}
	return avatars[0], nil
}

func firstGender(voices []Voice, gender string) (Voice, bool) {
	for _, v := range voices {
		if strings.EqualFold(v.Gender, gender) {
			return v, true
		}
	}
	return Voice{}, false
}

func firstAvatarGender(avatars []Avatar, gender string) (Avatar, bool) {
	for _, a := range avatars {
		if strings.EqualFold(a.Gender, gender) {
			return a, true
		}
	}
	return Avatar{}, false
}
