package domain

// VoiceSettings is the typed view of a profile's voice output preferences.
// Zero values mean "use the synthesizer default".
type VoiceSettings struct {
	LanguageCode string  // BCP-47, e.g. "en-US"
	Gender       string  // SSML gender: FEMALE, MALE or NEUTRAL
	SpeakingRate float64 // 1.0 is normal speed
	Pitch        float64 // semitones relative to the voice default
	VolumeGainDB float64
}

// IsZero reports whether no voice preference is set.
func (v VoiceSettings) IsZero() bool {
	return v == VoiceSettings{}
}
