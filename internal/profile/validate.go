package profile

import (
	"fmt"
	"net/mail"
)

// VoiceRangeValidator rejects voice values the synthesizer cannot render
// and email addresses that do not parse.
func VoiceRangeValidator() Validator {
	return func(field string, value any) error {
		switch field {
		case FieldSpeakingRate:
			return inRange(value, 0.1, 3)
		case FieldVoicePitch:
			return inRange(value, -24, 24)
		case FieldVolumeGain:
			return inRange(value, -96, 16)
		case "email":
			s, _ := value.(string)
			if _, err := mail.ParseAddress(s); err != nil {
				return err
			}
		}
		return nil
	}
}

func inRange(value any, lo, hi float64) error {
	f, ok := toFloat(value)
	if !ok {
		return fmt.Errorf("%v is not a number", value)
	}
	if f < lo || f > hi {
		return fmt.Errorf("%g outside [%g, %g]", f, lo, hi)
	}
	return nil
}
