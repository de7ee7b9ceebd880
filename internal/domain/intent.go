package domain

// IntentType classifies what an utterance asks the assistant to do.
type IntentType int

const (
	IntentUnknown     IntentType = iota
	IntentIgnore                 // heard while asleep without the wake phrase
	IntentWake                   // wake phrase; payload holds anything said after it
	IntentSleep                  // sleep phrase
	IntentUtterance              // conversational input for the model
	IntentHelp                   // list commands
	IntentShowProfile            // read back what is known about the user
	IntentQuit                   // exit the program
)

// String returns a human-readable intent type.
func (i IntentType) String() string {
	switch i {
	case IntentIgnore:
		return "ignore"
	case IntentWake:
		return "wake"
	case IntentSleep:
		return "sleep"
	case IntentUtterance:
		return "utterance"
	case IntentHelp:
		return "help"
	case IntentShowProfile:
		return "show_profile"
	case IntentQuit:
		return "quit"
	default:
		return "unknown"
	}
}

// Intent represents a parsed user action.
type Intent struct {
	Type    IntentType
	Payload string // the text to act on, if any
}
