package speech

// Voice is a narration voice.
type Voice struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// voices is the fixed voice table.
var voices = []Voice{
	{ID: "21m00Tcm4TlvDq8ikWAM", Name: "Rachel", Description: "Calm & Clear"},
	{ID: "pNInz6obpgDQGcFmaJgB", Name: "Adam", Description: "Deep & Serious"},
	{ID: "pMsXgVXv3BLzUgSXRplE", Name: "Serena", Description: "Cheerful & Engaging"},
	{ID: "jBpfuIE2acCO8z3wKNLl", Name: "Gigi", Description: "Playful & Animated"},
}

// Voices returns a copy of the voice table.
func Voices() []Voice {
	out := make([]Voice, len(voices))
	copy(out, voices)
	return out
}

// DefaultVoiceID is the first voice of the table.
func DefaultVoiceID() string {
	return voices[0].ID
}

// LookupVoice finds a voice by ID.
func LookupVoice(id string) (Voice, bool) {
	for _, v := range voices {
		if v.ID == id {
			return v, true
		}
	}
	return Voice{}, false
}
