// Package voice maps (language, gender, role, episode) to stable prebuilt
// voice identifiers and assembles the speech-style descriptors fed to the
// synthesis prompt. Selection is deterministic per episode so that every
// chunk of an episode, and every replay of its messages, reproduces the
// same voice pair.
package voice

// Gender values used across the registry and episode metadata.
const (
	Male   = "male"
	Female = "female"
)

// maleVoices and femaleVoices are the two disjoint prebuilt voice lists.
// Gacrux appears with conflicting genders in upstream tables; the "Mature"
// description matches the male set, which is treated as authoritative.
var maleVoices = []string{
	"Puck",           // Upbeat
	"Charon",         // Informative
	"Fenrir",         // Excitable
	"Orus",           // Firm
	"Enceladus",      // Breathy
	"Iapetus",        // Clear
	"Umbriel",        // Easy-going
	"Algieba",        // Smooth
	"Algenib",        // Gravelly
	"Rasalgethi",     // Informative
	"Achernar",       // Soft
	"Alnilam",        // Firm
	"Schedar",        // Even
	"Gacrux",         // Mature
	"Zubenelgenubi",  // Casual
	"Sadaltager",     // Knowledgeable
	"Sadachbia",      // Lively
	"Achird",         // Friendly
}

var femaleVoices = []string{
	"Zephyr",        // Bright
	"Kore",          // Firm
	"Leda",          // Youthful
	"Aoede",         // Breezy
	"Callirrhoe",    // Easy-going
	"Autonoe",       // Bright
	"Despina",       // Smooth
	"Erinome",       // Clear
	"Laomedeia",     // Upbeat
	"Pulcherrima",   // Forward
	"Vindemiatrix",  // Gentle
	"Sulafat",       // Warm
}

// VoicesFor returns the voice list for a gender. Unknown genders fall back
// to the male list so selection never dead-ends.
func VoicesFor(gender string) []string {
	if gender == Female {
		return femaleVoices
	}
	return maleVoices
}

// languageDefaults carries per-language default voices and delivery traits.
type languageDefaults struct {
	Name          string
	MaleDefault   string
	FemaleDefault string
	Instruction   string
	Pace          string
	Tone          string
	Volume        string
	BCP47         string
}

var languages = map[string]languageDefaults{
	"he": {
		Name:          "Hebrew",
		MaleDefault:   "Alnilam",
		FemaleDefault: "Aoede",
		Instruction:   "Speak natural, fluent modern Hebrew with native pronunciation and correct stress placement.",
		Pace:          "measured",
		Tone:          "warm",
		Volume:        "medium",
		BCP47:         "he-IL",
	},
	"en": {
		Name:          "English",
		MaleDefault:   "Schedar",
		FemaleDefault: "Kore",
		Instruction:   "Speak clear conversational English.",
		Pace:          "moderate",
		Tone:          "engaging",
		Volume:        "medium",
		BCP47:         "en-US",
	},
	"es": {
		Name:          "Spanish",
		MaleDefault:   "Orus",
		FemaleDefault: "Despina",
		Instruction:   "Speak natural Latin American Spanish.",
		Pace:          "moderate",
		Tone:          "warm",
		Volume:        "medium",
		BCP47:         "es-ES",
	},
	"ru": {
		Name:          "Russian",
		MaleDefault:   "Charon",
		FemaleDefault: "Erinome",
		Instruction:   "Speak natural Russian with clear articulation.",
		Pace:          "moderate",
		Tone:          "calm",
		Volume:        "medium",
		BCP47:         "ru-RU",
	},
}

var defaultLanguage = languageDefaults{
	Name:          "English",
	MaleDefault:   "Puck",
	FemaleDefault: "Zephyr",
	Instruction:   "Speak clearly and naturally.",
	Pace:          "moderate",
	Tone:          "neutral",
	Volume:        "medium",
	BCP47:         "en-US",
}

func languageFor(code string) languageDefaults {
	if l, ok := languages[code]; ok {
		return l
	}
	return defaultLanguage
}

// DefaultVoice returns the language-default voice for a gender.
func DefaultVoice(language, gender string) string {
	l := languageFor(language)
	if gender == Female {
		return l.FemaleDefault
	}
	return l.MaleDefault
}

// BCP47 returns the BCP-47 tag for a two-letter language code.
func BCP47(language string) string {
	return languageFor(language).BCP47
}

// LanguageName returns the English name of a two-letter language code,
// as used in generation prompts.
func LanguageName(language string) string {
	return languageFor(language).Name
}

// contentStyle is a per-content-type delivery override.
type contentStyle struct {
	Pace        string
	Tone        string
	Volume      string
	Instruction string
}

var contentStyles = map[string]contentStyle{
	"news": {
		Pace:        "brisk",
		Tone:        "authoritative",
		Volume:      "medium",
		Instruction: "Deliver like a news anchor: factual, confident, no editorializing in tone.",
	},
	"technology": {
		Pace:        "moderate",
		Tone:        "curious",
		Volume:      "medium",
		Instruction: "Sound genuinely interested, as if explaining a discovery to a friend.",
	},
	"entertainment": {
		Pace:        "lively",
		Tone:        "playful",
		Volume:      "medium-high",
		Instruction: "Keep the energy up; react naturally to surprising details.",
	},
	"finance": {
		Pace:        "measured",
		Tone:        "composed",
		Volume:      "medium",
		Instruction: "Stay precise with numbers; calm and trustworthy delivery.",
	},
	"general": {
		Pace:        "moderate",
		Tone:        "conversational",
		Volume:      "medium",
		Instruction: "Relaxed, friendly conversation between hosts.",
	},
}

// Style is the composite speech-style descriptor for one synthesis call.
type Style struct {
	Pace         string
	Tone         string
	Volume       string
	Instruction  string
	LanguageCode string
}

// StyleFor merges language defaults with content-type overrides. The
// content-type entry wins for pace, tone and volume; both instructions are
// kept, language first.
func StyleFor(language, contentType string) Style {
	l := languageFor(language)
	s := Style{
		Pace:         l.Pace,
		Tone:         l.Tone,
		Volume:       l.Volume,
		Instruction:  l.Instruction,
		LanguageCode: l.BCP47,
	}
	cs, ok := contentStyles[contentType]
	if !ok {
		cs = contentStyles["general"]
	}
	if cs.Pace != "" {
		s.Pace = cs.Pace
	}
	if cs.Tone != "" {
		s.Tone = cs.Tone
	}
	if cs.Volume != "" {
		s.Volume = cs.Volume
	}
	if cs.Instruction != "" {
		s.Instruction += " " + cs.Instruction
	}
	return s
}
