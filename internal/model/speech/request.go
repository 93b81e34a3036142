package speech

// Fixed ElevenLabs parameters used for every artifact voice.
const (
	OutputFormat = "mp3_22050_32"
	ModelID      = "eleven_multilingual_v2"
	ContentType  = "audio/mpeg"
)

// VoiceSettings mirrors the provider's per-voice tuning knobs.
type VoiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
	Style           float64 `json:"style"`
	UseSpeakerBoost bool    `json:"use_speaker_boost"`
}

// Voice identifies a cloned voice together with its settings.
type Voice struct {
	ID       string        `json:"voiceId"`
	Settings VoiceSettings `json:"settings"`
}

// TTSRequest is one text-to-speech call.
type TTSRequest struct {
	Text         string
	Voice        Voice
	OutputFormat string // mp3_22050_32
	ModelID      string
}
