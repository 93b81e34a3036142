package speech

import "time"

// TTSResponse holds the synthesized audio.
type TTSResponse struct {
	AudioData []byte    `json:"-"`
	Chunks    int       `json:"chunks"`
	Format    string    `json:"format"`
	CreatedAt time.Time `json:"createdAt"`
}
