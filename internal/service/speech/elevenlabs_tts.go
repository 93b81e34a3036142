package speech

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/artifact-chatbot/backend/internal/model/speech"
)

// ElevenLabsClient talks to the ElevenLabs stream-input WebSocket API.
type ElevenLabsClient struct {
	apiKey  string
	baseURL string
	dialer  *websocket.Dialer
	log     zerolog.Logger
}

type elevenLabsInit struct {
	Text          string               `json:"text"`
	VoiceSettings speech.VoiceSettings `json:"voice_settings"`
}

type elevenLabsText struct {
	Text  string `json:"text"`
	Flush bool   `json:"flush,omitempty"`
}

type elevenLabsServerMessage struct {
	Audio   string `json:"audio"`
	IsFinal *bool  `json:"isFinal"`
	Message string `json:"message"`
	Error   string `json:"error"`
	Code    int    `json:"code"`
}

// NewElevenLabsClient creates a client for baseURL (ws:// or wss://).
func NewElevenLabsClient(apiKey, baseURL string, log zerolog.Logger) *ElevenLabsClient {
	return &ElevenLabsClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		dialer: &websocket.Dialer{
			HandshakeTimeout: 30 * time.Second,
		},
		log: log,
	}
}

func (c *ElevenLabsClient) streamURL(req *speech.TTSRequest) string {
	q := url.Values{}
	q.Set("model_id", req.ModelID)
	q.Set("output_format", req.OutputFormat)
	return c.baseURL + "/v1/text-to-speech/" + url.PathEscape(req.Voice.ID) + "/stream-input?" + q.Encode()
}

// SynthesizeSpeechWS streams the text to the voice and concatenates every
// audio chunk the server returns until it marks the stream final.
func (c *ElevenLabsClient) SynthesizeSpeechWS(ctx context.Context, req *speech.TTSRequest) (*speech.TTSResponse, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("TTS text is empty")
	}
	if strings.TrimSpace(req.Voice.ID) == "" {
		return nil, fmt.Errorf("TTS voice id is empty")
	}
	if req.OutputFormat == "" {
		req.OutputFormat = speech.OutputFormat
	}
	if req.ModelID == "" {
		req.ModelID = speech.ModelID
	}

	header := http.Header{}
	header.Set("xi-api-key", c.apiKey)

	conn, resp, err := c.dialer.DialContext(ctx, c.streamURL(req), header)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("failed to connect to TTS WebSocket (status %d): %w", resp.StatusCode, err)
		}
		return nil, fmt.Errorf("failed to connect to TTS WebSocket: %w", err)
	}
	defer conn.Close()

	// Closing the conn unblocks ReadJSON once ctx is done.
	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	outgoing := []any{
		elevenLabsInit{Text: " ", VoiceSettings: req.Voice.Settings},
		elevenLabsText{Text: req.Text + " ", Flush: true},
		elevenLabsText{Text: ""},
	}
	for _, msg := range outgoing {
		if err := conn.WriteJSON(msg); err != nil {
			return nil, fmt.Errorf("failed to send TTS request: %w", err)
		}
	}

	var (
		audioBuffer bytes.Buffer
		chunks      int
	)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			// Some servers close right after the last chunk instead of sending isFinal.
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && audioBuffer.Len() > 0 {
				break
			}
			return nil, fmt.Errorf("failed to read TTS response: %w", err)
		}

		var msg elevenLabsServerMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			return nil, fmt.Errorf("failed to decode TTS message: %w", err)
		}

		if msg.Error != "" || (msg.Message != "" && msg.Audio == "" && msg.IsFinal == nil) {
			return nil, providerError(msg)
		}

		if msg.Audio != "" {
			chunk, err := base64.StdEncoding.DecodeString(msg.Audio)
			if err != nil {
				return nil, fmt.Errorf("failed to decode base64 audio chunk: %w", err)
			}
			audioBuffer.Write(chunk)
			chunks++
		}

		if msg.IsFinal != nil && *msg.IsFinal {
			break
		}
	}

	if audioBuffer.Len() == 0 {
		return nil, errors.New("TTS audio is empty")
	}

	c.log.Debug().Str("voice_id", req.Voice.ID).Int("chunks", chunks).Int("bytes", audioBuffer.Len()).Msg("speech synthesized")

	return &speech.TTSResponse{
		AudioData: audioBuffer.Bytes(),
		Chunks:    chunks,
		Format:    req.OutputFormat,
		CreatedAt: time.Now(),
	}, nil
}

func providerError(msg elevenLabsServerMessage) error {
	detail := msg.Message
	if detail == "" {
		detail = msg.Error
	}
	if msg.Code != 0 {
		return fmt.Errorf("TTS error %d: %s", msg.Code, detail)
	}
	return fmt.Errorf("TTS error: %s", detail)
}
