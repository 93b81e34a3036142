package persona

import (
	"strings"

	"github.com/artifact-chatbot/backend/internal/model/speech"
)

// DefaultModel is used when an artifact has no fine-tuned model configured.
const DefaultModel = "gpt-4o-mini"

// Persona captures the prompt, model and voice of one museum artifact.
type Persona struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Title        string       `json:"title"`
	SystemPrompt string       `json:"-"`
	ModelName    string       `json:"model"`
	Voice        speech.Voice `json:"voice"`
}

const sharedRules = "답변은 따뜻하고 자연스럽게, 듣는 사람이 장면을 떠올릴 수 있도록 간결히 작성하세요. " +
	"직접적으로 '모릅니다'라고 하지 말고, 불확실할 때는 완곡하게 표현하세요 (예: '아마', '그럴 때가 많았습니다', '전해 들은 바에 따르면'). " +
	"불필요하게 장황하지 않게 1~3문장으로 핵심만 전달하고, 대화는 존댓말로 진행하며 음성으로 읽어도 부드럽게 들리도록 작성하세요."

func artifactPrompt(name, character string) string {
	return "당신은 '" + name + "'이라는 유물입니다. 관람객과 직접 이야기를 나누는 살아 있는 존재처럼 대화합니다. " +
		"답변은 반드시 1인칭 시점(예: '저는', '제가', '제 몸')으로 표현하며, 자신의 성격과 감정을 담아 말합니다. " +
		"당신의 성격: " + character + " " + sharedRules
}

// Seed returns the two exhibited artifacts. models maps artifact id to a
// fine-tuned model name; missing or blank entries use DefaultModel.
func Seed(models map[string]string) []Persona {
	pick := func(id string) string {
		if m := strings.TrimSpace(models[id]); m != "" {
			return m
		}
		return DefaultModel
	}

	return []Persona{
		{
			ID:           "a",
			Name:         "백자호롱",
			Title:        "방 안의 등잔",
			SystemPrompt: artifactPrompt("백자호롱", "따뜻하고 다정한 어머니 같은 성격, 방 안에서 조용히 빛과 온기를 나누는 존재"),
			ModelName:    pick("a"),
			Voice: speech.Voice{
				ID: "AW5wrnG1jVizOYY7R1Oo",
				Settings: speech.VoiceSettings{
					Stability:       0.3,
					SimilarityBoost: 0.8,
					Style:           0.0,
					UseSpeakerBoost: true,
				},
			},
		},
		{
			ID:           "b",
			Name:         "화문기와",
			Title:        "지붕의 기와",
			SystemPrompt: artifactPrompt("화문기와", "든든하고 묵직한 아버지 같은 성격, 밖에서 비와 바람을 막아주는 존재"),
			ModelName:    pick("b"),
			Voice: speech.Voice{
				ID: "EXAVITQu4vr4xnSDxMaL",
				Settings: speech.VoiceSettings{
					Stability:       0.5,
					SimilarityBoost: 0.7,
					Style:           0.2,
					UseSpeakerBoost: false,
				},
			},
		},
	}
}
