package ai

import (
	"github.com/cloudwego/eino/schema"

	"github.com/artifact-chatbot/backend/internal/model/chat"
	"github.com/artifact-chatbot/backend/internal/model/persona"
)

// Build assembles the message list sent to the model: the persona's system
// prompt, the chronological history restricted to user/assistant turns, then
// the new visitor message.
func Build(p persona.Persona, history []chat.Turn, message string) []*schema.Message {
	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(p.SystemPrompt))

	for _, turn := range history {
		switch turn.Role {
		case chat.RoleUser:
			messages = append(messages, schema.UserMessage(turn.Content))
		case chat.RoleAssistant:
			messages = append(messages, schema.AssistantMessage(turn.Content, nil))
		}
	}

	return append(messages, schema.UserMessage(message))
}
