package chat

import "time"

// Role tags who authored a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether the role is one of the two persisted roles.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Turn is one persisted message of a (user, artifact) conversation.
type Turn struct {
	ID         int64     `json:"id"`
	UserID     string    `json:"userId"`
	ArtifactID string    `json:"artifactId"`
	Role       Role      `json:"role"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

// UserTurn builds the turn recording a visitor message.
func UserTurn(userID, artifactID, content string) Turn {
	return Turn{UserID: userID, ArtifactID: artifactID, Role: RoleUser, Content: content}
}

// AssistantTurn builds the turn recording the artifact's reply.
func AssistantTurn(userID, artifactID, content string) Turn {
	return Turn{UserID: userID, ArtifactID: artifactID, Role: RoleAssistant, Content: content}
}
