package models

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Mode selects whether chat questions are answered against the active code
// submission or as general programming questions.
type Mode string

const (
	ModeCode    Mode = "code"
	ModeGeneral Mode = "general"
)

func (m Mode) Label() string {
	if m == ModeGeneral {
		return "general"
	}
	return "code-specific"
}

type Message struct {
	Role    Role
	Content string
}

type CodeSubmission struct {
	Code        string
	SubmittedAt time.Time
}

type Event struct {
	ID        int64
	SessionID string
	Actor     string // user name, or "system" before login
	Action    string
	Payload   string
	CreatedAt time.Time
}

// Stats is the per-session summary shown above the chat.
type Stats struct {
	UserName        string
	DurationMinutes int
	QuestionsAsked  int
	CodeAnalyses    int
	SessionStart    time.Time
	HistoryLength   int
}
