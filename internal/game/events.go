package game

import "github.com/FlomaWen/party-game/internal/domain"

// Event is a single outbound message emitted by the coordinator. The
// transport layer serializes it as-is onto each player's socket.
type Event struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

const (
	EventLeaderboard  = "leaderboard_update"
	EventReadyStatus  = "ready_status"
	EventGameStart    = "game_start"
	EventQuestion     = "question"
	EventRevealAnswer = "reveal_answer"
	EventWaitingNext  = "waiting_next_question"
	EventWinner       = "winner"
	EventGameOver     = "game_over"
	EventGameReset    = "game_reset"
	EventError        = "error"
	EventAnswerResult = "answer_result"
)

type LeaderboardPayload struct {
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type PlayerReady struct {
	Name  string `json:"name"`
	Ready bool   `json:"ready"`
}

type ReadyStatusPayload struct {
	ReadyCount int           `json:"readyCount"`
	TotalCount int           `json:"totalCount"`
	Players    []PlayerReady `json:"players"`
}

type GameStartPayload struct {
	TotalQuestions int `json:"totalQuestions"`
}

type QuestionPayload struct {
	Question       domain.QuestionView `json:"question"`
	QuestionNumber int                 `json:"questionNumber"`
	TotalQuestions int                 `json:"totalQuestions"`
}

type RevealAnswerPayload struct {
	Answer string `json:"answer"`
}

// NoticePayload carries advisory text (waiting_next_question, game_reset, error).
type NoticePayload struct {
	Message string `json:"message"`
}

type WinnerPayload struct {
	PlayerName string `json:"playerName"`
	Score      int    `json:"score"`
}

type GameOverPayload struct {
	Winner      *domain.LeaderboardEntry  `json:"winner"`
	Leaderboard []domain.LeaderboardEntry `json:"leaderboard"`
}

type GameResetPayload struct {
	Message        string `json:"message"`
	TotalQuestions int    `json:"totalQuestions"`
}
