package domain

// Question is a single trivia question. Immutable once loaded into a
// session; identity is an ascending integer assigned by the store.
type Question struct {
	ID       int    `json:"id"`
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
	Answer   string `json:"answer"`
}

// QuestionView is the answer-withheld form of a Question sent to players.
type QuestionView struct {
	ID       int    `json:"id"`
	ImageURL string `json:"imageUrl"`
	Prompt   string `json:"prompt"`
}

// View strips the correct answer from a question.
func (q Question) View() QuestionView {
	return QuestionView{ID: q.ID, ImageURL: q.ImageURL, Prompt: q.Prompt}
}

// LeaderboardEntry is a snapshot-friendly view of a player.
type LeaderboardEntry struct {
	Name       string `json:"name"`
	Score      int    `json:"score"`
	LastAnswer string `json:"lastAnswer"`
	Answered   bool   `json:"answered"`
}

// AnswerResult summarizes the outcome of a submission for a single player.
type AnswerResult struct {
	Correct  bool   `json:"correct"`
	Points   int    `json:"points,omitempty"`
	CanRetry bool   `json:"canRetry,omitempty"`
	Message  string `json:"message,omitempty"`
}
