package game

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"

	"github.com/FlomaWen/party-game/internal/domain"
)

// QuestionSource loads the question pool. The coordinator re-reads it at
// game start and on reset rather than caching indefinitely, so
// administrative edits are picked up at those points.
type QuestionSource interface {
	ListQuestions(ctx context.Context) ([]domain.Question, error)
}

// Config holds the session timing and scoring policy.
type Config struct {
	LeadIn       time.Duration // pause between game_start and the first question
	AnswerWindow time.Duration // scoring window per question
	RevealGrace  time.Duration // pause after reveal_answer before the ready prompt
	WinThreshold int           // cumulative score that triggers the winner event
}

// DefaultConfig returns the standard party-game timings.
func DefaultConfig() Config {
	return Config{
		LeadIn:       2 * time.Second,
		AnswerWindow: 10 * time.Second,
		RevealGrace:  3 * time.Second,
		WinThreshold: 300,
	}
}

type playerState struct {
	name       string
	score      int
	answered   bool
	lastAnswer string
	joinSeq    int
}

// Coordinator is the single process-wide game session. It owns all mutable
// session state; every operation runs as a short serialized step under one
// mutex, and timer callbacks re-enter through the same mutex with an epoch
// check so a stale timer can never act on a superseded question.
//
// The coordinator owns the lifetime of each player's outbox channel: it is
// the only sender and closes the channel on disconnect or when a slow
// client's buffer fills up.
type Coordinator struct {
	mu    sync.Mutex
	clock clockwork.Clock
	store QuestionSource
	cfg   Config
	rnd   *rand.Rand
	ctx   context.Context

	connections map[string]chan Event
	players     map[string]*playerState
	joinSeq     int

	sequence          []domain.Question
	current           int
	usedQuestionIDs   map[int]bool
	readyPlayers      map[string]bool
	answeredCorrectly map[string]bool
	started           bool
	windowOpen        bool

	epoch   uint64
	pending clockwork.Timer
}

// NewCoordinator builds a session coordinator. ctx bounds the lifetime of
// the timer goroutines; cancel it on shutdown.
func NewCoordinator(ctx context.Context, store QuestionSource, cfg Config, clock clockwork.Clock) *Coordinator {
	return &Coordinator{
		clock:             clock,
		store:             store,
		cfg:               cfg,
		rnd:               rand.New(rand.NewSource(time.Now().UnixNano())),
		ctx:               ctx,
		connections:       make(map[string]chan Event),
		players:           make(map[string]*playerState),
		current:           -1,
		usedQuestionIDs:   make(map[int]bool),
		readyPlayers:      make(map[string]bool),
		answeredCorrectly: make(map[string]bool),
	}
}

// Connect registers a live channel for playerID and creates its player with
// a generated display name. The new client receives the late-join replay
// sequence (ready status, then game_start + the already-presented question
// when a game is in progress) before the leaderboard broadcast reaches
// everyone.
func (c *Coordinator) Connect(playerID string, outbox chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if old, ok := c.connections[playerID]; ok {
		// Reconnect with the same id: the old channel is dead weight.
		close(old)
	}
	c.connections[playerID] = outbox
	c.joinSeq++
	c.players[playerID] = &playerState{
		name:    fmt.Sprintf("Player %d", len(c.connections)),
		joinSeq: c.joinSeq,
	}

	c.sendLocked(playerID, c.readyStatusEventLocked())
	if c.started {
		c.sendLocked(playerID, Event{Type: EventGameStart, Payload: GameStartPayload{TotalQuestions: len(c.sequence)}})
		// Replay the question only once presented; a joiner during the
		// lead-in would otherwise see it before everyone else.
		if q, ok := c.currentQuestionLocked(); ok && c.usedQuestionIDs[q.ID] {
			c.sendLocked(playerID, c.questionEventLocked(q))
		}
	}
	c.broadcastLocked(c.leaderboardEventLocked())
}

// Disconnect removes the player and its channel from all state. outbox must
// be the channel passed to Connect: when a reconnect has already replaced it
// the call is a stale cleanup from the superseded connection and is ignored.
// Safe to call at any point, including for unknown ids (disconnect races are
// expected). When the last connection goes away the session resets, keeping
// only the used-question set.
func (c *Coordinator) Disconnect(playerID string, outbox chan Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	out, ok := c.connections[playerID]
	if !ok || out != outbox {
		return
	}
	c.removePlayerLocked(playerID)
	close(out)

	if len(c.connections) == 0 {
		c.resetSessionLocked()
		return
	}
	c.broadcastLocked(c.readyStatusEventLocked())
	c.broadcastLocked(c.leaderboardEventLocked())
}

// SetDisplayName updates the player's name. Unknown ids are a no-op.
func (c *Coordinator) SetDisplayName(playerID, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.players[playerID]
	if !ok {
		return
	}
	p.name = name
	c.broadcastLocked(c.leaderboardEventLocked())
}

// MarkReady records readiness for the current juncture. When every
// connected player is ready this starts the game, or advances to the next
// question if one is already running.
func (c *Coordinator) MarkReady(ctx context.Context, playerID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.players[playerID]; !ok {
		return
	}
	c.readyPlayers[playerID] = true
	c.broadcastLocked(c.readyStatusEventLocked())

	if len(c.connections) == 0 || len(c.readyPlayers) < len(c.connections) {
		return
	}
	if !c.started {
		c.startGameLocked(ctx)
	} else {
		c.advanceQuestionLocked()
	}
}

// SubmitAnswer scores a submission against the active question and emits
// the personal answer_result event. Players may resubmit after an incorrect
// answer until the window closes or they get it right.
func (c *Coordinator) SubmitAnswer(playerID, raw string, timeRemaining int) domain.AnswerResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	p, ok := c.players[playerID]
	q, active := c.currentQuestionLocked()
	if !ok || !active {
		return c.answerResultLocked(playerID, domain.AnswerResult{Correct: false, Message: "no active question"})
	}
	if c.answeredCorrectly[playerID] {
		return c.answerResultLocked(playerID, domain.AnswerResult{Correct: false, Message: "already answered"})
	}
	if !c.windowOpen {
		return c.answerResultLocked(playerID, domain.AnswerResult{Correct: false, Message: "answer window closed"})
	}

	if !answersMatch(raw, q.Answer) {
		p.lastAnswer = raw
		p.answered = false
		c.broadcastLocked(c.leaderboardEventLocked())
		return c.answerResultLocked(playerID, domain.AnswerResult{Correct: false, CanRetry: true, Message: "wrong answer"})
	}

	points := speedPoints(timeRemaining)
	c.answeredCorrectly[playerID] = true
	p.answered = true
	p.lastAnswer = raw
	before := p.score
	p.score += points
	c.broadcastLocked(c.leaderboardEventLocked())
	if before < c.cfg.WinThreshold && p.score >= c.cfg.WinThreshold {
		c.broadcastLocked(Event{Type: EventWinner, Payload: WinnerPayload{PlayerName: p.name, Score: p.score}})
	}
	return c.answerResultLocked(playerID, domain.AnswerResult{Correct: true, Points: points, Message: "correct"})
}

// Reset clears the running game and every score while preserving the
// used-question set, so repeated resets do not repeat questions until the
// pool is exhausted.
func (c *Coordinator) Reset(ctx context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.resetSessionLocked()
	for _, p := range c.players {
		p.score = 0
		p.answered = false
		p.lastAnswer = ""
	}

	total := 0
	if questions, err := c.store.ListQuestions(ctx); err != nil {
		log.Warn().Err(err).Msg("question reload failed during reset")
	} else {
		total = len(questions)
	}
	c.broadcastLocked(Event{Type: EventGameReset, Payload: GameResetPayload{Message: "game has been reset", TotalQuestions: total}})
	c.broadcastLocked(c.leaderboardEventLocked())
}

// CurrentQuestion returns the active question, if any. Pure read.
func (c *Coordinator) CurrentQuestion() (domain.Question, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentQuestionLocked()
}

func (c *Coordinator) startGameLocked(ctx context.Context) {
	if c.started {
		return
	}

	questions, err := c.store.ListQuestions(ctx)
	if err != nil {
		// A failed reload means "no questions available"; session state
		// stays untouched and the policy error below is surfaced.
		log.Warn().Err(err).Msg("question reload failed at game start")
		questions = nil
	}
	available := questions[:0:0]
	for _, q := range questions {
		if !c.usedQuestionIDs[q.ID] {
			available = append(available, q)
		}
	}
	if len(available) == 0 {
		c.broadcastLocked(Event{Type: EventError, Payload: NoticePayload{Message: domain.ErrNoQuestions.Error()}})
		c.readyPlayers = make(map[string]bool)
		c.broadcastLocked(c.readyStatusEventLocked())
		return
	}

	c.rnd.Shuffle(len(available), func(i, j int) {
		available[i], available[j] = available[j], available[i]
	})
	c.sequence = available
	c.current = 0
	c.started = true
	c.epoch++

	log.Info().Int("questions", len(c.sequence)).Msg("game started")
	c.broadcastLocked(Event{Type: EventGameStart, Payload: GameStartPayload{TotalQuestions: len(c.sequence)}})
	c.scheduleLocked(c.cfg.LeadIn, c.presentQuestionLocked)
}

func (c *Coordinator) presentQuestionLocked() {
	q, ok := c.currentQuestionLocked()
	if !ok {
		return
	}
	c.usedQuestionIDs[q.ID] = true
	c.windowOpen = true
	c.broadcastLocked(c.questionEventLocked(q))
	c.scheduleLocked(c.cfg.AnswerWindow, c.answerWindowExpiredLocked)
}

func (c *Coordinator) answerWindowExpiredLocked() {
	q, ok := c.currentQuestionLocked()
	if !ok {
		return
	}
	c.windowOpen = false
	c.broadcastLocked(Event{Type: EventRevealAnswer, Payload: RevealAnswerPayload{Answer: q.Answer}})
	c.scheduleLocked(c.cfg.RevealGrace, func() {
		c.readyPlayers = make(map[string]bool)
		c.broadcastLocked(Event{Type: EventWaitingNext, Payload: NoticePayload{Message: "ready up for the next question"}})
		c.broadcastLocked(c.readyStatusEventLocked())
	})
}

func (c *Coordinator) advanceQuestionLocked() {
	c.epoch++
	c.stopTimerLocked()
	c.windowOpen = false

	c.current++
	c.answeredCorrectly = make(map[string]bool)
	c.readyPlayers = make(map[string]bool)
	for _, p := range c.players {
		p.answered = false
		p.lastAnswer = ""
	}

	if c.current < len(c.sequence) {
		c.presentQuestionLocked()
		return
	}

	leaderboard := c.leaderboardLocked()
	var winner *domain.LeaderboardEntry
	if len(leaderboard) > 0 {
		top := leaderboard[0]
		winner = &top
	}
	log.Info().Int("players", len(c.players)).Msg("game over")
	c.broadcastLocked(Event{Type: EventGameOver, Payload: GameOverPayload{Winner: winner, Leaderboard: leaderboard}})
}

// resetSessionLocked clears the running game; usedQuestionIDs deliberately
// survives so already-seen questions stay retired.
func (c *Coordinator) resetSessionLocked() {
	c.epoch++
	c.stopTimerLocked()
	c.started = false
	c.windowOpen = false
	c.current = -1
	c.sequence = nil
	c.readyPlayers = make(map[string]bool)
	c.answeredCorrectly = make(map[string]bool)
}

func (c *Coordinator) removePlayerLocked(playerID string) {
	delete(c.connections, playerID)
	delete(c.players, playerID)
	delete(c.readyPlayers, playerID)
	delete(c.answeredCorrectly, playerID)
}

func (c *Coordinator) currentQuestionLocked() (domain.Question, bool) {
	if !c.started || c.current < 0 || c.current >= len(c.sequence) {
		return domain.Question{}, false
	}
	return c.sequence[c.current], true
}

// scheduleLocked arms the single pending timer. The callback re-acquires
// the coordinator lock and runs only if the captured epoch is still
// current, so callbacks superseded by an advance or reset are inert.
func (c *Coordinator) scheduleLocked(d time.Duration, fn func()) {
	c.stopTimerLocked()
	epoch := c.epoch
	timer := c.clock.NewTimer(d)
	c.pending = timer

	go func() {
		select {
		case <-timer.Chan():
			c.mu.Lock()
			if c.epoch == epoch {
				fn()
			}
			c.mu.Unlock()
		case <-c.ctx.Done():
			stopAndDrainTimer(timer)
		}
	}()
}

func (c *Coordinator) stopTimerLocked() {
	if c.pending != nil {
		stopAndDrainTimer(c.pending)
		c.pending = nil
	}
}

func stopAndDrainTimer(timer clockwork.Timer) {
	if !timer.Stop() {
		select {
		case <-timer.Chan():
		default:
		}
	}
}

// sendLocked delivers one event to one player without blocking. A full
// outbox means the client stopped draining; it gets dropped.
func (c *Coordinator) sendLocked(playerID string, ev Event) {
	out, ok := c.connections[playerID]
	if !ok {
		return
	}
	select {
	case out <- ev:
	default:
		log.Warn().Str("player_id", playerID).Str("event", ev.Type).Msg("outbox full, dropping client")
		c.removePlayerLocked(playerID)
		close(out)
		if len(c.connections) == 0 {
			c.resetSessionLocked()
		}
	}
}

func (c *Coordinator) broadcastLocked(ev Event) {
	var dropped []string
	for id, out := range c.connections {
		select {
		case out <- ev:
		default:
			dropped = append(dropped, id)
		}
	}
	for _, id := range dropped {
		log.Warn().Str("player_id", id).Str("event", ev.Type).Msg("outbox full, dropping client")
		out := c.connections[id]
		c.removePlayerLocked(id)
		close(out)
	}
	if len(dropped) > 0 && len(c.connections) == 0 {
		c.resetSessionLocked()
	}
}

func (c *Coordinator) answerResultLocked(playerID string, res domain.AnswerResult) domain.AnswerResult {
	c.sendLocked(playerID, Event{Type: EventAnswerResult, Payload: res})
	return res
}

func (c *Coordinator) questionEventLocked(q domain.Question) Event {
	return Event{Type: EventQuestion, Payload: QuestionPayload{
		Question:       q.View(),
		QuestionNumber: c.current + 1,
		TotalQuestions: len(c.sequence),
	}}
}

func (c *Coordinator) readyStatusEventLocked() Event {
	players := make([]PlayerReady, 0, len(c.players))
	for id, p := range c.players {
		players = append(players, PlayerReady{Name: p.name, Ready: c.readyPlayers[id]})
	}
	sort.Slice(players, func(i, j int) bool { return players[i].Name < players[j].Name })
	return Event{Type: EventReadyStatus, Payload: ReadyStatusPayload{
		ReadyCount: len(c.readyPlayers),
		TotalCount: len(c.connections),
		Players:    players,
	}}
}

func (c *Coordinator) leaderboardEventLocked() Event {
	return Event{Type: EventLeaderboard, Payload: LeaderboardPayload{Leaderboard: c.leaderboardLocked()}}
}

// leaderboardLocked orders players by score descending; ties keep join
// order, which gives a stable secondary order across broadcasts.
func (c *Coordinator) leaderboardLocked() []domain.LeaderboardEntry {
	ids := make([]string, 0, len(c.players))
	for id := range c.players {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		pi, pj := c.players[ids[i]], c.players[ids[j]]
		if pi.score != pj.score {
			return pi.score > pj.score
		}
		return pi.joinSeq < pj.joinSeq
	})

	entries := make([]domain.LeaderboardEntry, 0, len(ids))
	for _, id := range ids {
		p := c.players[id]
		entries = append(entries, domain.LeaderboardEntry{
			Name:       p.name,
			Score:      p.score,
			LastAnswer: p.lastAnswer,
			Answered:   p.answered,
		})
	}
	return entries
}

func answersMatch(submitted, correct string) bool {
	return strings.EqualFold(strings.TrimSpace(submitted), strings.TrimSpace(correct))
}
