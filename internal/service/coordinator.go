package service

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"classpoll/internal/domain"
	"classpoll/pkg/errors"
)

// Dispatcher delivers ordered events to connected clients. Delivery is
// fire-and-forget per recipient; a slow or broken recipient must never
// block the caller.
type Dispatcher interface {
	// Broadcast enqueues an event for every connected client
	Broadcast(event string, data interface{})
	// Send enqueues an event for a single client; unknown ids are ignored
	Send(id string, event string, data interface{})
	// Disconnect flushes pending events for a client, then closes it
	Disconnect(id string)
}

// Close reasons, logged when a poll transitions to closed
const (
	closeReasonTimeout    = "timeout"
	closeReasonQuorum     = "quorum"
	closeReasonSuperseded = "superseded"
)

// Coordinator owns the poll lifecycle state machine along with the
// roster, ledger and history it drives. Every mutation of that
// aggregate runs under a single mutex, including the timer and
// grace-delay callbacks, so all inbound events appear to execute one
// at a time. Timer callbacks re-validate the current poll identity and
// status after re-acquiring the lock; a callback that fires late for a
// superseded poll is a no-op.
type Coordinator struct {
	mu       sync.Mutex
	roster   *Roster
	ledger   *Ledger
	history  *HistoryStore
	dispatch Dispatcher
	logger   *zap.Logger
	grace    time.Duration

	current     *domain.Poll
	expiryTimer *time.Timer
	graceTimer  *time.Timer

	onPollClosed func(domain.HistoryEntry)
}

// NewCoordinator creates a coordinator with an empty roster and history.
// grace is the delay between quorum being reached and the poll closing.
func NewCoordinator(dispatch Dispatcher, grace time.Duration, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		roster:   NewRoster(),
		ledger:   NewLedger(),
		history:  NewHistoryStore(),
		dispatch: dispatch,
		logger:   logger,
		grace:    grace,
	}
}

// SetOnPollClosed registers a hook invoked (on its own goroutine) every
// time a poll is archived. Used to invalidate snapshot caches.
func (c *Coordinator) SetOnPollClosed(fn func(domain.HistoryEntry)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPollClosed = fn
}

// JoinModerator claims the moderator slot for the given connection and
// sends it the roster, the poll history and, if a poll is in flight,
// the current poll snapshot. A prior moderator is displaced silently
// and keeps its connection.
func (c *Coordinator) JoinModerator(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	displaced := c.roster.SetModerator(id)
	if displaced != "" {
		c.logger.Info("moderator displaced",
			zap.String("previous", displaced),
			zap.String("current", id))
	} else {
		c.logger.Info("moderator joined", zap.String("id", id))
	}

	c.dispatch.Send(id, domain.EventParticipantsUpdate, c.roster.Views())
	c.dispatch.Send(id, domain.EventPollHistory, c.history.Entries())

	if c.pollActiveLocked() {
		c.dispatch.Send(id, domain.EventPollStarted, c.pollStartedLocked(id))
		c.dispatch.Send(id, domain.EventResponseCountUpdate, c.responseCountLocked())
	}
}

// JoinStudent registers a respondent. A student joining mid-poll is
// immediately eligible and receives a synthetic poll-started snapshot.
func (c *Coordinator) JoinStudent(id, name string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.roster.AddStudent(id, name, time.Now().UTC())
	c.logger.Info("student joined",
		zap.String("id", id),
		zap.String("name", name),
		zap.Int("total_students", c.roster.Size()))

	c.notifyModeratorLocked(domain.EventParticipantsUpdate, c.roster.Views())

	if c.pollActiveLocked() {
		c.dispatch.Send(id, domain.EventPollStarted, c.pollStartedLocked(id))
		c.notifyModeratorLocked(domain.EventResponseCountUpdate, c.responseCountLocked())
	}
}

// CreatePoll starts a new poll. Allowed only for the moderator and only
// when no poll is unresolved: a previous poll must either be closed
// already or have its quorum satisfied, in which case it is closed
// before the new one starts.
func (c *Coordinator) CreatePoll(actorID string, req domain.CreatePollRequest) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.roster.IsModerator(actorID) {
		return errors.NewUnauthorizedError("only the moderator can create polls")
	}

	if err := req.Validate(); err != nil {
		return err
	}

	if c.current != nil {
		if !c.quorumLocked() {
			return errors.NewInvalidStateError("wait for all students to answer before creating a new poll")
		}
		c.closeLocked(closeReasonSuperseded)
	}

	now := time.Now().UTC()
	poll := &domain.Poll{
		ID:              uuid.NewString(),
		Question:        req.Question,
		Options:         req.Options,
		DurationSeconds: req.DurationSeconds,
		Status:          domain.PollActive,
		StartedAt:       now,
		CreatedBy:       actorID,
	}

	c.ledger.Clear()
	c.roster.ResetAnswered()
	c.current = poll

	pollID := poll.ID
	c.expiryTimer = time.AfterFunc(time.Duration(req.DurationSeconds)*time.Second, func() {
		c.handleExpiry(pollID)
	})

	c.logger.Info("poll created",
		zap.String("poll_id", poll.ID),
		zap.String("question", poll.Question),
		zap.Int("duration_seconds", poll.DurationSeconds),
		zap.Int("students", c.roster.Size()))

	c.dispatch.Broadcast(domain.EventPollStarted, c.pollStartedLocked(""))
	c.notifyModeratorLocked(domain.EventResponseCountUpdate, c.responseCountLocked())

	return nil
}

// SubmitResponse records a participant's answer to the active poll,
// broadcasts the live tally and evaluates the quorum predicate.
func (c *Coordinator) SubmitResponse(id, option string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.pollActiveLocked() {
		return errors.NewNoActivePollError()
	}

	participant := c.roster.Get(id)
	if participant == nil {
		return errors.NewUnknownParticipantError(id)
	}

	if c.ledger.Has(id) {
		return errors.NewDuplicateResponseError()
	}

	if !c.current.HasOption(option) {
		return errors.NewValidationError("unknown option", map[string]interface{}{
			"option": option,
		})
	}

	c.ledger.Record(domain.Response{
		ParticipantID: id,
		Option:        option,
		SubmittedAt:   time.Now().UTC(),
	})
	participant.HasAnswered = true

	c.logger.Debug("response recorded",
		zap.String("poll_id", c.current.ID),
		zap.String("participant", participant.Name),
		zap.Int("responded", c.ledger.Size()),
		zap.Int("total", c.roster.Size()))

	c.dispatch.Broadcast(domain.EventPollResults, ComputeTally(c.current, c.ledger.Snapshot(), c.roster.Size()))
	c.notifyModeratorLocked(domain.EventResponseCountUpdate, c.responseCountLocked())

	if c.quorumLocked() {
		c.scheduleGraceLocked()
	}

	return nil
}

// RemoveStudent evicts a respondent on the moderator's behalf. The
// target receives a removal notice before its connection is closed and
// its response, if any, is retracted from the tally.
func (c *Coordinator) RemoveStudent(actorID, targetID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.roster.IsModerator(actorID) {
		return errors.NewUnauthorizedError("only the moderator can remove students")
	}

	if c.roster.Get(targetID) == nil {
		return errors.NewUnknownParticipantError(targetID)
	}

	c.dispatch.Send(targetID, domain.EventStudentRemoved, nil)
	c.dispatch.Disconnect(targetID)

	c.logger.Info("student removed", zap.String("id", targetID))
	c.removeLocked(targetID)

	return nil
}

// Leave handles a disconnect. The moderator's disconnect only releases
// the moderator slot; an active poll keeps running.
func (c *Coordinator) Leave(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.roster.ClearModerator(id) {
		c.logger.Info("moderator disconnected", zap.String("id", id))
	}

	if c.roster.Get(id) == nil {
		return
	}

	c.logger.Info("student disconnected", zap.String("id", id))
	c.removeLocked(id)
}

// History returns the archive for the moderator. Non-moderators are
// rejected; the REST mirror exposes the same data publicly.
func (c *Coordinator) History(actorID string) ([]domain.HistoryEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.roster.IsModerator(actorID) {
		return nil, errors.NewUnauthorizedError("only the moderator can view poll history")
	}
	return c.history.Entries(), nil
}

// Chat stamps a chat message from a registered participant or the
// moderator and relays it to everyone. Chat is stateless: nothing is
// stored and no poll invariants apply.
func (c *Coordinator) Chat(senderID, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	isTeacher := c.roster.IsModerator(senderID)
	sender := "Teacher"
	if !isTeacher {
		participant := c.roster.Get(senderID)
		if participant == nil {
			return errors.NewUnauthorizedError("not authorized")
		}
		sender = participant.Name
	}

	c.dispatch.Broadcast(domain.EventChatBroadcast, domain.ChatMessageEvent{
		ID:        uuid.NewString(),
		Text:      text,
		Sender:    sender,
		IsTeacher: isTeacher,
		Timestamp: time.Now().UTC(),
	})
	return nil
}

// CurrentPoll returns a snapshot of the in-flight poll (nil when idle)
// plus the responded and eligible counts.
func (c *Coordinator) CurrentPoll() (*domain.Poll, int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.current == nil {
		return nil, 0, c.roster.Size()
	}
	poll := *c.current
	return &poll, c.ledger.Size(), c.roster.Size()
}

// Participants returns a join-ordered roster snapshot
func (c *Coordinator) Participants() []domain.ParticipantView {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.roster.Views()
}

// HistoryEntries returns the archived polls in closure order
func (c *Coordinator) HistoryEntries() []domain.HistoryEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.history.Entries()
}

// removeLocked deletes a respondent from roster and ledger, notifies
// the moderator and re-evaluates the quorum predicate under the new
// denominator.
func (c *Coordinator) removeLocked(id string) {
	c.roster.Remove(id)
	c.ledger.Remove(id)

	c.notifyModeratorLocked(domain.EventParticipantsUpdate, c.roster.Views())

	if !c.pollActiveLocked() {
		return
	}

	c.notifyModeratorLocked(domain.EventResponseCountUpdate, c.responseCountLocked())

	if c.quorumLocked() {
		c.scheduleGraceLocked()
	} else {
		c.cancelGraceLocked()
	}
}

// handleExpiry is the duration-timer callback. It re-acquires the lock
// and closes the poll only if it is still the same, still-active poll.
func (c *Coordinator) handleExpiry(pollID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentActiveLocked(pollID) {
		return
	}
	c.logger.Info("poll timer expired", zap.String("poll_id", pollID))
	c.closeLocked(closeReasonTimeout)
}

// handleGrace is the quorum grace-delay callback. The predicate is
// re-checked here: a disconnect may have invalidated it after the
// delay was scheduled.
func (c *Coordinator) handleGrace(pollID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.isCurrentActiveLocked(pollID) {
		return
	}
	if !c.quorumLocked() {
		return
	}
	c.closeLocked(closeReasonQuorum)
}

// closeLocked archives the current poll exactly once. The guard on
// Status is the single check-and-set that makes closure idempotent
// whichever trigger wins the race.
func (c *Coordinator) closeLocked(reason string) {
	if c.current == nil || c.current.Status != domain.PollActive {
		return
	}
	c.current.Status = domain.PollClosing
	c.cancelTimersLocked()

	tally := ComputeTally(c.current, c.ledger.Snapshot(), c.roster.Size())
	entry := domain.HistoryEntry{
		ID:           c.current.ID,
		Question:     c.current.Question,
		Options:      c.current.Options,
		Results:      tally,
		Participants: c.roster.Size(),
		ClosedAt:     time.Now().UTC(),
	}
	c.history.Append(entry)

	c.dispatch.Broadcast(domain.EventPollEnded, tally)

	c.logger.Info("poll closed",
		zap.String("poll_id", c.current.ID),
		zap.String("reason", reason),
		zap.Int("responses", tally.TotalResponses),
		zap.Int("students", tally.TotalEligible))

	c.current.Status = domain.PollClosed
	c.current = nil
	c.ledger.Clear()
	c.roster.ResetAnswered()

	if c.onPollClosed != nil {
		go c.onPollClosed(entry)
	}
}

// scheduleGraceLocked arms the quorum grace delay, discarding any
// previously armed one for the same poll.
func (c *Coordinator) scheduleGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
	}
	pollID := c.current.ID
	c.graceTimer = time.AfterFunc(c.grace, func() {
		c.handleGrace(pollID)
	})
	c.logger.Debug("all students answered, closing after grace delay",
		zap.String("poll_id", pollID),
		zap.Duration("grace", c.grace))
}

func (c *Coordinator) cancelGraceLocked() {
	if c.graceTimer != nil {
		c.graceTimer.Stop()
		c.graceTimer = nil
	}
}

func (c *Coordinator) cancelTimersLocked() {
	if c.expiryTimer != nil {
		c.expiryTimer.Stop()
		c.expiryTimer = nil
	}
	c.cancelGraceLocked()
}

// quorumLocked is the closure predicate: every currently eligible
// respondent has answered, and there is at least one.
func (c *Coordinator) quorumLocked() bool {
	eligible := c.roster.Size()
	return eligible > 0 && c.ledger.Size() >= eligible
}

func (c *Coordinator) pollActiveLocked() bool {
	return c.current != nil && c.current.Status == domain.PollActive
}

func (c *Coordinator) isCurrentActiveLocked(pollID string) bool {
	return c.current != nil && c.current.ID == pollID && c.current.Status == domain.PollActive
}

// pollStartedLocked builds the poll-started event. recipientID
// personalizes the has-answered flag; empty means a fresh broadcast
// where nobody has answered yet.
func (c *Coordinator) pollStartedLocked(recipientID string) domain.PollStartedEvent {
	hasAnswered := false
	if recipientID != "" {
		hasAnswered = c.ledger.Has(recipientID)
	}
	return domain.PollStartedEvent{
		ID:              c.current.ID,
		Question:        c.current.Question,
		Options:         c.current.Options,
		DurationSeconds: c.current.DurationSeconds,
		StartedAt:       c.current.StartedAt,
		HasAnswered:     hasAnswered,
	}
}

func (c *Coordinator) responseCountLocked() domain.ResponseCountEvent {
	return domain.ResponseCountEvent{
		Responded: c.ledger.Size(),
		Total:     c.roster.Size(),
	}
}

func (c *Coordinator) notifyModeratorLocked(event string, data interface{}) {
	if id := c.roster.ModeratorID(); id != "" {
		c.dispatch.Send(id, event, data)
	}
}
