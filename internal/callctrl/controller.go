// Package callctrl runs the in-call lifecycle on the client side: it polls
// the backend for the authoritative call state, drives the duration clock,
// owns the recorder, and decides where the UI goes when the call ends.
package callctrl

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"famline/internal/callclient"
	"famline/internal/callsession"
	"famline/internal/config"
	"famline/internal/media"
	"famline/internal/recorder"
)

// CallAPI is the slice of the REST client the controller needs.
// Satisfied by callclient.Client.
type CallAPI interface {
	FetchActiveCalls(ctx context.Context, groupID string, t callsession.CallType) ([]callsession.CallSession, error)
	LeaveCall(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callclient.LeaveResult, error)
	EndCall(ctx context.Context, groupID string, t callsession.CallType, callID string) (*callsession.CallSession, error)
}

// Navigator is how the controller talks to the UI. ShowSummary and
// ShowCallList are navigations off the call screen; exactly one of them is
// invoked per call, at teardown. ShowAlert is non-navigating and reports a
// failed user action so it can be retried.
type Navigator interface {
	// ShowSummary presents the ended call, including its duration.
	ShowSummary(sess *callsession.CallSession)
	// ShowCallList returns to the group's call list without a summary.
	ShowCallList()
	// ShowAlert surfaces an action failure; the call screen stays up.
	ShowAlert(message string)
}

type Options struct {
	Media        media.Session
	Recorder     *recorder.Recorder
	PollInterval time.Duration
	Logger       *slog.Logger
	// OnTick receives the running duration roughly once a second.
	OnTick func(elapsed time.Duration)
}

// Controller supervises one member's participation in one call.
//
// The server is the source of truth: local actions update the UI
// optimistically, but the polled state always wins, and a terminal state is
// sticky. Teardown runs exactly once no matter how many paths race into it.
type Controller struct {
	api   CallAPI
	nav   Navigator
	media media.Session
	rec   *recorder.Recorder
	log   *slog.Logger
	clock func() time.Time

	groupID  string
	callType callsession.CallType
	callID   string
	localID  string

	timer  *DurationTimer
	poller *Poller

	mu      sync.Mutex
	sess    *callsession.CallSession
	loading bool

	teardownOnce sync.Once
	torn         atomic.Bool
}

// New builds a controller around an initial session snapshot, typically the
// response from joining or starting the call.
func New(api CallAPI, nav Navigator, sess *callsession.CallSession, localParticipantID string, opts Options) *Controller {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = config.DefaultPollInterval
	}

	c := &Controller{
		api:      api,
		nav:      nav,
		media:    opts.Media,
		rec:      opts.Recorder,
		log:      opts.Logger.With("call_id", sess.CallID),
		clock:    time.Now,
		groupID:  sess.GroupID,
		callType: sess.Type,
		callID:   sess.CallID,
		localID:  localParticipantID,
		sess:     sess.Clone(),
	}
	c.timer = NewDurationTimer(opts.OnTick)
	c.poller = NewPoller(opts.PollInterval, c.log, c.poll)
	return c
}

// NewLoading builds a controller for a call screen mounted without a
// snapshot, e.g. straight from a notification tap. The screen stays in a
// loading state until the first fetch resolves the call; if the call is
// already gone by then, the controller tears down to the call list.
func NewLoading(api CallAPI, nav Navigator, groupID string, t callsession.CallType, callID, localParticipantID string, opts Options) *Controller {
	placeholder := &callsession.CallSession{
		CallID:  callID,
		GroupID: groupID,
		Type:    t,
		Status:  callsession.StatusRinging,
	}
	c := New(api, nav, placeholder, localParticipantID, opts)
	c.loading = true
	return c
}

// Loading reports whether the first snapshot is still being resolved.
func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loading
}

// Run starts the poller and, when the call is already active, the clock.
// It blocks until the call tears down or ctx is cancelled.
func (c *Controller) Run(ctx context.Context) {
	c.mu.Lock()
	alreadyActive := c.sess.Status == callsession.StatusActive && c.sess.ConnectedAt != nil
	connectedAt := c.sess.ConnectedAt
	c.mu.Unlock()
	if alreadyActive {
		c.timer.Start(*connectedAt)
		c.autoStartRecording()
	}

	c.poller.Run(ctx)
	if ctx.Err() != nil {
		// Cancellation is a local abandon, not a server event.
		c.teardown(nil)
	}
}

// Session returns the current snapshot of the call.
func (c *Controller) Session() *callsession.CallSession {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sess.Clone()
}

// Elapsed is the running call duration shown on screen.
func (c *Controller) Elapsed() time.Duration { return c.timer.Elapsed() }

// poll is one status fetch. A call absent from the live list has been ended
// and archived on the server, so absence is itself a terminal signal.
func (c *Controller) poll(ctx context.Context) error {
	calls, err := c.api.FetchActiveCalls(ctx, c.groupID, c.callType)
	if err != nil {
		return err
	}
	for i := range calls {
		if calls[i].CallID == c.callID {
			c.applyRemote(&calls[i])
			return nil
		}
	}
	c.mu.Lock()
	loading := c.loading
	c.mu.Unlock()
	if loading {
		// Gone before the first snapshot ever arrived; there is nothing
		// to summarize.
		c.log.Info("call no longer live on mount")
		c.teardown(nil)
		return nil
	}
	c.applyRemote(c.synthesizeEnded())
	return nil
}

// applyRemote folds a polled snapshot into local state. Updates that would
// move the status backwards are discarded, and once the local state is
// terminal nothing can revive it.
func (c *Controller) applyRemote(update *callsession.CallSession) {
	c.mu.Lock()
	cur := c.sess
	if cur.Status.IsTerminal() {
		c.mu.Unlock()
		return
	}
	if update.Status != cur.Status && !cur.Status.CanTransitionTo(update.Status) {
		c.log.Warn("discarding stale status update", "from", cur.Status, "to", update.Status)
		c.mu.Unlock()
		return
	}
	c.sess = update.Clone()
	c.loading = false
	becameActive := cur.Status == callsession.StatusRinging && update.Status == callsession.StatusActive
	terminal := update.Status.IsTerminal()
	final := c.sess
	c.mu.Unlock()

	if becameActive && update.ConnectedAt != nil {
		c.timer.Start(*update.ConnectedAt)
		c.autoStartRecording()
	}
	if terminal {
		c.log.Info("call ended remotely", "status", final.Status, "duration_ms", final.DurationMs)
		c.teardown(final)
	}
}

// Leave removes the local member from the call. The request is attempted
// once per press: a failure is surfaced and the call screen stays up so the
// user can press again.
func (c *Controller) Leave(ctx context.Context) {
	if c.torn.Load() {
		return
	}
	res, err := c.api.LeaveCall(ctx, c.groupID, c.callType, c.callID)
	if err != nil {
		c.log.Warn("leave request failed", "err", err)
		c.nav.ShowAlert("could not leave the call")
		return
	}
	if res.CallEnded {
		c.markTerminal(res.Call)
		c.teardown(res.Call)
		return
	}
	c.teardown(nil)
}

// EndForAll terminates the call for everyone. On success the summary is
// shown immediately from a locally synthesized ended state rather than
// waiting a poll cycle for the server to confirm; a failure is surfaced and
// the call stays up for a retry.
func (c *Controller) EndForAll(ctx context.Context) {
	if c.torn.Load() {
		return
	}
	final := c.synthesizeEnded()
	sess, err := c.api.EndCall(ctx, c.groupID, c.callType, c.callID)
	if err != nil {
		c.log.Warn("end request failed", "err", err)
		c.nav.ShowAlert("could not end the call")
		return
	}
	if sess != nil {
		final = sess
	}
	c.markTerminal(final)
	c.teardown(final)
}

// HandleBack routes the back gesture: the initiator hangs up for everyone,
// anyone else just leaves.
func (c *Controller) HandleBack(ctx context.Context) {
	c.mu.Lock()
	initiator := c.sess.IsInitiator(c.localID)
	c.mu.Unlock()
	if initiator {
		c.EndForAll(ctx)
		return
	}
	c.Leave(ctx)
}

// autoStartRecording fires when the call goes active. Repeated active
// reports funnel through the recorder's single-start guard, so at most one
// recording session exists per call.
func (c *Controller) autoStartRecording() {
	if c.rec == nil {
		return
	}
	if c.rec.Start() {
		c.log.Info("recording started")
	}
}

// StartRecording arms the recorder. Returns false when no recorder is
// attached or one recording has already been started for this call.
func (c *Controller) StartRecording() bool {
	if c.rec == nil {
		return false
	}
	if !c.rec.Start() {
		return false
	}
	c.log.Info("recording started")
	return true
}

// Recording reports whether the recorder is currently capturing.
func (c *Controller) Recording() bool {
	return c.rec != nil && c.rec.Recording()
}

// ToggleMute flips the microphone and returns the new muted state.
func (c *Controller) ToggleMute() bool {
	if c.media == nil {
		return false
	}
	muted := !c.media.Muted()
	c.media.SetMuted(muted)
	return muted
}

// ToggleSpeakerphone flips audio routing and returns the new state.
func (c *Controller) ToggleSpeakerphone() bool {
	if c.media == nil {
		return false
	}
	on := !c.media.Speakerphone()
	c.media.SetSpeakerphone(on)
	return on
}

// markTerminal pins the local state to a terminal snapshot so late poll
// results cannot resurrect the call.
func (c *Controller) markTerminal(final *callsession.CallSession) {
	if final == nil {
		return
	}
	c.mu.Lock()
	if !c.sess.Status.IsTerminal() {
		c.sess = final.Clone()
	}
	c.mu.Unlock()
}

// synthesizeEnded derives a terminal snapshot from local state: ended with
// a locally computed duration when the call connected, missed otherwise.
func (c *Controller) synthesizeEnded() *callsession.CallSession {
	c.mu.Lock()
	s := c.sess.Clone()
	c.mu.Unlock()

	now := c.clock()
	if s.Status.IsTerminal() {
		return s
	}
	if s.ConnectedAt != nil {
		s.Status = callsession.StatusEnded
		s.DurationMs = callsession.Elapsed(*s.ConnectedAt, now)
	} else {
		s.Status = callsession.StatusMissed
	}
	s.EndedAt = &now
	s.UpdatedAt = now
	return s
}

// teardown releases everything exactly once and performs the single
// navigation for this call: a summary when we have a terminal session, the
// call list otherwise. Later callers lose the race and do nothing.
func (c *Controller) teardown(final *callsession.CallSession) {
	c.teardownOnce.Do(func() {
		c.torn.Store(true)
		c.poller.Stop()
		c.timer.Stop()

		if c.rec != nil && c.rec.Recording() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			c.rec.Stop(ctx)
			cancel()
		}
		if c.media != nil {
			if err := c.media.Close(); err != nil {
				c.log.Warn("media close failed", "err", err)
			}
		}

		if final != nil {
			c.nav.ShowSummary(final)
		} else {
			c.nav.ShowCallList()
		}
	})
}
