package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"famline/internal/callclient"
	"famline/internal/callctrl"
	"famline/internal/callsession"
	"famline/internal/media"
	"famline/internal/recorder"
	"famline/pkg/logger"

	"github.com/spf13/cobra"
)

var (
	flagCallID   string
	flagInvitees []string
	flagRecord   bool
	flagPoll     time.Duration
)

var callCmd = &cobra.Command{
	Use:   "call",
	Short: "Join a call, or start one when --call is not given",
	Long: `Participates in a live call until it ends or you press Ctrl-C.
The initiator's Ctrl-C ends the call for everyone; other members just leave.`,
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVar(&flagCallID, "call", "", "id of an existing ringing call to join")
	callCmd.Flags().StringSliceVar(&flagInvitees, "invite", nil, "members to invite when starting (default: whole group)")
	callCmd.Flags().BoolVar(&flagRecord, "record", false, "record the call and upload it when the call ends")
	callCmd.Flags().DurationVar(&flagPoll, "poll-interval", 0, "status poll interval (default: server convention)")
}

// termNavigator prints lifecycle outcomes to the terminal in place of app
// screens.
type termNavigator struct{}

func (termNavigator) ShowSummary(sess *callsession.CallSession) {
	switch sess.Status {
	case callsession.StatusMissed:
		fmt.Println("call missed, nobody joined")
	default:
		fmt.Printf("call ended, duration %s\n", callsession.FormatDurationMs(sess.DurationMs))
	}
	if sess.Recording != nil && sess.Recording.URL != "" {
		fmt.Printf("recording: %s\n", sess.Recording.URL)
	}
}

func (termNavigator) ShowCallList() {
	fmt.Println("left the call, it continues without you")
}

func (termNavigator) ShowAlert(message string) {
	fmt.Fprintln(os.Stderr, message)
}

func runCall(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log := logger.New(os.Getenv("APP_ENV"))
	callType := callsession.TypePhone
	if flagVideo {
		callType = callsession.TypeVideo
	}

	client, self, err := login(ctx)
	if err != nil {
		return err
	}

	var sess *callsession.CallSession
	if flagCallID != "" {
		sess, err = client.JoinCall(ctx, self.GroupID, callType, flagCallID)
	} else {
		sess, err = client.StartCall(ctx, self.GroupID, callType, flagInvitees)
	}
	if err != nil {
		return fmt.Errorf("call setup: %w", err)
	}
	fmt.Printf("%s call %s is %s\n", sess.Type, sess.CallID, sess.Status)

	mediaSess, err := media.Dial(ctx, wsBase(), self.GroupID, callType, sess.CallID, self.UserID,
		media.WithLogger(logger.Component(log, "media")))
	if err != nil {
		// The call can still be supervised without a media leg.
		log.Warn("media unavailable, lifecycle only", "err", err)
	}

	var rec *recorder.Recorder
	if flagRecord {
		rec = recorder.New(self.GroupID, callType, sess.CallID, client,
			recorder.WithLogger(logger.Component(log, "recorder")))
	}

	opts := callctrl.Options{
		Recorder:     rec,
		PollInterval: flagPoll,
		Logger:       logger.Component(log, "callctrl"),
		OnTick: func(elapsed time.Duration) {
			fmt.Printf("\r%s ", callsession.FormatDuration(elapsed))
		},
	}
	if mediaSess != nil {
		opts.Media = mediaSess
	}
	ctrl := callctrl.New(client, termNavigator{}, sess, self.UserID, opts)

	// The recorder itself is armed by the controller when the call goes
	// active; here we just feed it relayed audio.
	if rec != nil && mediaSess != nil {
		go pumpRemoteAudio(mediaSess, rec)
	}

	done := make(chan struct{})
	go func() {
		ctrl.Run(context.Background())
		close(done)
	}()

	select {
	case <-ctx.Done():
		// One shot, then wait for teardown to finish.
		hangupCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		ctrl.HandleBack(hangupCtx)
		cancel()
		<-done
	case <-done:
	}
	return nil
}

// pumpRemoteAudio feeds relayed frames into the recorder until the media
// session closes.
func pumpRemoteAudio(sess media.Session, rec *recorder.Recorder) {
	for frame := range sess.Remote() {
		rec.AppendRemote(frame)
	}
}

var _ callctrl.CallAPI = (*callclient.Client)(nil)
