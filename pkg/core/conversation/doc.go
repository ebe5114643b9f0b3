// Package conversation implements the voice quiz session controller.
//
// A Controller owns the turn-taking state machine
//
//	start -> ai_speaking -> user_turn -> recording -> processing -> ai_speaking ... -> summary
//
// and coordinates a recorder.Recorder, a Player and a remote Exchange.
// Every asynchronous result (recorder buffers, watchdog timers, network
// responses, playback completion) is checked against the generation that
// scheduled it before it is applied, so late callbacks from an attempt that
// was superseded or exited are no-ops.
//
// Basic usage:
//
//	ctrl := conversation.New(client.VoiceQuiz, rec, seq)
//	defer ctrl.Close()
//
//	go func() {
//		for ev := range ctrl.Events() {
//			// render ev
//		}
//	}()
//
//	if err := ctrl.Begin(ctx, conversation.BeginOptions{ThematicGroup: 1}); err != nil {
//		// err is a *conversation.Error with a user-facing message
//	}
package conversation
