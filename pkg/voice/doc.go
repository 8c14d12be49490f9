// Package voice coordinates hands-free control of a coding assistant through
// the robot.
//
// An Orchestrator pulls microphone audio from the robot at 20 Hz and streams
// it to a speech recognizer. Transcripts feed a command.Parser which detects
// the wake phrase and segments the spoken command. Finished commands are
// dispatched either to the assistant CLI (through an executor) or to a
// conversational fallback, and the result is spoken back through the robot.
// Every step is published on an events.Bus.
//
// # States
//
//	STOPPED -> STARTING -> RUNNING -> PROCESSING -> SPEAKING -> RUNNING
//	                    \-> ERROR
//
// ERROR is only entered when Start fails. A failing command, missing TTS or
// an unreachable robot degrades that capability and the orchestrator returns
// to RUNNING.
//
// # Usage
//
//	orch := voice.New(voice.Deps{
//	    STT:      stt.NewDeepgram(sttCfg, logger),
//	    Executor: executor.New(executor.DefaultConfig(), logger),
//	    Robot:    reachy,
//	    Speaker:  tts.NewSpeaker(provider, player, logger),
//	    Chat:     inference.NewConversation(client, inference.DefaultSystemPrompt, 0),
//	}, voice.DefaultConfig())
//
//	sub := orch.Events().Subscribe(0)
//	defer sub.Close()
//
//	if err := orch.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer orch.Stop(context.Background())
package voice
