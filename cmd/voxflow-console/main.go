// voxflow-console runs a voice conversation against the local microphone and
// speakers, with a terminal transcript view.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	pipeline "github.com/voxflow/voxflow-core/core"
	"github.com/voxflow/voxflow-core/core/audio/miniaudio"
	"github.com/voxflow/voxflow-core/core/llms/groq"
	sttdeepgram "github.com/voxflow/voxflow-core/core/speechtotext/deepgram"
	ttsdeepgram "github.com/voxflow/voxflow-core/core/texttospeech/deepgram"
	"github.com/voxflow/voxflow-core/core/transport"
	"github.com/voxflow/voxflow-core/core/vad"
)

const defaultSystemPrompt = "You are a friendly voice assistant. Keep your " +
	"answers short and conversational, they are read out loud."

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	systemPrompt := flag.String("system-prompt", defaultSystemPrompt, "system prompt for the assistant")
	noInterruptions := flag.Bool("no-interruptions", false, "queue user turns instead of interrupting the assistant")
	enableMetrics := flag.Bool("metrics", false, "record turn and latency metrics")
	greet := flag.Bool("greet", true, "have the assistant open the conversation")
	flag.Parse()

	groqKey := os.Getenv("GROQ_API_KEY")
	if groqKey == "" {
		return pipeline.ConfigurationError{Field: "GROQ_API_KEY", Reason: "environment variable is not set"}
	}
	if os.Getenv("DEEPGRAM_API_KEY") == "" {
		return pipeline.ConfigurationError{Field: "DEEPGRAM_API_KEY", Reason: "environment variable is not set"}
	}

	audioClient, err := miniaudio.NewClient()
	if err != nil {
		return fmt.Errorf("failed to open audio devices: %w", err)
	}
	defer audioClient.Close()

	deviceTransport, err := transport.NewDevice(audioClient)
	if err != nil {
		return err
	}

	synthesizer, err := ttsdeepgram.NewTextToSpeechClient()
	if err != nil {
		return err
	}

	// program is created after the task, the callbacks only fire once the
	// pipeline is running
	var program *tea.Program
	send := func(msg tea.Msg) {
		if program != nil {
			program.Send(msg)
		}
	}

	task, err := pipeline.NewTask(
		pipeline.TaskParams{
			AllowInterruptions: !*noInterruptions,
			EnableMetrics:      *enableMetrics,
		},
		pipeline.WithTransport(deviceTransport),
		pipeline.WithTranscriber(sttdeepgram.NewTranscriptionClient()),
		pipeline.WithStreamingLLM(groq.NewClient(groqKey)),
		pipeline.WithSynthesizer(synthesizer),
		pipeline.WithVADScorer(vad.NewEnergyScorer()),
		pipeline.WithSystemPrompt(*systemPrompt),
		pipeline.WithEncodingInfo(deviceTransport.EncodingInfo()),
		pipeline.WithStateChangedCallback(func(state pipeline.TurnState) {
			send(stateMsg(state))
		}),
		pipeline.WithPartialTranscriptionCallback(func(transcript string) {
			send(partialTranscriptMsg(transcript))
		}),
		pipeline.WithTranscriptionCallback(func(transcript string) {
			send(transcriptMsg(transcript))
		}),
		pipeline.WithResponseDeltaCallback(func(delta string) {
			send(responseDeltaMsg(delta))
		}),
		pipeline.WithResponseCallback(func(response string) {
			send(responseMsg(response))
		}),
		pipeline.WithResponseEndCallback(func() {
			send(responseEndMsg{})
		}),
		pipeline.WithErrorCallback(func(err error) {
			send(pipelineErrMsg{err: err})
		}),
	)
	if err != nil {
		return err
	}

	program = tea.NewProgram(newModel(task), tea.WithAltScreen())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runner := pipeline.NewRunner()
	go func() {
		err := runner.Run(ctx, task)
		send(pipelineDoneMsg{err: err})
	}()

	if *greet {
		if err := task.Say(); err != nil {
			return fmt.Errorf("failed to queue greeting: %w", err)
		}
	}

	if _, err := program.Run(); err != nil {
		task.End()
		return fmt.Errorf("console failed: %w", err)
	}

	task.End()
	return nil
}
