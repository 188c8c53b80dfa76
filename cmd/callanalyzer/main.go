// callanalyzer analyzes customer call transcripts with a panel of LLM
// evaluators and persists the results to SQLite.
//
// Usage:
//
//	AWS_BEARER_TOKEN_BEDROCK=... callanalyzer analyze --call-id c1 --transcript-file call.txt
//	callanalyzer batch --input-dir data/transcripts --limit 10
//	callanalyzer pipeline --call-id c1 --transcript-file call.txt
//	callanalyzer setup
//	callanalyzer report
//
// Without a Bedrock token every evaluator runs on the deterministic keyword
// fallback, which is useful for local smoke runs.
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/analysis"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/config"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/dataset"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/events"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/llm"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/logging"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/metrics"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/orchestrator"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/pipeline"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/store"
	"github.com/JRiishi/ADK-Customer-Call-Analysis/internal/transcribe"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "callanalyzer",
		Short:         "Analyze customer call transcripts with LLM evaluators",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newAnalyzeCmd(), newBatchCmd(), newPipelineCmd(), newSetupCmd(), newReportCmd())
	return root
}

// wire builds the analysis service and everything it depends on from the
// environment. The returned cleanup closes the store and event publisher.
func wire() (*analysis.Service, func(), error) {
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat)

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, err
	}

	invoker := llm.NewInvoker(llm.BedrockConfig{
		BearerToken: cfg.BedrockToken,
		Region:      cfg.BedrockRegion,
		ModelID:     cfg.BedrockModel,
	}, nil, log)

	m := metrics.New()
	publisher := events.NewPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)

	var transcriber transcribe.Transcriber
	if cfg.WhisperURL != "" {
		transcriber = transcribe.NewWhisperClient(transcribe.WhisperConfig{
			BaseURL: cfg.WhisperURL,
			Timeout: cfg.WhisperTimeout,
		}, &http.Client{Timeout: cfg.WhisperTimeout}, log)
	}

	orch := orchestrator.NewDefault(invoker, m, log)
	svc := analysis.New(orch, transcriber, st, publisher, m, cfg.BedrockModel, log)

	cleanup := func() {
		publisher.Close()
		st.Close()
	}
	return svc, cleanup, nil
}

func newAnalyzeCmd() *cobra.Command {
	var callID, transcriptFile, audioFile string

	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Run the evaluator panel over one call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, isAudio, err := resolveInput(transcriptFile, audioFile)
			if err != nil {
				return err
			}
			svc, cleanup, err := wire()
			if err != nil {
				return err
			}
			defer cleanup()

			results, err := svc.AnalyzeCall(cmd.Context(), callID, input, isAudio)
			if err != nil {
				return err
			}
			return printJSON(cmd, results)
		},
	}
	cmd.Flags().StringVar(&callID, "call-id", "", "call identifier")
	cmd.Flags().StringVar(&transcriptFile, "transcript-file", "", "path to a transcript text file")
	cmd.Flags().StringVar(&audioFile, "audio-file", "", "path to an audio file to transcribe first")
	cmd.MarkFlagRequired("call-id")
	return cmd
}

func newBatchCmd() *cobra.Command {
	var inputDir, filterPrefix string
	var limit int

	cmd := &cobra.Command{
		Use:   "batch",
		Short: "Analyze every transcript in a directory",
		RunE: func(cmd *cobra.Command, _ []string) error {
			calls, err := dataset.LoadCalls(inputDir, filterPrefix, limit)
			if err != nil {
				return err
			}
			if len(calls) == 0 {
				return errors.New("no transcripts matched the current filters")
			}
			svc, cleanup, err := wire()
			if err != nil {
				return err
			}
			defer cleanup()

			failures := 0
			for _, call := range calls {
				if _, err := svc.AnalyzeCall(cmd.Context(), call.CallID, call.Transcript, false); err != nil {
					failures++
					fmt.Fprintf(cmd.ErrOrStderr(), "call %s failed: %v\n", call.CallID, err)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Analyzed %d calls, %d failed\n", len(calls), failures)
			if failures == len(calls) {
				return errors.New("every call in the batch failed")
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&inputDir, "input-dir", "", "directory containing .txt transcripts")
	cmd.Flags().StringVar(&filterPrefix, "filter-prefix", "", "optional filename prefix filter")
	cmd.Flags().IntVar(&limit, "limit", 0, "max calls to process (0 = all)")
	cmd.MarkFlagRequired("input-dir")
	return cmd
}

func newPipelineCmd() *cobra.Command {
	var callID, transcriptFile string
	var frontend bool

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Run the staged deep-analysis chain over one call",
		RunE: func(cmd *cobra.Command, _ []string) error {
			input, _, err := resolveInput(transcriptFile, "")
			if err != nil {
				return err
			}
			cfg := config.Load()
			log := logging.New(cfg.LogLevel, cfg.LogFormat)
			invoker := llm.NewInvoker(llm.BedrockConfig{
				BearerToken: cfg.BedrockToken,
				Region:      cfg.BedrockRegion,
				ModelID:     cfg.BedrockModel,
			}, nil, log)

			result := pipeline.New(invoker, metrics.New(), log).Run(cmd.Context(), callID, input)
			if frontend {
				return printJSON(cmd, pipeline.FormatForFrontend(result))
			}
			return printJSON(cmd, result)
		},
	}
	cmd.Flags().StringVar(&callID, "call-id", "", "call identifier")
	cmd.Flags().StringVar(&transcriptFile, "transcript-file", "", "path to a transcript text file")
	cmd.Flags().BoolVar(&frontend, "frontend", false, "emit the dashboard view model instead of the raw result")
	cmd.MarkFlagRequired("call-id")
	cmd.MarkFlagRequired("transcript-file")
	return cmd
}

func newSetupCmd() *cobra.Command {
	var dbPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Drop and recreate the SQLite schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if dbPath == "" {
				dbPath = config.Load().DBPath
			}
			if err := store.Setup(dbPath); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Recreated schema at %s\n", dbPath)
			return nil
		},
	}
	cmd.Flags().StringVar(&dbPath, "db", "", "database path (defaults to CALL_ANALYSIS_DB)")
	return cmd
}

func newReportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "Summarize the persisted call analyses",
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := store.Open(config.Load().DBPath)
			if err != nil {
				return err
			}
			defer st.Close()

			sum, err := st.Summarize()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Calls analyzed:   %d\n", sum.Total)
			fmt.Fprintf(out, "Completed:        %d\n", sum.Completed)
			fmt.Fprintf(out, "Failed:           %d\n", sum.Failed)
			fmt.Fprintf(out, "Avg QA score:     %.1f\n", sum.AvgQAScore)
			fmt.Fprintf(out, "Avg SOP score:    %.1f\n", sum.AvgSOPScore)
			fmt.Fprintf(out, "Avg sentiment:    %.2f\n", sum.AvgSentiment)
			fmt.Fprintf(out, "Risk-flagged:     %d\n", sum.RiskFlaggedCalls)
			return nil
		},
	}
}

func resolveInput(transcriptFile, audioFile string) (input string, isAudio bool, err error) {
	switch {
	case transcriptFile != "" && audioFile != "":
		return "", false, errors.New("--transcript-file and --audio-file are mutually exclusive")
	case audioFile != "":
		return audioFile, true, nil
	case transcriptFile != "":
		raw, err := os.ReadFile(transcriptFile)
		if err != nil {
			return "", false, fmt.Errorf("read transcript: %w", err)
		}
		if strings.TrimSpace(string(raw)) == "" {
			return "", false, errors.New("transcript file is empty")
		}
		return string(raw), false, nil
	default:
		return "", false, errors.New("one of --transcript-file or --audio-file is required")
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
