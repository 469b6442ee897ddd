package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	thehive "github.com/mkivela/go-thehive"
	"github.com/mkivela/go-thehive/internal/workflow"
)

var (
	runTitle       string
	runDescription string
	runSeverity    int
	runSource      string
	runSourceRef   string
	runTags        []string
	runObservables []string
	runFile        string
	runAnalyzerIDs   []string
	runResponder   string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the incident-handling workflow",
	Long: `Run the end-to-end workflow: create an alert, promote it to a case,
attach observables, launch analyzers on matching observables, poll each
job to completion, and trigger the responder when analysis succeeded.

Observables are given as dataType:value pairs, e.g. ip:8.8.8.8 or
domain:evil.example.`,
	Args: cobra.NoArgs,
	RunE: runWorkflow,
}

func init() {
	runCmd.Flags().StringVarP(&runTitle, "title", "t", "", "Alert title (required)")
	runCmd.Flags().StringVarP(&runDescription, "description", "d", "", "Alert description")
	runCmd.Flags().IntVar(&runSeverity, "severity", int(thehive.SeverityMedium), "Severity 1..4")
	runCmd.Flags().StringVar(&runSource, "source", "", "Alert source")
	runCmd.Flags().StringVar(&runSourceRef, "source-ref", "", "Alert source reference (generated when empty)")
	runCmd.Flags().StringSliceVar(&runTags, "tag", nil, "Tags to set on the alert")
	runCmd.Flags().StringSliceVarP(&runObservables, "observable", "o", nil, "Observable as dataType:value (repeatable)")
	runCmd.Flags().StringVar(&runFile, "file", "", "File to attach as a file observable")
	runCmd.Flags().StringSliceVar(&runAnalyzerIDs, "analyzer", nil, "Analyzer IDs to launch (default from config)")
	runCmd.Flags().StringVar(&runResponder, "responder", "", "Responder ID to launch (default from config)")
	_ = runCmd.MarkFlagRequired("title")
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := newClient(cfg)
	if err != nil {
		return err
	}

	observables, err := parseObservables(runObservables)
	if err != nil {
		return err
	}

	analyzers := runAnalyzerIDs
	if len(analyzers) == 0 {
		analyzers = cfg.Workflow.Analyzers
	}
	responder := runResponder
	if responder == "" {
		responder = cfg.Workflow.Responder
	}

	interval, err := cfg.PollInterval()
	if err != nil {
		return err
	}
	timeout, err := cfg.PollTimeout()
	if err != nil {
		return err
	}

	logger := newLogger()
	svc := &workflow.Service{
		Client:    client,
		Logger:    logger,
		Analyzers: analyzers,
		Responder: responder,
		Poll: thehive.PollOptions{
			Interval: interval,
			MaxWait:  timeout,
			Logger:   logger,
		},
	}

	summary, err := svc.Run(cmd.Context(), &workflow.Input{
		Title:       runTitle,
		Description: runDescription,
		Severity:    thehive.Severity(runSeverity),
		Source:      runSource,
		SourceRef:   runSourceRef,
		Tags:        runTags,
		Observables: observables,
		FilePath:    runFile,
	})
	if err != nil {
		return err
	}

	printSummary(summary)
	return nil
}

// parseObservables splits dataType:value flags into workflow inputs.
func parseObservables(specs []string) ([]workflow.ObservableInput, error) {
	var out []workflow.ObservableInput
	for _, spec := range specs {
		dataType, value, ok := strings.Cut(spec, ":")
		if !ok || dataType == "" || value == "" {
			return nil, fmt.Errorf("invalid observable %q: expected dataType:value", spec)
		}
		out = append(out, workflow.ObservableInput{DataType: dataType, Data: value})
	}
	return out, nil
}

func printSummary(s *workflow.Summary) {
	fmt.Printf("Alert:       %s\n", s.AlertID)
	fmt.Printf("Case:        %s\n", s.CaseID)
	fmt.Printf("Observables: %d\n", len(s.ObservableIDs))

	for _, job := range s.Jobs {
		switch {
		case job.Err != nil:
			fmt.Printf("Job %s (%s): error: %v\n", job.JobID, job.AnalyzerID, job.Err)
		case job.Result.TimedOut:
			fmt.Printf("Job %s (%s): timed out after %s (last status %s)\n",
				job.JobID, job.AnalyzerID, job.Result.Elapsed.Round(time.Millisecond), job.Result.Status)
		default:
			fmt.Printf("Job %s (%s): %s in %s\n",
				job.JobID, job.AnalyzerID, job.Result.Status, job.Result.Elapsed.Round(time.Millisecond))
		}
	}

	if s.ResponderRan {
		fmt.Printf("Responder:   action %s launched\n", s.ActionID)
	}
}
