package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/llm"
	"github.com/turtacn/NeuroChart-Intelligence/internal/extraction/session"
	"github.com/turtacn/NeuroChart-Intelligence/pkg/types/clinical"
)

func newExtractCmd(opts *RootOptions) *cobra.Command {
	var (
		pathology string
		age       int
		sex       string
		remote    bool
		summary   bool
	)

	cmd := &cobra.Command{
		Use:   "extract [files...]",
		Short: "Extract structured data from progress notes",
		Long: `Run the extraction pipeline over one or more note files and print the
resulting session as JSON.  Each file is treated as one document; "-" reads
a single document from stdin.  By default the pipeline runs in-process with
no external dependencies; --remote submits to the configured API server
instead.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			documents, err := readDocuments(args, cmd.InOrStdin())
			if err != nil {
				return err
			}

			req := &clinical.ExtractionRequest{
				Documents: documents,
				Hints: clinical.ExtractionHints{
					Pathology:  clinical.PathologyType(strings.ToUpper(pathology)),
					PatientAge: age,
					PatientSex: sex,
				},
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.Timeout)
			defer cancel()

			var sess *clinical.ExtractionSession
			if remote {
				api, err := newAPIClient(opts)
				if err != nil {
					return err
				}
				sess, err = api.Extract(ctx, req)
				if err != nil {
					return err
				}
			} else {
				sess, err = runLocal(ctx, opts, req)
				if err != nil {
					return err
				}
			}

			if summary {
				printSummary(cmd.OutOrStdout(), sess)
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		},
	}

	cmd.Flags().StringVar(&pathology, "pathology", "", "pathology hint (e.g. SUBARACHNOID_HEMORRHAGE)")
	cmd.Flags().IntVar(&age, "age", 0, "patient age hint")
	cmd.Flags().StringVar(&sex, "sex", "", "patient sex hint")
	cmd.Flags().BoolVar(&remote, "remote", false, "submit to the API server instead of running in-process")
	cmd.Flags().BoolVar(&summary, "summary", false, "print a human-readable summary instead of JSON")
	return cmd
}

func readDocuments(args []string, stdin io.Reader) ([]string, error) {
	documents := make([]string, 0, len(args))
	for _, arg := range args {
		if arg == "-" {
			data, err := io.ReadAll(stdin)
			if err != nil {
				return nil, fmt.Errorf("reading stdin: %w", err)
			}
			documents = append(documents, string(data))
			continue
		}
		data, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", arg, err)
		}
		documents = append(documents, string(data))
	}
	return documents, nil
}

func runLocal(ctx context.Context, opts *RootOptions, req *clinical.ExtractionRequest) (*clinical.ExtractionSession, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger, err := newLogger(opts)
	if err != nil {
		return nil, err
	}

	var extractor llm.Extractor
	if cfg.Pipeline.LLM.Enabled {
		extractor, err = llm.NewHTTPExtractor(llm.Config{
			BaseURL:    cfg.Pipeline.LLM.BaseURL,
			APIKey:     cfg.Pipeline.LLM.APIKey,
			Model:      cfg.Pipeline.LLM.Model,
			Timeout:    cfg.Pipeline.LLM.Timeout,
			MaxRetries: cfg.Pipeline.LLM.MaxRetries,
		}, logger)
		if err != nil {
			return nil, err
		}
	}

	return session.NewPipeline(cfg.Pipeline, extractor, logger).Extract(ctx, req)
}

func printSummary(w io.Writer, sess *clinical.ExtractionSession) {
	fmt.Fprintf(w, "Session:    %s\n", sess.ID)
	fmt.Fprintf(w, "Pathology:  %s\n", sess.PrimaryPathology)
	fmt.Fprintf(w, "Entities:   %d\n", len(sess.Entities))
	fmt.Fprintf(w, "Events:     %d\n", len(sess.Timeline))
	fmt.Fprintf(w, "Causal:     %d\n", len(sess.CausalRelationships))
	if sess.Quality != nil {
		fmt.Fprintf(w, "Quality:    %.2f\n", sess.Quality.Overall)
	}
	if sess.Degraded {
		fmt.Fprintln(w, "Degraded:   yes")
	}
	for _, warning := range sess.Warnings {
		fmt.Fprintf(w, "Warning:    %s\n", warning)
	}
	for _, ev := range sess.Timeline {
		fmt.Fprintf(w, "  %s  %-14s %s\n", ev.Date.Format("2006-01-02"), ev.Type, ev.Description)
	}
}
