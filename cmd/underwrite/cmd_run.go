package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"underwriting-engine/internal/app"
	"underwriting-engine/internal/config"
	"underwriting-engine/internal/models"
)

type runOptions struct {
	input   string
	persist bool
	summary bool
}

func newRunCmd(root *rootOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run --input deal.json",
		Short: "Underwrite one deal or a list of deals",
		Long: `Reads a deal (or a list of deals) from a JSON or YAML file and prints the
underwriting run. Use "-" to read JSON from stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUnderwrite(cmd, root, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "Deal file (.json, .yaml, .yml or - for stdin)")
	cmd.Flags().BoolVar(&opts.persist, "persist", false, "Store runs in the configured database and cache")
	cmd.Flags().BoolVar(&opts.summary, "summary", false, "Print a summary table instead of JSON")
	_ = cmd.MarkFlagRequired("input")
	return cmd
}

func runUnderwrite(cmd *cobra.Command, root *rootOptions, opts *runOptions) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), root.timeout)
	defer cancel()

	deals, err := readDeals(cmd.InOrStdin(), opts.input)
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if root.catalogDir != "" {
		cfg.CatalogDir = root.catalogDir
	}
	if !opts.persist {
		cfg.DatabaseURLOverride = ""
		cfg.DBPassword = ""
		cfg.RedisAddr = ""
	}

	a, err := app.New(ctx, cfg, logger())
	if err != nil {
		return err
	}
	defer a.Close()

	var runs []*models.UnderwritingRun
	var failures []string
	if len(deals) == 1 {
		run, err := a.Service.Underwrite(ctx, deals[0])
		if err != nil {
			return fmt.Errorf("failed to underwrite deal: %w", err)
		}
		runs = append(runs, run)
	} else {
		items, err := a.Service.UnderwriteBatch(ctx, deals)
		if err != nil {
			return err
		}
		for _, item := range items {
			if item.Run != nil {
				runs = append(runs, item.Run)
				continue
			}
			failures = append(failures, fmt.Sprintf("deal %d: %s", item.Index+1, item.Error))
		}
	}

	out := cmd.OutOrStdout()
	if opts.summary {
		printSummary(out, runs)
	} else {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		var payload interface{} = runs
		if len(deals) == 1 {
			payload = runs[0]
		}
		if err := enc.Encode(payload); err != nil {
			return fmt.Errorf("failed to write result: %w", err)
		}
	}

	if len(failures) > 0 {
		return fmt.Errorf("%d of %d deals failed:\n  %s", len(failures), len(deals), strings.Join(failures, "\n  "))
	}
	return nil
}

// readDeals decodes one deal or a list of deals. YAML is normalized through
// JSON so both formats share the JSON field names and validation.
func readDeals(stdin io.Reader, path string) ([]*models.CalculationInputs, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read deals: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse YAML: %w", err)
		}
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("failed to convert YAML: %w", err)
		}
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var deals []*models.CalculationInputs
		if err := json.Unmarshal(trimmed, &deals); err != nil {
			return nil, fmt.Errorf("failed to decode deals: %w", err)
		}
		if len(deals) == 0 {
			return nil, fmt.Errorf("%w: no deals in %s", models.ErrInvalidInputs, path)
		}
		return deals, nil
	}

	var deal models.CalculationInputs
	if err := json.Unmarshal(trimmed, &deal); err != nil {
		return nil, fmt.Errorf("failed to decode deal: %w", err)
	}
	return []*models.CalculationInputs{&deal}, nil
}

func printSummary(out io.Writer, runs []*models.UnderwritingRun) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DEAL\tPRODUCT\tNOI\tLOAN\tDSCR\tMAX LOAN\tBOUND BY\tIRR %\tRESULT")
	for _, run := range runs {
		r := run.Result
		irr := "n/a"
		if r.Returns.IRRPercent != nil {
			irr = r.Returns.IRRPercent.StringFixed(2)
		}
		verdict := "no agency"
		if run.OverallPass != nil {
			verdict = "FAIL " + strings.Join(r.Compliance().FailedTests(), ", ")
			if *run.OverallPass {
				verdict = "PASS"
			}
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			run.DealName,
			r.Product.String(),
			r.NOI().StringFixed(0),
			r.Loan.Amount().StringFixed(0),
			r.DSCR.StringFixed(2),
			r.Sizing.MaxLoan.StringFixed(0),
			r.Sizing.ConstrainingTest,
			irr,
			verdict,
		)
	}
	_ = w.Flush()
}
