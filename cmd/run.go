package main

import (
	"errors"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xconmik/buildata-automation/internal/fetcher"
	"github.com/xconmik/buildata-automation/internal/model"
	"github.com/xconmik/buildata-automation/internal/pipeline"
)

var (
	runLeads    string
	runSheet    string
	runLogOut   string
	runCampaign string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process a lead sheet end to end",
	Long: `Reads leads from a CSV or XLSX file (local path or URL), scrapes
company facts for each one, and fills the lead form in the browser. Leads are
processed one at a time in file order.

Examples:
  buildata run --leads leads.csv
  buildata run --leads leads.xlsx --sheet "Week 12" --campaign "Q3 Outreach"
  buildata run --leads leads.csv --log-out run-log.csv`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runLeads == "" {
			return eris.New("--leads is required")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if runSheet == "" {
			runSheet = cfg.Leads.Sheet
		}

		env, err := initRun(ctx, "run", runCampaign)
		if err != nil {
			return err
		}
		defer env.Close()

		leads, err := loadLeads(ctx, runLeads, runSheet, env.Aliases, env.Downloader)
		if err != nil {
			return err
		}
		zap.L().Info("leads loaded", zap.String("source", runLeads), zap.Int("count", len(leads)))

		runErr := env.Controller.Start(ctx, leads)

		if err := writeRunLog(runLogOut, env.Controller.Log().Rows()); err != nil {
			zap.L().Error("write run log failed", zap.Error(err))
		}
		logRunSummary(env.Controller)

		if runErr != nil && ctx.Err() != nil && errors.Is(runErr, ctx.Err()) {
			zap.L().Warn("run interrupted")
			return nil
		}
		return runErr
	},
}

// writeRunLog writes rows to path, or to stdout when path is "-". An empty
// path writes nothing.
func writeRunLog(path string, rows []model.LogRow) error {
	if path == "" {
		return nil
	}
	var w io.Writer = os.Stdout
	if path != "-" {
		f, err := os.Create(path)
		if err != nil {
			return eris.Wrapf(err, "create %s", path)
		}
		defer f.Close() //nolint:errcheck
		w = f
	}
	return fetcher.WriteLogCSV(w, rows)
}

func logRunSummary(c *pipeline.Controller) {
	counts := make(map[model.LogStatus]int)
	for _, r := range c.Log().Rows() {
		counts[r.Status]++
	}
	st := c.Status()
	zap.L().Info("run finished",
		zap.String("run_id", st.RunID),
		zap.String("state", string(st.State)),
		zap.Int("processed", st.Processed),
		zap.Int("total", st.Total),
		zap.Int("success", counts[model.LogSuccess]),
		zap.Int("skipped", counts[model.LogSkippedCompany]),
		zap.Int("invalid", counts[model.LogInvalidEmail]+counts[model.LogHardInvalid]),
		zap.Int("blocked", counts[model.LogCompanyBlocked]),
		zap.Int("errors", counts[model.LogError]),
	)
}

func init() {
	runCmd.Flags().StringVar(&runLeads, "leads", "", "lead sheet: CSV or XLSX path or URL (required)")
	runCmd.Flags().StringVar(&runSheet, "sheet", "", "XLSX worksheet name (default from config, else first sheet)")
	runCmd.Flags().StringVar(&runLogOut, "log-out", "", "write the run log as CSV to this path (- for stdout)")
	runCmd.Flags().StringVar(&runCampaign, "campaign", "", "campaign for rows that name none (default from config)")
	rootCmd.AddCommand(runCmd)
}
