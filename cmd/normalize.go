package main

import (
	"encoding/json"
	"io"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/xconmik/buildata-automation/internal/company"
	"github.com/xconmik/buildata-automation/internal/fetcher"
	"github.com/xconmik/buildata-automation/internal/form"
	"github.com/xconmik/buildata-automation/internal/model"
)

var (
	normalizeLeads string
	normalizeLimit int
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize",
	Short: "Preview the form values built from a lead sheet",
	Long: `Resolves each lead's company and prints the values that would be typed into
the lead form, one JSON object per line. No pages are scraped and no browser
is started, so only sheet values and derived fields appear.

Examples:
  buildata normalize --leads leads.csv
  buildata normalize --leads leads.xlsx --limit 5`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("normalize"); err != nil {
			return err
		}
		if normalizeLeads == "" {
			return eris.New("--leads is required")
		}

		ctx := cmd.Context()
		dl := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
		aliases, err := loadAliases(cfg.Leads.AliasFile)
		if err != nil {
			return err
		}
		leads, err := loadLeads(ctx, normalizeLeads, cfg.Leads.Sheet, aliases, dl)
		if err != nil {
			return err
		}
		dir, err := company.LoadDirectory(ctx, cfg.Reference.Path, dl)
		if err != nil {
			return eris.Wrap(err, "load reference directory")
		}

		if normalizeLimit > 0 && normalizeLimit < len(leads) {
			leads = leads[:normalizeLimit]
		}
		return writePayloads(cmd.OutOrStdout(), company.NewResolver(dir), leads, cfg.Form.Campaign)
	},
}

type payloadLine struct {
	Row      int          `json:"row"`
	Campaign string       `json:"campaign,omitempty"`
	Fields   form.Payload `json:"fields"`
}

func writePayloads(w io.Writer, res *company.Resolver, leads []model.Lead, defaultCampaign string) error {
	enc := json.NewEncoder(w)
	for _, l := range leads {
		l.ResolvedCompany = res.Resolve(l.Get(model.FieldCompany), l.Get(model.FieldDomain), l.Get(model.FieldReferenceCompany))
		fields := form.Payload{}
		for id, v := range form.BuildPayload(l) {
			if v != "" {
				fields[id] = v
			}
		}
		line := payloadLine{
			Row:      l.Index + 1,
			Campaign: firstNonEmpty(l.Get(model.FieldCampaign), defaultCampaign),
			Fields:   fields,
		}
		if err := enc.Encode(line); err != nil {
			return eris.Wrap(err, "encode payload")
		}
	}
	return nil
}

func init() {
	normalizeCmd.Flags().StringVar(&normalizeLeads, "leads", "", "lead sheet: CSV or XLSX path or URL (required)")
	normalizeCmd.Flags().IntVar(&normalizeLimit, "limit", 0, "only print the first n leads (0 = all)")
	rootCmd.AddCommand(normalizeCmd)
}
