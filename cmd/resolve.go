package main

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strconv"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/xconmik/buildata-automation/internal/company"
	"github.com/xconmik/buildata-automation/internal/fetcher"
	"github.com/xconmik/buildata-automation/internal/model"
)

var (
	resolveDomain    string
	resolveReference string
	resolveLeads     string
)

var resolveCmd = &cobra.Command{
	Use:   "resolve [company]",
	Short: "Resolve company names against the reference directory",
	Long: `Prints the name a company would be entered under. With a company argument the
result is printed as JSON; with --leads every row of the sheet is resolved and
printed as CSV.

Examples:
  buildata resolve "Acme" --domain acme.com
  buildata resolve "Acme am" --reference "Acme Manufacturing"
  buildata resolve --leads leads.csv > resolved.csv`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("resolve"); err != nil {
			return err
		}
		if len(args) == 0 && resolveLeads == "" {
			return eris.New("a company argument or --leads is required")
		}

		ctx := cmd.Context()
		dl := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{})
		dir, err := company.LoadDirectory(ctx, cfg.Reference.Path, dl)
		if err != nil {
			return eris.Wrap(err, "load reference directory")
		}
		res := company.NewResolver(dir)
		out := cmd.OutOrStdout()

		if len(args) == 1 {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(res.ResolveDetail(args[0], resolveDomain, resolveReference))
		}

		aliases, err := loadAliases(cfg.Leads.AliasFile)
		if err != nil {
			return err
		}
		leads, err := loadLeads(ctx, resolveLeads, cfg.Leads.Sheet, aliases, dl)
		if err != nil {
			return err
		}
		return writeResolutions(out, res, leads)
	},
}

var resolutionHeader = []string{"Row", "Company", "Domain", "Resolved", "Reference", "Match", "Merged"}

func writeResolutions(w io.Writer, res *company.Resolver, leads []model.Lead) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(resolutionHeader); err != nil {
		return eris.Wrap(err, "write header")
	}
	for _, l := range leads {
		r := res.ResolveDetail(l.Get(model.FieldCompany), l.Get(model.FieldDomain), l.Get(model.FieldReferenceCompany))
		merged := "no"
		if r.Merged {
			merged = "yes"
		}
		rec := []string{
			strconv.Itoa(l.Index + 1),
			l.Get(model.FieldCompany),
			l.Get(model.FieldDomain),
			r.Name,
			r.Reference,
			string(r.Match),
			merged,
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "write row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "flush")
}

func init() {
	resolveCmd.Flags().StringVar(&resolveDomain, "domain", "", "company domain or website")
	resolveCmd.Flags().StringVar(&resolveReference, "reference", "", "explicit reference company name")
	resolveCmd.Flags().StringVar(&resolveLeads, "leads", "", "resolve every row of this CSV or XLSX sheet")
	rootCmd.AddCommand(resolveCmd)
}
