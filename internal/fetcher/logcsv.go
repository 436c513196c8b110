package fetcher

import (
	"encoding/csv"
	"io"
	"time"

	"github.com/rotisserie/eris"

	"github.com/xconmik/buildata-automation/internal/model"
)

// LogHeader is the column layout of an exported run log.
var LogHeader = []string{"Timestamp", "Status", "Company", "Domain", "Name", "Message"}

// WriteLogCSV writes rows as a headered CSV document. Quoting follows
// RFC 4180.
func WriteLogCSV(w io.Writer, rows []model.LogRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(LogHeader); err != nil {
		return eris.Wrap(err, "fetcher: write log header")
	}
	for _, r := range rows {
		rec := []string{
			r.Timestamp.UTC().Format(time.RFC3339),
			string(r.Status),
			r.Company,
			r.Domain,
			r.PersonName,
			r.Message,
		}
		if err := cw.Write(rec); err != nil {
			return eris.Wrap(err, "fetcher: write log row")
		}
	}
	cw.Flush()
	return eris.Wrap(cw.Error(), "fetcher: flush log")
}
