package report

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/ntewolde/local-buyer-intelligence/pkg/intel"
)

// Export is a locally materialized downloadable file: content plus a
// suggested filename. Delivery (filesystem write, HTTP attachment, ...) is
// the caller's concern, keeping export logic free of platform mechanics.
type Export struct {
	Filename string
	MIMEType string
	Content  []byte
}

// ExportJSON serializes the whole report, pretty-printed. Parsing the
// content back yields an object deep-equal to the report.
func ExportJSON(r intel.IntelligenceReport) (Export, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return Export{}, err
	}
	return Export{
		Filename: fmt.Sprintf("report-%d-%s.json", r.ID, r.ServiceCategory),
		MIMEType: "application/json",
		Content:  data,
	}, nil
}

// ExportCSV renders the report's ZIP demand scores as a two-column CSV:
// header "ZIP Code","Demand Score", one row per score, every value
// double-quoted, rows in the payload's document order. A report without
// scores produces nothing: ok is false and no error is raised.
func ExportCSV(r intel.IntelligenceReport) (exp Export, ok bool) {
	scores := gjson.ParseBytes(r.ZipDemandScores)
	if !scores.IsObject() {
		return Export{}, false
	}

	var b strings.Builder
	b.WriteString(`"ZIP Code","Demand Score"`)
	scores.ForEach(func(zip, score gjson.Result) bool {
		b.WriteString("\n")
		fmt.Fprintf(&b, "%q,%q", zip.String(), score.String())
		return true
	})

	return Export{
		Filename: fmt.Sprintf("report-%d-zip-scores.csv", r.ID),
		MIMEType: "text/csv",
		Content:  []byte(b.String()),
	}, true
}
