package console

import (
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/keatumal/yandex-metrika-logs/internal/ddl"
	"github.com/keatumal/yandex-metrika-logs/internal/logsapi"
)

// markdown configures w for a Markdown pipe table.
func markdown(w io.Writer, header []string) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.SetHeader(header)
	t.SetAutoFormatHeaders(false)
	t.SetAutoWrapText(false)
	t.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	t.SetAlignment(tablewriter.ALIGN_LEFT)
	t.SetBorders(tablewriter.Border{Left: true, Top: false, Right: true, Bottom: false})
	t.SetCenterSeparator("|")
	return t
}

// ReportsTable prints one row per report and returns the summed size.
func ReportsTable(w io.Writer, reports []logsapi.ReportInfo) int64 {
	t := markdown(w, []string{"ID", "Start date", "End date", "Source", "Attrib", "# fields", "# parts", "Size", "Status"})
	var total int64
	for _, r := range reports {
		t.Append([]string{
			strconv.FormatInt(r.RequestID, 10),
			r.Date1,
			r.Date2,
			r.Source,
			r.Attribution,
			strconv.Itoa(len(r.Fields)),
			strconv.Itoa(len(r.Parts)),
			Size(r.Size),
			string(r.Status),
		})
		total += r.Size
	}
	t.Render()
	return total
}

// ColumnsTable prints the Field/Type table of a table definition.
func ColumnsTable(w io.Writer, def ddl.TableDef) {
	t := markdown(w, []string{"Field", "Type"})
	for _, c := range def.Columns {
		typ := c.SQLType
		if typ == "" {
			typ = c.Type.String()
		}
		t.Append([]string{c.Name, typ})
	}
	t.Render()
}
