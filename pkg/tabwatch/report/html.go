package report

import (
	"bytes"
	"html/template"

	"github.com/tabwatch/tabwatch/pkg/tabwatch/diff"
)

// HTMLFormatter renders the diff result as a self-contained HTML document
// with inline styling, suitable for opening directly in a browser or
// attaching to a build notification.
type HTMLFormatter struct{}

// htmlData is the template context.
type htmlData struct {
	Result      *diff.Result
	GeneratedAt string
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Change Report</title>
<style>
body { font-family: -apple-system, "Segoe UI", sans-serif; margin: 2rem; color: #1f2430; }
h1, h2 { font-weight: 600; }
table { border-collapse: collapse; margin: 0.5rem 0 1.5rem; }
th, td { border: 1px solid #d4d8e0; padding: 0.35rem 0.75rem; text-align: left; }
th { background: #f2f4f8; }
.added { color: #1a7f37; }
.removed { color: #cf222e; }
.modified { color: #9a6700; }
.moved { color: #0969da; }
.note { background: #fff8c5; padding: 0.5rem 0.75rem; border-radius: 4px; }
pre { background: #f6f8fa; padding: 0.75rem; overflow-x: auto; }
</style>
</head>
<body>
<h1>Change Report</h1>
<p>
<strong>Old:</strong> <code>{{.Result.OldPath}}</code><br>
<strong>New:</strong> <code>{{.Result.NewPath}}</code><br>
<strong>Mode:</strong> {{.Result.Mode}}<br>
<strong>Generated:</strong> {{.GeneratedAt}}
</p>
{{if .Result.Truncated}}<p class="note">Partial result: the row ceiling was reached.</p>{{end}}

<h2>Statistics</h2>
<table>
<tr><th>Metric</th><th>Value</th></tr>
<tr><td>Old rows</td><td>{{.Result.Statistics.OldRowCount}}</td></tr>
<tr><td>New rows</td><td>{{.Result.Statistics.NewRowCount}}</td></tr>
<tr><td>Added</td><td class="added">{{.Result.Statistics.RowsAdded}}</td></tr>
<tr><td>Removed</td><td class="removed">{{.Result.Statistics.RowsRemoved}}</td></tr>
<tr><td>Modified</td><td class="modified">{{.Result.Statistics.RowsModified}}</td></tr>
<tr><td>Moved</td><td class="moved">{{.Result.Statistics.RowsMoved}}</td></tr>
<tr><td>Cell changes</td><td>{{.Result.Statistics.CellChanges}}</td></tr>
<tr><td>Change %</td><td>{{printf "%.1f" .Result.Statistics.ChangePercent}}</td></tr>
</table>

{{if .Result.SchemaChanges}}
<h2>Schema Changes</h2>
<table>
<tr><th>Column</th><th>Change</th><th>Old Position</th><th>New Position</th></tr>
{{range .Result.SchemaChanges}}
<tr class="{{.ChangeType}}"><td>{{.Column}}</td><td>{{.ChangeType}}</td><td>{{pos .OldIndex}}</td><td>{{pos .NewIndex}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Result.RowChanges}}
<h2>Row Changes</h2>
<table>
<tr><th>Row</th><th>Change</th><th>Detail</th></tr>
{{range .Result.RowChanges}}
<tr class="{{.ChangeType}}"><td>{{.RowIndex}}</td><td>{{.ChangeType}}</td><td>{{detail . $.Result}}</td></tr>
{{end}}
</table>
{{end}}

{{if .Result.TextDiff}}
<h2>Patch</h2>
<pre>{{.Result.TextDiff}}</pre>
{{end}}
</body>
</html>
`

var htmlTmpl = template.Must(template.New("report").Funcs(template.FuncMap{
	"pos":    position,
	"detail": rowDetail,
}).Parse(htmlTemplate))

// Format writes the rendered report to the buffer.
func (f *HTMLFormatter) Format(w *bytes.Buffer, r *diff.Result) error {
	return htmlTmpl.Execute(w, htmlData{
		Result:      r,
		GeneratedAt: r.GeneratedAt.UTC().Format(timeLayout),
	})
}

func init() {
	Register("html", func() Formatter {
		return &HTMLFormatter{}
	})
}

// Ensure HTMLFormatter implements Formatter.
var _ Formatter = (*HTMLFormatter)(nil)
