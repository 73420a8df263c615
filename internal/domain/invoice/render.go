package invoice

import (
	_ "embed"
	"html/template"
	"io"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

//go:embed invoice.tmpl
var invoiceTmpl string

var tmpl = template.Must(
	template.New("invoice").Funcs(template.FuncMap{
		"date": func(t time.Time) string {
			return t.UTC().Format("02 Jan 2006")
		},
		"money": func(d decimal.Decimal) string {
			return d.StringFixed(2)
		},
	}).Parse(invoiceTmpl),
)

// Render writes the printable HTML representation of the invoice. Rendering
// is stateless over the snapshot: a failure here never touches the stored
// document, which stays re-renderable on demand.
func Render(w io.Writer, inv *Invoice) error {
	if err := tmpl.Execute(w, inv); err != nil {
		return errors.Wrap(err, "render invoice")
	}
	return nil
}
