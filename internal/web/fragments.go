package web

import (
	"context"
	"io"
	"strings"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheetstore/internal/schema"
	"github.com/JonMunkholm/sheetstore/internal/store"
)

// ErrorAlert renders an error as an HTMX swap target.
func ErrorAlert(msg UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="alert alert-error" role="alert"><p class="alert-message">`)
		b.WriteString(templ.EscapeString(msg.Message))
		b.WriteString(`</p>`)
		if msg.Action != "" {
			b.WriteString(`<p class="alert-action">`)
			b.WriteString(templ.EscapeString(msg.Action))
			b.WriteString(`</p>`)
		}
		if len(msg.Fields) > 0 {
			b.WriteString(`<ul class="alert-fields">`)
			for _, f := range msg.Fields {
				b.WriteString(`<li><strong>`)
				b.WriteString(templ.EscapeString(f.Field))
				b.WriteString(`</strong> `)
				b.WriteString(templ.EscapeString(f.Message))
				b.WriteString(`</li>`)
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`<p class="alert-code">Error code: `)
		b.WriteString(templ.EscapeString(msg.Code))
		b.WriteString(`</p></div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}

// RecordTable renders records as an HTML table in header order.
// Soft-deleted rows carry the "deleted" class.
func RecordTable(def schema.Table, records []store.Record) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		header := def.Header()

		var b strings.Builder
		b.WriteString(`<table class="records" data-table="`)
		b.WriteString(templ.EscapeString(def.Name))
		b.WriteString(`"><thead><tr>`)
		for _, h := range header {
			b.WriteString(`<th>`)
			b.WriteString(templ.EscapeString(h))
			b.WriteString(`</th>`)
		}
		b.WriteString(`</tr></thead><tbody>`)
		for _, rec := range records {
			if rec.Fields[schema.StatusColumn] == schema.StatusDeleted {
				b.WriteString(`<tr class="deleted">`)
			} else {
				b.WriteString(`<tr>`)
			}
			for _, h := range header {
				v := rec.Fields[h]
				if h == schema.IDColumn {
					v = rec.ID
				}
				b.WriteString(`<td>`)
				b.WriteString(templ.EscapeString(v))
				b.WriteString(`</td>`)
			}
			b.WriteString(`</tr>`)
		}
		b.WriteString(`</tbody></table>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
