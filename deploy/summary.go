package deploy

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/palomachain/wasmdeploy"
)

func newTable(title string, header table.Row) table.Writer {
	t := table.NewWriter()
	t.Style().Title.Align = text.AlignCenter
	t.Style().Title.Format = text.FormatUpper
	t.Style().Options.SeparateRows = true
	t.SetTitle(title)
	if header != nil {
		t.AppendHeader(header)
	}
	return t
}

// Summary writes the report's codes, contracts and captured values as
// tables.
func Summary(w io.Writer, rep wasmdeploy.Report) error {
	header := newTable("Deployment", nil)
	header.AppendRow(table.Row{"Plan", rep.Plan})
	header.AppendRow(table.Row{"Chain ID", rep.ChainID})
	header.AppendRow(table.Row{"Sender", rep.Sender})
	header.AppendRow(table.Row{"Run ID", rep.RunID})
	var done int
	var pending []string
	for _, id := range sortedKeys(rep.Steps) {
		if rep.Steps[id].Pending {
			pending = append(pending, id)
			continue
		}
		done++
	}
	header.AppendRow(table.Row{"Steps completed", done})
	if len(pending) > 0 {
		header.AppendRow(table.Row{"Steps pending", strings.Join(pending, ", ")})
	}
	if _, err := fmt.Fprintln(w, header.Render()); err != nil {
		return err
	}

	if len(rep.Codes) > 0 {
		t := newTable("Codes", table.Row{"Contract", "Code ID"})
		for _, name := range sortedKeys(rep.Codes) {
			t.AppendRow(table.Row{name, strconv.FormatUint(rep.Codes[name], 10)})
		}
		if _, err := fmt.Fprintln(w, t.Render()); err != nil {
			return err
		}
	}
	if len(rep.Contracts) > 0 {
		t := newTable("Contracts", table.Row{"Name", "Address"})
		for _, name := range sortedKeys(rep.Contracts) {
			t.AppendRow(table.Row{name, rep.Contracts[name]})
		}
		if _, err := fmt.Fprintln(w, t.Render()); err != nil {
			return err
		}
	}
	if len(rep.Values) > 0 {
		t := newTable("Captured values", table.Row{"Name", "Value"})
		for _, name := range sortedKeys(rep.Values) {
			t.AppendRow(table.Row{name, rep.Values[name]})
		}
		if _, err := fmt.Fprintln(w, t.Render()); err != nil {
			return err
		}
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
