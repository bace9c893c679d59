package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
)

const (
	outputJSON   = "json"
	outputTurtle = "turtle"
	outputTable  = "table"
)

// outputFormat returns the --output value if the command supports it.
func outputFormat(supported ...string) (string, error) {
	for _, f := range supported {
		if output == f {
			return output, nil
		}
	}
	return "", fmt.Errorf("unsupported output format %q, expected one of: %s", output, strings.Join(supported, ", "))
}

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// row writes one tab separated table row.
func row(w io.Writer, cols ...interface{}) {
	parts := make([]string, len(cols))
	for i, c := range cols {
		parts[i] = fmt.Sprint(c)
	}
	fmt.Fprintln(w, strings.Join(parts, "\t"))
}
