// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package aggregate

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"
)

// FormatTable writes items as a human-readable table to w, followed by a
// warning line per failed source.
func FormatTable(out Output, w io.Writer) {
	if len(out.Items) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		fmt.Fprintf(w, "%-4s  %-50s  %-12s  %-10s  %s\n", "#", "Title", "Price", "Source", "Link")
		fmt.Fprintln(w, strings.Repeat("-", 110))
		for i, it := range out.Items {
			fmt.Fprintf(w, "%-4d  %-50s  %-12s  %-10s  %s\n",
				i+1, truncate(it.Title, 50), truncate(it.Price, 12), it.Source, it.Link)
		}
		fmt.Fprintf(w, "\n%d results\n", len(out.Items))
	}

	for _, f := range out.Failures {
		fmt.Fprintf(w, "warning: %s %s: %s\n", f.Source, f.Kind, f.Reason)
	}
}

// FormatJSON writes the output as indented JSON to w.
func FormatJSON(out Output, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

// truncate shortens s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max-3]) + "..."
}
