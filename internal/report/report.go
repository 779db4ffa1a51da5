package report

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/PAXECT-Interface/paxect-harness/internal/result"
)

// Generate reads a stored run summary and renders it as table, markdown or json.
func Generate(path, format string, w io.Writer) error {
	summary, err := result.ReadSummary(path)
	if err != nil {
		return err
	}
	return Write(summary, format, w)
}

func Write(summary *result.RunSummary, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(summary, w)
	case "json":
		return writeJSON(summary, w)
	case "table", "":
		return writeTable(summary, w)
	default:
		return fmt.Errorf("unknown report format %q (table, markdown, json)", format)
	}
}

// Headline is the "N/M demos succeeded" aggregate line.
func Headline(s *result.RunSummary) string {
	return fmt.Sprintf("%d/%d demos succeeded", result.CountOK(s.Results), len(s.Results))
}

func writeTable(s *result.RunSummary, w io.Writer) error {
	fmt.Fprintf(w, "Run at %s\n\n", time.Unix(s.Timestamp, 0).UTC().Format(time.RFC3339))
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "DEMO\tSTATUS\tELAPSED")
	fmt.Fprintln(tw, strings.Repeat("-", 60))
	for _, r := range s.Results {
		fmt.Fprintf(tw, "%s\t%s\t%.2fs\n", r.Demo, r.Status, r.ElapsedS)
	}
	if len(s.Observability) > 0 {
		fmt.Fprintln(tw, "")
		fmt.Fprintln(tw, "ENDPOINT\tOK\tSTATUS")
		fmt.Fprintln(tw, strings.Repeat("-", 60))
		for _, p := range s.Observability {
			fmt.Fprintf(tw, "/%s\t%v\t%s\n", p.Endpoint, p.OK, p.StatusText())
		}
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "\n%s\n", Headline(s))
	return err
}

func writeMarkdown(s *result.RunSummary, w io.Writer) error {
	fmt.Fprintln(w, "| Demo | Status | Elapsed |")
	fmt.Fprintln(w, "|---|---|---|")
	for _, r := range s.Results {
		fmt.Fprintf(w, "| %s | %s | %.2fs |\n", r.Demo, r.Status, r.ElapsedS)
	}
	if len(s.Observability) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "| Endpoint | OK | Status |")
		fmt.Fprintln(w, "|---|---|---|")
		for _, p := range s.Observability {
			fmt.Fprintf(w, "| /%s | %v | %s |\n", p.Endpoint, p.OK, strings.ReplaceAll(p.StatusText(), "|", `\|`))
		}
	}
	fmt.Fprintf(w, "\n**%s**\n", Headline(s))
	return nil
}

func writeJSON(s *result.RunSummary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
