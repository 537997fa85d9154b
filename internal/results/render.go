// Package results renders interview outcomes and archives them on disk.
package results

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/rbright/parley/internal/protocol"
	"gopkg.in/yaml.v3"
)

// Format selects a Render encoding.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// ParseFormat accepts text, json, or yaml (case-insensitive).
func ParseFormat(raw string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(raw))); f {
	case FormatText, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatText, nil
	default:
		return "", fmt.Errorf("unknown results format %q (want text, json, or yaml)", raw)
	}
}

// Render writes result to w in format.
func Render(w io.Writer, result protocol.SessionResult, format Format) error {
	if result.Recommendation == "" {
		result.Recommendation = protocol.Recommendation(result.OverallScore)
	}

	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		return renderText(w, result)
	default:
		return fmt.Errorf("unknown results format %q", format)
	}
}

func renderText(w io.Writer, result protocol.SessionResult) error {
	var b strings.Builder

	fmt.Fprintf(&b, "Overall score: %s\n", score(result.OverallScore))
	fmt.Fprintf(&b, "Recommendation: %s\n", result.Recommendation)

	if len(result.Breakdown) > 0 {
		b.WriteString("\nBreakdown:\n")
		for i, item := range result.Breakdown {
			fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, score(item.Score), strings.TrimSpace(item.Question))
			if feedback := strings.TrimSpace(item.Feedback); feedback != "" {
				fmt.Fprintf(&b, "     %s\n", feedback)
			}
		}
	}
	writeList(&b, "Strengths", result.Strengths)
	writeList(&b, "Weaknesses", result.Weaknesses)

	_, err := io.WriteString(w, b.String())
	return err
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s:\n", title)
	for _, item := range items {
		if item = strings.TrimSpace(item); item != "" {
			fmt.Fprintf(b, "  - %s\n", item)
		}
	}
}

func score(v float64) string {
	return fmt.Sprintf("%.1f/10", v)
}

// RenderHistory writes archived records to w in format. Text output is one
// aligned row per record.
func RenderHistory(w io.Writer, records []Record, format Format) error {
	switch format {
	case FormatJSON:
		if records == nil {
			records = []Record{}
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("encode yaml: %w", err)
		}
		return enc.Close()
	case FormatText, "":
		if len(records) == 0 {
			_, err := io.WriteString(w, "no archived interviews\n")
			return err
		}
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "SAVED\tSESSION\tSCORE\tRECOMMENDATION\tCANDIDATE")
		for _, rec := range records {
			recommendation := rec.Result.Recommendation
			if recommendation == "" {
				recommendation = protocol.Recommendation(rec.Result.OverallScore)
			}
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
				rec.SavedAt.Local().Format(time.DateTime),
				rec.SessionID,
				score(rec.Result.OverallScore),
				recommendation,
				rec.CandidateName,
			)
		}
		return tw.Flush()
	default:
		return fmt.Errorf("unknown results format %q", format)
	}
}
