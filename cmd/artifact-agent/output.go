package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"gopkg.in/yaml.v3"

	"github.com/edgealpha/artifact-agent/internal/pipeline"
	"github.com/edgealpha/artifact-agent/internal/store"
)

func errorLabel() string {
	return color.New(color.FgRed, color.Bold).Sprint("error:")
}

func okLabel(s string) string {
	return color.New(color.FgGreen).Sprint(s)
}

func dimLabel(s string) string {
	return color.New(color.Faint).Sprint(s)
}

func writeJSONTo(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printResponse renders a generation result for a terminal. Fields are shown
// as YAML, which reads better than nested JSON for long documents.
func printResponse(w io.Writer, resp *pipeline.Response) error {
	a := resp.Artifact
	id := dimLabel("(not saved)")
	if a.ID != nil {
		id = *a.ID
	}
	fmt.Fprintf(w, "%s %s\n", color.New(color.Bold).Sprint(a.Title), dimLabel("["+string(a.Type)+"]"))
	fmt.Fprintf(w, "  id:    %s\n", id)
	sig := resp.ScoreSignal
	if sig.Boosted {
		fmt.Fprintf(w, "  score: %s %s, overall now %d\n",
			okLabel(fmt.Sprintf("+%d", sig.PointsAdded)), sig.DimensionLabel, sig.NewOverall)
	} else {
		fmt.Fprintf(w, "  score: %s\n", dimLabel("unchanged"))
	}
	fmt.Fprintln(w)
	return printFields(w, a.Fields)
}

func printFields(w io.Writer, fields map[string]any) error {
	if len(fields) == 0 {
		fmt.Fprintln(w, dimLabel("  (no fields)"))
		return nil
	}
	b, err := yaml.Marshal(fields)
	if err != nil {
		return err
	}
	for _, line := range strings.Split(strings.TrimRight(string(b), "\n"), "\n") {
		fmt.Fprintf(w, "  %s\n", line)
	}
	return nil
}

func printArtifactRows(w io.Writer, recs []store.ArtifactRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(w, dimLabel("no artifacts"))
		return
	}
	for _, r := range recs {
		fmt.Fprintf(w, "%s  %-20s  %-10s  %s\n",
			dimLabel(r.CreatedAt.Local().Format("2006-01-02 15:04")),
			string(r.DeliverableType),
			r.AgentID,
			r.Title,
		)
		fmt.Fprintf(w, "  %s\n", dimLabel(r.ID))
	}
}
