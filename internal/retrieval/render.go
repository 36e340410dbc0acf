package retrieval

import (
	"fmt"
	"strings"

	"github.com/suPer8Hu/orgai/internal/corpus"
	"github.com/suPer8Hu/orgai/internal/mode"
)

const definitionClip = 200

func policyCandidates(items []corpus.Document) []candidate {
	out := make([]candidate, len(items))
	for i, d := range items {
		out[i] = candidate{fields: []field{
			{d.Title, 0.4},
			{d.Category, 0.2},
			{d.Text, 0.2},
			{d.ApplicabilityGroup, 0.1},
			{d.Author, 0.1},
		}}
	}
	return out
}

func schemaCandidates(items []corpus.SchemaObject) []candidate {
	out := make([]candidate, len(items))
	for i, o := range items {
		cols := make([]string, 0, len(o.Columns))
		for _, c := range o.Columns {
			cols = append(cols, c.Name+" "+c.Description)
		}
		out[i] = candidate{fields: []field{
			{o.Name, 0.5},
			{strings.Join(cols, " "), 0.3},
			{o.Definition + " " + o.Description, 0.1},
			{o.Schema + " " + o.Database, 0.05},
			{string(o.Kind), 0.05},
		}}
	}
	return out
}

func docCandidates(items []corpus.DocFile) []candidate {
	out := make([]candidate, len(items))
	for i, d := range items {
		out[i] = candidate{fields: []field{
			{d.Title + " " + d.ID, 0.4},
			{d.Text, 0.6},
		}}
	}
	return out
}

func renderPolicy(d corpus.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Policy: %s\n", d.Title)
	writeLine(&b, "Category", d.Category)
	writeLine(&b, "Author", d.Author)
	writeLine(&b, "Applicability", d.ApplicabilityGroup)
	writeLine(&b, "Preview", d.Text)
	writeLine(&b, "URL", d.URL)
	return strings.TrimRight(b.String(), "\n")
}

func renderSchemaObject(o corpus.SchemaObject) string {
	var b strings.Builder
	label := "Table"
	switch o.Kind {
	case corpus.KindView:
		label = "View"
	case corpus.KindProcedure:
		label = "Procedure"
	}
	fmt.Fprintf(&b, "%s: %s", label, o.QualifiedName())
	if o.Database != "" {
		fmt.Fprintf(&b, " (database %s)", o.Database)
	}
	b.WriteString("\n")
	writeLine(&b, "Description", o.Description)
	if len(o.Columns) > 0 {
		b.WriteString("Columns:\n")
		for _, c := range o.Columns {
			null := "not null"
			if c.Nullable {
				null = "nullable"
			}
			fmt.Fprintf(&b, "  - %s (%s, %s)", c.Name, c.Type, null)
			if c.Description != "" {
				fmt.Fprintf(&b, " %s", c.Description)
			}
			b.WriteString("\n")
		}
	}
	if o.Definition != "" {
		def := o.Definition
		if len(def) > definitionClip {
			def = clip(def, definitionClip) + "..."
		}
		writeLine(&b, "Definition", def)
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderDoc excerpts two lines either side of the line matching the most
// query terms.
func renderDoc(d corpus.DocFile, terms []string) string {
	lines := strings.Split(d.Text, "\n")
	best, bestCount := -1, 0
	for i, line := range lines {
		lower := strings.ToLower(line)
		n := 0
		for _, t := range terms {
			if strings.Contains(lower, t) {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = i, n
		}
	}
	from, to := 0, min(len(lines), 5)
	if best >= 0 {
		from, to = max(0, best-2), min(len(lines), best+3)
	}
	excerpt := strings.TrimSpace(strings.Join(lines[from:to], "\n"))
	return fmt.Sprintf("Document: %s (%s)\n%s", d.Title, d.ID, excerpt)
}

func writeLine(b *strings.Builder, label, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	fmt.Fprintf(b, "%s: %s\n", label, value)
}

var contextHeaders = map[mode.Mode]string{
	mode.Policy:        "Relevant policy documents:",
	mode.Schema:        "Relevant database objects:",
	mode.Documentation: "Relevant documentation:",
}

// FormatContext renders passages as the context block of a prompt. No
// passages gives an empty string.
func FormatContext(m mode.Mode, ps []Passage) string {
	if len(ps) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(contextHeaders[m])
	for _, p := range ps {
		b.WriteString("\n\n")
		b.WriteString(p.Text)
	}
	return b.String()
}
