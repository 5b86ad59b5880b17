package pipeline

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ppiankov/civicner/internal/model"
)

const (
	recentPostCount = 3
	textPreviewLen  = 200
)

// csvHeader is the column order of the CSV output
var csvHeader = []string{
	"id", "uri", "created_at", "text", "bluesky_url",
	"link_url", "link_title", "link_description",
	"text_locations", "text_persons",
	"link_locations", "link_persons",
	"all_locations", "all_persons",
}

// Renderer writes records as JSON, CSV and a console summary
type Renderer struct {
	topN int
}

// NewRenderer creates a renderer listing topN locations and persons in summaries
func NewRenderer(topN int) *Renderer {
	if topN <= 0 {
		topN = 10
	}
	return &Renderer{topN: topN}
}

// RenderJSON writes the records as an indented JSON array without HTML escaping
func (r *Renderer) RenderJSON(w io.Writer, records []model.Record) error {
	if records == nil {
		records = []model.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(records)
}

// RenderCSV writes one row per record. List cells are joined with "; " and
// persons are written as "Name (Role)".
func (r *Renderer) RenderCSV(w io.Writer, records []model.Record) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.ID, rec.URI, rec.CreatedAt, rec.Text, rec.BlueskyURL,
			rec.LinkURL, rec.LinkTitle, rec.LinkDescription,
			joinList(rec.TextLocations), joinPersons(rec.TextPersons),
			joinList(rec.LinkLocations), joinPersons(rec.LinkPersons),
			joinList(rec.AllLocations), joinPersons(rec.AllPersons),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func joinList(values []string) string {
	return strings.Join(values, "; ")
}

func joinPersons(persons []model.PersonMention) string {
	parts := make([]string, len(persons))
	for i, p := range persons {
		parts[i] = fmt.Sprintf("%s (%s)", p.Name, p.Role)
	}
	return strings.Join(parts, "; ")
}

// RenderSummary prints run totals, the most recent posts and the most
// frequently mentioned locations and persons
func (r *Renderer) RenderSummary(w io.Writer, records []model.Record) {
	if len(records) == 0 {
		fmt.Fprintln(w, "No posts found.")
		return
	}

	sorted := append([]model.Record(nil), records...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt > sorted[j].CreatedAt
	})

	withLinks := 0
	for _, rec := range records {
		if rec.HasLink() {
			withLinks++
		}
	}

	fmt.Fprintln(w, "\n=== Post Summary ===")
	fmt.Fprintf(w, "Total posts: %d\n", len(records))
	fmt.Fprintf(w, "Latest post: %s\n", sorted[0].CreatedAt)
	fmt.Fprintf(w, "Oldest post: %s\n", sorted[len(sorted)-1].CreatedAt)
	fmt.Fprintf(w, "Posts with links: %d\n", withLinks)

	fmt.Fprintln(w, "\n=== Recent Posts ===")
	for i, rec := range sorted[:min(recentPostCount, len(sorted))] {
		fmt.Fprintf(w, "\nPost %d:\n", i+1)
		fmt.Fprintf(w, "URI: %s\n", rec.URI)
		fmt.Fprintf(w, "Bluesky URL: %s\n", rec.BlueskyURL)
		fmt.Fprintf(w, "Date: %s\n", rec.CreatedAt)
		fmt.Fprintf(w, "Text: %s\n", preview(rec.Text, textPreviewLen))
		if rec.HasLink() {
			fmt.Fprintf(w, "Link: %s\n", rec.LinkURL)
			if rec.LinkTitle != "" {
				fmt.Fprintf(w, "Link Title: %s\n", rec.LinkTitle)
			}
		}
		if len(rec.AllLocations) > 0 {
			fmt.Fprintf(w, "Locations: %s\n", joinList(rec.AllLocations))
		}
		if len(rec.AllPersons) > 0 {
			fmt.Fprintf(w, "Persons: %s\n", joinPersons(rec.AllPersons))
		}
	}

	locations, persons := r.topMentions(records)
	if len(locations) > 0 {
		fmt.Fprintln(w, "\n=== Top Locations ===")
		for _, c := range locations {
			fmt.Fprintf(w, "%4d  %s\n", c.count, c.value)
		}
	}
	if len(persons) > 0 {
		fmt.Fprintln(w, "\n=== Top Persons ===")
		for _, c := range persons {
			fmt.Fprintf(w, "%4d  %s\n", c.count, c.value)
		}
	}
}

type mentionCount struct {
	value string
	count int
}

// topMentions counts posts per location and per "Name (Role)"
func (r *Renderer) topMentions(records []model.Record) (locations, persons []mentionCount) {
	locs := make(map[string]int)
	people := make(map[string]int)
	for _, rec := range records {
		for _, l := range rec.AllLocations {
			locs[l]++
		}
		for _, p := range rec.AllPersons {
			people[fmt.Sprintf("%s (%s)", p.Name, p.Role)]++
		}
	}
	return r.rank(locs), r.rank(people)
}

func (r *Renderer) rank(counts map[string]int) []mentionCount {
	out := make([]mentionCount, 0, len(counts))
	for v, n := range counts {
		out = append(out, mentionCount{value: v, count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].count != out[j].count {
			return out[i].count > out[j].count
		}
		return out[i].value < out[j].value
	})
	if len(out) > r.topN {
		out = out[:r.topN]
	}
	return out
}

// preview truncates to n runes, marking the cut with "..."
func preview(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

// OutputBaseName builds "<account>_posts_<timestamp>" with dots and @ removed
// from the account
func OutputBaseName(account string, now time.Time) string {
	safe := strings.NewReplacer(".", "_", "@", "").Replace(account)
	if safe == "" {
		safe = "civicner"
	}
	return safe + "_posts_" + now.Format("20060102_150405")
}

// WriteFiles renders records into dir as base.json and/or base.csv and
// returns the paths written
func (r *Renderer) WriteFiles(dir, base string, formats []string, records []model.Record) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	var paths []string
	for _, format := range formats {
		var render func(io.Writer, []model.Record) error
		switch format {
		case "json":
			render = r.RenderJSON
		case "csv":
			render = r.RenderCSV
		default:
			return paths, fmt.Errorf("unknown output format: %q", format)
		}

		path := filepath.Join(dir, base+"."+format)
		if err := writeFile(path, records, render); err != nil {
			return paths, fmt.Errorf("render %s: %w", format, err)
		}
		paths = append(paths, path)
	}
	return paths, nil
}

func writeFile(path string, records []model.Record, render func(io.Writer, []model.Record) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return render(f, records)
}
