// Package report summarises a run: one Entry per query.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"
)

// Entry is the outcome of one query.
type Entry struct {
	Query     string    `json:"query"`
	Results   int       `json:"results"`
	Attempts  int       `json:"attempts"`
	Challenge string    `json:"challenge,omitempty"`  // last challenge outcome
	BlockedBy string    `json:"blocked_by,omitempty"` // bot protection recognised on the results page
	Error     string    `json:"error,omitempty"`
	Started   time.Time `json:"started"`
	Finished  time.Time `json:"finished"`
}

// Failed reports whether the query ended in error.
func (e Entry) Failed() bool { return e.Error != "" }

// Duration is the wall time of the query.
func (e Entry) Duration() time.Duration { return e.Finished.Sub(e.Started) }

// Summary contains aggregated figures about a run.
type Summary struct {
	TotalQueries  int
	Failed        int
	TotalResults  int
	TotalAttempts int
	Challenges    map[string]int
	BlockedBy     map[string]int
	Entries       []Entry
	StartTime     time.Time
	EndTime       time.Time
	Duration      time.Duration
}

// GenerateSummary aggregates entries.
func GenerateSummary(entries []Entry) Summary {
	s := Summary{
		Challenges: make(map[string]int),
		BlockedBy:  make(map[string]int),
		Entries:    entries,
	}

	if len(entries) == 0 {
		return s
	}

	s.StartTime = entries[0].Started
	s.EndTime = entries[0].Finished

	for _, e := range entries {
		s.TotalQueries++
		if e.Failed() {
			s.Failed++
		}
		s.TotalResults += e.Results
		s.TotalAttempts += e.Attempts
		if e.Challenge != "" {
			s.Challenges[e.Challenge]++
		}
		if e.BlockedBy != "" {
			s.BlockedBy[e.BlockedBy]++
		}

		if e.Started.Before(s.StartTime) {
			s.StartTime = e.Started
		}
		if e.Finished.After(s.EndTime) {
			s.EndTime = e.Finished
		}
	}

	s.Duration = s.EndTime.Sub(s.StartTime)
	return s
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	return nil
}

// WriteText writes a human-readable text summary to the provided writer.
func WriteText(w io.Writer, summary Summary) error {
	const textTmpl = `Search Run Summary
------------------
Time:          {{.StartTime.Format "2006-01-02 15:04:05"}} - {{.EndTime.Format "2006-01-02 15:04:05"}}
Duration:      {{.Duration}}
Queries:       {{.TotalQueries}} ({{.Failed}} failed)
Attempts:      {{.TotalAttempts}}
Results:       {{.TotalResults}}

Challenges:
{{- range $outcome, $count := .Challenges}}
  {{$outcome}}: {{$count}}
{{- else}}
  None
{{- end}}

Blocked By:
{{- range $src, $count := .BlockedBy}}
  {{$src}}: {{$count}}
{{- else}}
  None
{{- end}}

Queries:
{{- range .Entries}}
  {{printf "%q" .Query}}: {{.Results}} results, {{.Attempts}} attempt(s){{if .Error}}, error: {{.Error}}{{end}}
{{- end}}
`

	t, err := template.New("textReport").Parse(textTmpl)
	if err != nil {
		return fmt.Errorf("parse template: %w", err)
	}

	if err := t.Execute(w, summary); err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	return nil
}
