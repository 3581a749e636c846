package metrics

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"
)

// JSONExporter writes the summary, and optionally every record, as JSON.
type JSONExporter struct {
	mu        sync.Mutex
	writer    io.Writer
	filePath  string
	pretty    bool
	records   bool
	results   []*Record
	startTime time.Time
}

type JSONOption func(*JSONExporter)

func WithJSONWriter(w io.Writer) JSONOption {
	return func(j *JSONExporter) {
		j.writer = w
	}
}

func WithJSONFile(path string) JSONOption {
	return func(j *JSONExporter) {
		j.filePath = path
	}
}

func WithJSONPretty(pretty bool) JSONOption {
	return func(j *JSONExporter) {
		j.pretty = pretty
	}
}

// WithJSONRecords includes every record in the output.
func WithJSONRecords(include bool) JSONOption {
	return func(j *JSONExporter) {
		j.records = include
	}
}

func NewJSONExporter(opts ...JSONOption) *JSONExporter {
	j := &JSONExporter{
		startTime: time.Now(),
		pretty:    true,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type JSONOutput struct {
	Metadata JSONMetadata `json:"metadata"`
	Summary  *Summary     `json:"summary"`
	Records  []*Record    `json:"records,omitempty"`
}

type JSONMetadata struct {
	GeneratedAt string `json:"generated_at"`
	StartTime   string `json:"start_time"`
	Duration    string `json:"duration"`
}

func (j *JSONExporter) Export(summary *Summary) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := time.Now()
	output := JSONOutput{
		Metadata: JSONMetadata{
			GeneratedAt: now.Format(time.RFC3339),
			StartTime:   j.startTime.Format(time.RFC3339),
			Duration:    now.Sub(j.startTime).Round(time.Millisecond).String(),
		},
		Summary: summary,
	}
	if j.records {
		output.Records = j.results
	}

	var (
		data []byte
		err  error
	)
	if j.pretty {
		data, err = json.MarshalIndent(output, "", "  ")
	} else {
		data, err = json.Marshal(output)
	}
	if err != nil {
		return fmt.Errorf("failed to marshal metrics: %w", err)
	}

	if j.filePath != "" {
		if err := os.WriteFile(j.filePath, data, 0o644); err != nil {
			return fmt.Errorf("failed to write metrics file: %w", err)
		}
	}

	if j.writer != nil {
		if _, err := fmt.Fprintf(j.writer, "%s\n", data); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
	}
	return nil
}

func (j *JSONExporter) ExportSingle(record *Record) error {
	if !j.records {
		return nil
	}
	j.mu.Lock()
	j.results = append(j.results, record)
	j.mu.Unlock()
	return nil
}

func (j *JSONExporter) Close() error {
	return nil
}
