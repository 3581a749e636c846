package output

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/abdul-hamid-achik/hitfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hitfetch/packages/export/metrics"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
)

// JSONEnvelope is the JSON form of one envelope.
type JSONEnvelope struct {
	OK         bool              `json:"ok"`
	Problem    string            `json:"problem"`
	Error      string            `json:"error,omitempty"`
	Method     string            `json:"method"`
	URL        string            `json:"url"`
	Status     int               `json:"status"`
	StatusText string            `json:"statusText,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
	Data       any               `json:"data,omitempty"`
	Duration   float64           `json:"duration"`
	Time       string            `json:"time"`
	Assertions []JSONAssertion   `json:"assertions,omitempty"`
}

type JSONAssertion struct {
	Subject  string `json:"subject"`
	Operator string `json:"operator"`
	Expected any    `json:"expected"`
	Actual   any    `json:"actual"`
	Passed   bool   `json:"passed"`
	Message  string `json:"message,omitempty"`
}

type JSONError struct {
	Error string `json:"error"`
}

// JSONFormatter writes one JSON document per line.
type JSONFormatter struct {
	mu       sync.Mutex
	encoder  *json.Encoder
	withBody bool
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{encoder: json.NewEncoder(os.Stdout)}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.encoder = json.NewEncoder(w)
	}
}

// JSONWithBody includes response headers and parsed data.
func JSONWithBody(include bool) JSONOption {
	return func(f *JSONFormatter) {
		f.withBody = include
	}
}

func (f *JSONFormatter) FormatEnvelope(env *http.Envelope, results []*assertions.Result) {
	out := JSONEnvelope{
		OK:         env.OK,
		Problem:    env.Problem.String(),
		Method:     env.Method(),
		URL:        env.URL,
		Status:     env.Status,
		StatusText: env.StatusText,
		Duration:   float64(env.DurationMs()),
		Time:       time.Now().Format(time.RFC3339),
	}
	if env.OriginalError != nil {
		out.Error = env.OriginalError.Error()
	}
	if f.withBody {
		if env.Headers.Len() > 0 {
			out.Headers = env.Headers.Map()
		}
		out.Data = jsonSafe(env.Data)
	}
	for _, r := range results {
		out.Assertions = append(out.Assertions, JSONAssertion{
			Subject:  r.Subject,
			Operator: r.Operator,
			Expected: r.Expected,
			Actual:   r.Actual,
			Passed:   r.Passed,
			Message:  r.Message,
		})
	}
	f.encode(out)
}

// jsonSafe keeps binary bodies from being emitted as base64 blobs.
func jsonSafe(v any) any {
	if b, ok := v.([]byte); ok {
		return map[string]int{"binaryBytes": len(b)}
	}
	return v
}

func (f *JSONFormatter) FormatSummary(s *metrics.Summary) {
	f.encode(struct {
		Summary *metrics.Summary `json:"summary"`
	}{s})
}

func (f *JSONFormatter) FormatError(err error) {
	f.encode(JSONError{Error: err.Error()})
}

func (f *JSONFormatter) encode(v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_ = f.encoder.Encode(v)
}
