package assertions

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strconv"
	"strings"

	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/tidwall/gjson"
	"github.com/xeipuuv/gojsonschema"
)

var bracketIndex = regexp.MustCompile(`\[(\d+)\]`)

type Result struct {
	Passed   bool
	Message  string
	Expected any
	Actual   any
	Subject  string
	Operator string
}

type Evaluator struct {
	env      *http.Envelope
	bodyJSON gjson.Result
	baseDir  string
}

type EvaluatorOption func(*Evaluator)

// WithBaseDir resolves relative schema paths against dir and refuses paths
// that leave it.
func WithBaseDir(dir string) EvaluatorOption {
	return func(e *Evaluator) {
		e.baseDir = dir
	}
}

func NewEvaluator(env *http.Envelope, opts ...EvaluatorOption) *Evaluator {
	if env == nil {
		env = &http.Envelope{}
	}
	e := &Evaluator{env: env}
	if len(env.Body) > 0 && (env.IsJSON() || gjson.ValidBytes(env.Body)) {
		e.bodyJSON = gjson.ParseBytes(env.Body)
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Evaluator) Evaluate(a Assertion) *Result {
	result := &Result{
		Subject:  a.Subject,
		Operator: a.Operator.String(),
		Expected: a.Expected,
	}

	actual, err := e.actualValue(a.Subject)
	if err != nil {
		result.Message = err.Error()
		return result
	}
	result.Actual = actual

	result.Passed, result.Message = e.compare(actual, a.Operator, a.Expected)

	if a.Operator == OpLength {
		result.Actual = computeLength(actual)
	}
	return result
}

func (e *Evaluator) actualValue(subject string) (any, error) {
	switch {
	case subject == "status":
		return e.env.Status, nil
	case subject == "statusText":
		return e.env.StatusText, nil
	case subject == "ok":
		return e.env.OK, nil
	case subject == "problem":
		return e.env.Problem.String(), nil
	case subject == "duration":
		return e.env.DurationMs(), nil
	case subject == "url":
		return e.env.URL, nil
	case strings.HasPrefix(subject, "header"):
		name := strings.TrimSpace(strings.TrimPrefix(subject, "header"))
		if name == "" {
			return e.env.Headers.Map(), nil
		}
		if v, ok := e.env.Headers.Lookup(name); ok {
			return v, nil
		}
		return nil, nil
	case strings.HasPrefix(subject, "jsonpath"):
		if !e.bodyJSON.Exists() {
			return nil, errors.New("response body is not JSON")
		}
		return e.pathValue(strings.TrimSpace(strings.TrimPrefix(subject, "jsonpath"))), nil
	case subject == "body" || strings.HasPrefix(subject, "body.") || strings.HasPrefix(subject, "body["):
		return e.bodyValue(strings.TrimPrefix(subject, "body")), nil
	default:
		return e.bodyValue("." + subject), nil
	}
}

// gjsonPath turns "items[0].tags[1]" into "items.0.tags.1".
func gjsonPath(path string) string {
	path = bracketIndex.ReplaceAllString(path, ".$1")
	return strings.TrimPrefix(path, ".")
}

func (e *Evaluator) bodyValue(path string) any {
	if !e.bodyJSON.Exists() {
		if path == "" {
			if len(e.env.Body) == 0 {
				return nil
			}
			return e.env.BodyString()
		}
		return nil
	}
	if path == "" {
		return e.bodyJSON.Value()
	}
	return e.pathValue(path)
}

func (e *Evaluator) pathValue(path string) any {
	result := e.bodyJSON.Get(gjsonPath(path))
	if !result.Exists() {
		return nil
	}
	return result.Value()
}

func (e *Evaluator) compare(actual any, op Operator, expected any) (bool, string) {
	switch op {
	case OpEquals:
		return equals(actual, expected)
	case OpNotEquals:
		passed, _ := equals(actual, expected)
		return inverse(passed, fmt.Sprintf("expected not to equal %v", expected))
	case OpGreaterThan:
		return compareNumeric(actual, expected, ">")
	case OpGreaterOrEqual:
		return compareNumeric(actual, expected, ">=")
	case OpLessThan:
		return compareNumeric(actual, expected, "<")
	case OpLessOrEqual:
		return compareNumeric(actual, expected, "<=")
	case OpContains:
		return contains(actual, expected)
	case OpNotContains:
		passed, _ := contains(actual, expected)
		return inverse(passed, fmt.Sprintf("expected not to contain %v", expected))
	case OpStartsWith:
		return startsWith(actual, expected)
	case OpEndsWith:
		return endsWith(actual, expected)
	case OpMatches:
		return matches(actual, expected)
	case OpExists:
		return exists(actual)
	case OpNotExists:
		passed, _ := exists(actual)
		return inverse(passed, "expected not to exist")
	case OpLength:
		return length(actual, expected)
	case OpIncludes:
		return includes(actual, expected)
	case OpNotIncludes:
		passed, _ := includes(actual, expected)
		return inverse(passed, fmt.Sprintf("expected not to include %v", expected))
	case OpIn:
		return in(actual, expected)
	case OpNotIn:
		passed, _ := in(actual, expected)
		return inverse(passed, fmt.Sprintf("expected not to be in %v", expected))
	case OpType:
		return typeCheck(actual, expected)
	case OpSchema:
		return e.schema(actual, expected)
	case OpEach:
		return each(actual, expected)
	default:
		return false, fmt.Sprintf("unknown operator: %v", op)
	}
}

func inverse(passed bool, msg string) (bool, string) {
	if passed {
		return false, msg
	}
	return true, ""
}

func equals(actual, expected any) (bool, string) {
	if reflect.DeepEqual(actual, expected) {
		return true, ""
	}

	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if aOk && eOk && actualNum == expectedNum {
		return true, ""
	}

	if fmt.Sprintf("%v", actual) == fmt.Sprintf("%v", expected) {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v, got %v", expected, actual)
}

func compareNumeric(actual, expected any, op string) (bool, string) {
	actualNum, aOk := toFloat64(actual)
	expectedNum, eOk := toFloat64(expected)
	if !aOk || !eOk {
		return false, fmt.Sprintf("cannot compare non-numeric values: %v %s %v", actual, op, expected)
	}

	var passed bool
	switch op {
	case ">":
		passed = actualNum > expectedNum
	case ">=":
		passed = actualNum >= expectedNum
	case "<":
		passed = actualNum < expectedNum
	case "<=":
		passed = actualNum <= expectedNum
	}
	if passed {
		return true, ""
	}
	return false, fmt.Sprintf("expected %v %s %v", actual, op, expected)
}

func contains(actual, expected any) (bool, string) {
	if actual == nil {
		return false, fmt.Sprintf("expected value to contain '%v', got nothing", expected)
	}
	if strings.Contains(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to contain '%v'", actual, expected)
}

func startsWith(actual, expected any) (bool, string) {
	if strings.HasPrefix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to start with '%v'", actual, expected)
}

func endsWith(actual, expected any) (bool, string) {
	if strings.HasSuffix(fmt.Sprintf("%v", actual), fmt.Sprintf("%v", expected)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to end with '%v'", actual, expected)
}

func matches(actual, expected any) (bool, string) {
	pattern := fmt.Sprintf("%v", expected)
	pattern = strings.TrimSuffix(strings.TrimPrefix(pattern, "/"), "/")

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, fmt.Sprintf("invalid regex pattern: %v", err)
	}
	if re.MatchString(fmt.Sprintf("%v", actual)) {
		return true, ""
	}
	return false, fmt.Sprintf("expected '%v' to match /%v/", actual, pattern)
}

func exists(actual any) (bool, string) {
	if actual == nil {
		return false, "expected to exist"
	}
	return true, ""
}

// computeLength returns -1 for values without a length.
func computeLength(actual any) int {
	if actual == nil {
		return -1
	}
	rv := reflect.ValueOf(actual)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array, reflect.Map, reflect.String:
		return rv.Len()
	default:
		return -1
	}
}

func length(actual, expected any) (bool, string) {
	want, ok := toInt(expected)
	if !ok {
		return false, fmt.Sprintf("expected length must be a number, got %v", expected)
	}
	got := computeLength(actual)
	if got == -1 {
		return false, fmt.Sprintf("cannot get length of %T", actual)
	}
	if got == want {
		return true, ""
	}
	return false, fmt.Sprintf("expected length %d, got %d", want, got)
}

func includes(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array, got %T", actual)
	}
	for _, item := range arr {
		if passed, _ := equals(item, expected); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected array to include %v", expected)
}

func in(actual, expected any) (bool, string) {
	arr, ok := expected.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'in' operator, got %T", expected)
	}
	for _, item := range arr {
		if passed, _ := equals(actual, item); passed {
			return true, ""
		}
	}
	return false, fmt.Sprintf("expected %v to be in %v", actual, expected)
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "boolean"
	case float64, float32, int, int64, int32:
		return "number"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return reflect.TypeOf(v).String()
	}
}

func typeCheck(actual, expected any) (bool, string) {
	want := fmt.Sprintf("%v", expected)
	if got := typeName(actual); got != want {
		return false, fmt.Sprintf("expected type %s, got %s", want, got)
	}
	return true, ""
}

// each applies an {"operator": ..., "value": ...} check, or equality, to
// every element. An empty array passes.
func each(actual, expected any) (bool, string) {
	arr, ok := actual.([]any)
	if !ok {
		return false, fmt.Sprintf("expected array for 'each' operator, got %T", actual)
	}

	op, value := OpEquals, expected
	if m, isMap := expected.(map[string]any); isMap {
		rawOp, hasOp := m["operator"]
		rawVal, hasVal := m["value"]
		if hasOp && hasVal {
			parsed, known := ParseOperator(fmt.Sprintf("%v", rawOp))
			if !known || parsed == OpEach || parsed == OpSchema {
				return false, fmt.Sprintf("unknown operator in each: %v", rawOp)
			}
			op, value = parsed, rawVal
		}
	}

	var e Evaluator
	for i, item := range arr {
		if passed, msg := e.compare(item, op, value); !passed {
			return false, fmt.Sprintf("item[%d]: %s", i, msg)
		}
	}
	return true, ""
}

func toFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	if f, ok := toFloat64(v); ok {
		return int(f), true
	}
	return 0, false
}

// validatePathWithinBase rejects paths that resolve outside baseDir.
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %w", err)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}

// schema validates actual against a JSON schema given inline or as a file.
func (e *Evaluator) schema(actual, expected any) (bool, string) {
	var schemaLoader gojsonschema.JSONLoader
	if inline, ok := expected.(map[string]any); ok {
		schemaLoader = gojsonschema.NewGoLoader(inline)
	} else {
		schemaPath := fmt.Sprintf("%v", expected)
		if !filepath.IsAbs(schemaPath) && e.baseDir != "" {
			schemaPath = filepath.Join(e.baseDir, schemaPath)
		}
		if err := validatePathWithinBase(schemaPath, e.baseDir); err != nil {
			return false, err.Error()
		}
		data, err := os.ReadFile(schemaPath)
		if err != nil {
			return false, fmt.Sprintf("failed to read schema file: %v", err)
		}
		schemaLoader = gojsonschema.NewBytesLoader(data)
	}

	doc, err := json.Marshal(actual)
	if err != nil {
		return false, fmt.Sprintf("failed to marshal actual value: %v", err)
	}

	result, err := gojsonschema.Validate(schemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return false, fmt.Sprintf("schema validation error: %v", err)
	}
	if result.Valid() {
		return true, ""
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, desc := range result.Errors() {
		msgs = append(msgs, desc.String())
	}
	return false, "schema validation failed: " + strings.Join(msgs, "; ")
}

func EvaluateAll(env *http.Envelope, list []Assertion, opts ...EvaluatorOption) []*Result {
	evaluator := NewEvaluator(env, opts...)
	results := make([]*Result, len(list))
	for i, a := range list {
		results[i] = evaluator.Evaluate(a)
	}
	return results
}

// FailedError lists the assertions that did not hold.
type FailedError struct {
	Failed []*Result
}

func (e *FailedError) Error() string {
	parts := make([]string, len(e.Failed))
	for i, r := range e.Failed {
		parts[i] = fmt.Sprintf("%s %s: %s", r.Subject, r.Operator, r.Message)
	}
	return fmt.Sprintf("%d assertion(s) failed: %s", len(e.Failed), strings.Join(parts, "; "))
}

// Check evaluates list against env and returns a *FailedError when any
// assertion fails.
func Check(env *http.Envelope, list []Assertion, opts ...EvaluatorOption) ([]*Result, error) {
	results := EvaluateAll(env, list, opts...)
	var failed []*Result
	for _, r := range results {
		if !r.Passed {
			failed = append(failed, r)
		}
	}
	if len(failed) > 0 {
		return results, &FailedError{Failed: failed}
	}
	return results, nil
}

// Monitor evaluates list on every envelope and hands the results to report.
// report may be nil. The monitor returns the *FailedError, if any.
func Monitor(list []Assertion, report func(*http.Envelope, []*Result), opts ...EvaluatorOption) http.Monitor {
	return func(_ context.Context, env *http.Envelope) error {
		results, err := Check(env, list, opts...)
		if report != nil {
			report(env, results)
		}
		return err
	}
}
