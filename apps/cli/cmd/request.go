package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"

	"github.com/abdul-hamid-achik/hitfetch/packages/assertions"
	"github.com/abdul-hamid-achik/hitfetch/packages/capture"
	"github.com/abdul-hamid-achik/hitfetch/packages/http"
	"github.com/abdul-hamid-achik/hitfetch/packages/snapshot"
	"github.com/spf13/cobra"
)

var (
	dataFlag    string
	formFlags   []string
	fileFlags   []string
	queryFlags  []string
	expectFlags []string
	captureFlag []string

	snapshotFlag       string
	snapshotFileFlag   string
	snapshotIgnore     []string
	updateSnapshotFlag bool
)

var requestCmd = &cobra.Command{
	Use:     "request [METHOD] <url>",
	Aliases: []string{"req", "r"},
	Short:   "Send one call and print its envelope",
	Long: `Send one HTTP call and print the resulting envelope.

METHOD defaults to GET, or POST when a body is given. The URL may be relative
to --base-url. {{variables}} in the URL, headers and body resolve against the
selected environment.`,
	Example: `  hitfetch request https://api.example.com/users/1
  hitfetch request POST /users -d '{"name": "alice"}' -b https://api.example.com
  hitfetch request PUT /avatar --file avatar=@me.png --form name=alice
  hitfetch request /health --expect 'status == 200' --expect 'body.ok == true'
  hitfetch request POST /login -d @creds.json --capture token=body.token`,
	Args: cobra.RangeArgs(1, 2),
	RunE: requestCommand,
}

func init() {
	f := requestCmd.Flags()
	f.StringVarP(&dataFlag, "data", "d", "", "Request body; @file reads a file, @- reads stdin")
	f.StringArrayVar(&formFlags, "form", nil, "URL-encoded form field key=value (repeatable)")
	f.StringArrayVarP(&fileFlags, "file", "F", nil, "Multipart field name=value or name=@path (repeatable)")
	f.StringArrayVarP(&queryFlags, "query", "q", nil, "Query parameter key=value (repeatable)")
	f.StringArrayVar(&expectFlags, "expect", nil, `Check the envelope, e.g. "status == 200" (repeatable)`)
	f.StringArrayVar(&captureFlag, "capture", nil, "Print a value from the envelope, e.g. token=body.token (repeatable)")
	f.StringVar(&snapshotFlag, "snapshot", "", "Compare the body with the snapshot of this name")
	f.StringVar(&snapshotFileFlag, "snapshot-file", "", "Snapshot file (default __snapshots__/hitfetch.snap.json)")
	f.StringArrayVar(&snapshotIgnore, "snapshot-ignore", nil, "Body path left out of snapshot comparison, e.g. meta.requestId (repeatable)")
	f.BoolVarP(&updateSnapshotFlag, "update-snapshots", "u", false, "Create or overwrite the snapshot instead of failing")
	requestCmd.MarkFlagsMutuallyExclusive("data", "form")
	requestCmd.MarkFlagsMutuallyExclusive("data", "file")
}

// requestPlan is a parsed request command line.
type requestPlan struct {
	method  string
	url     string
	query   http.Query
	data    any
	expects []assertions.Assertion
	capture []capture.Rule
}

func parseRequestArgs(args []string) (*requestPlan, error) {
	p := &requestPlan{}
	if len(args) == 2 {
		p.method = strings.ToUpper(args[0])
		p.url = args[1]
	} else {
		p.url = args[0]
	}

	var err error
	if p.query, err = parsePairs("query", queryFlags); err != nil {
		return nil, err
	}
	if p.data, err = requestBody(); err != nil {
		return nil, err
	}
	if p.method == "" {
		p.method = "GET"
		if p.data != nil {
			p.method = "POST"
		}
	}
	if p.data != nil && !http.ShouldCarryBody(p.method) {
		return nil, fmt.Errorf("%s calls carry no body", p.method)
	}

	if p.expects, err = assertions.ParseAll(expectFlags); err != nil {
		return nil, err
	}
	for _, c := range captureFlag {
		rule, err := capture.ParseRule(c)
		if err != nil {
			return nil, err
		}
		p.capture = append(p.capture, rule)
	}
	return p, nil
}

// requestBody builds the call body from --data, --form and --file.
func requestBody() (any, error) {
	switch {
	case dataFlag != "":
		return readData(dataFlag)
	case len(fileFlags) > 0:
		return multipartBody()
	case len(formFlags) > 0:
		form := http.Form{}
		for _, v := range formFlags {
			key, value, ok := strings.Cut(v, "=")
			if !ok || key == "" {
				return nil, fmt.Errorf("invalid form field %q, expected key=value", v)
			}
			form[key] = value
		}
		return form, nil
	}
	return nil, nil
}

func multipartBody() (*http.Multipart, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	mp := &http.Multipart{BaseDir: wd}
	for _, v := range formFlags {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid form field %q, expected key=value", v)
		}
		mp.Fields = append(mp.Fields, http.MultipartField{Type: http.MultipartFieldValue, Name: key, Value: value})
	}
	for _, v := range fileFlags {
		key, value, ok := strings.Cut(v, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid file field %q, expected name=@path", v)
		}
		if path, isFile := strings.CutPrefix(value, "@"); isFile {
			mp.Fields = append(mp.Fields, http.MultipartField{Type: http.MultipartFieldFile, Name: key, Path: filepath.Clean(path)})
			continue
		}
		mp.Fields = append(mp.Fields, http.MultipartField{Type: http.MultipartFieldValue, Name: key, Value: value})
	}
	return mp, nil
}

func requestCommand(cmd *cobra.Command, args []string) error {
	plan, err := parseRequestArgs(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	s, err := newSession(cmd.OutOrStdout())
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(commandContext(cmd), os.Interrupt)
	defer stop()

	env := s.client.Any(ctx, plan.method, plan.url, plan.data, http.CallQuery(plan.query))

	results, checkErr := assertions.Check(env, plan.expects, assertions.WithBaseDir("."))
	s.formatter.FormatEnvelope(env, results)

	if len(plan.capture) > 0 && env.OK {
		printCaptures(cmd.ErrOrStderr(), capture.ExtractAll(env, plan.capture))
	}

	if code := exitCodeFor(env); code != ExitSuccess {
		return exitWith(code, nil)
	}
	if snapshotFlag != "" && !compareSnapshot(cmd.ErrOrStderr(), env) {
		return exitWith(ExitAssertionFailure, nil)
	}
	if checkErr != nil {
		return exitWith(ExitAssertionFailure, nil)
	}
	return nil
}

func compareSnapshot(w io.Writer, env *http.Envelope) bool {
	store := snapshot.NewStore(snapshotFileFlag,
		snapshot.WithUpdate(updateSnapshotFlag),
		snapshot.WithIgnore(snapshotIgnore...),
	)
	res := store.CompareEnvelope(snapshotFlag, env)
	switch {
	case !res.Passed:
		fmt.Fprintf(w, "snapshot %q: %s (%s)\n", res.Name, res.Message, store.Path())
	case res.Message != "":
		fmt.Fprintf(w, "snapshot %q: %s\n", res.Name, res.Message)
	}
	return res.Passed
}

func printCaptures(w io.Writer, values map[string]any) {
	names := make([]string, 0, len(values))
	for name := range values {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s=%v\n", name, values[name])
	}
}

// commandContext returns a context for cmd, falling back to Background
// when the command runs outside Execute.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
