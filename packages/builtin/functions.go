package builtin

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"math/rand"
	"net/url"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrUnknownFunction is returned by Call for a name that was never registered.
var ErrUnknownFunction = errors.New("unknown function")

// Func evaluates one call with its already-unquoted arguments.
type Func func(args []string) (any, error)

// Registry maps function names to implementations. It is safe for
// concurrent use.
type Registry struct {
	mu    sync.RWMutex
	funcs map[string]Func
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs: make(map[string]Func),
	}
	r.registerDefaults()
	return r
}

func (r *Registry) registerDefaults() {
	r.funcs["uuid"] = funcUUID
	r.funcs["now"] = funcNow
	r.funcs["date"] = funcDate
	r.funcs["timestamp"] = funcTimestamp
	r.funcs["timestampMs"] = funcTimestampMs
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = funcBase64
	r.funcs["base64Decode"] = funcBase64Decode
	r.funcs["basicAuth"] = funcBasicAuth
	r.funcs["sha256"] = funcSHA256
	r.funcs["hmacSHA256"] = funcHMACSHA256
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["urlDecode"] = funcURLDecode
	r.funcs["env"] = funcEnv
}

// Register adds or replaces a function.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// Names lists the registered functions in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.funcs))
	for name := range r.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// IsCall reports whether expr has the shape name(args).
func IsCall(expr string) bool {
	return funcCallPattern.MatchString(strings.TrimSpace(expr))
}

// Call evaluates an expression such as `hmacSHA256("key", "body")`.
func (r *Registry) Call(expr string) (any, error) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, fmt.Errorf("malformed call %q", expr)
	}

	r.mu.RLock()
	fn, ok := r.funcs[matches[1]]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownFunction, matches[1])
	}

	result, err := fn(parseArgs(matches[2]))
	if err != nil {
		return nil, fmt.Errorf("%s(): %w", matches[1], err)
	}
	return result, nil
}

// parseArgs splits on commas outside single or double quotes and strips
// the quotes.
func parseArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}

	var (
		args    []string
		current strings.Builder
		quote   byte
	)
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case quote == 0 && (ch == '"' || ch == '\''):
			quote = ch
		case quote != 0 && ch == quote:
			quote = 0
		case quote == 0 && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}
	return append(args, strings.TrimSpace(current.String()))
}

func arg(args []string, i int, name string) (string, error) {
	if i >= len(args) {
		return "", fmt.Errorf("missing argument %q", name)
	}
	return args[i], nil
}

func intArg(args []string, i int, fallback int) (int, error) {
	if i >= len(args) {
		return fallback, nil
	}
	v, err := strconv.Atoi(args[i])
	if err != nil {
		return 0, fmt.Errorf("argument %d: %q is not an integer", i+1, args[i])
	}
	return v, nil
}

func funcUUID(_ []string) (any, error) {
	return uuid.NewString(), nil
}

func funcNow(_ []string) (any, error) {
	return time.Now().UTC().Format(time.RFC3339), nil
}

func funcDate(args []string) (any, error) {
	layout := "2006-01-02"
	if len(args) > 0 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout), nil
}

func funcTimestamp(_ []string) (any, error) {
	return time.Now().Unix(), nil
}

func funcTimestampMs(_ []string) (any, error) {
	return time.Now().UnixMilli(), nil
}

func funcRandom(args []string) (any, error) {
	lo, err := intArg(args, 0, 0)
	if err != nil {
		return nil, err
	}
	hi, err := intArg(args, 1, 100)
	if err != nil {
		return nil, err
	}
	if hi < lo {
		return nil, fmt.Errorf("max %d is below min %d", hi, lo)
	}
	return rand.Intn(hi-lo+1) + lo, nil
}

const alphanumeric = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

func funcRandomString(args []string) (any, error) {
	length, err := intArg(args, 0, 16)
	if err != nil {
		return nil, err
	}
	if length < 0 {
		return nil, fmt.Errorf("negative length %d", length)
	}
	out := make([]byte, length)
	for i := range out {
		out[i] = alphanumeric[rand.Intn(len(alphanumeric))]
	}
	return string(out), nil
}

func funcBase64(args []string) (any, error) {
	v, err := arg(args, 0, "value")
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.EncodeToString([]byte(v)), nil
}

func funcBase64Decode(args []string) (any, error) {
	v, err := arg(args, 0, "value")
	if err != nil {
		return nil, err
	}
	decoded, err := base64.StdEncoding.DecodeString(v)
	if err != nil {
		return nil, err
	}
	return string(decoded), nil
}

func funcBasicAuth(args []string) (any, error) {
	user, err := arg(args, 0, "user")
	if err != nil {
		return nil, err
	}
	pass, _ := arg(args, 1, "password")
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass)), nil
}

func funcSHA256(args []string) (any, error) {
	v, err := arg(args, 0, "value")
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(v))
	return hex.EncodeToString(sum[:]), nil
}

func funcHMACSHA256(args []string) (any, error) {
	key, err := arg(args, 0, "key")
	if err != nil {
		return nil, err
	}
	v, err := arg(args, 1, "value")
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, []byte(key))
	mac.Write([]byte(v))
	return hex.EncodeToString(mac.Sum(nil)), nil
}

func funcURLEncode(args []string) (any, error) {
	v, err := arg(args, 0, "value")
	if err != nil {
		return nil, err
	}
	return url.QueryEscape(v), nil
}

func funcURLDecode(args []string) (any, error) {
	v, err := arg(args, 0, "value")
	if err != nil {
		return nil, err
	}
	return url.QueryUnescape(v)
}

func funcEnv(args []string) (any, error) {
	name, err := arg(args, 0, "name")
	if err != nil {
		return nil, err
	}
	if v, ok := os.LookupEnv(name); ok {
		return v, nil
	}
	if len(args) > 1 {
		return args[1], nil
	}
	return nil, fmt.Errorf("environment variable %s is not set", name)
}
