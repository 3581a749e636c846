package env

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// VariablePrefix marks process environment variables that become template
// variables: HITFETCH_VAR_token is available as {{token}}.
const VariablePrefix = "HITFETCH_VAR_"

// Environment is a named variable set selected on the command line.
type Environment struct {
	Name      string
	Variables map[string]any
}

// LoadEnvironment merges, in increasing precedence, the named section of the
// config file, the dotenv file at dotenvPath (skipped when empty or
// missing) and prefixed process variables.
func LoadEnvironment(name string, sections map[string]map[string]any, dotenvPath string) (*Environment, error) {
	if name != "" && sections != nil {
		if _, ok := sections[name]; !ok {
			return nil, fmt.Errorf("environment %q is not defined in config", name)
		}
	}

	env := &Environment{
		Name:      name,
		Variables: MergeVariables(sections[name]),
	}

	if dotenvPath != "" {
		vars, err := LoadDotEnv(dotenvPath)
		switch {
		case err == nil:
			for k, v := range vars {
				env.Variables[k] = v
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, err
		}
	}

	for k, v := range LoadSystemEnv(VariablePrefix) {
		env.Variables[k] = v
	}
	return env, nil
}

// MergeVariables merges sources left to right; later sources win.
func MergeVariables(sources ...map[string]any) map[string]any {
	result := make(map[string]any)
	for _, src := range sources {
		for k, v := range src {
			result[k] = v
		}
	}
	return result
}

// LoadSystemEnv returns process variables starting with prefix, keyed
// without it. An empty prefix returns the whole environment.
func LoadSystemEnv(prefix string) map[string]any {
	result := make(map[string]any)
	for _, e := range os.Environ() {
		key, value, ok := strings.Cut(e, "=")
		if !ok {
			continue
		}
		if prefix == "" {
			result[key] = value
			continue
		}
		if name, found := strings.CutPrefix(key, prefix); found && name != "" {
			result[name] = value
		}
	}
	return result
}
