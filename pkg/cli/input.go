package cli

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/getmockd/htmlshot/pkg/template"
)

// varsFlags are the variable inputs shared by the template commands.
type varsFlags struct {
	file string
	set  []string
}

func (f *varsFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.file, "vars", "f", "", "Variables file (JSON or YAML)")
	cmd.Flags().StringArrayVar(&f.set, "set", nil, "Set a string variable (key=value, repeatable)")
}

// given reports whether any variables were supplied.
func (f *varsFlags) given() bool {
	return f.file != "" || len(f.set) > 0
}

// load reads the variables file and applies --set assignments on top.
func (f *varsFlags) load() (template.Variables, error) {
	vars := template.Variables{}
	if f.file != "" {
		v, err := readVariablesFile(f.file)
		if err != nil {
			return nil, err
		}
		vars = v
	}
	for _, kv := range f.set {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || strings.TrimSpace(k) == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAssignment, kv)
		}
		vars[strings.TrimSpace(k)] = v
	}
	return vars, nil
}

// readTemplate reads a template file; "-" reads from stdin.
func readTemplate(cmd *cobra.Command, path string) (string, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read template: %w", err)
	}
	return string(data), nil
}

// readVariablesFile decodes a JSON or YAML object. JSON numbers keep their
// written form.
func readVariablesFile(path string) (template.Variables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read variables: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return template.Variables{}, nil
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var m map[string]any
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrInvalidVarsFile, path, err)
		}
		if m == nil {
			m = map[string]any{}
		}
		return m, nil
	default:
		trimmed := bytes.TrimSpace(data)
		if trimmed[0] != '{' {
			return nil, fmt.Errorf("%w: %s: expected a JSON object", ErrInvalidVarsFile, path)
		}
		vars := template.DecodeVariables(trimmed)
		if len(vars) == 0 && !isEmptyObject(trimmed) {
			return nil, fmt.Errorf("%w: %s: malformed JSON", ErrInvalidVarsFile, path)
		}
		return vars, nil
	}
}

func isEmptyObject(b []byte) bool {
	s := strings.Join(strings.Fields(string(b)), "")
	return s == "{}"
}
