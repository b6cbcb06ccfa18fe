package extracthtml

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/andybalholm/cascadia"
	"github.com/titanous/json5"
	"gopkg.in/yaml.v3"
)

// LoadSchemaFile loads and validates a schema file. JSON5 (.json, .json5) and
// YAML (.yaml, .yml) are accepted.
func LoadSchemaFile(path string) (*Schema, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var s Schema
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("parse schema yaml: %w", err)
		}
	default:
		if err := json5.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("parse schema json: %w", err)
		}
	}

	if err := ValidateSchema(s); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &s, nil
}

// ValidateSchema checks a schema without touching any document: rules must
// compile, selectors must parse, relabels must target string fields.
//
// goquery silently matches nothing on a malformed selector, which would read
// as a NotFound at run time; this surfaces the typo up front instead.
func ValidateSchema(s Schema) error {
	fields, err := compileFields(s.Fields)
	if err != nil {
		return err
	}
	if s.Rows.IsZero() {
		return fmt.Errorf("schema has no row locator")
	}

	check := func(what string, l Locator) error {
		if l.IsZero() {
			return nil
		}
		sel, err := CompileLocator(l)
		if err != nil {
			return fmt.Errorf("%s: %w", what, err)
		}
		if _, err := cascadia.Compile(sel); err != nil {
			return fmt.Errorf("%s: invalid selector %q: %w", what, sel, err)
		}
		return nil
	}
	if err := check("container", s.Container); err != nil {
		return err
	}
	if err := check("rows", s.Rows); err != nil {
		return err
	}
	for _, f := range fields {
		if err := check("field "+f.rule.Name, f.rule.Locate); err != nil {
			return err
		}
	}
	_, err = relabelIndex(s)
	return err
}

// ValidateRules is ValidateSchema for record-mode rule lists.
func ValidateRules(rules []FieldRule) error {
	fields, err := compileFields(rules)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.sel == "" {
			continue
		}
		if _, err := cascadia.Compile(f.sel); err != nil {
			return fmt.Errorf("field %s: invalid selector %q: %w", f.rule.Name, f.sel, err)
		}
	}
	return nil
}
