package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/tidy/internal/apperr"
	"github.com/JonMunkholm/tidy/internal/tabular"
)

// RuleFile is a parsed rule table.
type RuleFile struct {
	// MissingTokens is nil when the file does not set missing_tokens.
	MissingTokens []string
	Rules         tabular.Rules
}

type ruleDoc struct {
	MissingTokens []string              `yaml:"missing_tokens" toml:"missing_tokens"`
	Columns       map[string]columnRule `yaml:"columns" toml:"columns"`
}

type columnRule struct {
	Kind            string   `yaml:"kind" toml:"kind"`
	DateOrder       string   `yaml:"date_order" toml:"date_order"`
	CurrencySymbols []string `yaml:"currency_symbols" toml:"currency_symbols"`
	DefaultFalse    bool     `yaml:"default_false" toml:"default_false"`
	TrueTokens      []string `yaml:"true_tokens" toml:"true_tokens"`
	FalseTokens     []string `yaml:"false_tokens" toml:"false_tokens"`
}

// LoadRules reads a rule table from a .yaml, .yml or .toml file. Column
// names are canonicalized the same way CSV headers are, so "Date Inscription"
// and date_inscription name the same column.
func LoadRules(path string) (*RuleFile, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: reading rules file: %w", apperr.ErrInvalidConfig, err)
	}

	var doc ruleDoc
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(bytes.NewReader(content))
		dec.KnownFields(true)
		if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: YAML parse error in %s: %v", apperr.ErrInvalidConfig, path, err)
		}
	case ".toml":
		md, err := toml.Decode(string(content), &doc)
		if err != nil {
			return nil, fmt.Errorf("%w: TOML parse error in %s: %v", apperr.ErrInvalidConfig, path, err)
		}
		if undecoded := md.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, len(undecoded))
			for i, k := range undecoded {
				keys[i] = k.String()
			}
			return nil, fmt.Errorf("%w: unknown keys in %s: %s", apperr.ErrInvalidConfig, path, strings.Join(keys, ", "))
		}
	default:
		return nil, fmt.Errorf("%w: unsupported rules file format %q", apperr.ErrInvalidConfig, ext)
	}

	rules, err := doc.rules()
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", apperr.ErrInvalidConfig, path, err)
	}
	return &RuleFile{MissingTokens: doc.MissingTokens, Rules: rules}, nil
}

func (d ruleDoc) rules() (tabular.Rules, error) {
	names := make([]string, 0, len(d.Columns))
	for name := range d.Columns {
		names = append(names, name)
	}
	sort.Strings(names)

	rules := make(tabular.Rules, len(d.Columns))
	for _, name := range names {
		col := tabular.CanonicalColumn(name)
		if _, dup := rules[col]; dup {
			return nil, fmt.Errorf("column %q is defined more than once", col)
		}
		rule, err := d.Columns[name].rule()
		if err != nil {
			return nil, fmt.Errorf("column %q: %v", name, err)
		}
		rules[col] = rule
	}
	return rules, rules.Validate()
}

func (c columnRule) rule() (tabular.Rule, error) {
	kind, ok := tabular.ParseKind(c.Kind)
	if !ok {
		return tabular.Rule{}, fmt.Errorf("unknown kind %q", c.Kind)
	}

	r := tabular.Rule{
		Kind:            kind,
		DateOrder:       tabular.DateOrder(c.DateOrder),
		CurrencySymbols: c.CurrencySymbols,
		DefaultFalse:    c.DefaultFalse,
	}
	if len(c.TrueTokens) > 0 || len(c.FalseTokens) > 0 {
		r.Tokens = make(map[string]bool, len(c.TrueTokens)+len(c.FalseTokens))
		for _, tok := range c.TrueTokens {
			r.Tokens[strings.ToLower(strings.TrimSpace(tok))] = true
		}
		for _, tok := range c.FalseTokens {
			key := strings.ToLower(strings.TrimSpace(tok))
			if r.Tokens[key] {
				return tabular.Rule{}, fmt.Errorf("token %q is both true and false", tok)
			}
			r.Tokens[key] = false
		}
	}
	return r, nil
}
