// Package rules implements the text replacement and hashtag suggestion
// passes applied to post bodies. Rules are read from a YAML document; a
// default set is embedded in the binary.
package rules

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// AnyLanguage keys rules that apply regardless of the post language.
const AnyLanguage = "*"

//go:embed default.yaml
var defaultRules []byte

// Replacement rewrites every occurrence of From to To.
type Replacement struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// TagRule suggests Tag when any of Keywords appears as a whole word.
type TagRule struct {
	Tag      string   `yaml:"tag"`
	Keywords []string `yaml:"keywords"`

	pattern *regexp.Regexp
}

type document struct {
	Replacements map[string][]Replacement `yaml:"replacements"`
	Tags         map[string][]*TagRule    `yaml:"tags"`
}

// Rules holds the loaded replacement and tag rules, keyed by language code.
type Rules struct {
	replacements map[string][]Replacement
	tags         map[string][]*TagRule
}

// Default returns the embedded rule set.
func Default() (*Rules, error) {
	return Parse(defaultRules)
}

// Load reads rules from path, or the embedded defaults if path is empty.
func Load(path string) (*Rules, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML rule document.
func Parse(data []byte) (*Rules, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse rules: %w", err)
	}

	for lang, tagRules := range doc.Tags {
		for _, rule := range tagRules {
			if err := rule.compile(); err != nil {
				return nil, fmt.Errorf("invalid tag rule %q for %s: %w", rule.Tag, lang, err)
			}
		}
	}

	return &Rules{replacements: doc.Replacements, tags: doc.Tags}, nil
}

func (r *TagRule) compile() error {
	if !strings.HasPrefix(r.Tag, "#") {
		return fmt.Errorf("tag must start with #")
	}
	if len(r.Keywords) == 0 {
		return fmt.Errorf("no keywords")
	}

	alternatives := make([]string, 0, len(r.Keywords))
	for _, kw := range r.Keywords {
		alternatives = append(alternatives, regexp.QuoteMeta(norm.NFC.String(kw)))
	}

	// \b is ASCII only, so word edges are spelled out for diacritics
	pattern, err := regexp.Compile(`(?i)(?:^|[^\p{L}\p{N}_])(?:` + strings.Join(alternatives, "|") + `)(?:$|[^\p{L}\p{N}_])`)
	if err != nil {
		return err
	}
	r.pattern = pattern
	return nil
}

// Apply normalizes text to NFC and runs the replacements for lang.
func (r *Rules) Apply(text, lang string) string {
	text = norm.NFC.String(text)
	for _, key := range []string{AnyLanguage, lang} {
		for _, rep := range r.replacements[key] {
			if rep.From == "" {
				continue
			}
			text = strings.ReplaceAll(text, rep.From, rep.To)
		}
	}
	return text
}

// Tags returns the space separated hashtags suggested for body in lang.
// The result is empty when no rule matches.
func (r *Rules) Tags(body, lang string) string {
	body = norm.NFC.String(body)

	var tags []string
	seen := make(map[string]bool)
	for _, key := range []string{AnyLanguage, lang} {
		for _, rule := range r.tags[key] {
			lower := strings.ToLower(rule.Tag)
			if seen[lower] || !rule.pattern.MatchString(body) {
				continue
			}
			seen[lower] = true
			tags = append(tags, rule.Tag)
		}
	}
	return strings.Join(tags, " ")
}
