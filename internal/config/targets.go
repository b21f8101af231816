package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hamed0406/sitemonitor/internal/domain"
)

// Targets assembles websites, then API endpoints, then the targets file.
// IDs must be unique across all sources.
func (c *Config) Targets() ([]domain.TargetSpec, error) {
	out := ParseWebsites(c.Websites)
	apis, err := ParseAPIEndpoints(c.APIEndpoints)
	if err != nil {
		return nil, err
	}
	out = append(out, apis...)

	if c.TargetsFile != "" {
		more, err := LoadTargetsFile(c.TargetsFile)
		if err != nil {
			return nil, err
		}
		out = append(out, more...)
	}

	seen := make(map[domain.TargetID]struct{}, len(out))
	for _, t := range out {
		if _, dup := seen[t.ID]; dup {
			return nil, fmt.Errorf("duplicate target id %q", t.ID)
		}
		seen[t.ID] = struct{}{}
	}
	return out, nil
}

// ParseWebsites parses a comma-separated URL list. The URL is the id.
func ParseWebsites(s string) []domain.TargetSpec {
	var out []domain.TargetSpec
	for _, u := range splitList(s) {
		out = append(out, domain.TargetSpec{
			ID:             domain.TargetID(u),
			Kind:           domain.Website,
			URL:            u,
			ExpectedStatus: 200,
		})
	}
	return out
}

// ParseAPIEndpoints parses "name|url|status|key:value,key2:value2" entries
// separated by ";". Status and the field list are optional.
func ParseAPIEndpoints(s string) ([]domain.TargetSpec, error) {
	var out []domain.TargetSpec
	for _, entry := range strings.Split(s, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, "|")
		if len(parts) < 2 {
			return nil, fmt.Errorf("api endpoint %q: want name|url[|status[|key:value,...]]", entry)
		}
		name, u := strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
		if name == "" || u == "" {
			return nil, fmt.Errorf("api endpoint %q: name and url are required", entry)
		}

		t := domain.TargetSpec{
			ID:             domain.TargetID(name),
			Kind:           domain.APIEndpoint,
			URL:            u,
			ExpectedStatus: 200,
		}
		if len(parts) > 2 {
			if raw := strings.TrimSpace(parts[2]); raw != "" {
				code, err := strconv.Atoi(raw)
				if err != nil {
					return nil, fmt.Errorf("api endpoint %q: bad status %q", name, raw)
				}
				t.ExpectedStatus = code
			}
		}
		if len(parts) > 3 {
			t.ExpectedFields = parseFields(strings.Join(parts[3:], "|"))
		}
		out = append(out, t)
	}
	return out, nil
}

func parseFields(s string) map[string]any {
	fields := map[string]any{}
	for _, pair := range strings.Split(s, ",") {
		k, v, ok := strings.Cut(pair, ":")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			continue
		}
		fields[k] = InferValue(strings.TrimSpace(v))
	}
	if len(fields) == 0 {
		return nil
	}
	return fields
}

// InferValue types a literal: true/false become bool, unsigned digit runs
// float64, anything else (including "1.0" or "-3") stays a string.
func InferValue(s string) any {
	switch strings.ToLower(s) {
	case "true":
		return true
	case "false":
		return false
	}
	if s == "" || strings.TrimLeft(s, "0123456789") != "" {
		return s
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}

type targetsFile struct {
	Websites []string    `yaml:"websites"`
	APIs     []apiTarget `yaml:"apis"`
}

type apiTarget struct {
	Name           string         `yaml:"name"`
	URL            string         `yaml:"url"`
	ExpectedStatus int            `yaml:"expected_status"`
	Expect         map[string]any `yaml:"expect"`
}

func LoadTargetsFile(path string) ([]domain.TargetSpec, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read targets file: %w", err)
	}
	var f targetsFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse targets file %s: %w", path, err)
	}

	out := ParseWebsites(strings.Join(f.Websites, ","))
	for _, a := range f.APIs {
		if a.Name == "" || a.URL == "" {
			return nil, fmt.Errorf("targets file %s: api entries need name and url", path)
		}
		t := domain.TargetSpec{
			ID:             domain.TargetID(a.Name),
			Kind:           domain.APIEndpoint,
			URL:            a.URL,
			ExpectedStatus: a.ExpectedStatus,
		}
		if t.ExpectedStatus == 0 {
			t.ExpectedStatus = 200
		}
		for k, v := range a.Expect {
			if t.ExpectedFields == nil {
				t.ExpectedFields = map[string]any{}
			}
			t.ExpectedFields[k] = scalar(v)
		}
		out = append(out, t)
	}
	return out, nil
}

// scalar normalizes YAML-decoded values to string, float64 or bool.
func scalar(v any) any {
	switch x := v.(type) {
	case bool, string, float64:
		return x
	case int:
		return float64(x)
	case int64:
		return float64(x)
	case uint64:
		return float64(x)
	default:
		return fmt.Sprint(x)
	}
}
