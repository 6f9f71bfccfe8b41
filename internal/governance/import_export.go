package governance

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/alphacouncil/core/internal/bus"
)

// FileFormat specifies the serialization format for a policy table file.
type FileFormat string

const (
	FormatYAML FileFormat = "yaml"
	FormatJSON FileFormat = "json"
)

// PolicySpec is the on-disk shape of one sender policy. Capabilities and
// recipients are flat string lists so operators can edit the file by hand.
type PolicySpec struct {
	Name              string   `yaml:"name" json:"name"`
	Capabilities      []string `yaml:"capabilities" json:"capabilities"`
	AllowedRecipients []string `yaml:"allowed_recipients" json:"allowed_recipients"`
}

type policyDoc struct {
	Policies []PolicySpec `yaml:"policies" json:"policies"`
}

func specFromPolicy(p Policy) PolicySpec {
	spec := PolicySpec{Name: p.Name}
	for c, granted := range p.Capabilities {
		if granted {
			spec.Capabilities = append(spec.Capabilities, string(c))
		}
	}
	for r, allowed := range p.AllowedRecipients {
		if allowed {
			spec.AllowedRecipients = append(spec.AllowedRecipients, r)
		}
	}
	sort.Strings(spec.Capabilities)
	sort.Strings(spec.AllowedRecipients)
	return spec
}

func policyFromSpec(spec PolicySpec) Policy {
	p := Policy{
		Name:              spec.Name,
		Capabilities:      make(map[Capability]bool, len(spec.Capabilities)),
		AllowedRecipients: make(map[string]bool, len(spec.AllowedRecipients)),
	}
	for _, c := range spec.Capabilities {
		p.Capabilities[Capability(c)] = true
	}
	for _, r := range spec.AllowedRecipients {
		p.AllowedRecipients[r] = true
	}
	return p
}

// Export serializes the current policy table, sorted by sender name so the
// output is stable across runs.
func (t *Table) Export(format FileFormat) ([]byte, error) {
	t.mu.RLock()
	specs := make([]PolicySpec, 0, len(t.policies))
	for _, p := range t.policies {
		specs = append(specs, specFromPolicy(p))
	}
	t.mu.RUnlock()

	sort.Slice(specs, func(i, j int) bool { return specs[i].Name < specs[j].Name })
	doc := policyDoc{Policies: specs}

	switch format {
	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return nil, fmt.Errorf("failed to encode policy table to YAML: %w", err)
		}
		if err := enc.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	case FormatJSON:
		return json.MarshalIndent(doc, "", "  ")
	default:
		return nil, fmt.Errorf("unsupported policy file format: %s", format)
	}
}

// ExportToFile writes the policy table to path, picking the format from the
// file extension (.json is JSON, everything else YAML).
func (t *Table) ExportToFile(path string) error {
	format := FormatYAML
	if filepath.Ext(path) == ".json" {
		format = FormatJSON
	}
	data, err := t.Export(format)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create policy directory: %w", err)
	}
	return os.WriteFile(path, data, 0600)
}

// ParsePolicies deserializes a policy table document. The format is detected
// from the first non-whitespace byte; a '{' or '[' means JSON, anything else
// is tried as YAML with a JSON fallback.
func ParsePolicies(data []byte) ([]Policy, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("empty policy data")
	}

	isJSON := false
	for _, b := range data {
		if b == ' ' || b == '\t' || b == '\n' || b == '\r' {
			continue
		}
		isJSON = b == '{' || b == '['
		break
	}

	var doc policyDoc
	if isJSON {
		if err := json.Unmarshal(data, &doc); err != nil {
			if yamlErr := yaml.Unmarshal(data, &doc); yamlErr != nil {
				return nil, fmt.Errorf("failed to parse policies as JSON (%v) or YAML (%v)", err, yamlErr)
			}
		}
	} else {
		if err := yaml.Unmarshal(data, &doc); err != nil {
			if jsonErr := json.Unmarshal(data, &doc); jsonErr != nil {
				return nil, fmt.Errorf("failed to parse policies as YAML (%v) or JSON (%v)", err, jsonErr)
			}
		}
	}

	policies := make([]Policy, 0, len(doc.Policies))
	for _, spec := range doc.Policies {
		if spec.Name == "" {
			return nil, fmt.Errorf("policy entry missing name")
		}
		for _, r := range spec.AllowedRecipients {
			if r == "" {
				return nil, fmt.Errorf("policy %s has an empty recipient (use %q for broadcast)", spec.Name, bus.Broadcast)
			}
		}
		policies = append(policies, policyFromSpec(spec))
	}
	return policies, nil
}

// LoadFromFile reads a policy file and registers every entry, replacing any
// existing policy with the same sender name.
func (t *Table) LoadFromFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read policy file: %w", err)
	}
	policies, err := ParsePolicies(data)
	if err != nil {
		return err
	}
	for _, p := range policies {
		t.Register(p)
	}
	return nil
}
