package opportunity

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed sources.yaml
var sourcesYAML []byte

// Canonical field names used in the mapping tables.
const (
	fieldSourceID     = "source_id"
	fieldTitle        = "title"
	fieldAgency       = "agency"
	fieldRequirements = "requirements"
	fieldNAICS        = "naics"
	fieldSetAside     = "set_aside"
	fieldDueDate      = "due_date"
	fieldPostedDate   = "posted_date"
	fieldURL          = "url"
)

// requiredMappings are the canonical fields every source must map. A source
// that cannot provide these cannot produce usable listings at all.
var requiredMappings = []string{fieldSourceID, fieldTitle, fieldRequirements, fieldDueDate}

// SourceSpec describes how one source's raw listings map onto the canonical
// Opportunity fields.
type SourceSpec struct {
	Name        string            `yaml:"name"`
	Fields      map[string]string `yaml:"fields"`
	DateLayouts []string          `yaml:"date_layouts"`
	HTMLFields  []string          `yaml:"html_fields"`
}

type registryFile struct {
	Sources []*SourceSpec `yaml:"sources"`
}

// Registry holds the mapping tables for all known sources.
type Registry struct {
	specs map[string]*SourceSpec
}

// LoadRegistry parses the embedded mapping tables and validates that every
// source maps the required canonical fields.
func LoadRegistry() (*Registry, error) {
	var file registryFile
	if err := yaml.Unmarshal(sourcesYAML, &file); err != nil {
		return nil, fmt.Errorf("parsing source registry: %w", err)
	}

	specs := make(map[string]*SourceSpec, len(file.Sources))
	for _, spec := range file.Sources {
		if spec.Name == "" {
			return nil, fmt.Errorf("source registry entry without a name")
		}
		for _, field := range requiredMappings {
			if spec.Fields[field] == "" {
				return nil, fmt.Errorf("source %s does not map required field %s", spec.Name, field)
			}
		}
		specs[spec.Name] = spec
	}

	if len(specs) == 0 {
		return nil, fmt.Errorf("source registry is empty")
	}

	return &Registry{specs: specs}, nil
}

// Spec returns the mapping table for the named source.
func (r *Registry) Spec(source string) (*SourceSpec, error) {
	spec, ok := r.specs[source]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", source)
	}
	return spec, nil
}

// Sources returns the known source names, sorted.
func (r *Registry) Sources() []string {
	names := make([]string, 0, len(r.specs))
	for name := range r.specs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
