package reference

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/biomarker-assessment-engine/internal/domain"
	"github.com/biomarker-assessment-engine/pkg/labtext"
)

// overlayFile is the YAML shape of a reference overlay. Sections that are present
// replace the built-in section wholesale; threshold rows replace the built-in row
// for the same biomarker or are appended.
type overlayFile struct {
	Version            string             `yaml:"version"`
	MaxCriticalMissing *int               `yaml:"max_critical_missing"`
	Thresholds         []Threshold        `yaml:"thresholds"`
	Topics             *TopicTable        `yaml:"topics"`
	Metabolic          *MetabolicNorms    `yaml:"metabolic"`
	Inflammation       *InflammationNorms `yaml:"inflammation"`
	Oxygen             *OxygenNorms       `yaml:"oxygen"`
	DomainWeights      *DomainWeights     `yaml:"domain_weights"`
	Labels             *LabelCutPoints    `yaml:"labels"`
	BioAge             *BioAgeModel       `yaml:"bio_age"`
}

// LoadFile reads a YAML overlay and applies it on top of the built-in tables.
// An empty path returns the built-in tables.
func LoadFile(path string) (*Tables, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading reference overlay: %w", err)
	}
	tables, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading reference overlay %s: %w", path, err)
	}
	return tables, nil
}

// Parse applies a YAML overlay document to the built-in tables.
func Parse(data []byte) (*Tables, error) {
	var overlay overlayFile
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return nil, fmt.Errorf("parsing overlay: %w", err)
	}
	if overlay.Version == "" {
		return nil, fmt.Errorf("overlay must declare a version")
	}

	t := Default()
	t.Version = overlay.Version

	if overlay.MaxCriticalMissing != nil {
		t.MaxCriticalMissing = *overlay.MaxCriticalMissing
	}
	for _, th := range overlay.Thresholds {
		th, err := canonicalThreshold(t.Units, th)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidReferenceVersion, err)
		}
		t.Thresholds = upsertThreshold(t.Thresholds, th)
	}
	if overlay.Topics != nil {
		t.Topics = *overlay.Topics
	}
	if overlay.Metabolic != nil {
		t.Metabolic = *overlay.Metabolic
	}
	if overlay.Inflammation != nil {
		t.Inflammation = *overlay.Inflammation
	}
	if overlay.Oxygen != nil {
		t.Oxygen = *overlay.Oxygen
	}
	if overlay.DomainWeights != nil {
		t.DomainWeights = *overlay.DomainWeights
	}
	if overlay.Labels != nil {
		t.Labels = *overlay.Labels
	}
	if overlay.BioAge != nil {
		t.BioAge = *overlay.BioAge
	}

	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// canonicalThreshold rewrites th so its bounds are in the biomarker's canonical
// unit. An empty unit means canonical.
func canonicalThreshold(units *labtext.UnitTable, th Threshold) (Threshold, error) {
	spec, ok := units.Spec(th.Biomarker)
	if !ok {
		return th, fmt.Errorf("threshold for unknown biomarker %q", th.Biomarker)
	}
	if th.Unit == "" || th.Unit == spec.Canonical {
		th.Unit = spec.Canonical
		return th, nil
	}
	if !spec.Accepts(th.Unit) {
		return th, fmt.Errorf("threshold for %s: unit %q cannot be converted to %s", th.Biomarker, th.Unit, spec.Canonical)
	}
	if th.Lower != nil {
		th.Lower = bound(units.ToCanonical(th.Biomarker, *th.Lower, th.Unit))
	}
	if th.Upper != nil {
		th.Upper = bound(units.ToCanonical(th.Biomarker, *th.Upper, th.Unit))
	}
	th.Unit = spec.Canonical
	return th, nil
}

func upsertThreshold(rows []Threshold, th Threshold) []Threshold {
	for i := range rows {
		if rows[i].Biomarker == th.Biomarker {
			rows[i] = th
			return rows
		}
	}
	return append(rows, th)
}
