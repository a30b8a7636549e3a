package extract

import (
	"fmt"
	"strings"
)

// Field names the extractor fills.
const (
	FieldName     = "name"
	FieldPhoto    = "photo"
	FieldHeadline = "headline"
	FieldEmployer = "employer"
)

// StrategyConfig is the declarative form of a Strategy, as written in YAML.
//
//	kind: text       selectors
//	kind: attr       selectors, attrs (default src, data-delayed-url, data-src)
//	kind: block      anchor, block, sub, attr (optional)
type StrategyConfig struct {
	Kind      string   `yaml:"kind" json:"kind"`
	Selectors []string `yaml:"selectors,omitempty" json:"selectors,omitempty"`
	Attrs     []string `yaml:"attrs,omitempty" json:"attrs,omitempty"`
	Anchor    string   `yaml:"anchor,omitempty" json:"anchor,omitempty"`
	Block     string   `yaml:"block,omitempty" json:"block,omitempty"`
	Sub       string   `yaml:"sub,omitempty" json:"sub,omitempty"`
	Attr      string   `yaml:"attr,omitempty" json:"attr,omitempty"`
}

// FieldConfig is the declarative form of a FieldSpec.
// Normalize is one of text (default), compound, url.
type FieldConfig struct {
	Name       string           `yaml:"name" json:"name"`
	Normalize  string           `yaml:"normalize,omitempty" json:"normalize,omitempty"`
	Strategies []StrategyConfig `yaml:"strategies" json:"strategies"`
}

const (
	experienceAnchor = "#experience"
	entityBlock      = `[data-view-name="profile-component-entity"]`
)

// DefaultFields are the strategies for the profile page template.
func DefaultFields() []FieldConfig {
	return []FieldConfig{
		{
			Name: FieldName,
			Strategies: []StrategyConfig{
				{Kind: "text", Selectors: []string{"h1"}},
				{Kind: "text", Selectors: []string{".pv-text-details__left-panel h1", ".text-heading-xlarge"}},
			},
		},
		{
			Name:      FieldPhoto,
			Normalize: "url",
			Strategies: []StrategyConfig{
				{Kind: "attr", Selectors: []string{
					"img.pv-top-card-profile-picture__image--show",
					"img.pv-top-card-profile-picture__image",
					"img.profile-photo-edit__preview",
					".pv-top-card img",
					".pv-top-card__photo img",
				}},
			},
		},
		{
			Name:      FieldHeadline,
			Normalize: "compound",
			Strategies: []StrategyConfig{
				{Kind: "block", Anchor: experienceAnchor, Block: entityBlock, Sub: `.t-bold span[aria-hidden="true"]`},
				{Kind: "text", Selectors: []string{".pv-text-details__left-panel .text-body-medium", ".text-body-medium"}},
			},
		},
		{
			Name:      FieldEmployer,
			Normalize: "compound",
			Strategies: []StrategyConfig{
				{Kind: "block", Anchor: experienceAnchor, Block: entityBlock, Sub: `.t-normal span[aria-hidden="true"]`},
			},
		},
	}
}

// Build compiles field configs into specs. sep is the compound separator.
func Build(fields []FieldConfig, sep string) ([]FieldSpec, error) {
	specs := make([]FieldSpec, 0, len(fields))
	for _, fc := range fields {
		spec := FieldSpec{Name: fc.Name}
		switch strings.ToLower(fc.Normalize) {
		case "", "text":
			spec.Normalize = NormalizeText
		case "compound":
			spec.Normalize = Compound(sep)
		case "url":
			spec.Normalize = NormalizeURL
		default:
			return nil, fmt.Errorf("extract: field %q: unknown normalize %q", fc.Name, fc.Normalize)
		}
		for i, sc := range fc.Strategies {
			s, err := buildStrategy(sc)
			if err != nil {
				return nil, fmt.Errorf("extract: field %q strategy %d: %w", fc.Name, i, err)
			}
			spec.Strategies = append(spec.Strategies, s)
		}
		specs = append(specs, spec)
	}
	return specs, nil
}

func buildStrategy(sc StrategyConfig) (Strategy, error) {
	switch strings.ToLower(sc.Kind) {
	case "text":
		if len(sc.Selectors) == 0 {
			return nil, fmt.Errorf("text strategy needs selectors")
		}
		return Text(sc.Selectors...), nil
	case "attr":
		if len(sc.Selectors) == 0 {
			return nil, fmt.Errorf("attr strategy needs selectors")
		}
		return Attr(sc.Selectors, sc.Attrs...), nil
	case "block":
		if sc.Anchor == "" || sc.Block == "" || sc.Sub == "" {
			return nil, fmt.Errorf("block strategy needs anchor, block and sub")
		}
		return Block(sc.Anchor, sc.Block, sc.Sub, sc.Attr), nil
	default:
		return nil, fmt.Errorf("unknown strategy kind %q", sc.Kind)
	}
}
