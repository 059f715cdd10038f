package style

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/geomap/internal/config"
)

// Preset is a YAML style file. Unset fields keep the configured values.
//
//	palette: ["#8dd3c7", "#ffffb3"]
//	colors:
//	  Qal: "#fff2ae"
//	stroke:
//	  color: "#333333"
//	  weight: 1
//	  fill_opacity: 0.5
type Preset struct {
	Palette []string          `yaml:"palette"`
	Colors  map[string]string `yaml:"colors"`
	Stroke  *PresetStroke     `yaml:"stroke"`
}

// PresetStroke overrides the overlay outline.
type PresetStroke struct {
	Color       *string  `yaml:"color"`
	Weight      *float64 `yaml:"weight"`
	FillOpacity *float64 `yaml:"fill_opacity"`
}

// LoadPreset reads a preset file.
func LoadPreset(path string) (*Preset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrap(err, "style: read preset")
	}

	var p Preset
	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, eris.Wrapf(err, "style: parse preset %s", path)
	}
	if p.Stroke != nil && p.Stroke.FillOpacity != nil {
		if o := *p.Stroke.FillOpacity; o < 0 || o > 1 {
			return nil, eris.Errorf("style: preset fill_opacity %v out of range", o)
		}
	}
	return &p, nil
}

// Apply overlays the preset on cfg.
func (p *Preset) Apply(cfg *config.MapConfig) {
	if len(p.Palette) > 0 {
		cfg.Palette = append([]string(nil), p.Palette...)
	}
	if p.Stroke == nil {
		return
	}
	if p.Stroke.Color != nil {
		cfg.Stroke.Color = *p.Stroke.Color
	}
	if p.Stroke.Weight != nil {
		cfg.Stroke.Weight = *p.Stroke.Weight
	}
	if p.Stroke.FillOpacity != nil {
		cfg.Stroke.FillOpacity = *p.Stroke.FillOpacity
	}
}
