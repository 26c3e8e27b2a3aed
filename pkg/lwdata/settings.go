package lwdata

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"livewidget/internal/models"
	"livewidget/pkg/imageproc"
)

// Range is a display window for color mapping and histogram binning.
type Range struct {
	Lower float64 `yaml:"lower"`
	Upper float64 `yaml:"upper"`
}

// ProcessingSettings control how the effective buffer is derived from the
// loaded one. Any change reruns the stack processor from the original data.
type ProcessingSettings struct {
	Despeckle          bool    `yaml:"despeckle"`
	DespeckleThreshold float64 `yaml:"despeckleThreshold"`

	DarkfieldSubtract bool   `yaml:"darkfieldSubtract"`
	DarkfieldFile     string `yaml:"darkfieldFile,omitempty"`

	Normalize     bool   `yaml:"normalize"`
	NormalizeFile string `yaml:"normalizeFile,omitempty"`

	ImageFilter    models.ImageFilter    `yaml:"imageFilter"`
	ImageOperation models.ImageOperation `yaml:"imageOperation"`

	// OperationFile is the operand of the pixelwise operations.
	OperationFile string `yaml:"operationFile,omitempty"`
	// OperationScalar is the operand of MultiplyByScalar.
	OperationScalar float64 `yaml:"operationScalar"`
}

// PresentationSettings is everything about a Data that survives replacing
// its buffer. It can be taken from one Data and applied to another.
type PresentationSettings struct {
	LogScale    bool   `yaml:"logScale"`
	CustomRange *Range `yaml:"customRange,omitempty"`

	Processing ProcessingSettings `yaml:",inline"`
}

// DefaultSettings returns the settings of a freshly loaded buffer.
func DefaultSettings() PresentationSettings {
	return PresentationSettings{
		Processing: ProcessingSettings{OperationScalar: 1},
	}
}

// clone returns a copy that shares no memory with s.
func (s PresentationSettings) clone() PresentationSettings {
	if s.CustomRange != nil {
		r := *s.CustomRange
		s.CustomRange = &r
	}
	return s
}

// Validate checks the settings without touching any data.
func (s PresentationSettings) Validate() error {
	if r := s.CustomRange; r != nil {
		if !finite(r.Lower) || !finite(r.Upper) || r.Lower > r.Upper {
			return fmt.Errorf("%w: custom range (%v, %v)", models.ErrInvalidArgument, r.Lower, r.Upper)
		}
	}
	p := s.Processing
	if err := imageproc.CheckThreshold(p.DespeckleThreshold); err != nil {
		return err
	}
	if !p.ImageFilter.Valid() {
		return fmt.Errorf("%w: image filter %d", models.ErrInvalidArgument, int(p.ImageFilter))
	}
	if !p.ImageOperation.Valid() {
		return fmt.Errorf("%w: image operation %d", models.ErrInvalidArgument, int(p.ImageOperation))
	}
	if !finite(p.OperationScalar) {
		return fmt.Errorf("%w: scalar %v", models.ErrInvalidArgument, p.OperationScalar)
	}
	if p.DarkfieldSubtract && p.DarkfieldFile == "" {
		return fmt.Errorf("%w: darkfield subtraction without a reference file", models.ErrInvalidArgument)
	}
	if p.Normalize && p.NormalizeFile == "" {
		return fmt.Errorf("%w: normalization without a reference file", models.ErrInvalidArgument)
	}
	return nil
}

// LoadSettings reads a settings preset from a YAML file.
func LoadSettings(path string) (PresentationSettings, error) {
	s := DefaultSettings()
	data, err := os.ReadFile(path)
	if err != nil {
		return s, fmt.Errorf("error reading settings file: %w", err)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, fmt.Errorf("error parsing settings file: %w", err)
	}
	if err := s.Validate(); err != nil {
		return s, err
	}
	return s, nil
}

// SaveSettings writes s as YAML.
func SaveSettings(s PresentationSettings, path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}
	return nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
