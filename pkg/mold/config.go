package mold

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/chazu/moldsmith/pkg/analysis"
	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/mesh"
)

// OutputFormat selects which exchange formats Generate produces.
type OutputFormat string

const (
	OutputSTL  OutputFormat = "stl"
	OutputSTEP OutputFormat = "step"
	OutputBoth OutputFormat = "both"
)

// Formats expands f into kernel export formats.
func (f OutputFormat) Formats() []kernel.Format {
	switch f {
	case OutputSTL:
		return []kernel.Format{kernel.FormatSTL}
	case OutputSTEP:
		return []kernel.Format{kernel.FormatSTEP}
	case OutputBoth:
		return []kernel.Format{kernel.FormatSTL, kernel.FormatSTEP}
	}
	return nil
}

// Config holds the mold generation parameters. Lengths are millimetres.
type Config struct {
	// SplitAxis is the axis perpendicular to the part split plane.
	SplitAxis mesh.Axis `toml:"splitAxis" json:"splitAxis"`
	// Orientation is rotated onto Z before planning.
	Orientation      mesh.Axis `toml:"orientation" json:"orientation"`
	WallThickness    float64   `toml:"wallThickness" json:"wallThickness"`
	BoltHoleDiameter float64   `toml:"boltHoleDiameter" json:"boltHoleDiameter"`
	Stroke           float64   `toml:"stroke" json:"stroke"`
	PlateThickness   float64   `toml:"plateThickness" json:"plateThickness"`
	FitTolerance     float64   `toml:"fitTolerance" json:"fitTolerance"`
	// FloorThickness of zero means the unscaled wall thickness.
	FloorThickness  float64      `toml:"floorThickness" json:"floorThickness"`
	SizeMultiplier  float64      `toml:"sizeMultiplier" json:"sizeMultiplier"`
	UseAlphaProfile bool         `toml:"useAlphaShapeProfile" json:"useAlphaShapeProfile"`
	AlphaValue      float64      `toml:"alphaValue" json:"alphaValue"`
	Strategy        string       `toml:"strategy" json:"strategy"`
	OutputFormat    OutputFormat `toml:"outputFormat" json:"outputFormat"`
}

// DefaultConfig returns the stock modular-box settings.
func DefaultConfig() Config {
	return Config{
		SplitAxis:        mesh.AxisZ,
		Orientation:      mesh.AxisZ,
		WallThickness:    5,
		BoltHoleDiameter: 6.2,
		Stroke:           10,
		PlateThickness:   5,
		FitTolerance:     0.1,
		SizeMultiplier:   1.5,
		UseAlphaProfile:  true,
		AlphaValue:       analysis.DefaultAlpha,
		Strategy:         StrategyModularBox,
		OutputFormat:     OutputSTL,
	}
}

// Validate checks ranges and names. It does not modify c.
func (c Config) Validate() error {
	for name, a := range map[string]mesh.Axis{"splitAxis": c.SplitAxis, "orientation": c.Orientation} {
		if a < mesh.AxisX || a > mesh.AxisZ {
			return fmt.Errorf("mold: %s: invalid axis %d", name, int(a))
		}
	}
	positive := []struct {
		name string
		v    float64
	}{
		{"wallThickness", c.WallThickness},
		{"boltHoleDiameter", c.BoltHoleDiameter},
		{"stroke", c.Stroke},
		{"plateThickness", c.PlateThickness},
		{"sizeMultiplier", c.SizeMultiplier},
		{"alphaValue", c.AlphaValue},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("mold: %s must be positive, got %v", p.name, p.v)
		}
	}
	if c.FitTolerance < 0 {
		return fmt.Errorf("mold: fitTolerance must not be negative, got %v", c.FitTolerance)
	}
	if c.FloorThickness < 0 {
		return fmt.Errorf("mold: floorThickness must not be negative, got %v", c.FloorThickness)
	}
	if c.OutputFormat.Formats() == nil {
		return fmt.Errorf("mold: outputFormat must be stl, step or both, got %q", c.OutputFormat)
	}
	if _, ok := lookupStrategy(c.Strategy); !ok {
		return fmt.Errorf("mold: unknown strategy %q (registered: %s)", c.Strategy, strings.Join(Strategies(), ", "))
	}
	return nil
}

// Scaled returns the wall and floor thickness after the size multiplier.
// The wall is raised to leave 1 mm of material around each bolt hole.
func (c Config) Scaled() (wall, floor float64) {
	floor = c.FloorThickness
	if floor == 0 {
		floor = c.WallThickness
	}
	wall = c.WallThickness * c.SizeMultiplier
	floor *= c.SizeMultiplier
	if min := c.BoltHoleDiameter + 2; wall < min {
		wall = min
	}
	return wall, floor
}

// configFile adds the keys that are accepted only in files.
type configFile struct {
	Config
	// CompressionTravel is the former name of Stroke.
	CompressionTravel float64 `toml:"compressionTravel"`
}

// DecodeConfigTOML reads a TOML config over DefaultConfig. Unknown keys
// are an error. compressionTravel is honoured when stroke is absent.
func DecodeConfigTOML(r io.Reader) (Config, error) {
	f := configFile{Config: DefaultConfig()}
	md, err := toml.NewDecoder(r).Decode(&f)
	if err != nil {
		return Config{}, fmt.Errorf("mold: decode config: %w", err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return Config{}, fmt.Errorf("mold: decode config: unknown keys: %s", strings.Join(keys, ", "))
	}
	if md.IsDefined("compressionTravel") && !md.IsDefined("stroke") {
		f.Stroke = f.CompressionTravel
	}
	if err := f.Config.Validate(); err != nil {
		return Config{}, err
	}
	return f.Config, nil
}

// LoadConfigTOML reads the TOML config file at path.
func LoadConfigTOML(path string) (Config, error) {
	fh, err := os.Open(path)
	if err != nil {
		return Config{}, fmt.Errorf("mold: %w", err)
	}
	defer fh.Close()
	return DecodeConfigTOML(fh)
}
