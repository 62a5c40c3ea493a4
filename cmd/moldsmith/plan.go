package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/chazu/moldsmith/pkg/analysis"
	"github.com/chazu/moldsmith/pkg/kernel"
	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/mold"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/chazu/moldsmith/pkg/recipe"
	"github.com/chazu/moldsmith/pkg/tessellate"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func (a *app) planCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan <part.stl>",
		Short: "Generate a modular box mold for a part",
		Long: `Generate the left and right cavity halves and the piston for a part.
Settings come from the defaults, then --config (TOML) or a --recipe preset,
then MOLDSMITH_* environment variables, then flags.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := moldConfig(a.v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()
			return a.plan(ctx, args[0], cfg)
		},
	}
	f := cmd.Flags()
	f.String("config", "", "TOML mold config file")
	f.String("recipe", "", "mold recipe file")
	f.String("preset", "", "recipe preset name (default: the recipe's default)")
	f.String("split-axis", "z", "axis perpendicular to the part split plane")
	f.String("orientation", "z", "part axis rotated onto Z before planning")
	f.Float64("wall", 0, "wall thickness in mm")
	f.Float64("bolt-hole", 0, "bolt hole diameter in mm")
	f.Float64("stroke", 0, "piston compression travel in mm")
	f.Float64("plate", 0, "piston flange thickness in mm")
	f.Float64("fit", 0, "piston clearance in mm")
	f.Float64("floor", 0, "floor thickness in mm (0: wall thickness)")
	f.Float64("scale", 0, "wall and floor multiplier")
	f.Float64("alpha", 0, "alpha shape parameter")
	f.Bool("alpha-profile", true, "follow the part silhouette")
	f.String("strategy", "", "mold strategy ("+strings.Join(mold.Strategies(), ", ")+")")
	f.String("format", "", "output format (stl, step, both)")
	f.StringP("out", "o", ".", "directory for the piece files")
	f.String("json", "", "write the result here instead of stdout")
	f.String("preview", "", "write tessellated piece meshes as JSON here")
	f.String("layout", "native", "preview layout (native, assembled, exploded)")
	f.Float64("gap", tessellate.DefaultGap, "exploded layout spacing in mm")
	return cmd
}

// moldConfig layers the base config (defaults, config file or recipe
// preset) under environment and flag overrides.
func moldConfig(v *viper.Viper) (mold.Config, error) {
	cfg := mold.DefaultConfig()
	var err error
	switch path, rec := v.GetString("config"), v.GetString("recipe"); {
	case path != "" && rec != "":
		return cfg, fmt.Errorf("--config and --recipe are mutually exclusive")
	case path != "":
		if cfg, err = mold.LoadConfigTOML(path); err != nil {
			return cfg, err
		}
	case rec != "":
		if cfg, err = loadPreset(rec, v.GetString("preset")); err != nil {
			return cfg, err
		}
	}

	for _, key := range []string{"split-axis", "orientation"} {
		if !v.IsSet(key) {
			continue
		}
		ax, err := mesh.ParseAxis(v.GetString(key))
		if err != nil {
			return cfg, fmt.Errorf("--%s: %w", key, err)
		}
		if key == "split-axis" {
			cfg.SplitAxis = ax
		} else {
			cfg.Orientation = ax
		}
	}
	floats := map[string]*float64{
		"wall":      &cfg.WallThickness,
		"bolt-hole": &cfg.BoltHoleDiameter,
		"stroke":    &cfg.Stroke,
		"plate":     &cfg.PlateThickness,
		"fit":       &cfg.FitTolerance,
		"floor":     &cfg.FloorThickness,
		"scale":     &cfg.SizeMultiplier,
		"alpha":     &cfg.AlphaValue,
	}
	for key, dst := range floats {
		if v.IsSet(key) {
			*dst = v.GetFloat64(key)
		}
	}
	if v.IsSet("alpha-profile") {
		cfg.UseAlphaProfile = v.GetBool("alpha-profile")
	}
	if v.IsSet("strategy") {
		cfg.Strategy = v.GetString("strategy")
	}
	if v.IsSet("format") {
		cfg.OutputFormat = mold.OutputFormat(strings.ToLower(v.GetString("format")))
	}
	return cfg, cfg.Validate()
}

func loadPreset(path, name string) (mold.Config, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return mold.Config{}, err
	}
	book, evalErrs, err := recipe.NewEngine().Evaluate(string(src))
	if err != nil {
		return mold.Config{}, fmt.Errorf("recipe %s: %w", path, err)
	}
	if len(evalErrs) > 0 {
		msgs := lo.Map(evalErrs, func(e recipe.EvalError, _ int) string { return e.Error() })
		return mold.Config{}, fmt.Errorf("recipe %s: %s", path, strings.Join(msgs, "; "))
	}
	return book.Config(name)
}

func (a *app) plan(ctx context.Context, path string, cfg mold.Config) error {
	log := logging.Logger().WithField("part", filepath.Base(path))

	backend, err := polygon.SelectBackend(a.v.GetString("geometry"))
	if err != nil {
		return err
	}
	k, err := kernel.Open(a.v.GetString("kernel"))
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	// The analysis supplies the repaired mesh and the silhouette.
	opts := analysis.DefaultOptions()
	opts.AlphaValue = cfg.AlphaValue
	report := analysis.NewAnalyzer(backend).AnalyzeSTL(ctx, data, opts)
	if !report.Success {
		return fmt.Errorf("analysis failed: %s", report.Error)
	}
	if !report.IsMoldable {
		log.WithField("warnings", len(report.Warnings)).Warn("part is not moldable as is")
	}

	popts := []mold.PlannerOption{mold.WithRunID(report.ID), mold.WithOps(polygon.NewOps(backend))}
	if cfg.Orientation == mesh.AxisZ && report.AlphaShape != nil {
		popts = append(popts, mold.WithAlphaPoints(report.AlphaShape.Points))
	}
	p, err := mold.NewPlanner(report.Mesh, cfg, k, popts...)
	if err != nil {
		return err
	}
	r := p.Generate(ctx)
	if r.Success {
		if err := a.writePieces(path, r); err != nil {
			return err
		}
		if prev := a.v.GetString("preview"); prev != "" {
			if err := a.writePreview(prev, r, k); err != nil {
				return err
			}
		}
	}
	if err := emitJSON(a.out, a.v.GetString("json"), r); err != nil {
		return err
	}
	if !r.Success {
		return fmt.Errorf("mold generation failed at %s: %s", r.Stage, r.Error)
	}
	return nil
}

// writePieces stores each export as <part>_<piece>.<format> in --out.
func (a *app) writePieces(part string, r *mold.Result) error {
	dir := a.v.GetString("out")
	base := strings.TrimSuffix(filepath.Base(part), filepath.Ext(part))
	for _, pc := range r.Pieces {
		for f, data := range pc.Exports {
			name := filepath.Join(dir, fmt.Sprintf("%s_%s.%s", base, pc.Name, f))
			if err := writeFileAtomic(name, data); err != nil {
				return err
			}
			logging.Logger().WithFields(logrus.Fields{"piece": pc.Name, "file": name}).Info("wrote piece")
		}
	}
	return nil
}

func parseLayout(s string) (tessellate.Layout, error) {
	switch strings.ToLower(s) {
	case "native", "":
		return tessellate.LayoutNative, nil
	case "assembled":
		return tessellate.LayoutAssembled, nil
	case "exploded":
		return tessellate.LayoutExploded, nil
	}
	return 0, fmt.Errorf("unknown layout %q", s)
}

func (a *app) writePreview(path string, r *mold.Result, k kernel.Kernel) error {
	layout, err := parseLayout(a.v.GetString("layout"))
	if err != nil {
		return err
	}
	meshes, err := tessellate.Tessellate(r.Plan, r.Pieces, k, tessellate.Options{
		Layout: layout,
		Gap:    a.v.GetFloat64("gap"),
	})
	if err != nil {
		return err
	}
	return emitJSON(a.out, path, meshes)
}
