package main

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/chazu/moldsmith/pkg/analysis"
	"github.com/chazu/moldsmith/pkg/mesh"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func (a *app) analyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze <part.stl>",
		Short: "Report manifoldness, undercuts, draft and silhouette of a part",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := analysisOptions(a.v)
			if err != nil {
				return err
			}
			backend, err := polygon.SelectBackend(a.v.GetString("geometry"))
			if err != nil {
				return err
			}
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			r := analysis.NewAnalyzer(backend).AnalyzeSTL(ctx, data, opts)
			if path := a.v.GetString("repaired-out"); path != "" && len(r.RepairInfo.RepairedSTL) > 0 {
				if err := writeFileAtomic(path, r.RepairInfo.RepairedSTL); err != nil {
					return err
				}
			}
			if err := emitJSON(a.out, a.v.GetString("json"), r); err != nil {
				return err
			}
			if !r.Success {
				return fmt.Errorf("analysis failed: %s", r.Error)
			}
			return nil
		},
	}
	f := cmd.Flags()
	f.String("demold-axis", "z", "axis the part is pulled along")
	f.String("projection-axis", "", "axis of the silhouette projection (default: the demold axis)")
	f.Float64("alpha", analysis.DefaultAlpha, "alpha shape parameter")
	f.Float64("draft", analysis.DefaultDraftThreshold, "minimum draft angle in degrees")
	f.Bool("repair", true, "try to repair open meshes")
	f.Bool("indices", false, "include undercut vertex indices")
	f.Int("max-triangles", analysis.DefaultMaxTriangles, "reject meshes with more triangles")
	f.String("repaired-out", "", "write the repaired STL here when repair succeeds")
	f.String("json", "", "write the report here instead of stdout")
	return cmd
}

func analysisOptions(v *viper.Viper) (analysis.Options, error) {
	opts := analysis.DefaultOptions()
	var err error
	if opts.DemoldAxis, err = mesh.ParseAxis(v.GetString("demold-axis")); err != nil {
		return opts, err
	}
	opts.ProjectionAxis = opts.DemoldAxis
	if p := v.GetString("projection-axis"); p != "" {
		if opts.ProjectionAxis, err = mesh.ParseAxis(p); err != nil {
			return opts, err
		}
	}
	opts.AlphaValue = v.GetFloat64("alpha")
	opts.MinDraftThreshold = v.GetFloat64("draft")
	opts.Repair = v.GetBool("repair")
	opts.IncludeVertexIndices = v.GetBool("indices")
	opts.MaxTriangles = v.GetInt("max-triangles")
	return opts, opts.Validate()
}
