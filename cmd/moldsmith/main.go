// Command moldsmith analyzes STL parts for compression molding and
// generates modular box molds for them.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chazu/moldsmith/pkg/kernel"
	_ "github.com/chazu/moldsmith/pkg/kernel/manifold"
	"github.com/chazu/moldsmith/pkg/kernel/sdfx"
	"github.com/chazu/moldsmith/pkg/logging"
	"github.com/chazu/moldsmith/pkg/polygon"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "moldsmith:", err)
		os.Exit(1)
	}
}

var envReplacer = strings.NewReplacer("-", "_")

// app carries state shared by the subcommands.
type app struct {
	v   *viper.Viper
	out io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	a := &app{v: viper.New(), out: out}
	a.v.SetEnvPrefix("MOLDSMITH")
	a.v.SetEnvKeyReplacer(envReplacer)
	a.v.AutomaticEnv()

	root := &cobra.Command{
		Use:           "moldsmith",
		Short:         "Moldability analysis and mold generation for STL parts",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := a.bind(cmd.Flags()); err != nil {
				return err
			}
			l, err := logging.New(a.v.GetString("log-level"), a.v.GetBool("log-json"))
			if err != nil {
				return err
			}
			logging.SetLogger(l)
			return nil
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.String("log-level", "warning", "log level (debug, info, warning, error)")
	pf.Bool("log-json", false, "log as JSON")
	pf.String("geometry", polygon.BackendClipper, "polygon backend (clipper, plain)")
	pf.String("kernel", sdfx.Name, "solid modeling backend ("+strings.Join(kernel.Backends(), ", ")+")")

	root.AddCommand(a.analyzeCmd(), a.planCmd(), a.recipesCmd())
	return root
}

// bind exposes fs through viper so MOLDSMITH_* variables override defaults
// and explicit flags override both.
func (a *app) bind(fs *pflag.FlagSet) error {
	if err := a.v.BindPFlags(fs); err != nil {
		return fmt.Errorf("bind flags: %w", err)
	}
	return nil
}
