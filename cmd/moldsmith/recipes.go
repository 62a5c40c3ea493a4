package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/chazu/moldsmith/pkg/mold"
	"github.com/chazu/moldsmith/pkg/recipe"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type presetInfo struct {
	Name    string      `json:"name"`
	Default bool        `json:"default"`
	Config  mold.Config `json:"config"`
}

func (a *app) recipesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recipes <recipe-file>",
		Short: "Evaluate a mold recipe and list its presets",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			book, evalErrs, err := recipe.NewEngine().Evaluate(string(src))
			if err != nil {
				return err
			}
			if len(evalErrs) > 0 {
				for _, e := range evalErrs {
					fmt.Fprintf(cmd.ErrOrStderr(), "%s: %s\n", args[0], e)
				}
				return fmt.Errorf("recipe has %d error(s)", len(evalErrs))
			}
			infos := lo.Map(book.Names, func(n string, i int) presetInfo {
				return presetInfo{
					Name:    n,
					Default: n == book.Default || (book.Default == "" && i == 0),
					Config:  book.Presets[n],
				}
			})
			if a.v.GetBool("names") {
				fmt.Fprintln(a.out, strings.Join(book.Names, "\n"))
				return nil
			}
			return writeJSON(a.out, infos)
		},
	}
	cmd.Flags().Bool("names", false, "print preset names only")
	return cmd
}
