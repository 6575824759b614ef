package main

import (
	"fmt"

	"github.com/calc33/Sketch.NET-sub000/packages/formula"
	"github.com/spf13/cobra"
)

func (a *app) evalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval FORMULA",
		Short: "Evaluate a formula without an owner and print its value and kind",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := a.evaluate(args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), describe(v, nil))
			return nil
		},
	}
}

// evaluate computes free-standing formula text in the app environment
func (a *app) evaluate(text string) (formula.Value, error) {
	p := formula.NewFormulaProperty("eval", nil, text, formula.WithEnvironment(a.env))
	defer p.Dispose()
	return p.Value()
}
