// Command ibrpc inspects response routing configurations.
package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	rpc "github.com/RidgeA/ib-rpc"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "ibrpc",
		Short:         "Inspect callback routing configurations",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.AddCommand(newValidateCmd(), newRoutesCmd(), newDumpCmd())
	return root
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <config.yaml>",
		Short: "Check that a configuration builds a dispatcher",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := load(args)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			color.New(color.FgGreen).Fprint(out, "ok ")
			fmt.Fprintf(out, "%s: %d methods, %d events\n", args[0], len(d.Methods()), len(d.Events()))
			return nil
		},
	}
}

func newRoutesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "routes [config.yaml]",
		Short: "Print method and event routes (IB preset without a file)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := load(args)
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "METHOD\tPATTERN\tKEY\tEVENTS")
			for _, e := range d.Entries() {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Method, e.Pattern, e.Discriminator, strings.Join(e.Events, ","))
			}
			return w.Flush()
		},
	}
}

func newDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dump [config.yaml]",
		Short: "Print the normalized configuration as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := load(args)
			if err != nil {
				return err
			}
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(rpc.ConfigOf(d)); err != nil {
				return err
			}
			return enc.Close()
		},
	}
}

func load(args []string) (*rpc.Dispatcher, error) {
	if len(args) == 0 {
		r, err := rpc.ForIB()
		if err != nil {
			return nil, err
		}
		return r.Build(), nil
	}
	cfg, err := rpc.LoadConfig(args[0])
	if err != nil {
		return nil, err
	}
	return cfg.Dispatcher()
}
