package main

import (
	"fmt"
	"strconv"

	"dwmhost/coloransi"
	"dwmhost/descriptor"
	"dwmhost/notify"
	"dwmhost/offsettable"
	"dwmhost/resolver"
	"dwmhost/table"

	"github.com/spf13/cobra"
)

// withHost builds the host, adopts a running extension and runs fn.
func withHost(flags *rootFlags, fn func(cmd *cobra.Command, h *host) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		h, err := flags.newHost()
		if err != nil {
			return err
		}
		defer h.Close()

		if err := h.ctrl.Sync(cmd.Context()); err != nil {
			h.log.Warn("Cannot inspect ", h.cfg.Target.Process, ": ", err)
		}
		return fn(cmd, h)
	}
}

func newResolveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve hook offsets into the shared region",
		Args:  cobra.NoArgs,
		RunE: withHost(flags, func(cmd *cobra.Command, h *host) error {
			report, err := h.ctrl.Resolve(cmd.Context())
			if report != nil {
				printReport(cmd, report)
			}
			return err
		}),
	}
}

func printReport(cmd *cobra.Command, report *resolver.Report) {
	t := table.New(
		table.ColumnSpec{Header: "module"},
		table.ColumnSpec{Header: "expected", AlignRight: true},
		table.ColumnSpec{Header: "resolved", AlignRight: true},
	)
	for _, m := range report.Modules {
		t.AddRow(m.Module.FileName(), strconv.FormatUint(m.Expected, 10),
			coloransi.Status(m.Resolved == m.Expected, strconv.FormatUint(m.Resolved, 10)))
	}
	_ = t.Render(cmd.OutOrStdout())

	for _, d := range report.Missing {
		fmt.Fprintln(cmd.OutOrStdout(), coloransi.Foreground(coloransi.BrightRed, "missing"), d)
	}
}

func newLoadCmd(flags *rootFlags) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "load",
		Short: "Resolve offsets and inject the extension",
		Args:  cobra.NoArgs,
		RunE: withHost(flags, func(cmd *cobra.Command, h *host) error {
			if all {
				return h.ctrl.LoadAll(cmd.Context())
			}
			return h.ctrl.Load(cmd.Context())
		}),
	}
	cmd.Flags().BoolVar(&all, "all", false, "inject into every running target, succeeding when none runs")
	return cmd
}

func newUnloadCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "unload",
		Short: "Ask the extension to shut down and unload it",
		Args:  cobra.NoArgs,
		RunE: withHost(flags, func(cmd *cobra.Command, h *host) error {
			return h.ctrl.Shutdown(cmd.Context())
		}),
	}
}

func newNotifyCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:       "notify <event>",
		Short:     "Post a lifecycle event to the extension",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{notify.EventShutdown.String()},
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := notify.ParseEvent(args[0])
			if err != nil {
				return err
			}
			return withHost(flags, func(cmd *cobra.Command, h *host) error {
				return h.ctrl.Notify(cmd.Context(), ev)
			})(cmd, args)
		},
	}
}

func newStateCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "state",
		Short: "Report the controller state and whether symbols are cached",
		Args:  cobra.NoArgs,
		RunE: withHost(flags, func(cmd *cobra.Command, h *host) error {
			fmt.Fprintln(cmd.OutOrStdout(), "state:  ", h.ctrl.State())
			if pids := h.ctrl.ActivePIDs(); len(pids) > 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "active: ", pids)
			}
			if region, err := offsettable.Open(h.region.Path()); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "region: ", coloransi.Status(false, "not published"), "("+err.Error()+")")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "region: ", region.Path(), "generation", region.Generation())
				region.Close()
			}

			if err := h.ctrl.SymbolState(cmd.Context()); err != nil {
				fmt.Fprintln(cmd.OutOrStdout(), "symbols:", coloransi.Status(false, "not cached"), "("+err.Error()+")")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "symbols:", coloransi.Status(true, "cached"), "in", h.cfg.SymbolCacheDir())
			return nil
		}),
	}
}

func newDownloadCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "download",
		Short: "Download symbols for dwmcore.dll and uDwm.dll into the local cache",
		Args:  cobra.NoArgs,
		RunE: withHost(flags, func(cmd *cobra.Command, h *host) error {
			return h.ctrl.Download(cmd.Context())
		}),
	}
}

func newHooksCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "hooks",
		Short: "Print the hook descriptor table as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			t, err := loadDescriptors(cfg)
			if err != nil {
				return err
			}
			out, err := descriptor.Marshal(t)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# fingerprint 0x%08X\n", t.Fingerprint())
			_, err = cmd.OutOrStdout().Write(out)
			return err
		},
	}
}

func newConfigCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			out, err := cfg.Marshal()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), string(out))
			return err
		},
	}
}
