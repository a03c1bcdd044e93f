package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"

	"dwmhost/coloransi"
	"dwmhost/descriptor"
	"dwmhost/hexdump"
	"dwmhost/offsettable"
	"dwmhost/process"
	"dwmhost/table"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const probeBytes = 16

func newOffsetsCmd(flags *rootFlags) *cobra.Command {
	var raw, probe bool

	cmd := &cobra.Command{
		Use:   "offsets",
		Short: "Show the published offsets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := flags.loadConfig()
			if err != nil {
				return err
			}
			hooks, err := loadDescriptors(cfg)
			if err != nil {
				return err
			}
			region, err := offsettable.Open(cfg.RegionPath())
			if err != nil {
				return err
			}
			defer region.Close()

			if region.Fingerprint() != hooks.Fingerprint() || region.Len() != hooks.Len() {
				fmt.Fprintln(cmd.ErrOrStderr(), coloransi.Foreground(coloransi.BrightYellow,
					"warning: region was written for a different hook table, run resolve again"))
			}

			if raw {
				dumpRegion(cmd, region, hooks)
				return nil
			}

			var prologues map[int]string
			if probe {
				prologues, err = probeTarget(cmd.Context(), flags, hooks, region)
				if err != nil {
					return err
				}
			}
			return printOffsets(cmd, region, hooks, prologues)
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, "hexdump the raw region")
	cmd.Flags().BoolVar(&probe, "probe", false, "read the first bytes at each offset inside the running target")
	cmd.MarkFlagsMutuallyExclusive("raw", "probe")
	return cmd
}

func printOffsets(cmd *cobra.Command, region *offsettable.Table, hooks *descriptor.Table, prologues map[int]string) error {
	entries, gen, ok := region.Snapshot()
	if !ok {
		return fmt.Errorf("region %s is being rewritten, try again", region.Path())
	}

	cols := []table.ColumnSpec{
		{Header: "#", AlignRight: true},
		{Header: "module"},
		{Header: "symbol"},
		{Header: "offset", AlignRight: true, FormatFunc: func(s string) string {
			return coloransi.Status(s != "-", s)
		}},
	}
	if prologues != nil {
		cols = append(cols, table.ColumnSpec{Header: "bytes"})
	}
	t := table.New(cols...)

	for i, off := range entries {
		module, symbol := "?", "?"
		if i < hooks.Len() {
			d := hooks.At(i)
			module, symbol = d.Module.String(), d.Symbol
		}
		cell := ""
		if off != 0 {
			cell = fmt.Sprintf("0x%X", off)
		}
		t.AddRow(strconv.Itoa(i), module, symbol, cell, prologues[i])
	}

	out := cmd.OutOrStdout()
	if err := t.Render(out); err != nil {
		return err
	}
	resolved := lo.CountBy(entries, func(off uint64) bool { return off != 0 })
	_, err := fmt.Fprintf(out, "%d of %d resolved, generation %d\n", resolved, len(entries), gen)
	return err
}

func dumpRegion(cmd *cobra.Command, region *offsettable.Table, hooks *descriptor.Table) {
	opts := hexdump.DefaultOptions()
	opts.BytesPerLine = 8
	opts.OffsetWidth = 4
	opts.ShowASCII = false
	opts.Label = func(off int) string {
		switch off {
		case 0:
			return "magic, version"
		case 8:
			return "generation"
		case 16:
			return "count, fingerprint"
		case 24:
			return "expected " + descriptor.ModuleDwmcore.String()
		case 32:
			return "expected " + descriptor.ModuleUDwm.String()
		}
		i := (off - offsettable.HeaderSize) / offsettable.EntrySize
		if i >= 0 && i < hooks.Len() {
			return fmt.Sprintf("[%d] %s", i, hooks.At(i))
		}
		return ""
	}
	hexdump.DumpToWriter(cmd.OutOrStdout(), region.Bytes(), opts)
}

// probeTarget reads the first bytes of every resolved function inside the
// first running target process.
func probeTarget(ctx context.Context, flags *rootFlags, hooks *descriptor.Table, region *offsettable.Table) (map[int]string, error) {
	cfg, err := flags.loadConfig()
	if err != nil {
		return nil, err
	}
	infos, err := process.NewProcessFinder().FindProcessByName(ctx, cfg.Target.Process)
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, fmt.Errorf("%w: %s", process.ErrProcessNotFound, cfg.Target.Process)
	}

	proc, err := openTarget(infos[0].PID)
	if err != nil {
		return nil, err
	}
	defer proc.Close()

	mods, err := proc.Modules()
	if err != nil {
		return nil, err
	}

	out := map[int]string{}
	for i := 0; i < region.Len() && i < hooks.Len(); i++ {
		off := region.GetOffset(uint32(i))
		if off == 0 {
			continue
		}
		mod, err := mods.Find(hooks.At(i).Module.FileName())
		if err != nil {
			out[i] = err.Error()
			continue
		}
		if owner, err := mods.Containing(mod.Base + process.ProcessMemoryAddress(off)); err != nil || owner.Base != mod.Base {
			out[i] = coloransi.Status(false, "outside "+mod.Name)
			continue
		}
		code, err := process.ReadAt[[probeBytes]byte](proc, mod, off)
		if err != nil {
			out[i] = coloransi.Status(false, "unreadable")
			continue
		}
		out[i] = hex.EncodeToString(code[:])
	}
	return out, nil
}
