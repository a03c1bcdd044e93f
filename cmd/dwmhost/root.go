package main

import (
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"dwmhost/coloransi"
	"dwmhost/config"
	"dwmhost/descriptor"
	"dwmhost/i18n"
	"dwmhost/inject"
	"dwmhost/lifecycle"
	"dwmhost/notify"
	"dwmhost/offsettable"
	"dwmhost/process"
	"dwmhost/resolver"
	"dwmhost/symbols"

	"github.com/Moonlight-Companies/gologger/logger"
	"github.com/spf13/cobra"
)

type rootFlags struct {
	configPath string
	installDir string
	language   string
	noColor    bool
	lenient    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:   "dwmhost",
		Short: "Resolve private DWM function offsets and manage the blur extension",
		Long: `dwmhost locates private functions of dwmcore.dll and uDwm.dll through their
public symbols, publishes the offsets in a shared region next to the host, and
loads or unloads the extension module inside dwm.exe.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if flags.noColor {
				coloransi.SetEnabled(false)
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default <install dir>/"+config.FileName+")")
	pf.StringVar(&flags.installDir, "install-dir", "", "override the install directory")
	pf.StringVar(&flags.language, "lang", "", "language for error messages")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVar(&flags.lenient, "lenient", false, "accept a resolution pass that left hooks unresolved")

	root.AddCommand(
		newResolveCmd(flags),
		newLoadCmd(flags),
		newUnloadCmd(flags),
		newNotifyCmd(flags),
		newStateCmd(flags),
		newDownloadCmd(flags),
		newOffsetsCmd(flags),
		newHooksCmd(flags),
		newConfigCmd(flags),
	)
	return root
}

func (f *rootFlags) loadConfig() (*config.Config, error) {
	path := f.configPath
	if path == "" {
		dir := f.installDir
		if dir == "" {
			dir = config.Default().InstallDir
		}
		path = filepath.Join(dir, config.FileName)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if f.installDir != "" {
		cfg.InstallDir = f.installDir
	}
	if f.language != "" {
		cfg.Language = f.language
	}
	if f.lenient {
		cfg.Symbols.Strict = false
	}
	return cfg, nil
}

func loadDescriptors(cfg *config.Config) (*descriptor.Table, error) {
	path := cfg.DescriptorPath()
	if path == "" {
		return descriptor.Default(), nil
	}
	return descriptor.Load(path)
}

// host is everything a lifecycle command needs, wired from the config. The
// region is only mapped once a resolution pass starts, which the controller
// refuses while the extension is active.
type host struct {
	cfg    *config.Config
	table  *descriptor.Table
	region *offsettable.Writer
	walker symbols.Walker
	ctrl   *lifecycle.Controller
	log    *logger.Logger
}

func loadCatalog(cfg *config.Config, log *logger.Logger) (*i18n.Catalog, error) {
	catalog := i18n.Default()
	if path := cfg.LanguageFilePath(); path != "" {
		if err := catalog.LoadFile(path); err != nil {
			return nil, err
		}
	}
	if !slices.Contains(catalog.Languages(), strings.ToLower(cfg.Language)) {
		log.Warn("No messages for language ", cfg.Language, ", using ", i18n.Fallback)
	}
	return catalog, nil
}

func (f *rootFlags) newHost() (*host, error) {
	cfg, err := f.loadConfig()
	if err != nil {
		return nil, err
	}
	log := logger.NewLogger(coloransi.Color(coloransi.ColorWhite, coloransi.ColorPurple, "dwmhost"))

	table, err := loadDescriptors(cfg)
	if err != nil {
		return nil, fmt.Errorf("load hook descriptors: %w", err)
	}
	catalog, err := loadCatalog(cfg, log)
	if err != nil {
		return nil, err
	}

	region := offsettable.NewWriter(cfg.RegionPath(), table.Len())

	walker, err := symbols.NewWalker(cfg.DbgHelpPath())
	if err != nil {
		log.Warn("Symbol engine unavailable: ", err)
	}
	undec, ok := walker.(symbols.Undecorator)
	if !ok {
		undec = symbols.NewUndecorator(cfg.DbgHelpPath())
	}

	res := resolver.New(table, region, walker, undec, resolver.Options{
		SearchPath: cfg.SearchPath(),
		Strict:     cfg.Symbols.Strict,
	})

	ctrl := lifecycle.New(lifecycle.Deps{
		Resolver:    res,
		Finder:      process.NewProcessFinder(),
		Injector:    inject.New(),
		Notifier:    notify.New(notify.NewWindowSystem(), cfg.Target.NotifyClass),
		Broadcaster: notify.NewBroadcaster(),
		Catalog:     catalog,
	}, lifecycle.Options{
		TargetProcess: cfg.Target.Process,
		ExtensionPath: cfg.ExtensionPath(),
		Language:      cfg.Language,
		AutoDownload:  cfg.Symbols.AutoDownload,
	})

	return &host{cfg: cfg, table: table, region: region, walker: walker, ctrl: ctrl, log: log}, nil
}

func (h *host) Close() error {
	if c, ok := h.walker.(interface{ Close() error }); ok {
		if err := c.Close(); err != nil {
			h.log.Warn("Closing symbol engine: ", err)
		}
	}
	return h.region.Close()
}
