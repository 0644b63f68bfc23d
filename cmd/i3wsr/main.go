package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/roosta/i3wsr/internal/config"
	"github.com/roosta/i3wsr/internal/control"
	"github.com/roosta/i3wsr/internal/engine"
	"github.com/roosta/i3wsr/internal/ipc"
	"github.com/roosta/i3wsr/internal/metrics"
	"github.com/roosta/i3wsr/internal/rules"
	"github.com/roosta/i3wsr/internal/util"
)

func main() {
	cfgPath := flag.String("config", defaultConfigPath(), "path to YAML config")
	logLevel := flag.String("log-level", "info", "log level (trace|debug|info|warn|error)")
	noNames := flag.Bool("no-names", false, "show icons only, never labels")
	noIconNames := flag.Bool("no-icon-names", false, "show the icon alone when a window has one")
	removeDuplicates := flag.Bool("remove-duplicates", false, "collapse windows that render identically")
	focusFix := flag.Bool("focus-fix", false, "restore the focused workspace after a rename batch")
	displayProperty := flag.String("display-property", "", "window property used for unaliased windows (class|instance|name)")
	splitAt := flag.String("split-at", "", "character ending the preserved workspace prefix")
	flag.Parse()

	logger := util.NewLogger(util.ParseLogLevel(*logLevel))

	overrides := &flagOverrides{
		set:              make(map[string]bool),
		noNames:          *noNames,
		noIconNames:      *noIconNames,
		removeDuplicates: *removeDuplicates,
		focusFix:         *focusFix,
		displayProperty:  *displayProperty,
		splitAt:          *splitAt,
	}
	flag.Visit(func(f *flag.Flag) { overrides.set[f.Name] = true })

	var (
		cfg        *config.Config
		serialized []byte
		haveFile   bool
	)
	raw, err := os.ReadFile(*cfgPath)
	switch {
	case err == nil:
		cfg, err = config.Parse(raw)
		if err != nil {
			exitErr(err)
		}
		serialized = raw
		haveFile = true
		logger.Infof("loaded config from %s", *cfgPath)
	case errors.Is(err, os.ErrNotExist) && !overrides.set["config"]:
		logger.Debugf("no config at %s, using defaults", *cfgPath)
		cfg = config.Default()
	default:
		exitErr(fmt.Errorf("read config: %w", err))
	}
	overrides.apply(cfg)
	if err := cfg.Validate(); err != nil {
		exitErr(err)
	}
	resolver, err := rules.Compile(cfg)
	if err != nil {
		exitErr(fmt.Errorf("compile aliases: %w", err))
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	client, err := ipc.Connect()
	if err != nil {
		exitErr(fmt.Errorf("connect to window manager: %w", err))
	}
	defer client.Close()

	collector := metrics.NewCollector()
	eng := engine.New(client, logger, resolver, collector)

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	var reload func(reason string) error
	reloadRequests := make(chan string, 1)
	if haveFile {
		cfgFullPath, err := filepath.Abs(*cfgPath)
		if err != nil {
			exitErr(fmt.Errorf("resolve config path: %w", err))
		}
		cfgFullPath = filepath.Clean(cfgFullPath)
		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			exitErr(fmt.Errorf("watch config: %w", err))
		}
		defer watcher.Close()
		if err := watcher.Add(filepath.Dir(cfgFullPath)); err != nil {
			exitErr(fmt.Errorf("watch config dir: %w", err))
		}
		if err := watcher.Add(cfgFullPath); err != nil {
			logger.Debugf("unable to watch config file directly: %v", err)
		}
		go watchConfig(logger, watcher, cfgFullPath, reloadRequests)

		reloader := newConfigReloader(*cfgPath, logger, eng, overrides, serialized)
		reload = func(reason string) error {
			return reloader.Reload(ctx, reason)
		}
	}

	ctrlSrv, err := control.NewServer(eng, logger, collector, reload)
	if err != nil {
		exitErr(fmt.Errorf("start control server: %w", err))
	}

	errs := make(chan error, 2)
	go func() {
		errs <- eng.Run(ctx)
	}()
	go func() {
		errs <- ctrlSrv.Serve(ctx)
	}()

	for {
		select {
		case err := <-errs:
			if err != nil && err != context.Canceled {
				logger.Errorf("engine exited: %v", err)
				os.Exit(1)
			}
			logger.Infof("engine stopped")
			return
		case reason := <-reloadRequests:
			if reload == nil {
				continue
			}
			if err := reload(reason); err != nil {
				logger.Errorf("reload failed: %v", err)
			}
		case sig := <-sigs:
			switch sig {
			case syscall.SIGHUP:
				if reload == nil {
					logger.Warnf("received SIGHUP but no config file is loaded")
					continue
				}
				if err := reload("received SIGHUP"); err != nil {
					logger.Errorf("reload failed: %v", err)
				}
			case os.Interrupt, syscall.SIGTERM:
				logger.Infof("received %s, shutting down", sig)
				cancel()
			}
		}
	}
}

// flagOverrides carries command-line settings that take precedence over the
// config file, including across reloads.
type flagOverrides struct {
	set map[string]bool

	noNames          bool
	noIconNames      bool
	removeDuplicates bool
	focusFix         bool
	displayProperty  string
	splitAt          string
}

func (o *flagOverrides) apply(cfg *config.Config) {
	if o.set["no-names"] {
		cfg.Options.NoNames = o.noNames
	}
	if o.set["no-icon-names"] {
		cfg.Options.NoIconNames = o.noIconNames
	}
	if o.set["remove-duplicates"] {
		cfg.Options.RemoveDuplicates = o.removeDuplicates
	}
	if o.set["focus-fix"] {
		cfg.Options.FocusFix = o.focusFix
	}
	if o.set["display-property"] {
		cfg.General.DisplayProperty = o.displayProperty
	}
	if o.set["split-at"] {
		cfg.General.SplitAt = o.splitAt
	}
}

func defaultConfigPath() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "i3wsr", "config.yaml")
}

func watchConfig(logger *util.Logger, watcher *fsnotify.Watcher, target string, reloadRequests chan<- string) {
	const debounceWindow = 250 * time.Millisecond
	var (
		timer   *time.Timer
		timerCh <-chan time.Time
	)
	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounceWindow)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timerCh
				}
				timer.Reset(debounceWindow)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			select {
			case reloadRequests <- "config file updated":
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			logger.Warnf("config watcher error: %v", err)
		}
	}
}

func exitErr(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}
