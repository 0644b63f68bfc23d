package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/roosta/i3wsr/internal/config"
	"github.com/roosta/i3wsr/internal/control/client"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(argv []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("wsrctl", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	socket := fs.String("socket", "", "path to the daemon control socket")
	timeout := fs.Duration("timeout", 3*time.Second, "control request timeout")
	fs.Usage = func() {
		fmt.Fprintf(fs.Output(), "Usage: %s [flags] <command> [args]\n", fs.Name())
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Commands:")
		fmt.Fprintln(fs.Output(), "  status\t\tshow the last recompute per workspace")
		fmt.Fprintln(fs.Output(), "  preview\t\tshow what a recompute would rename right now")
		fmt.Fprintln(fs.Output(), "  reload\t\ttrigger a live config reload")
		fmt.Fprintln(fs.Output(), "  metrics\t\tshow daemon counters")
		fmt.Fprintln(fs.Output(), "  check -config <path>\tvalidate a configuration file")
		fmt.Fprintln(fs.Output())
		fmt.Fprintln(fs.Output(), "Flags:")
		fs.PrintDefaults()
	}
	if err := fs.Parse(argv); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}

	args := fs.Args()
	if len(args) == 0 {
		fs.Usage()
		return fmt.Errorf("missing subcommand")
	}

	if args[0] == "check" {
		return runCheck(args[1:], stdout, os.Stderr)
	}

	cli, err := client.New(*socket)
	if err != nil {
		return fmt.Errorf("create client: %w", err)
	}

	ctx := context.Background()
	if *timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, *timeout)
		defer cancel()
	}

	switch args[0] {
	case "status":
		return runStatus(ctx, cli, stdout)
	case "preview":
		return runPreview(ctx, cli, stdout)
	case "reload":
		return runReload(ctx, cli, stdout)
	case "metrics":
		return runMetrics(ctx, cli, stdout)
	default:
		fs.Usage()
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func runCheck(args []string, stdout io.Writer, stderr io.Writer) error {
	fs := flag.NewFlagSet("check", flag.ContinueOnError)
	fs.SetOutput(stderr)
	configPath := fs.String("config", "", "path to configuration file")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if *configPath == "" {
		fs.Usage()
		return fmt.Errorf("check requires -config <path>")
	}

	if _, err := config.Load(*configPath); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Configuration OK")
	return nil
}

func runStatus(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	status, err := cli.Status(ctx)
	if err != nil {
		return err
	}
	if len(status.Workspaces) == 0 {
		fmt.Fprintln(stdout, "No recompute has run yet")
		return nil
	}
	printRenames(stdout, status.Workspaces)
	return nil
}

func runPreview(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	result, err := cli.Preview(ctx)
	if err != nil {
		return err
	}
	pending := 0
	for _, ws := range result.Workspaces {
		if ws.Changed {
			pending++
		}
	}
	if pending == 0 {
		fmt.Fprintln(stdout, "No pending renames")
		return nil
	}
	printRenames(stdout, result.Workspaces)
	return nil
}

func printRenames(stdout io.Writer, renames []client.WorkspaceRename) {
	for _, ws := range renames {
		marker := " "
		if ws.Changed {
			marker = "*"
		}
		fmt.Fprintf(stdout, "%s %d: %q -> %q\n", marker, ws.Num, ws.Current, ws.NewName)
	}
}

func runReload(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	if err := cli.Reload(ctx); err != nil {
		return err
	}
	fmt.Fprintln(stdout, "Reload requested")
	return nil
}

func runMetrics(ctx context.Context, cli *client.Client, stdout io.Writer) error {
	snap, err := cli.Metrics(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Started: %s\n", snap.Started.Format(time.RFC3339))
	fmt.Fprintf(stdout, "Recomputes: %d\n", snap.Recomputes)
	fmt.Fprintf(stdout, "Renames applied: %d\n", snap.RenamesApplied)
	fmt.Fprintf(stdout, "Renames skipped: %d\n", snap.RenamesSkipped)
	fmt.Fprintf(stdout, "Rename errors: %d\n", snap.RenameErrors)
	fmt.Fprintf(stdout, "Focus restores: %d\n", snap.FocusRestores)
	fmt.Fprintf(stdout, "Focus restore errors: %d\n", snap.FocusRestoreErrs)
	for _, kind := range snap.EventKinds() {
		fmt.Fprintf(stdout, "Event %s: %d\n", kind, snap.Events[kind])
	}
	return nil
}
