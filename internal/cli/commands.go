package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/liangyou/dnvm/internal/version"
	"github.com/liangyou/dnvm/pkg/models"
)

var errUnavailable = errors.New("cli: command is unavailable")

func parseDir(name string) (models.SdkDirName, error) {
	if name == "" {
		return "", nil
	}
	dir, err := models.NewSdkDirName(name)
	if err != nil {
		return "", usageErrorf("%v", err)
	}
	return dir, nil
}

func (a *App) trackCommand() *cobra.Command {
	var (
		force  bool
		sdkDir string
	)
	cmd := &cobra.Command{
		Use:   "track <channel>",
		Short: "Track a release channel and install its latest SDK",
		Long:  "Channels: latest, lts, sts, preview, M.m or M.m.Nxx.",
		Args:  exactArgs(1, "a channel"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.services.Tracker == nil {
				return errUnavailable
			}
			ch, err := models.ParseChannel(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			dir, err := parseDir(sdkDir)
			if err != nil {
				return err
			}
			result, err := a.services.Tracker.Track(cmd.Context(), version.TrackOptions{Channel: ch, SdkDir: dir, Force: force})
			if err != nil {
				return err
			}
			p := newPrinter(a.out)
			switch {
			case result.NoBuilds:
				p.Line("Tracking %s in %s; no builds are available yet", result.Channel, result.SdkDir)
			case result.Installed:
				p.Line("Installed %s and tracking %s in %s", result.Sdk.SdkVersion, result.Channel, result.SdkDir)
			default:
				p.Line("Tracking %s in %s with installed %s", result.Channel, result.SdkDir, result.Sdk.SdkVersion)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "track again even if the channel is already tracked")
	cmd.Flags().StringVar(&sdkDir, "sdk-dir", "", "sdk directory name")
	return cmd
}

func (a *App) untrackCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "untrack <channel>",
		Short: "Stop tracking a channel, keeping its installed SDKs",
		Args:  exactArgs(1, "a channel"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.services.Untracker == nil {
				return errUnavailable
			}
			ch, err := models.ParseChannel(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			if err := a.services.Untracker.Untrack(cmd.Context(), ch); err != nil {
				return err
			}
			newPrinter(a.out).Line("Untracked %s", ch)
			return nil
		},
	}
}

func (a *App) installCommand() *cobra.Command {
	var (
		force  bool
		sdkDir string
	)
	cmd := &cobra.Command{
		Use:   "install <version>",
		Short: "Install an exact SDK version",
		Args:  exactArgs(1, "an sdk version"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.services.Installer == nil {
				return errUnavailable
			}
			v, err := models.ParseVersion(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			dir, err := parseDir(sdkDir)
			if err != nil {
				return err
			}
			sdk, err := a.services.Installer.Install(cmd.Context(), version.InstallOptions{Version: v, SdkDir: dir, Force: force})
			if err != nil {
				return err
			}
			newPrinter(a.out).Line("Installed %s into %s", sdk.SdkVersion, sdk.SdkDirName)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "reinstall even if already installed")
	cmd.Flags().StringVar(&sdkDir, "sdk-dir", "", "sdk directory name")
	return cmd
}

func (a *App) updateCommand() *cobra.Command {
	var yes, dryRun bool
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Install the latest SDK of every tracked channel",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.services.Updater == nil {
				return errUnavailable
			}
			p := newPrinter(a.out)
			opts := version.UpdateOptions{DryRun: dryRun}
			declined := false
			if !yes && !dryRun {
				if a.interactive() {
					opts.Confirm = func(plans []version.UpdatePlan) bool {
						p.Header("Available updates:")
						p.Plans(plans)
						declined = !confirm(a.in, a.out, "Install updates?")
						return !declined
					}
				} else {
					opts.DryRun = true
				}
			}

			plans, err := a.services.Updater.Update(cmd.Context(), opts)
			if err != nil {
				return err
			}
			switch {
			case declined:
				p.Line("No updates installed")
			case len(plans) == 0:
				p.Line("All tracked channels are up to date")
			case opts.DryRun:
				p.Header("Available updates:")
				p.Plans(plans)
				if !dryRun {
					p.Note("Run 'dnvm update --yes' to install them")
				}
			default:
				p.Header("Updated:")
				p.Plans(plans)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "install without asking")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only show available updates")
	return cmd
}

func (a *App) uninstallCommand() *cobra.Command {
	var sdkDir string
	cmd := &cobra.Command{
		Use:   "uninstall <version>",
		Short: "Remove an installed SDK",
		Args:  exactArgs(1, "an sdk version"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.services.Remover == nil {
				return errUnavailable
			}
			v, err := models.ParseVersion(args[0])
			if err != nil {
				return usageErrorf("%v", err)
			}
			dir, err := parseDir(sdkDir)
			if err != nil {
				return err
			}
			removed, err := a.services.Remover.Uninstall(cmd.Context(), v, dir)
			if err != nil {
				return err
			}
			p := newPrinter(a.out)
			for _, sdk := range removed {
				p.Line("Uninstalled %s from %s", sdk.SdkVersion, sdk.SdkDirName)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&sdkDir, "dir", "", "only uninstall from this sdk directory")
	return cmd
}

func (a *App) pruneCommand() *cobra.Command {
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove SDKs superseded by a newer patch in the same feature line",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.services.Pruner == nil {
				return errUnavailable
			}
			removed, err := a.services.Pruner.Prune(cmd.Context(), dryRun)
			if err != nil {
				return err
			}
			p := newPrinter(a.out)
			if len(removed) == 0 {
				p.Line("Nothing to prune")
				return nil
			}
			verb := "Removed"
			if dryRun {
				verb = "Would remove"
			}
			for _, sdk := range removed {
				p.Line("%s %s from %s", verb, sdk.SdkVersion, sdk.SdkDirName)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "only list SDKs that would be removed")
	return cmd
}

func (a *App) selectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "select <sdk-dir>",
		Short: "Make an sdk directory the active one",
		Args:  exactArgs(1, "an sdk directory name"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.services.Selector == nil {
				return errUnavailable
			}
			dir, err := parseDir(args[0])
			if err != nil {
				return err
			}
			if err := a.services.Selector.Select(cmd.Context(), dir); err != nil {
				return err
			}
			newPrinter(a.out).Line("Selected %s", dir)
			return nil
		},
	}
}

func (a *App) listCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List installed SDKs and tracked channels",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.services.Lister == nil {
				return errUnavailable
			}
			view, err := a.services.Lister.Local(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(a.out)
			p.Line("Current sdk dir: %s", view.CurrentSdkDir)
			if len(view.Sdks) == 0 {
				p.Line("No SDKs installed")
			} else {
				p.Header("Installed SDKs:")
				for _, sdk := range view.Sdks {
					p.Row(version.FormatLocalSdk(sdk), sdk.IsCurrent)
				}
			}
			if len(view.Channels) > 0 {
				p.Header("Channels:")
				for _, reg := range view.Channels {
					line := fmt.Sprintf("%s (%s)", reg.ChannelName, reg.SdkDirName)
					if reg.Untracked {
						line += " untracked"
					}
					p.Row(line, false)
				}
			}
			return nil
		},
	}
}

func (a *App) listRemoteCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list-remote",
		Short: "List release channels from the release index",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.services.Lister == nil {
				return errUnavailable
			}
			index, err := a.services.Lister.Remote(cmd.Context())
			if err != nil {
				return err
			}
			p := newPrinter(a.out)
			if len(index) == 0 {
				p.Line("No remote channels available")
				return nil
			}
			p.Header("Channels:")
			for _, ci := range index {
				p.Row(version.FormatRemoteChannel(ci), false)
			}
			return nil
		},
	}
}

func (a *App) restoreCommand() *cobra.Command {
	var sdkDir string
	cmd := &cobra.Command{
		Use:   "restore",
		Short: "Install the SDK required by the nearest global.json",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.services.Restorer == nil {
				return errUnavailable
			}
			dir, err := parseDir(sdkDir)
			if err != nil {
				return err
			}
			wd, err := a.workDir()
			if err != nil {
				return fmt.Errorf("cli: working directory: %w", err)
			}
			result, err := a.services.Restorer.Restore(cmd.Context(), wd, dir)
			if err != nil {
				return err
			}
			p := newPrinter(a.out)
			if result.AlreadySatisfied {
				p.Line("%s requires %s; using installed %s", result.Requirement.Path, result.Requirement.Version, result.Sdk.SdkVersion)
				return nil
			}
			p.Line("Installed %s into %s for %s", result.Sdk.SdkVersion, result.Sdk.SdkDirName, result.Requirement.Path)
			return nil
		},
	}
	cmd.Flags().StringVar(&sdkDir, "sdk-dir", "", "sdk directory name, defaults to the current one")
	return cmd
}

func (a *App) setupCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Add dnvm to the shell profile",
		Args:  exactArgs(0, "no arguments"),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if a.services.Setup == nil {
				return errUnavailable
			}
			shell, err := a.services.Setup.DetectShell()
			if err != nil {
				return err
			}
			if err := a.services.Setup.UpdateShellConfig(shell); err != nil {
				return err
			}
			p := newPrinter(a.out)
			p.Line("Updated %s profile with %s on PATH", shell, a.services.RootDir)
			p.Note("Restart the shell to pick up the change")
			return nil
		},
	}
}
