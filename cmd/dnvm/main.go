package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/liangyou/dnvm/internal/cli"
	"github.com/liangyou/dnvm/internal/config"
	"github.com/liangyou/dnvm/internal/env"
	dnvmlog "github.com/liangyou/dnvm/internal/log"
	"github.com/liangyou/dnvm/internal/platform"
	"github.com/liangyou/dnvm/internal/remote"
	"github.com/liangyou/dnvm/internal/storage"
	"github.com/liangyou/dnvm/internal/version"
	"github.com/liangyou/dnvm/pkg/models"
)

const appVersion = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)

	logger := zap.NewNop()
	build := func(_ context.Context, flags cli.GlobalFlags) (cli.Services, error) {
		services, l, err := buildServices(flags)
		if l != nil {
			logger = l
		}
		return services, err
	}

	app := cli.NewApp(os.Stdout, build, appVersion)
	err := app.Run(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintln(os.Stderr, "dnvm:", err)
	}
	_ = logger.Sync()
	stop()
	os.Exit(cli.ExitCode(err))
}

func buildServices(flags cli.GlobalFlags) (cli.Services, *zap.Logger, error) {
	cfg, err := config.NewLoader().WithRoot(flags.Home).Load()
	if err != nil {
		return cli.Services{}, nil, err
	}
	if flags.LogLevel != "" {
		cfg.LogLevel = flags.LogLevel
	}
	if len(flags.Feeds) > 0 {
		cfg.Feeds = flags.Feeds
	}

	invocation := uuid.NewString()
	logger, err := dnvmlog.New(cfg.LogLevel, os.Stderr, zap.String("invocation", invocation))
	if err != nil {
		return cli.Services{}, nil, err
	}

	checker := platform.NewChecker(cfg)
	if err := checker.Validate(); err != nil {
		return cli.Services{}, logger, err
	}
	rid, err := checker.Rid()
	if err != nil {
		return cli.Services{}, logger, err
	}
	defaultDir, err := models.NewSdkDirName(cfg.DefaultSdkDir)
	if err != nil {
		return cli.Services{}, logger, err
	}

	store := storage.NewFileStorage(cfg, storage.WithLogger(logger))
	workspace := version.NewWorkspace(store,
		version.WithLockTiming(cfg.LockTimeout, cfg.LockRetryDelay),
		version.WithOwner(invocation),
		version.WithWorkspaceLogger(logger),
	)
	downloader := version.NewDownloader(version.WithDownloaderLogger(logger))
	envManager := env.NewManager(cfg, env.DefaultPathStore())

	var activator version.Activator
	if checker.SupportsSymlinks() {
		activator = version.NewSymlinkActivator(cfg.RootDir, checker.ExeName("dotnet"))
	} else {
		activator = version.NewPathActivator(cfg.RootDir, envManager)
	}

	deps := version.Deps{
		Workspace:  workspace,
		Index:      remote.NewClient(remote.WithLogger(logger)),
		Feeds:      cfg.Feeds,
		Installer:  version.NewArchiveInstaller(downloader, rid, checker.ArchiveExt(), logger),
		Remover:    version.NewComponentRemover(rid, logger),
		Activator:  activator,
		DefaultDir: defaultDir,
		Logger:     logger,
	}
	logger.Debug("dnvm configured", zap.String("root", cfg.RootDir), zap.String("rid", rid))

	return cli.Services{
		RootDir:   cfg.RootDir,
		Tracker:   version.NewTracker(deps),
		Untracker: version.NewUntracker(deps),
		Installer: version.NewInstaller(deps),
		Updater:   version.NewUpdater(deps),
		Remover:   version.NewUninstaller(deps),
		Pruner:    version.NewPruner(deps),
		Selector:  version.NewSelector(deps),
		Lister:    version.NewLister(deps),
		Restorer:  version.NewRestorer(deps),
		Setup:     envManager,
	}, logger, nil
}
