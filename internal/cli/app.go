package cli

import (
	"context"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/liangyou/dnvm/internal/version"
	"github.com/liangyou/dnvm/pkg/models"
)

// TrackService 描述渠道跟踪能力。
type TrackService interface {
	Track(ctx context.Context, opts version.TrackOptions) (version.TrackResult, error)
}

// UntrackService 描述取消跟踪能力。
type UntrackService interface {
	Untrack(ctx context.Context, ch models.Channel) error
}

// InstallService 描述按精确版本安装的能力。
type InstallService interface {
	Install(ctx context.Context, opts version.InstallOptions) (models.InstalledSdk, error)
}

// UpdateService 描述渠道更新能力。
type UpdateService interface {
	Update(ctx context.Context, opts version.UpdateOptions) ([]version.UpdatePlan, error)
}

// UninstallService 描述卸载能力。
type UninstallService interface {
	Uninstall(ctx context.Context, v *models.Version, dir models.SdkDirName) ([]models.InstalledSdk, error)
}

// PruneService 描述清理旧版本的能力。
type PruneService interface {
	Prune(ctx context.Context, dryRun bool) ([]models.InstalledSdk, error)
}

// SelectService 描述切换当前目录的能力。
type SelectService interface {
	Select(ctx context.Context, dir models.SdkDirName) error
}

// ListService 描述版本查询能力。
type ListService interface {
	Local(ctx context.Context) (version.LocalView, error)
	Remote(ctx context.Context) ([]models.ChannelIndex, error)
}

// RestoreService 描述按 global.json 安装的能力。
type RestoreService interface {
	Restore(ctx context.Context, projectDir string, dir models.SdkDirName) (version.RestoreResult, error)
}

// SetupService 描述 shell 配置写入能力。
type SetupService interface {
	DetectShell() (string, error)
	UpdateShellConfig(shellType string) error
}

// Services 是命令执行所需的全部服务，由 Builder 在解析全局参数后构造。
type Services struct {
	RootDir   string
	Tracker   TrackService
	Untracker UntrackService
	Installer InstallService
	Updater   UpdateService
	Remover   UninstallService
	Pruner    PruneService
	Selector  SelectService
	Lister    ListService
	Restorer  RestoreService
	Setup     SetupService
}

// GlobalFlags 是所有命令共享的参数，优先级高于配置文件和环境变量。
type GlobalFlags struct {
	Home     string
	LogLevel string
	Feeds    []string
}

// Builder 根据全局参数构造服务。
type Builder func(ctx context.Context, flags GlobalFlags) (Services, error)

// Option 配置 App。
type Option func(*App)

// WithInput 设置确认提示读取的输入。
func WithInput(in io.Reader) Option {
	return func(a *App) {
		if in != nil {
			a.in = in
		}
	}
}

// WithInteractive 覆盖终端交互检测。
func WithInteractive(fn func() bool) Option {
	return func(a *App) {
		if fn != nil {
			a.interactive = fn
		}
	}
}

// WithWorkDir 覆盖 restore 查找 global.json 的起始目录。
func WithWorkDir(fn func() (string, error)) Option {
	return func(a *App) {
		if fn != nil {
			a.workDir = fn
		}
	}
}

// App 负责 CLI 命令解析与分发。
type App struct {
	out         io.Writer
	in          io.Reader
	version     string
	build       Builder
	interactive func() bool
	workDir     func() (string, error)

	flags    GlobalFlags
	services Services
}

// NewApp 创建 CLI 应用实例。
func NewApp(out io.Writer, build Builder, version string, opts ...Option) *App {
	if out == nil {
		out = os.Stdout
	}
	a := &App{
		out:         out,
		in:          os.Stdin,
		version:     version,
		build:       build,
		interactive: stdinIsTerminal,
		workDir:     os.Getwd,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run 解析参数并执行命令。
func (a *App) Run(ctx context.Context, args []string) error {
	root := a.rootCommand()
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

func (a *App) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "dnvm",
		Short:         "dnvm - .NET SDK version manager",
		Version:       a.version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if a.build == nil {
				return nil
			}
			services, err := a.build(cmd.Context(), a.flags)
			if err != nil {
				return err
			}
			a.services = services
			return nil
		},
	}
	root.SetOut(a.out)
	root.SetIn(a.in)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageErrorf("%v", err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.Home, "home", "", "install root, overrides DNVM_HOME")
	pf.StringVar(&a.flags.LogLevel, "log-level", "", "log level: debug, info, warn, error")
	pf.StringSliceVar(&a.flags.Feeds, "feed", nil, "release index URL, may be repeated")

	root.AddCommand(
		a.trackCommand(),
		a.untrackCommand(),
		a.installCommand(),
		a.updateCommand(),
		a.uninstallCommand(),
		a.pruneCommand(),
		a.selectCommand(),
		a.listCommand(),
		a.listRemoteCommand(),
		a.restoreCommand(),
		a.setupCommand(),
	)
	return root
}

func stdinIsTerminal() bool {
	fd := os.Stdin.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
