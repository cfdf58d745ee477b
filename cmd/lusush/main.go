package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/lusush/lusush/internal/completion"
	"github.com/lusush/lusush/internal/core"
	"github.com/lusush/lusush/internal/evaluate"
	"github.com/lusush/lusush/internal/history"
	"github.com/lusush/lusush/internal/termtitle"
	"github.com/lusush/lusush/pkg/keys"
	"github.com/lusush/lusush/pkg/lle"
	"github.com/lusush/lusush/pkg/termio"
)

var BUILD_VERSION = "dev"

var command = flag.String("c", "", "run a command")

var helpFlag = flag.Bool("h", false, "display help information")
var versionFlag = flag.Bool("ver", false, "display build version")

var promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)

func main() {
	flag.Parse()

	if *versionFlag {
		fmt.Println(BUILD_VERSION)
		return
	}

	if *helpFlag {
		fmt.Println("Usage of lusush:")
		flag.PrintDefaults()
		return
	}

	logger, err := initializeLogger()
	if err != nil {
		panic(err)
	}

	logger.Info("-------- new lusush session --------", zap.Any("args", os.Args))

	executor, err := evaluate.NewShellExecutor(logger)
	if err != nil {
		logger.Error("could not initialize interpreter", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}

	status := run(executor, logger)
	_ = logger.Sync()
	os.Exit(status)
}

func run(executor *evaluate.ShellExecutor, logger *zap.Logger) int {
	ctx := context.Background()

	// lusush -c "echo hello"
	if *command != "" {
		return runOnce(ctx, executor, *command, logger)
	}

	// lusush script.sh
	if flag.NArg() > 0 {
		status := 0
		for _, path := range flag.Args() {
			content, err := os.ReadFile(path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "lusush: %v\n", err)
				return 1
			}
			status = runOnce(ctx, executor, string(content), logger)
			if executor.Exited() {
				break
			}
		}
		return status
	}

	// lusush
	if term.IsTerminal(int(os.Stdin.Fd())) {
		return runInteractive(ctx, executor, logger)
	}

	content, err := io.ReadAll(os.Stdin)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lusush: %v\n", err)
		return 1
	}
	return runOnce(ctx, executor, string(content), logger)
}

func runOnce(ctx context.Context, executor *evaluate.ShellExecutor, script string, logger *zap.Logger) int {
	status, err := executor.Execute(ctx, script)
	if err != nil {
		logger.Error("execution failed", zap.Error(err))
		fmt.Fprintf(os.Stderr, "lusush: %v\n", err)
		if status == 0 {
			status = 1
		}
	}
	return status
}

func runInteractive(ctx context.Context, executor *evaluate.ShellExecutor, logger *zap.Logger) int {
	tty, err := termio.Open(os.Stdin, os.Stdout, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "lusush: %v\n", err)
		return 1
	}
	defer tty.Close()

	// A terminating signal must never leave the terminal in raw mode.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGTERM, syscall.SIGHUP)
	go func() {
		<-sigs
		tty.RestoreMode()
		os.Exit(1)
	}()

	store := history.NewStore(core.HistoryFile(), history.Options{DedupAdjacent: true}, logger)

	archive, err := history.OpenArchive(core.ArchiveFile())
	if err != nil {
		// The flat history file is authoritative; the archive is a bonus.
		logger.Warn("could not open history archive", zap.Error(err))
		archive = nil
	} else {
		defer archive.Close()
	}

	manager := completion.NewManager(logger,
		&completion.CommandProvider{Builtins: evaluate.Builtins()},
		&completion.FileProvider{Dir: executor.Dir},
	)

	// Anchor the first prompt to column 0 before the key decoder takes
	// over the input stream; a cursor query cannot run after that.
	if err := tty.EnterRawMode(); err == nil {
		if aerr := tty.AlignToRowStart(); aerr != nil {
			logger.Debug("cursor alignment failed", zap.Error(aerr))
		}
		tty.RestoreMode()
	}

	// Ctrl-R searches the archive when it is open; the editor falls back
	// to the in-memory store otherwise.
	var search func(prefix string, limit int) ([]string, error)
	if archive != nil {
		search = func(prefix string, limit int) ([]string, error) {
			entries, err := archive.RecentByPrefix(prefix, limit)
			if err != nil {
				return nil, err
			}
			return lo.Map(entries, func(e history.ArchiveEntry, _ int) string {
				return e.Command
			}), nil
		}
	}

	editor := lle.New(tty, keys.NewDecoder(tty, logger), lle.Options{
		History:         store,
		Completion:      manager,
		Raw:             tty,
		Resize:          tty.Resize(),
		SystemClipboard: true,
		Search:          search,
		Logger:          logger,
	})

	titles := termtitle.New(os.Stdout)

	status := 0
	for {
		titles.Set("lusush: " + abbreviateHome(executor.Dir()))

		res, err := editor.ReadLine(lle.PromptSpec{Text: prompt(executor)})
		if err != nil {
			logger.Error("read line failed", zap.Error(err))
			return 1
		}

		switch res.Kind {
		case lle.Cancelled:
			continue

		case lle.EndOfInput:
			return status

		case lle.Accepted:
			if strings.TrimSpace(res.Text) == "" {
				continue
			}

			var rec *history.ArchiveEntry
			if archive != nil {
				if rec, err = archive.Begin(res.Text, executor.Dir()); err != nil {
					logger.Warn("could not archive command", zap.Error(err))
					rec = nil
				}
			}

			status = runOnce(ctx, executor, res.Text, logger)

			if archive != nil && rec != nil {
				if err := archive.Finish(rec, status); err != nil {
					logger.Warn("could not finish archive record", zap.Error(err))
				}
			}

			if executor.Exited() {
				return status
			}
		}
	}
}

// prompt renders the primary prompt: the working directory with the home
// prefix abbreviated, styled when the terminal supports it.
func prompt(executor *evaluate.ShellExecutor) string {
	return promptStyle.Render(abbreviateHome(executor.Dir())) + "> "
}

func abbreviateHome(dir string) string {
	if home := core.HomeDir(); home != "" && strings.HasPrefix(dir, home) {
		return "~" + strings.TrimPrefix(dir, home)
	}
	return dir
}

func initializeLogger() (*zap.Logger, error) {
	level := zap.NewAtomicLevelAt(zap.InfoLevel)
	if os.Getenv("LUSUSH_DEBUG") != "" || BUILD_VERSION == "dev" {
		level = zap.NewAtomicLevelAt(zap.DebugLevel)
	}

	loggerConfig := zap.NewProductionConfig()
	loggerConfig.Level = level
	loggerConfig.OutputPaths = []string{
		core.LogFile(),
	}
	return loggerConfig.Build()
}
