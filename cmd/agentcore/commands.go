// commands.go contains all cobra command definitions and their flag
// configurations. Each command builder function creates a command and wires
// it to its handler, mirroring the gateway this runtime was distilled from.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/agentcore/internal/agent"
	"github.com/haasonsaas/agentcore/internal/config"
	"github.com/haasonsaas/agentcore/internal/scheduler"
	"github.com/haasonsaas/agentcore/internal/storage"
	"github.com/haasonsaas/agentcore/pkg/models"
)

const defaultConfigPath = "agentcore.yaml"

// =============================================================================
// Serve Command
// =============================================================================

// buildServeCmd creates the "serve" command: the CLI stand-in transport that
// reads stdin lines as inbound chat turns from a single local user, while the
// Scheduler and admin API run in the background.
func buildServeCmd() *cobra.Command {
	var (
		configPath string
		userKey    string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the agent loop against stdin/stdout, with the scheduler and admin API in the background",
		Long: `Run the per-user conversational agent runtime.

The server will:
1. Load configuration from the specified file (or use built-in defaults)
2. Open the long-term SQLite store
3. Start the Scheduler's tick loop
4. Start the admin HTTP surface (approvals, tasks, metrics, event stream)
5. Read lines from stdin as chat turns and print the agent's replies to stdout

Graceful shutdown is handled on SIGINT/SIGTERM.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), configPath, userKey)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVarP(&userKey, "user", "u", "local", "Identity key for the stdin user, used for session resolution")

	return cmd
}

func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); err != nil {
		return config.Default(), nil
	}
	return config.Load(path)
}

func runServe(ctx context.Context, configPath, userKey string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	rt, err := newRuntime(cfg)
	if err != nil {
		return fmt.Errorf("initialize runtime: %w", err)
	}
	defer rt.close()

	store := scheduler.NewFileStore(cfg.Scheduler.TasksFilePath)
	sched, err := scheduler.New(store, rt.schedulerCallback(userKey),
		scheduler.WithTickInterval(cfg.Scheduler.TickInterval),
		scheduler.WithLogger(rt.logger),
		scheduler.WithMetrics(rt.metrics),
	)
	if err != nil {
		return fmt.Errorf("initialize scheduler: %w", err)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	sched.Start(ctx)
	defer sched.Stop()

	admin := rt.newAdminServer(sched)
	if err := admin.Start(); err != nil {
		return fmt.Errorf("start admin api: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = admin.Shutdown(shutdownCtx)
	}()

	rt.logger.Info(ctx, "agentcore serving", "user", userKey, "admin_addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port))

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		if !rt.limiter.Allow(userKey) {
			rt.metrics.RecordRateLimitRejection()
			fmt.Fprintln(os.Stderr, "agentcore:", agent.ErrBackpressure)
			continue
		}
		reply, err := rt.sessions.ProcessMessage(ctx, userKey, line)
		if err != nil {
			fmt.Fprintln(os.Stderr, "agentcore: error:", err)
			continue
		}
		fmt.Println(reply)

		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}
	return scanner.Err()
}

// =============================================================================
// Task Commands
// =============================================================================

// buildTaskCmd creates the "task" command group for managing scheduled tasks
// from the CLI, against the same JSON file the running server reads.
func buildTaskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Manage scheduled tasks",
	}
	cmd.AddCommand(buildTaskListCmd(), buildTaskAddCmd(), buildTaskRemoveCmd())
	return cmd
}

func openTaskStore(configPath string) (*scheduler.Scheduler, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	store := scheduler.NewFileStore(cfg.Scheduler.TasksFilePath)
	return scheduler.New(store, func(context.Context, *models.ScheduledTask) error { return nil })
}

func buildTaskListCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List scheduled tasks",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := openTaskStore(configPath)
			if err != nil {
				return err
			}
			for _, t := range sched.List() {
				fmt.Printf("%s\t%s\t%s\tenabled=%t\n", t.ID, t.Name, t.Kind, t.Enabled)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

func buildTaskAddCmd() *cobra.Command {
	var (
		configPath string
		name       string
		kind       string
		prompt     string
		cronExpr   string
		at         string
	)
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a scheduled task",
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := openTaskStore(configPath)
			if err != nil {
				return err
			}
			task := &models.ScheduledTask{
				Name:       name,
				Kind:       models.TaskKind(kind),
				PromptText: prompt,
				CronExpr:   cronExpr,
			}
			if at != "" {
				parsed, err := time.Parse(time.RFC3339, at)
				if err != nil {
					return fmt.Errorf("invalid --at timestamp: %w", err)
				}
				task.ScheduledAt = &parsed
			}
			created, err := sched.Add(task)
			if err != nil {
				return err
			}
			fmt.Println(created.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	cmd.Flags().StringVar(&name, "name", "", "Task name")
	cmd.Flags().StringVar(&kind, "kind", string(models.TaskOneShot), "Task kind: one_shot, reminder, cron, daily_briefing, heartbeat")
	cmd.Flags().StringVar(&prompt, "prompt", "", "Prompt text delivered to the agent loop when the task fires")
	cmd.Flags().StringVar(&cronExpr, "cron", "", "Cron expression, for kind=cron/daily_briefing/heartbeat")
	cmd.Flags().StringVar(&at, "at", "", "RFC3339 timestamp, for kind=one_shot/reminder")
	return cmd
}

func buildTaskRemoveCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "remove [id]",
		Short: "Remove a scheduled task by id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sched, err := openTaskStore(configPath)
			if err != nil {
				return err
			}
			return sched.Remove(args[0])
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}

// =============================================================================
// Migrate Command
// =============================================================================

// buildMigrateCmd creates the "migrate" command, which opens (and so
// migrates, since storage.Open runs the schema unconditionally) the SQLite
// store without starting the agent loop or admin API.
func buildMigrateCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply the long-term store schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			store, err := storage.Open(cfg.Storage.DSN)
			if err != nil {
				return fmt.Errorf("open storage: %w", err)
			}
			defer store.Close()
			fmt.Println("storage schema up to date:", cfg.Storage.DSN)
			return nil
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "Path to YAML configuration file")
	return cmd
}
