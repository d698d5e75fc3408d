package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/pmorten/stagehand/internal/config"
	"github.com/pmorten/stagehand/internal/editor"
	"github.com/pmorten/stagehand/internal/engine"
	"github.com/pmorten/stagehand/internal/history"
	"github.com/pmorten/stagehand/internal/logger"
	"github.com/pmorten/stagehand/internal/models"
	"github.com/pmorten/stagehand/internal/orchestrator"
	"github.com/pmorten/stagehand/internal/planner"
	"github.com/pmorten/stagehand/internal/reflection"
	"github.com/pmorten/stagehand/internal/replan"
	"github.com/pmorten/stagehand/internal/snapshot"
	"github.com/pmorten/stagehand/internal/tool"
)

// NewOrchestrateCommand creates the orchestrate command
func NewOrchestrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orchestrate <request>...",
		Short: "Plan and execute a natural-language request",
		Long: `Plan and execute a natural-language request against the workspace.

The request is turned into a multi-step plan, reviewed, executed step by
step, and replanned on failure up to the configured limit. The outcome is
summarized and written to the history database.

Examples:
  # Analyze code
  stagehand orchestrate "explain how internal/engine resolves step references"

  # Fix a reported error
  stagehand orchestrate "fix the nil pointer error in parser.go"

  # Use the claude CLI instead of the OpenAI API
  stagehand orchestrate --backend claude "write tests for the config loader"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runOrchestrate,
	}

	cmd.Flags().String("config", "", "Path to config file (default: .stagehand/config.yaml)")
	cmd.Flags().String("workdir", ".", "Workspace root the tools operate on")
	cmd.Flags().String("backend", "", "Planner backend: openai or claude (overrides config)")
	cmd.Flags().String("model", "", "Model name for the openai backend (overrides config)")
	cmd.Flags().String("log-level", "", "Log verbosity: trace, debug, info, warn, error")
	cmd.Flags().Int("max-replanning", -1, "Maximum replanning attempts (-1 = use config)")
	cmd.Flags().Bool("no-validation", false, "Skip planner-backed plan review")
	cmd.Flags().Bool("no-replanning", false, "Never replan after a failed attempt")
	cmd.Flags().Bool("no-history", false, "Do not record this run in the history database")
	cmd.Flags().String("file", "", "Treat this file as the currently open editor file")

	return cmd
}

func runOrchestrate(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfigFromFlags(cmd)
	if err != nil {
		return err
	}
	applyOrchestrateFlags(cmd, cfg)

	workdir, _ := cmd.Flags().GetString("workdir")
	noHistory, _ := cmd.Flags().GetBool("no-history")
	input := strings.Join(args, " ")

	consoleLog := logger.NewConsoleLogger(os.Stderr, cfg.LogLevel)

	// Detailed logs additionally go to a per-run file under the log
	// directory. A broken log directory must not block the run.
	var log runLogger = consoleLog
	if fileLog, err := logger.NewFileLoggerWithDirAndLevel(cfg.LogDir, cfg.LogLevel); err != nil {
		consoleLog.LogWarn(fmt.Sprintf("file logging disabled: %v", err))
	} else {
		defer fileLog.Close()
		log = &multiLogger{loggers: []runLogger{consoleLog, fileLog}}
	}

	backend, err := newPlannerBackend(cfg, log)
	if err != nil {
		return err
	}

	shell := &tool.RunShellCommandTool{WorkDir: workdir, Timeout: cfg.ShellTimeout}
	registry, err := tool.DefaultRegistry(workdir, &planner.TextAdapter{Planner: backend}, shell)
	if err != nil {
		return fmt.Errorf("build tool registry: %w", err)
	}

	resolver := engine.NewResolver(editorAccessor(cmd), log)
	eng, err := engine.NewEngine(registry, resolver,
		engine.WithSnapshotter(snapshot.NewManager(workdir)),
		engine.WithObserver(stepObserver(log)),
		engine.WithLogger(log),
	)
	if err != nil {
		return fmt.Errorf("build execution engine: %w", err)
	}

	validator := planner.NewValidator(backend, log)
	validator.Enabled = cfg.IntelligentValidation
	planning, err := planner.NewService(backend, validator, log)
	if err != nil {
		return err
	}

	replanner, err := replan.NewController(backend, log, cfg.MaxReplanning)
	if err != nil {
		return err
	}
	replanner.AutoReplanning = cfg.AutoReplanning

	var store orchestrator.Store
	if !noHistory {
		s, err := history.NewStore(cfg.HistoryPath)
		if err != nil {
			// History is auxiliary; a broken database must not block the run.
			log.LogWarn(fmt.Sprintf("history disabled: %v", err))
		} else {
			defer s.Close()
			store = s
		}
	}

	orc, err := orchestrator.New(registry, planning, eng, reflection.NewEngine(), replanner, store, log)
	if err != nil {
		return err
	}

	start := time.Now()
	result, err := orc.Orchestrate(cmd.Context(), input)
	if err != nil {
		return err
	}

	log.LogRunSummary(*result)
	log.LogInfo(fmt.Sprintf("Finished in %s", time.Since(start).Round(time.Millisecond)))

	if !result.Success {
		return fmt.Errorf("orchestration did not fully succeed (see summary above)")
	}
	return nil
}

// loadConfigFromFlags loads the config file named by --config, falling back
// to .stagehand/config.yaml in the current directory.
func loadConfigFromFlags(cmd *cobra.Command) (*config.Config, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return config.LoadConfig(path)
	}
	return config.LoadConfigFromDir(".")
}

// applyOrchestrateFlags overlays CLI flags onto the loaded config.
func applyOrchestrateFlags(cmd *cobra.Command, cfg *config.Config) {
	if backend, _ := cmd.Flags().GetString("backend"); backend != "" {
		cfg.Planner.Backend = backend
	}
	if model, _ := cmd.Flags().GetString("model"); model != "" {
		cfg.Planner.Model = model
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.LogLevel = level
	}
	if maxReplanning, _ := cmd.Flags().GetInt("max-replanning"); maxReplanning >= 0 {
		cfg.MaxReplanning = maxReplanning
	}
	if noValidation, _ := cmd.Flags().GetBool("no-validation"); noValidation {
		cfg.IntelligentValidation = false
	}
	if noReplanning, _ := cmd.Flags().GetBool("no-replanning"); noReplanning {
		cfg.AutoReplanning = false
	}
}

// newPlannerBackend selects the planner implementation from config.
func newPlannerBackend(cfg *config.Config, log planner.Logger) (planner.Planner, error) {
	switch cfg.Planner.Backend {
	case config.PlannerOpenAI:
		return planner.NewOpenAIPlanner("", cfg.Planner.Model, log)
	case config.PlannerClaude:
		return planner.NewClaudePlanner(cfg.Planner.ClaudePath, cfg.Planner.Timeout, log), nil
	default:
		return nil, fmt.Errorf("unknown planner backend %q", cfg.Planner.Backend)
	}
}

// editorAccessor builds the editor context from the --file flag. The CLI has
// no live editor; a named file stands in for the "currently open" one.
func editorAccessor(cmd *cobra.Command) editor.Accessor {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return editor.NoEditor
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return &editor.StaticAccessor{Ctx: &editor.Context{FilePath: path}}
	}
	return &editor.StaticAccessor{Ctx: &editor.Context{FilePath: path, Content: string(content)}}
}

// runLogger is the full logging surface the orchestrate command fans out.
// logger.ConsoleLogger and logger.FileLogger both satisfy it.
type runLogger interface {
	LogTrace(message string)
	LogDebug(message string)
	LogInfo(message string)
	LogWarn(message string)
	LogError(message string)
	LogStepStart(index, total int, step models.PlanStep)
	LogStepResult(index int, result models.StepResult)
	LogRunSummary(result models.OrchestrationResult)
}

// multiLogger forwards every log call to all configured loggers.
type multiLogger struct {
	loggers []runLogger
}

func (ml *multiLogger) LogTrace(message string) {
	for _, l := range ml.loggers {
		l.LogTrace(message)
	}
}

func (ml *multiLogger) LogDebug(message string) {
	for _, l := range ml.loggers {
		l.LogDebug(message)
	}
}

func (ml *multiLogger) LogInfo(message string) {
	for _, l := range ml.loggers {
		l.LogInfo(message)
	}
}

func (ml *multiLogger) LogWarn(message string) {
	for _, l := range ml.loggers {
		l.LogWarn(message)
	}
}

func (ml *multiLogger) LogError(message string) {
	for _, l := range ml.loggers {
		l.LogError(message)
	}
}

func (ml *multiLogger) LogStepStart(index, total int, step models.PlanStep) {
	for _, l := range ml.loggers {
		l.LogStepStart(index, total, step)
	}
}

func (ml *multiLogger) LogStepResult(index int, result models.StepResult) {
	for _, l := range ml.loggers {
		l.LogStepResult(index, result)
	}
}

func (ml *multiLogger) LogRunSummary(result models.OrchestrationResult) {
	for _, l := range ml.loggers {
		l.LogRunSummary(result)
	}
}

// stepObserver renders engine lifecycle events through the run loggers.
// It tracks the current plan size for step numbering.
func stepObserver(log runLogger) engine.Observer {
	total := 0
	return engine.ObserverFunc(func(event engine.Event) {
		switch event.Type {
		case engine.EventPlanUpdate:
			if event.Plan != nil {
				total = len(event.Plan.Steps)
			}
		case engine.EventStepStart:
			log.LogStepStart(event.StepIndex, total, event.Step)
		case engine.EventStepSuccess, engine.EventStepError:
			if event.Result != nil {
				log.LogStepResult(event.StepIndex, *event.Result)
			}
		}
	})
}
