package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/apiclient"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/auth"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/config"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/logging"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/metrics"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/models"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/push"
	"github.com/bizmatters/agent-builder/coverletter-orchestrator/internal/workflow"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and start an interactive session",
	Long:  "Log in to the gateway, open the push channel for analysis feedback and read studio commands from stdin.",
	RunE:  runStudio,
}

var (
	runEmail    string
	runPassword string
	runAPIURL   string
	runPushURL  string
)

func init() {
	runCmd.Flags().StringVar(&runEmail, "email", "", "Account email (overrides STUDIO_EMAIL)")
	runCmd.Flags().StringVar(&runPassword, "password", "", "Account password (overrides STUDIO_PASSWORD)")
	runCmd.Flags().StringVar(&runAPIURL, "api-url", "", "Gateway API base URL (overrides STUDIO_API_URL)")
	runCmd.Flags().StringVar(&runPushURL, "push-url", "", "Push channel URL (overrides STUDIO_PUSH_URL)")

	rootCmd.AddCommand(runCmd)
}

func runStudio(cmd *cobra.Command, _ []string) error {
	cfg, err := config.LoadClient()
	if err != nil {
		return err
	}
	applyRunFlags(cfg)
	if cfg.Email == "" || cfg.Password == "" {
		return fmt.Errorf("email and password are required (use --email/--password or STUDIO_EMAIL/STUDIO_PASSWORD)")
	}

	logger, err := logging.New(cfg.LogLevel, "console")
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := apiclient.NewClient(cfg.APIURL, cfg.Timeout, logger.Named("api"))
	login, err := client.Login(ctx, models.LoginRequest{Email: cfg.Email, Password: cfg.Password})
	if err != nil {
		return err
	}
	identity := auth.StaticIdentity{Subject: login.User.ID, Token: login.Token}
	logger.Info("logged in", zap.String("user_id", login.User.ID))

	workflowMetrics, err := metrics.NewWorkflowMetrics()
	if err != nil {
		return fmt.Errorf("failed to initialize metrics: %w", err)
	}
	queue := workflow.NewFeedbackQueue(cfg.FeedbackQueueSize, logger.Named("feedback"), workflowMetrics)

	sh := newShell(cmd.OutOrStdout())
	channel := push.NewChannel(cfg.PushURL, identity, push.Handlers{
		OnFeedback: func(fb models.AnalysisFeedback) { queue.Offer(fb) },
		OnNotification: func(n models.Notification) {
			sh.post(fmt.Sprintf("[notification] %s", n.Message))
		},
		OnError: func(err error) {
			logger.Warn("push channel error", zap.Error(err))
			sh.post(fmt.Sprintf("[push] %v", err))
		},
	}, logger.Named("push"))
	pushErr := channel.Connect(ctx)
	if pushErr != nil {
		logger.Warn("push channel unavailable", zap.Error(pushErr))
	}
	defer func() { _ = channel.Close() }()

	sh.ctrl = workflow.NewController(workflow.Config{
		Identity:  identity,
		Analyzer:  client,
		Jobs:      client,
		Documents: client,
		Notifier:  workflow.NotifierFunc(sh.notice),
		Queue:     queue,
		Metrics:   workflowMetrics,
		Logger:    logger.Named("workflow"),
	})

	fmt.Fprintf(sh.out, "welcome %s, type help for commands\n", login.User.Name)
	if pushErr != nil {
		sh.notice(workflow.Notice{
			Level:   workflow.NoticeError,
			Title:   "push channel unavailable",
			Message: fmt.Sprintf("analysis feedback will not arrive: %v", pushErr),
		})
	}
	return sh.loop(ctx, scanLines(cmd.InOrStdin()))
}

func applyRunFlags(cfg *config.ClientConfig) {
	if runEmail != "" {
		cfg.Email = runEmail
	}
	if runPassword != "" {
		cfg.Password = runPassword
	}
	if runAPIURL != "" {
		cfg.APIURL = runAPIURL
	}
	if runPushURL != "" {
		cfg.PushURL = runPushURL
	}
}
