package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/koiibenvenutto/koii-server/internal/channels"
	"github.com/koiibenvenutto/koii-server/internal/config"
	"github.com/koiibenvenutto/koii-server/internal/mcptools"
	"github.com/koiibenvenutto/koii-server/internal/notion"
	"github.com/koiibenvenutto/koii-server/internal/replicate"
	"github.com/koiibenvenutto/koii-server/internal/server"
)

// version is set by the linker at build time.
var version = "dev"

var (
	configDir string
	verbose   bool

	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "koii-server",
	Short: "Template replication service for record-store workspaces",
	Long: `koii-server copies tagged template records into a task collection,
re-anchors their dates to a shared reference date, copies content blocks,
and rewires blocking/blocked-by links between the new copies.

It serves HTTP webhook endpoints for automation triggers and can expose
the same operations as MCP tools.`,
	PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
		zcfg := zap.NewProductionConfig()
		if verbose {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(_ *cobra.Command, _ []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server, plus the MCP server when an address is configured",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		runner, channelSvc, err := buildServices(cfg)
		if err != nil {
			return err
		}

		g, ctx := errgroup.WithContext(cmd.Context())
		g.Go(func() error {
			return server.New(runner, channelSvc, cfg, logger).Run(ctx, cfg.Addr)
		})
		if cfg.MCPAddr != "" {
			svc := mcptools.NewReplicationService(runner, channelSvc)
			g.Go(func() error {
				logger.Info("mcp server listening", zap.String("addr", cfg.MCPAddr))
				return mcptools.RunMCPServer(ctx, svc, cfg.MCPAddr)
			})
		}
		return g.Wait()
	},
}

var replicateCmd = &cobra.Command{
	Use:   "replicate [batches.json]",
	Short: "Run one replication pass from a JSON batch file and print the summary",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configDir)
		if err != nil {
			return err
		}
		runner, _, err := buildServices(cfg)
		if err != nil {
			return err
		}

		data, err := os.ReadFile(args[0])
		if err != nil {
			return err
		}
		var req replicate.Request
		if err := json.Unmarshal(data, &req); err != nil {
			return fmt.Errorf("invalid batch file: %w", err)
		}
		if len(req.Batches) == 0 {
			return fmt.Errorf("batch file names no batches")
		}

		summary := runner.Run(cmd.Context(), req)
		out, err := json.MarshalIndent(summary, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(out))
		return nil
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version and exit",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Println(version)
	},
}

func buildServices(cfg *config.Config) (*replicate.Runner, *channels.Service, error) {
	if cfg.Notion.Token == "" {
		return nil, nil, fmt.Errorf("NOTION_TOKEN is not set")
	}

	var opts []notion.ClientOption
	if cfg.Notion.BaseURL != "" {
		opts = append(opts, notion.WithBaseURL(cfg.Notion.BaseURL))
	}
	if cfg.Notion.Version != "" {
		opts = append(opts, notion.WithVersion(cfg.Notion.Version))
	}
	client := notion.NewHTTPClient(cfg.Notion.Token, opts...)

	runner := replicate.NewRunner(client, replicate.Config{
		TasksDB:                cfg.Databases.Tasks,
		TemplatesDB:            cfg.Databases.Templates,
		TemplateFilterProperty: cfg.Properties.TemplateFilter,
		EpicRelationProperty:   cfg.Properties.EpicRelation,
		DateProperty:           cfg.Properties.Date,
		BlockingProperty:       cfg.Properties.Blocking,
		BlockedByProperty:      cfg.Properties.BlockedBy,
	}, logger)

	channelSvc := channels.NewService(client, channels.Config{
		ChannelsDB:            cfg.Databases.Channels,
		TasksDB:               cfg.Databases.Tasks,
		ProjectProperty:       cfg.Properties.ChannelProject,
		ProjectsProperty:      cfg.Properties.StoryProjects,
		StoryRelationProperty: cfg.Properties.StoryRelation,
	}, logger)

	return runner, channelSvc, nil
}

func main() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", ".", "directory holding koii.yml")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.AddCommand(serveCmd, replicateCmd, versionCmd)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
