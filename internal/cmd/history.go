package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/pmorten/stagehand/internal/history"
)

// NewHistoryCommand creates the history command group
func NewHistoryCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect past orchestration runs",
		Long:  `List and inspect orchestration runs recorded in the history database.`,
	}

	cmd.PersistentFlags().String("config", "", "Path to config file (default: .stagehand/config.yaml)")
	cmd.PersistentFlags().String("db", "", "Path to the history database (overrides config)")

	cmd.AddCommand(newHistoryListCommand())
	cmd.AddCommand(newHistoryShowCommand())

	return cmd
}

func newHistoryListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent orchestration runs",
		RunE:  runHistoryList,
	}
	cmd.Flags().Int("limit", 20, "Maximum number of runs to list (0 = all)")
	return cmd
}

func newHistoryShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show one orchestration run as JSON",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryShow,
	}
}

func openHistoryStore(cmd *cobra.Command) (*history.Store, error) {
	dbPath, _ := cmd.Flags().GetString("db")
	if dbPath == "" {
		cfg, err := loadConfigFromFlags(cmd)
		if err != nil {
			return nil, err
		}
		dbPath = cfg.HistoryPath
	}
	return history.NewStore(dbPath)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	limit, _ := cmd.Flags().GetInt("limit")
	summaries, err := store.List(cmd.Context(), limit)
	if err != nil {
		return err
	}
	if len(summaries) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No orchestration runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tTIME\tOK\tREPLANS\tCOST\tREQUEST")
	for _, s := range summaries {
		ok := "yes"
		if !s.Success {
			ok = "no"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t$%.4f\t%s\n",
			s.ID,
			s.Timestamp.Local().Format("2006-01-02 15:04"),
			ok,
			s.ReplanCount,
			s.CostUSD,
			truncateInput(s.Input, 60),
		)
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	store, err := openHistoryStore(cmd)
	if err != nil {
		return err
	}
	defer store.Close()

	record, err := store.Get(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(cmd.OutOrStdout())
	encoder.SetIndent("", "  ")
	return encoder.Encode(record)
}

func truncateInput(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
