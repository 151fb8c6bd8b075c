package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/rollcam/rollcam/internal/rollcam/registry"
	"github.com/rollcam/rollcam/internal/rollcam/store"
)

var machinesCmd = &cobra.Command{
	Use:   "machines",
	Short: "Print the machine registry",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		reg, err := registry.Load(cfg.MachinesFile)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "KEY\tID\tLABEL\tURL\tIMAGE URL")
		for _, m := range reg.Machines() {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", m.Key, m.ID, m.Label, m.URL, m.ImageURL)
		}
		return tw.Flush()
	},
}

var auditLimit int

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Print the most recent audit entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		entries, err := st.GetAuditLog(cmd.Context(), auditLimit)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TIME\tTRACE\tTRANSPORT\tSENDER\tINTENT\tMACHINE\tREPLY\tMS\tERROR")
		for _, e := range entries {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%d\t%s\n",
				e.Timestamp.Format(time.RFC3339), e.TraceID, e.Transport, e.Sender, e.Intent,
				e.Machine.String, e.ReplyKind, e.Duration.Milliseconds(), e.ErrorMessage.String)
		}
		return tw.Flush()
	},
}

var membersCmd = &cobra.Command{
	Use:   "members",
	Short: "Manage registered chat members",
}

var membersListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered members",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := st.ListMembers(cmd.Context())
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SENDER\tNAME\tTRANSPORT\tREGISTERED")
		for _, m := range list {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", m.Sender, m.Name, m.Transport, m.RegisteredAt.Format(time.RFC3339))
		}
		return tw.Flush()
	},
}

var membersRemoveCmd = &cobra.Command{
	Use:   "remove <sender>",
	Short: "Remove a member",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.DeleteMember(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "removed %s\n", args[0])
		return nil
	},
}

func init() {
	auditTailCmd.Flags().IntVarP(&auditLimit, "limit", "n", 20, "number of entries")
	auditCmd.AddCommand(auditTailCmd)
	membersCmd.AddCommand(membersListCmd, membersRemoveCmd)
}

func openStore() (*store.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(cfg.DatabasePath); err != nil {
		return nil, fmt.Errorf("database %s: %w", cfg.DatabasePath, err)
	}
	return store.New(cfg.DatabasePath)
}
