package main

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatsCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show account and withdrawal totals",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			st, err := client.Stats(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Users:          %d\n", st.Accounts)
			fmt.Fprintf(out, "Withdraws:      %d\n", st.Withdrawals)
			fmt.Fprintf(out, "Pending:        %d\n", st.PendingWithdrawals)
			fmt.Fprintf(out, "Total balance:  %d\n", st.TotalBalance)
			return nil
		},
	}
}

func newApproveCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "approve WITHDRAWAL_ID",
		Short: "Approve a pending withdrawal request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid withdrawal id %q", args[0])
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			res, err := client.Approve(cmd.Context(), id)
			if err != nil {
				return err
			}
			if res.Message != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "Withdrawal %d: %s\n", id, res.Message)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Withdrawal %d approved\n", id)
			return nil
		},
	}
}

func newAddTaskCmd(opts *options) *cobra.Command {
	var (
		title  string
		reward int64
		link   string
	)
	cmd := &cobra.Command{
		Use:   "add-task",
		Short: "Add a task to the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			task, err := client.AddTask(cmd.Context(), title, reward, link)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Task %d added: %s (%d coins)\n", task.ID, task.Title, task.Reward)
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "task title")
	cmd.Flags().Int64Var(&reward, "reward", 0, "reward in coins")
	cmd.Flags().StringVar(&link, "link", "#", "task link")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}

func newExportCmd(opts *options) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:       "export accounts|withdrawals",
		Short:     "Download a CSV export",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"accounts", "users", "withdrawals", "withdraws"},
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("create %s: %w", output, err)
				}
				defer f.Close()
				out = f
			}
			return client.Export(cmd.Context(), args[0], out)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "write CSV to file instead of stdout")
	return cmd
}
