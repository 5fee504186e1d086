package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/user/stashbot/internal/state"
	"github.com/user/stashbot/internal/types"
)

func init() {
	rootCmd.AddCommand(categoryCmd, auditCmd)
	categoryCmd.AddCommand(categoryListCmd, categoryRefsCmd)
	auditCmd.AddCommand(auditTailCmd)

	categoryListCmd.Flags().String("owner", "", "owner id (required)")
	_ = categoryListCmd.MarkFlagRequired("owner")

	categoryRefsCmd.Flags().String("owner", "", "owner id (required)")
	categoryRefsCmd.Flags().String("id", "", "category id (required)")
	_ = categoryRefsCmd.MarkFlagRequired("owner")
	_ = categoryRefsCmd.MarkFlagRequired("id")

	auditTailCmd.Flags().String("owner", "", "owner id (required)")
	auditTailCmd.Flags().Int("limit", 50, "max entries to show")
	_ = auditTailCmd.MarkFlagRequired("owner")
}

func dataStore() *state.Store {
	cfg := loadConfig()
	return state.NewStore(filepath.Join(cfg.DataDir, "stash.json"))
}

var categoryCmd = &cobra.Command{
	Use:   "category",
	Short: "Inspect stored categories",
}

var categoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List an owner's categories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")

		store := dataStore()
		ctx := context.Background()
		cats, err := store.List(ctx, types.OwnerID(owner))
		if err != nil {
			return fmt.Errorf("list categories: %w", err)
		}

		if len(cats) == 0 {
			fmt.Println("No categories found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tITEMS\tCREATED")
		for _, cat := range cats {
			refs, err := store.ListReferences(ctx, types.OwnerID(owner), cat.ID)
			if err != nil {
				refs = nil
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
				cat.ID,
				cat.Name,
				len(refs),
				cat.CreatedAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var categoryRefsCmd = &cobra.Command{
	Use:   "refs",
	Short: "List the references filed under a category",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		id, _ := cmd.Flags().GetString("id")

		store := dataStore()
		refs, err := store.ListReferences(context.Background(), types.OwnerID(owner), types.CategoryID(id))
		if err != nil {
			return fmt.Errorf("list references: %w", err)
		}

		if len(refs) == 0 {
			fmt.Println("No references found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tCHAT\tMESSAGE\tKIND\tFILED")
		for _, ref := range refs {
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
				ref.ID,
				ref.ChatID,
				ref.MessageID,
				ref.Kind,
				ref.FiledAt.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Inspect the audit log",
}

var auditTailCmd = &cobra.Command{
	Use:   "tail",
	Short: "Show an owner's most recent audit entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		limit, _ := cmd.Flags().GetInt("limit")

		cfg := loadConfig()
		audit := state.NewAuditStore(cfg.DataDir)
		entries, err := audit.Tail(context.Background(), types.OwnerID(owner), limit)
		if err != nil {
			return fmt.Errorf("tail audit: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No audit entries found.")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "SEQ\tACTION\tCATEGORY\tREFERENCE\tDETAIL\tAT")
		for _, e := range entries {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%s\n",
				e.Seq,
				e.Action,
				e.CategoryID,
				e.ReferenceID,
				e.Detail,
				e.At.Format("2006-01-02 15:04:05"),
			)
		}
		return w.Flush()
	},
}
