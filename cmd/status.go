package cmd

import (
	"context"
	"fmt"

	"github.com/auditpump/auditpump/internal/config"
	"github.com/auditpump/auditpump/internal/storage"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show persisted poller state",
	Long: `Inspect the durable state the poller resumes from: the last processed
event marker, the pagination cursor, and whether an auth token is cached.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		settings := config.Load(viper.GetViper())

		store := storage.NewBoltStore(&storage.BoltOptions{Path: settings.StatePath})
		if err := store.Open(); err != nil {
			return fmt.Errorf("failed to open state store: %w", err)
		}
		defer store.Close()

		ctx := context.Background()

		state, err := store.GetState(ctx)
		if err != nil {
			return fmt.Errorf("failed to read event state: %w", err)
		}
		token, err := store.GetToken(ctx)
		if err != nil {
			return fmt.Errorf("failed to read token: %w", err)
		}

		bold := color.New(color.Bold)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)

		bold.Println("auditpump state")
		fmt.Printf("  state file:       %s\n", settings.StatePath)

		if state.Resumable() {
			fmt.Printf("  last event id:    %s\n", state.EventID)
			fmt.Printf("  last event time:  %s\n", state.EventSavedTime)
			green.Println("  resumable:        yes")
		} else {
			yellow.Println("  resumable:        no (fresh start)")
		}

		if state.Cursor != "" {
			fmt.Printf("  cursor:           %s\n", state.Cursor)
		} else {
			fmt.Println("  cursor:           <none>")
		}

		if token != "" {
			green.Println("  auth token:       cached")
		} else {
			yellow.Println("  auth token:       none")
		}

		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
