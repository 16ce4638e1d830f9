// File: cmd/reports.go
package cmd

import (
	"errors"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/cobra"

	"github.com/xkilldash9x/a11yscan/api/schemas"
	"github.com/xkilldash9x/a11yscan/internal/observability"
	"github.com/xkilldash9x/a11yscan/internal/service"
	"github.com/xkilldash9x/a11yscan/internal/store"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func newReportsCmd(factory service.ComponentFactory) *cobra.Command {
	reportsCmd := &cobra.Command{
		Use:   "reports",
		Short: "Manages stored reports",
	}
	reportsCmd.AddCommand(newReportsListCmd(factory), newReportsDeleteCmd(factory))
	return reportsCmd
}

func newReportsListCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Prints every stored report, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			comps, err := factory.Create(ctx, cfg, service.Needs{Store: service.StoreRequired}, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to report store: %w", err)
			}
			defer comps.Shutdown()

			reports, err := comps.Store.List(ctx)
			if err != nil {
				return fmt.Errorf("failed to list reports: %w", err)
			}
			return printReports(cmd.OutOrStdout(), reports)
		},
	}
}

func newReportsDeleteCmd(factory service.ComponentFactory) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Deletes a stored report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}
			logger := observability.GetLogger()

			comps, err := factory.Create(ctx, cfg, service.Needs{Store: service.StoreRequired}, logger)
			if err != nil {
				return fmt.Errorf("failed to connect to report store: %w", err)
			}
			defer comps.Shutdown()

			id := args[0]
			if err := comps.Store.Delete(ctx, id); err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("report %s not found", id)
				}
				return fmt.Errorf("failed to delete report %s: %w", id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Report %s deleted.\n", id)
			return nil
		},
	}
}

func printReports(w io.Writer, reports []schemas.StoredReport) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(reports); err != nil {
		return fmt.Errorf("failed to encode reports: %w", err)
	}
	return nil
}
