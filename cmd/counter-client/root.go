package main

import (
	"context"
	"fmt"
	"io"
	"text/tabwriter"

	"qms/counter-service/internal/config"
	"qms/counter-service/internal/models"
	"qms/counter-service/internal/syncer"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "counter-client",
	Short:        "Staff device for the order counter",
	SilenceUsage: true,
}

func init() {
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(nextCmd)
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(watchCmd)
}

type session struct {
	cfg        config.ClientConfig
	client     *syncer.Client
	reconciler *syncer.Reconciler
}

// openSession loads the local copy and reconciles it with the server. The
// server being unreachable is not an error.
func openSession(ctx context.Context) (*session, error) {
	cfg := config.LoadClient()
	client := syncer.NewClient(cfg.ServerURL, cfg.DeviceID, cfg.HTTPTimeout)
	reconciler := syncer.NewReconciler(syncer.OpenLocalStore(cfg.DataDir), client, syncer.Options{
		Debounce:    cfg.Debounce,
		PushTimeout: cfg.HTTPTimeout,
	})
	if err := reconciler.Start(ctx); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}
	return &session{cfg: cfg, client: client, reconciler: reconciler}, nil
}

func printOrders(w io.Writer, orders []models.OrderTicket) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKET\tSTATUS\tTOTAL\tCREATED\tCUSTOMER\tID")
	for _, order := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\t%s\n",
			order.Ticket,
			order.Status,
			order.Total,
			order.CreatedAt.Local().Format("2006-01-02 15:04"),
			order.CustomerName,
			order.ID,
		)
	}
	_ = tw.Flush()
}
