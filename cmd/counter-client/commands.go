package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"qms/counter-service/internal/models"
	"qms/counter-service/internal/syncer"

	"github.com/spf13/cobra"
)

var addCmd = &cobra.Command{
	Use:     "add",
	Short:   "Take a new order and print its ticket",
	Example: `  counter-client add --item "Burger:2:10" --item "Juice:1:4.5:no ice" --name Ana --phone 5511988887777`,
	RunE:    runAdd,
}

var statusCmd = &cobra.Command{
	Use:   "status ORDER_ID STATUS",
	Short: "Move an order to recebido, em_preparo, pronto, entregue or cancelado",
	Args:  cobra.ExactArgs(2),
	RunE:  runStatus,
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show today's queue, newest first",
	RunE:  runList,
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show every order this device has seen",
	RunE:  runHistory,
}

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Show the ticket the next order will get",
	RunE:  runNext,
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push the local queue to the server now",
	RunE:  runSync,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the server and keep the local queue merged until interrupted",
	RunE:  runWatch,
}

func init() {
	addCmd.Flags().StringArray("item", nil, "item as name:quantity:unitPrice[:notes], repeatable")
	addCmd.Flags().String("name", "", "customer name")
	addCmd.Flags().String("customer-id", "", "customer id")
	addCmd.Flags().String("phone", "", "customer WhatsApp number")
	_ = addCmd.MarkFlagRequired("item")

	statusCmd.Flags().String("phone", "", "customer WhatsApp number, defaults to the one on the order")
	historyCmd.Flags().Bool("server", false, "read the server's archive instead of the local log")
}

func runAdd(cmd *cobra.Command, args []string) error {
	rawItems, _ := cmd.Flags().GetStringArray("item")
	name, _ := cmd.Flags().GetString("name")
	customerID, _ := cmd.Flags().GetString("customer-id")
	phone, _ := cmd.Flags().GetString("phone")

	items := make([]models.OrderItem, 0, len(rawItems))
	for _, raw := range rawItems {
		item, err := parseItem(raw)
		if err != nil {
			return err
		}
		items = append(items, item)
	}

	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.reconciler.Close()

	result, err := s.reconciler.AddOrder(ctx, syncer.NewOrder{
		Items:         items,
		CustomerID:    customerID,
		CustomerName:  name,
		CustomerPhone: phone,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "ticket %s total %.2f id %s\n", result.Order.Ticket, result.Order.Total, result.Order.ID)
	switch {
	case result.RemoteErr != nil:
		fmt.Fprintf(out, "saved locally, server unavailable: %v\n", result.RemoteErr)
	case result.Remote != nil:
		if result.Remote.Duplicate {
			fmt.Fprintln(out, "  server already had this order, nothing re-sent")
		}
		for _, channel := range result.Remote.Notifications.Results {
			state := "sent"
			if channel.Skipped {
				state = "already sent"
			} else if !channel.Sent {
				state = "failed: " + channel.Error
			}
			fmt.Fprintf(out, "  %s %s %s\n", channel.Channel, channel.Recipient, state)
		}
	}
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	phone, _ := cmd.Flags().GetString("phone")
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.reconciler.Close()

	order, err := s.reconciler.UpdateStatus(ctx, args[0], args[1], phone)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", order.Ticket, order.Status)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.reconciler.Close()
	printOrders(cmd.OutOrStdout(), s.reconciler.Orders())
	return nil
}

func runHistory(cmd *cobra.Command, args []string) error {
	fromServer, _ := cmd.Flags().GetBool("server")
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.reconciler.Close()

	var orders []models.OrderTicket
	if fromServer {
		orders, err = s.client.History(ctx)
	} else {
		orders, err = s.reconciler.History(ctx)
	}
	if err != nil {
		return err
	}
	printOrders(cmd.OutOrStdout(), orders)
	return nil
}

func runNext(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.reconciler.Close()
	fmt.Fprintln(cmd.OutOrStdout(), s.reconciler.NextTicket())
	return nil
}

func runSync(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.reconciler.Close()
	if err := s.reconciler.Push(ctx); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "synced %d orders\n", len(s.reconciler.Orders()))
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := openSession(ctx)
	if err != nil {
		return err
	}
	defer s.reconciler.Close()

	interval := s.cfg.PollInterval
	if interval <= 0 {
		interval = 5 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "watching %s every %s, next ticket %s\n", s.cfg.ServerURL, interval, s.reconciler.NextTicket())
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			refreshCtx, cancel := context.WithTimeout(ctx, s.cfg.HTTPTimeout)
			err := s.reconciler.Refresh(refreshCtx)
			cancel()
			if err != nil {
				log.Printf("watch refresh error: %v", err)
				continue
			}
			fmt.Fprintf(out, "%s queue=%d next=%s\n", time.Now().Format("15:04:05"), len(s.reconciler.Orders()), s.reconciler.NextTicket())
		}
	}
}
