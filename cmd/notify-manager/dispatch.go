package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"shift-notify/internal/common/config"
	"shift-notify/internal/models"
	"shift-notify/internal/notify/reminder"
	"shift-notify/internal/notify/trigger"

	"github.com/spf13/cobra"
)

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Send a template to everyone in a week and wait for the result",
	RunE:  runDispatch,
}

var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Reminder maintenance commands",
}

var remindersTickCmd = &cobra.Command{
	Use:   "tick",
	Short: "Fire every due reminder once and exit",
	RunE:  runRemindersTick,
}

var (
	dispatchWeek     string
	dispatchTemplate int64
	dispatchChannel  string
)

func init() {
	dispatchCmd.Flags().StringVar(&dispatchWeek, "week", "", "Week code to notify")
	dispatchCmd.Flags().Int64Var(&dispatchTemplate, "template", 0, "Template id")
	dispatchCmd.Flags().StringVar(&dispatchChannel, "channel", "", "sms, email or both (default: template type)")
	_ = dispatchCmd.MarkFlagRequired("week")
	_ = dispatchCmd.MarkFlagRequired("template")

	remindersCmd.AddCommand(remindersTickCmd)
}

func runDispatch(cmd *cobra.Command, args []string) error {
	var channel models.Channel
	if dispatchChannel != "" {
		c, ok := models.ParseChannel(dispatchChannel)
		if !ok {
			return fmt.Errorf("unknown channel %q", dispatchChannel)
		}
		channel = c
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, 3)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	run, err := a.triggers.RunWeek(ctx, trigger.WeekRequest{
		WeekCode:   dispatchWeek,
		TemplateID: dispatchTemplate,
		Channel:    channel,
	})
	if run != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(run); encErr != nil {
			return encErr
		}
	}
	return err
}

func runRemindersTick(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, 3)
	if err != nil {
		return err
	}
	defer a.close(context.Background())

	s := reminder.New(a.store, a.engine, config.GetDuration(cfg.Reminders.Interval), a.log)
	fired := s.Tick(ctx)
	fmt.Fprintf(cmd.OutOrStdout(), "fired %d reminder(s)\n", fired)
	return nil
}
