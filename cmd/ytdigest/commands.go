package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kalambet/ytdigest/internal/bot"
)

// --- channel ---

var channelCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage watched channels",
}

var channelAddCmd = &cobra.Command{
	Use:   "add <url>",
	Short: "Start watching a channel",
	Long: `Start watching a channel.

Accepted URL forms:
  https://www.youtube.com/channel/UCxxxx
  https://www.youtube.com/@handle
  https://www.youtube.com/c/CustomName
  https://www.youtube.com/user/username`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.post("/channels", map[string]string{"url": args[0]})
		if err != nil {
			return err
		}
		var ch struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeJSON(resp, &ch); err != nil {
			return err
		}

		printSuccess("Watching %q (%s)", ch.Name, ch.ID)
		return nil
	},
}

var channelRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Stop watching a channel",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.delete("/channels/" + args[0])
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Channel %s removed", args[0])
		return nil
	},
}

var channelListCmd = &cobra.Command{
	Use:   "list",
	Short: "List watched channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/channels")
		if err != nil {
			return err
		}
		var channels []struct {
			ID   string `json:"id"`
			Name string `json:"name"`
		}
		if err := decodeJSON(resp, &channels); err != nil {
			return err
		}

		if len(channels) == 0 {
			printWarning("No channels watched yet")
			return nil
		}
		for _, ch := range channels {
			fmt.Printf("  %s  %s\n", colorize(colorBold, ch.ID), ch.Name)
		}
		return nil
	},
}

func init() {
	channelCmd.AddCommand(channelAddCmd)
	channelCmd.AddCommand(channelRemoveCmd)
	channelCmd.AddCommand(channelListCmd)
}

// --- run ---

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Trigger a digest run immediately",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Running digest...")
		resp, err := client.post("/run", nil)
		if err != nil {
			return err
		}
		var report struct {
			Delivered           int `json:"delivered"`
			SkippedNoTranscript int `json:"skipped_no_transcript"`
			Failed              int `json:"failed"`
			ChannelErrors       int `json:"channel_errors"`
			ChannelFailures     []struct {
				ChannelID   string `json:"channel_id"`
				ChannelName string `json:"channel_name"`
				Error       string `json:"error"`
			} `json:"channel_failures"`
			Fatal string `json:"fatal"`
		}
		if err := decodeJSON(resp, &report); err != nil {
			return err
		}

		if report.Fatal != "" {
			printError("Run aborted: %s", report.Fatal)
		} else {
			printSuccess("Run finished")
		}
		printStatus("Delivered", "%d", report.Delivered)
		printStatus("Skipped (no transcript)", "%d", report.SkippedNoTranscript)
		printStatus("Failed", "%d", report.Failed)
		printStatus("Channel errors", "%d", report.ChannelErrors)
		for _, cf := range report.ChannelFailures {
			printWarning("%s (%s): %s", cf.ChannelName, cf.ChannelID, cf.Error)
		}
		return nil
	},
}

// --- summarize ---

var summarizeCmd = &cobra.Command{
	Use:   "summarize <video url>",
	Short: "Summarize a single video now",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		printStep("Summarizing %s...", args[0])
		resp, err := client.post("/summarize", map[string]string{"url": args[0]})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}

		printSuccess("Summary delivered")
		return nil
	},
}

// --- pause / resume / schedule ---

var pauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Pause the daily schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post("/pause", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Daily schedule paused")
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume the daily schedule",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.post("/resume", nil)
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Daily schedule resumed")
		return nil
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "set-time <HH:MM>",
	Short: "Set the daily trigger time",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		hour, minute, err := bot.ParseClock(args[0])
		if err != nil {
			return fmt.Errorf("expected HH:MM, e.g. 09:30: %w", err)
		}

		client, err := newAPIClient()
		if err != nil {
			return err
		}
		resp, err := client.put("/schedule", map[string]int{"hour": hour, "minute": minute})
		if err != nil {
			return err
		}
		var result map[string]string
		if err := decodeJSON(resp, &result); err != nil {
			return err
		}
		printSuccess("Daily digest now runs at %02d:%02d", hour, minute)
		return nil
	},
}

// --- status ---

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show service status",
	RunE: func(cmd *cobra.Command, args []string) error {
		client, err := newAPIClient()
		if err != nil {
			return err
		}

		resp, err := client.get("/status")
		if err != nil {
			printStatus("Server", "stopped")
			return nil
		}
		var status struct {
			TriggerTime    string         `json:"trigger_time"`
			Paused         bool           `json:"paused"`
			NextRunAt      string         `json:"next_run_at"`
			LastRunAt      string         `json:"last_run_at"`
			LastRunOutcome string         `json:"last_run_outcome"`
			Channels       int            `json:"channels"`
			Videos         map[string]int `json:"videos"`
		}
		if err := decodeJSON(resp, &status); err != nil {
			return err
		}

		printStatus("Server", "running")
		if status.Paused {
			printStatus("Schedule", "daily at %s (paused)", status.TriggerTime)
		} else {
			printStatus("Schedule", "daily at %s, next run %s", status.TriggerTime, status.NextRunAt)
		}
		if status.LastRunAt != "" {
			printStatus("Last run", "%s — %s", status.LastRunAt, status.LastRunOutcome)
		}
		printStatus("Channels", "%d", status.Channels)
		printStatus("Delivered", "%d", status.Videos["delivered"])
		printStatus("Failed", "%d", status.Videos["failed"])
		return nil
	},
}
