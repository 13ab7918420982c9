package bot

import (
	"fmt"
	"strings"
	"time"

	"relaybot/internal/registry"
	"relaybot/internal/stats"
)

// listChannelsCap bounds the /listchannels reply so it stays well under
// Telegram's message size limit.
const listChannelsCap = 25

const helpText = `Channel fan-out bot.

Commands:
/addchannel <id> [name] - register a destination channel
/removechannel <id> - deactivate a destination channel
/listchannels - show active destinations
/stats - lifetime forwarding counters
/test - send a test broadcast to all destinations
/setbatch <n> - set batch size (1-50)
/reload - reload the config file
/exportchannels - dump destinations as replayable /addchannel lines`

func formatStats(snap stats.Snapshot, active int) string {
	lastRun := "never"
	if !snap.LastRun.IsZero() {
		lastRun = snap.LastRun.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf(
		"Forwarding stats\n\n"+
			"Active channels: %d\n"+
			"Messages processed: %d\n"+
			"Total copies: %d\n"+
			"Delivered: %d\n"+
			"Failed: %d\n"+
			"Success rate: %.1f%%\n"+
			"Avg copies/message: %.1f\n"+
			"Poller restarts: %d\n"+
			"Last run: %s",
		active, snap.Messages, snap.TotalForwards, snap.Successes, snap.Failures,
		snap.SuccessRate(), snap.AvgPerMessage(), snap.Restarts, lastRun)
}

func formatChannels(all []registry.Channel) string {
	var active []registry.Channel
	for _, c := range all {
		if c.Active {
			active = append(active, c)
		}
	}
	if len(active) == 0 {
		return "No active channels. Add one with /addchannel <id> [name]."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Active channels (%d):\n", len(active))
	shown := active
	if len(shown) > listChannelsCap {
		shown = shown[:listChannelsCap]
	}
	for i, c := range shown {
		name := c.Name
		if name == "" {
			name = "(unnamed)"
		}
		fmt.Fprintf(&b, "%d. %s - %s (%d forwards)\n", i+1, c.ID, name, c.TotalForwards)
	}
	if rest := len(active) - len(shown); rest > 0 {
		fmt.Fprintf(&b, "... and %d more", rest)
	}
	return strings.TrimRight(b.String(), "\n")
}

// formatExport renders active channels as replayable /addchannel commands,
// so the reply doubles as a registry backup.
func formatExport(all []registry.Channel) string {
	var b strings.Builder
	for _, c := range all {
		if !c.Active {
			continue
		}
		if c.Name != "" {
			fmt.Fprintf(&b, "/addchannel %s %s\n", c.ID, c.Name)
		} else {
			fmt.Fprintf(&b, "/addchannel %s\n", c.ID)
		}
	}
	if b.Len() == 0 {
		return "No active channels to export."
	}
	return strings.TrimRight(b.String(), "\n")
}
