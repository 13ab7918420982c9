package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"relaybot/internal/config"
	"relaybot/internal/forward"
	"relaybot/internal/transport"
	"relaybot/pkg/logx"
)

// parseCommand splits "/cmd@botname arg1 arg2" into a lowercase command name
// and its arguments. Non-command text returns an empty name.
func parseCommand(text string) (string, []string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", nil
	}
	fields := strings.Fields(text)
	name := strings.ToLower(fields[0][1:])
	// Group-style /cmd@bot addressing.
	if at := strings.IndexByte(name, '@'); at >= 0 {
		name = name[:at]
	}
	if name == "" {
		return "", nil
	}
	return name, fields[1:]
}

// handleCommand runs one admin command. Non-admin senders are ignored
// silently; an unset admin id disables the command surface entirely.
func (a *App) handleCommand(ctx context.Context, msg *transport.Message) {
	admin := a.admin.Load()
	if admin == 0 || msg.FromID != admin {
		return
	}
	name, args := parseCommand(msg.Text)
	if name == "" {
		return
	}

	a.log.Info("admin command", logx.String("command", name), logx.Int64("from", msg.FromID))

	var reply string
	switch name {
	case "start", "help":
		reply = helpText
	case "addchannel":
		reply = a.cmdAddChannel(ctx, args)
	case "removechannel":
		reply = a.cmdRemoveChannel(ctx, args)
	case "listchannels":
		reply = a.cmdListChannels(ctx)
	case "stats":
		reply = a.cmdStats(ctx)
	case "test":
		reply = a.cmdTest(ctx)
	case "setbatch":
		reply = a.cmdSetBatch(args)
	case "reload":
		reply = a.cmdReload()
	case "exportchannels":
		reply = a.cmdExport(ctx)
	default:
		reply = "Unknown command. Try /start."
	}

	if reply == "" {
		return
	}
	if err := a.replier.Reply(ctx, msg.ChatID, reply); err != nil {
		a.log.Warn("command reply failed", logx.String("command", name), logx.Err(err))
	}
}

func (a *App) cmdAddChannel(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /addchannel <id> [name]"
	}
	id := strings.TrimSpace(args[0])
	if err := config.ValidateChannelID(id); err != nil {
		return fmt.Sprintf("Invalid channel id: %v", err)
	}
	name := strings.Join(args[1:], " ")
	if err := a.reg.Add(ctx, id, name); err != nil {
		return fmt.Sprintf("Failed to add channel: %v", err)
	}
	return fmt.Sprintf("Channel %s added.", id)
}

func (a *App) cmdRemoveChannel(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /removechannel <id>"
	}
	id := strings.TrimSpace(args[0])
	ok, err := a.reg.Deactivate(ctx, id)
	if err != nil {
		return fmt.Sprintf("Failed to remove channel: %v", err)
	}
	if !ok {
		return fmt.Sprintf("Channel %s is not registered.", id)
	}
	return fmt.Sprintf("Channel %s removed.", id)
}

func (a *App) cmdListChannels(ctx context.Context) string {
	all, err := a.reg.All(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to list channels: %v", err)
	}
	return formatChannels(all)
}

func (a *App) cmdStats(ctx context.Context) string {
	active, err := a.reg.CountActive(ctx)
	if err != nil {
		a.log.Warn("active count unavailable", logx.Err(err))
	}
	return formatStats(a.running.Snapshot(), active)
}

// cmdTest fans a synthetic text message out through the full pipeline, so
// the admin can verify delivery without posting to the source channel.
func (a *App) cmdTest(ctx context.Context) string {
	sum := a.runForward(ctx, &transport.Message{Text: "Test broadcast. If you can read this, forwarding works."})
	if sum.Destinations == 0 {
		return "No active channels to test against."
	}
	return fmt.Sprintf("Test done: %d/%d delivered in %.2fs.",
		sum.Delivered, sum.Destinations, sum.Duration.Seconds())
}

func (a *App) cmdSetBatch(args []string) string {
	if len(args) != 1 {
		return "Usage: /setbatch <n>"
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < forward.MinBatchSize || n > forward.MaxBatchSize {
		return fmt.Sprintf("Batch size must be an integer between %d and %d.",
			forward.MinBatchSize, forward.MaxBatchSize)
	}
	return fmt.Sprintf("Batch size set to %d.", a.sched.SetBatchSize(n))
}

func (a *App) cmdReload() string {
	cfg, err := a.cfgMgr.Load()
	if err != nil {
		return fmt.Sprintf("Reload failed, keeping current config: %v", err)
	}
	a.applyConfig(cfg)
	return "Config reloaded."
}

func (a *App) cmdExport(ctx context.Context) string {
	all, err := a.reg.All(ctx)
	if err != nil {
		return fmt.Sprintf("Failed to export channels: %v", err)
	}
	return formatExport(all)
}
