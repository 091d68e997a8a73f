// Package trigger matches incoming platform events against trigger nodes and
// seeds the execution variables.
package trigger

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/penguintechinc/waddlebot-sub014/pkg/models"
)

const platformAll = "all"

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// ParseCron parses a standard five-field cron expression.
//
//nolint:ireturn // cron.Schedule is the library's interface
func ParseCron(expression string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expression, err)
	}

	return schedule, nil
}

// Match reports whether event satisfies the trigger config.
func Match(cfg *models.TriggerConfig, event models.TriggerEvent) bool {
	if cfg.TriggerType != event.Type {
		return false
	}

	if !matchPlatform(cfg.Platform, event.Platform) {
		return false
	}

	switch cfg.TriggerType {
	case models.TriggerTypeCommand:
		command, _ := ParseCommand(event)

		return command != "" && command == NormalizeCommand(cfg.Command)

	case models.TriggerTypeMessage:
		if cfg.Contains == "" {
			return true
		}

		return strings.Contains(strings.ToLower(event.Message), strings.ToLower(cfg.Contains))

	case models.TriggerTypeCron:
		return matchCron(cfg.CronExpression, event.Time)

	case models.TriggerTypeEvent:
		return strings.EqualFold(cfg.EventName, event.EventName)

	default:
		return false
	}
}

// NormalizeCommand lower-cases a command and ensures the "!" prefix.
func NormalizeCommand(command string) string {
	command = strings.ToLower(strings.TrimSpace(command))
	if command == "" {
		return ""
	}

	if !strings.HasPrefix(command, "!") {
		command = "!" + command
	}

	return command
}

// ParseCommand returns the normalized command and its arguments, reading them
// from the message text when the event does not carry them.
func ParseCommand(event models.TriggerEvent) (string, []string) {
	if event.Command != "" {
		return NormalizeCommand(event.Command), event.Args
	}

	fields := strings.Fields(event.Message)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "!") {
		return "", nil
	}

	return NormalizeCommand(fields[0]), fields[1:]
}

// Variables extracts the initial execution variables from an event.
func Variables(event models.TriggerEvent) map[string]any {
	vars := map[string]any{
		"trigger_type": event.Type,
		"platform":     event.Platform,
		"community_id": event.CommunityID,
		"message":      event.Message,
		"user":         event.User,
		"user_id":      event.UserID,
		"channel_id":   event.ChannelID,
	}

	if command, args := ParseCommand(event); command != "" {
		if args == nil {
			args = []string{}
		}

		vars["command"] = command
		vars["args"] = args
		vars["args_text"] = strings.Join(args, " ")
	}

	if event.EventName != "" {
		vars["event_name"] = event.EventName
	}

	if event.Data != nil {
		vars["event"] = event.Data
	}

	if !event.Time.IsZero() {
		vars["time"] = event.Time.UTC().Format(time.RFC3339)
	}

	return vars
}

func matchPlatform(configured, actual string) bool {
	if configured == "" || strings.EqualFold(configured, platformAll) {
		return true
	}

	return strings.EqualFold(configured, actual)
}

func matchCron(expression string, at time.Time) bool {
	if at.IsZero() {
		return false
	}

	schedule, err := ParseCron(expression)
	if err != nil {
		return false
	}

	minute := at.Truncate(time.Minute)

	return schedule.Next(minute.Add(-time.Second)).Equal(minute)
}
