package monitor

import (
	"context"
	"log/slog"

	"github.com/haasonsaas/realmwatch/internal/channels"
	"github.com/haasonsaas/realmwatch/internal/status"
)

// reconcileStartup handles the first verdict after start. If the bot already
// holds exactly the role for the observed state, the previous process has
// announced it and this is only a confirmation.
func (l *Loop) reconcileStartup(ctx context.Context, logger *slog.Logger, current status.Playability) (transition, announced bool) {
	held, err := l.roleMembership(ctx)
	if err != nil {
		logger.Warn("could not read role membership at startup", "error", err)
		return true, l.transition(ctx, logger, status.Unknown, current, nil)
	}

	desired := l.config.Messages.Role(current)
	opposite := l.config.Messages.Role(current.Opposite())
	if !held[desired] || held[opposite] {
		return true, l.transition(ctx, logger, status.Unknown, current, held)
	}

	logger.Info("state confirmed from existing role", "playable", current.String(), "role", desired)
	l.store.RecordPlayable(current)
	l.store.RecordRole(current, desired)
	l.syncPresence(ctx, logger, current)
	return false, false
}

// transition applies the side effects of a state change in fixed order:
// announcement, presence, role. held is a membership read to reuse, or nil.
// The new state is recorded once the announcement has been attempted, so it
// is sent at most once per transition, and before presence or role are
// recorded for it.
func (l *Loop) transition(ctx context.Context, logger *slog.Logger, from, to status.Playability, held map[string]bool) bool {
	logger.Info("playability changed", "from", from.String(), "to", to.String())
	l.metrics.RecordTransition(from.String(), to.String())
	l.roleMissing = status.Unknown
	l.staleRole = status.Unknown

	announced := l.announce(ctx, logger, to)
	if ctx.Err() != nil {
		return announced
	}
	l.store.RecordPlayable(to)

	l.syncPresence(ctx, logger, to)
	if ctx.Err() != nil {
		return announced
	}
	l.syncRoles(ctx, logger, to, held)
	return announced
}

// repairDrift retries only the side effects that have not been confirmed for
// the current state. With nothing pending it makes no calls.
func (l *Loop) repairDrift(ctx context.Context, logger *slog.Logger, current status.Playability) {
	if !l.store.PresenceCurrent(current, l.config.Messages.Presence(current)) {
		logger.Debug("retrying presence", "playable", current.String())
		l.syncPresence(ctx, logger, current)
	}
	pendingAdd := l.roleMissing != current && !l.store.RoleCurrent(current, l.config.Messages.Role(current))
	pendingRemove := l.staleRole == current
	if pendingAdd || pendingRemove {
		logger.Debug("retrying role", "playable", current.String(), "add", pendingAdd, "remove", pendingRemove)
		l.syncRoles(ctx, logger, current, nil)
	}
}

func (l *Loop) announce(ctx context.Context, logger *slog.Logger, p status.Playability) bool {
	var channelID string
	err := l.chat(ctx, "resolve_channel", func(ctx context.Context) error {
		var err error
		channelID, err = l.notifier.ResolveChannel(ctx)
		return err
	})
	if err != nil {
		logger.Warn("announcement channel unavailable, skipping announcement", "error", err)
		return false
	}

	var mention string
	var ok bool
	err = l.chat(ctx, "mention_role", func(ctx context.Context) error {
		var err error
		mention, ok, err = l.notifier.MentionRole(ctx)
		return err
	})
	if err != nil {
		logger.Warn("mention role lookup failed, announcing without mention", "error", err)
	}
	if err != nil || !ok {
		mention = ""
	}

	text := l.config.Messages.Announcement(p, mention, l.config.Now())
	err = l.chat(ctx, "send_announcement", func(ctx context.Context) error {
		return l.notifier.SendAnnouncement(ctx, channelID, text)
	})
	if err != nil {
		logger.Error("failed to send announcement", "channel_id", channelID, "error", err)
		return false
	}

	logger.Info("announcement sent", "channel_id", channelID, "playable", p.String(), "mention", ok)
	return true
}

func (l *Loop) syncPresence(ctx context.Context, logger *slog.Logger, p status.Playability) {
	text := l.config.Messages.Presence(p)
	if l.store.PresenceCurrent(p, text) {
		return
	}

	err := l.chat(ctx, "set_presence", func(ctx context.Context) error {
		return l.notifier.SetPresence(ctx, text)
	})
	if err != nil {
		logger.Warn("failed to update presence", "presence", text, "error", err)
		return
	}
	l.store.RecordPresence(p, text)
}

// syncRoles makes the bot hold the role for p and not the opposite one.
// Add and remove are independent; a role missing from the guild is skipped.
// A held desired role is recorded even if the removal failed; the removal
// is then left pending for drift repair.
func (l *Loop) syncRoles(ctx context.Context, logger *slog.Logger, p status.Playability, held map[string]bool) {
	if held == nil {
		var err error
		held, err = l.roleMembership(ctx)
		if err != nil {
			logger.Warn("failed to read role membership", "error", err)
			return
		}
	}

	desired := l.config.Messages.Role(p)
	opposite := l.config.Messages.Role(p.Opposite())

	holdsDesired := held[desired]
	if !holdsDesired {
		err := l.chat(ctx, "add_role", func(ctx context.Context) error {
			return l.notifier.AddRole(ctx, desired)
		})
		switch {
		case err == nil:
			holdsDesired = true
			logger.Info("role added", "role", desired)
		case channels.IsNotFound(err):
			l.roleMissing = p
			logger.Info("role not found in guild, skipping", "role", desired)
		default:
			logger.Warn("failed to add role", "role", desired, "error", err)
		}
	}

	l.staleRole = status.Unknown
	if held[opposite] {
		err := l.chat(ctx, "remove_role", func(ctx context.Context) error {
			return l.notifier.RemoveRole(ctx, opposite)
		})
		switch {
		case err == nil:
			logger.Info("role removed", "role", opposite)
		case channels.IsNotFound(err):
			logger.Info("role not found in guild, skipping", "role", opposite)
		default:
			l.staleRole = p
			logger.Warn("failed to remove role", "role", opposite, "error", err)
		}
	}

	if holdsDesired {
		l.store.RecordRole(p, desired)
	}
}

func (l *Loop) roleMembership(ctx context.Context) (map[string]bool, error) {
	var held map[string]bool
	err := l.chat(ctx, "role_membership", func(ctx context.Context) error {
		var err error
		held, err = l.notifier.RoleMembership(ctx)
		return err
	})
	return held, err
}

// chat wraps one notifier call in a span and records its outcome.
func (l *Loop) chat(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := l.tracer.TraceChatCall(ctx, op)
	defer span.End()

	err := fn(ctx)
	if err != nil {
		l.tracer.Fail(span, err)
	}
	l.metrics.RecordChatCall(op, string(channels.GetErrorCode(err)), err)
	return err
}
