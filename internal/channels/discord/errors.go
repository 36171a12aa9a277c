package discord

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/gorilla/websocket"

	"github.com/haasonsaas/realmwatch/internal/channels"
)

// closeAuthenticationFailed is the gateway close code for an invalid token.
const closeAuthenticationFailed = 4004

// classify maps a discordgo failure onto a channels error code.
func classify(op string, err error) *channels.Error {
	var chErr *channels.Error
	if errors.As(err, &chErr) {
		return chErr
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		switch code := restErr.Response.StatusCode; {
		case code == http.StatusTooManyRequests:
			return channels.ErrRateLimit("rate limited by discord", err).WithOp(op)
		case code == http.StatusNotFound:
			return channels.ErrNotFound("discord resource not found", err).WithOp(op)
		case code == http.StatusUnauthorized || code == http.StatusForbidden:
			return channels.ErrAuthentication("discord rejected the request", err).WithOp(op)
		case code >= 500:
			return channels.ErrUnavailable("discord unavailable", err).WithOp(op)
		default:
			return channels.ErrInvalidInput("discord rejected the request", err).WithOp(op)
		}
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		if closeErr.Code == closeAuthenticationFailed {
			return channels.ErrAuthentication("discord rejected the bot token", err).WithOp(op)
		}
		return channels.ErrConnection("discord gateway closed", err).WithOp(op)
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return channels.ErrTimeout("discord request timed out", err).WithOp(op)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return channels.ErrTimeout("discord request timed out", err).WithOp(op)
		}
		return channels.ErrConnection("discord connection failed", err).WithOp(op)
	}

	if isRateLimitError(err) {
		return channels.ErrRateLimit("rate limited by discord", err).WithOp(op)
	}

	return channels.ErrInternal("discord request failed", err).WithOp(op)
}

// isRateLimitError catches rate limit failures that did not surface as a RESTError.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "Too Many Requests")
}
