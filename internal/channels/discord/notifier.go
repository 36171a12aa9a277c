package discord

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/haasonsaas/realmwatch/internal/channels"
	"github.com/haasonsaas/realmwatch/internal/retry"
)

// discordSession interface allows for mocking the Discord session in tests.
type discordSession interface {
	Open() error
	Close() error
	AddHandler(handler interface{}) func()
	UpdateStatusComplex(usd discordgo.UpdateStatusData) error
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	Channel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	GuildRoles(guildID string, options ...discordgo.RequestOption) ([]*discordgo.Role, error)
	GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error
}

// Config holds configuration for the Discord notifier.
type Config struct {
	// Token is the bot token from Discord Developer Portal (required)
	Token string

	// ChannelID is the announcement channel snowflake (required)
	ChannelID string

	// GuildID is optional; when empty it is taken from the channel
	GuildID string

	// MentionRole is the role mentioned in announcements; empty disables mentions
	MentionRole string

	// RequestTimeout bounds every REST call
	RequestTimeout time.Duration

	// ConnectAttempts is the number of gateway connection attempts at startup
	ConnectAttempts int

	// RateLimit configures outbound pacing (operations per second)
	RateLimit float64

	// RateBurst configures the burst capacity for rate limiting
	RateBurst int

	// RoleCacheTTL controls how long the guild role list is reused
	RoleCacheTTL time.Duration

	// Logger is an optional slog.Logger instance
	Logger *slog.Logger
}

// Validate checks if the configuration is valid and applies defaults.
func (c *Config) Validate() error {
	if c.Token == "" {
		return channels.ErrConfig("token is required", nil)
	}
	if c.ChannelID == "" {
		return channels.ErrConfig("channel id is required", nil)
	}

	if c.RequestTimeout <= 0 {
		c.RequestTimeout = 10 * time.Second
	}

	if c.ConnectAttempts <= 0 {
		c.ConnectAttempts = 5
	}

	if c.RateLimit == 0 {
		c.RateLimit = 5 // Conservative default for Discord
	}

	if c.RateBurst == 0 {
		c.RateBurst = 10
	}

	if c.RoleCacheTTL <= 0 {
		c.RoleCacheTTL = time.Minute
	}

	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	return nil
}

// Notifier is the Discord side of the monitor: it posts announcements,
// sets the bot's presence and manages the bot's own status roles.
type Notifier struct {
	config      Config
	session     discordSession
	state       *discordgo.State
	rateLimiter *channels.RateLimiter
	logger      *slog.Logger
	now         func() time.Time

	mu          sync.Mutex
	channelID   string
	guildID     string
	userID      string
	roles       []*discordgo.Role
	rolesExpiry time.Time

	// started covers the whole Start..Stop lifetime, including gaps where
	// discordgo is reconnecting and connected is false.
	started   bool
	connected bool
}

// NewNotifier creates a notifier. The session is created by Start.
func NewNotifier(config Config) (*Notifier, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &Notifier{
		config:      config,
		guildID:     config.GuildID,
		rateLimiter: channels.NewRateLimiter(config.RateLimit, config.RateBurst),
		logger:      config.Logger.With("component", "discord"),
		now:         time.Now,
	}, nil
}

// Start opens the gateway connection. Intents cover guild and member data
// so role membership can be read.
func (n *Notifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.started {
		n.mu.Unlock()
		return channels.ErrInternal("notifier already started", nil)
	}
	if n.session == nil {
		dg, err := discordgo.New("Bot " + n.config.Token)
		if err != nil {
			n.mu.Unlock()
			return channels.ErrAuthentication("failed to create Discord session", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMembers
		dg.Client.Timeout = n.config.RequestTimeout
		n.session = dg
		n.state = dg.State
	}
	session := n.session
	n.mu.Unlock()

	session.AddHandler(n.handleReady)
	session.AddHandler(n.handleDisconnect)
	session.AddHandler(n.handleResumed)

	n.logger.Info("connecting to discord", "max_attempts", n.config.ConnectAttempts)

	policy := retry.Connect
	policy.Attempts = n.config.ConnectAttempts
	result := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		err := session.Open()
		if err == nil {
			return nil
		}
		n.logger.Warn("discord connection failed", "attempt", attempt, "error", err)
		if classify("connect", err).Code == channels.ErrCodeAuthentication {
			return retry.Stop(err)
		}
		return err
	})
	if retry.IsStop(result.Err) {
		return channels.ErrAuthentication("discord rejected the bot token", result.Err).WithOp("connect")
	}
	if result.Err != nil {
		return channels.ErrConnection(fmt.Sprintf("failed to connect after %d attempts", result.Attempts), result.Err)
	}

	n.mu.Lock()
	n.started = true
	n.connected = true
	n.mu.Unlock()

	n.logger.Info("discord session open", "attempts", result.Attempts)
	return nil
}

// Stop closes the gateway connection.
func (n *Notifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.started || n.session == nil {
		return nil
	}
	n.started = false
	n.connected = false

	if err := n.session.Close(); err != nil {
		n.logger.Error("failed to close Discord session", "error", err)
		return channels.ErrConnection("failed to close Discord session", err)
	}
	n.logger.Info("discord session closed")
	return nil
}

// Connected reports whether the gateway session is currently up.
func (n *Notifier) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.connected
}

// ResolveChannel returns the announcement channel ID. The first successful
// lookup is cached; the local state cache is consulted before REST.
func (n *Notifier) ResolveChannel(ctx context.Context) (string, error) {
	n.mu.Lock()
	if n.channelID != "" {
		id := n.channelID
		n.mu.Unlock()
		return id, nil
	}
	n.mu.Unlock()

	if n.state != nil {
		if ch, err := n.state.Channel(n.config.ChannelID); err == nil && ch != nil {
			n.rememberChannel(ch)
			return ch.ID, nil
		}
	}

	lookup := retry.Lookup
	lookup.Retryable = channels.IsRetryable
	ch, result := retry.Value(ctx, lookup, func(ctx context.Context, attempt int) (*discordgo.Channel, error) {
		var ch *discordgo.Channel
		err := n.call(ctx, "resolve_channel", func(opts ...discordgo.RequestOption) error {
			var err error
			ch, err = n.session.Channel(n.config.ChannelID, opts...)
			return err
		})
		return ch, err
	})
	if result.Err != nil {
		return "", result.Err
	}
	if ch == nil {
		return "", channels.ErrNotFound("channel not found", nil).WithOp("resolve_channel")
	}

	n.rememberChannel(ch)
	return ch.ID, nil
}

func (n *Notifier) rememberChannel(ch *discordgo.Channel) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.channelID = ch.ID
	if n.guildID == "" {
		n.guildID = ch.GuildID
	}
}

// MentionRole returns the "<@&id>" mention for the configured mention role.
// ok is false when no mention role is configured or it does not exist.
func (n *Notifier) MentionRole(ctx context.Context) (string, bool, error) {
	if n.config.MentionRole == "" {
		return "", false, nil
	}
	role, err := n.roleByName(ctx, n.config.MentionRole, "mention_role")
	if err != nil {
		if channels.IsNotFound(err) {
			return "", false, nil
		}
		return "", false, err
	}
	return role.Mention(), true, nil
}

// SendAnnouncement posts text to channelID. Only role mentions are allowed
// to ping.
func (n *Notifier) SendAnnouncement(ctx context.Context, channelID, text string) error {
	msg := &discordgo.MessageSend{
		Content: text,
		AllowedMentions: &discordgo.MessageAllowedMentions{
			Parse: []discordgo.AllowedMentionType{discordgo.AllowedMentionTypeRoles},
		},
	}
	err := n.call(ctx, "send_announcement", func(opts ...discordgo.RequestOption) error {
		_, err := n.session.ChannelMessageSendComplex(channelID, msg, opts...)
		return err
	})
	if err != nil {
		return err
	}
	n.logger.Debug("announcement sent", "channel_id", channelID, "content_length", len(text))
	return nil
}

// SetPresence shows text as the bot's "Playing" activity.
func (n *Notifier) SetPresence(ctx context.Context, text string) error {
	if err := n.rateLimiter.Wait(ctx, "set_presence"); err != nil {
		return err
	}
	n.mu.Lock()
	session := n.session
	n.mu.Unlock()
	if session == nil {
		return channels.ErrUnavailable("session not initialized", nil).WithOp("set_presence")
	}

	err := session.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: string(discordgo.StatusOnline),
		Activities: []*discordgo.Activity{{
			Name: text,
			Type: discordgo.ActivityTypeGame,
		}},
	})
	if err != nil {
		// Presence goes over the gateway websocket, not REST.
		return channels.ErrConnection("failed to update presence", err).WithOp("set_presence")
	}
	return nil
}

// RoleMembership returns the names of the roles the bot's own member holds.
func (n *Notifier) RoleMembership(ctx context.Context) (map[string]bool, error) {
	guildID, userID, err := n.identity(ctx)
	if err != nil {
		return nil, err
	}

	var member *discordgo.Member
	err = n.call(ctx, "role_membership", func(opts ...discordgo.RequestOption) error {
		var err error
		member, err = n.session.GuildMember(guildID, userID, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	roles, err := n.guildRoles(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]string, len(roles))
	for _, r := range roles {
		byID[r.ID] = r.Name
	}

	held := make(map[string]bool, len(member.Roles))
	for _, id := range member.Roles {
		if name, ok := byID[id]; ok {
			held[name] = true
		}
	}
	return held, nil
}

// AddRole gives the bot the named role. A role missing from the guild is
// reported as a not-found error.
func (n *Notifier) AddRole(ctx context.Context, name string) error {
	return n.changeRole(ctx, name, "add_role", func(guildID, userID, roleID string, opts ...discordgo.RequestOption) error {
		return n.session.GuildMemberRoleAdd(guildID, userID, roleID, opts...)
	})
}

// RemoveRole takes the named role away from the bot.
func (n *Notifier) RemoveRole(ctx context.Context, name string) error {
	return n.changeRole(ctx, name, "remove_role", func(guildID, userID, roleID string, opts ...discordgo.RequestOption) error {
		return n.session.GuildMemberRoleRemove(guildID, userID, roleID, opts...)
	})
}

func (n *Notifier) changeRole(ctx context.Context, name, op string, apply func(guildID, userID, roleID string, opts ...discordgo.RequestOption) error) error {
	guildID, userID, err := n.identity(ctx)
	if err != nil {
		return err
	}
	role, err := n.roleByName(ctx, name, op)
	if err != nil {
		return err
	}

	err = n.call(ctx, op, func(opts ...discordgo.RequestOption) error {
		return apply(guildID, userID, role.ID, opts...)
	})
	if channels.IsNotFound(err) {
		// The cached role list may be stale.
		n.invalidateRoles()
	}
	return err
}

func (n *Notifier) roleByName(ctx context.Context, name, op string) (*discordgo.Role, error) {
	roles, err := n.guildRoles(ctx)
	if err != nil {
		return nil, err
	}
	for _, r := range roles {
		if r.Name == name {
			return r, nil
		}
	}
	return nil, channels.ErrNotFound(fmt.Sprintf("role %q not found in guild", name), nil).WithOp(op)
}

func (n *Notifier) guildRoles(ctx context.Context) ([]*discordgo.Role, error) {
	n.mu.Lock()
	if n.roles != nil && n.now().Before(n.rolesExpiry) {
		roles := n.roles
		n.mu.Unlock()
		return roles, nil
	}
	n.mu.Unlock()

	guildID, err := n.guild(ctx)
	if err != nil {
		return nil, err
	}

	var roles []*discordgo.Role
	err = n.call(ctx, "guild_roles", func(opts ...discordgo.RequestOption) error {
		var err error
		roles, err = n.session.GuildRoles(guildID, opts...)
		return err
	})
	if err != nil {
		return nil, err
	}

	n.mu.Lock()
	n.roles = roles
	n.rolesExpiry = n.now().Add(n.config.RoleCacheTTL)
	n.mu.Unlock()
	return roles, nil
}

func (n *Notifier) invalidateRoles() {
	n.mu.Lock()
	n.roles = nil
	n.mu.Unlock()
}

func (n *Notifier) guild(ctx context.Context) (string, error) {
	n.mu.Lock()
	guildID := n.guildID
	n.mu.Unlock()
	if guildID != "" {
		return guildID, nil
	}

	if _, err := n.ResolveChannel(ctx); err != nil {
		return "", err
	}

	n.mu.Lock()
	defer n.mu.Unlock()
	if n.guildID == "" {
		return "", channels.ErrConfig("announcement channel is not in a guild", nil)
	}
	return n.guildID, nil
}

// identity returns the guild and the bot's own user ID.
func (n *Notifier) identity(ctx context.Context) (string, string, error) {
	guildID, err := n.guild(ctx)
	if err != nil {
		return "", "", err
	}

	n.mu.Lock()
	userID := n.userID
	state := n.state
	n.mu.Unlock()
	if userID == "" && state != nil && state.User != nil {
		userID = state.User.ID
	}
	if userID == "" {
		var user *discordgo.User
		err := n.call(ctx, "current_user", func(opts ...discordgo.RequestOption) error {
			var err error
			user, err = n.session.User("@me", opts...)
			return err
		})
		if err != nil {
			return "", "", err
		}
		userID = user.ID
	}

	n.mu.Lock()
	n.userID = userID
	n.mu.Unlock()
	return guildID, userID, nil
}

// call runs one REST request with pacing, a deadline and error classification.
func (n *Notifier) call(ctx context.Context, op string, fn func(opts ...discordgo.RequestOption) error) error {
	callCtx, cancel := context.WithTimeout(ctx, n.config.RequestTimeout)
	defer cancel()

	if err := n.rateLimiter.Wait(callCtx, op); err != nil {
		return err
	}

	n.mu.Lock()
	session := n.session
	n.mu.Unlock()
	if session == nil {
		return channels.ErrUnavailable("session not initialized", nil).WithOp(op)
	}

	start := time.Now()
	err := fn(discordgo.WithContext(callCtx))
	if err != nil {
		classified := classify(op, err)
		n.logger.Debug("discord request failed",
			"op", op,
			"code", classified.Code,
			"latency_ms", time.Since(start).Milliseconds(),
			"error", err)
		return classified
	}
	return nil
}

// Event handlers

func (n *Notifier) handleReady(s *discordgo.Session, r *discordgo.Ready) {
	n.mu.Lock()
	n.connected = true
	if r.User != nil {
		n.userID = r.User.ID
	}
	n.mu.Unlock()

	username := ""
	if r.User != nil {
		username = r.User.Username
	}
	n.logger.Info("discord connection ready", "user", username, "guilds", len(r.Guilds))
}

func (n *Notifier) handleResumed(s *discordgo.Session, r *discordgo.Resumed) {
	n.mu.Lock()
	n.connected = true
	n.mu.Unlock()
	n.logger.Info("discord session resumed")
}

func (n *Notifier) handleDisconnect(s *discordgo.Session, d *discordgo.Disconnect) {
	n.mu.Lock()
	n.connected = false
	n.mu.Unlock()
	// discordgo reconnects on its own.
	n.logger.Warn("disconnected from discord")
}
