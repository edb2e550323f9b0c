// Package discord implements the chat channel on top of discordgo.
//
// Features:
//   - Message and reaction events with member display names
//   - User and channel mentions resolved to names
//   - Guild and channel allowlists
//   - Guild slash commands answered with text, embeds or files
//   - File uploads for note exports
//   - Automatic reconnection via discordgo's gateway
package discord

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/jholhewres/notebot/pkg/notebot/channels"
)

// maxMessageLength is Discord's per-message character limit.
const maxMessageLength = 2000

// Config holds Discord channel configuration.
type Config struct {
	// Token is the Discord bot token.
	Token string `yaml:"token"`

	// GuildID is the server commands are registered in. Empty registers
	// global commands.
	GuildID string `yaml:"guild_id"`

	// AllowedGuilds restricts which guild (server) IDs produce events.
	// Empty means all guilds.
	AllowedGuilds []string `yaml:"allowed_guilds"`

	// AllowedChannels restricts which channel IDs produce events.
	// Empty means all channels.
	AllowedChannels []string `yaml:"allowed_channels"`
}

// Discord implements channels.Channel, channels.MediaChannel and
// channels.CommandChannel.
type Discord struct {
	cfg     Config
	logger  *slog.Logger
	session *discordgo.Session

	// messages carries incoming events to the bot.
	messages chan *channels.IncomingMessage

	connected  atomic.Bool
	lastMsg    atomic.Value // time.Time
	errorCount atomic.Int64

	mu       sync.RWMutex
	commands []channels.CommandSpec
	handler  channels.CommandHandler

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a new Discord channel instance.
func New(cfg Config, logger *slog.Logger) *Discord {
	if logger == nil {
		logger = slog.Default()
	}
	return &Discord{
		cfg:      cfg,
		logger:   logger.With("component", "discord"),
		messages: make(chan *channels.IncomingMessage, 256),
	}
}

// ---------- Channel Interface ----------

// Name returns "discord".
func (d *Discord) Name() string { return "discord" }

// Connect opens the Discord gateway WebSocket connection and registers any
// pending commands.
func (d *Discord) Connect(ctx context.Context) error {
	if d.cfg.Token == "" {
		return fmt.Errorf("discord: bot token is required")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	session, err := discordgo.New("Bot " + d.cfg.Token)
	if err != nil {
		return fmt.Errorf("discord: creating session: %w", err)
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsMessageContent |
		discordgo.IntentsGuildMessageReactions

	session.AddHandler(d.onMessageCreate)
	session.AddHandler(d.onReactionAdd)
	session.AddHandler(d.onInteractionCreate)

	if err := session.Open(); err != nil {
		return fmt.Errorf("discord: opening gateway: %w", err)
	}

	d.mu.Lock()
	d.session = session
	d.mu.Unlock()
	d.connected.Store(true)

	user := session.State.User
	d.logger.Info("discord: connected", "bot", user.Username, "id", user.ID)

	return d.syncCommands()
}

// Disconnect closes the Discord gateway connection.
func (d *Discord) Disconnect() error {
	if d.cancel != nil {
		d.cancel()
	}
	if s := d.getSession(); s != nil {
		s.Close()
	}
	d.connected.Store(false)
	d.logger.Info("discord: disconnected")
	return nil
}

// Send posts a text message, splitting it at the platform limit.
func (d *Discord) Send(ctx context.Context, to string, message *channels.OutgoingMessage) error {
	s := d.getSession()
	if s == nil {
		return channels.ErrChannelDisconnected
	}

	chunks := splitMessage(message.Content, maxMessageLength)
	for i, chunk := range chunks {
		msgSend := &discordgo.MessageSend{Content: chunk}
		if i == 0 && message.ReplyTo != "" {
			msgSend.Reference = &discordgo.MessageReference{MessageID: message.ReplyTo, ChannelID: to}
		}
		if i == len(chunks)-1 && message.Embed != nil {
			msgSend.Embeds = []*discordgo.MessageEmbed{toEmbed(message.Embed)}
		}
		if _, err := s.ChannelMessageSendComplex(to, msgSend); err != nil {
			d.errorCount.Add(1)
			return fmt.Errorf("discord: send: %w", err)
		}
	}
	return nil
}

// Receive returns the incoming events channel.
func (d *Discord) Receive() <-chan *channels.IncomingMessage {
	return d.messages
}

// IsConnected returns true if the bot is connected.
func (d *Discord) IsConnected() bool { return d.connected.Load() }

// Health returns the channel health status.
func (d *Discord) Health() channels.HealthStatus {
	var lastAt time.Time
	if v := d.lastMsg.Load(); v != nil {
		lastAt = v.(time.Time)
	}
	return channels.HealthStatus{
		Connected:     d.connected.Load(),
		LastMessageAt: lastAt,
		ErrorCount:    int(d.errorCount.Load()),
	}
}

// ---------- MediaChannel Interface ----------

// SendMedia uploads a file attachment.
func (d *Discord) SendMedia(ctx context.Context, to string, media *channels.MediaMessage) error {
	s := d.getSession()
	if s == nil {
		return channels.ErrChannelDisconnected
	}
	if len(media.Data) == 0 {
		return channels.ErrNoMediaData
	}

	msgSend := &discordgo.MessageSend{
		Content: media.Caption,
		Files:   []*discordgo.File{toFile(media)},
	}
	if media.ReplyTo != "" {
		msgSend.Reference = &discordgo.MessageReference{MessageID: media.ReplyTo, ChannelID: to}
	}
	if _, err := s.ChannelMessageSendComplex(to, msgSend); err != nil {
		d.errorCount.Add(1)
		return fmt.Errorf("discord: upload %s: %w", media.Filename, err)
	}
	return nil
}

// ---------- CommandChannel Interface ----------

// RegisterCommands stores the command set and handler. When already
// connected the set is pushed immediately, otherwise on Connect.
func (d *Discord) RegisterCommands(ctx context.Context, specs []channels.CommandSpec, handler channels.CommandHandler) error {
	d.mu.Lock()
	d.commands = specs
	d.handler = handler
	d.mu.Unlock()

	if d.getSession() == nil {
		return nil
	}
	return d.syncCommands()
}

func (d *Discord) syncCommands() error {
	d.mu.RLock()
	specs := d.commands
	s := d.session
	d.mu.RUnlock()
	if s == nil || len(specs) == 0 {
		return nil
	}

	cmds := make([]*discordgo.ApplicationCommand, 0, len(specs))
	for _, spec := range specs {
		cmds = append(cmds, toApplicationCommand(spec))
	}
	registered, err := s.ApplicationCommandBulkOverwrite(s.State.User.ID, d.cfg.GuildID, cmds)
	if err != nil {
		return fmt.Errorf("discord: registering commands: %w", err)
	}
	d.logger.Info("discord: commands registered", "count", len(registered), "guild", d.cfg.GuildID)
	return nil
}

// ---------- Event Handlers ----------

func (d *Discord) onMessageCreate(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || (s.State.User != nil && m.Author.ID == s.State.User.ID) {
		return
	}
	if !d.allowed(m.GuildID, m.ChannelID) {
		return
	}

	incoming := &channels.IncomingMessage{
		ID:        m.ID,
		Channel:   "discord",
		GuildID:   m.GuildID,
		From:      m.Author.ID,
		FromName:  displayName(m.Member, m.Author),
		IsBot:     m.Author.Bot,
		ChatID:    m.ChannelID,
		Type:      channels.MessageText,
		Content:   m.Content,
		Timestamp: m.Timestamp,
	}

	if len(m.Mentions) > 0 {
		incoming.Mentions = make(map[string]string, len(m.Mentions))
		for _, u := range m.Mentions {
			var member *discordgo.Member
			if m.GuildID != "" {
				member, _ = s.State.Member(m.GuildID, u.ID)
			}
			incoming.Mentions[u.ID] = displayName(member, u)
		}
	}
	for _, id := range channelMentionIDs(m.Content) {
		ch, err := s.State.Channel(id)
		if err != nil {
			continue
		}
		if incoming.ChannelMentions == nil {
			incoming.ChannelMentions = make(map[string]string)
		}
		incoming.ChannelMentions[id] = ch.Name
	}

	d.deliver(incoming)
}

func (d *Discord) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if s.State.User != nil && r.UserID == s.State.User.ID {
		return
	}
	if !d.allowed(r.GuildID, r.ChannelID) {
		return
	}

	msg, err := s.ChannelMessage(r.ChannelID, r.MessageID)
	if err != nil {
		d.errorCount.Add(1)
		d.logger.Warn("discord: fetching reacted message", "msg_id", r.MessageID, "error", err)
		return
	}

	incoming := &channels.IncomingMessage{
		ID:        r.MessageID,
		Channel:   "discord",
		GuildID:   r.GuildID,
		From:      r.UserID,
		ChatID:    r.ChannelID,
		Type:      channels.MessageReaction,
		Content:   msg.Content,
		Timestamp: time.Now(),
		Reaction: &channels.ReactionInfo{
			Emoji:     r.Emoji.Name,
			MessageID: r.MessageID,
			From:      r.UserID,
		},
	}
	if r.Member != nil && r.Member.User != nil {
		incoming.FromName = displayName(r.Member, r.Member.User)
		incoming.IsBot = r.Member.User.Bot
	}

	d.deliver(incoming)
}

func (d *Discord) onInteractionCreate(s *discordgo.Session, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		return
	}

	d.mu.RLock()
	handler := d.handler
	d.mu.RUnlock()
	if handler == nil {
		respondEphemeral(s, i, "This command is not available right now.")
		return
	}

	data := i.ApplicationCommandData()
	req := &channels.CommandRequest{
		ID:        i.ID,
		Name:      data.Name,
		GuildID:   i.GuildID,
		ChatID:    i.ChannelID,
		Options:   make(map[string]string, len(data.Options)),
		Timestamp: time.Now(),
	}
	if i.Member != nil && i.Member.User != nil {
		req.UserID = i.Member.User.ID
		req.UserName = displayName(i.Member, i.Member.User)
	} else if i.User != nil {
		req.UserID = i.User.ID
		req.UserName = displayName(nil, i.User)
	}
	for _, opt := range data.Options {
		if opt.Type == discordgo.ApplicationCommandOptionString {
			req.Options[opt.Name] = opt.StringValue()
		}
	}

	ctx := d.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	resp := handler(ctx, req)
	if resp == nil {
		resp = &channels.CommandResponse{Content: "Done.", Ephemeral: true}
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: toResponseData(resp),
	}); err != nil {
		d.errorCount.Add(1)
		d.logger.Warn("discord: failed to answer command", "command", data.Name, "error", err)
	}
}

// respondEphemeral sends a response visible only to the caller.
func respondEphemeral(s *discordgo.Session, i *discordgo.InteractionCreate, content string) {
	_ = s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
}

// ---------- Helpers ----------

func (d *Discord) getSession() *discordgo.Session {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.session
}

func (d *Discord) deliver(msg *channels.IncomingMessage) {
	d.lastMsg.Store(time.Now())
	d.errorCount.Store(0)

	select {
	case d.messages <- msg:
	default:
		d.logger.Warn("discord: message buffer full, dropping event", "msg_id", msg.ID, "type", msg.Type)
	}
}

// allowed applies the guild and channel allowlists. DMs pass the guild
// filter.
func (d *Discord) allowed(guildID, channelID string) bool {
	if len(d.cfg.AllowedGuilds) > 0 && guildID != "" && !slices.Contains(d.cfg.AllowedGuilds, guildID) {
		return false
	}
	if len(d.cfg.AllowedChannels) > 0 && !slices.Contains(d.cfg.AllowedChannels, channelID) {
		return false
	}
	return true
}

// displayName prefers the guild nickname, then the global display name,
// then the account name.
func displayName(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user == nil {
		return ""
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}

var channelMentionPattern = regexp.MustCompile(`<#(\d+)>`)

// channelMentionIDs returns the distinct channel ids referenced in content.
func channelMentionIDs(content string) []string {
	var ids []string
	for _, m := range channelMentionPattern.FindAllStringSubmatch(content, -1) {
		if !slices.Contains(ids, m[1]) {
			ids = append(ids, m[1])
		}
	}
	return ids
}

func toApplicationCommand(spec channels.CommandSpec) *discordgo.ApplicationCommand {
	cmd := &discordgo.ApplicationCommand{
		Name:        spec.Name,
		Description: spec.Description,
	}
	for _, opt := range spec.Options {
		cmd.Options = append(cmd.Options, &discordgo.ApplicationCommandOption{
			Type:        discordgo.ApplicationCommandOptionString,
			Name:        opt.Name,
			Description: opt.Description,
			Required:    opt.Required,
		})
	}
	return cmd
}

func toResponseData(resp *channels.CommandResponse) *discordgo.InteractionResponseData {
	data := &discordgo.InteractionResponseData{Content: resp.Content}
	if resp.Embed != nil {
		data.Embeds = []*discordgo.MessageEmbed{toEmbed(resp.Embed)}
	}
	if resp.File != nil {
		data.Files = []*discordgo.File{toFile(resp.File)}
		if data.Content == "" {
			data.Content = resp.File.Caption
		}
	}
	if resp.Ephemeral {
		data.Flags = discordgo.MessageFlagsEphemeral
	}
	return data
}

func toEmbed(e *channels.Embed) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       e.Title,
		Description: e.Description,
		Color:       e.Color,
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Inline,
		})
	}
	if e.Footer != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: e.Footer}
	}
	if !e.Timestamp.IsZero() {
		embed.Timestamp = e.Timestamp.Format(time.RFC3339)
	}
	return embed
}

func toFile(m *channels.MediaMessage) *discordgo.File {
	name := m.Filename
	if name == "" {
		name = "file"
	}
	return &discordgo.File{
		Name:        name,
		ContentType: "text/markdown",
		Reader:      bytes.NewReader(m.Data),
	}
}

// splitMessage splits text into chunks of at most maxLen characters,
// preferring newline boundaries in the second half of a chunk.
func splitMessage(text string, maxLen int) []string {
	runes := []rune(text)
	if len(runes) <= maxLen {
		return []string{text}
	}
	var chunks []string
	for len(runes) > 0 {
		if len(runes) <= maxLen {
			chunks = append(chunks, string(runes))
			break
		}
		cutAt := maxLen
		for i := maxLen - 1; i > maxLen/2; i-- {
			if runes[i] == '\n' {
				cutAt = i + 1
				break
			}
		}
		chunks = append(chunks, string(runes[:cutAt]))
		runes = runes[cutAt:]
	}
	return chunks
}

// Compile-time interface verification.
var (
	_ channels.Channel        = (*Discord)(nil)
	_ channels.MediaChannel   = (*Discord)(nil)
	_ channels.CommandChannel = (*Discord)(nil)
)
