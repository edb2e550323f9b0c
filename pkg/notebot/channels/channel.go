// Package channels defines the chat transport seen by the note bot. The
// Discord adapter implements Channel, MediaChannel and CommandChannel so the
// bot logic can be exercised against an in-memory fake.
package channels

import (
	"context"
	"errors"
	"time"
)

// MessageType identifies the kind of incoming event.
type MessageType string

const (
	MessageText     MessageType = "text"
	MessageReaction MessageType = "reaction"
)

// Channel defines the interface that every chat transport implements.
type Channel interface {
	// Name returns the channel identifier (e.g. "discord").
	Name() string

	// Connect establishes the connection to the messaging platform.
	Connect(ctx context.Context) error

	// Disconnect gracefully closes the connection.
	Disconnect() error

	// Send posts a message to the chat identified by to.
	Send(ctx context.Context, to string, message *OutgoingMessage) error

	// Receive returns a Go channel that emits incoming events.
	Receive() <-chan *IncomingMessage

	// IsConnected returns true if the channel is connected.
	IsConnected() bool

	// Health returns the channel health status.
	Health() HealthStatus
}

// MediaChannel extends Channel with file uploads.
type MediaChannel interface {
	Channel

	// SendMedia uploads a file attachment.
	SendMedia(ctx context.Context, to string, media *MediaMessage) error
}

// CommandChannel extends Channel with slash commands.
type CommandChannel interface {
	Channel

	// RegisterCommands replaces the registered command set. handler is
	// invoked for every invocation; its response is delivered to the caller.
	RegisterCommands(ctx context.Context, specs []CommandSpec, handler CommandHandler) error
}

// IncomingMessage represents a message or reaction received from a channel.
type IncomingMessage struct {
	// ID is the message identifier. For reactions it is the reacted message.
	ID string

	// Channel identifies the source channel (e.g. "discord").
	Channel string

	// GuildID is the server the message was posted in; empty for DMs.
	GuildID string

	// From is the sender identifier on the platform.
	From string

	// FromName is the sender display name.
	FromName string

	// IsBot is set when the author is an automated account.
	IsBot bool

	// ChatID is the text channel or DM identifier.
	ChatID string

	Type MessageType

	// Content is the raw text, mention placeholders included. For
	// reactions it is the content of the reacted message.
	Content string

	// Timestamp is the creation time reported by the platform.
	Timestamp time.Time

	// Mentions maps mentioned user ids to display names.
	Mentions map[string]string

	// ChannelMentions maps mentioned channel ids to channel names.
	ChannelMentions map[string]string

	// Reaction is set for MessageReaction events.
	Reaction *ReactionInfo
}

// ReactionInfo describes a reaction added to a message.
type ReactionInfo struct {
	Emoji     string
	MessageID string
	From      string
}

// OutgoingMessage represents a message to be sent through a channel.
type OutgoingMessage struct {
	Content string

	// ReplyTo contains the ID of the message to reply to.
	ReplyTo string

	Embed *Embed
}

// MediaMessage is a file to upload.
type MediaMessage struct {
	Data     []byte
	Filename string

	// Caption is posted with the file.
	Caption string

	ReplyTo string
}

// Embed is a rich card rendered by the chat client.
type Embed struct {
	Title       string
	Description string
	Color       int
	Fields      []EmbedField
	Footer      string
	Timestamp   time.Time
}

// EmbedField is one name/value row of an Embed.
type EmbedField struct {
	Name   string
	Value  string
	Inline bool
}

// CommandSpec declares a slash command.
type CommandSpec struct {
	Name        string
	Description string
	Options     []CommandOption
}

// CommandOption declares a string argument of a command.
type CommandOption struct {
	Name        string
	Description string
	Required    bool
}

// CommandRequest is one command invocation.
type CommandRequest struct {
	ID        string
	Name      string
	GuildID   string
	ChatID    string
	UserID    string
	UserName  string
	Options   map[string]string
	Timestamp time.Time
}

// Option returns the named argument or "".
func (r *CommandRequest) Option(name string) string {
	if r.Options == nil {
		return ""
	}
	return r.Options[name]
}

// CommandResponse is the answer to a CommandRequest.
type CommandResponse struct {
	Content string
	Embed   *Embed
	File    *MediaMessage

	// Ephemeral responses are visible to the caller only.
	Ephemeral bool
}

// CommandHandler answers command invocations.
type CommandHandler func(ctx context.Context, req *CommandRequest) *CommandResponse

// HealthStatus represents the health state of a channel.
type HealthStatus struct {
	Connected     bool
	LastMessageAt time.Time
	ErrorCount    int
}

// Errors.
var (
	ErrChannelDisconnected = errors.New("channel is not connected")
	ErrNoMediaData         = errors.New("media message has no data")
)
