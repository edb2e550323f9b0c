package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"

	"github.com/jholhewres/notebot/pkg/notebot/channels"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type sent struct {
	to    string
	msg   *channels.OutgoingMessage
	media *channels.MediaMessage
}

// fakeChannel records everything the bot sends.
type fakeChannel struct {
	mu        sync.Mutex
	out       []sent
	in        chan *channels.IncomingMessage
	mediaErr  error
	specs     []channels.CommandSpec
	handler   channels.CommandHandler
	connected bool
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{in: make(chan *channels.IncomingMessage, 16), connected: true}
}

func (f *fakeChannel) Name() string                              { return "fake" }
func (f *fakeChannel) Connect(context.Context) error             { return nil }
func (f *fakeChannel) Disconnect() error                         { return nil }
func (f *fakeChannel) IsConnected() bool                         { return f.connected }
func (f *fakeChannel) Health() channels.HealthStatus             { return channels.HealthStatus{Connected: f.connected} }
func (f *fakeChannel) Receive() <-chan *channels.IncomingMessage { return f.in }

func (f *fakeChannel) Send(_ context.Context, to string, msg *channels.OutgoingMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.out = append(f.out, sent{to: to, msg: msg})
	return nil
}

func (f *fakeChannel) SendMedia(_ context.Context, to string, media *channels.MediaMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mediaErr != nil {
		return f.mediaErr
	}
	f.out = append(f.out, sent{to: to, media: media})
	return nil
}

func (f *fakeChannel) RegisterCommands(_ context.Context, specs []channels.CommandSpec, h channels.CommandHandler) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(specs) == 0 {
		return errors.New("no commands")
	}
	f.specs, f.handler = specs, h
	return nil
}

func (f *fakeChannel) all() []sent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sent(nil), f.out...)
}

func (f *fakeChannel) texts() []string {
	var out []string
	for _, s := range f.all() {
		if s.msg != nil {
			out = append(out, s.msg.Content)
		}
	}
	return out
}

func (f *fakeChannel) media() []*channels.MediaMessage {
	var out []*channels.MediaMessage
	for _, s := range f.all() {
		if s.media != nil {
			out = append(out, s.media)
		}
	}
	return out
}

var (
	_ channels.MediaChannel   = (*fakeChannel)(nil)
	_ channels.CommandChannel = (*fakeChannel)(nil)
)
