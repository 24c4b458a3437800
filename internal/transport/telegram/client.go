// Package telegram implements the relay and quiz client surfaces on top of
// gopkg.in/telebot.v4. All platform error shapes are mapped to the relay
// taxonomy here so nothing above this package knows about Bot API details.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	"tgrelay/internal/quiz"
	"tgrelay/internal/relay"
	"tgrelay/pkg/logx"
)

// Client wraps one authenticated bot session. It is not safe for concurrent
// use, which matches the strictly sequential dispatch model.
type Client struct {
	bot *tele.Bot
	log logx.Logger
}

// New connects and validates the token (getMe happens inside NewBot).
func New(token string, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{bot: b, log: log}, nil
}

// Me describes the authenticated account.
func (c *Client) Me() string {
	if c.bot.Me == nil {
		return ""
	}
	return fmt.Sprintf("%s (id=%d)", c.bot.Me.Username, c.bot.Me.ID)
}

// Resolve accepts a numeric chat id or a @username reference.
func (c *Client) Resolve(ctx context.Context, ref string) (relay.Endpoint, error) {
	if err := ctx.Err(); err != nil {
		return relay.Endpoint{}, err
	}
	ref = strings.TrimSpace(ref)

	var (
		chat *tele.Chat
		err  error
	)
	if id, perr := strconv.ParseInt(ref, 10, 64); perr == nil {
		chat, err = c.bot.ChatByID(id)
	} else {
		chat, err = c.bot.ChatByUsername(ref)
	}
	if err != nil {
		return relay.Endpoint{}, fmt.Errorf("resolve %q: %w", ref, mapError(err))
	}

	title := chat.Title
	if title == "" {
		title = chat.Username
	}
	return relay.Endpoint{ID: chat.ID, Title: title, Ref: ref}, nil
}

// Fetch returns one handle per requested id. The Bot API cannot inspect a
// message before copying it, so every slot is a Kind-unknown handle; missing
// items surface at Relay time as ErrNotFound and filters are expected to
// pass unknown kinds through.
func (c *Client) Fetch(ctx context.Context, _ relay.Endpoint, ids []int64) ([]*relay.Item, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out := make([]*relay.Item, len(ids))
	for i, id := range ids {
		out[i] = &relay.Item{ID: id, Kind: relay.ItemUnknown}
	}
	return out, nil
}

// Relay copies one message from src to dst via copyMessage, which keeps the
// content but drops the forward provenance header.
func (c *Client) Relay(ctx context.Context, src relay.Endpoint, it *relay.Item, dst relay.Endpoint) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stored := tele.StoredMessage{
		MessageID: strconv.FormatInt(it.ID, 10),
		ChatID:    src.ID,
	}
	_, err := c.bot.Copy(&tele.Chat{ID: dst.ID}, stored)
	return mapError(err)
}

// SendText sends literal text with HTML parse mode and no link preview.
func (c *Client) SendText(ctx context.Context, dst relay.Endpoint, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := c.bot.Send(&tele.Chat{ID: dst.ID}, text, &tele.SendOptions{
		ParseMode:             tele.ModeHTML,
		DisableWebPagePreview: true,
	})
	return mapError(err)
}

// SendQuiz sends one quiz poll. withExplanation=false is the reduced
// payload of the two-phase fallback.
func (c *Client) SendQuiz(ctx context.Context, dst relay.Endpoint, e quiz.Entry, tag string, withExplanation bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	question := e.Question
	if tag != "" {
		question = tag + "\n" + question
	}

	options := make([]tele.PollOption, 0, len(e.Options))
	for _, o := range e.Options {
		options = append(options, tele.PollOption{Text: o})
	}

	poll := &tele.Poll{
		Type:          tele.PollQuiz,
		Question:      question,
		Options:       options,
		Anonymous:     true,
		CorrectOption: e.CorrectOption,
	}
	if withExplanation {
		poll.Explanation = e.Explanation
	}

	_, err := c.bot.Send(&tele.Chat{ID: dst.ID}, poll)
	return mapError(err)
}

// DeleteBatch removes up to 100 messages in one deleteMessages call. The
// method is not surfaced by the high-level bot API, so this goes through
// Raw, same as other missing endpoints.
func (c *Client) DeleteBatch(ctx context.Context, dst relay.Endpoint, ids []int64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	payload := struct {
		ChatID     int64   `json:"chat_id"`
		MessageIDs []int64 `json:"message_ids"`
	}{ChatID: dst.ID, MessageIDs: ids}

	_, err := c.bot.Raw("deleteMessages", payload)
	return mapError(err)
}

// Sink returns a report.Sink-compatible publisher for the given log channel.
func (c *Client) Sink(dst relay.Endpoint) *LogSink {
	return &LogSink{client: c, dst: dst}
}

// LogSink publishes pre-escaped HTML lines to the remote log channel.
type LogSink struct {
	client *Client
	dst    relay.Endpoint
}

func (s *LogSink) Publish(ctx context.Context, html string) error {
	return s.client.SendText(ctx, s.dst, html)
}

// mapError converts telebot errors to the relay taxonomy. Descriptions are
// matched as text because the Bot API distinguishes many of these cases only
// by the human-readable description.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var flood tele.FloodError
	if errors.As(err, &flood) {
		return relay.Throttled(err, time.Duration(flood.RetryAfter)*time.Second)
	}

	desc := strings.ToLower(err.Error())
	switch {
	case strings.Contains(desc, "not found"):
		return fmt.Errorf("%w: %v", relay.ErrNotFound, err)
	case strings.Contains(desc, "too long"):
		return fmt.Errorf("%w: %v", relay.ErrPayloadTooLarge, err)
	case strings.Contains(desc, "forbidden"), strings.Contains(desc, "not enough rights"):
		return fmt.Errorf("%w: %v", relay.ErrForbidden, err)
	default:
		return err
	}
}
