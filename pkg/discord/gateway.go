// Package discord delivers the engine's change stream to a Discord text
// channel: one announcement message per event, edited in place when the
// event's metadata changes upstream, left standing once the event passes.
package discord

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/ifi-progsys/sam/pkg/clock"
	"github.com/ifi-progsys/sam/pkg/models"
)

// drainInterval is the gateway's own cadence, independent of the
// engine's tick cadence.
const drainInterval = 60 * time.Second

// presenceText is the bot's activity line.
const presenceText = "Putting my nose to the scrapestone"

// Engine is the only surface the gateway uses: the outbound queue drain
// plus a size snapshot for logging.
type Engine interface {
	DrainOutbound() []models.Change
	Snapshot() int
}

// sentMessage tracks one delivered announcement so later UPDATED changes
// edit it instead of posting a duplicate.
type sentMessage struct {
	messageID string
	expires   time.Time
}

// Gateway is the presentation collaborator. It holds a non-owning
// reference to the engine and owns the Discord session.
type Gateway struct {
	session   *discordgo.Session
	channelID string
	engine    Engine
	clk       clock.Clock
	interval  time.Duration
	logger    *slog.Logger

	// sent is touched only by the drain goroutine.
	sent map[string]sentMessage

	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a gateway for the given bot token and channel.
func New(token, channelID string, engine Engine) (*Gateway, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	return &Gateway{
		session:   session,
		channelID: channelID,
		engine:    engine,
		clk:       clock.System(),
		interval:  drainInterval,
		logger:    slog.Default().With("component", "discord-gateway"),
		sent:      make(map[string]sentMessage),
	}, nil
}

// Start opens the Discord session and launches the drain loop.
func (g *Gateway) Start(ctx context.Context) error {
	if g.cancel != nil {
		return nil // already started
	}

	g.session.AddHandler(func(s *discordgo.Session, r *discordgo.Ready) {
		g.logger.Info("Discord session ready",
			"user", r.User.Username, "user_id", r.User.ID)
		if err := s.UpdateListeningStatus(presenceText); err != nil {
			g.logger.Warn("Failed to set presence", "error", err)
		}
	})

	if err := g.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}

	ctx, g.cancel = context.WithCancel(ctx)
	g.done = make(chan struct{})
	go g.loop(ctx)

	g.logger.Info("Discord gateway started", "channel_id", g.channelID)
	return nil
}

// Stop halts the drain loop and closes the Discord session. Undrained
// engine changes survive in the engine's queue; at-least-once delivery
// resumes on the next Start.
func (g *Gateway) Stop() {
	if g.cancel == nil {
		return
	}
	g.cancel()
	<-g.done

	if err := g.session.Close(); err != nil {
		g.logger.Error("Error closing discord session", "error", err)
	}
	g.cancel = nil
	g.done = nil
	g.logger.Info("Discord gateway stopped")
}

func (g *Gateway) loop(ctx context.Context) {
	defer close(g.done)

	ticker := time.NewTicker(g.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.deliver()
			g.collectExpired()
		}
	}
}

// deliver drains the engine's queue and posts or edits one announcement
// per change. Per-change failures are logged and the change dropped; the
// event resurfaces on its next upstream modification.
func (g *Gateway) deliver() {
	changes := g.engine.DrainOutbound()
	if len(changes) == 0 {
		return
	}
	g.logger.Info("Delivering changes",
		"count", len(changes), "tracked", g.engine.Snapshot())

	for _, ch := range changes {
		content := BuildAnnouncement(ch.Event)

		if known, ok := g.sent[ch.Event.ID]; ok {
			if _, err := g.session.ChannelMessageEdit(g.channelID, known.messageID, content); err != nil {
				g.logger.Error("Failed to edit announcement",
					"id", ch.Event.ID, "message_id", known.messageID, "error", err)
				continue
			}
			// Keep the registry expiry in step with a rescheduled start.
			g.sent[ch.Event.ID] = sentMessage{
				messageID: known.messageID,
				expires:   ch.Event.StartAt,
			}
			g.logger.Info("Announcement edited", "id", ch.Event.ID)
			continue
		}

		msg, err := g.session.ChannelMessageSend(g.channelID, content)
		if err != nil {
			g.logger.Error("Failed to post announcement",
				"id", ch.Event.ID, "error", err)
			continue
		}
		g.sent[ch.Event.ID] = sentMessage{
			messageID: msg.ID,
			expires:   ch.Event.StartAt,
		}
		g.logger.Info("Announcement posted",
			"id", ch.Event.ID, "message_id", msg.ID, "classification", ch.Kind)
	}
}

// collectExpired prunes registry entries for events whose start has
// passed. The Discord messages themselves are never deleted — they stand
// as the historical record.
func (g *Gateway) collectExpired() {
	now := g.clk.Now()

	removed := 0
	for id, m := range g.sent {
		if !now.Before(m.expires) {
			delete(g.sent, id)
			removed++
		}
	}
	if removed > 0 {
		g.logger.Info("Pruned expired announcements from registry",
			"removed", removed, "remaining", len(g.sent))
	}
}
