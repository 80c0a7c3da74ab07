package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"scout/internal/riotapi"
	"scout/internal/tracker"
)

// ChannelSender delivers match notifications over discord, paced by a
// rate limiter so a large fan out does not burst the API
type ChannelSender struct {
	session *discordgo.Session
	limiter *rate.Limiter
}

func NewChannelSender(session *discordgo.Session, sendsPerSecond float64) *ChannelSender {
	return &ChannelSender{
		session: session,
		limiter: rate.NewLimiter(rate.Limit(sendsPerSecond), 1),
	}
}

// CanSend checks against the local state cache whether the bot may post
// in the channel. When the cache cannot answer, the send attempt itself
// decides
func (sender *ChannelSender) CanSend(dest tracker.Destination) bool {

	permissions, err := sender.session.State.UserChannelPermissions(sender.session.State.User.ID, dest.Channel)
	if err != nil {
		return true
	}
	return permissions&discordgo.PermissionSendMessages != 0
}

func (sender *ChannelSender) Send(ctx context.Context, dest tracker.Destination, match tracker.Match) error {

	view, ok := match.Payload.(*riotapi.MatchView)
	if !ok {
		return fmt.Errorf("%w: unexpected payload type %T", tracker.ErrSendTransient, match.Payload)
	}

	if err := sender.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %w", tracker.ErrSendTransient, err)
	}

	response, okResponse := MatchNotification(view).(ResponseEmbed)
	var err error
	if okResponse {
		_, err = sender.session.ChannelMessageSendEmbed(dest.Channel, &response.MessageEmbed)
	} else {
		_, err = sender.session.ChannelMessageSend(dest.Channel, fmt.Sprintf("A tracked player finished match `%s`", match.Id))
	}
	if err != nil {
		return classifySendError(err)
	}
	return nil
}

func classifySendError(err error) error {

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeMissingPermissions, discordgo.ErrCodeMissingAccess, discordgo.ErrCodeCannotSendMessagesToThisUser:
				return fmt.Errorf("%w: %w", tracker.ErrPermissionDenied, err)
			case discordgo.ErrCodeUnknownChannel:
				return fmt.Errorf("%w: %w", tracker.ErrChannelNotFound, err)
			}
		}
		if restErr.Response != nil {
			switch restErr.Response.StatusCode {
			case http.StatusForbidden:
				return fmt.Errorf("%w: %w", tracker.ErrPermissionDenied, err)
			case http.StatusNotFound:
				return fmt.Errorf("%w: %w", tracker.ErrChannelNotFound, err)
			}
		}
	}
	return fmt.Errorf("%w: %w", tracker.ErrSendTransient, err)
}

// GuildOwnerNotifier tells a guild owner their notification channel is
// broken, over a direct message. Fire and forget: delivery never waits
// for it
type GuildOwnerNotifier struct {
	session *discordgo.Session
}

func NewGuildOwnerNotifier(session *discordgo.Session) *GuildOwnerNotifier {
	return &GuildOwnerNotifier{session: session}
}

func (notifier *GuildOwnerNotifier) Notify(guildid string, reason string) {
	go func() {
		guild, err := notifier.session.State.Guild(guildid)
		if err != nil {
			guild, err = notifier.session.Guild(guildid)
			if err != nil {
				log.Warn().Err(err).Str("guild", guildid).Msg("Could not look up guild to notify its owner")
				return
			}
		}

		channel, err := notifier.session.UserChannelCreate(guild.OwnerID)
		if err != nil {
			log.Warn().Err(err).Str("guild", guildid).Msg("Could not open a direct channel to the guild owner")
			return
		}

		content := fmt.Sprintf("I could not deliver a match notification in your server `%s`: %s. "+
			"Please check my permissions; I will not repeat this message until a delivery succeeds again.", guild.Name, reason)
		if _, err := notifier.session.ChannelMessageSend(channel.ID, content); err != nil {
			log.Warn().Err(err).Str("guild", guildid).Msg("Could not message the guild owner")
		}
	}()
}
