package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog/log"

	"scout/internal/riotapi"
	"scout/internal/store"
	"scout/internal/tracker"
)

// Timeout for the riot API lookups a command triggers
const commandTimeout = 15 * time.Second

type Bot struct {
	token   string
	store   *store.Store
	riotapi *riotapi.RiotApi
	states  *tracker.StateTracker
	session *discordgo.Session
}

func NewBot(token string, db *store.Store, api *riotapi.RiotApi, states *tracker.StateTracker) *Bot {
	return &Bot{token: token, store: db, riotapi: api, states: states}
}

// Open the discord session and start receiving commands. The session is
// also what the notification sender posts through
func (bot *Bot) Open() error {

	discord, err := discordgo.New("Bot " + bot.token)
	if err != nil {
		return fmt.Errorf("could not create discord session: %w", err)
	}
	discord.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages | discordgo.IntentMessageContent
	discord.AddHandler(bot.Receive)

	if err := discord.Open(); err != nil {
		return fmt.Errorf("could not open discord session: %w", err)
	}
	bot.session = discord
	return nil
}

func (bot *Bot) Close() error {
	if bot.session == nil {
		return nil
	}
	return bot.session.Close()
}

func (bot *Bot) Session() *discordgo.Session {
	return bot.session
}

func (bot *Bot) Receive(discord *discordgo.Session, message *discordgo.MessageCreate) {

	// Reject my own messages
	if message.Author.ID == discord.State.User.ID {
		return
	}

	// Ignore messages from private channels
	if message.GuildID == "" {
		log.Debug().Msg("Ignoring private message")
		bot.sendResponses(discord, message.ChannelID, []Response{ResponseString{"For the time being, I am ignoring private messages"}})
		return
	}

	// Parse the input provided and call the appropriate function
	parseResult := Parse(message.Content)
	switch parseResult.parseid {
	case PARSEID_NO_BOT_PREFIX:
		return
	case PARSEID_OK:
		log.Info().Str("guild", message.GuildID).Str("author", message.Author.ID).Str("content", message.Content).
			Msg("Command understood")
		ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
		defer cancel()

		var responses []Response
		switch parseResult.command {
		case COMMAND_SUBSCRIBE:
			args := parseResult.arguments.(SubscriptionArgs)
			responses = bot.subscribe(ctx, message, args)
		case COMMAND_UNSUBSCRIBE:
			args := parseResult.arguments.(SubscriptionArgs)
			responses = bot.unsubscribe(ctx, message, args)
		case COMMAND_LIST:
			responses = bot.list(ctx, message.GuildID)
		case COMMAND_HELP:
			responses = HelpMessage()
		default:
			panic(fmt.Sprintf("Command %d is not one of the possible ones", parseResult.command))
		}
		bot.sendResponses(discord, message.ChannelID, responses)
	default:

		// The command is invalid input, so it contains an error message
		log.Info().Str("content", message.Content).Str("reason", parseResult.errorMessage).Msg("Wrong input")
		bot.sendResponses(discord, message.ChannelID, InputNotValid(parseResult.errorMessage))
	}
}

func (bot *Bot) sendResponses(discord *discordgo.Session, channelid string, responses []Response) {
	for _, response := range responses {
		response.Send(channelid, discord)
	}
}

func (bot *Bot) subscribe(ctx context.Context, message *discordgo.MessageCreate, args SubscriptionArgs) []Response {

	guildid := message.GuildID
	channelid := args.ChannelId
	if channelid == "" {
		channelid = message.ChannelID
	}

	// Resolve the riot id
	puuid, err := bot.riotapi.GetPuuid(ctx, args.RiotId)
	if err != nil {
		log.Warn().Err(err).Msg(fmt.Sprintf("Puuid not found for riot id %s", &args.RiotId))
		return NoResponseRiotApi(args.RiotId)
	}

	// Find or create the tracked account. Accounts sharing a game name
	// group under one player, so a player's main and smurf notify the
	// same subscriptions
	account, err := bot.store.FindAccount(ctx, guildid, string(puuid))
	if errors.Is(err, store.ErrNotFound) {
		player, perr := bot.store.GetOrCreatePlayer(ctx, guildid, strings.ToLower(args.RiotId.GameName))
		if perr != nil {
			log.Error().Err(perr).Msg("Could not create player")
			return somethingWentWrong()
		}
		account = store.Account{
			Player:   player.Id,
			Guild:    guildid,
			Puuid:    string(puuid),
			GameName: args.RiotId.GameName,
			TagLine:  args.RiotId.TagLine,
			Region:   bot.riotapi.Region(),
		}
		if cerr := bot.store.CreateAccount(ctx, &account); cerr != nil && !errors.Is(cerr, store.ErrDuplicate) {
			log.Error().Err(cerr).Msg("Could not create account")
			return somethingWentWrong()
		}
	} else if err != nil {
		log.Error().Err(err).Msg("Could not look up account")
		return somethingWentWrong()
	}

	// Create the subscription
	if err := bot.store.CreateSubscription(ctx, guildid, account.Player, channelid); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			log.Info().Msg(fmt.Sprintf("Player %s is already subscribed in guild %s", &args.RiotId, guildid))
			return PlayerAlreadySubscribed(args.RiotId, channelid)
		}
		log.Error().Err(err).Msg("Could not create subscription")
		return somethingWentWrong()
	}

	// Seed the polling state from the latest observed match, so the
	// interval policy does not treat the account as never active. Best
	// effort: a fresh account with no backfill just polls at the default
	// rate until its first match
	bot.backfill(ctx, account.Id, puuid)

	log.Info().Msg(fmt.Sprintf("Player %s has been subscribed to channel %s in guild %s", &args.RiotId, channelid, guildid))
	return PlayerSubscribed(args.RiotId, channelid)
}

func (bot *Bot) unsubscribe(ctx context.Context, message *discordgo.MessageCreate, args SubscriptionArgs) []Response {

	guildid := message.GuildID
	channelid := args.ChannelId
	if channelid == "" {
		channelid = message.ChannelID
	}

	puuid, err := bot.riotapi.GetPuuid(ctx, args.RiotId)
	if err != nil {
		log.Warn().Err(err).Msg(fmt.Sprintf("Puuid not found for riot id %s", &args.RiotId))
		return NoResponseRiotApi(args.RiotId)
	}

	account, err := bot.store.FindAccount(ctx, guildid, string(puuid))
	if errors.Is(err, store.ErrNotFound) {
		return PlayerNotSubscribed(args.RiotId, channelid)
	} else if err != nil {
		log.Error().Err(err).Msg("Could not look up account")
		return somethingWentWrong()
	}

	deleted, err := bot.store.DeleteSubscription(ctx, guildid, account.Player, channelid)
	if err != nil {
		log.Error().Err(err).Msg("Could not delete subscription")
		return somethingWentWrong()
	}
	if !deleted {
		return PlayerNotSubscribed(args.RiotId, channelid)
	}

	// The account and its polling state are kept on purpose: the history
	// survives a resubscription
	log.Info().Msg(fmt.Sprintf("Player %s has been unsubscribed from channel %s in guild %s", &args.RiotId, channelid, guildid))
	return PlayerUnsubscribed(args.RiotId, channelid)
}

func (bot *Bot) list(ctx context.Context, guildid string) []Response {

	subscriptions, err := bot.store.GuildSubscriptions(ctx, guildid)
	if err != nil {
		log.Error().Err(err).Msg("Could not list subscriptions")
		return somethingWentWrong()
	}
	return SubscriptionList(subscriptions)
}

func (bot *Bot) backfill(ctx context.Context, accountid tracker.AccountId, puuid riotapi.Puuid) {

	matchid, found, err := bot.riotapi.GetLatestMatchId(ctx, puuid)
	if err != nil || !found {
		return
	}
	match, err := bot.riotapi.GetMatch(ctx, matchid)
	if err != nil {
		return
	}
	if err := bot.states.Backfill(ctx, accountid, match.EndTime); err != nil {
		log.Warn().Err(err).Str("account", string(accountid)).Msg("Could not backfill polling state")
	}
}

func somethingWentWrong() []Response {
	return []Response{ResponseString{"Something went wrong on my side, please try again later"}}
}
