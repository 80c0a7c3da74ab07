package bot

import (
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"scout/internal/riotapi"
	"scout/internal/store"
)

// Use "teal" color for the bot
const color int = 0x008080

// Win/loss colors for match notifications
const colorVictory int = 0x2ECC71
const colorDefeat int = 0xE74C3C

var queueNames = map[int]string{
	400: "Normal Draft",
	420: "Ranked Solo/Duo",
	430: "Normal Blind",
	440: "Ranked Flex",
	450: "ARAM",
	490: "Quickplay",
	700: "Clash",
}

func InputNotValid(errorMessage string) []Response {

	return []Response{ResponseString{fmt.Sprintf("Input not valid: \n> %s", errorMessage)}}
}

func HelpMessage() []Response {

	embed := discordgo.MessageEmbed{Title: "Commands available", Color: color}
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "`scout subscribe <riot_id> [#channel]`",
		Value:  "Follow a player: every new match the player finishes is announced in the channel (the current one if no channel is given)",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "`scout unsubscribe <riot_id> [#channel]`",
		Value:  "Stop announcing the player's matches in the channel",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "`scout list`",
		Value:  "Print the players followed in this server and the channels their matches go to",
		Inline: false,
	})
	embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
		Name:   "`scout help`",
		Value:  "Print the usage of the different commands",
		Inline: false,
	})
	return []Response{ResponseEmbed{embed}}
}

func NoResponseRiotApi(riotid riotapi.RiotId) []Response {
	return []Response{ResponseString{fmt.Sprintf("Got no response from Riot API for player `%s`", &riotid)}}
}

func PlayerSubscribed(riotid riotapi.RiotId, channelid string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Player `%s` subscribed, new matches will be announced in <#%s>", &riotid, channelid)}}
}

func PlayerAlreadySubscribed(riotid riotapi.RiotId, channelid string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Player `%s` is already subscribed to <#%s>", &riotid, channelid)}}
}

func PlayerUnsubscribed(riotid riotapi.RiotId, channelid string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Player `%s` unsubscribed from <#%s>", &riotid, channelid)}}
}

func PlayerNotSubscribed(riotid riotapi.RiotId, channelid string) []Response {
	return []Response{ResponseString{fmt.Sprintf("Player `%s` is not subscribed to <#%s>", &riotid, channelid)}}
}

func SubscriptionList(subscriptions []store.Subscription) []Response {

	if len(subscriptions) == 0 {
		return []Response{ResponseString{"No players are subscribed in this server"}}
	}

	var builder strings.Builder
	for _, subscription := range subscriptions {
		builder.WriteString(fmt.Sprintf("- `%s` -> <#%s>\n", subscription.PlayerAlias, subscription.Channel))
	}
	embed := discordgo.MessageEmbed{Title: "Players subscribed in this server", Description: builder.String(), Color: color}
	return []Response{ResponseEmbed{embed}}
}

// MatchNotification renders one finished match from the point of view of
// the tracked participant
func MatchNotification(view *riotapi.MatchView) Response {

	participant := view.Match.Participant(view.Focus)
	if participant == nil {
		// The focused player is somehow not in the match data; a plain
		// message is better than nothing
		return ResponseString{fmt.Sprintf("A tracked player finished match `%s`", view.Match.Id)}
	}

	title := "Defeat"
	embedColor := colorDefeat
	if participant.Win {
		title = "Victory"
		embedColor = colorVictory
	}

	deaths := participant.Deaths
	if deaths == 0 {
		deaths = 1
	}
	kda := float64(participant.Kills+participant.Assists) / float64(deaths)

	minutes := view.Match.Duration.Minutes()
	csPerMin := 0.0
	if minutes > 0 {
		csPerMin = float64(participant.Cs) / minutes
	}

	embed := discordgo.MessageEmbed{
		Title:       title,
		Color:       embedColor,
		Author:      &discordgo.MessageEmbedAuthor{Name: participant.RiotId.String()},
		Description: fmt.Sprintf("**%s** | %s", participant.ChampionName, queueName(view.Match.QueueId)),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "KDA", Value: fmt.Sprintf("%d / %d / %d (%.2f)", participant.Kills, participant.Deaths, participant.Assists, kda), Inline: true},
			{Name: "CS", Value: fmt.Sprintf("%d (%.1f/min)", participant.Cs, csPerMin), Inline: true},
			{Name: "Damage", Value: fmt.Sprintf("%d", participant.Damage), Inline: true},
			{Name: "Gold", Value: fmt.Sprintf("%d", participant.Gold), Inline: true},
			{Name: "Vision", Value: fmt.Sprintf("%d", participant.VisionScore), Inline: true},
			{Name: "Duration", Value: formatDuration(view.Match.Duration), Inline: true},
		},
		Footer: &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("Match %s", view.Match.Id)},
	}
	return ResponseEmbed{embed}
}

func queueName(queueid int) string {
	if name, ok := queueNames[queueid]; ok {
		return name
	}
	return fmt.Sprintf("Queue %d", queueid)
}

func formatDuration(duration time.Duration) string {
	total := int(duration.Seconds())
	return fmt.Sprintf("%d:%02d", total/60, total%60)
}
