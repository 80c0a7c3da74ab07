package bot

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"scout/internal/riotapi"
)

const prefix string = "scout"

const (
	COMMAND_SUBSCRIBE = iota
	COMMAND_UNSUBSCRIBE
	COMMAND_LIST
	COMMAND_HELP
)

const (
	PARSEID_OK = iota
	PARSEID_NO_BOT_PREFIX
	PARSEID_NO_COMMAND
	PARSEID_COMMAND_NOT_RECOGNISED
	PARSEID_NO_INPUT
	PARSEID_NOT_A_RIOT_ID
	PARSEID_NOT_A_CHANNEL
)

var errorMessages = map[int]string{
	PARSEID_NO_COMMAND:             "No command provided",
	PARSEID_COMMAND_NOT_RECOGNISED: "Command `%s` not recognised",
	PARSEID_NO_INPUT:               "Command `%s` requires an argument",
	PARSEID_NOT_A_RIOT_ID:          "Input `%s` is not a riot id",
	PARSEID_NOT_A_CHANNEL:          "Input `%s` is not a channel mention",
}

// Arguments of the subscribe and unsubscribe commands: a riot id and an
// optional channel mention. An empty ChannelId means the channel the
// command was typed in
type SubscriptionArgs struct {
	RiotId    riotapi.RiotId
	ChannelId string
}

type ParseResult struct {
	command      int
	parseid      int
	errorMessage string
	arguments    interface{}
}

func Parse(message string) ParseResult {

	// The message has to start with the bot prefix
	if !strings.HasPrefix(message, prefix) {
		log.Debug().Msg("Reject message not intended for the bot")
		return ParseResult{parseid: PARSEID_NO_BOT_PREFIX}
	}

	// Get the command if valid
	words := strings.Fields(strings.TrimSpace(message[len(prefix):]))
	if len(words) == 0 {
		parseid := PARSEID_NO_COMMAND
		return ParseResult{parseid: parseid, errorMessage: errorMessages[parseid]}
	}
	commandString := words[0]
	words = words[1:]

	// Match the command

	switch commandString {
	case "subscribe":
		// scout subscribe <riot_id> [#channel]
		return parseSubscription(COMMAND_SUBSCRIBE, commandString, words)
	case "unsubscribe":
		// scout unsubscribe <riot_id> [#channel]
		return parseSubscription(COMMAND_UNSUBSCRIBE, commandString, words)
	case "list":
		// scout list
		return ParseResult{command: COMMAND_LIST, parseid: PARSEID_OK}
	case "help":
		// scout help
		return ParseResult{command: COMMAND_HELP, parseid: PARSEID_OK}
	default:
		parseid := PARSEID_COMMAND_NOT_RECOGNISED
		return ParseResult{parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}
}

func parseSubscription(command int, commandString string, words []string) ParseResult {

	if len(words) == 0 {
		parseid := PARSEID_NO_INPUT
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], commandString)}
	}

	// A trailing channel mention selects the destination channel
	var channelid string
	if last := words[len(words)-1]; strings.HasPrefix(last, "<#") {
		if !strings.HasSuffix(last, ">") || len(last) <= 3 {
			parseid := PARSEID_NOT_A_CHANNEL
			return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], last)}
		}
		channelid = last[2 : len(last)-1]
		words = words[:len(words)-1]
	}

	// The rest of the words form the riot id
	word := strings.Join(words, " ")
	hashtagPos := strings.Index(word, "#")
	if hashtagPos <= 0 || hashtagPos == len(word)-1 {
		parseid := PARSEID_NOT_A_RIOT_ID
		return ParseResult{command: command, parseid: parseid, errorMessage: fmt.Sprintf(errorMessages[parseid], word)}
	}

	riotid := riotapi.RiotId{GameName: strings.TrimSpace(word[:hashtagPos]), TagLine: strings.TrimSpace(word[hashtagPos+1:])}
	return ParseResult{command: command, parseid: PARSEID_OK, arguments: SubscriptionArgs{RiotId: riotid, ChannelId: channelid}}
}
