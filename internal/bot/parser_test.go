package bot

import (
	"testing"

	"scout/internal/riotapi"
)

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		message string
		command int
		parseid int
		args    *SubscriptionArgs
	}{
		{
			name:    "message not for the bot",
			message: "hello everyone",
			parseid: PARSEID_NO_BOT_PREFIX,
		},
		{
			name:    "prefix alone",
			message: "scout",
			parseid: PARSEID_NO_COMMAND,
		},
		{
			name:    "unknown command",
			message: "scout dance",
			parseid: PARSEID_COMMAND_NOT_RECOGNISED,
		},
		{
			name:    "subscribe without arguments",
			message: "scout subscribe",
			command: COMMAND_SUBSCRIBE,
			parseid: PARSEID_NO_INPUT,
		},
		{
			name:    "subscribe with a riot id",
			message: "scout subscribe Faker#KR1",
			command: COMMAND_SUBSCRIBE,
			parseid: PARSEID_OK,
			args:    &SubscriptionArgs{RiotId: riotapi.RiotId{GameName: "Faker", TagLine: "KR1"}},
		},
		{
			name:    "game names may contain spaces",
			message: "scout subscribe Hide on bush#KR1",
			command: COMMAND_SUBSCRIBE,
			parseid: PARSEID_OK,
			args:    &SubscriptionArgs{RiotId: riotapi.RiotId{GameName: "Hide on bush", TagLine: "KR1"}},
		},
		{
			name:    "subscribe with a channel mention",
			message: "scout subscribe Faker#KR1 <#123456789>",
			command: COMMAND_SUBSCRIBE,
			parseid: PARSEID_OK,
			args:    &SubscriptionArgs{RiotId: riotapi.RiotId{GameName: "Faker", TagLine: "KR1"}, ChannelId: "123456789"},
		},
		{
			name:    "malformed channel mention",
			message: "scout subscribe Faker#KR1 <#123",
			command: COMMAND_SUBSCRIBE,
			parseid: PARSEID_NOT_A_CHANNEL,
		},
		{
			name:    "missing tag line",
			message: "scout subscribe Faker#",
			command: COMMAND_SUBSCRIBE,
			parseid: PARSEID_NOT_A_RIOT_ID,
		},
		{
			name:    "missing game name",
			message: "scout subscribe #KR1",
			command: COMMAND_SUBSCRIBE,
			parseid: PARSEID_NOT_A_RIOT_ID,
		},
		{
			name:    "unsubscribe with a riot id",
			message: "scout unsubscribe Faker#KR1",
			command: COMMAND_UNSUBSCRIBE,
			parseid: PARSEID_OK,
			args:    &SubscriptionArgs{RiotId: riotapi.RiotId{GameName: "Faker", TagLine: "KR1"}},
		},
		{
			name:    "list",
			message: "scout list",
			command: COMMAND_LIST,
			parseid: PARSEID_OK,
		},
		{
			name:    "help",
			message: "scout help",
			command: COMMAND_HELP,
			parseid: PARSEID_OK,
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			result := Parse(tt.message)
			if result.parseid != tt.parseid {
				t.Fatalf("Parse(%q) parseid = %d, want %d", tt.message, result.parseid, tt.parseid)
			}
			if result.parseid != PARSEID_OK {
				if result.parseid != PARSEID_NO_BOT_PREFIX && result.errorMessage == "" {
					t.Fatalf("Parse(%q) rejected without an error message", tt.message)
				}
				return
			}
			if result.command != tt.command {
				t.Fatalf("Parse(%q) command = %d, want %d", tt.message, result.command, tt.command)
			}
			if tt.args != nil {
				args, ok := result.arguments.(SubscriptionArgs)
				if !ok {
					t.Fatalf("Parse(%q) arguments = %T, want SubscriptionArgs", tt.message, result.arguments)
				}
				if args != *tt.args {
					t.Fatalf("Parse(%q) arguments = %+v, want %+v", tt.message, args, *tt.args)
				}
			}
		})
	}
}
