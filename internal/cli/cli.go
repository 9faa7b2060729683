// Package cli is the interactive terminal frontend. It renders client events
// to stdout and turns slash commands into client operations; all chat logic
// lives in internal/client.
package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/anonchat/cli/internal/client"
	"github.com/anonchat/cli/internal/config"
	"github.com/anonchat/cli/internal/notify"
	"github.com/anonchat/cli/internal/storage"
)

// Mode selects how the session authenticates on startup.
type Mode struct {
	// RegisterNickname registers a fresh identity when non-empty.
	RegisterNickname string
	// LoginUID logs in with an explicit uid when non-empty.
	LoginUID string
}

// Run starts the interactive chat loop and blocks until the user quits or
// stdin closes.
func Run(cfg *config.Config, mode Mode) error {
	ui := &consoleListener{homeDir: cfg.HomeDir}
	if cfg.PushoverToken != "" && cfg.PushoverUserKey != "" {
		notifier, err := notify.NewPushover(notify.Config{
			Token:    cfg.PushoverToken,
			UserKey:  cfg.PushoverUserKey,
			Cooldown: cfg.PushoverCooldown,
		})
		if err != nil {
			return fmt.Errorf("failed to configure pushover: %w", err)
		}
		ui.notifier = notifier
	}
	c := client.New(cfg, ui)
	defer c.Close()
	c.Connect()

	switch {
	case mode.RegisterNickname != "":
		c.Register(mode.RegisterNickname)
	case mode.LoginUID != "":
		c.Login(mode.LoginUID)
	default:
		id, ok, err := storage.LoadIdentity(cfg.HomeDir)
		if err != nil {
			return fmt.Errorf("failed to load identity: %w", err)
		}
		if !ok {
			return fmt.Errorf("no saved identity; run %q first", "anonchat register <nickname>")
		}
		c.Login(id.UID)
	}

	fmt.Println("Type /help for commands. Plain text sends to the open chat.")

	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			c.SendMessage(line)
			continue
		}
		fields := strings.Fields(line)
		name := strings.TrimPrefix(fields[0], "/")
		args := fields[1:]
		if name == "quit" || name == "exit" {
			return nil
		}
		if name == "logout" {
			if err := logout(cfg); err != nil {
				fmt.Printf("logout failed: %v\n", err)
				continue
			}
			fmt.Println("identity removed")
			return nil
		}
		cmd, ok := commands[name]
		if !ok {
			fmt.Printf("unknown command /%s, try /help\n", name)
			continue
		}
		if len(args) < cmd.minArgs {
			fmt.Printf("usage: %s\n", cmd.usage)
			continue
		}
		cmd.run(c, args)
	}
	return scanner.Err()
}

// logout removes the saved identity so the next start requires a fresh
// register or an explicit login uid.
func logout(cfg *config.Config) error {
	return storage.DeleteIdentity(cfg.HomeDir)
}

type command struct {
	usage   string
	minArgs int
	run     func(c *client.Client, args []string)
}

var commands = map[string]command{
	"help": {usage: "/help", run: func(*client.Client, []string) { printCommands() }},
	"whoami": {usage: "/whoami", run: func(c *client.Client, _ []string) {
		uid, nickname := c.Identity()
		if uid == "" {
			fmt.Println("not signed in yet")
			return
		}
		fmt.Printf("%s (uid %s)\n", nickname, uid)
	}},
	"nick": {usage: "/nick <nickname>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.UpdateNickname(strings.Join(args, " "))
	}},
	"friends": {usage: "/friends", run: func(c *client.Client, _ []string) {
		c.LoadFriendList()
	}},
	"chats": {usage: "/chats", run: func(c *client.Client, _ []string) {
		c.LoadChatList()
	}},
	"pending": {usage: "/pending", run: func(c *client.Client, _ []string) {
		for _, p := range c.PendingRequests() {
			fmt.Printf("  %s (uid %s)\n", p.Nickname, p.UID)
		}
	}},
	"searchusers": {usage: "/searchusers <query>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.SearchUsers(strings.Join(args, " "))
	}},
	"searchgroups": {usage: "/searchgroups <query>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.SearchGroups(strings.Join(args, " "))
	}},
	"add": {usage: "/add <uid>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.SendFriendRequest(args[0])
	}},
	"addnick": {usage: "/addnick <nickname>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.SendFriendRequestByNickname(strings.Join(args, " "))
	}},
	"accept": {usage: "/accept <uid>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.AcceptFriendRequest(args[0])
	}},
	"reject": {usage: "/reject <uid>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.RejectFriendRequest(args[0])
	}},
	"chat": {usage: "/chat <friend-uid>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.StartFriendChat(args[0])
	}},
	"open": {usage: "/open <chat-id>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.OpenChat(args[0])
	}},
	"close": {usage: "/close", run: func(c *client.Client, _ []string) {
		c.CloseChat()
	}},
	"creategroup": {usage: "/creategroup <name> [password]", minArgs: 1, run: func(c *client.Client, args []string) {
		password := ""
		if len(args) > 1 {
			password = args[1]
		}
		c.CreateGroupChat(args[0], password)
	}},
	"join": {usage: "/join <group-id> [password]", minArgs: 1, run: func(c *client.Client, args []string) {
		password := ""
		if len(args) > 1 {
			password = args[1]
		}
		c.JoinGroup(args[0], password)
	}},
	"approve": {usage: "/approve <group-id> <uid>", minArgs: 2, run: func(c *client.Client, args []string) {
		c.ApproveJoinGroup(args[0], args[1])
	}},
	"deny": {usage: "/deny <group-id> <uid>", minArgs: 2, run: func(c *client.Client, args []string) {
		c.RejectJoinGroup(args[0], args[1])
	}},
	"invite": {usage: "/invite <group-id> <uid>", minArgs: 2, run: func(c *client.Client, args []string) {
		c.InviteToGroup(args[0], args[1])
	}},
	"acceptinvite": {usage: "/acceptinvite <group-id> <from-uid>", minArgs: 2, run: func(c *client.Client, args []string) {
		c.AcceptGroupInvite(args[0], args[1])
	}},
	"rejectinvite": {usage: "/rejectinvite <group-id> <from-uid>", minArgs: 2, run: func(c *client.Client, args []string) {
		c.RejectGroupInvite(args[0], args[1])
	}},
	"leave": {usage: "/leave <chat-id>", minArgs: 1, run: func(c *client.Client, args []string) {
		c.LeaveGroup(args[0])
	}},
	"reconnect": {usage: "/reconnect", run: func(c *client.Client, _ []string) {
		c.Connect()
	}},
}

func printCommands() {
	fmt.Println(`Commands:
  /whoami                               Show the local identity
  /nick <nickname>                      Change nickname
  /friends                              Load the friend list
  /chats                                Load the chat list
  /pending                              Show pending friend requests
  /searchusers <query>                  Search users by nickname
  /searchgroups <query>                 Search groups by name
  /add <uid>                            Send a friend request by uid
  /addnick <nickname>                   Send a friend request by nickname
  /accept <uid>                         Accept a friend request
  /reject <uid>                         Reject a friend request
  /chat <friend-uid>                    Start a private chat with a friend
  /open <chat-id>                       Open a chat and load its history
  /close                                Close the open chat
  /creategroup <name> [password]        Create a group chat
  /join <group-id> [password]           Ask to join a group
  /approve <group-id> <uid>             Approve a join request
  /deny <group-id> <uid>                Deny a join request
  /invite <group-id> <uid>              Invite a friend to a group
  /acceptinvite <group-id> <from-uid>   Accept a group invitation
  /rejectinvite <group-id> <from-uid>   Reject a group invitation
  /leave <chat-id>                      Leave a group chat
  /logout                               Delete the saved identity and exit
  /reconnect                            Reconnect after giving up
  /quit                                 Exit`)
}
