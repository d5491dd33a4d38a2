// Package command parses chat commands and turns them into panel operations.
// Every failure is rendered as a plain-text reply; nothing escapes a command
// boundary.
package command

import (
	"context"
	"strings"

	"github.com/rs/zerolog/log"
)

// Request is one inbound chat command.
type Request struct {
	UserID  string
	GroupID string // empty for private chats
	Text    string
}

// Emitter sends one line of output back to the requester.
type Emitter func(line string)

type handlerFunc func(ctx context.Context, req Request, rest string, emit Emitter)

type commandEntry struct {
	name      string
	adminOnly bool
	help      string
	run       handlerFunc
}

// Router owns the command table and permission gate.
type Router struct {
	svc      *Service
	commands map[string]*commandEntry
	order    []string
}

func NewRouter(svc *Service) *Router {
	r := &Router{svc: svc, commands: make(map[string]*commandEntry)}
	r.register(&commandEntry{name: "help", help: "help : show this text", run: r.help})
	r.register(&commandEntry{name: "status", help: "status : panel and node overview", run: svc.Status})
	r.register(&commandEntry{name: "list", help: "list : refresh and show the instance directory", run: svc.List})
	r.register(&commandEntry{name: "start", help: "start <id...> : start instance(s) by index, uuid, or name", run: svc.Start})
	r.register(&commandEntry{name: "stop", help: "stop <id...> : stop instance(s) by index, uuid, or name", run: svc.Stop})
	r.register(&commandEntry{name: "cmd", help: "cmd <id> <command> : send a console command and show recent output", run: svc.Cmd})
	r.register(&commandEntry{name: "log", help: "log <id> : show recent console output", run: svc.Log})
	r.register(&commandEntry{name: "op", adminOnly: true, help: "op <user> : grant operator rights (admin only)", run: svc.Op})
	r.register(&commandEntry{name: "deop", adminOnly: true, help: "deop <user> : revoke operator rights (admin only)", run: svc.Deop})
	return r
}

func (r *Router) register(e *commandEntry) {
	r.commands[e.name] = e
	r.order = append(r.order, e.name)
}

func (r *Router) help(ctx context.Context, req Request, rest string, emit Emitter) {
	var b strings.Builder
	b.WriteString("🛠️ panelbot commands:")
	for _, name := range r.order {
		b.WriteString("\n")
		b.WriteString(r.commands[name].help)
	}
	emit(b.String())
}

// Dispatch routes one message. It returns false when the text is not a known
// command, so the host can ignore unrelated chatter.
func (r *Router) Dispatch(ctx context.Context, req Request, emit Emitter) bool {
	text := strings.TrimSpace(req.Text)
	text = strings.TrimPrefix(text, "/")
	if text == "" {
		return false
	}

	name, rest, _ := strings.Cut(text, " ")
	cmd, ok := r.commands[strings.ToLower(name)]
	if !ok {
		return false
	}

	if cmd.adminOnly {
		if !r.svc.authz.IsAdmin(req.UserID) {
			emit("❌ This command is restricted to administrators.")
			return true
		}
	} else {
		allowed, err := r.svc.authz.IsAuthorized(req.UserID)
		if err != nil {
			log.Error().Err(err).Str("user", req.UserID).Msg("authorization check failed")
			emit("❌ Authorization check failed, try again later.")
			return true
		}
		if !allowed {
			emit("❌ You are not authorized to use this bot.")
			return true
		}
	}

	defer func() {
		if v := recover(); v != nil {
			log.Error().Interface("panic", v).Str("command", cmd.name).Msg("command handler panicked")
			emit("❌ Internal error while handling the command.")
		}
	}()

	cmd.run(ctx, req, strings.TrimSpace(rest), emit)
	return true
}
