package router

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/Maycon01282/bot2/internal/domain/event"
)

type Handler interface {
	Handle(ctx context.Context, ev event.Event) error
}

type HandlerFunc func(ctx context.Context, ev event.Event) error

func (f HandlerFunc) Handle(ctx context.Context, ev event.Event) error { return f(ctx, ev) }

// Wildcard matches any event of its kind that no specific entry claimed.
const Wildcard = "*"

// Entry is one route: an event kind, a matcher and the handler it selects.
type Entry struct {
	Kind    event.Kind
	Matcher string
	Handler Handler
}

func (e Entry) String() string {
	return string(e.Kind) + ":" + e.Matcher
}

// Routes collects entries at startup. Build freezes them into a Table.
type Routes struct {
	entries []Entry
	seen    map[string]bool
	bot     string
}

func NewRoutes() *Routes {
	return &Routes{seen: make(map[string]bool)}
}

// ForBot sets the bot's own username. Commands addressed to any other bot
// ("/start@other_bot") then match nothing. Without it the suffix is ignored.
func (r *Routes) ForBot(username string) *Routes {
	r.bot = strings.ToLower(strings.TrimPrefix(username, "@"))
	return r
}

// Command routes "/name ..." messages. Names are case-insensitive.
func (r *Routes) Command(name string, h Handler) *Routes {
	return r.add(event.KindCommand, strings.ToLower(strings.TrimPrefix(name, "/")), h)
}

// Callback routes callback data starting with prefix; the longest registered
// prefix wins.
func (r *Routes) Callback(prefix string, h Handler) *Routes {
	return r.add(event.KindCallbackAction, prefix, h)
}

// Notification routes payment notifications by their declared type.
func (r *Routes) Notification(notificationType string, h Handler) *Routes {
	return r.add(event.KindPaymentNotification, notificationType, h)
}

func (r *Routes) Fallback(kind event.Kind, h Handler) *Routes {
	return r.add(kind, Wildcard, h)
}

func (r *Routes) add(kind event.Kind, matcher string, h Handler) *Routes {
	if h == nil {
		panic(fmt.Sprintf("router: nil handler for %s:%s", kind, matcher))
	}
	if matcher == "" {
		panic(fmt.Sprintf("router: empty matcher for %s", kind))
	}
	e := Entry{Kind: kind, Matcher: matcher, Handler: h}
	if r.seen[e.String()] {
		panic("router: duplicate route " + e.String())
	}
	r.seen[e.String()] = true
	r.entries = append(r.entries, e)
	return r
}

type prefixEntry struct {
	prefix string
	entry  Entry
}

// Table is the frozen route set. It is read-only and safe for concurrent use.
type Table struct {
	entries       []Entry
	commands      map[string]Entry
	notifications map[string]Entry
	prefixes      []prefixEntry
	fallbacks     map[event.Kind]Entry
	bot           string
}

func (r *Routes) Build() *Table {
	t := &Table{
		entries:       append([]Entry(nil), r.entries...),
		commands:      make(map[string]Entry),
		notifications: make(map[string]Entry),
		fallbacks:     make(map[event.Kind]Entry),
		bot:           r.bot,
	}
	for _, e := range t.entries {
		if e.Matcher == Wildcard {
			t.fallbacks[e.Kind] = e
			continue
		}
		switch e.Kind {
		case event.KindCommand:
			t.commands[e.Matcher] = e
		case event.KindCallbackAction:
			t.prefixes = append(t.prefixes, prefixEntry{prefix: e.Matcher, entry: e})
		case event.KindPaymentNotification:
			t.notifications[e.Matcher] = e
		}
	}
	sort.SliceStable(t.prefixes, func(i, j int) bool {
		return len(t.prefixes[i].prefix) > len(t.prefixes[j].prefix)
	})
	return t
}

func (t *Table) Entries() []Entry {
	return append([]Entry(nil), t.entries...)
}

// Match selects the entry for ev. Specific matchers take priority over the
// kind's wildcard.
func (t *Table) Match(ev event.Event) (Entry, bool) {
	switch ev.Kind {
	case event.KindCommand:
		if name, target, ok := ParseCommand(ev.Payload.Text); ok {
			if !t.addressedToUs(target) {
				return Entry{}, false
			}
			if e, ok := t.commands[name]; ok {
				return e, true
			}
		}
	case event.KindCallbackAction:
		for _, p := range t.prefixes {
			if strings.HasPrefix(ev.Payload.Text, p.prefix) {
				return p.entry, true
			}
		}
	case event.KindPaymentNotification:
		if e, ok := t.notifications[ev.Payload.NotificationType]; ok {
			return e, true
		}
	}
	e, ok := t.fallbacks[ev.Kind]
	return e, ok
}

func (t *Table) addressedToUs(target string) bool {
	return target == "" || t.bot == "" || strings.EqualFold(target, t.bot)
}

// ParseCommand splits "/name@bot args" into the lower-cased command name and
// the bot it is addressed to, which is empty when there is no "@" suffix.
func ParseCommand(text string) (name, target string, ok bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	name = strings.TrimPrefix(text, "/")
	if i := strings.IndexAny(name, " \t\n"); i >= 0 {
		name = name[:i]
	}
	if i := strings.IndexByte(name, '@'); i >= 0 {
		name, target = name[:i], name[i+1:]
	}
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), target, true
}

// CommandName extracts the lower-cased command from "/name@bot args".
func CommandName(text string) (string, bool) {
	name, _, ok := ParseCommand(text)
	return name, ok
}

// CommandArgs returns the whitespace-separated arguments after the command.
func CommandArgs(text string) []string {
	fields := strings.Fields(text)
	if len(fields) <= 1 {
		return nil
	}
	return fields[1:]
}
