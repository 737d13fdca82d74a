// Package notify provides NotificationSink implementations. Alerts are fire
// and forget; no sink ever reports failure to the caller.
package notify

import (
	"context"
	"log"
	"os/exec"
	"strings"
	"time"

	"github.com/warp/worklog-engine/worklog"
)

// LogSink writes alerts to the process log. The default sink everywhere a
// real notifier is not configured.
type LogSink struct{}

func (LogSink) Notify(title, body string) {
	log.Printf("[Notify] %s: %s", title, body)
}

// CommandSink shells out to a desktop notifier. Argv is a command template;
// the placeholders {title} and {body} are substituted into each argument
// before the command runs. Failures are logged and swallowed.
type CommandSink struct {
	Argv    []string
	Timeout time.Duration
}

func (s CommandSink) Notify(title, body string) {
	argv := expandArgv(s.Argv, title, body)
	if len(argv) == 0 {
		log.Printf("[Notify] %s: %s", title, body)
		return
	}

	timeout := s.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := exec.CommandContext(ctx, argv[0], argv[1:]...).Run(); err != nil {
		log.Printf("[Notify] Warning: notifier command failed: %v", err)
	}
}

func expandArgv(argv []string, title, body string) []string {
	out := make([]string, 0, len(argv))
	for _, arg := range argv {
		arg = strings.ReplaceAll(arg, "{title}", title)
		arg = strings.ReplaceAll(arg, "{body}", body)
		out = append(out, arg)
	}
	return out
}

// Fanout delivers each alert to every sink in order.
type Fanout []worklog.NotificationSink

func (f Fanout) Notify(title, body string) {
	for _, sink := range f {
		sink.Notify(title, body)
	}
}

var (
	_ worklog.NotificationSink = LogSink{}
	_ worklog.NotificationSink = CommandSink{}
	_ worklog.NotificationSink = Fanout{}
)
