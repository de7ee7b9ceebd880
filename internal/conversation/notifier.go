package conversation

import (
	"context"
	"fmt"

	"github.com/hammamikhairi/julian/internal/domain"
	"github.com/hammamikhairi/julian/internal/logger"
)

// Compile-time interface check.
var _ domain.Notifier = (*CLINotifier)(nil)

// ANSI escape codes for terminal formatting.
const (
	reset = "\033[0m"
	bold  = "\033[1m"
	red   = "\033[31m"
	cyan  = "\033[36m"
)

// PrintFunc is a function used to print formatted output.
// Matches the signature of both fmt.Printf and display.UI.Printf.
type PrintFunc func(format string, a ...any)

// CLINotifier writes assistant lines to stdout with ANSI formatting,
// prefixed with the assistant's name.
type CLINotifier struct {
	log     *logger.Logger
	printFn PrintFunc
	prefix  string
}

// NewCLINotifier creates a stdout-based notifier.
// If printFn is nil, fmt.Printf is used.
func NewCLINotifier(log *logger.Logger, printFn PrintFunc) *CLINotifier {
	if printFn == nil {
		printFn = func(format string, a ...any) {
			fmt.Printf(format+"\n", a...)
		}
	}
	return &CLINotifier{log: log, printFn: printFn, prefix: "Julian: "}
}

// SetPrefix changes the label printed before each line.
func (n *CLINotifier) SetPrefix(prefix string) { n.prefix = prefix }

// Notify prints a normal notification.
func (n *CLINotifier) Notify(ctx context.Context, message string) error {
	n.log.Debug("notify: %s", message)
	n.printFn("%s%s%s%s%s", cyan, bold, n.prefix, message, reset)
	return nil
}

// NotifyUrgent prints an urgent notification in bold red.
func (n *CLINotifier) NotifyUrgent(ctx context.Context, message string) error {
	n.log.Debug("notify-urgent: %s", message)
	n.printFn("%s%s%s%s%s", red, bold, n.prefix, message, reset)
	return nil
}
