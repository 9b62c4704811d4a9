// flexify is the command-line client of the Flexify services marketplace. It
// also serves an in-memory sandbox of the marketplace API for local use.
package main

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"flexify/config"
	"flexify/utils"

	"github.com/spf13/pflag"
)

type command struct {
	summary string
	run     func(a *app, args []string) error
}

var commands = map[string]command{
	"sandbox":  {"serve the in-memory marketplace API and push channel", runSandbox},
	"register": {"create an account and sign in", runRegister},
	"login":    {"sign in and persist the session", runLogin},
	"logout":   {"sign out and clear the persisted session", runLogout},
	"whoami":   {"show the persisted session", runWhoami},
	"watch":    {"stream notifications for the signed-in account", runWatch},
	"book":     {"create a booking with the top recommended worker", runBook},
	"bookings": {"list bookings and, for providers, change their status", runBookings},
	"admin":    {"moderate accounts and provider verification", runAdmin},
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(argv []string) error {
	global := pflag.NewFlagSet("flexify", pflag.ContinueOnError)
	global.SetInterspersed(false)
	global.String("env", "", "environment (development or production)")
	global.String("log-level", "", "log level in production")
	global.String("api-base", "", "versioned API base URL")
	global.String("socket-url", "", "push channel URL")
	global.String("redis-addr", "", "Redis address; empty keeps the session in a file")
	global.String("session-namespace", "", "session profile name")
	global.String("session-file", "", "session file when Redis is not used")
	global.BoolP("help", "h", false, "show help")

	if err := global.Parse(argv); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			printUsage(global)
			return nil
		}
		return err
	}
	args := global.Args()
	if help, _ := global.GetBool("help"); help || len(args) == 0 {
		printUsage(global)
		return nil
	}
	cmd, ok := commands[args[0]]
	if !ok {
		printUsage(global)
		return fmt.Errorf("unknown command %q", args[0])
	}

	config.LoadConfig(global)
	logger := utils.GetLogger()
	defer logger.Sync()

	a := newApp(logger)
	defer a.close()
	return cmd.run(a, args[1:])
}

func printUsage(global *pflag.FlagSet) {
	fmt.Fprintln(os.Stderr, "usage: flexify [global flags] <command> [flags]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(os.Stderr, "  %-9s %s\n", name, commands[name].summary)
	}
	fmt.Fprintln(os.Stderr, "\nglobal flags:")
	fmt.Fprint(os.Stderr, global.FlagUsages())
}
