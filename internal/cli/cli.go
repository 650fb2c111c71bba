package cli

import (
	"errors"
	"fmt"
	"os"

	goflags "github.com/jessevdk/go-flags"
)

// commands holds references to all subcommand structs for inspection/testing.
type commands struct {
	Status *StatusCommand
	Report *ReportCommand
	Track  *TrackCommand
	Replay *ReplayCommand
	Prune  *PruneCommand
	Purge  *PurgeCommand
	Export *ExportCommand
	Import *ImportCommand
}

// buildParser constructs the go-flags parser with all subcommands registered.
func buildParser(version string) (*goflags.Parser, *GlobalFlags, *commands) {
	var globals GlobalFlags

	parser := goflags.NewParser(&globals, goflags.Default)
	parser.Name = "dwell"
	parser.LongDescription = "Local time-on-site tracking: per-domain browsing time from browser tab events."

	cmds := &commands{
		Status: &StatusCommand{globals: &globals, version: version},
		Report: &ReportCommand{globals: &globals, version: version},
		Track:  &TrackCommand{globals: &globals, version: version},
		Replay: &ReplayCommand{globals: &globals, version: version},
		Prune:  &PruneCommand{globals: &globals, version: version},
		Purge:  &PurgeCommand{globals: &globals, version: version},
		Export: &ExportCommand{globals: &globals, version: version},
		Import: &ImportCommand{globals: &globals, version: version},
	}

	parser.AddCommand("status", "Show store statistics and daemon state", "Show store statistics, retention state and whether the tracking daemon is running.", cmds.Status)
	parser.AddCommand("report", "Show time per domain", "Show total time, estimated visits and the top domains for today, the last 7 days or the last 30 days.", cmds.Report)
	parser.AddCommand("track", "Start the tracking daemon", "Start the local HTTP daemon that receives browser tab events and records time per domain.", cmds.Track)
	parser.AddCommand("replay", "Replay a JSONL event log", "Feed a recorded JSONL event log through the tracker on a virtual clock.", cmds.Replay)
	parser.AddCommand("prune", "Apply retention pruning", "Remove per-day buckets older than the retention window.", cmds.Prune)
	parser.AddCommand("purge", "Delete ALL dwell data", "Delete ALL dwell data. Destructive operation with safety prompt.", cmds.Purge)
	parser.AddCommand("export", "Export activity data as JSON", "Write the activityData/dailyData/lastCleanup document as JSON.", cmds.Export)
	parser.AddCommand("import", "Import activity data from JSON", "Replace the stored data with an activityData/dailyData/lastCleanup JSON document.", cmds.Import)

	return parser, &globals, cmds
}

// Run is the main entry point for the dwell CLI using os.Args.
func Run(version string) error {
	return RunWithArgs(version, nil)
}

// RunWithArgs parses the given args (or os.Args if nil) and executes the matched subcommand.
func RunWithArgs(version string, args []string) error {
	// Handle --version before parser (go-flags requires a subcommand, but
	// --version is valid without one).
	checkArgs := args
	if checkArgs == nil {
		checkArgs = os.Args[1:]
	}
	for _, arg := range checkArgs {
		if arg == "--version" {
			fmt.Printf("dwell %s\n", version)
			return nil
		}
		if arg == "--" {
			break
		}
	}

	parser, _, _ := buildParser(version)

	var err error
	if args != nil {
		_, err = parser.ParseArgs(args)
	} else {
		_, err = parser.Parse()
	}

	if err != nil {
		var flagsErr *goflags.Error
		if errors.As(err, &flagsErr) && flagsErr.Type == goflags.ErrHelp {
			return nil
		}
		return err
	}

	return nil
}
