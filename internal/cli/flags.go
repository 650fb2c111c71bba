package cli

import (
	"io"

	"github.com/runnerr0/dwell/internal/storage"
)

// GlobalFlags holds flags available to all subcommands.
type GlobalFlags struct {
	Config  string `long:"config" description:"Path to config file (default ~/.config/dwell/config.yaml)" default:""`
	JSON    bool   `long:"json" description:"Output in JSON format"`
	Verbose bool   `long:"verbose" description:"Enable debug logging"`
	Version bool   `long:"version" description:"Show version and exit"`
}

// StatusCommand shows store statistics and whether the daemon is up.
type StatusCommand struct {
	globals *GlobalFlags
	version string
	store   storage.Store
}

// ReportCommand prints totals and the top domains for a range.
type ReportCommand struct {
	Range string `long:"range" short:"r" description:"today | week | month (default from config)"`
	Top   int    `long:"top" description:"Number of domains to list (default from config)"`

	globals *GlobalFlags
	version string
	store   storage.Store
}

// TrackCommand runs the local ingest daemon.
type TrackCommand struct {
	Host    string `long:"host" description:"Override daemon listen host"`
	Port    int    `long:"port" description:"Override daemon port"`
	NoWatch bool   `long:"no-watch" description:"Do not reload capture rules when the config file changes"`

	globals *GlobalFlags
	version string
}

// ReplayCommand feeds a JSONL event log through the tracker.
type ReplayCommand struct {
	DryRun      bool `long:"dry-run" description:"Replay into a throwaway in-memory store and print the report"`
	TickSeconds int  `long:"tick" description:"Override the tick interval in seconds"`

	Args struct {
		File string `positional-arg-name:"FILE" description:"Event log, or - for stdin"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
	store   storage.Store
	stdin   io.Reader
}

// PruneCommand removes day buckets older than the retention window.
type PruneCommand struct {
	OlderThan string `long:"older-than" description:"Override retention period (e.g. 30d, 2w)"`
	Before    string `long:"before" description:"Remove days before this date (YYYY-MM-DD)"`
	DryRun    bool   `long:"dry-run" description:"Show what would be pruned without deleting"`

	globals *GlobalFlags
	version string
	store   storage.Store
}

// PurgeCommand deletes all activity data after confirmation.
type PurgeCommand struct {
	All   bool `long:"all" description:"Required flag to confirm purge intent"`
	Force bool `long:"force" description:"Skip safety confirmation prompt"`

	globals *GlobalFlags
	version string
	store   storage.Store
	stdin   io.Reader
}

// ExportCommand writes the activity document as JSON.
type ExportCommand struct {
	Output string `long:"output" short:"o" description:"Write to file instead of stdout"`

	globals *GlobalFlags
	version string
	store   storage.Store
}

// ImportCommand replaces the stored data with a JSON activity document.
type ImportCommand struct {
	Force bool `long:"force" description:"Replace existing data without asking"`

	Args struct {
		File string `positional-arg-name:"FILE" description:"Activity document, or - for stdin"`
	} `positional-args:"yes" required:"yes"`

	globals *GlobalFlags
	version string
	store   storage.Store
	stdin   io.Reader
}
