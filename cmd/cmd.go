// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// processingFlags configure the sort, dedup and version stages for ad-hoc commands.
func processingFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringSliceFlag{
			Name:  "sort",
			Usage: "Sort rule as criterion[:desc], repeatable (e.g. release_date:desc)",
		},
		&cli.StringFlag{
			Name:  "dedupe",
			Usage: "Remove duplicates, keeping the oldest, newest, first or last copy",
		},
		&cli.StringFlag{
			Name:  "versions",
			Usage: "Replace tracks with another release as scope:pick (e.g. artist:oldest)",
		},
	}
}

func outputFlags() []cli.Flag {
	return []cli.Flag{
		&cli.BoolFlag{
			Name:  "json",
			Usage: "Output raw JSON",
		},
		&cli.BoolFlag{
			Name:  "pretty",
			Usage: "Pretty-print output",
			Value: true,
		},
	}
}

// setupCommand handles setup operations for the database and configuration file.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:   "database",
				Usage:  "Initialize database and run migrations",
				Action: r.SetupDatabase,
			},
			{
				Name:   "config",
				Usage:  "Write a configuration file from the template",
				Action: r.SetupConfig,
			},
		},
	}
}

// authCommand runs the Spotify authorization flow
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with Spotify using OAuth2",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "timeout",
				Usage: "How long to wait for the browser callback",
			},
			&cli.BoolFlag{
				Name:  "status",
				Usage: "Show the signed-in user instead of signing in",
			},
		},
		Action: r.Auth,
	}
}

// configsCommand manages dynamic playlist configs
func configsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "configs",
		Aliases: []string{"config", "cfg"},
		Usage:   "Manage dynamic playlist configs",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List configs",
				Flags:  outputFlags(),
				Action: r.ConfigsList,
			},
			{
				Name:      "show",
				Usage:     "Show one config",
				ArgsUsage: "<name|id>",
				Flags:     outputFlags(),
				Action:    r.ConfigsShow,
			},
			{
				Name:  "create",
				Usage: "Create a config from flags or a YAML file",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "file",
						Usage: "YAML file holding one config",
					},
					&cli.StringFlag{
						Name:  "name",
						Usage: "Config name",
					},
					&cli.StringFlag{
						Name:  "target",
						Usage: "Target playlist ID or URL",
					},
					&cli.StringSliceFlag{
						Name:  "source",
						Usage: "Source playlist ID or URL, repeatable",
					},
					&cli.BoolFlag{
						Name:  "liked",
						Usage: "Include liked songs as a source",
					},
					&cli.StringFlag{
						Name:  "mode",
						Usage: "Update mode: replace, merge or append",
						Value: "replace",
					},
					&cli.IntFlag{
						Name:  "sample",
						Usage: "Randomly sample this many tracks from each source",
					},
					&cli.StringSliceFlag{
						Name:  "blacklist",
						Usage: "Drop tracks whose title or artist contains this keyword, repeatable",
					},
					&cli.BoolFlag{
						Name:  "exclude-liked",
						Usage: "Drop tracks already in liked songs",
					},
					&cli.BoolFlag{
						Name:  "disabled",
						Usage: "Create the config disabled",
					},
				}, processingFlags()...),
				Action: r.ConfigsCreate,
			},
			{
				Name:      "delete",
				Usage:     "Delete a config and its schedules",
				ArgsUsage: "<name|id>",
				Action:    r.ConfigsDelete,
			},
			{
				Name:  "export",
				Usage: "Export every config to YAML",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "output",
						Aliases: []string{"o"},
						Usage:   "Output file path",
					},
				},
				Action: r.ConfigsExport,
			},
			{
				Name:      "import",
				Usage:     "Import configs from YAML",
				ArgsUsage: "<path>",
				Action:    r.ConfigsImport,
			},
		},
	}
}

// runCommand runs a config now
func runCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a config now",
		ArgsUsage: "<name|id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "review",
				Usage: "Review the proposed changes before anything is written",
			},
		},
		Action: r.Run,
	}
}

// previewCommand computes changes without writing
func previewCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "preview",
		Usage:     "Compute a change set without writing",
		ArgsUsage: "[name|id]",
		Flags: append(append([]cli.Flag{
			&cli.StringFlag{
				Name:  "playlist",
				Usage: "Clean up this playlist in place instead of running a config",
			},
			&cli.StringFlag{
				Name:    "csv",
				Usage:   "Write the proposed track list as CSV to this path",
				Aliases: []string{"o"},
			},
		}, processingFlags()...), outputFlags()...),
		Action: r.Preview,
	}
}

// approveCommand applies a pending change set
func approveCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "approve",
		Usage:     "Apply a pending change set",
		ArgsUsage: "<change-set-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "all",
				Usage: "Approve every change",
			},
			&cli.StringSliceFlag{
				Name:  "ids",
				Usage: "Approve only these change ids",
			},
			&cli.BoolFlag{
				Name:  "review",
				Usage: "Pick changes interactively",
			},
		},
		Action: r.Approve,
	}
}

func cancelCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "cancel",
		Usage:     "Discard a pending change set",
		ArgsUsage: "<change-set-id>",
		Action:    r.Cancel,
	}
}

// restoreCommand writes a snapshot back to its playlist
func restoreCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "restore",
		Usage:     "Restore a playlist from a snapshot",
		ArgsUsage: "<snapshot-id>",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:    "yes",
				Aliases: []string{"y"},
				Usage:   "Skip the confirmation prompt",
			},
		},
		Action: r.Restore,
	}
}

func snapshotsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "snapshots",
		Usage: "Inspect stored playlist snapshots",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List snapshots, newest first",
				Flags: append([]cli.Flag{
					&cli.StringFlag{
						Name:  "playlist",
						Usage: "Only snapshots of this playlist ID or URL",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of snapshots to list",
						Value: 20,
					},
				}, outputFlags()...),
				Action: r.SnapshotsList,
			},
		},
	}
}

// schedulesCommand manages cron schedules
func schedulesCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "schedules",
		Aliases: []string{"schedule"},
		Usage:   "Manage cron schedules",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List schedules by next activation",
				Flags:  outputFlags(),
				Action: r.SchedulesList,
			},
			{
				Name:      "add",
				Usage:     "Schedule a config",
				ArgsUsage: "<name|id> <cron expression>",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "disabled",
						Usage: "Create the schedule disabled",
					},
				},
				Action: r.SchedulesAdd,
			},
			{
				Name:      "edit",
				Usage:     "Change a schedule's cron expression",
				ArgsUsage: "<schedule-id> <cron expression>",
				Action:    r.SchedulesEdit,
			},
			{
				Name:      "remove",
				Usage:     "Remove a schedule",
				ArgsUsage: "<schedule-id>",
				Action:    r.SchedulesRemove,
			},
			{
				Name:      "enable",
				Usage:     "Enable a schedule",
				ArgsUsage: "<schedule-id>",
				Action:    r.SchedulesEnable,
			},
			{
				Name:      "disable",
				Usage:     "Disable a schedule",
				ArgsUsage: "<schedule-id>",
				Action:    r.SchedulesDisable,
			},
		},
	}
}

func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "history",
		Usage:     "Show run history",
		ArgsUsage: "[name|id]",
		Flags: append([]cli.Flag{
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of runs to list",
				Value: 20,
			},
		}, outputFlags()...),
		Action: r.History,
	}
}

// ignoresCommand manages rejected replacements
func ignoresCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "ignores",
		Usage: "Manage rejected changes that are never proposed again",
		Commands: []*cli.Command{
			{
				Name:   "list",
				Usage:  "List ignore entries",
				Flags:  outputFlags(),
				Action: r.IgnoresList,
			},
			{
				Name:  "clear",
				Usage: "Remove every ignore entry",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:    "yes",
						Aliases: []string{"y"},
						Usage:   "Skip the confirmation prompt",
					},
				},
				Action: r.IgnoresClear,
			},
		},
	}
}

// scanCommand cleans up many playlists in one pass
func scanCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "scan",
		Usage: "Clean up several playlists in one pass",
		Flags: append([]cli.Flag{
			&cli.StringSliceFlag{
				Name:  "playlists",
				Usage: "Playlist IDs or URLs to scan, comma separated (default: every playlist)",
			},
			&cli.BoolFlag{
				Name:  "apply",
				Usage: "Write every change instead of leaving change sets for review",
			},
			&cli.FloatFlag{
				Name:  "rate",
				Usage: "Playlists started per second",
				Value: 2,
			},
		}, processingFlags()...),
		Action: r.Scan,
	}
}

func daemonCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "daemon",
		Usage:  "Run scheduled configs until interrupted",
		Action: r.Daemon,
	}
}

func governorCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "governor",
		Usage: "Rate-limit governor commands",
		Commands: []*cli.Command{
			{
				Name:   "status",
				Usage:  "Show the current cooldown window",
				Action: r.GovernorStatus,
			},
		},
	}
}
