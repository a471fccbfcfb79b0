// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

// uploadCommand uploads files to a notebook and waits for processing.
func uploadCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Aliases:   []string{"up"},
		Usage:     "Upload files to a notebook and wait until they are processed",
		ArgsUsage: "<notebook-id> <file>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output results as JSON",
			},
			&cli.BoolFlag{
				Name:    "quiet",
				Aliases: []string{"q"},
				Usage:   "Only print final results",
			},
		},
		Action: r.Upload,
	}
}

// statusCommand looks up the processing status of a registered material.
func statusCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Show the processing status of a material",
		Arguments: []cli.Argument{
			&cli.StringArg{Name: "material-id"},
		},
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  "json",
				Usage: "Output raw JSON",
			},
		},
		Action: r.Status,
	}
}

// materialsCommand handles material operations
func materialsCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "materials",
		Aliases: []string{"mat"},
		Usage:   "Notebook material operations",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "List the materials of a notebook",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "notebook-id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.MaterialsList,
			},
			{
				Name:  "get",
				Usage: "Show a single material",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "material-id"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Output raw JSON",
					},
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print output",
						Value: true,
					},
				},
				Action: r.MaterialsGet,
			},
			{
				Name:  "delete",
				Usage: "Delete a material",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "material-id"},
				},
				Action: r.MaterialsDelete,
			},
		},
	}
}

// historyCommand shows or exports the local upload history.
func historyCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Show or export the local upload history",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "notebook",
				Usage: "Only show uploads to this notebook",
			},
			&cli.StringFlag{
				Name:  "state",
				Usage: "Only show uploads in this state (uploading, processing, completed, failed)",
			},
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Maximum number of records to return",
				Value: 100,
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, csv, markdown, json",
				Value:   "text",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write the export to a file instead of stdout",
			},
			&cli.StringFlag{
				Name:  "prune",
				Usage: "Delete records not updated within this duration (e.g. 720h) before listing",
			},
		},
		Action: r.History,
	}
}

// apiCommand handles direct API calls for debugging
func apiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "api",
		Usage: "Direct calls to the notebook backend",
		Commands: []*cli.Command{
			{
				Name:  "get",
				Usage: "Direct GET, prints the response body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "pretty",
						Usage: "Pretty-print JSON output",
						Value: true,
					},
				},
				Action: r.APIGet,
			},
			{
				Name:  "post",
				Usage: "Direct POST with JSON body",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "data",
						Aliases:  []string{"d"},
						Usage:    "JSON body to send",
						Required: true,
					},
				},
				Action: r.APIPost,
			},
			{
				Name:  "delete",
				Usage: "Direct DELETE",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Action: r.APIDelete,
			},
		},
	}
}

// setupCommand handles setup operations for configuration and the history database.
func setupCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "setup",
		Usage: "Setup and configuration commands",
		Commands: []*cli.Command{
			{
				Name:  "config",
				Usage: "Write a configuration file from the bundled template",
				Arguments: []cli.Argument{
					&cli.StringArg{Name: "path"},
				},
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "force",
						Usage: "Overwrite an existing file",
					},
				},
				Action: r.SetupConfig,
			},
			{
				Name:    "database",
				Aliases: []string{"db"},
				Usage:   "Initialize the history database and run migrations",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "status",
						Usage: "List applied migrations instead of running them",
					},
					&cli.BoolFlag{
						Name:  "rollback",
						Usage: "Roll back the most recent migration",
					},
				},
				Action: r.SetupDatabase,
			},
		},
	}
}

// tuiCommand returns the top-level TUI command for interactive uploads.
func tuiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:      "tui",
		Aliases:   []string{"interactive", "ui"},
		Usage:     "Upload files with a live progress board",
		ArgsUsage: "<notebook-id> <file>...",
		Action:    r.TUI,
	}
}
