package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/edgealpha/artifact-agent/internal/activitylog"
	"github.com/edgealpha/artifact-agent/internal/store"
)

func newArtifactsCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "artifacts",
		Short: "Inspect saved artifacts and agent activity",
	}

	var (
		owner  string
		limit  int
		asJSON bool
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List an owner's artifacts, newest first",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openReadOnlyApp(f)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			recs, err := a.db.ListArtifacts(commandContext(cmd), owner, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONTo(cmd.OutOrStdout(), recs)
			}
			printArtifactRows(cmd.OutOrStdout(), recs)
			return nil
		},
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one artifact",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openReadOnlyApp(f)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			rec, err := a.db.GetArtifact(commandContext(cmd), owner, args[0])
			if err != nil {
				return err
			}
			if rec == nil {
				return fmt.Errorf("artifact %s not found for owner %s", args[0], owner)
			}
			if asJSON {
				return writeJSONTo(cmd.OutOrStdout(), rec)
			}
			w := cmd.OutOrStdout()
			printArtifactRows(w, []store.ArtifactRecord{*rec})
			fmt.Fprintln(w)
			return printFields(w, rec.Fields)
		},
	}

	var fromMirror bool
	activity := &cobra.Command{
		Use:   "activity",
		Short: "List an owner's recorded agent activity",
		RunE: func(cmd *cobra.Command, _ []string) error {
			var entries []activitylog.Entry
			if fromMirror {
				a, err := loadApp(f, cmd.ErrOrStderr())
				if err != nil {
					return err
				}
				fw, err := activitylog.NewFileWriter(activitylog.FileOptions{Logger: a.log, StateDir: a.paths.StateDir})
				if err != nil {
					return err
				}
				defer func() { _ = fw.Close() }()
				if entries, err = fw.List(owner, limit); err != nil {
					return err
				}
			} else {
				a, err := openReadOnlyApp(f)
				if err != nil {
					return err
				}
				defer func() { _ = a.Close() }()
				recs, err := a.db.ListActivity(commandContext(cmd), owner, limit)
				if err != nil {
					return err
				}
				for _, r := range recs {
					entries = append(entries, activitylog.Entry{
						CreatedAt:   r.CreatedAt,
						OwnerID:     r.OwnerID,
						AgentID:     r.AgentID,
						ActionType:  r.ActionType,
						Description: r.Description,
						Metadata:    r.Metadata,
					})
				}
			}
			if asJSON {
				return writeJSONTo(cmd.OutOrStdout(), entries)
			}
			w := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(w, dimLabel("no activity"))
			}
			for _, e := range entries {
				fmt.Fprintf(w, "%s  %-10s  %s  %s\n",
					dimLabel(e.CreatedAt.Local().Format("2006-01-02 15:04:05")),
					e.AgentID, okLabel(e.ActionType), e.Description)
			}
			return nil
		},
	}
	activity.Flags().BoolVar(&fromMirror, "mirror", false, "Read the JSONL activity mirror instead of the database")

	for _, c := range []*cobra.Command{list, show, activity} {
		c.Flags().StringVar(&owner, "owner", "", "Owner (user) id")
		c.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")
		_ = c.MarkFlagRequired("owner")
	}
	list.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	activity.Flags().IntVar(&limit, "limit", 20, "Maximum rows")

	cmd.AddCommand(list, show, activity)
	return cmd
}

func openReadOnlyApp(f *rootFlags) (*app, error) {
	a, err := loadApp(f, os.Stderr)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(a.paths.DBPath); errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("no database at %s (nothing generated yet)", a.paths.DBPath)
	}
	if err := a.openStore(); err != nil {
		return nil, err
	}
	return a, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func requireOwner(owner string) (string, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return "", errors.New("missing --owner")
	}
	return owner, nil
}
