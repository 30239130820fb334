package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edgealpha/artifact-agent/internal/scoring"
)

func newScoreCmd(f *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "score",
		Short: "Manage readiness scores and evidence",
	}

	var (
		owner      string
		scores     scoring.Scores
		percentile int
	)
	seed := &cobra.Command{
		Use:   "seed",
		Short: "Record an assessment baseline score for an owner",
		Long: `Records an assessment-sourced score row. Deliverable score signals only
apply to owners who already have a score, so a fresh install needs a
baseline per owner.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, err := requireOwner(owner)
			if err != nil {
				return err
			}
			a, err := loadApp(f, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			if err := a.openStore(); err != nil {
				return err
			}
			overall, err := scoring.NewSignaler(a.db).SeedBaseline(commandContext(cmd), ownerID, scores, percentile)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s baseline for %s: overall %d (%s)\n",
				okLabel("recorded"), ownerID, overall, scoring.Grade(overall))
			return nil
		},
	}
	seed.Flags().StringVar(&owner, "owner", "", "Owner (user) id")
	seed.Flags().IntVar(&scores.Market, "market", 0, "Market score [0,100]")
	seed.Flags().IntVar(&scores.Product, "product", 0, "Product score [0,100]")
	seed.Flags().IntVar(&scores.GTM, "gtm", 0, "Go-to-market score [0,100]")
	seed.Flags().IntVar(&scores.Financial, "financial", 0, "Financial score [0,100]")
	seed.Flags().IntVar(&scores.Team, "team", 0, "Team score [0,100]")
	seed.Flags().IntVar(&scores.Traction, "traction", 0, "Traction score [0,100]")
	seed.Flags().IntVar(&percentile, "percentile", 0, "Optional percentile (0 to omit)")

	var (
		evOwner string
		limit   int
		asJSON  bool
	)
	evidence := &cobra.Command{
		Use:   "evidence",
		Short: "List an owner's score evidence",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ownerID, err := requireOwner(evOwner)
			if err != nil {
				return err
			}
			a, err := openReadOnlyApp(f)
			if err != nil {
				return err
			}
			defer func() { _ = a.Close() }()
			recs, err := a.db.ListEvidence(commandContext(cmd), ownerID, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSONTo(cmd.OutOrStdout(), recs)
			}
			w := cmd.OutOrStdout()
			if len(recs) == 0 {
				fmt.Fprintln(w, dimLabel("no evidence"))
			}
			for _, r := range recs {
				fmt.Fprintf(w, "%-12s  %s  %s  %s\n",
					string(r.Dimension), okLabel(fmt.Sprintf("+%d", r.PointsAwarded)), r.Status, r.Title)
			}
			return nil
		},
	}
	evidence.Flags().StringVar(&evOwner, "owner", "", "Owner (user) id")
	evidence.Flags().IntVar(&limit, "limit", 20, "Maximum rows")
	evidence.Flags().BoolVar(&asJSON, "json", false, "Print as JSON")

	cmd.AddCommand(seed, evidence)
	return cmd
}
