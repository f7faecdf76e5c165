package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"learnhub/internal/leaderboard"
	"learnhub/internal/repository"
	"learnhub/internal/service"
)

var (
	boardTrack  string
	boardPeriod string
	boardLimit  int
)

var leaderboardCmd = &cobra.Command{
	Use:   "leaderboard",
	Short: "Print the global or a track leaderboard",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}

		q := leaderboard.Query{
			Scope:  leaderboard.ScopeGlobal,
			Period: leaderboard.Period(boardPeriod),
			Limit:  boardLimit,
		}
		if boardTrack != "" {
			track, err := repository.NewStore(db).Tracks.GetTrackBySlug(boardTrack)
			if err != nil {
				return err
			}
			if track == nil {
				return fmt.Errorf("track %q not found", boardTrack)
			}
			q.Scope, q.TrackID = leaderboard.ScopeTrack, track.ID
		}

		// A throwaway cache: the CLI always reads fresh rows.
		lb := service.NewLeaderboardService(repository.NewSnapshotRepository(db), leaderboard.NewMemoryCache(0), app.log)
		entries, err := lb.GetLeaderboard(cmd.Context(), q)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RANK\tUSER\tLEVEL\tSCORE\tPROGRESS")
		for _, e := range entries {
			progress := "-"
			if q.Scope == leaderboard.ScopeTrack {
				progress = fmt.Sprintf("%d%%", e.Progress)
			}
			fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n", e.Rank, e.Username, e.Level, e.Score, progress)
		}
		return tw.Flush()
	},
}

func init() {
	leaderboardCmd.Flags().StringVar(&boardTrack, "track", "", "track slug (default: global board)")
	leaderboardCmd.Flags().StringVar(&boardPeriod, "period", string(leaderboard.PeriodAllTime), "weekly, monthly or all-time")
	leaderboardCmd.Flags().IntVar(&boardLimit, "limit", service.DefaultLeaderboardLimit, "number of entries")
	rootCmd.AddCommand(leaderboardCmd)
}
