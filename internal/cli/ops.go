package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"campus-queue/internal/auth"
	"campus-queue/internal/models"
	"campus-queue/internal/queue"
	"campus-queue/internal/sweeper"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Run the no-show sweep across all queues once",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		opts := []queue.Option{queue.WithLogger(logger)}
		reaper := queue.NewReaper(db, queue.NewScheduler(db, opts...), cfg.DefaultNoShowTimeoutDuration(), opts...)
		sw, err := sweeper.New(reaper, cfg.SweepSchedule, sweeper.WithLogger(logger))
		if err != nil {
			return err
		}

		sum, err := sw.RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		return renderSummary(cmd.OutOrStdout(), sum)
	},
}

var queuesCmd = &cobra.Command{
	Use:   "queues",
	Short: "List queues",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer db.Close() // nolint:errcheck // best-effort cleanup

		queues, err := db.ListQueues(cmd.Context())
		if err != nil {
			return err
		}
		return renderQueues(cmd.OutOrStdout(), queues)
	},
}

var (
	tokenEmail    string
	tokenVerified bool
)

var issueTokenCmd = &cobra.Command{
	Use:   "issue-token <uid>",
	Short: "Print a signed bearer token for uid",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		token, err := auth.NewJWT(cfg.JWTSecret, cfg.JWTTTL()).Issue(models.Account{
			UID:           args[0],
			Email:         strings.ToLower(strings.TrimSpace(tokenEmail)),
			EmailVerified: tokenVerified,
		}, "")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	},
}

func init() {
	issueTokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email claim")
	issueTokenCmd.Flags().BoolVar(&tokenVerified, "verified", true, "email_verified claim")
}

func parseRole(role string) (string, error) {
	role = strings.ToLower(strings.TrimSpace(role))
	if !models.ValidRole(role) {
		return "", fmt.Errorf("invalid role %q: want admin, cashier or student", role)
	}
	return role, nil
}

func renderSummary(w io.Writer, sum sweeper.Summary) error {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.Style().Format.Footer = text.FormatDefault
	t.AppendHeader(table.Row{"Queue", "Processed", "Detail"})

	for _, r := range sum.Results {
		detail := r.Result.Reason
		switch {
		case r.Error != "":
			detail = "error: " + r.Error
		case r.Result.Processed && r.Result.Record != nil:
			detail = "no-show " + r.Result.Record.OwnerID
			if r.Result.Next != nil && r.Result.Next.Serving != nil {
				detail += ", now serving " + r.Result.Next.Serving.OwnerID
			}
		}
		t.AppendRow(table.Row{r.QueueID, r.Result.Processed, detail})
	}
	t.AppendFooter(table.Row{
		fmt.Sprintf("%d queues", sum.Queues),
		fmt.Sprintf("%d processed", sum.Processed),
		fmt.Sprintf("%d failed", sum.Failed),
	})

	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func renderQueues(w io.Writer, queues []models.Queue) error {
	if len(queues) == 0 {
		_, err := fmt.Fprintln(w, "(no queues)")
		return err
	}

	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"ID", "Name", "Server", "Timeout", "Created"})
	for _, q := range queues {
		t.AppendRow(table.Row{
			q.ID,
			q.Name,
			q.ServerEmail,
			(time.Duration(q.NoShowTimeoutSeconds) * time.Second).String(),
			q.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}
