// Command query inspects game databases from the terminal.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/freeeve/pgndb/internal/config"
	"github.com/freeeve/pgndb/internal/logx"
	"github.com/freeeve/pgndb/internal/model"
	"github.com/freeeve/pgndb/internal/store"
)

const dbExt = ".sqlite"

type app struct {
	cfgFile string
	dbName  string
	cfg     config.Config
	log     zerolog.Logger
}

func rootCmd() *cobra.Command {
	a := &app{}
	cmd := &cobra.Command{
		Use:          "query",
		Short:        "Query game databases",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup(cmd)
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default is $HOME/pgndb.yml)")
	pf.StringVar(&a.dbName, "db", "", "database name under <data-dir>/db, or a path to a .sqlite file")
	pf.String("data-dir", "", "data directory")
	pf.String("log-level", "warn", "log level")

	cmd.AddCommand(
		a.listCmd(),
		a.infoCmd(),
		a.renameCmd(),
		a.gamesCmd(),
		a.playersCmd(),
		a.statsCmd(),
	)
	return cmd
}

func (a *app) setup(cmd *cobra.Command) error {
	v := viper.New()
	if f := cmd.Flags().Lookup("data-dir"); f != nil && f.Changed {
		if err := v.BindPFlag("data_dir", f); err != nil {
			return err
		}
	}
	// Keep the terminal quiet unless asked.
	if f := cmd.Flags().Lookup("log-level"); f != nil {
		if err := v.BindPFlag("log.level", f); err != nil {
			return err
		}
	}
	cfg, err := config.Read(v, a.cfgFile)
	if err != nil {
		return err
	}
	log, err := logx.NewLogger(cfg.Log)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log
	return nil
}

// dbPath resolves --db to a file.
func (a *app) dbPath() (string, error) {
	if a.dbName == "" {
		return "", errors.New("--db is required")
	}
	if strings.ContainsRune(a.dbName, os.PathSeparator) || strings.HasSuffix(a.dbName, dbExt) {
		return a.dbName, nil
	}
	return filepath.Join(a.cfg.DBDir(), a.dbName+dbExt), nil
}

func (a *app) open(ctx context.Context) (*store.Store, error) {
	path, err := a.dbPath()
	if err != nil {
		return nil, err
	}
	return store.Open(ctx, path, a.log)
}

func newTable(w io.Writer, header ...any) *tablewriter.Table {
	t := tablewriter.NewWriter(w)
	t.Header(header...)
	return t
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List databases in the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			paths, err := filepath.Glob(filepath.Join(a.cfg.DBDir(), "*"+dbExt))
			if err != nil {
				return err
			}
			sort.Strings(paths)

			t := newTable(cmd.OutOrStdout(), "Name", "Title", "Games", "Players", "Size")
			for _, p := range paths {
				info, err := store.Info(cmd.Context(), p, a.log)
				if err != nil {
					a.log.Warn().Err(err).Str("db", p).Msg("skip unreadable database")
					continue
				}
				if err := t.Append([]string{
					strings.TrimSuffix(filepath.Base(p), dbExt),
					info.Title,
					humanize.Comma(info.GameCount),
					humanize.Comma(info.PlayerCount),
					humanize.Bytes(uint64(info.StorageSize)),
				}); err != nil {
					return err
				}
			}
			return t.Render()
		},
	}
}

func (a *app) infoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Show title, counts and size of a database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path, err := a.dbPath()
			if err != nil {
				return err
			}
			info, err := store.Info(cmd.Context(), path, a.log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "title:   %s\n", info.Title)
			fmt.Fprintf(out, "file:    %s\n", info.Description)
			fmt.Fprintf(out, "games:   %s\n", humanize.Comma(info.GameCount))
			fmt.Fprintf(out, "players: %s\n", humanize.Comma(info.PlayerCount))
			fmt.Fprintf(out, "size:    %s\n", humanize.Bytes(uint64(info.StorageSize)))
			return nil
		},
	}
}

func (a *app) renameCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rename <title>",
		Short: "Set the database title",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()
			return s.SetTitle(cmd.Context(), args[0])
		},
	}
}

func (a *app) gamesCmd() *cobra.Command {
	var (
		q                             model.GameQuery
		sides, speed, outcome, sortBy string
		range1, range2                string
		limit, offset                 int64
	)
	cmd := &cobra.Command{
		Use:   "games",
		Short: "Search games",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := buildGameQuery(cmd, &q, sides, speed, outcome, sortBy, range1, range2, limit, offset); err != nil {
				return err
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := s.Games(cmd.Context(), q)
			if err != nil {
				return err
			}

			t := newTable(cmd.OutOrStdout(), "ID", "Date", "White", "Elo", "Black", "Elo", "Speed", "Result", "Plies")
			for _, row := range resp.Data {
				g := row.Game
				speedText := "-"
				if g.Speed != nil {
					speedText = g.Speed.String()
				}
				if err := t.Append([]string{
					strconv.FormatInt(g.ID, 10),
					g.Date,
					row.White.Name,
					rating(g.WhiteRating),
					row.Black.Name,
					rating(g.BlackRating),
					speedText,
					g.Outcome.String(),
					strconv.Itoa(len(g.MoveList())),
				}); err != nil {
					return err
				}
			}
			if err := t.Render(); err != nil {
				return err
			}
			printCount(cmd.OutOrStdout(), resp.Count)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Player1, "player1", "", "first player name (exact)")
	f.StringVar(&q.Player2, "player2", "", "second player name (exact)")
	f.StringVar(&sides, "sides", "", "whiteblack, blackwhite or any")
	f.StringVar(&range1, "range1", "", "rating range of player1's side, e.g. 1500-2000")
	f.StringVar(&range2, "range2", "", "rating range of player2's side")
	f.StringVar(&speed, "speed", "", "ultrabullet, bullet, blitz, rapid, classical or correspondence")
	f.StringVar(&outcome, "outcome", "", "white, black or draw")
	f.StringVar(&sortBy, "sort", "", "date, rating, speed or outcome")
	f.Int64Var(&limit, "limit", 20, "maximum rows")
	f.Int64Var(&offset, "offset", 0, "rows to skip")
	f.BoolVar(&q.SkipCount, "skip-count", false, "do not count all matches")
	return cmd
}

func buildGameQuery(cmd *cobra.Command, q *model.GameQuery, sides, speed, outcome, sortBy, range1, range2 string, limit, offset int64) error {
	if sides != "" {
		v, err := model.ParseSides(sides)
		if err != nil {
			return err
		}
		q.Sides = &v
	}
	if speed != "" {
		v, err := model.ParseSpeed(speed)
		if err != nil {
			return err
		}
		q.Speed = &v
	}
	if outcome != "" {
		v, err := model.ParseOutcome(outcome)
		if err != nil {
			return err
		}
		q.Outcome = &v
	}
	if sortBy != "" {
		v, err := model.ParseSort(sortBy)
		if err != nil {
			return err
		}
		q.Sort = &v
	}
	if range1 != "" {
		v, err := model.ParseRatingRange(range1)
		if err != nil {
			return err
		}
		q.Range1 = &v
	}
	if range2 != "" {
		v, err := model.ParseRatingRange(range2)
		if err != nil {
			return err
		}
		q.Range2 = &v
	}
	q.Limit = &limit
	if cmd.Flags().Changed("offset") {
		q.Offset = &offset
	}
	return nil
}

func (a *app) playersCmd() *cobra.Command {
	var (
		q             model.PlayerQuery
		limit, offset int64
	)
	cmd := &cobra.Command{
		Use:   "players",
		Short: "List players",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q.Limit = &limit
			if cmd.Flags().Changed("offset") {
				q.Offset = &offset
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			resp, err := s.Players(cmd.Context(), q)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "ID", "Name", "Rating", "Games")
			for _, p := range resp.Data {
				if err := t.Append([]string{
					strconv.FormatInt(p.ID, 10),
					p.Name,
					rating(p.Rating),
					humanize.Comma(p.GameCount),
				}); err != nil {
					return err
				}
			}
			if err := t.Render(); err != nil {
				return err
			}
			printCount(cmd.OutOrStdout(), resp.Count)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&q.Name, "name", "", "case-insensitive name substring")
	f.Int64Var(&limit, "limit", 20, "maximum rows")
	f.Int64Var(&offset, "offset", 0, "rows to skip")
	f.BoolVar(&q.SkipCount, "skip-count", false, "do not count all matches")
	return cmd
}

func (a *app) statsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats <player-id>",
		Short: "Show a player's wins, losses and draws",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid player id %q", args[0])
			}
			s, err := a.open(cmd.Context())
			if err != nil {
				return err
			}
			defer s.Close()

			p, err := s.Player(cmd.Context(), id)
			if err != nil {
				return err
			}
			info, err := s.PlayerGameInfo(cmd.Context(), id)
			if err != nil {
				return err
			}
			t := newTable(cmd.OutOrStdout(), "Player", "Won", "Lost", "Draw")
			if err := t.Append([]string{p.Name, strconv.Itoa(info.Won), strconv.Itoa(info.Lost), strconv.Itoa(info.Draw)}); err != nil {
				return err
			}
			return t.Render()
		},
	}
}

func rating(r *int) string {
	if r == nil {
		return "-"
	}
	return strconv.Itoa(*r)
}

func printCount(w io.Writer, n *int64) {
	if n != nil {
		fmt.Fprintf(w, "%s matches\n", humanize.Comma(*n))
	}
}

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
