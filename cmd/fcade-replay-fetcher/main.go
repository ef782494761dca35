package main

import (
	"context"
	"errors"
	"fightcade-stats/cmd/fcade-replay-fetcher/replaystats"
	"fightcade-stats/cmd/fcade-replay-fetcher/replaystore"
	"fightcade-stats/cmd/fcade-replay-fetcher/rqlitereplaystore"
	"fightcade-stats/fcadehttp"
	"fightcade-stats/fcadehttprpc"
	"fightcade-stats/quarkidutil"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

type Store interface {
	InsertGames(ctx context.Context, list *replaystore.GameList) error
	GetGames(ctx context.Context) (*replaystore.GameList, error)
	InsertReplays(ctx context.Context, replays []replaystore.StoredReplay) error
	GetLatestReplayMilli(ctx context.Context, gameID string) (int64, error)
	GetReplaysForGame(ctx context.Context, gameID string) ([]replaystore.StoredReplay, error)
	InsertSeenPlayers(ctx context.Context, lastSeen map[string]time.Time) error
	GetStaleUsers(ctx context.Context, threshold time.Time, limit uint32) ([]string, error)
	InsertUsers(ctx context.Context, users []replaystore.StoredUser) error
	GetUncheckedVideoReplays(ctx context.Context, limit uint32) ([]string, error)
	InsertVideoLinks(ctx context.Context, links []replaystore.VideoLink) error
	InsertPlayerGameStats(ctx context.Context, stats map[replaystore.PlayerGameKey]replaystore.PlayerGameStats) error
}

type Fetcher struct {
	client *fcadehttprpc.Client
	store  Store

	gameIDs []string
	games   *replaystore.GameList

	stdout io.Writer
}

func (f *Fetcher) UpdateGames(ctx context.Context) error {
	list := &replaystore.GameList{
		Updated: time.Now(),
		Games:   make([]fcadehttp.Game, 0, len(f.gameIDs)),
	}

	for _, gameID := range f.gameIDs {
		ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		game, err := f.client.GetGame(ctx, gameID)
		cancel()

		if err != nil {
			return fmt.Errorf("get game %q: %w", gameID, err)
		}

		list.Games = append(list.Games, *game)
	}

	if err := f.store.InsertGames(ctx, list); err != nil {
		return fmt.Errorf("insert games: %w", err)
	}

	f.games = list

	fmt.Fprintf(f.stdout, "updated %d games\n", len(list.Games))

	return nil
}

func replayDate(r fcadehttp.Replay) time.Time {
	if r.Date != 0 {
		return time.UnixMilli(r.Date)
	}

	// some generations of the service omit the date field; the challenge
	// id carries the session timestamp either way
	ms, err := quarkidutil.TimeMilliFromID(r.QuarkID)
	if err != nil {
		return time.Time{}
	}

	return time.UnixMilli(ms)
}

func (f *Fetcher) fetchNewReplays(ctx context.Context) (bool, error) {
	const pagesize = 100

	found := 0

	for _, gameID := range f.gameIDs {
		since, err := f.store.GetLatestReplayMilli(ctx, gameID)
		if err != nil {
			return false, fmt.Errorf("get latest replay time: %w", err)
		}

		opts := fcadehttp.SearchQuarksOptions{
			GameID: gameID,
			Limit:  pagesize,
			Since:  since,
		}

		rctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		replays, err := f.client.GetReplays(rctx, opts)
		cancel()

		if err != nil {
			return false, fmt.Errorf("get replays for %q: %w", gameID, err)
		}

		if len(replays) == 0 {
			continue
		}

		stored := make([]replaystore.StoredReplay, 0, len(replays))
		seen := make(map[string]time.Time, len(replays)*2)

		for _, r := range replays {
			date := replayDate(r)

			stored = append(stored, replaystore.StoredReplay{
				QuarkID: r.QuarkID,
				GameID:  gameID,
				Date:    date,
				Replay:  r,
			})

			for i := range r.Players {
				name := r.Players[i].Name
				if date.After(seen[name]) {
					seen[name] = date
				}
			}
		}

		if err := f.store.InsertReplays(ctx, stored); err != nil {
			return false, fmt.Errorf("insert replays: %w", err)
		}

		if err := f.store.InsertSeenPlayers(ctx, seen); err != nil {
			return false, fmt.Errorf("insert seen players: %w", err)
		}

		found += len(stored)
	}

	fmt.Fprintf(f.stdout, "stored %d new replays\n", found)

	return found > 0, nil
}

func (f *Fetcher) updatePlayerStats(ctx context.Context) error {
	for _, gameID := range f.gameIDs {
		replays, err := f.store.GetReplaysForGame(ctx, gameID)
		if err != nil {
			return fmt.Errorf("get replays for game: %w", err)
		}

		stats := replaystats.AggregatePlayerGameStats(replays)

		if err := f.store.InsertPlayerGameStats(ctx, stats); err != nil {
			return fmt.Errorf("insert player game stats: %w", err)
		}

		fmt.Fprintf(f.stdout, "aggregated %d player stats for %s\n", len(stats), gameID)
	}

	return nil
}

func (f *Fetcher) updateStaleUsers(ctx context.Context) (bool, error) {
	const batch = 64

	threshold := time.Now().Add(-24 * time.Hour)

	stale, err := f.store.GetStaleUsers(ctx, threshold, batch)
	if err != nil {
		return false, fmt.Errorf("get stale users: %w", err)
	}

	fmt.Fprintf(f.stdout, "found %d stale users\n", len(stale))

	if len(stale) == 0 {
		return false, nil
	}

	in := make(chan string, len(stale))
	out := make(chan replaystore.StoredUser, len(stale))
	defer close(out)

	g, ctx := errgroup.WithContext(ctx)

	updated := time.Now()

	for i := 0; i < 8; i++ {
		g.Go(func() error {
			for username := range in {
				ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
				user, err := f.client.GetUser(ctx, username)
				cancel()

				if err != nil {
					var rerr *fcadehttprpc.RemoteError

					if errors.As(err, &rerr) && rerr.UserNotFound() {
						out <- replaystore.StoredUser{
							Username: username,
							Updated:  updated,
							Missing:  true,
						}

						continue
					}

					return fmt.Errorf("get user: %w", err)
				}

				out <- replaystore.StoredUser{
					Username: username,
					Updated:  updated,
					User:     user,
				}
			}

			return nil
		})
	}

	for _, username := range stale {
		in <- username
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	done := ctx.Done()

	users := make([]replaystore.StoredUser, 0, len(stale))

loop:
	for i := 0; i < len(stale); i++ {
		select {
		case <-done:
			break loop
		case u := <-out:
			users = append(users, u)
		}
	}

	close(in)

	if err := g.Wait(); err != nil {
		return false, fmt.Errorf("errgroup: %w", err)
	}

	if err := f.store.InsertUsers(ctx, users); err != nil {
		return false, fmt.Errorf("insert users: %w", err)
	}

	fmt.Fprintf(f.stdout, "updated %d users\n", len(users))

	return true, nil
}

func (f *Fetcher) resolveVideoLinks(ctx context.Context) (bool, error) {
	const batch = 64

	ids, err := f.store.GetUncheckedVideoReplays(ctx, batch)
	if err != nil {
		return false, fmt.Errorf("get unchecked video replays: %w", err)
	}

	if len(ids) == 0 {
		return false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	urls, err := f.client.GetVideoURLs(ctx, ids)
	if err != nil {
		return false, fmt.Errorf("get video urls: %w", err)
	}

	checked := time.Now()

	links := make([]replaystore.VideoLink, 0, len(ids))

	// ids the video service does not know get an empty row so they are
	// not asked about again
	for _, id := range ids {
		links = append(links, replaystore.VideoLink{
			QuarkID: id,
			URL:     urls[id],
			Checked: checked,
		})
	}

	if err := f.store.InsertVideoLinks(ctx, links); err != nil {
		return false, fmt.Errorf("insert video links: %w", err)
	}

	fmt.Fprintf(f.stdout, "checked %d video links, %d resolved\n", len(ids), len(urls))

	return true, nil
}

func (f *Fetcher) Run(ctx context.Context) (bool, error) {
	if time.Since(f.games.Updated) > 24*time.Hour {
		fmt.Fprintln(f.stdout, "games data out-of-date, updating")

		if err := f.UpdateGames(ctx); err != nil {
			return false, fmt.Errorf("update games: %w", err)
		}
	}

	newReplays, err := f.fetchNewReplays(ctx)
	if err != nil {
		return false, fmt.Errorf("fetch new replays: %w", err)
	}

	if newReplays {
		if err := f.updatePlayerStats(ctx); err != nil {
			return false, fmt.Errorf("update player stats: %w", err)
		}
	}

	newUsers, err := f.updateStaleUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("update stale users: %w", err)
	}

	newVideos, err := f.resolveVideoLinks(ctx)
	if err != nil {
		return false, fmt.Errorf("resolve video links: %w", err)
	}

	return newReplays || newUsers || newVideos, nil
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := NewFlagSet("fetcher")

	var rqliteaddr string
	var gameids string
	var initialize bool

	flags.StringVar(&rqliteaddr, "rqlite-address", "", "")
	flags.StringVar(&gameids, "gameids", "", "")
	flags.BoolVar(&initialize, "initialize", false, "")

	ok, err := Parse(flags, args, stderr, "")
	if err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	if !ok {
		return nil
	}

	if rqliteaddr == "" {
		return fmt.Errorf("-rqlite-address must be set")
	}

	if gameids == "" {
		return fmt.Errorf("-gameids must be set")
	}

	gameIDs := strings.Split(gameids, ",")

	ctx := context.Background()
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGQUIT, syscall.SIGKILL, syscall.SIGTERM)
	defer cancel()

	httpc := http.Client{}

	client := fcadehttprpc.NewClient(httpc, "", "")

	store, err := rqlitereplaystore.New(rqliteaddr)
	if err != nil {
		return fmt.Errorf("new replay store: %w", err)
	}

	if initialize {
		if err := store.CreateSchema(ctx); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}

	games, err := store.GetGames(ctx)
	if err != nil {
		return fmt.Errorf("get games: %w", err)
	}

	f := &Fetcher{
		client:  client,
		store:   store,
		gameIDs: gameIDs,
		games:   games,
		stdout:  stdout,
	}

	done := ctx.Done()

	var retries uint8

	timer := time.NewTimer(0)
	sleep := 60 * time.Second

	for i := 0; ; i++ {
		select {
		case <-done:
			fmt.Fprintln(stdout, "Received exit signal, shutting down")
			return nil
		case <-timer.C:
			fmt.Fprintf(stdout, "running iteration %d\n", i)

			ok, err := f.Run(ctx)
			if err != nil {
				fmt.Fprintf(stdout, "error during iteration: %s\n", err)
				retries++
				timer.Reset(sleep * time.Duration(retries+1))
				continue
			}

			retries = 0

			fmt.Fprintf(stdout, "finished iteration %d\n", i)

			if ok {
				timer.Reset(0)
			} else {
				timer.Reset(sleep)
			}
		}
	}
}

func NewFlagSet(prog string) *flag.FlagSet {
	f := flag.NewFlagSet(prog, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Usage = nil

	return f
}

func Parse(flags *flag.FlagSet, args []string, stderr io.Writer, usage string) (bool, error) {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, usage)
			return false, nil
		}

		return false, fmt.Errorf("argument parsing failure: %w\n\n%s", err, usage)
	}

	return true, nil
}
