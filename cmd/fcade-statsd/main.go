package main

import (
	"context"
	"embed"
	"errors"
	"fightcade-stats/cmd/fcade-replay-fetcher/replaystore"
	"fightcade-stats/cmd/fcade-replay-fetcher/rqlitereplaystore"
	"fightcade-stats/cmd/fcade-statsd/httpserveutil"
	"fightcade-stats/cmd/fcade-statsd/statsdhttp"
	"fightcade-stats/cmd/fcade-statsd/templateutil"
	"fightcade-stats/fcadehttp"
	"fightcade-stats/fcadehttprpc"
	"flag"
	"fmt"
	"html/template"
	"io"
	"net"
	"net/http"
	"os"
)

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	flags := NewFlagSet("statsd")

	var rqliteaddr string
	var certpath string
	var keypath string
	var port string
	var address string

	flags.StringVar(&rqliteaddr, "rqlite-address", "", "")
	flags.StringVar(&certpath, "cert", "", "")
	flags.StringVar(&keypath, "key", "", "")
	flags.StringVar(&port, "port", "9877", "")
	flags.StringVar(&address, "address", "0.0.0.0", "")

	ok, err := ParseArgs(flags, args, stderr, "")
	if err != nil {
		return fmt.Errorf("parse args: %w", err)
	}

	if !ok {
		return nil
	}

	if rqliteaddr == "" {
		return fmt.Errorf("-rqlite-address must be set")
	}

	mux := http.NewServeMux()

	pt, err := parseTemplates()
	if err != nil {
		return fmt.Errorf("parse templates: %w", err)
	}

	store, err := rqlitereplaystore.New(rqliteaddr)
	if err != nil {
		return fmt.Errorf("new replay store: %w", err)
	}

	httpc := http.Client{}

	client := fcadehttprpc.NewClient(httpc, "", "")

	h := &Handler{
		templates: pt,
		store:     store,
		client:    client,
	}

	httpserveutil.Register(mux, stdout, h)

	addr := fmt.Sprintf("[%s]:%s", address, port)

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}

	if certpath != "" && keypath != "" {
		fmt.Fprintf(stdout, "Listening on tcp with tls at %s\n", listener.Addr().String())

		if err := server.ServeTLS(listener, certpath, keypath); err != nil {
			return fmt.Errorf("listen and serve tls: %w", err)
		}
	} else {
		fmt.Fprintf(stdout, "Listening on tcp at %s\n", listener.Addr().String())

		if err := server.Serve(listener); err != nil {
			return fmt.Errorf("listen and serve: %w", err)
		}
	}

	return nil
}

type Store interface {
	GetGames(ctx context.Context) (*replaystore.GameList, error)
	GetRecentReplays(ctx context.Context, limit uint32) ([]replaystore.StoredReplay, error)
	GetUser(ctx context.Context, username string) (*replaystore.StoredUser, bool, error)
	GetPlayerGameStats(ctx context.Context, username string) ([]replaystore.PlayerGameStats, error)
	GetVideoLink(ctx context.Context, quarkID string) (string, bool, error)
}

type Handler struct {
	client    *fcadehttprpc.Client
	templates PageTemplates
	store     Store
}

var (
	//go:embed static/*
	staticFS embed.FS
)

func rankedLabel(ranked *fcadehttp.FirstTo) string {
	if ranked == nil {
		return ""
	}

	if ranked.Cancelled {
		return "cancelled"
	}

	return fmt.Sprintf("FT%d", ranked.N)
}

func (h *Handler) replayInfos(ctx context.Context, stored []replaystore.StoredReplay) []statsdhttp.ReplayInfo {
	infos := make([]statsdhttp.ReplayInfo, 0, len(stored))

	for _, s := range stored {
		r := s.Replay

		info := statsdhttp.ReplayInfo{
			QuarkID:     r.QuarkID,
			GameID:      s.GameID,
			ChannelName: r.ChannelName,
			Date:        s.Date.UnixMilli(),
			Duration:    r.Duration,
			Emulator:    r.Emulator,
			Ranked:      rankedLabel(r.Ranked),
			Players:     make([]statsdhttp.ReplayPlayer, 0, len(r.Players)),
			ReplayURL:   fcadehttp.ReplayURL(r),
		}

		if url, ok, err := h.store.GetVideoLink(ctx, r.QuarkID); err == nil && ok {
			info.VideoURL = url
		}

		for i := range r.Players {
			p := r.Players[i]

			player := statsdhttp.ReplayPlayer{
				Name:    p.Name,
				Country: p.Country.Display(),
			}

			if p.Rank != nil {
				player.Rank = p.Rank.String()
			}

			if p.Score != nil {
				player.Score = *p.Score
			}

			info.Players = append(info.Players, player)
		}

		infos = append(infos, info)
	}

	return infos
}

const recentReplayLimit = 50

func (h *Handler) serveIndexPage(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	games, err := h.store.GetGames(ctx)
	if err != nil {
		return httpserveutil.InternalError(w, "get games: %w", err)
	}

	replays, err := h.store.GetRecentReplays(ctx, recentReplayLimit)
	if err != nil {
		return httpserveutil.InternalError(w, "get recent replays: %w", err)
	}

	type pageData struct {
		Games   []fcadehttp.Game
		Replays []statsdhttp.ReplayInfo
	}

	data := pageData{
		Games:   games.Games,
		Replays: h.replayInfos(ctx, replays),
	}

	if err := h.templates.index.Execute(w, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	return nil
}

func (h *Handler) playerResponse(ctx context.Context, username string) (*statsdhttp.PlayerResponse, error) {
	stored, ok, err := h.store.GetUser(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get stored user: %w", err)
	}

	response := &statsdhttp.PlayerResponse{
		Username: username,
	}

	switch {
	case ok && stored.Missing:
		response.Missing = true
	case ok:
		response.Ranked = stored.User.Ranked
		response.CreatedAt = stored.User.Date

		if stored.User.LastOnline != nil {
			response.LastOnline = *stored.User.LastOnline
		}
	default:
		// not in the store yet, ask the service directly
		user, err := h.client.GetUser(ctx, username)
		if err != nil {
			var rerr *fcadehttprpc.RemoteError

			if errors.As(err, &rerr) && rerr.UserNotFound() {
				response.Missing = true
				break
			}

			return nil, fmt.Errorf("get user: %w", err)
		}

		response.Ranked = user.Ranked
		response.CreatedAt = user.Date

		if user.LastOnline != nil {
			response.LastOnline = *user.LastOnline
		}
	}

	stats, err := h.store.GetPlayerGameStats(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get player game stats: %w", err)
	}

	response.Stats = make([]statsdhttp.PlayerGameStats, 0, len(stats))

	for _, s := range stats {
		response.Stats = append(response.Stats, statsdhttp.PlayerGameStats{
			GameID:          s.GameID,
			Replays:         s.Replays,
			RankedReplays:   s.RankedReplays,
			CancelledSets:   s.CancelledSets,
			Matches:         s.Matches,
			DurationSeconds: int64(s.Duration.Seconds()),
			LastSeen:        s.LastSeen.UnixMilli(),
			BestRankSeen:    s.BestRankSeen.String(),
			BestRankedScore: s.BestRankedScore,
		})
	}

	return response, nil
}

func (h *Handler) servePlayerPage(w http.ResponseWriter, r *http.Request) error {
	username := r.URL.Query().Get("username")
	if username == "" {
		return httpserveutil.BadRequest(w, "must specify username")
	}

	response, err := h.playerResponse(r.Context(), username)
	if err != nil {
		return httpserveutil.InternalError(w, "player response: %w", err)
	}

	type pageData struct {
		Player *statsdhttp.PlayerResponse
	}

	data := pageData{
		Player: response,
	}

	if err := h.templates.player.Execute(w, data); err != nil {
		return fmt.Errorf("execute template: %w", err)
	}

	return nil
}

func (h *Handler) serveReplaysAPI(w http.ResponseWriter, r *http.Request) error {
	ctx := r.Context()

	replays, err := h.store.GetRecentReplays(ctx, recentReplayLimit)
	if err != nil {
		return httpserveutil.InternalError(w, "get recent replays: %w", err)
	}

	response := statsdhttp.ReplaysResponse{
		Replays: h.replayInfos(ctx, replays),
	}

	return httpserveutil.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) servePlayerAPI(w http.ResponseWriter, r *http.Request) error {
	username := r.URL.Query().Get("username")
	if username == "" {
		return httpserveutil.BadRequest(w, "must specify username")
	}

	response, err := h.playerResponse(r.Context(), username)
	if err != nil {
		return httpserveutil.InternalError(w, "player response: %w", err)
	}

	return httpserveutil.WriteJSON(w, http.StatusOK, response)
}

func (h *Handler) Routes(out io.Writer) map[string]http.Handler {
	return map[string]http.Handler{
		"/":            httpserveutil.Handle(out, h.serveIndexPage),
		"/player":      httpserveutil.Handle(out, h.servePlayerPage),
		"/api/replays": httpserveutil.Handle(out, h.serveReplaysAPI),
		"/api/player":  httpserveutil.Handle(out, h.servePlayerAPI),
	}
}

type PageTemplates struct {
	index  *template.Template
	player *template.Template
}

func parseTemplates() (PageTemplates, error) {
	pt := PageTemplates{}

	groups := []templateutil.TemplateGroup{
		{
			Files: []string{"static/index.html"},
			Add:   func(t *template.Template) { pt.index = t },
		},
		{
			Files: []string{"static/player.html"},
			Add:   func(t *template.Template) { pt.player = t },
		},
	}

	if err := templateutil.ParseFS(staticFS, groups); err != nil {
		return pt, fmt.Errorf("parse fs: %w", err)
	}

	return pt, nil
}

func NewFlagSet(prog string) *flag.FlagSet {
	f := flag.NewFlagSet(prog, flag.ContinueOnError)
	f.SetOutput(io.Discard)
	f.Usage = nil

	return f
}

func ParseArgs(flags *flag.FlagSet, args []string, stderr io.Writer, usage string) (bool, error) {
	if err := flags.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(stderr, usage)
			return false, nil
		}

		return false, fmt.Errorf("argument parsing failure: %w\n\n%s", err, usage)
	}

	return true, nil
}
