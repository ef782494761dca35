package fcadehttprpc_test

import (
	"bytes"
	"context"
	"errors"
	"fightcade-stats/fcadehttp"
	"fightcade-stats/fcadehttprpc"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	json "github.com/goccy/go-json"
)

func fixtureServer(t *testing.T, name string) *httptest.Server {
	t.Helper()

	b, err := os.ReadFile(filepath.Join("testdata", name))
	if err != nil {
		t.Fatalf("read %s: %s", name, err)
	}

	handler := func(w http.ResponseWriter, r *http.Request) {
		io.Copy(w, bytes.NewReader(b))
	}

	return httptest.NewServer(http.HandlerFunc(handler))
}

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	t.Cleanup(cancel)

	return ctx
}

func TestClientGetUser(t *testing.T) {
	ts := fixtureServer(t, "getuser-ok.json")
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	user, err := c.GetUser(testContext(t), "biggs")
	if err != nil {
		t.Fatalf("request error: %s", err)
	}

	if user.Name != "biggs" {
		t.Fatalf("name = %q, want biggs", user.Name)
	}

	if !user.Ranked {
		t.Fatalf("ranked = false, want true")
	}

	stats, ok := user.GameInfo["umk3"]
	if !ok {
		t.Fatalf("missing umk3 game stats")
	}

	if stats.Rank == nil || *stats.Rank != fcadehttp.RankA {
		t.Fatalf("umk3 rank = %v, want A", stats.Rank)
	}

	unranked, ok := user.GameInfo["sfiii3nr1"]
	if !ok {
		t.Fatalf("missing sfiii3nr1 game stats")
	}

	if unranked.Rank != nil {
		t.Fatalf("absent rank must stay nil, got %v", *unranked.Rank)
	}
}

func TestClientGetUserNotFound(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": "user not found"}`)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	_, err := c.GetUser(testContext(t), "no_such_user")
	if err == nil {
		t.Fatalf("expected error")
	}

	var rerr *fcadehttprpc.RemoteError

	if !errors.As(err, &rerr) {
		t.Fatalf("error type %T, want RemoteError", err)
	}

	if rerr.Status != "user not found" {
		t.Fatalf("status = %q, want %q", rerr.Status, "user not found")
	}

	if !rerr.UserNotFound() {
		t.Fatalf("UserNotFound() = false")
	}
}

func TestClientGetUserRequestPayload(t *testing.T) {
	var payload map[string]any

	handler := func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %s", err)
		}

		io.WriteString(w, `{"status": "OK", "user": {"name": "biggs", "ranked": false, "date": 1600000000000}}`)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	if _, err := c.GetUser(testContext(t), "biggs"); err != nil {
		t.Fatalf("request error: %s", err)
	}

	if payload["op"] != "getuser" {
		t.Fatalf("op = %v, want getuser", payload["op"])
	}

	if payload["username"] != "biggs" {
		t.Fatalf("username = %v, want biggs", payload["username"])
	}
}

func TestClientGetReplays(t *testing.T) {
	ts := fixtureServer(t, "searchquarks-replays.json")
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	replays, err := c.GetReplays(testContext(t), fcadehttp.SearchQuarksOptions{GameID: "umk3"})
	if err != nil {
		t.Fatalf("request error: %s", err)
	}

	if len(replays) != 2 {
		t.Fatalf("got %d replays, want 2", len(replays))
	}

	first := replays[0]

	if first.QuarkID != "1638725293444-1085" {
		t.Fatalf("quarkid = %q", first.QuarkID)
	}

	if first.Ranked == nil || first.Ranked.N != 3 || first.Ranked.Cancelled {
		t.Fatalf("ranked = %+v, want first-to 3", first.Ranked)
	}

	if got := first.Players[0].Country.Display(); got != "US" {
		t.Fatalf("player 0 country = %q", got)
	}

	if got := first.Players[1].Country.Display(); got != "Brazil" {
		t.Fatalf("player 1 country = %q", got)
	}

	second := replays[1]

	if second.Ranked == nil || !second.Ranked.Cancelled {
		t.Fatalf("ranked = %+v, want cancelled", second.Ranked)
	}

	if second.NumMatches != nil {
		t.Fatalf("absent num_matches must stay nil")
	}
}

func TestClientGetReplaysDefaultPayload(t *testing.T) {
	var payload map[string]any

	handler := func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %s", err)
		}

		io.WriteString(w, `{"status": "OK", "results": {"results": [], "count": 0}}`)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	if _, err := c.GetReplays(testContext(t), fcadehttp.SearchQuarksOptions{}); err != nil {
		t.Fatalf("request error: %s", err)
	}

	if payload["op"] != "searchquarks" {
		t.Fatalf("op = %v", payload["op"])
	}

	if payload["limit"] != float64(15) {
		t.Fatalf("limit = %v, want 15", payload["limit"])
	}

	if payload["offset"] != float64(0) {
		t.Fatalf("offset = %v, want 0", payload["offset"])
	}

	if payload["best"] != false || payload["ranked"] != false {
		t.Fatalf("best/ranked defaults wrong: %v", payload)
	}

	if payload["since"] != float64(0) {
		t.Fatalf("since = %v, want 0", payload["since"])
	}
}

func TestClientGetReplayNotFound(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": "OK", "results": {"results": [], "count": 0}}`)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	_, err := c.GetReplay(testContext(t), "1638725293444-1085")
	if err == nil {
		t.Fatalf("expected error")
	}

	var nerr *fcadehttprpc.NotFoundError

	if !errors.As(err, &nerr) {
		t.Fatalf("error type %T, want NotFoundError", err)
	}

	if nerr.ID != "1638725293444-1085" {
		t.Fatalf("id = %q", nerr.ID)
	}
}

func TestClientGetReplaysCountMismatch(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"status": "OK", "results": {"results": [], "count": 1}}`)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	_, err := c.GetReplays(testContext(t), fcadehttp.SearchQuarksOptions{})
	if err == nil {
		t.Fatalf("expected error")
	}

	var verr *fcadehttp.SchemaValidationError

	if !errors.As(err, &verr) {
		t.Fatalf("error type %T, want SchemaValidationError", err)
	}

	if verr.Path != "results.count" {
		t.Fatalf("path = %q", verr.Path)
	}
}

func TestClientGetRankings(t *testing.T) {
	ts := fixtureServer(t, "searchrankings.json")
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	players, err := c.GetRankings(testContext(t), "umk3", fcadehttp.SearchRankingsOptions{})
	if err != nil {
		t.Fatalf("request error: %s", err)
	}

	if len(players) != 3 {
		t.Fatalf("got %d players, want 3", len(players))
	}

	if players[0].Rank == nil || *players[0].Rank != fcadehttp.RankS {
		t.Fatalf("player 0 rank = %v, want S", players[0].Rank)
	}

	if players[2].Rank != nil {
		t.Fatalf("player 2 rank must be absent")
	}

	if got := players[1].Country.Display(); got != "Brazil" {
		t.Fatalf("player 1 country = %q", got)
	}
}

func TestClientGetGame(t *testing.T) {
	ts := fixtureServer(t, "gameinfo.json")
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	game, err := c.GetGame(testContext(t), "umk3")
	if err != nil {
		t.Fatalf("request error: %s", err)
	}

	if game.Name != "Ultimate Mortal Kombat 3" {
		t.Fatalf("name = %q", game.Name)
	}

	if game.ROMOf == nil || *game.ROMOf != "mk3" {
		t.Fatalf("romof = %v, want mk3", game.ROMOf)
	}

	if game.AvailableFor != 42 {
		t.Fatalf("available_for = %d, want 42", game.AvailableFor)
	}

	if len(game.Genres) != 2 {
		t.Fatalf("genres = %v", game.Genres)
	}
}

func TestClientGetEvents(t *testing.T) {
	ts := fixtureServer(t, "searchevents.json")
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	events, err := c.GetEvents(testContext(t), fcadehttp.SearchEventsOptions{})
	if err != nil {
		t.Fatalf("request error: %s", err)
	}

	if len(events) != 2 {
		t.Fatalf("got %d events, want 2", len(events))
	}

	if events[0].Stream == nil {
		t.Fatalf("event 0 stream missing")
	}

	if events[1].Stream != nil {
		t.Fatalf("event 1 stream must be absent")
	}
}

func TestClientGetVideoURLs(t *testing.T) {
	var payload fcadehttp.GetVideoURLsRequest

	handler := func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			t.Errorf("decode request: %s", err)
		}

		io.WriteString(w, `{"a": "https://video/a"}`)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, "", ts.URL)

	urls, err := c.GetVideoURLs(testContext(t), []string{"a", "b"})
	if err != nil {
		t.Fatalf("request error: %s", err)
	}

	if len(payload.IDs) != 2 {
		t.Fatalf("request ids = %v", payload.IDs)
	}

	if urls["a"] != "https://video/a" {
		t.Fatalf("url for a = %q", urls["a"])
	}

	if _, ok := urls["b"]; ok {
		t.Fatalf("unknown id must be absent from the map")
	}
}

func TestClientGetVideoURLAbsent(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{}`)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, "", ts.URL)

	_, err := c.GetVideoURL(testContext(t), "b")
	if err == nil {
		t.Fatalf("expected error")
	}

	var nerr *fcadehttprpc.NotFoundError

	if !errors.As(err, &nerr) {
		t.Fatalf("error type %T, want NotFoundError", err)
	}
}

func TestClientTransportError(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gateway exploded", http.StatusBadGateway)
	}

	ts := httptest.NewServer(http.HandlerFunc(handler))
	defer ts.Close()

	c := fcadehttprpc.NewClient(http.Client{}, ts.URL, "")

	_, err := c.GetUser(testContext(t), "biggs")
	if err == nil {
		t.Fatalf("expected error")
	}

	var terr *fcadehttprpc.TransportError

	if !errors.As(err, &terr) {
		t.Fatalf("error type %T, want TransportError", err)
	}

	if terr.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502", terr.StatusCode)
	}
}
