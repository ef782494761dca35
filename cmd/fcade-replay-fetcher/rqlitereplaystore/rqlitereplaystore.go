package rqlitereplaystore

import (
	"context"
	"fightcade-stats/cmd/fcade-replay-fetcher/replaystore"
	"fightcade-stats/fcadehttp"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/rqlite/gorqlite"
)

type DB struct {
	conn *gorqlite.Connection
}

func New(addr string) (*DB, error) {
	conn, err := gorqlite.Open(addr)
	if err != nil {
		return nil, fmt.Errorf("open connection: %w", err)
	}

	if err := conn.SetExecutionWithTransaction(true); err != nil {
		return nil, fmt.Errorf("set execution with transaction: %w", err)
	}

	db := &DB{
		conn: conn,
	}

	return db, nil
}

const gameskey = "games"

func (db *DB) InsertGames(ctx context.Context, list *replaystore.GameList) error {
	const q = `
INSERT INTO kv (key, value, updated)
VALUES (?, ?, ?)
ON CONFLICT (key) DO UPDATE SET
updated = excluded.updated,
value = excluded.value;
`

	b, err := json.Marshal(list.Games)
	if err != nil {
		return fmt.Errorf("marshal games: %w", err)
	}

	param := gorqlite.ParameterizedStatement{
		Query:     q,
		Arguments: []any{gameskey, string(b), list.Updated.UnixMilli()},
	}

	results, err := db.conn.WriteOneParameterizedContext(ctx, param)
	if err != nil {
		return fmt.Errorf("do query: %w: %s", err, results.Err)
	}

	return nil
}

func (db *DB) GetGames(ctx context.Context) (*replaystore.GameList, error) {
	const query = "SELECT value, updated FROM kv WHERE key = ?;"
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{gameskey},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("do query: %w", err)
	}

	if results.NumRows() == 0 {
		return &replaystore.GameList{}, nil
	}

	data := make([]byte, 0, 100000)
	var updated int64

	for results.Next() {
		if err := results.Scan(&data, &updated); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}
	}

	var games []fcadehttp.Game

	if err := json.Unmarshal(data, &games); err != nil {
		return nil, fmt.Errorf("unmarshal data: %w", err)
	}

	list := &replaystore.GameList{
		Updated: time.UnixMilli(updated),
		Games:   games,
	}

	return list, nil
}

func (db *DB) InsertReplays(ctx context.Context, replays []replaystore.StoredReplay) error {
	const q = `
INSERT INTO replays (quark_id, game_id, date, data)
VALUES (?, ?, ?, ?)
ON CONFLICT (quark_id) DO UPDATE SET
date = excluded.date,
data = excluded.data;
`

	params := make([]gorqlite.ParameterizedStatement, 0, len(replays))

	for _, r := range replays {
		b, err := json.Marshal(r.Replay)
		if err != nil {
			return fmt.Errorf("marshal replay: %w", err)
		}

		param := gorqlite.ParameterizedStatement{
			Query:     q,
			Arguments: []any{r.QuarkID, r.GameID, r.Date.UnixMilli(), string(b)},
		}

		params = append(params, param)
	}

	results, err := db.conn.WriteParameterizedContext(ctx, params)
	if err != nil {
		return fmt.Errorf("do query: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("result error: %w", r.Err)
		}
	}

	return nil
}

// GetLatestReplayMilli returns the newest stored replay timestamp for a
// game, as unix milliseconds, or 0 when no replays are stored yet.
func (db *DB) GetLatestReplayMilli(ctx context.Context, gameID string) (int64, error) {
	const query = "SELECT COALESCE(MAX(date), 0) FROM replays WHERE game_id = ?;"
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{gameID},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return 0, fmt.Errorf("do query: %w", err)
	}

	var latest int64

	for results.Next() {
		if err := results.Scan(&latest); err != nil {
			return 0, fmt.Errorf("scan results: %w", err)
		}
	}

	return latest, nil
}

func scanReplays(results gorqlite.QueryResult) ([]replaystore.StoredReplay, error) {
	data := make([]byte, 0, 100000)

	var (
		quarkid string
		gameid  string
		date    int64
	)

	replays := make([]replaystore.StoredReplay, 0, results.NumRows())

	for results.Next() {
		if err := results.Scan(&quarkid, &gameid, &date, &data); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}

		var replay fcadehttp.Replay

		if err := json.Unmarshal(data, &replay); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}

		stored := replaystore.StoredReplay{
			QuarkID: quarkid,
			GameID:  gameid,
			Date:    time.UnixMilli(date),
			Replay:  replay,
		}

		replays = append(replays, stored)
		data = data[:0]
	}

	return replays, nil
}

func (db *DB) GetReplaysForGame(ctx context.Context, gameID string) ([]replaystore.StoredReplay, error) {
	const query = "SELECT quark_id, game_id, date, data FROM replays WHERE game_id = ? ORDER BY date DESC;"
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{gameID},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("do query: %w", err)
	}

	return scanReplays(results)
}

func (db *DB) GetRecentReplays(ctx context.Context, limit uint32) ([]replaystore.StoredReplay, error) {
	const query = "SELECT quark_id, game_id, date, data FROM replays ORDER BY date DESC LIMIT ?;"
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{limit},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("do query: %w", err)
	}

	return scanReplays(results)
}

func (db *DB) InsertSeenPlayers(ctx context.Context, lastSeen map[string]time.Time) error {
	const q = `
INSERT INTO seen_players (username, last_seen)
VALUES (?, ?)
ON CONFLICT (username) DO UPDATE SET
last_seen = MAX(last_seen, excluded.last_seen);
`

	params := make([]gorqlite.ParameterizedStatement, 0, len(lastSeen))

	for username, t := range lastSeen {
		param := gorqlite.ParameterizedStatement{
			Query:     q,
			Arguments: []any{username, t.UnixMilli()},
		}

		params = append(params, param)
	}

	results, err := db.conn.WriteParameterizedContext(ctx, params)
	if err != nil {
		return fmt.Errorf("do query: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("result error: %w", r.Err)
		}
	}

	return nil
}

// GetStaleUsers returns seen players whose profile has never been fetched
// or was fetched before the threshold.
func (db *DB) GetStaleUsers(ctx context.Context, threshold time.Time, limit uint32) ([]string, error) {
	const query = `
SELECT
	seen_players.username
FROM
	seen_players
LEFT JOIN
	users
ON
	users.username = seen_players.username
WHERE
	users.updated IS NULL OR users.updated < ?
LIMIT ?;
`
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{threshold.UnixMilli(), limit},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("do query: %w", err)
	}

	var username string

	usernames := make([]string, 0, results.NumRows())

	for results.Next() {
		if err := results.Scan(&username); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}

		usernames = append(usernames, username)
	}

	return usernames, nil
}

func (db *DB) InsertUsers(ctx context.Context, users []replaystore.StoredUser) error {
	const q = `
INSERT INTO users (username, updated, missing, data)
VALUES (?, ?, ?, ?)
ON CONFLICT (username) DO UPDATE SET
updated = excluded.updated,
missing = excluded.missing,
data = excluded.data;
`

	params := make([]gorqlite.ParameterizedStatement, 0, len(users))

	for _, u := range users {
		data := "null"

		if u.User != nil {
			b, err := json.Marshal(u.User)
			if err != nil {
				return fmt.Errorf("marshal user: %w", err)
			}

			data = string(b)
		}

		missing := 0
		if u.Missing {
			missing = 1
		}

		param := gorqlite.ParameterizedStatement{
			Query:     q,
			Arguments: []any{u.Username, u.Updated.UnixMilli(), missing, data},
		}

		params = append(params, param)
	}

	results, err := db.conn.WriteParameterizedContext(ctx, params)
	if err != nil {
		return fmt.Errorf("do query: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("result error: %w", r.Err)
		}
	}

	return nil
}

func (db *DB) GetUser(ctx context.Context, username string) (*replaystore.StoredUser, bool, error) {
	const query = "SELECT updated, missing, data FROM users WHERE username = ?;"
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{username},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return nil, false, fmt.Errorf("do query: %w", err)
	}

	if results.NumRows() == 0 {
		return nil, false, nil
	}

	data := make([]byte, 0, 100000)

	var (
		updated int64
		missing int64
	)

	for results.Next() {
		if err := results.Scan(&updated, &missing, &data); err != nil {
			return nil, false, fmt.Errorf("scan results: %w", err)
		}
	}

	stored := &replaystore.StoredUser{
		Username: username,
		Updated:  time.UnixMilli(updated),
		Missing:  missing != 0,
	}

	if !stored.Missing {
		var user fcadehttp.User

		if err := json.Unmarshal(data, &user); err != nil {
			return nil, false, fmt.Errorf("unmarshal data: %w", err)
		}

		stored.User = &user
	}

	return stored, true, nil
}

// GetUncheckedVideoReplays returns ids of stored replays that have never
// been looked up against the video service.
func (db *DB) GetUncheckedVideoReplays(ctx context.Context, limit uint32) ([]string, error) {
	const query = `
SELECT
	replays.quark_id
FROM
	replays
LEFT JOIN
	video_urls
ON
	video_urls.quark_id = replays.quark_id
WHERE
	video_urls.checked IS NULL
LIMIT ?;
`
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{limit},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("do query: %w", err)
	}

	var quarkid string

	ids := make([]string, 0, results.NumRows())

	for results.Next() {
		if err := results.Scan(&quarkid); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}

		ids = append(ids, quarkid)
	}

	return ids, nil
}

func (db *DB) InsertVideoLinks(ctx context.Context, links []replaystore.VideoLink) error {
	const q = `
INSERT INTO video_urls (quark_id, checked, url)
VALUES (?, ?, ?)
ON CONFLICT (quark_id) DO UPDATE SET
checked = excluded.checked,
url = excluded.url;
`

	params := make([]gorqlite.ParameterizedStatement, 0, len(links))

	for _, link := range links {
		param := gorqlite.ParameterizedStatement{
			Query:     q,
			Arguments: []any{link.QuarkID, link.Checked.UnixMilli(), link.URL},
		}

		params = append(params, param)
	}

	results, err := db.conn.WriteParameterizedContext(ctx, params)
	if err != nil {
		return fmt.Errorf("do query: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("result error: %w", r.Err)
		}
	}

	return nil
}

func (db *DB) GetVideoLink(ctx context.Context, quarkID string) (string, bool, error) {
	const query = "SELECT url FROM video_urls WHERE quark_id = ?;"
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{quarkID},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return "", false, fmt.Errorf("do query: %w", err)
	}

	if results.NumRows() == 0 {
		return "", false, nil
	}

	var url string

	for results.Next() {
		if err := results.Scan(&url); err != nil {
			return "", false, fmt.Errorf("scan results: %w", err)
		}
	}

	if url == "" {
		return "", false, nil
	}

	return url, true, nil
}

func (db *DB) InsertPlayerGameStats(ctx context.Context, stats map[replaystore.PlayerGameKey]replaystore.PlayerGameStats) error {
	const q = `
INSERT INTO player_game_stats (username, game_id, data)
VALUES (?, ?, ?)
ON CONFLICT (username, game_id) DO UPDATE SET
data = excluded.data;
`

	params := make([]gorqlite.ParameterizedStatement, 0, len(stats))

	for key, s := range stats {
		b, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("marshal stats: %w", err)
		}

		param := gorqlite.ParameterizedStatement{
			Query:     q,
			Arguments: []any{key.Username, key.GameID, string(b)},
		}

		params = append(params, param)
	}

	results, err := db.conn.WriteParameterizedContext(ctx, params)
	if err != nil {
		return fmt.Errorf("do query: %w", err)
	}

	for _, r := range results {
		if r.Err != nil {
			return fmt.Errorf("result error: %w", r.Err)
		}
	}

	return nil
}

func (db *DB) GetPlayerGameStats(ctx context.Context, username string) ([]replaystore.PlayerGameStats, error) {
	const query = "SELECT data FROM player_game_stats WHERE username = ?;"
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{username},
	}

	results, err := db.conn.QueryOneParameterizedContext(ctx, param)
	if err != nil {
		return nil, fmt.Errorf("do query: %w", err)
	}

	data := make([]byte, 0, 100000)

	stats := make([]replaystore.PlayerGameStats, 0, results.NumRows())

	for results.Next() {
		if err := results.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan results: %w", err)
		}

		var s replaystore.PlayerGameStats

		if err := json.Unmarshal(data, &s); err != nil {
			return nil, fmt.Errorf("unmarshal data: %w", err)
		}

		stats = append(stats, s)
		data = data[:0]
	}

	return stats, nil
}

func (db *DB) CreateSchema(ctx context.Context) error {
	const query = `
CREATE TABLE kv (
	key     TEXT     NOT NULL,
	updated INTEGER  NOT NULL,
	value   TEXT     NOT NULL,
	PRIMARY KEY (key)
);

CREATE TABLE replays (
	quark_id  TEXT     NOT NULL,
	game_id   TEXT     NOT NULL,
	date      INTEGER  NOT NULL,
	data      TEXT     NOT NULL,
	PRIMARY KEY (quark_id)
);

CREATE INDEX replays_game_date_index
ON replays (game_id, date);

CREATE TABLE seen_players (
	username   TEXT     NOT NULL,
	last_seen  INTEGER  NOT NULL,
	PRIMARY KEY (username)
);

CREATE TABLE users (
	username  TEXT     NOT NULL,
	updated   INTEGER  NOT NULL,
	missing   INTEGER  NOT NULL,
	data      TEXT     NOT NULL,
	PRIMARY KEY (username)
);

CREATE INDEX users_updated_index
ON users (updated);

CREATE TABLE video_urls (
	quark_id  TEXT     NOT NULL,
	checked   INTEGER  NOT NULL,
	url       TEXT     NOT NULL,
	PRIMARY KEY (quark_id)
);

CREATE TABLE player_game_stats (
	username  TEXT  NOT NULL,
	game_id   TEXT  NOT NULL,
	data      TEXT  NOT NULL,
	PRIMARY KEY (username, game_id)
);
`
	param := gorqlite.ParameterizedStatement{
		Query:     query,
		Arguments: []any{},
	}

	result, err := db.conn.WriteOneParameterizedContext(ctx, param)
	if err != nil {
		return fmt.Errorf("do query: %w", err)
	}

	if result.Err != nil {
		return fmt.Errorf("result error: %w", result.Err)
	}

	return nil
}
