// Package fcadehttp holds the wire types for the FightCade statistics
// service: request payloads with their documented defaults, the record
// shapes the service replies with, and pure helpers for the URLs that can
// be derived from a replay without a network call.
package fcadehttp

import (
	"fmt"

	json "github.com/goccy/go-json"
)

const (
	// ReplayBaseURL is the root of the replay viewer. A replay's page is
	// ReplayBaseURL + emulator + "/" + gameid + "/" + quarkid.
	ReplayBaseURL = "https://replay.fightcade.com/"

	// VideoBaseURL is the root of the rendered-video host.
	VideoBaseURL = "https://video.fightcade.com/"
)

const (
	// StatusOK marks a successful response envelope.
	StatusOK = "OK"

	// StatusUserNotFound is the status the service reports when a getuser
	// lookup names an unknown account.
	StatusUserNotFound = "user not found"
)

type RequestType string

const (
	RequestTypeGetUser        RequestType = "getuser"
	RequestTypeSearchQuarks   RequestType = "searchquarks"
	RequestTypeSearchRankings RequestType = "searchrankings"
	RequestTypeGameInfo       RequestType = "gameinfo"
	RequestTypeSearchEvents   RequestType = "searchevents"
)

// Rank is the competitive tier ordinal, Unranked=0 up to S=6.
type Rank uint8

const (
	RankUnranked Rank = iota
	RankE
	RankD
	RankC
	RankB
	RankA
	RankS
)

func (r Rank) String() string {
	switch r {
	case RankUnranked:
		return "Unranked"
	case RankE:
		return "E"
	case RankD:
		return "D"
	case RankC:
		return "C"
	case RankB:
		return "B"
	case RankA:
		return "A"
	case RankS:
		return "S"
	default:
		return fmt.Sprintf("Rank(%d)", uint8(r))
	}
}

// SchemaValidationError reports a response payload that does not conform to
// the shape declared for its operation. Path names the offending field.
type SchemaValidationError struct {
	Path   string
	Reason string
}

func (e *SchemaValidationError) Error() string {
	return fmt.Sprintf("schema validation: %s: %s", e.Path, e.Reason)
}

// Country is either a bare country-name string or an ISO code pair,
// depending on which shape the service chose to emit. Both unmarshal into
// this one type, and marshaling reproduces the received shape: a value with
// no ISO code round-trips as a bare string.
type Country struct {
	ISOCode  string
	FullName string
}

type countryPair struct {
	ISOCode  string `json:"iso_code"`
	FullName string `json:"full_name"`
}

func (c *Country) UnmarshalJSON(b []byte) error {
	if len(b) > 0 && b[0] == '"' {
		var name string
		if err := json.Unmarshal(b, &name); err != nil {
			return fmt.Errorf("unmarshal country string: %w", err)
		}

		c.ISOCode = ""
		c.FullName = name

		return nil
	}

	var pair countryPair
	if err := json.Unmarshal(b, &pair); err != nil {
		return fmt.Errorf("unmarshal country pair: %w", err)
	}

	c.ISOCode = pair.ISOCode
	c.FullName = pair.FullName

	return nil
}

func (c Country) MarshalJSON() ([]byte, error) {
	if c.ISOCode == "" {
		return json.Marshal(c.FullName)
	}

	return json.Marshal(countryPair{ISOCode: c.ISOCode, FullName: c.FullName})
}

// Display returns a human-readable name regardless of which shape the
// service sent.
func (c Country) Display() string {
	if c.FullName != "" {
		return c.FullName
	}

	return c.ISOCode
}

// FirstTo is a replay's ranked indicator: the "first to N" target of a
// ranked set, or a cancelled sentinel. The service sends a number, the
// string "cancelled", or omits the field entirely.
type FirstTo struct {
	N         uint32
	Cancelled bool
}

const cancelledSentinel = `"cancelled"`

func (f *FirstTo) UnmarshalJSON(b []byte) error {
	if string(b) == cancelledSentinel {
		f.N = 0
		f.Cancelled = true

		return nil
	}

	var n uint32
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("unmarshal first-to: %w", err)
	}

	f.N = n
	f.Cancelled = false

	return nil
}

func (f FirstTo) MarshalJSON() ([]byte, error) {
	if f.Cancelled {
		return []byte(cancelledSentinel), nil
	}

	return json.Marshal(f.N)
}

// UserGameStats is one account's record for a single game. Absent rank
// means unranked or no data.
type UserGameStats struct {
	Rank       *Rank  `json:"rank,omitempty"`
	NumMatches *int64 `json:"num_matches,omitempty"`
	LastMatch  *int64 `json:"last_match,omitempty"`
	TimePlayed int64  `json:"time_played"`
}

func (s *UserGameStats) Validate(path string) error {
	if s.Rank != nil && *s.Rank > RankS {
		return &SchemaValidationError{Path: path + ".rank", Reason: fmt.Sprintf("ordinal %d out of range", *s.Rank)}
	}

	return nil
}

type User struct {
	Name       string                   `json:"name"`
	Gravatar   *string                  `json:"gravatar,omitempty"`
	Ranked     bool                     `json:"ranked"`
	LastOnline *int64                   `json:"last_online,omitempty"`
	Date       int64                    `json:"date"`
	GameInfo   map[string]UserGameStats `json:"gameinfo,omitempty"`
}

func (u *User) Validate() error {
	if u.Name == "" {
		return &SchemaValidationError{Path: "user.name", Reason: "missing required field"}
	}

	if u.Date == 0 {
		return &SchemaValidationError{Path: "user.date", Reason: "missing required field"}
	}

	for gameID := range u.GameInfo {
		stats := u.GameInfo[gameID]
		if err := stats.Validate("user.gameinfo." + gameID); err != nil {
			return err
		}
	}

	return nil
}

// Player is a participant in a replay or a row in a ranking listing.
type Player struct {
	Name     string                   `json:"name"`
	Country  Country                  `json:"country"`
	Rank     *Rank                    `json:"rank,omitempty"`
	Score    *int64                   `json:"score,omitempty"`
	GameInfo map[string]UserGameStats `json:"gameinfo,omitempty"`
}

func (p *Player) Validate(path string) error {
	if p.Name == "" {
		return &SchemaValidationError{Path: path + ".name", Reason: "missing required field"}
	}

	if p.Rank != nil && *p.Rank > RankS {
		return &SchemaValidationError{Path: path + ".rank", Reason: fmt.Sprintf("ordinal %d out of range", *p.Rank)}
	}

	for gameID := range p.GameInfo {
		stats := p.GameInfo[gameID]
		if err := stats.Validate(path + ".gameinfo." + gameID); err != nil {
			return err
		}
	}

	return nil
}

type Replay struct {
	QuarkID       string   `json:"quarkid"`
	ChannelName   string   `json:"channelname"`
	Date          int64    `json:"date"`
	Duration      int64    `json:"duration"`
	Emulator      string   `json:"emulator"`
	GameID        string   `json:"gameid"`
	NumMatches    *int64   `json:"num_matches,omitempty"`
	Players       []Player `json:"players"`
	Ranked        *FirstTo `json:"ranked,omitempty"`
	ReplayFile    *string  `json:"replay_file,omitempty"`
	RealtimeViews *int64   `json:"realtime_views,omitempty"`
	SavedViews    *int64   `json:"saved_views,omitempty"`
}

func (r *Replay) Validate(path string) error {
	if r.QuarkID == "" {
		return &SchemaValidationError{Path: path + ".quarkid", Reason: "missing required field"}
	}

	if r.Emulator == "" {
		return &SchemaValidationError{Path: path + ".emulator", Reason: "missing required field"}
	}

	if r.GameID == "" {
		return &SchemaValidationError{Path: path + ".gameid", Reason: "missing required field"}
	}

	for i := range r.Players {
		if err := r.Players[i].Validate(fmt.Sprintf("%s.players[%d]", path, i)); err != nil {
			return err
		}
	}

	return nil
}

// Game is the metadata record for one emulated title. The romof and
// available_for fields are passed through opaquely.
type Game struct {
	GameID       string   `json:"gameid"`
	ROMOf        *string  `json:"romof,omitempty"`
	Name         string   `json:"name"`
	Year         *string  `json:"year,omitempty"`
	Publisher    *string  `json:"publisher,omitempty"`
	Emulator     string   `json:"emulator"`
	AvailableFor int64    `json:"available_for"`
	System       string   `json:"system"`
	Ranked       bool     `json:"ranked"`
	Training     *bool    `json:"training,omitempty"`
	Genres       []string `json:"genre,omitempty"`
}

func (g *Game) Validate() error {
	if g.GameID == "" {
		return &SchemaValidationError{Path: "game.gameid", Reason: "missing required field"}
	}

	if g.Name == "" {
		return &SchemaValidationError{Path: "game.name", Reason: "missing required field"}
	}

	if g.Emulator == "" {
		return &SchemaValidationError{Path: "game.emulator", Reason: "missing required field"}
	}

	return nil
}

type Event struct {
	Name   string  `json:"name"`
	Author string  `json:"author"`
	Date   int64   `json:"date"`
	GameID string  `json:"gameid"`
	Link   string  `json:"link"`
	Region string  `json:"region"`
	Stream *string `json:"stream,omitempty"`
}

func (e *Event) Validate(path string) error {
	if e.Name == "" {
		return &SchemaValidationError{Path: path + ".name", Reason: "missing required field"}
	}

	if e.GameID == "" {
		return &SchemaValidationError{Path: path + ".gameid", Reason: "missing required field"}
	}

	return nil
}

type GetUserRequest struct {
	Op       RequestType `json:"op"`
	Username string      `json:"username"`
}

func NewGetUserRequest(username string) GetUserRequest {
	return GetUserRequest{
		Op:       RequestTypeGetUser,
		Username: username,
	}
}

// GetQuarkRequest looks up a single replay by its challenge id.
type GetQuarkRequest struct {
	Op      RequestType `json:"op"`
	QuarkID string      `json:"quarkid"`
}

func NewGetQuarkRequest(quarkID string) GetQuarkRequest {
	return GetQuarkRequest{
		Op:      RequestTypeSearchQuarks,
		QuarkID: quarkID,
	}
}

// SearchQuarksOptions narrows a replay search. The zero value of every
// field maps to the documented request default: limit 15, offset 0, best
// false, since 0, ranked false.
type SearchQuarksOptions struct {
	GameID string
	Limit  uint32
	Offset uint32
	Best   bool
	Since  int64
	Ranked bool
}

type SearchQuarksRequest struct {
	Op       RequestType `json:"op"`
	Username string      `json:"username,omitempty"`
	GameID   string      `json:"gameid,omitempty"`
	Limit    uint32      `json:"limit"`
	Offset   uint32      `json:"offset"`
	Best     bool        `json:"best"`
	Since    int64       `json:"since"`
	Ranked   bool        `json:"ranked"`
}

const defaultLimit = 15

func NewSearchQuarksRequest(opts SearchQuarksOptions) SearchQuarksRequest {
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}

	return SearchQuarksRequest{
		Op:     RequestTypeSearchQuarks,
		GameID: opts.GameID,
		Limit:  opts.Limit,
		Offset: opts.Offset,
		Best:   opts.Best,
		Since:  opts.Since,
		Ranked: opts.Ranked,
	}
}

func NewUserSearchQuarksRequest(username string, opts SearchQuarksOptions) SearchQuarksRequest {
	opts.GameID = ""
	request := NewSearchQuarksRequest(opts)
	request.Username = username

	return request
}

// SearchRankingsOptions narrows a ranking search. ByElo and Recent default
// to true; leave them nil to take the default.
type SearchRankingsOptions struct {
	Limit  uint32
	Offset uint32
	ByElo  *bool
	Recent *bool
}

type SearchRankingsRequest struct {
	Op     RequestType `json:"op"`
	GameID string      `json:"gameid"`
	Limit  uint32      `json:"limit"`
	Offset uint32      `json:"offset"`
	ByElo  bool        `json:"byElo"`
	Recent bool        `json:"recent"`
}

func NewSearchRankingsRequest(gameID string, opts SearchRankingsOptions) SearchRankingsRequest {
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}

	byElo := true
	if opts.ByElo != nil {
		byElo = *opts.ByElo
	}

	recent := true
	if opts.Recent != nil {
		recent = *opts.Recent
	}

	return SearchRankingsRequest{
		Op:     RequestTypeSearchRankings,
		GameID: gameID,
		Limit:  opts.Limit,
		Offset: opts.Offset,
		ByElo:  byElo,
		Recent: recent,
	}
}

type GameInfoRequest struct {
	Op     RequestType `json:"op"`
	GameID string      `json:"gameid"`
}

func NewGameInfoRequest(gameID string) GameInfoRequest {
	return GameInfoRequest{
		Op:     RequestTypeGameInfo,
		GameID: gameID,
	}
}

type SearchEventsOptions struct {
	GameID string
	Limit  uint32
	Offset uint32
}

type SearchEventsRequest struct {
	Op     RequestType `json:"op"`
	GameID string      `json:"gameid,omitempty"`
	Limit  uint32      `json:"limit"`
	Offset uint32      `json:"offset"`
}

func NewSearchEventsRequest(opts SearchEventsOptions) SearchEventsRequest {
	if opts.Limit == 0 {
		opts.Limit = defaultLimit
	}

	return SearchEventsRequest{
		Op:     RequestTypeSearchEvents,
		GameID: opts.GameID,
		Limit:  opts.Limit,
		Offset: opts.Offset,
	}
}

// GetVideoURLsRequest is the payload for the secondary video-link service.
type GetVideoURLsRequest struct {
	IDs []string `json:"ids"`
}

func NewGetVideoURLsRequest(quarkIDs []string) GetVideoURLsRequest {
	return GetVideoURLsRequest{
		IDs: quarkIDs,
	}
}

// QuarkIDs extracts the challenge ids from a set of replays, for callers
// holding Replay values rather than bare id strings.
func QuarkIDs(replays []Replay) []string {
	ids := make([]string, 0, len(replays))

	for _, r := range replays {
		ids = append(ids, r.QuarkID)
	}

	return ids
}

// ReplayResults is the payload of a searchquarks response. Count matches
// the length of Results exactly.
type ReplayResults struct {
	Results []Replay `json:"results"`
	Count   int      `json:"count"`
}

type PlayerResults struct {
	Results []Player `json:"results"`
	Count   int      `json:"count"`
}

type EventResults struct {
	Results []Event `json:"results"`
	Count   int     `json:"count"`
}

// VideoURLMap maps challenge ids to playable video URLs. Ids unknown to
// the video service are simply absent.
type VideoURLMap map[string]string

// ReplayURL returns the replay viewer page for a replay. Pure string
// concatenation, no I/O.
func ReplayURL(r Replay) string {
	return ReplayBaseURL + r.Emulator + "/" + r.GameID + "/" + r.QuarkID
}

// VideoURL returns the derived video location for a challenge id. This is
// the offline form; the deprecated network lookup lives on the client.
func VideoURL(quarkID string) string {
	return VideoBaseURL + quarkID
}
