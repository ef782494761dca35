// Package fcadehttprpc is a client for the FightCade statistics service
// and its deprecated companion video-link service. Every method issues a
// single POST and either returns a fully validated value or an error; there
// are no retries and no state shared between calls.
package fcadehttprpc

import (
	"bytes"
	"context"
	"fightcade-stats/fcadehttp"
	"fmt"
	"io"
	"net/http"

	json "github.com/goccy/go-json"
)

// TransportError is a failed network exchange: the request never completed,
// the service answered non-2xx, or the body was not JSON.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transport: status %d: %s", e.StatusCode, e.Err)
	}

	return fmt.Sprintf("transport: %s", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// RemoteError is a well-formed envelope carrying a non-success status.
type RemoteError struct {
	Status string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("remote status: %q", e.Status)
}

// UserNotFound reports whether the service's status string is its
// distinguished unknown-account reply.
func (e *RemoteError) UserNotFound() bool {
	return e.Status == fcadehttp.StatusUserNotFound
}

// NotFoundError is a domain-level absence: a successful response that does
// not contain the requested record.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Resource, e.ID)
}

type Client struct {
	address      string
	videoAddress string
	httpc        http.Client
}

func NewClient(httpc http.Client, address, videoAddress string) *Client {
	if address == "" {
		address = "https://www.fightcade.com/api/"
	}

	if videoAddress == "" {
		videoAddress = "https://fightcadevids.com/api/videolinks"
	}

	return &Client{
		address:      address,
		videoAddress: videoAddress,
		httpc:        httpc,
	}
}

// envelope is the common top of every primary-service response. Exactly one
// payload field is set, according to the operation.
type envelope struct {
	Status  string          `json:"status"`
	User    json.RawMessage `json:"user"`
	Game    json.RawMessage `json:"game"`
	Results json.RawMessage `json:"results"`
}

func (c *Client) post(ctx context.Context, addr string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, addr, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpc.Do(req)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("do request: %w", err)}
	}

	defer res.Body.Close()

	b, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("read body: %w", err)}
	}

	if res.StatusCode != http.StatusOK {
		return nil, &TransportError{StatusCode: res.StatusCode, Err: fmt.Errorf("%s", string(b))}
	}

	return b, nil
}

func (c *Client) call(ctx context.Context, payload any) (*envelope, error) {
	b, err := c.post(ctx, c.address, payload)
	if err != nil {
		return nil, err
	}

	var env envelope

	if err := json.Unmarshal(b, &env); err != nil {
		return nil, &TransportError{Err: fmt.Errorf("decode envelope: %w", err)}
	}

	if env.Status != fcadehttp.StatusOK {
		return nil, &RemoteError{Status: env.Status}
	}

	return &env, nil
}

func decodeStrict(raw json.RawMessage, path string, v any) error {
	if len(raw) == 0 {
		return &fcadehttp.SchemaValidationError{Path: path, Reason: "missing payload"}
	}

	decoder := json.NewDecoder(bytes.NewReader(raw))
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil {
		return &fcadehttp.SchemaValidationError{Path: path, Reason: err.Error()}
	}

	return nil
}

func (c *Client) GetUser(ctx context.Context, username string) (*fcadehttp.User, error) {
	if username == "" {
		return nil, fmt.Errorf("username must not be empty")
	}

	env, err := c.call(ctx, fcadehttp.NewGetUserRequest(username))
	if err != nil {
		return nil, fmt.Errorf("getuser %q: %w", username, err)
	}

	var user fcadehttp.User

	if err := decodeStrict(env.User, "user", &user); err != nil {
		return nil, fmt.Errorf("getuser %q: %w", username, err)
	}

	if err := user.Validate(); err != nil {
		return nil, fmt.Errorf("getuser %q: %w", username, err)
	}

	return &user, nil
}

func decodeReplayResults(raw json.RawMessage) ([]fcadehttp.Replay, error) {
	var results fcadehttp.ReplayResults

	if err := decodeStrict(raw, "results", &results); err != nil {
		return nil, err
	}

	if results.Count != len(results.Results) {
		return nil, &fcadehttp.SchemaValidationError{
			Path:   "results.count",
			Reason: fmt.Sprintf("count %d does not match %d results", results.Count, len(results.Results)),
		}
	}

	for i := range results.Results {
		if err := results.Results[i].Validate(fmt.Sprintf("results.results[%d]", i)); err != nil {
			return nil, err
		}
	}

	return results.Results, nil
}

// GetReplay looks up a single replay by challenge id. A successful search
// with zero matches is a NotFoundError, never an empty Replay.
func (c *Client) GetReplay(ctx context.Context, quarkID string) (*fcadehttp.Replay, error) {
	env, err := c.call(ctx, fcadehttp.NewGetQuarkRequest(quarkID))
	if err != nil {
		return nil, fmt.Errorf("searchquarks %q: %w", quarkID, err)
	}

	replays, err := decodeReplayResults(env.Results)
	if err != nil {
		return nil, fmt.Errorf("searchquarks %q: %w", quarkID, err)
	}

	if len(replays) == 0 {
		return nil, &NotFoundError{Resource: "replay", ID: quarkID}
	}

	return &replays[0], nil
}

func (c *Client) GetReplays(ctx context.Context, opts fcadehttp.SearchQuarksOptions) ([]fcadehttp.Replay, error) {
	env, err := c.call(ctx, fcadehttp.NewSearchQuarksRequest(opts))
	if err != nil {
		return nil, fmt.Errorf("searchquarks: %w", err)
	}

	replays, err := decodeReplayResults(env.Results)
	if err != nil {
		return nil, fmt.Errorf("searchquarks: %w", err)
	}

	return replays, nil
}

func (c *Client) GetUserReplays(ctx context.Context, username string, opts fcadehttp.SearchQuarksOptions) ([]fcadehttp.Replay, error) {
	if username == "" {
		return nil, fmt.Errorf("username must not be empty")
	}

	env, err := c.call(ctx, fcadehttp.NewUserSearchQuarksRequest(username, opts))
	if err != nil {
		return nil, fmt.Errorf("searchquarks user %q: %w", username, err)
	}

	replays, err := decodeReplayResults(env.Results)
	if err != nil {
		return nil, fmt.Errorf("searchquarks user %q: %w", username, err)
	}

	return replays, nil
}

func (c *Client) GetRankings(ctx context.Context, gameID string, opts fcadehttp.SearchRankingsOptions) ([]fcadehttp.Player, error) {
	if gameID == "" {
		return nil, fmt.Errorf("gameid must not be empty")
	}

	env, err := c.call(ctx, fcadehttp.NewSearchRankingsRequest(gameID, opts))
	if err != nil {
		return nil, fmt.Errorf("searchrankings %q: %w", gameID, err)
	}

	var results fcadehttp.PlayerResults

	if err := decodeStrict(env.Results, "results", &results); err != nil {
		return nil, fmt.Errorf("searchrankings %q: %w", gameID, err)
	}

	if results.Count != len(results.Results) {
		return nil, fmt.Errorf("searchrankings %q: %w", gameID, &fcadehttp.SchemaValidationError{
			Path:   "results.count",
			Reason: fmt.Sprintf("count %d does not match %d results", results.Count, len(results.Results)),
		})
	}

	for i := range results.Results {
		if err := results.Results[i].Validate(fmt.Sprintf("results.results[%d]", i)); err != nil {
			return nil, fmt.Errorf("searchrankings %q: %w", gameID, err)
		}
	}

	return results.Results, nil
}

func (c *Client) GetGame(ctx context.Context, gameID string) (*fcadehttp.Game, error) {
	if gameID == "" {
		return nil, fmt.Errorf("gameid must not be empty")
	}

	env, err := c.call(ctx, fcadehttp.NewGameInfoRequest(gameID))
	if err != nil {
		return nil, fmt.Errorf("gameinfo %q: %w", gameID, err)
	}

	var game fcadehttp.Game

	if err := decodeStrict(env.Game, "game", &game); err != nil {
		return nil, fmt.Errorf("gameinfo %q: %w", gameID, err)
	}

	if err := game.Validate(); err != nil {
		return nil, fmt.Errorf("gameinfo %q: %w", gameID, err)
	}

	return &game, nil
}

func (c *Client) GetEvents(ctx context.Context, opts fcadehttp.SearchEventsOptions) ([]fcadehttp.Event, error) {
	env, err := c.call(ctx, fcadehttp.NewSearchEventsRequest(opts))
	if err != nil {
		return nil, fmt.Errorf("searchevents: %w", err)
	}

	var results fcadehttp.EventResults

	if err := decodeStrict(env.Results, "results", &results); err != nil {
		return nil, fmt.Errorf("searchevents: %w", err)
	}

	if results.Count != len(results.Results) {
		return nil, fmt.Errorf("searchevents: %w", &fcadehttp.SchemaValidationError{
			Path:   "results.count",
			Reason: fmt.Sprintf("count %d does not match %d results", results.Count, len(results.Results)),
		})
	}

	for i := range results.Results {
		if err := results.Results[i].Validate(fmt.Sprintf("results.results[%d]", i)); err != nil {
			return nil, fmt.Errorf("searchevents: %w", err)
		}
	}

	return results.Results, nil
}

// GetVideoURLs asks the deprecated video service for playable links. Ids
// the service does not know are absent from the map, not errors.
//
// Deprecated: the video service is no longer maintained; prefer the offline
// fcadehttp.VideoURL helper.
func (c *Client) GetVideoURLs(ctx context.Context, quarkIDs []string) (fcadehttp.VideoURLMap, error) {
	b, err := c.post(ctx, c.videoAddress, fcadehttp.NewGetVideoURLsRequest(quarkIDs))
	if err != nil {
		return nil, fmt.Errorf("videolinks: %w", err)
	}

	var urls fcadehttp.VideoURLMap

	if err := json.Unmarshal(b, &urls); err != nil {
		return nil, fmt.Errorf("videolinks: %w", &fcadehttp.SchemaValidationError{Path: "videolinks", Reason: err.Error()})
	}

	return urls, nil
}

// GetVideoURL looks up a single challenge id on the deprecated video
// service; absence is a NotFoundError.
//
// Deprecated: see GetVideoURLs.
func (c *Client) GetVideoURL(ctx context.Context, quarkID string) (string, error) {
	urls, err := c.GetVideoURLs(ctx, []string{quarkID})
	if err != nil {
		return "", err
	}

	url, ok := urls[quarkID]
	if !ok {
		return "", &NotFoundError{Resource: "video url", ID: quarkID}
	}

	return url, nil
}
