package fcadehttp_test

import (
	"fightcade-stats/fcadehttp"
	"reflect"
	"testing"

	json "github.com/goccy/go-json"
)

func TestCountryAcceptsBothShapes(t *testing.T) {
	var bare fcadehttp.Country

	if err := json.Unmarshal([]byte(`"US"`), &bare); err != nil {
		t.Fatalf("unmarshal bare country: %s", err)
	}

	var pair fcadehttp.Country

	if err := json.Unmarshal([]byte(`{"iso_code":"US","full_name":"United States"}`), &pair); err != nil {
		t.Fatalf("unmarshal country pair: %s", err)
	}

	if bare.Display() != "US" {
		t.Fatalf("bare display = %q, want %q", bare.Display(), "US")
	}

	if pair.Display() != "United States" {
		t.Fatalf("pair display = %q, want %q", pair.Display(), "United States")
	}
}

func TestCountryRoundTripPreservesShape(t *testing.T) {
	inputs := []string{
		`"Brazil"`,
		`{"iso_code":"BR","full_name":"Brazil"}`,
	}

	for _, input := range inputs {
		var c fcadehttp.Country

		if err := json.Unmarshal([]byte(input), &c); err != nil {
			t.Fatalf("unmarshal %s: %s", input, err)
		}

		b, err := json.Marshal(c)
		if err != nil {
			t.Fatalf("marshal %s: %s", input, err)
		}

		if string(b) != input {
			t.Fatalf("round trip of %s produced %s", input, string(b))
		}
	}
}

func TestFirstToShapes(t *testing.T) {
	var numeric fcadehttp.FirstTo

	if err := json.Unmarshal([]byte(`3`), &numeric); err != nil {
		t.Fatalf("unmarshal numeric: %s", err)
	}

	if numeric.N != 3 || numeric.Cancelled {
		t.Fatalf("numeric = %+v, want first-to 3", numeric)
	}

	var cancelled fcadehttp.FirstTo

	if err := json.Unmarshal([]byte(`"cancelled"`), &cancelled); err != nil {
		t.Fatalf("unmarshal cancelled: %s", err)
	}

	if !cancelled.Cancelled {
		t.Fatalf("cancelled = %+v, want cancelled sentinel", cancelled)
	}

	b, err := json.Marshal(cancelled)
	if err != nil {
		t.Fatalf("marshal cancelled: %s", err)
	}

	if string(b) != `"cancelled"` {
		t.Fatalf("cancelled marshals to %s", string(b))
	}
}

func TestSearchQuarksRequestDefaults(t *testing.T) {
	request := fcadehttp.NewSearchQuarksRequest(fcadehttp.SearchQuarksOptions{})

	if request.Op != fcadehttp.RequestTypeSearchQuarks {
		t.Fatalf("op = %q", request.Op)
	}

	if request.Limit != 15 {
		t.Fatalf("limit = %d, want 15", request.Limit)
	}

	if request.Offset != 0 || request.Best || request.Ranked || request.Since != 0 {
		t.Fatalf("unexpected defaults: %+v", request)
	}

	b, err := json.Marshal(request)
	if err != nil {
		t.Fatalf("marshal request: %s", err)
	}

	var fields map[string]any

	if err := json.Unmarshal(b, &fields); err != nil {
		t.Fatalf("unmarshal request: %s", err)
	}

	if fields["limit"] != float64(15) {
		t.Fatalf("serialized limit = %v, want 15", fields["limit"])
	}

	if _, ok := fields["gameid"]; ok {
		t.Fatalf("unset gameid must be omitted, got %v", fields["gameid"])
	}
}

func TestUserSearchQuarksRequestCarriesUsername(t *testing.T) {
	request := fcadehttp.NewUserSearchQuarksRequest("biggs", fcadehttp.SearchQuarksOptions{Limit: 30})

	if request.Username != "biggs" {
		t.Fatalf("username = %q", request.Username)
	}

	if request.GameID != "" {
		t.Fatalf("user replay search must not carry a gameid, got %q", request.GameID)
	}

	if request.Limit != 30 {
		t.Fatalf("limit = %d, want 30", request.Limit)
	}
}

func TestSearchRankingsRequestDefaults(t *testing.T) {
	request := fcadehttp.NewSearchRankingsRequest("umk3", fcadehttp.SearchRankingsOptions{})

	if request.Limit != 15 || request.Offset != 0 {
		t.Fatalf("paging defaults wrong: %+v", request)
	}

	if !request.ByElo || !request.Recent {
		t.Fatalf("byElo/recent must default true: %+v", request)
	}

	off := false
	request = fcadehttp.NewSearchRankingsRequest("umk3", fcadehttp.SearchRankingsOptions{ByElo: &off})

	if request.ByElo {
		t.Fatalf("explicit byElo=false was ignored")
	}

	if !request.Recent {
		t.Fatalf("recent must stay true when only byElo is set")
	}
}

func TestSearchEventsRequestDefaults(t *testing.T) {
	request := fcadehttp.NewSearchEventsRequest(fcadehttp.SearchEventsOptions{})

	if request.Limit != 15 || request.Offset != 0 {
		t.Fatalf("paging defaults wrong: %+v", request)
	}
}

func TestReplayURLIsDeterministic(t *testing.T) {
	replay := fcadehttp.Replay{
		QuarkID:  "1638725293444-1085",
		Emulator: "fbneo",
		GameID:   "umk3",
	}

	const want = "https://replay.fightcade.com/fbneo/umk3/1638725293444-1085"

	for i := 0; i < 3; i++ {
		if got := fcadehttp.ReplayURL(replay); got != want {
			t.Fatalf("replay URL = %q, want %q", got, want)
		}
	}

	if got := fcadehttp.VideoURL(replay.QuarkID); got != "https://video.fightcade.com/1638725293444-1085" {
		t.Fatalf("video URL = %q", got)
	}
}

func TestReplayRoundTripPreservesAllFields(t *testing.T) {
	const input = `{
		"quarkid": "1638725293444-1085",
		"channelname": "umk3",
		"date": 1638725293444,
		"duration": 347,
		"emulator": "fbneo",
		"gameid": "umk3",
		"num_matches": 5,
		"players": [
			{"name": "biggs", "country": "US", "rank": 6, "score": 3},
			{"name": "wedge", "country": {"iso_code": "BR", "full_name": "Brazil"}, "rank": 4, "score": 2}
		],
		"ranked": 3,
		"replay_file": "umk3-1638725293444-1085.fs",
		"realtime_views": 12,
		"saved_views": 40
	}`

	var replay fcadehttp.Replay

	if err := json.Unmarshal([]byte(input), &replay); err != nil {
		t.Fatalf("unmarshal replay: %s", err)
	}

	if err := replay.Validate("replay"); err != nil {
		t.Fatalf("validate replay: %s", err)
	}

	b, err := json.Marshal(replay)
	if err != nil {
		t.Fatalf("marshal replay: %s", err)
	}

	var got, want map[string]any

	if err := json.Unmarshal(b, &got); err != nil {
		t.Fatalf("unmarshal round-tripped replay: %s", err)
	}

	if err := json.Unmarshal([]byte(input), &want); err != nil {
		t.Fatalf("unmarshal input: %s", err)
	}

	if !reflect.DeepEqual(got, want) {
		t.Fatalf("round trip changed data:\ngot  %v\nwant %v", got, want)
	}
}

func TestReplayValidateRejectsMissingID(t *testing.T) {
	replay := fcadehttp.Replay{
		Emulator: "fbneo",
		GameID:   "umk3",
	}

	err := replay.Validate("replay")
	if err == nil {
		t.Fatalf("expected validation error")
	}

	verr, ok := err.(*fcadehttp.SchemaValidationError)
	if !ok {
		t.Fatalf("error type %T, want SchemaValidationError", err)
	}

	if verr.Path != "replay.quarkid" {
		t.Fatalf("path = %q, want replay.quarkid", verr.Path)
	}
}

func TestQuarkIDsExtractsFromReplays(t *testing.T) {
	replays := []fcadehttp.Replay{
		{QuarkID: "a"},
		{QuarkID: "b"},
	}

	ids := fcadehttp.QuarkIDs(replays)

	if !reflect.DeepEqual(ids, []string{"a", "b"}) {
		t.Fatalf("ids = %v", ids)
	}
}
