package quarkidutil_test

import (
	"fightcade-stats/quarkidutil"
	"testing"
)

func TestTimeMilliFromID(t *testing.T) {
	ms, err := quarkidutil.TimeMilliFromID("1638725293444-1085")
	if err != nil {
		t.Fatalf("parse error: %s", err)
	}

	if ms != 1638725293444 {
		t.Fatalf("ms = %d, want 1638725293444", ms)
	}
}

func TestTimeMilliFromIDRejectsMalformed(t *testing.T) {
	ids := []string{"", "-1085", "nodigits-1085", "1638725293444"}

	for _, id := range ids {
		if _, err := quarkidutil.TimeMilliFromID(id); err == nil {
			t.Fatalf("expected error for %q", id)
		}
	}
}
