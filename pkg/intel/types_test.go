package intel

import (
	"encoding/json"
	"testing"
	"time"
)

func TestTimestampParsesNaiveAndRFC3339(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"rfc3339", `"2025-06-01T10:30:00Z"`, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"naive", `"2025-06-01T10:30:00"`, time.Date(2025, 6, 1, 10, 30, 0, 0, time.UTC)},
		{"naive fractional", `"2025-06-01T10:30:00.123456"`, time.Date(2025, 6, 1, 10, 30, 0, 123456000, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var ts Timestamp
			if err := json.Unmarshal([]byte(tt.input), &ts); err != nil {
				t.Fatalf("Unmarshal(%s): %v", tt.input, err)
			}
			if !ts.Equal(tt.want) {
				t.Fatalf("got %v, want %v", ts.Time, tt.want)
			}
		})
	}
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	if err := json.Unmarshal([]byte(`"last tuesday"`), &ts); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestCensusStale(t *testing.T) {
	now := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)

	fresh := Geography{CensusLastRefreshedAt: &Timestamp{now.Add(-24 * time.Hour)}}
	if fresh.CensusStale(now) {
		t.Fatal("day-old census data should not be stale")
	}

	old := Geography{CensusLastRefreshedAt: &Timestamp{now.Add(-31 * 24 * time.Hour)}}
	if !old.CensusStale(now) {
		t.Fatal("31-day-old census data should be stale")
	}

	never := Geography{}
	if !never.CensusStale(now) {
		t.Fatal("never-refreshed census data should be stale")
	}
}

func TestRunStatusTerminal(t *testing.T) {
	for status, terminal := range map[RunStatus]bool{
		StatusPending: false,
		StatusRunning: false,
		StatusSuccess: true,
		StatusFailed:  true,
	} {
		if status.IsTerminal() != terminal {
			t.Fatalf("%s: IsTerminal = %v, want %v", status, status.IsTerminal(), terminal)
		}
	}
}

func TestChannelTypeValidation(t *testing.T) {
	if !ChannelType("HOA").Valid() {
		t.Fatal("HOA should be valid")
	}
	if ChannelType("PIGEON_POST").Valid() {
		t.Fatal("unknown channel type should be invalid")
	}
}

func TestParseServiceCategoryDefaultsToGeneral(t *testing.T) {
	if got := ParseServiceCategory(""); got != CategoryGeneral {
		t.Fatalf("empty input: got %q, want general", got)
	}
	if got := ParseServiceCategory("  Lawn_Care "); got != CategoryLawnCare {
		t.Fatalf("got %q, want lawn_care", got)
	}
}

func TestDecodeChannelRecommendations(t *testing.T) {
	raw := json.RawMessage(`[{"channel_type":"direct_mail","rationale":"high homeowner density","estimated_reach":1200,"estimated_cost_range":"$500-$900"}]`)
	report := IntelligenceReport{ChannelRecommendations: raw}

	recs, err := report.DecodeChannelRecommendations()
	if err != nil {
		t.Fatalf("DecodeChannelRecommendations: %v", err)
	}
	if len(recs) != 1 || recs[0].ChannelType != "direct_mail" || recs[0].EstimatedReach != 1200 {
		t.Fatalf("unexpected decode result: %+v", recs)
	}

	empty := IntelligenceReport{}
	recs, err = empty.DecodeChannelRecommendations()
	if err != nil || recs != nil {
		t.Fatalf("absent payload should decode to nil, nil; got %v, %v", recs, err)
	}

	null := IntelligenceReport{ChannelRecommendations: json.RawMessage("null")}
	recs, err = null.DecodeChannelRecommendations()
	if err != nil || recs != nil {
		t.Fatalf("null payload should decode to nil, nil; got %v, %v", recs, err)
	}
}

func TestDecodeTimingRecommendations(t *testing.T) {
	raw := json.RawMessage(`[{"time_period":"spring","rationale":"pre-season demand","demand_score":81.5,"recommended_actions":["book early"]}]`)
	report := IntelligenceReport{TimingRecommendations: raw}

	recs, err := report.DecodeTimingRecommendations()
	if err != nil {
		t.Fatalf("DecodeTimingRecommendations: %v", err)
	}
	if len(recs) != 1 || recs[0].DemandScore != 81.5 || len(recs[0].RecommendedActions) != 1 {
		t.Fatalf("unexpected decode result: %+v", recs)
	}
}
