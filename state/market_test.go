package state

import (
	"testing"
	"time"

	"sitaraServer/game"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var ist = time.FixedZone("IST", 5*3600+1800)

func at(day int, hh, mm int) time.Time {
	// January 2024: the 1st is a Monday
	return time.Date(2024, time.January, day, hh, mm, 0, 0, ist)
}

func TestCompute_DayMarket(t *testing.T) {
	m := Market{ID: "kalyan", Name: "Kalyan", OpenTime: "15:45", CloseTime: "17:45", Active: true}

	cases := []struct {
		name   string
		now    time.Time
		status Status
		reason string
	}{
		{"morning", at(2, 9, 0), StatusOpenBetting, ""},
		{"at open", at(2, 15, 45), StatusCloseBetting, ""},
		{"between", at(2, 16, 30), StatusCloseBetting, ""},
		{"at close", at(2, 17, 45), StatusClosedToday, ReasonClosed},
		{"night", at(2, 23, 0), StatusClosedToday, ReasonClosed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			st := Compute(m, tc.now)
			assert.Equal(t, tc.status, st.Status)
			assert.Equal(t, tc.reason, st.Reason)
			assert.Equal(t, "2024-01-02", st.GameDate)
		})
	}
}

func TestCompute_OvernightMarket(t *testing.T) {
	m := Market{ID: "night", Name: "Night", OpenTime: "21:00", CloseTime: "02:00", Active: true}

	st := Compute(m, at(3, 1, 30))
	assert.Equal(t, StatusCloseBetting, st.Status)
	assert.Equal(t, "2024-01-02", st.GameDate)

	st = Compute(m, at(3, 2, 0))
	assert.Equal(t, StatusOpenBetting, st.Status)
	assert.Equal(t, "2024-01-03", st.GameDate)

	st = Compute(m, at(3, 22, 0))
	assert.Equal(t, StatusCloseBetting, st.Status)
	assert.Equal(t, "2024-01-03", st.GameDate)
}

func TestCompute_Closures(t *testing.T) {
	m := Market{ID: "x", OpenTime: "10:00", CloseTime: "12:00", Active: false}
	st := Compute(m, at(2, 9, 0))
	assert.Equal(t, StatusClosedToday, st.Status)
	assert.Equal(t, ReasonInactive, st.Reason)

	// Sundays off; the 7th is a Sunday
	m = Market{ID: "x", OpenTime: "10:00", CloseTime: "12:00", Active: true, ClosedWeekdays: []int{0}}
	st = Compute(m, at(7, 9, 0))
	assert.Equal(t, StatusClosedToday, st.Status)
	assert.Equal(t, ReasonHoliday, st.Reason)

	// overnight market belongs to Sunday until 02:00 Monday
	m = Market{ID: "n", OpenTime: "21:00", CloseTime: "02:00", Active: true, ClosedWeekdays: []int{0}}
	st = Compute(m, at(8, 1, 0))
	assert.Equal(t, ReasonHoliday, st.Reason)
	st = Compute(m, at(8, 3, 0))
	assert.Equal(t, StatusOpenBetting, st.Status)

	m = Market{ID: "bad", OpenTime: "nope", CloseTime: "12:00", Active: true}
	assert.Equal(t, StatusClosedToday, Compute(m, at(2, 9, 0)).Status)
}

func TestMarketStateAccepts(t *testing.T) {
	open := MarketState{Status: StatusOpenBetting}
	assert.True(t, open.Accepts(game.JodiDigit, game.SessionClose))
	assert.True(t, open.Accepts(game.SingleDigit, game.SessionOpen))

	closing := MarketState{Status: StatusCloseBetting}
	assert.True(t, closing.Accepts(game.SinglePanna, game.SessionClose))
	assert.False(t, closing.Accepts(game.SinglePanna, game.SessionOpen))
	assert.False(t, closing.Accepts(game.JodiDigit, game.SessionClose))
	assert.False(t, closing.Accepts(game.FullSangam, game.SessionClose))

	closed := MarketState{Status: StatusClosedToday}
	assert.False(t, closed.Accepts(game.SingleDigit, game.SessionClose))
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(ist)
	now := at(2, 9, 0)
	r.SetClock(func() time.Time { return now })

	markets := []Market{
		{ID: "b", Name: "Beta", OpenTime: "15:00", CloseTime: "17:00", Active: true, SortOrder: 2},
		{ID: "a", Name: "Alpha", OpenTime: "11:00", CloseTime: "12:00", Active: true, SortOrder: 1},
	}

	changed := r.Refresh(markets)
	require.Len(t, changed, 2)
	assert.Equal(t, "a", changed[0].BazaarID)

	assert.Empty(t, r.Refresh(markets), "nothing moves within the same window")

	now = at(2, 11, 30)
	changed = r.Refresh(markets)
	require.Len(t, changed, 1)
	assert.Equal(t, "a", changed[0].BazaarID)
	assert.Equal(t, StatusCloseBetting, changed[0].Status)

	// Get is live even without a refresh
	now = at(2, 12, 5)
	st, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, StatusClosedToday, st.Status)

	_, ok = r.Get("missing")
	assert.False(t, ok)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].BazaarID)

	r.Remove("a")
	assert.Len(t, r.All(), 1)

	st = r.Upsert(Market{ID: "c", Name: "Gamma", OpenTime: "13:00", CloseTime: "14:00", Active: true})
	assert.Equal(t, StatusOpenBetting, st.Status)
	assert.Equal(t, "2024-01-02", r.Today())
}
