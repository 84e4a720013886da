package state

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"sitaraServer/config"
	"sitaraServer/game"
)

// ==============================================================================
// MARKET STATUS
// ==============================================================================

type Status string

const (
	// Both sessions take bets.
	StatusOpenBetting Status = "open_betting"
	// The open result is due or out; only close-session bets are taken.
	StatusCloseBetting Status = "close_betting"
	StatusClosedToday  Status = "closed_today"
)

// Reasons attached to StatusClosedToday
const (
	ReasonInactive = "inactive"
	ReasonHoliday  = "holiday"
	ReasonClosed   = "closed"
)

// Market is the timing view of a bazaar.
type Market struct {
	ID             string
	Name           string
	OpenTime       string // HH:MM
	CloseTime      string // HH:MM
	ClosedWeekdays []int
	Active         bool
	SortOrder      int
}

// MarketState is a market's betting status at a moment.
type MarketState struct {
	BazaarID  string `json:"bazaarId"`
	Name      string `json:"name"`
	Status    Status `json:"status"`
	Reason    string `json:"reason,omitempty"`
	GameDate  string `json:"gameDate"`
	OpenTime  string `json:"openTime"`
	CloseTime string `json:"closeTime"`
}

// Accepts reports whether a bet of this type and session can be placed.
func (s MarketState) Accepts(g game.GameType, session game.Session) bool {
	switch s.Status {
	case StatusOpenBetting:
		return true
	case StatusCloseBetting:
		return session == game.SessionClose && !g.Sessionless()
	}
	return false
}

func clockMinutes(hhmm string) (int, error) {
	t, err := time.Parse(config.ClockLayout, hhmm)
	if err != nil {
		return 0, fmt.Errorf("invalid clock %q: %w", hhmm, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func closedOn(days []int, wd time.Weekday) bool {
	for _, d := range days {
		if time.Weekday(d) == wd {
			return true
		}
	}
	return false
}

// Compute derives a market's state at now. now must already be in the
// market timezone. A close time at or before the open time runs past
// midnight, and until it passes the market belongs to the previous day.
func Compute(m Market, now time.Time) MarketState {
	st := MarketState{
		BazaarID:  m.ID,
		Name:      m.Name,
		OpenTime:  m.OpenTime,
		CloseTime: m.CloseTime,
		GameDate:  now.Format(config.DateLayout),
	}

	if !m.Active {
		st.Status, st.Reason = StatusClosedToday, ReasonInactive
		return st
	}

	open, err1 := clockMinutes(m.OpenTime)
	closing, err2 := clockMinutes(m.CloseTime)
	if err1 != nil || err2 != nil {
		st.Status, st.Reason = StatusClosedToday, ReasonClosed
		return st
	}

	minute := now.Hour()*60 + now.Minute()
	gameDay := now
	overnight := closing <= open

	switch {
	case overnight && minute < closing:
		gameDay = now.AddDate(0, 0, -1)
		st.Status = StatusCloseBetting
	case minute < open:
		st.Status = StatusOpenBetting
	case overnight || minute < closing:
		st.Status = StatusCloseBetting
	default:
		st.Status, st.Reason = StatusClosedToday, ReasonClosed
	}

	st.GameDate = gameDay.Format(config.DateLayout)
	if closedOn(m.ClosedWeekdays, gameDay.Weekday()) {
		st.Status, st.Reason = StatusClosedToday, ReasonHoliday
	}
	return st
}

// ==============================================================================
// REGISTRY
// ==============================================================================

// Registry holds the current market list and the last broadcast state of
// each market. Reads compute status against the clock so bet placement
// never sees a stale minute.
type Registry struct {
	mu      sync.RWMutex
	loc     *time.Location
	now     func() time.Time
	markets map[string]Market
	last    map[string]MarketState
}

func NewRegistry(loc *time.Location) *Registry {
	if loc == nil {
		loc = time.UTC
	}
	return &Registry{
		loc:     loc,
		now:     time.Now,
		markets: make(map[string]Market),
		last:    make(map[string]MarketState),
	}
}

// SetClock overrides the time source.
func (r *Registry) SetClock(now func() time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.now = now
}

func (r *Registry) Location() *time.Location {
	return r.loc
}

// Now is the registry clock in the market timezone.
func (r *Registry) Now() time.Time {
	r.mu.RLock()
	now := r.now
	r.mu.RUnlock()
	return now().In(r.loc)
}

// Today is the calendar date in the market timezone.
func (r *Registry) Today() string {
	return r.Now().Format(config.DateLayout)
}

// Refresh replaces the market list and returns the states that differ
// from the previous refresh, including markets seen for the first time.
func (r *Registry) Refresh(markets []Market) []MarketState {
	now := r.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	next := make(map[string]Market, len(markets))
	nextStates := make(map[string]MarketState, len(markets))
	var changed []MarketState

	for _, m := range markets {
		next[m.ID] = m
		st := Compute(m, now)
		nextStates[m.ID] = st
		if prev, ok := r.last[m.ID]; !ok || prev != st {
			changed = append(changed, st)
		}
	}

	r.markets = next
	r.last = nextStates
	r.sortStates(changed)
	return changed
}

// Upsert adds or replaces one market between refreshes.
func (r *Registry) Upsert(m Market) MarketState {
	now := r.Now()

	r.mu.Lock()
	defer r.mu.Unlock()

	st := Compute(m, now)
	r.markets[m.ID] = m
	r.last[m.ID] = st
	return st
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.markets, id)
	delete(r.last, id)
}

// Get returns the live state of one market.
func (r *Registry) Get(id string) (MarketState, bool) {
	now := r.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.markets[id]
	if !ok {
		return MarketState{}, false
	}
	return Compute(m, now), true
}

// All returns the live state of every market in display order.
func (r *Registry) All() []MarketState {
	now := r.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	states := make([]MarketState, 0, len(r.markets))
	for _, m := range r.markets {
		states = append(states, Compute(m, now))
	}
	r.sortStates(states)
	return states
}

// sortStates orders by sort order, open time, then name. Callers hold mu.
func (r *Registry) sortStates(states []MarketState) {
	sort.Slice(states, func(i, j int) bool {
		a, b := r.markets[states[i].BazaarID], r.markets[states[j].BazaarID]
		if a.SortOrder != b.SortOrder {
			return a.SortOrder < b.SortOrder
		}
		if a.OpenTime != b.OpenTime {
			return a.OpenTime < b.OpenTime
		}
		return a.Name < b.Name
	})
}
