package tui

import (
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"tessera-tui/config"
	"tessera-tui/model"
	"tessera-tui/service"
	"tessera-tui/store"
)

func newTestApp(t *testing.T) appModel {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_CONFIG_HOME", root)

	client := service.NewClient(config.Config{
		APIBaseURL:  "http://127.0.0.1:1",
		HTTPTimeout: time.Second,
	}, nil)
	session := store.Open(nil)
	return New(client, session).(appModel)
}

func loggedInApp(t *testing.T) appModel {
	t.Helper()
	m := newTestApp(t)
	if err := m.session.Login("alice", "token-123"); err != nil {
		t.Fatalf("login: %v", err)
	}
	return m
}

func seatMapApp(t *testing.T, seats model.SeatMap) appModel {
	t.Helper()
	m := loggedInApp(t)
	m.state = stateSeatMap
	m.event = model.Event{EventID: 7, Name: "Opening Night"}
	m.seats = seats
	m.seatGen = 1
	return m
}

type testItem struct {
	value string
}

func (t testItem) Title() string       { return t.value }
func (t testItem) Description() string { return "" }
func (t testItem) FilterValue() string { return strings.ToLower(t.value) }

func newFilterModel(t *testing.T, items []list.Item) *appModel {
	m := newTestApp(t)
	m.state = stateListEvents
	m.eventList = newList("Upcoming Events")
	m.eventList.SetItems(items)
	return &m
}

func TestHandleFilterInput_AppendsRunes(t *testing.T) {
	m := newFilterModel(t, []list.Item{
		testItem{value: "Opening Night"},
		testItem{value: "Jazz Evening"},
	})

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("j")}) {
		t.Fatal("expected filter input to be handled")
	}
	if got := m.eventList.FilterValue(); got != "j" {
		t.Fatalf("expected filter value to be %q, got %q", "j", got)
	}

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("a")}) {
		t.Fatal("expected filter input to be handled")
	}
	if got := m.eventList.FilterValue(); got != "ja" {
		t.Fatalf("expected filter value to be %q, got %q", "ja", got)
	}
}

func TestHandleFilterInput_Backspace(t *testing.T) {
	m := newFilterModel(t, []list.Item{
		testItem{value: "Opening Night"},
	})

	_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("o")})
	_ = m.handleFilterInput(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("p")})

	if !m.handleFilterInput(tea.KeyMsg{Type: tea.KeyBackspace}) {
		t.Fatal("expected backspace to be handled")
	}
	if got := m.eventList.FilterValue(); got != "o" {
		t.Fatalf("expected filter value to be %q, got %q", "o", got)
	}
}

func TestStartCheckout_EmptySelectionIsNoOp(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})

	next, cmd, handled := m.startCheckout()
	if !handled {
		t.Fatal("expected checkout key to be handled")
	}
	if cmd != nil {
		t.Fatal("expected no request for empty selection")
	}
	if next.state != stateSeatMap {
		t.Fatalf("unexpected state: %d", next.state)
	}
}

func TestToggleSeat_DeselectIsLocalOnly(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	id := model.SeatID{Row: "A", Number: 1}
	m.selection.Add(id)

	next, cmd, _ := m.toggleSeatAtCursor()
	if cmd != nil {
		t.Fatal("deselect must not issue a request")
	}
	if next.selection.Contains(id) {
		t.Fatal("expected seat to be deselected")
	}
}

func TestToggleSeat_SoldSeatNotSelectable(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatSold, PriceCents: 1000}},
	})

	next, cmd, _ := m.toggleSeatAtCursor()
	if cmd != nil {
		t.Fatal("sold seat must not issue a request")
	}
	if next.selection.Len() != 0 {
		t.Fatal("sold seat must not join the selection")
	}
	if next.notice == "" {
		t.Fatal("expected a notice for a sold seat")
	}
}

func TestToggleSeat_AvailableSeatReservesFirst(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	id := model.SeatID{Row: "A", Number: 1}

	next, cmd, _ := m.toggleSeatAtCursor()
	if cmd == nil {
		t.Fatal("expected a reservation request")
	}
	if next.selection.Contains(id) {
		t.Fatal("seat must not join the selection before the server confirms")
	}
	if !next.pending[id] {
		t.Fatal("expected seat to be marked pending")
	}
}

func TestReserveMsg_SuccessAddsToSelection(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	id := model.SeatID{Row: "A", Number: 1}
	m.pending[id] = true

	next, _ := m.Update(reserveMsg{gen: m.seatGen, id: id})
	got := next.(appModel)
	if !got.selection.Contains(id) {
		t.Fatal("expected seat in selection after confirmation")
	}
	if got.pending[id] {
		t.Fatal("expected pending mark to be cleared")
	}
}

func TestReserveMsg_FailureLeavesSelectionUnchanged(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	id := model.SeatID{Row: "A", Number: 1}
	m.pending[id] = true

	next, _ := m.Update(reserveMsg{gen: m.seatGen, id: id, err: errors.New("Seat A1 is already sold")})
	got := next.(appModel)
	if got.selection.Len() != 0 {
		t.Fatal("failed reservation must not change the selection")
	}
	if got.notice != "Seat A1 is already sold" {
		t.Fatalf("expected verbatim error notice, got %q", got.notice)
	}
}

func TestReserveMsg_StaleGenerationDropped(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	id := model.SeatID{Row: "A", Number: 1}
	m.seatGen = 2 // seat map was reloaded while the request was in flight

	next, _ := m.Update(reserveMsg{gen: 1, id: id})
	got := next.(appModel)
	if got.selection.Len() != 0 {
		t.Fatal("stale reservation response must be ignored")
	}
}

func TestCheckoutMsg_UnauthorizedClearsSessionAndRedirects(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	m.state = stateCheckingOut

	next, _ := m.Update(checkoutMsg{err: &service.APIError{
		StatusCode: http.StatusUnauthorized,
		Message:    "token expired",
	}})
	got := next.(appModel)
	if got.state != stateLogin {
		t.Fatalf("expected login state, got %d", got.state)
	}
	if got.session.LoggedIn() {
		t.Fatal("expected session to be cleared on 401")
	}
}

func TestCheckoutMsg_ServerRejectionKeepsSelection(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	id := model.SeatID{Row: "A", Number: 1}
	m.selection.Add(id)
	m.state = stateCheckingOut

	next, _ := m.Update(checkoutMsg{err: &service.APIError{
		StatusCode: http.StatusConflict,
		Message:    "Seat A1 is already sold",
	}})
	got := next.(appModel)
	if got.state != stateSeatMap {
		t.Fatalf("expected seat map state for retry, got %d", got.state)
	}
	if !got.selection.Contains(id) {
		t.Fatal("selection must stay intact so the user can retry")
	}
	if got.notice != "Seat A1 is already sold" {
		t.Fatalf("expected verbatim server message, got %q", got.notice)
	}
}

func TestCheckoutMsg_SuccessClearsSelectionAndOpensProfile(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000}},
	})
	m.selection.Add(model.SeatID{Row: "A", Number: 1})
	m.state = stateCheckingOut

	next, cmd := m.Update(checkoutMsg{})
	got := next.(appModel)
	if got.selection.Len() != 0 {
		t.Fatal("expected selection to be cleared after purchase")
	}
	if got.state != stateLoadingProfile {
		t.Fatalf("expected profile load, got state %d", got.state)
	}
	if cmd == nil {
		t.Fatal("expected profile fetch command")
	}
}

func TestScenario_SelectThenPurchase(t *testing.T) {
	seats := model.SeatMap{
		"A": {
			{SeatNumber: 1, Status: model.SeatAvailable, PriceCents: 1000},
			{SeatNumber: 2, Status: model.SeatSold, PriceCents: 1000},
		},
	}
	m := seatMapApp(t, seats)

	// A1 reserves fine.
	next, cmd, _ := m.toggleSeatAtCursor()
	if cmd == nil {
		t.Fatal("expected reservation request for A1")
	}
	model1, _ := next.Update(reserveMsg{gen: next.seatGen, id: model.SeatID{Row: "A", Number: 1}})
	m = model1.(appModel)

	// A2 is sold and stays out.
	m.cursorCol = 1
	afterSold, soldCmd, _ := m.toggleSeatAtCursor()
	if soldCmd != nil {
		t.Fatal("sold seat must not be selectable")
	}
	m = afterSold

	if got := model.TotalPriceCents(m.selection, m.seats); got != 1000 {
		t.Fatalf("expected total 1000, got %d", got)
	}

	// Purchase succeeds: selection cleared, profile opens.
	withCheckout, checkoutCmd, _ := m.startCheckout()
	if checkoutCmd == nil {
		t.Fatal("expected purchase request")
	}
	done, _ := withCheckout.Update(checkoutMsg{})
	final := done.(appModel)
	if final.selection.Len() != 0 {
		t.Fatal("expected selection cleared after checkout")
	}
	if final.state != stateLoadingProfile {
		t.Fatalf("expected profile load, got state %d", final.state)
	}
}

func TestMoveCursor_Clamps(t *testing.T) {
	m := seatMapApp(t, model.SeatMap{
		"A": {{SeatNumber: 1}, {SeatNumber: 2}},
		"B": {{SeatNumber: 1}},
	})

	m.moveCursor("right")
	if m.cursorCol != 1 {
		t.Fatalf("expected column 1, got %d", m.cursorCol)
	}
	m.moveCursor("down")
	if m.cursorRow != 1 {
		t.Fatalf("expected row 1, got %d", m.cursorRow)
	}
	// Row B is shorter, the column clamps.
	if m.cursorCol != 0 {
		t.Fatalf("expected column clamped to 0, got %d", m.cursorCol)
	}
	m.moveCursor("down")
	if m.cursorRow != 1 {
		t.Fatalf("expected row to stay at 1, got %d", m.cursorRow)
	}
}
