// Package tui implements the terminal client: event browsing, login and
// signup, seat selection, checkout, and the ticket profile.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"tessera-tui/model"
	"tessera-tui/service"
	"tessera-tui/store"
)

type appState int

const (
	stateLoadingEvents appState = iota
	stateListEvents
	stateLogin
	stateSignup
	stateLoadingSeats
	stateSeatMap
	stateCheckingOut
	stateLoadingProfile
	stateProfile
	stateError
)

type appModel struct {
	client  *service.Client
	session *store.Session

	state     appState
	lastState appState
	err       error

	width  int
	height int

	events     []model.Event
	eventList  list.Model
	ticketList list.Model

	event     model.Event
	seats     model.SeatMap
	selection model.Selection
	pending   map[model.SeatID]bool

	// seatGen stamps each seat-map load; responses carrying a stale
	// generation are dropped (the user navigated away or reloaded).
	seatGen int

	cursorRow       int
	cursorCol       int
	showSeatNumbers bool
	notice          string

	loginForm  formModel
	signupForm formModel

	// pendingEvent/pendingProfile remember where to go after a login that
	// was forced by a protected action.
	pendingEvent   *model.Event
	pendingProfile bool

	spinner spinner.Model
}

type errMsg struct {
	err            error
	returnState    appState
	returnStateSet bool
}

type eventsMsg struct {
	events []model.Event
	err    error
}

type seatsMsg struct {
	gen   int
	seats model.SeatMap
	err   error
}

type reserveMsg struct {
	gen int
	id  model.SeatID
	err error
}

type checkoutMsg struct {
	err error
}

type profileMsg struct {
	tickets []model.Ticket
	err     error
}

type loginMsg struct {
	username string
	token    string
	err      error
}

// New builds the application model around an API client and the persisted
// session.
func New(client *service.Client, session *store.Session) tea.Model {
	m := appModel{
		client:    client,
		session:   session,
		state:     stateLoadingEvents,
		selection: model.NewSelection(),
		pending:   map[model.SeatID]bool{},
	}

	m.eventList = newList("Upcoming Events")
	m.ticketList = newList("My Tickets")
	m.loginForm = newLoginForm()
	m.signupForm = newSignupForm()
	m.showSeatNumbers = true

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("5"))
	m.spinner = sp

	return m
}

func (m appModel) Init() tea.Cmd {
	return tea.Batch(m.fetchEventsCmd(), m.spinner.Tick)
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeLists()
		return m, nil

	case tea.KeyMsg:
		if m.state == stateLogin || m.state == stateSignup {
			return m.handleFormKey(msg)
		}
		if m.handleFilterInput(msg) {
			return m, nil
		}
		var handled bool
		m, cmd, handled := m.handleKey(msg)
		if handled {
			return m, cmd
		}
		// fallthrough to component update

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		if m.isLoadingState() {
			return m, cmd
		}
		return m, nil

	case errMsg:
		m.err = msg.err
		if msg.returnStateSet {
			m.lastState = msg.returnState
		} else {
			m.lastState = recoverStateFrom(m.state)
		}
		m.state = stateError
		return m, nil

	case eventsMsg:
		if msg.err != nil {
			return m, errCmd(msg.err)
		}
		m.events = msg.events
		m.eventList.SetItems(buildEventItems(msg.events))
		m.state = stateListEvents
		return m, nil

	case seatsMsg:
		if msg.gen != m.seatGen {
			return m, nil
		}
		if msg.err != nil {
			return m, errWithReturnCmd(msg.err, stateListEvents)
		}
		m.seats = msg.seats
		m.selection = model.NewSelection()
		m.pending = map[model.SeatID]bool{}
		m.cursorRow = 0
		m.cursorCol = 0
		m.notice = ""
		m.state = stateSeatMap
		return m, nil

	case reserveMsg:
		if msg.gen != m.seatGen {
			return m, nil
		}
		delete(m.pending, msg.id)
		if msg.err != nil {
			if service.IsUnauthorized(msg.err) {
				return m.sessionRejected(), nil
			}
			m.notice = msg.err.Error()
			return m, nil
		}
		m.selection.Add(msg.id)
		m.notice = ""
		return m, nil

	case checkoutMsg:
		if msg.err != nil {
			if service.IsUnauthorized(msg.err) {
				return m.sessionRejected(), nil
			}
			// Selection stays intact so the user can retry.
			m.state = stateSeatMap
			var apiErr *service.APIError
			if errors.As(msg.err, &apiErr) {
				m.notice = apiErr.Message
			} else {
				m.notice = "Failed to connect to server. Please try again."
			}
			return m, nil
		}
		m.selection = model.NewSelection()
		return m.openProfile()

	case profileMsg:
		if msg.err != nil {
			if service.IsUnauthorized(msg.err) {
				return m.sessionRejected(), nil
			}
			return m, errWithReturnCmd(msg.err, stateListEvents)
		}
		m.ticketList.SetItems(buildTicketItems(msg.tickets))
		m.state = stateProfile
		return m, nil

	case loginMsg:
		if msg.err != nil {
			// Shown inline on the form, the way the server sent it.
			form := m.activeForm()
			if form != nil {
				form.errText = loginErrText(msg.err)
			}
			return m, nil
		}
		// Persisting is best effort; the in-memory session is set either way.
		_ = m.session.Login(msg.username, msg.token)
		m.loginForm.reset()
		m.signupForm.reset()
		return m.afterLogin()
	}

	var cmd tea.Cmd
	switch m.state {
	case stateListEvents:
		m.eventList, cmd = m.eventList.Update(msg)
	case stateProfile:
		m.ticketList, cmd = m.ticketList.Update(msg)
	}
	return m, cmd
}

func (m appModel) View() string {
	header := m.headerView()
	switch m.state {
	case stateLoadingEvents, stateLoadingSeats, stateCheckingOut, stateLoadingProfile:
		return header + "\n\n" + m.loadingView()
	case stateListEvents:
		return header + "\n\n" + m.eventList.View()
	case stateLogin:
		return header + "\n\n" + m.loginForm.view()
	case stateSignup:
		return header + "\n\n" + m.signupForm.view()
	case stateSeatMap:
		return header + "\n\n" + m.renderSeatMap()
	case stateProfile:
		return header + "\n\n" + m.ticketList.View()
	case stateError:
		return header + "\n\n" +
			lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Render(m.err.Error()) +
			"\n\n" + hint("Press esc to go back or ctrl+c to quit.")
	default:
		return header
	}
}

func (m appModel) headerView() string {
	title := lipgloss.NewStyle().Bold(true).Render("Tessera Events")
	sub := []string{}
	if username, ok := m.session.Username(); ok {
		sub = append(sub, fmt.Sprintf("User: %s", username))
	}
	if m.event.Name != "" && (m.state == stateSeatMap || m.state == stateCheckingOut || m.state == stateLoadingSeats) {
		sub = append(sub, fmt.Sprintf("Event: %s", m.event.Name))
	}
	if m.state == stateSeatMap && m.selection.Len() > 0 {
		sub = append(sub, fmt.Sprintf("Total: %s", formatCents(model.TotalPriceCents(m.selection, m.seats))))
	}
	meta := strings.Join(sub, " • ")
	if meta != "" {
		meta = "\n" + lipgloss.NewStyle().Faint(true).Render(meta)
	}

	hints := "ctrl+c quit • esc back"
	switch m.state {
	case stateListEvents:
		hints = "ctrl+c quit • type to filter • enter open event • ctrl+p my tickets"
	case stateLogin:
		hints = "ctrl+c quit • esc back • tab next field • enter log in • ctrl+n sign up"
	case stateSignup:
		hints = "ctrl+c quit • esc back • tab next field • enter sign up • ctrl+n log in"
	case stateSeatMap:
		hints = "ctrl+c quit • esc back • arrows move • space toggle seat • c checkout • n toggle numbers"
	case stateProfile:
		hints = "ctrl+c quit • esc back • ctrl+x log out"
	}

	filterLine := ""
	if listPtr := m.activeList(); listPtr != nil {
		if filter := listPtr.FilterValue(); filter != "" {
			filterLine = "\n" + hint(fmt.Sprintf("Filter: %s", filter))
		}
	}
	return title + meta + filterLine + "\n" + hint(hints)
}

func (m appModel) handleKey(msg tea.KeyMsg) (appModel, tea.Cmd, bool) {
	if m.state == stateSeatMap && (msg.Type == tea.KeySpace || msg.Type == tea.KeyEnter) {
		return m.toggleSeatAtCursor()
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit, true
	case "esc":
		if listPtr := m.activeList(); listPtr != nil {
			if listPtr.SettingFilter() || listPtr.IsFiltered() {
				listPtr.ResetFilter()
				return m, nil, true
			}
		}
		next, cmd := m.goBack()
		return next, cmd, true
	case "n":
		if m.state == stateSeatMap {
			m.showSeatNumbers = !m.showSeatNumbers
			return m, nil, true
		}
	case "ctrl+p":
		if m.state == stateListEvents {
			if !m.session.LoggedIn() {
				m.pendingProfile = true
				m.state = stateLogin
				return m, m.loginForm.focusCmd(), true
			}
			next, cmd := m.openProfile()
			return next, cmd, true
		}
	case "ctrl+x":
		if m.state == stateProfile {
			m.session.Logout()
			m.state = stateListEvents
			return m, nil, true
		}
	case "c":
		if m.state == stateSeatMap {
			return m.startCheckout()
		}
	case "up", "k", "down", "j", "left", "h", "right", "l":
		if m.state == stateSeatMap {
			m.moveCursor(msg.String())
			return m, nil, true
		}
	}

	if msg.Type == tea.KeyEnter && m.state == stateListEvents {
		item, ok := m.eventList.SelectedItem().(eventItem)
		if !ok {
			return m, nil, true
		}
		next, cmd := m.openEvent(item.event)
		return next, cmd, true
	}
	return m, nil, false
}

// openEvent loads the seat map for an event, going through login first when
// no session is present.
func (m appModel) openEvent(event model.Event) (appModel, tea.Cmd) {
	if !m.session.LoggedIn() {
		event := event
		m.pendingEvent = &event
		m.state = stateLogin
		return m, m.loginForm.focusCmd()
	}
	m.event = event
	m.seatGen++
	m.state = stateLoadingSeats
	return m, tea.Batch(m.fetchSeatsCmd(event.EventID, m.seatGen), m.spinner.Tick)
}

func (m appModel) openProfile() (appModel, tea.Cmd) {
	token, ok := m.session.Token()
	if !ok {
		m.pendingProfile = true
		m.state = stateLogin
		return m, m.loginForm.focusCmd()
	}
	m.state = stateLoadingProfile
	return m, tea.Batch(m.fetchProfileCmd(token), m.spinner.Tick)
}

// afterLogin resumes whatever action forced the login.
func (m appModel) afterLogin() (appModel, tea.Cmd) {
	if m.pendingEvent != nil {
		event := *m.pendingEvent
		m.pendingEvent = nil
		return m.openEvent(event)
	}
	if m.pendingProfile {
		m.pendingProfile = false
		return m.openProfile()
	}
	m.state = stateListEvents
	return m, nil
}

// sessionRejected handles an authentication-rejected response from any
// endpoint: the session is cleared and the user lands on login.
func (m appModel) sessionRejected() appModel {
	m.session.Logout()
	if m.event.EventID != 0 {
		event := m.event
		m.pendingEvent = &event
	}
	m.loginForm.errText = "Your session has expired. Please log in again."
	m.state = stateLogin
	return m
}

// toggleSeatAtCursor implements the asymmetric toggle: deselecting is purely
// local (there is no endpoint to release a server hold),
// selecting reserves the seat server-side before it joins the selection.
func (m appModel) toggleSeatAtCursor() (appModel, tea.Cmd, bool) {
	id, seat, ok := m.seatAtCursor()
	if !ok {
		return m, nil, true
	}

	if m.selection.Contains(id) {
		m.selection.Remove(id)
		m.notice = ""
		return m, nil, true
	}
	if m.pending[id] {
		return m, nil, true
	}
	if seat.Status == model.SeatSold {
		m.notice = fmt.Sprintf("Seat %s is sold", id.Key())
		return m, nil, true
	}

	token, hasToken := m.session.Token()
	if !hasToken {
		return m.sessionRejected(), nil, true
	}

	m.pending[id] = true
	m.notice = ""
	return m, m.reserveCmd(token, m.event.EventID, id, m.seatGen), true
}

// startCheckout converts the selection into a purchase. An empty selection
// is a no-op: no request is issued.
func (m appModel) startCheckout() (appModel, tea.Cmd, bool) {
	if m.selection.Len() == 0 {
		m.notice = "No seats selected"
		return m, nil, true
	}
	token, ok := m.session.Token()
	if !ok {
		return m.sessionRejected(), nil, true
	}
	m.state = stateCheckingOut
	return m, tea.Batch(m.checkoutCmd(token, m.event.EventID, m.selection.Refs()), m.spinner.Tick), true
}

func (m appModel) goBack() (appModel, tea.Cmd) {
	switch m.state {
	case stateLogin, stateSignup:
		m.pendingEvent = nil
		m.pendingProfile = false
		m.loginForm.reset()
		m.signupForm.reset()
		m.state = stateListEvents
	case stateSeatMap:
		// Leaving drops the selection; any in-flight reservation response
		// is ignored via the generation stamp.
		m.seatGen++
		m.selection = model.NewSelection()
		m.pending = map[model.SeatID]bool{}
		m.state = stateListEvents
	case stateProfile:
		m.state = stateListEvents
	case stateError:
		m.state = m.lastState
	default:
		return m, nil
	}
	if m.state == stateListEvents && len(m.eventList.Items()) == 0 {
		m.state = stateLoadingEvents
		return m, tea.Batch(m.fetchEventsCmd(), m.spinner.Tick)
	}
	return m, nil
}

func (m *appModel) handleFilterInput(msg tea.KeyMsg) bool {
	listPtr := m.activeList()
	if listPtr == nil {
		return false
	}
	if !listPtr.FilteringEnabled() {
		return false
	}
	switch msg.Type {
	case tea.KeyRunes:
		if len(msg.Runes) == 0 {
			return false
		}
		m.appendFilter(listPtr, string(msg.Runes))
		return true
	case tea.KeySpace:
		m.appendFilter(listPtr, " ")
		return true
	case tea.KeyBackspace, tea.KeyDelete:
		if listPtr.FilterValue() == "" {
			return false
		}
		m.popFilter(listPtr)
		return true
	default:
		return false
	}
}

func (m *appModel) appendFilter(listPtr *list.Model, value string) {
	if value == "" {
		return
	}
	current := listPtr.FilterValue()
	listPtr.SetFilterText(current + value)
}

func (m *appModel) popFilter(listPtr *list.Model) {
	value := listPtr.FilterValue()
	if value == "" {
		return
	}
	value = trimLastRune(value)
	if value == "" {
		listPtr.ResetFilter()
		return
	}
	listPtr.SetFilterText(value)
}

func trimLastRune(value string) string {
	runes := []rune(value)
	if len(runes) <= 1 {
		return ""
	}
	return string(runes[:len(runes)-1])
}

func (m *appModel) activeList() *list.Model {
	switch m.state {
	case stateListEvents:
		return &m.eventList
	case stateProfile:
		return &m.ticketList
	default:
		return nil
	}
}

func (m *appModel) activeForm() *formModel {
	switch m.state {
	case stateLogin:
		return &m.loginForm
	case stateSignup:
		return &m.signupForm
	default:
		return nil
	}
}

func (m appModel) isLoadingState() bool {
	return m.state == stateLoadingEvents ||
		m.state == stateLoadingSeats ||
		m.state == stateCheckingOut ||
		m.state == stateLoadingProfile
}

func (m appModel) loadingView() string {
	title := "Loading"
	switch m.state {
	case stateLoadingEvents:
		title = "Loading events"
	case stateLoadingSeats:
		title = "Loading seats"
	case stateCheckingOut:
		title = "Completing purchase"
	case stateLoadingProfile:
		title = "Loading tickets"
	}

	return fmt.Sprintf("%s %s\n\n%s", m.spinner.View(), title, hint("Fetching data..."))
}

func (m *appModel) resizeLists() {
	if m.width == 0 || m.height == 0 {
		return
	}
	h := m.height - 6
	if h < 6 {
		h = 6
	}
	m.eventList.SetSize(m.width, h)
	m.ticketList.SetSize(m.width, h)
}

func newList(title string) list.Model {
	delegate := list.NewDefaultDelegate()
	delegate.ShowDescription = true
	l := list.New([]list.Item{}, delegate, 0, 0)
	l.Title = title
	l.Filter = caseInsensitiveFilter
	l.SetFilteringEnabled(true)
	l.SetShowFilter(true)
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	return l
}

func hint(text string) string {
	return lipgloss.NewStyle().Faint(true).Render(text)
}

func errCmd(err error) tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: err}
	}
}

func errWithReturnCmd(err error, returnState appState) tea.Cmd {
	return func() tea.Msg {
		return errMsg{err: err, returnState: returnState, returnStateSet: true}
	}
}

func recoverStateFrom(state appState) appState {
	switch state {
	case stateLoadingEvents:
		return stateListEvents
	case stateLoadingSeats, stateCheckingOut:
		return stateSeatMap
	case stateLoadingProfile:
		return stateListEvents
	default:
		return state
	}
}

func loginErrText(err error) string {
	var apiErr *service.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return "Failed to connect to server. Please try again."
}

func truncateDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func caseInsensitiveFilter(term string, targets []string) []list.Rank {
	term = strings.ToLower(term)
	lower := make([]string, len(targets))
	for i, t := range targets {
		lower[i] = strings.ToLower(t)
	}
	return list.DefaultFilter(term, lower)
}

func formatCents(cents int) string {
	return fmt.Sprintf("$%d.%02d", cents/100, cents%100)
}

func (m appModel) fetchEventsCmd() tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		events, err := m.client.ListEvents(ctx, truncateDate(time.Now()))
		return eventsMsg{events: events, err: err}
	}
}

func (m appModel) fetchSeatsCmd(eventID int, gen int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		seats, err := m.client.GetSeatMap(ctx, eventID)
		return seatsMsg{gen: gen, seats: seats, err: err}
	}
}

func (m appModel) reserveCmd(token string, eventID int, id model.SeatID, gen int) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		err := m.client.ReserveSeats(ctx, token, eventID, []model.SeatRef{id.Ref()})
		return reserveMsg{gen: gen, id: id, err: err}
	}
}

func (m appModel) checkoutCmd(token string, eventID int, seats []model.SeatRef) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		err := m.client.PurchaseSeats(ctx, token, eventID, seats)
		return checkoutMsg{err: err}
	}
}

func (m appModel) fetchProfileCmd(token string) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		tickets, err := m.client.GetProfile(ctx, token)
		return profileMsg{tickets: tickets, err: err}
	}
}

func (m appModel) loginCmd(creds model.Credentials) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		resp, err := m.client.Login(ctx, creds)
		if err != nil {
			return loginMsg{err: err}
		}
		return loginMsg{username: creds.Username, token: resp.AccessToken}
	}
}

// signupCmd creates the account and then logs straight in with the same
// credentials.
func (m appModel) signupCmd(form model.SignupForm) tea.Cmd {
	return func() tea.Msg {
		ctx := context.Background()
		if err := m.client.CreateUser(ctx, form); err != nil {
			return loginMsg{err: err}
		}
		resp, err := m.client.Login(ctx, model.Credentials{
			Username: form.Username,
			Password: form.Password,
		})
		if err != nil {
			return loginMsg{err: err}
		}
		return loginMsg{username: form.Username, token: resp.AccessToken}
	}
}

type eventItem struct {
	event model.Event
}

func (e eventItem) Title() string {
	return e.event.Name
}

func (e eventItem) Description() string {
	parts := []string{}
	if e.event.Date != "" {
		parts = append(parts, e.event.Date)
	}
	if e.event.Time != "" {
		parts = append(parts, e.event.Time)
	}
	if e.event.Location != "" {
		parts = append(parts, e.event.Location)
	}
	return strings.Join(parts, " • ")
}

func (e eventItem) FilterValue() string {
	return strings.ToLower(strings.Join([]string{e.event.Name, e.event.Location, e.event.Date}, " "))
}

func buildEventItems(events []model.Event) []list.Item {
	items := make([]list.Item, 0, len(events))
	for _, event := range events {
		items = append(items, eventItem{event: event})
	}
	return items
}

type ticketItem struct {
	ticket model.Ticket
}

func (t ticketItem) Title() string {
	seat := fmt.Sprintf("%s%d", t.ticket.RowName, t.ticket.SeatNumber)
	if t.ticket.RowName == "" {
		return t.ticket.Name
	}
	return fmt.Sprintf("%s • Seat %s", t.ticket.Name, seat)
}

func (t ticketItem) Description() string {
	parts := []string{}
	if t.ticket.Date != "" {
		parts = append(parts, t.ticket.Date)
	}
	if t.ticket.Time != "" {
		parts = append(parts, t.ticket.Time)
	}
	if t.ticket.Location != "" {
		parts = append(parts, t.ticket.Location)
	}
	if t.ticket.Barcode != "" {
		parts = append(parts, t.ticket.Barcode)
	}
	return strings.Join(parts, " • ")
}

func (t ticketItem) FilterValue() string {
	return strings.ToLower(strings.Join([]string{t.ticket.Name, t.ticket.Location, t.ticket.Date}, " "))
}

func buildTicketItems(tickets []model.Ticket) []list.Item {
	items := make([]list.Item, 0, len(tickets))
	for _, ticket := range tickets {
		items = append(items, ticketItem{ticket: ticket})
	}
	return items
}
