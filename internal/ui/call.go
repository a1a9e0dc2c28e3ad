package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/BioHazard786/Warpcall/internal/call"
	"github.com/BioHazard786/Warpcall/internal/negotiation"
)

// NoticeTTL is how long a failure notice stays on screen.
const NoticeTTL = 5 * time.Second

type stateMsg call.State

type dismissMsg struct{ id int }

type tickMsg time.Time

// callModel is the live call screen. Key presses are forwarded to the
// session; the session reports back through stateMsg.
type callModel struct {
	state   call.State
	spinner spinner.Model

	onMute   func()
	onHangUp func()

	notice   string
	noticeID int

	liveSince time.Time
	now       time.Time
	quitting  bool
}

func newCallModel(onMute, onHangUp func()) *callModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	return &callModel{
		spinner:  s,
		onMute:   onMute,
		onHangUp: onHangUp,
		state:    call.State{Status: negotiation.StatusIdle},
		now:      time.Now(),
	}
}

func (m *callModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, tick())
}

func tick() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m *callModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "m":
			if m.onMute != nil && !m.state.Ended() {
				m.onMute()
			}
		case "q", "ctrl+c", "esc":
			if m.state.Ended() {
				m.quitting = true
				return m, tea.Quit
			}
			if m.onHangUp != nil {
				m.onHangUp()
			}
		}
		return m, nil

	case stateMsg:
		return m, m.apply(call.State(msg))

	case dismissMsg:
		if msg.id != m.noticeID {
			return m, nil
		}
		m.notice = ""
		if m.state.Ended() {
			m.quitting = true
			return m, tea.Quit
		}
		return m, nil

	case tickMsg:
		m.now = time.Time(msg)
		if m.quitting {
			return m, nil
		}
		return m, tick()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

// apply takes a new session snapshot. A failure raises a notice that
// dismisses itself; an ended call closes the screen once no notice is
// showing.
func (m *callModel) apply(st call.State) tea.Cmd {
	prev := m.state
	m.state = st

	if st.Phase == negotiation.Connected && m.liveSince.IsZero() {
		m.liveSince = time.Now()
	}

	var cmds []tea.Cmd
	if text := noticeFor(prev, st); text != "" {
		m.notice = text
		m.noticeID++
		id := m.noticeID
		cmds = append(cmds, tea.Tick(NoticeTTL, func(time.Time) tea.Msg { return dismissMsg{id: id} }))
	}

	if st.Ended() && m.notice == "" {
		m.quitting = true
		cmds = append(cmds, tea.Quit)
	}
	return tea.Batch(cmds...)
}

// noticeFor returns the notice to raise for the transition from prev to
// st, if any.
func noticeFor(prev, st call.State) string {
	if st.Err != nil && prev.Err == nil {
		return fmt.Sprintf("%s: %v", st.Status, st.Err)
	}
	if st.Status != prev.Status && st.Phase == negotiation.Connected && !st.Channel && prev.Channel {
		return st.Status
	}
	return ""
}

func (m *callModel) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder

	header := TitleStyle.Render(IconPhone + " Warpcall")
	if m.state.Room != "" {
		role := "guest"
		if m.state.IsHost {
			role = "host"
		}
		header += MutedStyle.Render(fmt.Sprintf("  room %s · %s", m.state.Room, role))
	}
	b.WriteString(header + "\n\n")

	switch m.state.Phase {
	case negotiation.Connected:
		b.WriteString(LiveStyle.Render("LIVE") + " " + m.state.Status)
		if !m.liveSince.IsZero() {
			b.WriteString(MutedStyle.Render("  " + formatTalkTime(m.now.Sub(m.liveSince))))
		}
	case negotiation.Ended:
		b.WriteString(IconHangUp + " " + m.state.Status)
	default:
		b.WriteString(m.spinner.View() + " " + m.state.Status)
	}
	b.WriteString("\n\n")

	mic := IconMic + " mic on"
	if m.state.Muted {
		mic = IconMicOff + " " + WarningStyle.Render("muted")
	}
	b.WriteString(mic)
	if m.state.Phase == negotiation.Connected {
		peer := IconSpeaker + " peer speaking"
		if m.state.RemoteMuted {
			peer = IconMicOff + " " + WarningStyle.Render("peer muted")
		}
		b.WriteString("   " + peer)
	}

	body := CallBoxStyle.Render(b.String())
	if m.notice != "" {
		body += "\n" + NoticeStyle.Render(IconError+" "+m.notice)
	}

	help := "m mute/unmute · q hang up"
	if m.state.Ended() {
		help = "q close"
	}
	return body + "\n" + MutedStyle.Render(help) + "\n"
}

// CallScreen drives the call model for a running session.
type CallScreen struct {
	program *tea.Program
	wg      sync.WaitGroup
	done    chan struct{}
}

// NewCallScreen subscribes a call screen to session. Start it before Run.
func NewCallScreen(session *call.Session) *CallScreen {
	model := newCallModel(session.ToggleMute, session.HangUp)
	cs := &CallScreen{program: tea.NewProgram(model), done: make(chan struct{})}
	session.OnStateChange(func(st call.State) {
		// Send blocks until the program reads it; Run may not have started.
		go cs.program.Send(stateMsg(st))
	})
	return cs
}

func (cs *CallScreen) Start() {
	cs.wg.Add(1)
	go func() {
		defer cs.wg.Done()
		defer close(cs.done)
		if _, err := cs.program.Run(); err != nil {
			fmt.Printf("UI error: %v\n", err)
		}
	}()
}

// Wait blocks until the screen has closed, closing it after timeout if
// it is still open.
func (cs *CallScreen) Wait(timeout time.Duration) {
	select {
	case <-cs.done:
	case <-time.After(timeout):
		cs.program.Quit()
	}
	cs.wg.Wait()
}
