package tui

import (
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/go-playground/validator/v10"
	"tessera-tui/model"
)

type formKind int

const (
	formLogin formKind = iota
	formSignup
)

// formModel is a small vertical stack of text inputs with one focused field
// and an inline error line. Validation runs before any request is built; a
// failed validation never reaches the network.
type formModel struct {
	kind    formKind
	title   string
	inputs  []textinput.Model
	focus   int
	errText string
}

var validate = validator.New()

func newLoginForm() formModel {
	username := textinput.New()
	username.Placeholder = "Username"
	username.CharLimit = 64

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 64
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return formModel{
		kind:   formLogin,
		title:  "Welcome back!",
		inputs: []textinput.Model{username, password},
	}
}

func newSignupForm() formModel {
	username := textinput.New()
	username.Placeholder = "Username"
	username.CharLimit = 64

	email := textinput.New()
	email.Placeholder = "Email"
	email.CharLimit = 128

	password := textinput.New()
	password.Placeholder = "Password"
	password.CharLimit = 64
	password.EchoMode = textinput.EchoPassword
	password.EchoCharacter = '•'

	return formModel{
		kind:   formSignup,
		title:  "Sign up now!",
		inputs: []textinput.Model{username, email, password},
	}
}

func (f *formModel) reset() {
	for i := range f.inputs {
		f.inputs[i].SetValue("")
		f.inputs[i].Blur()
	}
	f.focus = 0
	f.errText = ""
}

// focusCmd focuses the first field and returns its blink command.
func (f *formModel) focusCmd() tea.Cmd {
	for i := range f.inputs {
		f.inputs[i].Blur()
	}
	f.focus = 0
	return f.inputs[f.focus].Focus()
}

func (f *formModel) cycle(delta int) tea.Cmd {
	f.inputs[f.focus].Blur()
	f.focus = (f.focus + delta + len(f.inputs)) % len(f.inputs)
	return f.inputs[f.focus].Focus()
}

func (f *formModel) updateInputs(msg tea.Msg) tea.Cmd {
	cmds := make([]tea.Cmd, len(f.inputs))
	for i := range f.inputs {
		f.inputs[i], cmds[i] = f.inputs[i].Update(msg)
	}
	return tea.Batch(cmds...)
}

// credentials builds and validates the login payload.
func (f *formModel) credentials() (model.Credentials, bool) {
	creds := model.Credentials{
		Username: strings.TrimSpace(f.inputs[0].Value()),
		Password: f.inputs[1].Value(),
	}
	if err := validate.Struct(creds); err != nil {
		f.errText = formValidationText(f.kind, err)
		return model.Credentials{}, false
	}
	return creds, true
}

// signup builds and validates the signup payload.
func (f *formModel) signup() (model.SignupForm, bool) {
	form := model.SignupForm{
		Username: strings.TrimSpace(f.inputs[0].Value()),
		Email:    strings.TrimSpace(f.inputs[1].Value()),
		Password: f.inputs[2].Value(),
	}
	if err := validate.Struct(form); err != nil {
		f.errText = formValidationText(f.kind, err)
		return model.SignupForm{}, false
	}
	return form, true
}

func formValidationText(kind formKind, err error) string {
	var validateErr validator.ValidationErrors
	if errors.As(err, &validateErr) {
		for _, fieldErr := range validateErr {
			if fieldErr.Tag() == "email" {
				return "A valid email address is required"
			}
		}
	}
	if kind == formSignup {
		return "All fields are required"
	}
	return "Username and password are required"
}

func (f formModel) view() string {
	titleStyle := lipgloss.NewStyle().Bold(true)
	labelStyle := lipgloss.NewStyle().Faint(true)
	errStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("1"))

	labels := []string{"Username", "Password"}
	if f.kind == formSignup {
		labels = []string{"Username", "Email", "Password"}
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(f.title))
	b.WriteString("\n\n")
	if f.errText != "" {
		b.WriteString(errStyle.Render(f.errText))
		b.WriteString("\n\n")
	}
	for i, input := range f.inputs {
		b.WriteString(labelStyle.Render(labels[i]))
		b.WriteString("\n")
		b.WriteString(input.View())
		b.WriteString("\n\n")
	}
	return b.String()
}

// handleFormKey drives the login and signup states: tab cycles fields,
// enter submits, ctrl+n flips between the two forms.
func (m appModel) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	form := m.activeForm()
	if form == nil {
		return m, nil
	}

	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "esc":
		next, cmd := m.goBack()
		return next, cmd
	case "tab", "down":
		return m, form.cycle(1)
	case "shift+tab", "up":
		return m, form.cycle(-1)
	case "ctrl+n":
		if m.state == stateLogin {
			m.state = stateSignup
			return m, m.signupForm.focusCmd()
		}
		m.state = stateLogin
		return m, m.loginForm.focusCmd()
	case "enter":
		if m.state == stateLogin {
			creds, ok := form.credentials()
			if !ok {
				return m, nil
			}
			return m, m.loginCmd(creds)
		}
		payload, ok := form.signup()
		if !ok {
			return m, nil
		}
		return m, m.signupCmd(payload)
	}

	return m, form.updateInputs(msg)
}
