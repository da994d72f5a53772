package account

import (
	"context"
	"errors"
	"fmt"

	"github.com/japaniel/labelscan/pkg/db"
)

// State is a screen of the application.
type State int

const (
	StateLogin State = iota
	StateRegister
	StateMain
)

func (s State) String() string {
	switch s {
	case StateLogin:
		return "login"
	case StateRegister:
		return "register"
	case StateMain:
		return "main"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Action is a named user action that moves between screens.
type Action string

const (
	ShowRegister   Action = "show_register"
	ShowLogin      Action = "show_login"
	SubmitLogin    Action = "submit_login"
	SubmitRegister Action = "submit_register"
	Logout         Action = "logout"
)

// ErrInvalidTransition is returned when an action is not allowed on the current screen.
var ErrInvalidTransition = errors.New("invalid transition")

var transitions = map[State]map[Action]State{
	StateLogin: {
		ShowRegister: StateRegister,
		SubmitLogin:  StateMain,
	},
	StateRegister: {
		ShowLogin:      StateLogin,
		SubmitRegister: StateLogin,
	},
	StateMain: {
		Logout: StateLogin,
	},
}

// Flow is the login → register → main screen state machine. Submit actions only
// move on when the service accepts them.
type Flow struct {
	svc   *Service
	state State
	user  *db.User
}

// NewFlow starts on the login screen.
func NewFlow(svc *Service) *Flow {
	return &Flow{svc: svc, state: StateLogin}
}

// State returns the current screen.
func (f *Flow) State() State { return f.state }

// User returns the logged in user, or nil outside the main screen.
func (f *Flow) User() *db.User { return f.user }

func (f *Flow) next(a Action) (State, error) {
	to, ok := transitions[f.state][a]
	if !ok {
		return f.state, fmt.Errorf("%w: %s on %s screen", ErrInvalidTransition, a, f.state)
	}
	return to, nil
}

// ShowRegister switches from the login screen to the registration screen.
func (f *Flow) ShowRegister() error {
	to, err := f.next(ShowRegister)
	if err != nil {
		return err
	}
	f.state = to
	return nil
}

// ShowLogin switches back from the registration screen.
func (f *Flow) ShowLogin() error {
	to, err := f.next(ShowLogin)
	if err != nil {
		return err
	}
	f.state = to
	return nil
}

// Login authenticates and enters the main screen. On failure the flow stays on
// the login screen.
func (f *Flow) Login(ctx context.Context, username, password string) error {
	to, err := f.next(SubmitLogin)
	if err != nil {
		return err
	}
	u, err := f.svc.Login(ctx, username, password)
	if err != nil {
		return err
	}
	f.user = u
	f.state = to
	return nil
}

// Register creates the account and returns to the login screen. On failure the
// flow stays on the registration screen.
func (f *Flow) Register(ctx context.Context, username, email, password string) (*Registration, error) {
	to, err := f.next(SubmitRegister)
	if err != nil {
		return nil, err
	}
	reg, err := f.svc.Register(ctx, username, email, password)
	if err != nil {
		return nil, err
	}
	f.state = to
	return reg, nil
}

// Logout leaves the main screen.
func (f *Flow) Logout() error {
	to, err := f.next(Logout)
	if err != nil {
		return err
	}
	f.user = nil
	f.state = to
	return nil
}
