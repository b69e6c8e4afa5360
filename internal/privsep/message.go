package privsep

import (
	"encoding/json"
	"fmt"
)

// Action selects what a Request asks the worker to do.
type Action int

const (
	// ActionUnknown covers requests without an action or with one this
	// version does not know. The worker ignores them.
	ActionUnknown Action = iota
	ActionAuthenticate
	ActionStop
)

func (a Action) String() string {
	switch a {
	case ActionAuthenticate:
		return "authenticate"
	case ActionStop:
		return "stop"
	default:
		return "unknown"
	}
}

func (a Action) MarshalText() ([]byte, error) {
	if a == ActionUnknown {
		return nil, fmt.Errorf("cannot encode unknown action")
	}
	return []byte(a.String()), nil
}

func (a *Action) UnmarshalText(b []byte) error {
	switch string(b) {
	case "authenticate":
		*a = ActionAuthenticate
	case "stop":
		*a = ActionStop
	default:
		*a = ActionUnknown
	}
	return nil
}

// Request is sent from the supervisor to the worker. Username and Password
// are only meaningful for ActionAuthenticate.
type Request struct {
	Action   Action `json:"action"`
	Username string `json:"username"`
	Password string `json:"password"`
}

func AuthenticateRequest(username, password string) Request {
	return Request{Action: ActionAuthenticate, Username: username, Password: password}
}

func StopRequest() Request {
	return Request{Action: ActionStop}
}

// String never includes the password.
func (r Request) String() string {
	if r.Action == ActionAuthenticate {
		return fmt.Sprintf("%s(%s)", r.Action, r.Username)
	}
	return r.Action.String()
}

func (r Request) MarshalJSON() ([]byte, error) {
	if r.Action == ActionStop {
		return json.Marshal(struct {
			Action Action `json:"action"`
		}{r.Action})
	}
	type plain Request
	return json.Marshal(plain(r))
}

// Response answers an authenticate request. Stop has no response.
type Response struct {
	Result bool `json:"result"`
}

func (r *Response) UnmarshalJSON(b []byte) error {
	var wire struct {
		Result *bool `json:"result"`
	}
	if err := json.Unmarshal(b, &wire); err != nil {
		return err
	}
	if wire.Result == nil {
		return fmt.Errorf("response has no result")
	}
	r.Result = *wire.Result
	return nil
}
