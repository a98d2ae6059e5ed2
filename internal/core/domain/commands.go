package domain

import "encoding/json"

// Command is the closed set of owner/customer self-service actions.
type Command interface {
	Kind() CommandKind
	isCommand()
}

type CommandKind string

const (
	CmdAddMenuItem    CommandKind = "add_menu_item"
	CmdEditMenuItem   CommandKind = "edit_menu_item"
	CmdDeleteMenuItem CommandKind = "delete_menu_item"
	CmdReorderMenu    CommandKind = "reorder_menu"
	CmdUpdateProfile  CommandKind = "update_profile"
	CmdAcceptOrder    CommandKind = "accept_order"
	CmdLogout         CommandKind = "logout"
	CmdUpdatePhone    CommandKind = "update_phone"
)

func (k CommandKind) Valid() bool {
	switch k {
	case CmdAddMenuItem, CmdEditMenuItem, CmdDeleteMenuItem, CmdReorderMenu,
		CmdUpdateProfile, CmdAcceptOrder, CmdLogout, CmdUpdatePhone:
		return true
	}
	return false
}

type AddMenuItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Price       int    `json:"price"`
	Image       string `json:"image"`
	Category    string `json:"category"`
	IsActive    *bool  `json:"is_active,omitempty"`
}

type EditMenuItem struct {
	ID          string  `json:"id"`
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Price       *int    `json:"price,omitempty"`
	Image       *string `json:"image,omitempty"`
	Category    *string `json:"category,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

type DeleteMenuItem struct {
	ID string `json:"id"`
}

// ReorderMenu assigns display order by position in IDs.
type ReorderMenu struct {
	IDs []string `json:"ids"`
}

type UpdateProfile struct {
	ProfileUpdate
}

type AcceptOrder struct {
	OrderID string `json:"order_id"`
}

type Logout struct{}

type UpdatePhone struct {
	PhoneNumber string `json:"phone_number"`
}

func (AddMenuItem) Kind() CommandKind    { return CmdAddMenuItem }
func (EditMenuItem) Kind() CommandKind   { return CmdEditMenuItem }
func (DeleteMenuItem) Kind() CommandKind { return CmdDeleteMenuItem }
func (ReorderMenu) Kind() CommandKind    { return CmdReorderMenu }
func (UpdateProfile) Kind() CommandKind  { return CmdUpdateProfile }
func (AcceptOrder) Kind() CommandKind    { return CmdAcceptOrder }
func (Logout) Kind() CommandKind         { return CmdLogout }
func (UpdatePhone) Kind() CommandKind    { return CmdUpdatePhone }

func (AddMenuItem) isCommand()    {}
func (EditMenuItem) isCommand()   {}
func (DeleteMenuItem) isCommand() {}
func (ReorderMenu) isCommand()    {}
func (UpdateProfile) isCommand()  {}
func (AcceptOrder) isCommand()    {}
func (Logout) isCommand()         {}
func (UpdatePhone) isCommand()    {}

type commandEnvelope struct {
	Type    CommandKind     `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// DecodeCommand reads {"type": ..., "payload": {...}} into its typed command.
func DecodeCommand(data []byte) (Command, error) {
	var env commandEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, NewValidationError("command", "malformed body: %v", err)
	}

	if !env.Type.Valid() {
		return nil, NewValidationError("type", "unknown command %q", env.Type)
	}
	if env.Type == CmdLogout {
		return Logout{}, nil
	}
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return nil, NewValidationError("payload", "required for %s", env.Type)
	}

	switch env.Type {
	case CmdAddMenuItem:
		return decodePayload[AddMenuItem](env)
	case CmdEditMenuItem:
		return decodePayload[EditMenuItem](env)
	case CmdDeleteMenuItem:
		return decodePayload[DeleteMenuItem](env)
	case CmdReorderMenu:
		return decodePayload[ReorderMenu](env)
	case CmdUpdateProfile:
		return decodePayload[UpdateProfile](env)
	case CmdAcceptOrder:
		return decodePayload[AcceptOrder](env)
	case CmdUpdatePhone:
		return decodePayload[UpdatePhone](env)
	}
	return nil, NewValidationError("type", "unknown command %q", env.Type)
}

func decodePayload[T Command](env commandEnvelope) (Command, error) {
	var cmd T
	if err := json.Unmarshal(env.Payload, &cmd); err != nil {
		return nil, NewValidationError("payload", "decode %s: %v", env.Type, err)
	}
	return cmd, nil
}
