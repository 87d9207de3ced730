package access

import (
	"errors"

	"github.com/google/uuid"
	"github.com/prnadmin/server/internal/model"
)

// ErrForbidden is returned when the caller lacks a capability
var ErrForbidden = errors.New("forbidden")

// Capability is a single permission checked by handlers and presenters
type Capability uint32

const (
	// ViewAllAccounts widens every read to all users and exposes owner columns
	ViewAllAccounts Capability = 1 << iota
	ManageUsers
	ManageNumbers
	ManageRequests
	ManagePayouts
	ManageProviders
	ViewProviders
	RespondMessages
	IngestEvents
	RequestNumbers
	RequestPayouts
)

var capabilityNames = map[Capability]string{
	ViewAllAccounts: "view_all_accounts",
	ManageUsers:     "manage_users",
	ManageNumbers:   "manage_numbers",
	ManageRequests:  "manage_requests",
	ManagePayouts:   "manage_payouts",
	ManageProviders: "manage_providers",
	ViewProviders:   "view_providers",
	RespondMessages: "respond_messages",
	IngestEvents:    "ingest_events",
	RequestNumbers:  "request_numbers",
	RequestPayouts:  "request_payouts",
}

// Set is a bitmask of capabilities
type Set uint32

// Has reports whether every capability in c is present
func (s Set) Has(c Capability) bool {
	return uint32(s)&uint32(c) == uint32(c)
}

// Names lists the capabilities in s, in declaration order
func (s Set) Names() []string {
	names := make([]string, 0, len(capabilityNames))
	for c := ViewAllAccounts; c <= RequestPayouts; c <<= 1 {
		if s.Has(c) {
			names = append(names, capabilityNames[c])
		}
	}
	return names
}

func setOf(caps ...Capability) Set {
	var s Set
	for _, c := range caps {
		s |= Set(c)
	}
	return s
}

var roleCapabilities = map[model.Role]Set{
	model.RoleAdmin: setOf(
		ViewAllAccounts, ManageUsers, ManageNumbers, ManageRequests, ManagePayouts,
		ManageProviders, ViewProviders, RespondMessages, IngestEvents,
	),
	model.RoleSupport: setOf(ViewAllAccounts, ViewProviders, RespondMessages),
	model.RoleUser:    setOf(RespondMessages, RequestNumbers, RequestPayouts),
	// test accounts exercise the owner views but cannot withdraw
	model.RoleTest: setOf(RespondMessages, RequestNumbers),
}

// For returns the capability set granted to role. Unknown roles get nothing.
func For(role model.Role) Set {
	return roleCapabilities[role]
}

// Principal is the authenticated caller of a request
type Principal struct {
	UserID uuid.UUID
	Role   model.Role
	Caps   Set
}

// NewPrincipal computes the capability set once for the caller
func NewPrincipal(userID uuid.UUID, role model.Role) Principal {
	return Principal{UserID: userID, Role: role, Caps: For(role)}
}

// Can reports whether the principal holds c
func (p Principal) Can(c Capability) bool {
	return p.Caps.Has(c)
}

// Require returns ErrForbidden unless the principal holds c
func (p Principal) Require(c Capability) error {
	if !p.Can(c) {
		return ErrForbidden
	}
	return nil
}

// Scope is the data the principal is allowed to read
func (p Principal) Scope() model.Scope {
	return model.Scope{UserID: p.UserID, All: p.Can(ViewAllAccounts)}
}

// CanSeeUser reports whether the principal may read records owned by userID
func (p Principal) CanSeeUser(userID uuid.UUID) bool {
	return p.Can(ViewAllAccounts) || p.UserID == userID
}
