package domain

import (
	"fmt"

	apperrors "github.com/aknoru/lacbot-security/internal/errors"
)

// ErrIncompletePolicy indicates the decision table does not cover every
// (role, action) pair.
var ErrIncompletePolicy = apperrors.New("access policy table is incomplete")

// Policy is a total (role, action) decision table. Every pair must be present:
// an absent entry is a configuration error, never an implicit allow or deny.
type Policy map[Role]map[Action]Decision

// DefaultPolicy enumerates each role's permitted actions explicitly. There is
// no inheritance between roles.
func DefaultPolicy() Policy {
	return Policy{
		NormalUser: {
			ActionChatSend:        Permit,
			ActionChatReadOwn:     Permit,
			ActionFAQManage:       Deny,
			ActionUserManage:      Deny,
			ActionSecurityRead:    Deny,
			ActionSystemConfigure: Deny,
		},
		Volunteer: {
			ActionChatSend:        Permit,
			ActionChatReadOwn:     Permit,
			ActionFAQManage:       Permit,
			ActionUserManage:      Deny,
			ActionSecurityRead:    Deny,
			ActionSystemConfigure: Deny,
		},
		SuperUser: {
			ActionChatSend:        Permit,
			ActionChatReadOwn:     Permit,
			ActionFAQManage:       Permit,
			ActionUserManage:      Permit,
			ActionSecurityRead:    Permit,
			ActionSystemConfigure: Permit,
		},
	}
}

// Validate checks the table for totality. Run it at startup so a policy gap
// is a boot failure, not a runtime surprise.
func (p Policy) Validate() error {
	for _, role := range Roles {
		actions, ok := p[role]
		if !ok {
			return apperrors.Wrap(ErrIncompletePolicy, fmt.Sprintf("role %q has no entries", role))
		}
		for _, action := range Actions {
			decision, ok := actions[action]
			if !ok {
				return apperrors.Wrap(ErrIncompletePolicy,
					fmt.Sprintf("role %q has no decision for action %q", role, action))
			}
			if decision != Permit && decision != Deny {
				return apperrors.Wrap(ErrIncompletePolicy,
					fmt.Sprintf("role %q action %q has invalid decision %q", role, action, decision))
			}
		}
	}
	return nil
}

// Lookup returns the table decision for a (role, action) pair. Unknown pairs
// deny; Validate at startup guarantees this branch is unreachable for known
// roles and actions.
func (p Policy) Lookup(role Role, action Action) Decision {
	actions, ok := p[role]
	if !ok {
		return Deny
	}
	decision, ok := actions[action]
	if !ok {
		return Deny
	}
	return decision
}
