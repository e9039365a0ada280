// Package domain defines principals, the action taxonomy and the role
// decision table for access control.
package domain

// Role is a principal's privilege level. Roles carry no implicit hierarchy;
// each role's permitted actions are enumerated explicitly in the policy table.
type Role string

const (
	SuperUser  Role = "superuser"
	Volunteer  Role = "volunteer"
	NormalUser Role = "user"
)

// Roles lists every known role.
var Roles = []Role{SuperUser, Volunteer, NormalUser}

// IsValid reports whether the role is known.
func (r Role) IsValid() bool {
	switch r {
	case SuperUser, Volunteer, NormalUser:
		return true
	}
	return false
}

// Action is one entry of the fixed action taxonomy. New actions must be added
// here and to the policy table; ValidatePolicy rejects partial additions.
type Action string

const (
	ActionChatSend        Action = "chat:send"
	ActionChatReadOwn     Action = "chat:readOwn"
	ActionFAQManage       Action = "faq:manage"
	ActionUserManage      Action = "user:manage"
	ActionSecurityRead    Action = "security:read"
	ActionSystemConfigure Action = "system:configure"
)

// Actions lists every known action.
var Actions = []Action{
	ActionChatSend,
	ActionChatReadOwn,
	ActionFAQManage,
	ActionUserManage,
	ActionSecurityRead,
	ActionSystemConfigure,
}

// IsValid reports whether the action is part of the taxonomy.
func (a Action) IsValid() bool {
	for _, known := range Actions {
		if a == known {
			return true
		}
	}
	return false
}

// Classification is a resource's data sensitivity level.
type Classification string

const (
	ClassPublic       Classification = "public"
	ClassInternal     Classification = "internal"
	ClassConfidential Classification = "confidential"
	ClassRestricted   Classification = "restricted"
)

// IsValid reports whether the classification is known.
func (c Classification) IsValid() bool {
	switch c {
	case ClassPublic, ClassInternal, ClassConfidential, ClassRestricted:
		return true
	}
	return false
}

// Decision is the outcome of an authorization check.
type Decision string

const (
	Permit Decision = "permit"
	Deny   Decision = "deny"
)

// Permitted reports whether the request may proceed.
func (d Decision) Permitted() bool {
	return d == Permit
}
