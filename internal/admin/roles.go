package admin

// Permission names one reviewable action on a subject's record.
type Permission string

const (
	PermApprove   Permission = "kyc:approve"
	PermReject    Permission = "kyc:reject"
	PermSuspend   Permission = "kyc:suspend"
	PermReinstate Permission = "kyc:reinstate"
	PermRescore   Permission = "kyc:rescore"
	PermWhitelist Permission = "kyc:whitelist"
	PermBlacklist Permission = "kyc:blacklist"
)

// Role names carried in the admin JWT.
const (
	RoleSupervisor        = "supervisor"
	RoleComplianceOfficer = "compliance_officer"
	RoleAnalyst           = "analyst"
	RoleAuditor           = "auditor"
)

// rolePermissions is the authorization table. Auditors hold no mutation
// permissions: their access is read-only through the query surface.
var rolePermissions = map[string][]Permission{
	RoleSupervisor: {
		PermApprove, PermReject, PermSuspend, PermReinstate,
		PermRescore, PermWhitelist, PermBlacklist,
	},
	RoleComplianceOfficer: {
		PermApprove, PermReject, PermSuspend, PermReinstate,
		PermRescore, PermWhitelist,
	},
	RoleAnalyst: {
		PermSuspend, PermRescore,
	},
	RoleAuditor: {},
}

// Actor is the authenticated admin performing a decision.
type Actor struct {
	ID   string
	Role string
}

// Can reports whether the actor's role holds the given permission.
func (a Actor) Can(perm Permission) bool {
	for _, p := range rolePermissions[a.Role] {
		if p == perm {
			return true
		}
	}
	return false
}
