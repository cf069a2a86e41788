// Package authz enforces per-operation signature-count and role
// requirements against an authenticator's resolved caller list.
package authz

import (
	"github.com/kashguard/msig-auth/internal/authfail"
	"github.com/kashguard/msig-auth/internal/profile"
)

// OperationType distinguishes write-permitting operations from
// read-only ones. It does not affect signature validation.
type OperationType int

const (
	EVALUATE OperationType = iota
	SUBMIT
)

// OperationPolicy is the per-operation configuration the gate checks
// callingUsers against.
type OperationPolicy struct {
	MinSignatures          int
	RequiredRolesPerSigner []profile.Role
	Type                   OperationType
}

// Gate is stateless; its single method is safe for concurrent use.
type Gate struct{}

func New() *Gate { return &Gate{} }

// Check enforces policy against callingUsers: first the minimum
// signature count, then — for every signer in order — that its role
// set is a superset of policy.RequiredRolesPerSigner. It fails on the
// first signer missing a role, never accumulating multiple failures.
func (g *Gate) Check(callingUsers []*profile.UserProfile, policy OperationPolicy) error {
	if len(callingUsers) < policy.MinSignatures {
		return authfail.Forbidden(policy.MinSignatures, len(callingUsers))
	}
	if len(policy.RequiredRolesPerSigner) == 0 {
		return nil
	}
	for _, u := range callingUsers {
		if !u.HasRoles(policy.RequiredRolesPerSigner) {
			required := make([]string, len(policy.RequiredRolesPerSigner))
			for i, r := range policy.RequiredRolesPerSigner {
				required[i] = string(r)
			}
			return authfail.MissingRole(u.Alias, u.RoleStrings(), required)
		}
	}
	return nil
}
