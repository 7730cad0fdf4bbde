package ledger

import (
	"fmt"

	"github.com/MLY0813/NEST-Oracle-V3.5/common/accessctl"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/crypto/address"
	"github.com/MLY0813/NEST-Oracle-V3.5/common/errors"
	pool "github.com/MLY0813/NEST-Oracle-V3.5/pool/api"
)

// Actions gated by the role policy.
const (
	ActionFreeze                  accessctl.Action = "freeze"
	ActionUnfreeze                accessctl.Action = "unfreeze"
	ActionFreezeNativeAndToken    accessctl.Action = "freeze_native_and_token"
	ActionUnfreezeNativeAndToken  accessctl.Action = "unfreeze_native_and_token"
	ActionTransferInPool          accessctl.Action = "transfer_in_pool"
	ActionAdd                     accessctl.Action = "add"
	ActionDepositNative           accessctl.Action = "deposit_native"
	ActionDepositToken            accessctl.Action = "deposit_token"
	ActionWithdrawNative          accessctl.Action = "withdraw_native"
	ActionWithdrawToken           accessctl.Action = "withdraw_token"
	ActionWithdrawNativeAndToken  accessctl.Action = "withdraw_native_and_token"
	ActionFreezeWithTopUp         accessctl.Action = "freeze_with_top_up"
	ActionRegisterAsset           accessctl.Action = "register_asset"
	ActionSetRoles                accessctl.Action = "set_roles"
	ActionInitProtocolTokenLedger accessctl.Action = "init_protocol_token_ledger"
)

var actionRoles = map[accessctl.Action][]pool.Role{
	ActionFreeze:                  {pool.RoleMining},
	ActionUnfreeze:                {pool.RoleMining},
	ActionFreezeNativeAndToken:    {pool.RoleMining},
	ActionUnfreezeNativeAndToken:  {pool.RoleMining},
	ActionTransferInPool:          {pool.RoleMining, pool.RoleStaking, pool.RoleNNRewardPool},
	ActionAdd:                     {pool.RoleMining, pool.RoleNNRewardPool},
	ActionDepositNative:           {pool.RoleMining, pool.RoleStaking},
	ActionDepositToken:            {pool.RoleMining, pool.RoleStaking},
	ActionWithdrawNative:          {pool.RoleMining, pool.RoleStaking},
	ActionWithdrawToken:           {pool.RoleMining, pool.RoleStaking},
	ActionWithdrawNativeAndToken:  {pool.RoleMining, pool.RoleStaking},
	ActionFreezeWithTopUp:         {pool.RoleMining, pool.RoleStaking},
	ActionRegisterAsset:           {pool.RoleGovernance},
	ActionSetRoles:                {pool.RoleGovernance},
	ActionInitProtocolTokenLedger: {pool.RoleGovernance},
}

// RolesFor returns the roles permitted to perform an action.
func RolesFor(act accessctl.Action) []pool.Role {
	return actionRoles[act]
}

// NewPolicy builds the access policy for the given role bindings. Roles
// bound to an invalid identity grant nothing.
func NewPolicy(roles *pool.Roles) accessctl.Policy {
	policy := accessctl.NewPolicy()
	for act, permitted := range actionRoles {
		for _, role := range permitted {
			id := roles.Identity(role)
			if !id.IsValid() {
				continue
			}
			policy.Allow(accessctl.SubjectFromAddress(address.Address(id)), act)
		}
	}
	return policy
}

// CheckRole returns ErrUnauthorized unless the caller holds a role that
// permits the action.
func (l *Ledger) CheckRole(caller pool.Address, act accessctl.Action) error {
	policy := l.policy.Load().(accessctl.Policy)
	if caller.IsValid() && policy.IsAllowed(accessctl.SubjectFromAddress(address.Address(caller)), act) {
		return nil
	}
	return errors.WithContext(pool.ErrUnauthorized, fmt.Sprintf("%s may not %s", caller, act))
}
