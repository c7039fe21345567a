package client

// Operational roles addressed by workflow notices. Role membership is
// resolved by the notifications platform service, not here.
const (
	RoleApprovers  = "negotiation_approvers"
	RoleOperations = "negotiation_operations"
	RoleContracts  = "contract_management"
)
