package authorization

const (
	ObjectOrganization  = "organization"
	ObjectMember        = "member"
	ObjectPhoneNumber   = "phone_number"
	ObjectCall          = "call"
	ObjectRecording     = "recording"
	ObjectSupportTicket = "support_ticket"
	ObjectSync          = "sync"
	ObjectBilling       = "billing"
	ObjectAPIKey        = "api_key"
	ObjectAuditLog      = "audit_log"
	ObjectIntegration   = "integration"
	ObjectUser          = "user"
	ObjectDev           = "dev"
)

const (
	ActionOrganizationView   = "organization.view"
	ActionOrganizationCreate = "organization.create"
	ActionOrganizationUpdate = "organization.update"

	ActionMemberView   = "member.view"
	ActionMemberManage = "member.manage"

	ActionPhoneNumberView   = "phone_number.view"
	ActionPhoneNumberAssign = "phone_number.assign"

	ActionCallView      = "call.view"
	ActionRecordingView = "recording.view"

	ActionSupportTicketView   = "support_ticket.view"
	ActionSupportTicketCreate = "support_ticket.create"
	ActionSupportTicketUpdate = "support_ticket.update"

	ActionSyncView    = "sync.view"
	ActionSyncTrigger = "sync.trigger"

	ActionBillingView   = "billing.view"
	ActionBillingManage = "billing.manage"

	ActionAPIKeyView   = "api_key.view"
	ActionAPIKeyManage = "api_key.manage"

	ActionAuditLogView = "audit_log.view"

	ActionIntegrationView   = "integration.view"
	ActionIntegrationManage = "integration.manage"

	ActionUserView   = "user.view"
	ActionUserManage = "user.manage"

	ActionDevSeed = "dev.seed"
)

// Org-scoped manager permission columns on org_manager_permissions.
const (
	PermManageAgents       = "can_manage_agents"
	PermManagePhoneNumbers = "can_manage_phone_numbers"
	PermEditServiceTargets = "can_edit_service_targets"
	PermViewBilling        = "can_view_billing"
)

// Platform manager permission columns on platform_manager_permissions.
const (
	PermManagePhoneNumbersGlobal = "can_manage_phone_numbers_global"
	PermManageAgentsGlobal       = "can_manage_agents_global"
	PermManageOrgs               = "can_manage_orgs"
	PermViewBillingGlobal        = "can_view_billing_global"
)

type permissionFallback struct {
	org      string
	platform string
}

// managerFallbacks lists the named permissions that grant an action to
// managers when the role matrix alone does not.
var managerFallbacks = map[string]permissionFallback{
	ActionMemberView:         {org: PermManageAgents, platform: PermManageAgentsGlobal},
	ActionMemberManage:       {org: PermManageAgents, platform: PermManageAgentsGlobal},
	ActionUserView:           {platform: PermManageAgentsGlobal},
	ActionUserManage:         {platform: PermManageAgentsGlobal},
	ActionPhoneNumberView:    {org: PermManagePhoneNumbers, platform: PermManagePhoneNumbersGlobal},
	ActionPhoneNumberAssign:  {org: PermManagePhoneNumbers, platform: PermManagePhoneNumbersGlobal},
	ActionOrganizationView:   {platform: PermManageOrgs},
	ActionOrganizationCreate: {platform: PermManageOrgs},
	ActionOrganizationUpdate: {org: PermEditServiceTargets, platform: PermManageOrgs},
	ActionBillingView:        {org: PermViewBilling, platform: PermViewBillingGlobal},
}
