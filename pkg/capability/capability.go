// Package capability defines the closed registry of capability tokens used
// for access checks. Tokens follow the <domain>_<action> shape; unknown
// tokens carried by a role are inert and never grant access.
package capability

// Domains group related operations behind a shared token prefix.
const (
	DomainHierarchy    = "hierarchyManagement"
	DomainRole         = "roleManagement"
	DomainMember       = "memberManagement"
	DomainNotification = "notificationManagement"
	DomainPromotion    = "promotionManagement"
	DomainPayment      = "paymentManagement"
)

// Actions split each domain into read and write grants.
const (
	ActionView   = "view"
	ActionModify = "modify"
)

// Common tokens referenced directly by operations.
const (
	HierarchyView      = DomainHierarchy + "_" + ActionView
	HierarchyModify    = DomainHierarchy + "_" + ActionModify
	RoleView           = DomainRole + "_" + ActionView
	RoleModify         = DomainRole + "_" + ActionModify
	MemberView         = DomainMember + "_" + ActionView
	MemberModify       = DomainMember + "_" + ActionModify
	NotificationView   = DomainNotification + "_" + ActionView
	NotificationModify = DomainNotification + "_" + ActionModify
	PromotionView      = DomainPromotion + "_" + ActionView
	PromotionModify    = DomainPromotion + "_" + ActionModify
	PaymentView        = DomainPayment + "_" + ActionView
	PaymentModify      = DomainPayment + "_" + ActionModify
)

var known = map[string]struct{}{
	HierarchyView: {}, HierarchyModify: {},
	RoleView: {}, RoleModify: {},
	MemberView: {}, MemberModify: {},
	NotificationView: {}, NotificationModify: {},
	PromotionView: {}, PromotionModify: {},
	PaymentView: {}, PaymentModify: {},
}

// Token builds the canonical token for a domain/action pair.
func Token(domain, action string) string {
	return domain + "_" + action
}

// IsKnown reports whether t is a registered capability token.
func IsKnown(t string) bool {
	_, ok := known[t]
	return ok
}

// All returns every registered token. The slice is a fresh copy.
func All() []string {
	out := make([]string, 0, len(known))
	for t := range known {
		out = append(out, t)
	}
	return out
}
