package rbac

import "github.com/niaga-erp/niaga/internal/shared"

// Permission names checked by route groups.
const (
	PermOrdersCreate    = "sales.orders.create"
	PermOrdersConfirm   = "sales.orders.confirm"
	PermOrdersManage    = "sales.orders.manage"
	PermOrdersView      = "sales.orders.view"
	PermInventoryView   = "inventory.view"
	PermInventoryEdit   = "inventory.edit"
	PermInvoicesManage  = "finance.invoices.manage"
	PermPaymentsRecord  = "finance.payments.record"
	PermFinanceView     = "finance.view"
	PermPreparation     = "warehouse.preparation"
	PermStockConfirm    = "procurement.stock.confirm"
	PermProcurementEdit = "procurement.edit"
	PermDeliveryManage  = "delivery.manage"
	PermTargetsManage   = "targets.manage"
	PermTargetsView     = "targets.view"
	PermAnalyticsView   = "analytics.view"
	PermExpensesManage  = "finance.expenses.manage"
	PermAuditView       = "audit.view"
)

var rolePermissions = map[shared.Role][]string{
	shared.RoleAdmin: {
		PermOrdersCreate, PermOrdersConfirm, PermOrdersManage, PermOrdersView,
		PermInventoryView, PermInventoryEdit,
		PermInvoicesManage, PermPaymentsRecord, PermFinanceView, PermPreparation,
		PermStockConfirm, PermProcurementEdit, PermDeliveryManage,
		PermTargetsManage, PermTargetsView, PermAnalyticsView, PermExpensesManage,
		PermAuditView,
	},
	shared.RoleSales: {
		PermOrdersCreate, PermOrdersView, PermInventoryView, PermTargetsView, PermAnalyticsView,
	},
	shared.RoleFinance: {
		PermOrdersView, PermInvoicesManage, PermPaymentsRecord, PermFinanceView,
		PermExpensesManage, PermAnalyticsView, PermTargetsView, PermAuditView,
	},
	shared.RoleWarehouse: {
		PermOrdersView, PermOrdersManage, PermInventoryView, PermInventoryEdit,
		PermPreparation, PermStockConfirm, PermProcurementEdit, PermDeliveryManage, PermFinanceView,
	},
	shared.RoleHelper: {
		PermDeliveryManage, PermInventoryView,
	},
}

// EffectivePermissions returns the permissions granted to role.
func EffectivePermissions(role shared.Role) []string {
	return rolePermissions[role]
}
