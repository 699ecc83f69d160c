package shared

// Role enumerates the roles the authentication collaborator can assert.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleCaja     Role = "CAJA"
	RoleTecnico  Role = "TECNICO"
	RoleEmpleado Role = "EMPLEADO"
)

// Actor is the authenticated caller as provided by the auth collaborator.
type Actor struct {
	UserID int64
	Role   Role
}

// Permissions understood by the core services.
const (
	PermPartsView       = "parts.view"
	PermPartsEdit       = "parts.edit"
	PermPartsDelete     = "parts.delete"
	PermMovementsApply  = "movements.apply"
	PermLocationsView   = "locations.view"
	PermLocationsEdit   = "locations.edit"
	PermPurchasingView  = "purchasing.view"
	PermPurchasingEdit  = "purchasing.edit"
	PermPaymentsEdit    = "payments.edit"
	PermCashboxOperate  = "cashbox.operate"
	PermAuditView       = "audit.view"
	PermSettingsEdit    = "settings.edit"
)

var rolePermissions = map[Role]map[string]bool{
	RoleCaja: {
		PermPartsView:      true,
		PermPartsEdit:      true,
		PermMovementsApply: true,
		PermLocationsView:  true,
		PermPurchasingView: true,
		PermPurchasingEdit: true,
		PermPaymentsEdit:   true,
		PermCashboxOperate: true,
	},
	RoleTecnico: {
		PermPartsView:      true,
		PermLocationsView:  true,
		PermPurchasingView: true,
		PermMovementsApply: true,
	},
	RoleEmpleado: {
		PermPartsView:      true,
		PermLocationsView:  true,
		PermPurchasingView: true,
	},
}

// Can reports whether the actor holds a permission. ADMIN holds all of them.
func (a Actor) Can(perm string) bool {
	if a.Role == RoleAdmin {
		return true
	}
	perms, ok := rolePermissions[a.Role]
	if !ok {
		return false
	}
	return perms[perm]
}

// IsAdmin reports whether the actor carries the administrator role.
func (a Actor) IsAdmin() bool { return a.Role == RoleAdmin }

// ErrPermissionDenied is returned without revealing entity existence.
var ErrPermissionDenied = E(KindPermission, "PERMISSION_DENIED", "permiso insuficiente")

// Require returns ErrPermissionDenied unless the actor holds the permission.
func (a Actor) Require(perm string) error {
	if !a.Can(perm) {
		return ErrPermissionDenied
	}
	return nil
}
