package enum

// ── Staff roles (carried in JWT claims) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleManager = "MANAGER"
	UserRoleStaff   = "STAFF"
)

// ── Deployment switches (configuration values) ──

const (
	StoreDriverPostgres = "postgres"
	StoreDriverMemory   = "memory"
)

const (
	GatewayManual = "manual"
	GatewayStripe = "stripe"
)
