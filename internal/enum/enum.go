package enum

// ── Group A: State machines (CHECK constrained in DB) ──

const (
	OrderStatusInitial    = "initial"
	OrderStatusAtRegister = "at_register"
	OrderStatusPaid       = "paid"
	OrderStatusInKitchen  = "in_kitchen"
	OrderStatusReady      = "ready"
	OrderStatusDelivered  = "delivered"
	OrderStatusCancelled  = "cancelled"
)

const (
	TicketStatusPending   = "pending"
	TicketStatusPreparing = "preparing"
	TicketStatusDone      = "done"
	TicketStatusCancelled = "cancelled"
)

// ── Group C: Borderline (CHECK constrained in DB) ──

const (
	UserRoleAdmin   = "ADMIN"
	UserRoleCashier = "CASHIER"
	UserRoleKitchen = "KITCHEN"
)

const (
	OrderOriginWeb      = "web"
	OrderOriginInPerson = "in_person"
)

const (
	PaymentMethodCash     = "cash"
	PaymentMethodCard     = "card"
	PaymentMethodTransfer = "transfer"
)

const (
	ServiceTypeDineIn   = "dine_in"
	ServiceTypeTakeaway = "takeaway"
)

const (
	MilkTypeWhole       = "whole"
	MilkTypeLactoseFree = "lactose_free"
)

const (
	MovementIn  = "in"
	MovementOut = "out"
)

// ── Group B: Configurable labels (no DB constraint) ──

const (
	MovementReasonTicketCompleted = "ticket completed"
	MovementReasonInitialStock    = "initial stock"
	MovementReasonPurchase        = "purchase"
	MovementReasonAdjustment      = "adjustment"
	MovementReasonWaste           = "waste"
)

const (
	UrgencyHigh   = "high"
	UrgencyMedium = "medium"
	UrgencyLow    = "low"
)
