package gate

// Action describes the kind of operation a user wants to perform.
type Action string

const (
	ActionView   Action = "view"
	ActionList   Action = "list"
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	// ActionCancel and ActionRefund apply to sales only.
	ActionCancel Action = "cancel"
	ActionRefund Action = "refund"
	// ActionVerify runs an audit, e.g. of the fiscal chain.
	ActionVerify Action = "verify"
)
