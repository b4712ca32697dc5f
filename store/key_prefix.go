package store

// Declare database key prefix for objects
const (
	PrefixChannel = "channel:"

	PrefixReceipt     = "receipt:"
	PrefixReceiptHead = "receipt_head:"
)
