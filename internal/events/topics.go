package events

// Topic constants for state-change events emitted inside a session.
const (
	TopicCartUpdated        = "cart.updated"
	TopicCartCommitFailed   = "cart.commit_failed"
	TopicAddressUpdated     = "address.updated"
	TopicRouteUpdated       = "route.updated"
	TopicVoucherUpdated     = "voucher.updated"
	TopicFulfillmentUpdated = "fulfillment.updated"
	TopicPricingUpdated     = "pricing.updated"
)
