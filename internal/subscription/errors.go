package subscription

import "errors"

var (
	errBadSequenceNumberUnknown  = errors.New("subscription: sequence number not in retransmission queue")
	errBadMessageNotAvailable    = errors.New("subscription: notification message not available for republish")
	errBadSubscriptionIdInvalid  = errors.New("subscription: unknown subscription id")
	errBadMonitoredItemIdInvalid = errors.New("subscription: unknown monitored item id")
	errBadTooManyPublishRequests = errors.New("subscription: no queued publish request available")
)
