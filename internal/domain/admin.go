package domain

// ConsumerGroupInfo describes a consumer group reading the lead stream.
type ConsumerGroupInfo struct {
	Name            string `json:"name"`
	Consumers       int64  `json:"consumers"`
	Pending         int64  `json:"pending"`
	LastDeliveredID string `json:"last_delivered_id"`
}

// PendingMessageSummary summarizes unacknowledged lead messages of a group.
type PendingMessageSummary struct {
	Total          int64            `json:"total"`
	FirstMessageID string           `json:"first_message_id,omitempty"`
	LastMessageID  string           `json:"last_message_id,omitempty"`
	ConsumerTotals map[string]int64 `json:"consumer_totals,omitempty"`
}

// WindowSnapshot is the live admission window of one client key.
type WindowSnapshot struct {
	Key        string  `json:"key"`
	Timestamps []int64 `json:"timestamps"`
}
