package model

import "github.com/google/uuid"

// ItineraryForkedMessage fork 成功后发出，worker 据此累加来源行程的 forked_count
type ItineraryForkedMessage struct {
	MessageID         string    `json:"message_id"` // 消息唯一ID，用于幂等性检查
	SourceItineraryID uuid.UUID `json:"source_itinerary_id"`
	SourceSnapshotID  uuid.UUID `json:"source_snapshot_id"`
	ForkedItineraryID uuid.UUID `json:"forked_itinerary_id"`
	ForkedByUserID    uuid.UUID `json:"forked_by_user_id"`
	OccurredAt        string    `json:"occurred_at"`
}
