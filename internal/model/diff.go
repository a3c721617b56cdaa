package model

import "github.com/google/uuid"

// FieldDiff 字段级变化，Before/After 原样保留（包括 null）
type FieldDiff struct {
	Field  string      `json:"field"`
	Before interface{} `json:"before"`
	After  interface{} `json:"after"`
}

type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
}

type DiffItemAdded struct {
	Key     string       `json:"key"`
	Current SnapshotItem `json:"current"`
}

type DiffItemRemoved struct {
	Key    string       `json:"key"`
	Source SnapshotItem `json:"source"`
}

type DiffItemModified struct {
	Key    string      `json:"key"`
	Fields []FieldDiff `json:"fields"`
}

// Diff 快照与 fork 当前状态的比较结果，每次请求重新计算
type Diff struct {
	SourceSnapshotID  uuid.UUID          `json:"source_snapshot_id"`
	SourceItineraryID uuid.UUID          `json:"source_itinerary_id"`
	ForkedItineraryID uuid.UUID          `json:"forked_itinerary_id"`
	Summary           DiffSummary        `json:"summary"`
	MetadataDiffs     []FieldDiff        `json:"metadata_diffs"`
	AddedItems        []DiffItemAdded    `json:"added_items"`
	RemovedItems      []DiffItemRemoved  `json:"removed_items"`
	ModifiedItems     []DiffItemModified `json:"modified_items"`

	// 来源行程之后又产生了新快照时提示
	LatestSourceSnapshotID *uuid.UUID        `json:"latest_source_snapshot_id"`
	StaleWarning           bool              `json:"stale_warning"`
	ActionStatuses         map[string]string `json:"action_statuses"`
}
