package errors

import (
	"errors"
	"fmt"
)

// Kind 错误分类，决定 HTTP 状态码
type Kind int

const (
	KindInternal Kind = iota
	KindNotFound
	KindForbidden
	KindInvalidState
	KindConflict
	KindValidation
	KindUpstream
	KindInvalidRequest
	KindTooManyRequests
	KindUnauthorized
)

func (d Definition) Error() string {
	return d.Message
}

// Definition 表示业务错误码及默认信息。
type Definition struct {
	Code    string
	Message string
	Kind    Kind
}

// WithMessage 复制一份 Definition 并替换提示信息，错误码不变
func (d Definition) WithMessage(format string, args ...interface{}) Definition {
	d.Message = fmt.Sprintf(format, args...)
	return d
}

// Is 只比较错误码，WithMessage 派生出的错误仍可被 errors.Is 识别
func (d Definition) Is(target error) bool {
	t, ok := target.(Definition)
	return ok && t.Code == d.Code
}

// 通用错误。
var (
	Unauthorized    = Definition{Code: "UNAUTHORIZED", Message: "Unauthorized", Kind: KindUnauthorized}
	InvalidUserID   = Definition{Code: "INVALID_USER_ID", Message: "Invalid user ID format", Kind: KindUnauthorized}
	InvalidRequest  = Definition{Code: "INVALID_REQUEST", Message: "Invalid request", Kind: KindInvalidRequest}
	TooManyRequests = Definition{Code: "TOO_MANY_REQUESTS", Message: "Too many requests", Kind: KindTooManyRequests}
	Forbidden       = Definition{Code: "FORBIDDEN", Message: "Forbidden", Kind: KindForbidden}
)

// 行程模块错误。
var (
	ItineraryNotFound      = Definition{Code: "ITINERARY_NOT_FOUND", Message: "Itinerary not found", Kind: KindNotFound}
	ItineraryItemNotFound  = Definition{Code: "ITINERARY_ITEM_NOT_FOUND", Message: "Itinerary item not found", Kind: KindNotFound}
	ItineraryNotVisible    = Definition{Code: "ITINERARY_NOT_VISIBLE", Message: "Itinerary is not visible to requester", Kind: KindForbidden}
	ItineraryNotOwned      = Definition{Code: "ITINERARY_NOT_OWNED", Message: "Itinerary is not owned by requester", Kind: KindForbidden}
	ItineraryLineageBroken = Definition{Code: "ITINERARY_LINEAGE_BROKEN", Message: "Fork lineage fields must be both set or both empty", Kind: KindInvalidState}
	ItemSlotConflict       = Definition{Code: "ITEM_SLOT_CONFLICT", Message: "Day index and sort order already used", Kind: KindConflict}
	DayIndexOutOfRange     = Definition{Code: "DAY_INDEX_OUT_OF_RANGE", Message: "Day index out of range", Kind: KindInvalidRequest}
	AuthorNotFound         = Definition{Code: "AUTHOR_NOT_FOUND", Message: "Itinerary author not found", Kind: KindNotFound}
)

// 快照与 diff 错误。
var (
	SnapshotNotFound   = Definition{Code: "SNAPSHOT_NOT_FOUND", Message: "Snapshot not found", Kind: KindNotFound}
	ItineraryNotForked = Definition{Code: "ITINERARY_NOT_FORKED", Message: "Itinerary has no fork lineage", Kind: KindInvalidState}
	DiffActionInvalid  = Definition{Code: "DIFF_ACTION_INVALID", Message: "Diff action invalid", Kind: KindInvalidRequest}
)

// POI 模块错误。
var (
	POINotFound    = Definition{Code: "POI_NOT_FOUND", Message: "POI not found", Kind: KindNotFound}
	POIParentCycle = Definition{Code: "POI_PARENT_CYCLE", Message: "POI parent chain would form a cycle", Kind: KindInvalidState}
	POIInUse       = Definition{Code: "POI_IN_USE", Message: "POI is referenced by itinerary items", Kind: KindConflict}
)

// 导入模块错误。
var (
	ImportInProgress    = Definition{Code: "IMPORT_IN_PROGRESS", Message: "Another import is running for this itinerary", Kind: KindConflict}
	ImportPlanEmpty     = Definition{Code: "IMPORT_PLAN_EMPTY", Message: "Plan has no items to import", Kind: KindInvalidRequest}
	ImportDuplicateSlot = Definition{Code: "IMPORT_DUPLICATE_SLOT", Message: "Plan has duplicate day index and sort order", Kind: KindInvalidRequest}
)

// 外部依赖错误。
var (
	UpstreamUnavailable = Definition{Code: "UPSTREAM_UNAVAILABLE", Message: "Upstream service unavailable", Kind: KindUpstream}
	ParserUnavailable   = Definition{Code: "PARSER_UNAVAILABLE", Message: "Plan parser unavailable", Kind: KindUpstream}
)

// Lookup 提供错误码查询能力。
var Lookup = map[string]Definition{
	Unauthorized.Code:           Unauthorized,
	InvalidUserID.Code:          InvalidUserID,
	InvalidRequest.Code:         InvalidRequest,
	TooManyRequests.Code:        TooManyRequests,
	Forbidden.Code:              Forbidden,
	ItineraryNotFound.Code:      ItineraryNotFound,
	ItineraryItemNotFound.Code:  ItineraryItemNotFound,
	ItineraryNotVisible.Code:    ItineraryNotVisible,
	ItineraryNotOwned.Code:      ItineraryNotOwned,
	ItineraryLineageBroken.Code: ItineraryLineageBroken,
	ItemSlotConflict.Code:       ItemSlotConflict,
	DayIndexOutOfRange.Code:     DayIndexOutOfRange,
	AuthorNotFound.Code:         AuthorNotFound,
	SnapshotNotFound.Code:       SnapshotNotFound,
	ItineraryNotForked.Code:     ItineraryNotForked,
	DiffActionInvalid.Code:      DiffActionInvalid,
	POINotFound.Code:            POINotFound,
	POIParentCycle.Code:         POIParentCycle,
	POIInUse.Code:               POIInUse,
	ImportInProgress.Code:       ImportInProgress,
	ImportPlanEmpty.Code:        ImportPlanEmpty,
	ImportDuplicateSlot.Code:    ImportDuplicateSlot,
	UpstreamUnavailable.Code:    UpstreamUnavailable,
	ParserUnavailable.Code:      ParserUnavailable,
}

// Get 根据错误码返回 Definition，若不存在则返回空 Definition。
func Get(code string) Definition {
	if def, ok := Lookup[code]; ok {
		return def
	}
	return Definition{Code: code, Message: "Unexpected error"}
}

// 解析失败的错误码，与前端约定
const (
	CodeEmptyOrUnstructured = "EMPTY_OR_UNSTRUCTURED"
	CodeInvalidDayIndex     = "INVALID_DAY_INDEX"
	CodeEmptyName           = "EMPTY_NAME"
	CodeUngroundedItems     = "UNGROUNDED_ITEMS"
	CodeAllUnresolved       = "ALL_UNRESOLVED"
)

// ValidationFailure 文本无法转换为可用行程时返回，唯一直接展示给用户的错误
type ValidationFailure struct {
	ErrorCode        string   `json:"error_code"`
	Reason           string   `json:"reason"`
	RawExcerpt       *string  `json:"raw_excerpt"`
	SuggestedActions []string `json:"suggested_actions"`
}

func (v *ValidationFailure) Error() string {
	return v.ErrorCode + ": " + v.Reason
}

// AsValidationFailure 判断错误链中是否有 ValidationFailure
func AsValidationFailure(err error) (*ValidationFailure, bool) {
	var vf *ValidationFailure
	if errors.As(err, &vf) {
		return vf, true
	}
	return nil, false
}

// AsDefinition 判断错误链中是否有 Definition
func AsDefinition(err error) (Definition, bool) {
	var def Definition
	if errors.As(err, &def) {
		return def, true
	}
	return Definition{}, false
}

// SkipMessageError 重复投递的消息，消费者直接 ack
type SkipMessageError struct {
	Reason string
}

func (e *SkipMessageError) Error() string {
	return "skip message: " + e.Reason
}

// 基础设施哨兵错误。
var (
	ErrTokenGeneratorNotInitialized = errors.New("token generator not initialized")
	ErrUnsupportedGeocoderProvider  = errors.New("unsupported geocoder provider")
	ErrUnsupportedPlanParser        = errors.New("unsupported plan parser")
	ErrGeocoderKeyMissing           = errors.New("geocoder api key missing")
	ErrLLMKeyMissing                = errors.New("llm api key missing")
)
