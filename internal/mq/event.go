package mq

import (
	"fmt"
	"strconv"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

type EventType uint32

const (
	EventGrantApproved EventType = 1
	EventGrantRejected EventType = 2
)

func (t EventType) String() string {
	switch t {
	case EventGrantApproved:
		return "grant_approved"
	case EventGrantRejected:
		return "grant_rejected"
	default:
		return "unknown"
	}
}

// SettlementEvent 资助申请终态事件。
// Amount 以十进制字符串传递；Slot 以字符串传递，避免 protobuf number(double) 丢精度。
type SettlementEvent struct {
	Type         EventType
	GrantID      int64
	EaseliteID   string
	Owner        string // 学生钱包地址，同时作为分区 key
	TokenAccount string
	Amount       string
	Signature    string // 仅 approved
	Slot         uint64 // 仅 approved
	Reason       string // 仅 rejected
	Time         time.Time
}

func (e *SettlementEvent) toStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{
		"grant_id":      strconv.FormatInt(e.GrantID, 10),
		"easelite_id":   e.EaseliteID,
		"owner":         e.Owner,
		"token_account": e.TokenAccount,
		"amount":        e.Amount,
		"signature":     e.Signature,
		"slot":          strconv.FormatUint(e.Slot, 10),
		"reason":        e.Reason,
		"ts":            e.Time.UnixMilli(),
	})
}

// EncodeSettlementEvent 编码为 [type(4B LE)] + structpb.Struct
func EncodeSettlementEvent(e *SettlementEvent) ([]byte, error) {
	s, err := e.toStruct()
	if err != nil {
		return nil, fmt.Errorf("build event payload: %w", err)
	}
	return EncodeEvent(uint32(e.Type), s)
}

func DecodeSettlementEvent(data []byte) (*SettlementEvent, error) {
	var s structpb.Struct
	eventType, err := DecodeEvent(data, &s)
	if err != nil {
		return nil, err
	}

	f := s.GetFields()
	str := func(k string) string { return f[k].GetStringValue() }

	e := &SettlementEvent{
		Type:         EventType(eventType),
		EaseliteID:   str("easelite_id"),
		Owner:        str("owner"),
		TokenAccount: str("token_account"),
		Amount:       str("amount"),
		Signature:    str("signature"),
		Reason:       str("reason"),
		Time:         time.UnixMilli(int64(f["ts"].GetNumberValue())),
	}
	if e.GrantID, err = strconv.ParseInt(str("grant_id"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid grant_id: %w", err)
	}
	if e.Slot, err = strconv.ParseUint(str("slot"), 10, 64); err != nil {
		return nil, fmt.Errorf("invalid slot: %w", err)
	}
	return e, nil
}
