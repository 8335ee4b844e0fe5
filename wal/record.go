package wal

import (
	"encoding/binary"
	"errors"
)

type RecordType byte

const (
	RecordPlace  RecordType = 1
	RecordCancel RecordType = 2
	RecordModify RecordType = 3
)

var ErrCorruptRecord = errors.New("wal: corrupt record")

// Record is one journal entry. Seq is assigned by the WAL on append.
type Record struct {
	Type RecordType
	Seq  uint64
	Time int64
	Data []byte
}

// OrderPayload is the body of place and modify records.
// Layout: [id:8][side:1][type:1][price:8][qty:8], big-endian.
type OrderPayload struct {
	OrderID uint64
	Side    uint8
	Type    uint8
	Price   int64
	Qty     int64
}

const orderPayloadLen = 8 + 1 + 1 + 8 + 8

func (p OrderPayload) Encode() []byte {
	buf := make([]byte, orderPayloadLen)
	binary.BigEndian.PutUint64(buf[0:8], p.OrderID)
	buf[8] = p.Side
	buf[9] = p.Type
	binary.BigEndian.PutUint64(buf[10:18], uint64(p.Price))
	binary.BigEndian.PutUint64(buf[18:26], uint64(p.Qty))
	return buf
}

func DecodeOrderPayload(b []byte) (OrderPayload, error) {
	if len(b) != orderPayloadLen {
		return OrderPayload{}, ErrCorruptRecord
	}
	return OrderPayload{
		OrderID: binary.BigEndian.Uint64(b[0:8]),
		Side:    b[8],
		Type:    b[9],
		Price:   int64(binary.BigEndian.Uint64(b[10:18])),
		Qty:     int64(binary.BigEndian.Uint64(b[18:26])),
	}, nil
}

// CancelPayload is the body of cancel records. Layout: [id:8].
type CancelPayload struct {
	OrderID uint64
}

func (p CancelPayload) Encode() []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, p.OrderID)
	return buf
}

func DecodeCancelPayload(b []byte) (CancelPayload, error) {
	if len(b) != 8 {
		return CancelPayload{}, ErrCorruptRecord
	}
	return CancelPayload{OrderID: binary.BigEndian.Uint64(b)}, nil
}
