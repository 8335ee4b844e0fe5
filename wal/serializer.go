package wal

import (
	"bytes"
	"encoding/binary"
	"hash/crc32"
)

// frame layout: [len:4][crc:4][body], body = [type:1][seq:8][time:8][data].
const bodyHeaderLen = 17

func encodeRecord(rec *Record) []byte {
	payload := new(bytes.Buffer)
	payload.WriteByte(byte(rec.Type))
	binary.Write(payload, binary.LittleEndian, rec.Seq)
	binary.Write(payload, binary.LittleEndian, rec.Time)
	payload.Write(rec.Data)

	body := payload.Bytes()
	crc := crc32.ChecksumIEEE(body)

	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, uint32(len(body)))
	binary.Write(buf, binary.LittleEndian, crc)
	buf.Write(body)
	return buf.Bytes()
}

func decodeBody(data []byte) (*Record, error) {
	if len(data) < bodyHeaderLen {
		return nil, ErrCorruptRecord
	}
	return &Record{
		Type: RecordType(data[0]),
		Seq:  binary.LittleEndian.Uint64(data[1:9]),
		Time: int64(binary.LittleEndian.Uint64(data[9:17])),
		Data: data[17:],
	}, nil
}
