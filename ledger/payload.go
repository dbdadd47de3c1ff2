package ledger

import (
	"encoding/binary"
	"fmt"
)

// OpKind identifies a ledger mutation.
type OpKind uint32

const (
	OpAppend OpKind = iota + 1
	OpRemove
	OpClear
)

func (k OpKind) String() string {
	switch k {
	case OpAppend:
		return "append"
	case OpRemove:
		return "remove"
	case OpClear:
		return "clear"
	default:
		return fmt.Sprintf("op(%d)", uint32(k))
	}
}

// PayloadVersion is the current op payload format version.
const PayloadVersion = 1

// Payload field tags. Each field is tag(1 byte) + length(uvarint) + value.
const (
	tagVersion     = 0x01
	tagKind        = 0x02
	tagOwner       = 0x03
	tagNonce       = 0x04
	tagCID         = 0x05
	tagFileName    = 0x06
	tagFileType    = 0x07
	tagFileSize    = 0x08
	tagDescription = 0x09
	tagDate        = 0x0A
	tagScore       = 0x0B
	tagIndex       = 0x0C
)

// Op is one ledger mutation as written to the audit log and, for the
// anchored ledger, into an OP_RETURN output.
type Op struct {
	Kind  OpKind
	Owner string

	// Nonce distinguishes otherwise identical ops.
	Nonce uint64

	// Record is the appended record, or the removed one for OpRemove.
	Record FileRecord

	// Index is the removed position for OpRemove.
	Index uint32
}

// EncodeOp serializes op into the TLV payload format.
func EncodeOp(op Op) ([]byte, error) {
	if op.Owner == "" {
		return nil, ErrEmptyOwner
	}
	if op.Kind < OpAppend || op.Kind > OpClear {
		return nil, fmt.Errorf("%w: unknown op kind %d", ErrInvalidPayload, op.Kind)
	}

	var buf []byte
	buf = appendUint32Field(buf, tagVersion, PayloadVersion)
	buf = appendUint32Field(buf, tagKind, uint32(op.Kind))
	buf = appendStringField(buf, tagOwner, op.Owner)
	buf = appendUint64Field(buf, tagNonce, op.Nonce)

	switch op.Kind {
	case OpAppend:
		r := op.Record
		buf = appendStringField(buf, tagCID, r.CID)
		buf = appendStringField(buf, tagFileName, r.FileName)
		buf = appendStringField(buf, tagFileType, r.FileType)
		buf = appendUint64Field(buf, tagFileSize, uint64(r.FileSize))
		if r.ContentDescription != "" {
			buf = appendStringField(buf, tagDescription, r.ContentDescription)
		}
		buf = appendStringField(buf, tagDate, r.Date)
		buf = appendUint64Field(buf, tagScore, uint64(r.Score))
	case OpRemove:
		buf = appendUint32Field(buf, tagIndex, op.Index)
		if op.Record.CID != "" {
			buf = appendStringField(buf, tagCID, op.Record.CID)
		}
	}

	return buf, nil
}

// DecodeOp parses a payload produced by EncodeOp. Unknown tags are skipped.
func DecodeOp(data []byte) (Op, error) {
	var op Op
	var version uint32

	offset := 0
	for offset < len(data) {
		tag := data[offset]
		offset++

		length, n := binary.Uvarint(data[offset:])
		if n <= 0 {
			return Op{}, fmt.Errorf("%w: invalid varint length for tag 0x%02x at offset %d", ErrInvalidPayload, tag, offset)
		}
		offset += n

		if length > uint64(len(data)-offset) {
			return Op{}, fmt.Errorf("%w: truncated value for tag 0x%02x at offset %d", ErrInvalidPayload, tag, offset)
		}
		value := data[offset : offset+int(length)]
		offset += int(length)

		switch tag {
		case tagVersion:
			if length == 4 {
				version = binary.LittleEndian.Uint32(value)
			}
		case tagKind:
			if length == 4 {
				op.Kind = OpKind(binary.LittleEndian.Uint32(value))
			}
		case tagOwner:
			op.Owner = string(value)
		case tagNonce:
			if length == 8 {
				op.Nonce = binary.LittleEndian.Uint64(value)
			}
		case tagCID:
			op.Record.CID = string(value)
		case tagFileName:
			op.Record.FileName = string(value)
		case tagFileType:
			op.Record.FileType = string(value)
		case tagFileSize:
			if length == 8 {
				op.Record.FileSize = int64(binary.LittleEndian.Uint64(value))
			}
		case tagDescription:
			op.Record.ContentDescription = string(value)
		case tagDate:
			op.Record.Date = string(value)
		case tagScore:
			if length == 8 {
				op.Record.Score = int64(binary.LittleEndian.Uint64(value))
			}
		case tagIndex:
			if length == 4 {
				op.Index = binary.LittleEndian.Uint32(value)
			}
		default:
			// Skip unknown tags for forward compatibility
		}
	}

	if version != PayloadVersion {
		return Op{}, fmt.Errorf("%w: unsupported version %d", ErrInvalidPayload, version)
	}
	if op.Owner == "" || op.Kind < OpAppend || op.Kind > OpClear {
		return Op{}, fmt.Errorf("%w: missing owner or kind", ErrInvalidPayload)
	}
	op.Record.Owner = op.Owner
	return op, nil
}

// appendUvarint appends x as an unsigned LEB128 varint.
func appendUvarint(buf []byte, x uint64) []byte {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	return append(buf, tmp[:n]...)
}

func appendUint32Field(buf []byte, tag byte, val uint32) []byte {
	buf = append(buf, tag)
	buf = appendUvarint(buf, 4)
	return binary.LittleEndian.AppendUint32(buf, val)
}

func appendUint64Field(buf []byte, tag byte, val uint64) []byte {
	buf = append(buf, tag)
	buf = appendUvarint(buf, 8)
	return binary.LittleEndian.AppendUint64(buf, val)
}

func appendStringField(buf []byte, tag byte, val string) []byte {
	buf = append(buf, tag)
	buf = appendUvarint(buf, uint64(len(val)))
	return append(buf, val...)
}
