package frame

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/glog"

	"quadwire/pkg/util"

	"github.com/golang/snappy"
)

const (
	PayloadTypeClear = iota
	PayloadTypeSnappy
)

const (
	kPayloadPreludeSize = kWordSize

	// MaxPayloadDataLen is the largest data length the 24-bit prelude
	// length field can carry.
	MaxPayloadDataLen = 1<<24 - 1
)

type (
	PayloadType uint8

	Payload struct {
		tag  PayloadType
		data []byte
	}
)

var (
	ErrInvalidPayloadPrelude  = fmt.Errorf("invalid payload prelude")
	ErrUnsupportedPayloadType = fmt.Errorf("unsupported payload type")
	ErrPayloadTooLarge        = fmt.Errorf("payload data too large")
)

func (t PayloadType) String() string {
	switch t {
	case PayloadTypeClear:
		return "clear"
	case PayloadTypeSnappy:
		return "snappy"
	default:
		return fmt.Sprintf("unsupported payload type: %d", uint8(t))
	}
}

func (p *Payload) GetPayloadType() PayloadType {
	return p.tag
}

func (p *Payload) GetData() []byte {
	return p.data
}

func (p *Payload) SetWithClearValue(value []byte) {
	p.tag = PayloadTypeClear
	p.data = value
}

// SetWithCompressedValue stores value snappy-compressed when that actually
// saves space; incompressible or tiny values keep the clear tag so they
// never grow on the wire.
func (p *Payload) SetWithCompressedValue(value []byte) {
	encoded := snappy.Encode(nil, value)
	if len(encoded) < len(value) {
		p.tag = PayloadTypeSnappy
		p.data = encoded
		return
	}
	p.tag = PayloadTypeClear
	p.data = value
}

// GetClearValue returns the caller bytes, decompressing when the tag says
// the data is a snappy block.
func (p *Payload) GetClearValue() (value []byte, err error) {
	switch p.tag {
	case PayloadTypeClear:
		value = p.data
	case PayloadTypeSnappy:
		if value, err = snappy.Decode(nil, p.data); err != nil {
			glog.Error("snappy decode: ", err)
		}
	default:
		err = ErrUnsupportedPayloadType
	}
	return
}

func (p *Payload) Clear() {
	p.tag = PayloadTypeClear
	p.data = nil
}

func (p *Payload) Set(payload *Payload) {
	if payload != nil {
		*p = *payload
	} else {
		p.Clear()
	}
}

func (p *Payload) Equal(other *Payload) bool {
	if other == nil {
		return false
	}
	if p.tag != other.tag {
		return false
	}
	return bytes.Equal(p.data, other.data)
}

// EncodedLen returns the number of bytes EncodeToBuffer will append,
// prelude and tail padding included. The result is always word-aligned and
// feeds Codec.PackedLen for exact preallocation.
func (p *Payload) EncodedLen() int {
	return kPayloadPreludeSize + alignToWord(len(p.data))
}

// EncodeToBuffer appends the prelude word, the data, and 0..3 zero pad
// bytes so the total is word-aligned and can be handed to Codec.Pack
// directly. Data longer than MaxPayloadDataLen does not fit the prelude;
// EncodeToBuffer panics in that case, callers bound user data first.
func (p *Payload) EncodeToBuffer(buffer *util.PPBuffer) {
	szData := len(p.data)
	if szData > MaxPayloadDataLen {
		panic(fmt.Sprintf("frame: payload data length %d exceeds prelude range", szData))
	}
	var prelude [kPayloadPreludeSize]byte
	prelude[0] = byte(p.tag)
	prelude[1] = byte(szData)
	prelude[2] = byte(szData >> 8)
	prelude[3] = byte(szData >> 16)
	buffer.Write(prelude[:])
	buffer.Write(p.data)
	for n := szData; n%kWordSize != 0; n++ {
		buffer.WriteByte(0)
	}
}

// Decode parses one encoded payload as produced by EncodeToBuffer. raw is
// the full word-aligned window handed back by Codec.Unpack. When copyData
// is false the decoded data aliases raw and is valid only as long as raw
// is.
func (p *Payload) Decode(raw []byte, copyData bool) error {
	if len(raw) < kPayloadPreludeSize {
		return ErrInvalidPayloadPrelude
	}
	szData := int(raw[1]) | int(raw[2])<<8 | int(raw[3])<<16
	szPadding := len(raw) - kPayloadPreludeSize - szData
	if szPadding < 0 || szPadding >= kWordSize {
		return ErrInvalidPayloadPrelude
	}
	p.tag = PayloadType(raw[0])
	if szData == 0 {
		p.data = nil
		return nil
	}
	if copyData {
		p.data = make([]byte, szData)
		copy(p.data, raw[kPayloadPreludeSize:kPayloadPreludeSize+szData])
	} else {
		p.data = raw[kPayloadPreludeSize : kPayloadPreludeSize+szData]
	}
	return nil
}

func (p *Payload) PrettyPrint(w io.Writer) {
	szData := len(p.data)

	fmt.Fprintf(w, "Payload  %-7s: ", p.tag.String())
	if szData == 0 {
		fmt.Fprint(w, "[]\n")
	} else if szData <= 24 {
		fmt.Fprintf(w, "%s\n", util.ToPrintableAndHexString(p.data))
	} else {
		fmt.Fprintf(w, "(first 24 bytes) %s\n", util.ToPrintableAndHexString(p.data[:24]))
	}
}

func alignToWord(n int) int {
	return (n + kWordSize - 1) &^ (kWordSize - 1)
}
