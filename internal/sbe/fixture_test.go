package sbe

import (
	"encoding/binary"

	"github.com/danmuck/mdpwire/internal/field"
)

type wire []byte

func (w wire) u8(v uint8) wire   { return append(w, v) }
func (w wire) u16(v uint16) wire { return binary.LittleEndian.AppendUint16(w, v) }
func (w wire) u32(v uint32) wire { return binary.LittleEndian.AppendUint32(w, v) }
func (w wire) u64(v uint64) wire { return binary.LittleEndian.AppendUint64(w, v) }
func (w wire) i32(v int32) wire  { return w.u32(uint32(v)) }
func (w wire) zeros(n int) wire  { return append(w, make([]byte, n)...) }

// 27 bytes of fields padded to a 32 byte entry.
var bookEntry = Block(32,
	field.Named{Name: "MDEntryPx", Codec: field.Price9},
	field.Named{Name: "MDEntrySize", Codec: field.Int32},
	field.Named{Name: "SecurityID", Codec: field.Int32},
	field.Named{Name: "RptSeq", Codec: field.Uint32},
	field.Named{Name: "NumberOfOrders", Codec: field.Int32},
	field.Named{Name: "MDPriceLevel", Codec: field.Uint8},
	field.Named{Name: "MDUpdateAction", Codec: field.Uint8},
	field.Named{Name: "MDEntryType", Codec: field.String(1)},
)

func bookEntryBytes(i int) wire {
	return wire{}.
		u64(uint64(4_512_250_000_000 + int64(i)*250_000_000)).
		i32(int32(10 + i)).
		i32(991).
		u32(uint32(500 + i)).
		i32(int32(1 + i)).
		u8(uint8(i + 1)).
		u8(0).
		u8('0' + uint8(i%2)).
		zeros(5)
}

var fillEntry = Block(8,
	field.Named{Name: "FillQty", Codec: field.Int32},
	field.Named{Name: "FillID", Codec: field.Uint32},
)

var legSchema = Schema{
	Name: "Leg",
	Block: Block(6,
		field.Named{Name: "LegSecurityID", Codec: field.Int32},
		field.Named{Name: "LegSide", Codec: field.Uint8},
	),
	Groups: []GroupMember{Member("Fills", 8, FixedGroup("Fills", 8, fillEntry))},
}

var spreadSchema = Schema{
	Name: "Spread",
	Block: Block(9,
		field.Named{Name: "TransactTime", Codec: field.Uint64},
		field.Named{Name: "MatchEventIndicator", Codec: field.Uint8},
	),
	Groups: []GroupMember{Member("Legs", 6, NestedGroup("Legs", legSchema))},
}

func legRecord(id int32, fills int) *Record {
	els := make([]any, fills)
	for i := range els {
		els[i] = ValuesOf("FillQty", int32(i+1), "FillID", uint32(100+i))
	}
	return &Record{
		Fields: ValuesOf("LegSecurityID", id, "LegSide", uint8(1)),
		Groups: []Group{{Name: "Fills", Elements: els}},
	}
}

func spreadRecord(legs ...*Record) *Record {
	els := make([]any, len(legs))
	for i, l := range legs {
		els[i] = l
	}
	return &Record{
		Fields: ValuesOf("TransactTime", uint64(1_700_000_000_000_000_000), "MatchEventIndicator", uint8(0x81)),
		Groups: []Group{{Name: "Legs", Elements: els}},
	}
}
