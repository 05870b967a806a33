package field

import (
	"encoding/binary"
	"math"
	"strconv"
	"strings"
)

// NullMantissa marks an absent optional price.
const NullMantissa = math.MaxInt64

// Decimal is a price carried as mantissa * 10^Exponent.
type Decimal struct {
	Mantissa int64
	Exponent int8
}

func (d Decimal) IsNull() bool { return d.Mantissa == NullMantissa }

func (d Decimal) Float64() float64 {
	if d.Exponent < 0 {
		return float64(d.Mantissa) / math.Pow10(-int(d.Exponent))
	}
	return float64(d.Mantissa) * math.Pow10(int(d.Exponent))
}

// String renders the exact decimal without going through float64.
func (d Decimal) String() string {
	if d.IsNull() {
		return "null"
	}
	if d.Exponent >= 0 {
		return strconv.FormatInt(d.Mantissa, 10) + strings.Repeat("0", int(d.Exponent))
	}
	neg := d.Mantissa < 0
	digits := strconv.FormatUint(absUint(d.Mantissa), 10)
	scale := -int(d.Exponent)
	if len(digits) <= scale {
		digits = strings.Repeat("0", scale-len(digits)+1) + digits
	}
	whole, frac := digits[:len(digits)-scale], strings.TrimRight(digits[len(digits)-scale:], "0")
	out := whole
	if frac != "" {
		out += "." + frac
	}
	if neg {
		out = "-" + out
	}
	return out
}

// MarshalJSON writes the price as a JSON number, or null.
func (d Decimal) MarshalJSON() ([]byte, error) {
	if d.IsNull() {
		return []byte("null"), nil
	}
	return []byte(d.String()), nil
}

func absUint(n int64) uint64 {
	if n < 0 {
		return uint64(-(n + 1)) + 1
	}
	return uint64(n)
}

type price struct{ exponent int8 }

// Price9 is the PRICE9 composite: an int64 mantissa with exponent -9.
var Price9 = price{exponent: -9}

func (c price) Size() int { return 8 }

func (c price) Decode(buf []byte) (any, []byte, error) {
	if len(buf) < 8 {
		return nil, buf, short("price", 8, len(buf))
	}
	m := int64(binary.LittleEndian.Uint64(buf))
	return Decimal{Mantissa: m, Exponent: c.exponent}, buf[8:], nil
}

func (c price) Encode(v any) ([]byte, error) {
	var m int64
	if d, ok := v.(Decimal); ok {
		m = d.Mantissa
	} else {
		n, err := asInt64(v)
		if err != nil {
			return nil, err
		}
		m = n
	}
	buf := make([]byte, 8)
	binary.LittleEndian.PutUint64(buf, uint64(m))
	return buf, nil
}
