package tabula

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/klauspost/compress/zstd"
)

// tabulaEpoch is the fixed epoch DoubleEpoch date-time values are offset
// from.
var tabulaEpoch = time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC)

// compressionThreshold is the minimum encoded length, in bytes, at or above which
// String/Binary payloads are considered for zstd compression when writing
// format version 4. Below this size compression overhead isn't worth it.
const compressionThreshold = 256

var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		panic(fmt.Sprintf("tabula: initializing zstd encoder: %v", err))
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic(fmt.Sprintf("tabula: initializing zstd decoder: %v", err))
	}
}

// TextOptions controls to_text/from_text formatting for the Value Codec's
// text representation, used by the (out-of-scope) CSV collaborator.
type TextOptions struct {
	// DateTimeLayout is the Go time layout used for DateTime/TimeSpan text
	// round trips. Defaults to time.RFC3339Nano.
	DateTimeLayout string
}

func (o TextOptions) layout() string {
	if o.DateTimeLayout == "" {
		return time.RFC3339Nano
	}
	return o.DateTimeLayout
}

// writeUvarint writes x as a 7-bit-encoded (LEB128-style) unsigned varint.
func writeUvarint(buf *bytes.Buffer, x uint64) {
	var tmp [binary.MaxVarintLen64]byte
	n := binary.PutUvarint(tmp[:], x)
	buf.Write(tmp[:n])
}

func readUvarint(r *bytes.Reader) (uint64, error) {
	x, err := binary.ReadUvarint(r)
	if err != nil {
		return 0, fmt.Errorf("%w: reading varint: %v", ErrCodec, err)
	}
	return x, nil
}

func zigzagEncode(v int64) uint64 { return uint64(v<<1) ^ uint64(v>>63) }
func zigzagDecode(v uint64) int64 { return int64(v>>1) ^ -int64(v&1) }

// EncodeValue appends the binary serialization of v for field f, honoring
// f's storage variant, to buf. version selects the on-disk format: 32/64
// bit integers use 7-bit varints in version >= 2, fixed width in version 1;
// Binary is length-prefixed in version >= 3. Only version 4 is written by
// DatTable, but EncodeValue supports the full read range for completeness
// and for tests exercising older encodings directly.
func EncodeValue(buf *bytes.Buffer, f FieldProperties, v Value, version int) error {
	switch f.TypeAtDatabase {
	case Bool:
		if v.b {
			buf.WriteByte(1)
		} else {
			buf.WriteByte(0)
		}
	case Int8:
		buf.WriteByte(byte(int8(v.i)))
	case UInt8:
		buf.WriteByte(byte(v.u))
	case Int16:
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(int16(v.i)))
		buf.Write(tmp[:])
	case UInt16:
		var tmp [2]byte
		binary.LittleEndian.PutUint16(tmp[:], uint16(v.u))
		buf.Write(tmp[:])
	case Int32:
		if version >= 2 {
			writeUvarint(buf, zigzagEncode(v.i))
		} else {
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(int32(v.i)))
			buf.Write(tmp[:])
		}
	case UInt32:
		if version >= 2 {
			writeUvarint(buf, uint64(uint32(v.u)))
		} else {
			var tmp [4]byte
			binary.LittleEndian.PutUint32(tmp[:], uint32(v.u))
			buf.Write(tmp[:])
		}
	case Int64:
		if f.DataType == DateTime || f.DataType == TimeSpan {
			return encodeDateTime(buf, f, v, version)
		}
		if version >= 2 {
			writeUvarint(buf, zigzagEncode(v.i))
		} else {
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], uint64(v.i))
			buf.Write(tmp[:])
		}
	case UInt64:
		if version >= 2 {
			writeUvarint(buf, v.u)
		} else {
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], v.u)
			buf.Write(tmp[:])
		}
	case Single:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v.f32))
		buf.Write(tmp[:])
	case Double:
		if f.DataType == DateTime || f.DataType == TimeSpan {
			return encodeDateTime(buf, f, v, version)
		}
		encodeFloat64(buf, v.f64)
	case Decimal:
		if f.DataType == DateTime || f.DataType == TimeSpan {
			return encodeDateTime(buf, f, v, version)
		}
		encodeDecimal(buf, v.dec)
	case Char:
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(v.i))
		buf.Write(tmp[:])
	case String:
		return encodeString(buf, f, v, version)
	case Binary:
		return encodeBinary(buf, v, version)
	case DateTime, TimeSpan:
		return encodeDateTime(buf, f, v, version)
	default:
		return fmt.Errorf("%w: unsupported storage type %s", ErrCodec, f.TypeAtDatabase)
	}
	return nil
}

func encodeFloat64(buf *bytes.Buffer, f float64) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], math.Float64bits(f))
	buf.Write(tmp[:])
}

func encodeDecimal(buf *bytes.Buffer, d Decimal128) {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(d.Mantissa))
	buf.Write(tmp[:])
	buf.WriteByte(d.Scale)
}

// encodeString writes a length-prefixed string. The length prefix uses a
// null-distinguishing code: 0 means a null string, n+1 means a string of n
// bytes. In format version 4, payloads at or above compressionThreshold are
// transparently zstd-compressed; a one-byte flag (0 raw, 1 zstd) precedes
// the length code in that version only, keeping versions 1-3 exactly as
// originally documented.
func encodeString(buf *bytes.Buffer, f FieldProperties, v Value, version int) error {
	if v.null {
		if version >= 4 {
			buf.WriteByte(0)
		}
		writeUvarint(buf, 0)
		return nil
	}
	raw, err := encodeStringBytes(f.StringEncoding, v.s)
	if err != nil {
		return err
	}
	return writeLengthPrefixed(buf, raw, version)
}

func encodeStringBytes(enc StringEncoding, s string) ([]byte, error) {
	switch enc {
	case ASCII, 0:
		for i := 0; i < len(s); i++ {
			if s[i] > 0x7f {
				return nil, fmt.Errorf("%w: non-ASCII byte in ASCII-encoded string at position %d", ErrCodec, i)
			}
		}
		return []byte(s), nil
	case UTF8:
		return []byte(s), nil
	case UTF16:
		units := utf16.Encode([]rune(s))
		out := make([]byte, len(units)*2)
		for i, u := range units {
			binary.LittleEndian.PutUint16(out[i*2:], u)
		}
		return out, nil
	case UTF32:
		rs := []rune(s)
		out := make([]byte, len(rs)*4)
		for i, r := range rs {
			binary.LittleEndian.PutUint32(out[i*4:], uint32(r))
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: unsupported string encoding %v", ErrCodec, enc)
	}
}

func decodeStringBytes(enc StringEncoding, raw []byte) (string, error) {
	switch enc {
	case ASCII, 0:
		for i, b := range raw {
			if b > 0x7f {
				return "", fmt.Errorf("%w: non-ASCII byte in ASCII-encoded string at position %d", ErrCodec, i)
			}
		}
		return string(raw), nil
	case UTF8:
		if !utf8.Valid(raw) {
			return "", fmt.Errorf("%w: invalid UTF-8 string", ErrCodec)
		}
		return string(raw), nil
	case UTF16:
		if len(raw)%2 != 0 {
			return "", fmt.Errorf("%w: odd byte length for UTF-16 string", ErrCodec)
		}
		units := make([]uint16, len(raw)/2)
		for i := range units {
			units[i] = binary.LittleEndian.Uint16(raw[i*2:])
		}
		return string(utf16.Decode(units)), nil
	case UTF32:
		if len(raw)%4 != 0 {
			return "", fmt.Errorf("%w: byte length %d not a multiple of 4 for UTF-32 string", ErrCodec, len(raw))
		}
		var sb strings.Builder
		for i := 0; i+4 <= len(raw); i += 4 {
			sb.WriteRune(rune(binary.LittleEndian.Uint32(raw[i:])))
		}
		return sb.String(), nil
	default:
		return "", fmt.Errorf("%w: unsupported string encoding %v", ErrCodec, enc)
	}
}

// encodeBinary writes length-prefixed bytes in version >= 3 (null
// permitted via the same length-code scheme as strings); in version < 3 it
// writes a fixed 32-bit little-endian length followed by bytes, coercing
// null to empty.
func encodeBinary(buf *bytes.Buffer, v Value, version int) error {
	if version < 3 {
		b := v.bin
		var tmp [4]byte
		binary.LittleEndian.PutUint32(tmp[:], uint32(len(b)))
		buf.Write(tmp[:])
		buf.Write(b)
		return nil
	}
	if v.null {
		if version >= 4 {
			buf.WriteByte(0)
		}
		writeUvarint(buf, 0)
		return nil
	}
	return writeLengthPrefixed(buf, v.bin, version)
}

// writeLengthPrefixed applies the compress-if-large rule for version 4 and
// writes the null-distinguishing length code followed by the payload.
func writeLengthPrefixed(buf *bytes.Buffer, raw []byte, version int) error {
	if version >= 4 && len(raw) >= compressionThreshold {
		compressed := zstdEncoder.EncodeAll(raw, nil)
		if len(compressed) < len(raw) {
			buf.WriteByte(1)
			writeUvarint(buf, uint64(len(compressed))+1)
			buf.Write(compressed)
			return nil
		}
	}
	if version >= 4 {
		buf.WriteByte(0)
	}
	writeUvarint(buf, uint64(len(raw))+1)
	buf.Write(raw)
	return nil
}

func readLengthPrefixed(r *bytes.Reader, version int) (raw []byte, isNull bool, err error) {
	compressed := false
	if version >= 4 {
		flag, err := r.ReadByte()
		if err != nil {
			return nil, false, fmt.Errorf("%w: reading compression flag: %v", ErrCodec, err)
		}
		compressed = flag == 1
	}
	code, err := readUvarint(r)
	if err != nil {
		return nil, false, err
	}
	if code == 0 {
		return nil, true, nil
	}
	n := code - 1
	raw = make([]byte, n)
	if _, err := readFull(r, raw); err != nil {
		return nil, false, fmt.Errorf("%w: reading payload of length %d: %v", ErrCodec, n, err)
	}
	if compressed {
		raw, err = zstdDecoder.DecodeAll(raw, nil)
		if err != nil {
			return nil, false, fmt.Errorf("%w: decompressing payload: %v", ErrCodec, err)
		}
	}
	return raw, false, nil
}

func readFull(r *bytes.Reader, buf []byte) (int, error) {
	n := 0
	for n < len(buf) {
		m, err := r.Read(buf[n:])
		n += m
		if err != nil {
			return n, err
		}
		if m == 0 {
			return n, fmt.Errorf("short read")
		}
	}
	return n, nil
}

// encodeDateTime dispatches on f.DateTimeType. TimeSpan values are encoded
// as the equivalent "time since zero" so the same arithmetic applies to
// both DateTime and TimeSpan fields.
func encodeDateTime(buf *bytes.Buffer, f FieldProperties, v Value, version int) error {
	var sec int64
	var nsec int64
	if f.DataType == TimeSpan {
		sec = int64(v.dur / time.Second)
		nsec = int64(v.dur % time.Second)
	} else {
		sec = v.t.Unix()
		nsec = int64(v.t.Nanosecond())
	}

	switch f.DateTimeType {
	case Native:
		if f.DataType == DateTime {
			buf.WriteByte(byte(f.DateTimeKind))
		} else {
			buf.WriteByte(0)
		}
		var tmp [8]byte
		binary.LittleEndian.PutUint64(tmp[:], uint64(sec))
		buf.Write(tmp[:])
		var tmp2 [4]byte
		binary.LittleEndian.PutUint32(tmp2[:], uint32(nsec))
		buf.Write(tmp2[:])
		return nil
	case BigIntTicks:
		ticks := sec*10_000_000 + nsec/100
		if version >= 2 {
			writeUvarint(buf, zigzagEncode(ticks))
		} else {
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], uint64(ticks))
			buf.Write(tmp[:])
		}
		return nil
	case BigIntHumanReadable:
		var digits int64
		if f.DataType == DateTime {
			digits = humanReadableDigits(v.t)
		} else {
			digits = humanReadableDurationDigits(v.dur)
		}
		if version >= 2 {
			writeUvarint(buf, zigzagEncode(digits))
		} else {
			var tmp [8]byte
			binary.LittleEndian.PutUint64(tmp[:], uint64(digits))
			buf.Write(tmp[:])
		}
		return nil
	case DecimalSeconds:
		micros := sec*1_000_000 + nsec/1_000
		encodeDecimal(buf, Decimal128{Mantissa: micros, Scale: 6})
		return nil
	case DoubleSeconds:
		encodeFloat64(buf, float64(sec)+float64(nsec)/1e9)
		return nil
	case DoubleEpoch:
		var secs float64
		if f.DataType == DateTime {
			secs = v.t.Sub(tabulaEpoch).Seconds()
		} else {
			secs = v.dur.Seconds()
		}
		encodeFloat64(buf, secs)
		return nil
	default:
		return fmt.Errorf("%w: unsupported date_time_type %s", ErrCodec, f.DateTimeType)
	}
}

func humanReadableDigits(t time.Time) int64 {
	s := t.UTC().Format("20060102150405") + fmt.Sprintf("%03d", t.Nanosecond()/1e6)
	n, _ := strconv.ParseInt(s, 10, 64)
	return n
}

func humanReadableDurationDigits(d time.Duration) int64 {
	// TimeSpan has no calendar; spell out days/hours/minutes/seconds/millis
	// packed the same width as the DateTime digit string so both variants
	// share a single on-disk shape.
	neg := d < 0
	if neg {
		d = -d
	}
	days := int64(d / (24 * time.Hour))
	d -= time.Duration(days) * 24 * time.Hour
	hours := int64(d / time.Hour)
	d -= time.Duration(hours) * time.Hour
	mins := int64(d / time.Minute)
	d -= time.Duration(mins) * time.Minute
	secs := int64(d / time.Second)
	d -= time.Duration(secs) * time.Second
	millis := int64(d / time.Millisecond)
	n := ((((days*100+hours)*100+mins)*100+secs)*1000 + millis)
	if neg {
		n = -n
	}
	return n
}

// DecodeValue reads one value for field f from r, in the given on-disk
// version.
func DecodeValue(r *bytes.Reader, f FieldProperties, version int) (Value, error) {
	switch f.TypeAtDatabase {
	case Bool:
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("%w: reading bool: %v", ErrCodec, err)
		}
		return NewBool(b != 0), nil
	case Int8:
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("%w: reading int8: %v", ErrCodec, err)
		}
		return NewInt8(int8(b)), nil
	case UInt8:
		b, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("%w: reading uint8: %v", ErrCodec, err)
		}
		return NewUInt8(b), nil
	case Int16:
		var tmp [2]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading int16: %v", ErrCodec, err)
		}
		return NewInt16(int16(binary.LittleEndian.Uint16(tmp[:]))), nil
	case UInt16:
		var tmp [2]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading uint16: %v", ErrCodec, err)
		}
		return NewUInt16(binary.LittleEndian.Uint16(tmp[:])), nil
	case Int32:
		if version >= 2 {
			x, err := readUvarint(r)
			if err != nil {
				return Value{}, err
			}
			return NewInt32(int32(zigzagDecode(x))), nil
		}
		var tmp [4]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading int32: %v", ErrCodec, err)
		}
		return NewInt32(int32(binary.LittleEndian.Uint32(tmp[:]))), nil
	case UInt32:
		if version >= 2 {
			x, err := readUvarint(r)
			if err != nil {
				return Value{}, err
			}
			return NewUInt32(uint32(x)), nil
		}
		var tmp [4]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading uint32: %v", ErrCodec, err)
		}
		return NewUInt32(binary.LittleEndian.Uint32(tmp[:])), nil
	case Int64:
		if f.DataType == Enum {
			if version >= 2 {
				x, err := readUvarint(r)
				if err != nil {
					return Value{}, err
				}
				return NewEnum(zigzagDecode(x)), nil
			}
			var tmp [8]byte
			if _, err := readFull(r, tmp[:]); err != nil {
				return Value{}, fmt.Errorf("%w: reading enum: %v", ErrCodec, err)
			}
			return NewEnum(int64(binary.LittleEndian.Uint64(tmp[:]))), nil
		}
		if f.DataType == DateTime || f.DataType == TimeSpan {
			return decodeDateTime(r, f, version)
		}
		if version >= 2 {
			x, err := readUvarint(r)
			if err != nil {
				return Value{}, err
			}
			return NewInt64(zigzagDecode(x)), nil
		}
		var tmp [8]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading int64: %v", ErrCodec, err)
		}
		return NewInt64(int64(binary.LittleEndian.Uint64(tmp[:]))), nil
	case UInt64:
		if version >= 2 {
			x, err := readUvarint(r)
			if err != nil {
				return Value{}, err
			}
			return NewUInt64(x), nil
		}
		var tmp [8]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading uint64: %v", ErrCodec, err)
		}
		return NewUInt64(binary.LittleEndian.Uint64(tmp[:])), nil
	case Single:
		var tmp [4]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading single: %v", ErrCodec, err)
		}
		return NewSingle(math.Float32frombits(binary.LittleEndian.Uint32(tmp[:]))), nil
	case Double:
		if f.DataType == DateTime || f.DataType == TimeSpan {
			return decodeDateTime(r, f, version)
		}
		fl, err := decodeFloat64(r)
		if err != nil {
			return Value{}, err
		}
		return NewDouble(fl), nil
	case Decimal:
		if f.DataType == DateTime || f.DataType == TimeSpan {
			return decodeDateTime(r, f, version)
		}
		d, err := decodeDecimal(r)
		if err != nil {
			return Value{}, err
		}
		return NewDecimal(d), nil
	case Char:
		var tmp [4]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading char: %v", ErrCodec, err)
		}
		return NewChar(rune(binary.LittleEndian.Uint32(tmp[:]))), nil
	case String:
		return decodeString(r, f, version)
	case Binary:
		return decodeBinary(r, version)
	case DateTime, TimeSpan:
		return decodeDateTime(r, f, version)
	default:
		return Value{}, fmt.Errorf("%w: unsupported storage type %s", ErrCodec, f.TypeAtDatabase)
	}
}

func decodeFloat64(r *bytes.Reader) (float64, error) {
	var tmp [8]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return 0, fmt.Errorf("%w: reading double: %v", ErrCodec, err)
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(tmp[:])), nil
}

func decodeDecimal(r *bytes.Reader) (Decimal128, error) {
	var tmp [8]byte
	if _, err := readFull(r, tmp[:]); err != nil {
		return Decimal128{}, fmt.Errorf("%w: reading decimal mantissa: %v", ErrCodec, err)
	}
	scale, err := r.ReadByte()
	if err != nil {
		return Decimal128{}, fmt.Errorf("%w: reading decimal scale: %v", ErrCodec, err)
	}
	return Decimal128{Mantissa: int64(binary.LittleEndian.Uint64(tmp[:])), Scale: scale}, nil
}

func decodeString(r *bytes.Reader, f FieldProperties, version int) (Value, error) {
	raw, isNull, err := readLengthPrefixed(r, version)
	if err != nil {
		return Value{}, err
	}
	if isNull {
		if f.DataType == User {
			return Value{typ: User, null: true}, nil
		}
		return NewNullString(), nil
	}
	s, err := decodeStringBytes(f.StringEncoding, raw)
	if err != nil {
		return Value{}, err
	}
	if f.DataType == User {
		return NewUser(s), nil
	}
	return NewString(s), nil
}

func decodeBinary(r *bytes.Reader, version int) (Value, error) {
	if version < 3 {
		var tmp [4]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading binary length: %v", ErrCodec, err)
		}
		n := binary.LittleEndian.Uint32(tmp[:])
		raw := make([]byte, n)
		if _, err := readFull(r, raw); err != nil {
			return Value{}, fmt.Errorf("%w: reading binary payload: %v", ErrCodec, err)
		}
		return NewBinary(raw), nil
	}
	raw, isNull, err := readLengthPrefixed(r, version)
	if err != nil {
		return Value{}, err
	}
	if isNull {
		return NewNullBinary(), nil
	}
	return NewBinary(raw), nil
}

func decodeDateTime(r *bytes.Reader, f FieldProperties, version int) (Value, error) {
	switch f.DateTimeType {
	case Native:
		kindByte, err := r.ReadByte()
		if err != nil {
			return Value{}, fmt.Errorf("%w: reading date-time kind: %v", ErrCodec, err)
		}
		var tmp [8]byte
		if _, err := readFull(r, tmp[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading date-time seconds: %v", ErrCodec, err)
		}
		sec := int64(binary.LittleEndian.Uint64(tmp[:]))
		var tmp2 [4]byte
		if _, err := readFull(r, tmp2[:]); err != nil {
			return Value{}, fmt.Errorf("%w: reading date-time nanoseconds: %v", ErrCodec, err)
		}
		nsec := int64(binary.LittleEndian.Uint32(tmp2[:]))
		if f.DataType == TimeSpan {
			return NewTimeSpan(time.Duration(sec)*time.Second + time.Duration(nsec)), nil
		}
		t := time.Unix(sec, nsec).UTC()
		_ = kindByte
		return NewDateTime(t), nil
	case BigIntTicks:
		var ticks int64
		if version >= 2 {
			x, err := readUvarint(r)
			if err != nil {
				return Value{}, err
			}
			ticks = zigzagDecode(x)
		} else {
			var tmp [8]byte
			if _, err := readFull(r, tmp[:]); err != nil {
				return Value{}, fmt.Errorf("%w: reading ticks: %v", ErrCodec, err)
			}
			ticks = int64(binary.LittleEndian.Uint64(tmp[:]))
		}
		nanos := ticks * 100
		if f.DataType == TimeSpan {
			return NewTimeSpan(time.Duration(nanos)), nil
		}
		return NewDateTime(time.Unix(0, nanos).UTC()), nil
	case BigIntHumanReadable:
		var digits int64
		if version >= 2 {
			x, err := readUvarint(r)
			if err != nil {
				return Value{}, err
			}
			digits = zigzagDecode(x)
		} else {
			var tmp [8]byte
			if _, err := readFull(r, tmp[:]); err != nil {
				return Value{}, fmt.Errorf("%w: reading digits: %v", ErrCodec, err)
			}
			digits = int64(binary.LittleEndian.Uint64(tmp[:]))
		}
		if f.DataType == TimeSpan {
			return NewTimeSpan(parseHumanReadableDuration(digits)), nil
		}
		return NewDateTime(parseHumanReadableDigits(digits)), nil
	case DecimalSeconds:
		d, err := decodeDecimal(r)
		if err != nil {
			return Value{}, err
		}
		micros := d.Mantissa
		if f.DataType == TimeSpan {
			return NewTimeSpan(time.Duration(micros) * time.Microsecond), nil
		}
		return NewDateTime(time.Unix(micros/1_000_000, (micros%1_000_000)*1_000).UTC()), nil
	case DoubleSeconds:
		fl, err := decodeFloat64(r)
		if err != nil {
			return Value{}, err
		}
		if f.DataType == TimeSpan {
			return NewTimeSpan(time.Duration(fl * float64(time.Second))), nil
		}
		sec := math.Floor(fl)
		nsec := (fl - sec) * 1e9
		return NewDateTime(time.Unix(int64(sec), int64(nsec)).UTC()), nil
	case DoubleEpoch:
		fl, err := decodeFloat64(r)
		if err != nil {
			return Value{}, err
		}
		if f.DataType == TimeSpan {
			return NewTimeSpan(time.Duration(fl * float64(time.Second))), nil
		}
		return NewDateTime(tabulaEpoch.Add(time.Duration(fl * float64(time.Second)))), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported date_time_type %s", ErrCodec, f.DateTimeType)
	}
}

func parseHumanReadableDigits(digits int64) time.Time {
	s := fmt.Sprintf("%017d", digits)
	layout := "20060102150405.000"
	t, err := time.Parse(layout, s[:14]+"."+s[14:])
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}

func parseHumanReadableDuration(digits int64) time.Duration {
	neg := digits < 0
	if neg {
		digits = -digits
	}
	millis := digits % 1000
	digits /= 1000
	secs := digits % 100
	digits /= 100
	mins := digits % 100
	digits /= 100
	hours := digits % 100
	digits /= 100
	days := digits
	d := time.Duration(days)*24*time.Hour + time.Duration(hours)*time.Hour + time.Duration(mins)*time.Minute + time.Duration(secs)*time.Second + time.Duration(millis)*time.Millisecond
	if neg {
		d = -d
	}
	return d
}

// FormatValue renders v as human-readable text for the CSV collaborator.
func FormatValue(v Value, f FieldProperties, opts TextOptions) (string, error) {
	if v.null {
		return "", nil
	}
	switch f.DataType {
	case Bool:
		return strconv.FormatBool(v.b), nil
	case Int8, Int16, Int32, Int64, Enum:
		return strconv.FormatInt(v.i, 10), nil
	case Char:
		return string(rune(v.i)), nil
	case UInt8, UInt16, UInt32, UInt64:
		return strconv.FormatUint(v.u, 10), nil
	case Single:
		return strconv.FormatFloat(float64(v.f32), 'g', -1, 32), nil
	case Double:
		return strconv.FormatFloat(v.f64, 'g', -1, 64), nil
	case Decimal:
		return strconv.FormatFloat(v.dec.Float64(), 'f', int(v.dec.Scale), 64), nil
	case String, User:
		return v.s, nil
	case Binary:
		return fmt.Sprintf("%x", v.bin), nil
	case DateTime:
		return v.t.Format(opts.layout()), nil
	case TimeSpan:
		return v.dur.String(), nil
	default:
		return "", fmt.Errorf("%w: unsupported data type %s", ErrCodec, f.DataType)
	}
}

// ParseValueText parses text into a Value for field f.
func ParseValueText(text string, f FieldProperties, opts TextOptions) (Value, error) {
	if text == "" && f.IsNullable && (f.DataType == String || f.DataType == Binary) {
		if f.DataType == String {
			return NewNullString(), nil
		}
		return NewNullBinary(), nil
	}
	switch f.DataType {
	case Bool:
		b, err := strconv.ParseBool(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing bool %q: %v", ErrCodec, text, err)
		}
		return NewBool(b), nil
	case Int8:
		n, err := strconv.ParseInt(text, 10, 8)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing int8 %q: %v", ErrCodec, text, err)
		}
		return NewInt8(int8(n)), nil
	case Int16:
		n, err := strconv.ParseInt(text, 10, 16)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing int16 %q: %v", ErrCodec, text, err)
		}
		return NewInt16(int16(n)), nil
	case Int32:
		n, err := strconv.ParseInt(text, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing int32 %q: %v", ErrCodec, text, err)
		}
		return NewInt32(int32(n)), nil
	case Int64:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing int64 %q: %v", ErrCodec, text, err)
		}
		return NewInt64(n), nil
	case Enum:
		n, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing enum %q: %v", ErrCodec, text, err)
		}
		return NewEnum(n), nil
	case UInt8:
		n, err := strconv.ParseUint(text, 10, 8)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing uint8 %q: %v", ErrCodec, text, err)
		}
		return NewUInt8(uint8(n)), nil
	case UInt16:
		n, err := strconv.ParseUint(text, 10, 16)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing uint16 %q: %v", ErrCodec, text, err)
		}
		return NewUInt16(uint16(n)), nil
	case UInt32:
		n, err := strconv.ParseUint(text, 10, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing uint32 %q: %v", ErrCodec, text, err)
		}
		return NewUInt32(uint32(n)), nil
	case UInt64:
		n, err := strconv.ParseUint(text, 10, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing uint64 %q: %v", ErrCodec, text, err)
		}
		return NewUInt64(n), nil
	case Single:
		f32, err := strconv.ParseFloat(text, 32)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing single %q: %v", ErrCodec, text, err)
		}
		return NewSingle(float32(f32)), nil
	case Double:
		f64, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing double %q: %v", ErrCodec, text, err)
		}
		return NewDouble(f64), nil
	case Decimal:
		f64, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing decimal %q: %v", ErrCodec, text, err)
		}
		dot := strings.IndexByte(text, '.')
		scale := 0
		if dot >= 0 {
			scale = len(text) - dot - 1
		}
		return NewDecimal(Decimal128{Mantissa: int64(math.Round(f64 * pow10(uint8(scale)))), Scale: uint8(scale)}), nil
	case Char:
		rs := []rune(text)
		if len(rs) != 1 {
			return Value{}, fmt.Errorf("%w: %q is not a single character", ErrCodec, text)
		}
		return NewChar(rs[0]), nil
	case String:
		return NewString(text), nil
	case User:
		return NewUser(text), nil
	case Binary:
		var raw []byte
		if _, err := fmt.Sscanf(text, "%x", &raw); err != nil {
			return Value{}, fmt.Errorf("%w: parsing binary hex %q: %v", ErrCodec, text, err)
		}
		return NewBinary(raw), nil
	case DateTime:
		t, err := time.Parse(opts.layout(), text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing date-time %q: %v", ErrCodec, text, err)
		}
		return NewDateTime(t), nil
	case TimeSpan:
		d, err := time.ParseDuration(text)
		if err != nil {
			return Value{}, fmt.Errorf("%w: parsing time span %q: %v", ErrCodec, text, err)
		}
		return NewTimeSpan(d), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported data type %s", ErrCodec, f.DataType)
	}
}

// appendValueBytesForHash is a best-effort byte-wise encoding used to make
// Rows hashable; it ignores codec errors by falling back to the empty
// encoding for a malformed value, since hashing is never a correctness
// requirement, only a deduplication aid.
func appendValueBytesForHash(buf []byte, f FieldProperties, v Value) []byte {
	var b bytes.Buffer
	_ = EncodeValue(&b, f, v, 4)
	return append(buf, b.Bytes()...)
}
