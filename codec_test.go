package tabula

import (
	"bytes"
	"testing"
	"time"
)

func roundTrip(t *testing.T, f FieldProperties, v Value, version int) Value {
	t.Helper()
	var buf bytes.Buffer
	tcheck(t, EncodeValue(&buf, f, v, version), "EncodeValue")
	got, err := DecodeValue(bytes.NewReader(buf.Bytes()), f, version)
	tcheck(t, err, "DecodeValue")
	return got
}

func TestCodecIntegersRoundTripAllVersions(t *testing.T) {
	for version := 1; version <= 4; version++ {
		f := FieldProperties{Name: "N", DataType: Int32, TypeAtDatabase: Int32}
		got := roundTrip(t, f, NewInt32(-12345), version)
		if got.Int() != -12345 {
			t.Fatalf("version %d: Int32 round trip = %d, want -12345", version, got.Int())
		}

		fu := FieldProperties{Name: "N", DataType: UInt64, TypeAtDatabase: UInt64}
		gotU := roundTrip(t, fu, NewUInt64(18446744073709551615), version)
		if gotU.Uint() != 18446744073709551615 {
			t.Fatalf("version %d: UInt64 round trip = %d", version, gotU.Uint())
		}
	}
}

func TestCodecStringRoundTrip(t *testing.T) {
	f := FieldProperties{Name: "S", DataType: String, TypeAtDatabase: String, StringEncoding: UTF8}
	for version := 3; version <= 4; version++ {
		got := roundTrip(t, f, NewString("héllo wörld"), version)
		if got.String() != "héllo wörld" {
			t.Fatalf("version %d: String round trip = %q", version, got.String())
		}
	}
}

func TestCodecNullStringRoundTrip(t *testing.T) {
	f := FieldProperties{Name: "S", DataType: String, TypeAtDatabase: String, StringEncoding: UTF8}
	got := roundTrip(t, f, NewNullString(), 4)
	if !got.IsNull() {
		t.Fatalf("expected null string to round trip as null")
	}
}

func TestCodecStringCompressionLargePayload(t *testing.T) {
	f := FieldProperties{Name: "S", DataType: String, TypeAtDatabase: String, StringEncoding: UTF8}
	big := bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog "), 50)
	got := roundTrip(t, f, NewString(string(big)), 4)
	if got.String() != string(big) {
		t.Fatalf("compressed string round trip mismatch, got len %d want %d", len(got.String()), len(big))
	}
}

func TestCodecBinaryRoundTripVersions(t *testing.T) {
	f := FieldProperties{Name: "B", DataType: Binary, TypeAtDatabase: Binary}
	payload := []byte{1, 2, 3, 4, 5}
	for version := 1; version <= 4; version++ {
		got := roundTrip(t, f, NewBinary(payload), version)
		if !bytes.Equal(got.Bytes(), payload) {
			t.Fatalf("version %d: Binary round trip = %v, want %v", version, got.Bytes(), payload)
		}
	}
}

func TestCodecUTF16UTF32StringEncoding(t *testing.T) {
	for _, enc := range []StringEncoding{UTF16, UTF32} {
		f := FieldProperties{Name: "S", DataType: String, TypeAtDatabase: String, StringEncoding: enc}
		got := roundTrip(t, f, NewString("abc123"), 4)
		if got.String() != "abc123" {
			t.Fatalf("encoding %v: round trip = %q", enc, got.String())
		}
	}
}

func TestCodecASCIIRejectsNonASCII(t *testing.T) {
	f := FieldProperties{Name: "S", DataType: String, TypeAtDatabase: String, StringEncoding: ASCII}
	var buf bytes.Buffer
	err := EncodeValue(&buf, f, NewString("héllo"), 4)
	tneed(t, err, ErrCodec, "ASCII encoding of non-ASCII string")
}

func TestCodecDateTimeVariants(t *testing.T) {
	when := time.Date(2024, 6, 15, 13, 45, 30, 0, time.UTC)
	variants := []DateTimeType{Native, BigIntTicks, BigIntHumanReadable, DecimalSeconds, DoubleSeconds, DoubleEpoch}
	for _, dtt := range variants {
		f := FieldProperties{Name: "When", DataType: DateTime, DateTimeType: dtt, DateTimeKind: Utc}
		f.TypeAtDatabase = dtt.storageDataType(DateTime)
		got := roundTrip(t, f, NewDateTime(when), 4)
		if !got.Time().Equal(when) {
			t.Fatalf("variant %v: DateTime round trip = %v, want %v", dtt, got.Time(), when)
		}
	}
}

func TestCodecTimeSpanVariants(t *testing.T) {
	d := 3*time.Hour + 25*time.Minute + 10*time.Second
	variants := []DateTimeType{Native, BigIntTicks, BigIntHumanReadable, DecimalSeconds, DoubleSeconds, DoubleEpoch}
	for _, dtt := range variants {
		f := FieldProperties{Name: "Span", DataType: TimeSpan, DateTimeType: dtt}
		f.TypeAtDatabase = dtt.storageDataType(TimeSpan)
		got := roundTrip(t, f, NewTimeSpan(d), 4)
		if got.Duration() != d {
			t.Fatalf("variant %v: TimeSpan round trip = %v, want %v", dtt, got.Duration(), d)
		}
	}
}

func TestFormatAndParseValueTextRoundTrip(t *testing.T) {
	cases := []struct {
		f FieldProperties
		v Value
	}{
		{FieldProperties{DataType: Bool}, NewBool(true)},
		{FieldProperties{DataType: Int64}, NewInt64(-99)},
		{FieldProperties{DataType: UInt32}, NewUInt32(42)},
		{FieldProperties{DataType: Double}, NewDouble(3.25)},
		{FieldProperties{DataType: String}, NewString("hello")},
		{FieldProperties{DataType: TimeSpan}, NewTimeSpan(90 * time.Minute)},
	}
	for _, c := range cases {
		text, err := FormatValue(c.v, c.f, TextOptions{})
		tcheck(t, err, "FormatValue")
		got, err := ParseValueText(text, c.f, TextOptions{})
		tcheck(t, err, "ParseValueText")
		if !got.Equal(c.v) {
			t.Fatalf("text round trip for %v: got %v, want %v", c.f.DataType, got.Interface(), c.v.Interface())
		}
	}
}

func TestParseValueTextEmptyNullable(t *testing.T) {
	f := FieldProperties{DataType: String, IsNullable: true}
	v, err := ParseValueText("", f, TextOptions{})
	tcheck(t, err, "ParseValueText")
	if !v.IsNull() {
		t.Fatalf("expected empty text on nullable String field to parse as null")
	}
}
