package tabula

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// LayoutFromStruct builds a Layout from a Go struct's exported fields and
// their `tabula:"..."` struct tags, the reflection-driven registration path
// the out-of-scope struct-mapping collaborator is expected to call before
// handing rows to a Table. v must be a struct or a pointer to one.
//
// Tag syntax, comma-separated after an optional leading name override:
//
//	tabula:"name,id,autoincrement,unique,index,nonzero,enum,user,max=N"
//
// A leading element that is one of the option words or has the max=N form
// is read as an option, not as a name. A bare "-" skips the field. Pointer field types (*string, *[]byte) mark
// the field nullable; every other Go type maps onto exactly one DataType,
// so ambiguous cases (a named int64 meant as an Enum, a named string meant
// as a User type) must say so explicitly with the enum/user tag option.
func LayoutFromStruct(v any) (*Layout, error) {
	t := reflect.TypeOf(v)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: LayoutFromStruct requires a struct, got %s", ErrInvalidArgument, t.Kind())
	}

	var fields []FieldProperties
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if sf.PkgPath != "" {
			continue // unexported
		}
		tag := sf.Tag.Get("tabula")
		if tag == "-" {
			continue
		}
		f, err := fieldFromStructField(sf, tag)
		if err != nil {
			return nil, fmt.Errorf("field %q: %w", sf.Name, err)
		}
		fields = append(fields, f)
	}
	return NewLayout(t.Name(), fields)
}

type tagOptions struct {
	name          string
	id            bool
	autoincrement bool
	unique        bool
	index         bool
	nonzero       bool
	enum          bool
	user          bool
	maxLength     int
}

func parseTag(tag string) (tagOptions, error) {
	var o tagOptions
	if tag == "" {
		return o, nil
	}
	parts := strings.Split(tag, ",")
	switch first := strings.TrimSpace(parts[0]); first {
	case "", "id", "autoincrement", "unique", "index", "nonzero", "enum", "user":
	default:
		if !strings.Contains(first, "=") {
			o.name = first
			parts = parts[1:]
		}
	}
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if strings.HasPrefix(p, "max=") {
			n, err := strconv.Atoi(strings.TrimPrefix(p, "max="))
			if err != nil {
				return o, fmt.Errorf("%w: invalid max length in tag %q: %v", ErrInvalidArgument, tag, err)
			}
			o.maxLength = n
			continue
		}
		switch p {
		case "id":
			o.id = true
		case "autoincrement":
			o.autoincrement = true
		case "unique":
			o.unique = true
		case "index":
			o.index = true
		case "nonzero":
			o.nonzero = true
		case "enum":
			o.enum = true
		case "user":
			o.user = true
		default:
			return o, fmt.Errorf("%w: unknown tag option %q in %q", ErrInvalidArgument, p, tag)
		}
	}
	return o, nil
}

var (
	timeType     = reflect.TypeOf(time.Time{})
	durationType = reflect.TypeOf(time.Duration(0))
	byteSliceT   = reflect.TypeOf([]byte(nil))
)

func fieldFromStructField(sf reflect.StructField, tag string) (FieldProperties, error) {
	opts, err := parseTag(tag)
	if err != nil {
		return FieldProperties{}, err
	}

	typ := sf.Type
	nullable := false
	if typ.Kind() == reflect.Ptr {
		nullable = true
		typ = typ.Elem()
	}

	dt, valueType, err := goTypeToDataType(typ, opts)
	if err != nil {
		return FieldProperties{}, err
	}

	f := FieldProperties{
		Name:          sf.Name,
		DataType:      dt,
		ValueType:     valueType,
		MaximumLength: opts.maxLength,
		IsNullable:    nullable,
	}
	if opts.name != "" {
		f.NameAtDatabase = opts.name
	}
	if opts.id {
		f.Flags |= FlagID
	}
	if opts.autoincrement {
		f.Flags |= FlagAutoIncrement
	}
	if opts.unique {
		f.Flags |= FlagUnique
	}
	if opts.index {
		f.Flags |= FlagIndexed
	}
	if opts.nonzero {
		f.IsNullable = false
	}
	return f, nil
}

func goTypeToDataType(typ reflect.Type, opts tagOptions) (DataType, string, error) {
	switch {
	case typ == timeType:
		return DateTime, "", nil
	case typ == durationType:
		return TimeSpan, "", nil
	case typ == byteSliceT:
		return Binary, "", nil
	}

	switch typ.Kind() {
	case reflect.Bool:
		return Bool, "", nil
	case reflect.Int8:
		return Int8, "", nil
	case reflect.Int16:
		return Int16, "", nil
	case reflect.Int32, reflect.Int:
		return Int32, "", nil
	case reflect.Int64:
		if opts.enum {
			return Enum, typ.Name(), nil
		}
		return Int64, "", nil
	case reflect.Uint8:
		return UInt8, "", nil
	case reflect.Uint16:
		return UInt16, "", nil
	case reflect.Uint32, reflect.Uint:
		return UInt32, "", nil
	case reflect.Uint64:
		return UInt64, "", nil
	case reflect.Float32:
		return Single, "", nil
	case reflect.Float64:
		return Double, "", nil
	case reflect.String:
		if opts.user {
			return User, typ.Name(), nil
		}
		return String, "", nil
	case reflect.Slice:
		if typ.Elem().Kind() == reflect.Uint8 {
			return Binary, "", nil
		}
	}
	return 0, "", fmt.Errorf("%w: unsupported Go type %s", ErrInvalidArgument, typ)
}

// RowFromStruct converts a struct value (matching the layout LayoutFromStruct
// built for its type) into a Row, field-for-field in declaration order.
func RowFromStruct(layout *Layout, v any) (Row, error) {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Ptr {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return Row{}, fmt.Errorf("%w: RowFromStruct requires a struct, got %s", ErrInvalidArgument, rv.Kind())
	}
	values := make([]Value, 0, len(layout.Fields))
	for _, f := range layout.Fields {
		fv := rv.FieldByName(f.Name)
		if !fv.IsValid() {
			return Row{}, fmt.Errorf("%w: struct %s has no field %q", ErrInvalidArgument, rv.Type(), f.Name)
		}
		v, err := valueFromReflect(f, fv)
		if err != nil {
			return Row{}, err
		}
		values = append(values, v)
	}
	return NewRow(layout, values)
}

func valueFromReflect(f FieldProperties, fv reflect.Value) (Value, error) {
	if fv.Kind() == reflect.Ptr {
		if fv.IsNil() {
			switch f.DataType {
			case String, User:
				return NewNullString(), nil
			case Binary:
				return NewNullBinary(), nil
			default:
				return Value{}, fmt.Errorf("%w: field %q of type %s cannot be null", ErrInvalidArgument, f.Name, f.DataType)
			}
		}
		fv = fv.Elem()
	}
	switch f.DataType {
	case Bool:
		return NewBool(fv.Bool()), nil
	case Int8:
		return NewInt8(int8(fv.Int())), nil
	case Int16:
		return NewInt16(int16(fv.Int())), nil
	case Int32:
		return NewInt32(int32(fv.Int())), nil
	case Int64:
		return NewInt64(fv.Int()), nil
	case Enum:
		return NewEnum(fv.Int()), nil
	case UInt8:
		return NewUInt8(uint8(fv.Uint())), nil
	case UInt16:
		return NewUInt16(uint16(fv.Uint())), nil
	case UInt32:
		return NewUInt32(uint32(fv.Uint())), nil
	case UInt64:
		return NewUInt64(fv.Uint()), nil
	case Single:
		return NewSingle(float32(fv.Float())), nil
	case Double:
		return NewDouble(fv.Float()), nil
	case Char:
		return NewChar(rune(fv.Int())), nil
	case String:
		return NewString(fv.String()), nil
	case User:
		return NewUser(fv.String()), nil
	case Binary:
		b := make([]byte, fv.Len())
		reflect.Copy(reflect.ValueOf(b), fv)
		return NewBinary(b), nil
	case DateTime:
		return NewDateTime(fv.Interface().(time.Time)), nil
	case TimeSpan:
		return NewTimeSpan(time.Duration(fv.Int())), nil
	default:
		return Value{}, fmt.Errorf("%w: unsupported data type %s", ErrInvalidArgument, f.DataType)
	}
}

// ScanRow copies a Row's values into a struct pointed to by dst, the
// inverse of RowFromStruct.
func ScanRow(layout *Layout, row Row, dst any) error {
	rv := reflect.ValueOf(dst)
	if rv.Kind() != reflect.Ptr || rv.IsNil() {
		return fmt.Errorf("%w: ScanRow requires a non-nil pointer, got %s", ErrInvalidArgument, rv.Type())
	}
	rv = rv.Elem()
	for i, f := range layout.Fields {
		fv := rv.FieldByName(f.Name)
		if !fv.IsValid() {
			return fmt.Errorf("%w: struct %s has no field %q", ErrInvalidArgument, rv.Type(), f.Name)
		}
		if err := assignValue(fv, row.Get(i)); err != nil {
			return fmt.Errorf("field %q: %w", f.Name, err)
		}
	}
	return nil
}

func assignValue(fv reflect.Value, v Value) error {
	if fv.Kind() == reflect.Ptr {
		if v.IsNull() {
			fv.Set(reflect.Zero(fv.Type()))
			return nil
		}
		if fv.IsNil() {
			fv.Set(reflect.New(fv.Type().Elem()))
		}
		fv = fv.Elem()
	}
	switch v.Type() {
	case Bool:
		fv.SetBool(v.Bool())
	case Int8, Int16, Int32, Int64, Char, Enum:
		fv.SetInt(v.Int())
	case UInt8, UInt16, UInt32, UInt64:
		fv.SetUint(v.Uint())
	case Single:
		fv.SetFloat(float64(v.Float32()))
	case Double:
		fv.SetFloat(v.Float64())
	case String, User:
		fv.SetString(v.String())
	case Binary:
		fv.SetBytes(v.Bytes())
	case DateTime:
		fv.Set(reflect.ValueOf(v.Time()))
	case TimeSpan:
		fv.SetInt(int64(v.Duration()))
	default:
		return fmt.Errorf("%w: unsupported data type %s", ErrInvalidArgument, v.Type())
	}
	return nil
}
