package obslog

import (
	"bytes"
	"fmt"
	"strconv"
	"time"
)

func toString(v any) string {
	return fmt.Sprint(v)
}

// record is the fully-resolved set of data for a single log line: the
// message, its level and timestamp, and the accumulated fields from every
// WithFields ancestor plus the call-site fields.
type record struct {
	time   time.Time
	level  Level
	msg    string
	fields []Field
}

// encodeJSON writes record as a single JSON object line into buf. Hand
// rolled rather than encoding/json.Marshal because the caller reuses buf
// across calls to avoid allocating one map per log line.
func encodeJSON(r record, buf *bytes.Buffer) []byte {
	buf.Reset()
	buf.WriteByte('{')
	buf.WriteString(`"time":"`)
	buf.WriteString(r.time.Format(time.RFC3339Nano))
	buf.WriteString(`","level":"`)
	buf.WriteString(r.level.String())
	buf.WriteString(`","msg":`)
	writeJSONString(buf, r.msg)

	for _, f := range r.fields {
		if f.Value == nil {
			continue
		}

		buf.WriteByte(',')
		writeJSONString(buf, f.Key)
		buf.WriteByte(':')
		writeJSONValue(buf, f.Value)
	}

	buf.WriteString("}\n")

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())

	return out
}

// encodeConsole writes a human-readable, optionally colorized line: level,
// message, then key=value pairs.
func encodeConsole(r record, buf *bytes.Buffer, colorize bool) []byte {
	buf.Reset()
	buf.WriteString(r.time.Format("2006-01-02T15:04:05.000Z07:00"))
	buf.WriteByte(' ')

	level := r.level.String()
	if colorize {
		level = levelColor(r.level).wrap(level)
	}

	buf.WriteString(level)
	buf.WriteByte(' ')
	buf.WriteString(r.msg)

	for _, f := range r.fields {
		if f.Value == nil {
			continue
		}

		buf.WriteByte(' ')
		buf.WriteString(f.Key)
		buf.WriteByte('=')
		buf.WriteString(formatConsoleValue(f.Value))
	}

	buf.WriteByte('\n')

	out := make([]byte, buf.Len())
	copy(out, buf.Bytes())

	return out
}

func writeJSONString(buf *bytes.Buffer, s string) {
	buf.WriteByte('"')

	for _, r := range s {
		switch r {
		case '"':
			buf.WriteString(`\"`)
		case '\\':
			buf.WriteString(`\\`)
		case '\n':
			buf.WriteString(`\n`)
		case '\t':
			buf.WriteString(`\t`)
		default:
			buf.WriteRune(r)
		}
	}

	buf.WriteByte('"')
}

func writeJSONValue(buf *bytes.Buffer, v any) {
	switch val := v.(type) {
	case string:
		writeJSONString(buf, val)
	case error:
		writeJSONString(buf, val.Error())
	case bool:
		buf.WriteString(strconv.FormatBool(val))
	case int:
		buf.WriteString(strconv.Itoa(val))
	case int64:
		buf.WriteString(strconv.FormatInt(val, 10))
	case uint32:
		buf.WriteString(strconv.FormatUint(uint64(val), 10))
	case uint64:
		buf.WriteString(strconv.FormatUint(val, 10))
	case float64:
		buf.WriteString(strconv.FormatFloat(val, 'f', -1, 64))
	case time.Duration:
		writeJSONString(buf, val.String())
	case time.Time:
		writeJSONString(buf, val.Format(time.RFC3339Nano))
	default:
		writeJSONString(buf, formatConsoleValue(val))
	}
}

func formatConsoleValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case error:
		return val.Error()
	case time.Duration:
		return val.String()
	case time.Time:
		return val.Format(time.RFC3339)
	default:
		return toString(val)
	}
}
