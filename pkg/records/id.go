package records

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/agentstation/shelf/pkg/errors"
)

// ID is a source-scoped integer identifier that may be absent.
// The zero value is an absent id.
type ID struct {
	value int64
	valid bool
}

// NewID returns a present id.
func NewID(n int64) ID {
	return ID{value: n, valid: true}
}

// Int64 returns the id and whether it is present.
func (id ID) Int64() (int64, bool) {
	return id.value, id.valid
}

// Valid reports whether the id is present.
func (id ID) Valid() bool {
	return id.valid
}

// String returns the decimal id, or "" when absent.
func (id ID) String() string {
	if !id.valid {
		return ""
	}
	return strconv.FormatInt(id.value, 10)
}

// MarshalJSON encodes an absent id as null.
func (id ID) MarshalJSON() ([]byte, error) {
	if !id.valid {
		return []byte("null"), nil
	}
	return []byte(strconv.FormatInt(id.value, 10)), nil
}

// UnmarshalJSON accepts null, integers and integer strings.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ID{}
		return nil
	}

	s := string(data)
	if data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return errors.WrapParse("json", "id", err)
		}
		s = strings.TrimSpace(s)
		if s == "" {
			*id = ID{}
			return nil
		}
	}

	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		// Accept integral floats like 12.0, which some encoders emit.
		f, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil || f != float64(int64(f)) {
			return errors.NewParseError("json", "id", "not an integer: "+s, err)
		}
		n = int64(f)
	}
	*id = NewID(n)
	return nil
}
