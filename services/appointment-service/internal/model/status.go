package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Status is the appointment lifecycle state. The zero value is not a valid
// status and is never treated as Pending.
type Status uint8

const (
	StatusPending Status = iota + 1
	StatusConfirmed
	StatusCompleted
	StatusCancelled
)

// ActiveStatuses are the statuses that occupy a slot.
var ActiveStatuses = []Status{StatusPending, StatusConfirmed}

func (s Status) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusConfirmed:
		return "confirmed"
	case StatusCompleted:
		return "completed"
	case StatusCancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("status(%d)", uint8(s))
	}
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled:
		return true
	default:
		return false
	}
}

func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCancelled:
		return true
	case StatusPending, StatusConfirmed:
		return false
	default:
		return false
	}
}

func (s Status) IsActive() bool {
	switch s {
	case StatusPending, StatusConfirmed:
		return true
	case StatusCompleted, StatusCancelled:
		return false
	default:
		return false
	}
}

// CanTransition reports whether an appointment may move from one status to
// another. Identity transitions and anything out of a terminal state are
// rejected.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusConfirmed || to == StatusCancelled
	case StatusConfirmed:
		return to == StatusCompleted || to == StatusCancelled
	case StatusCompleted, StatusCancelled:
		return false
	default:
		return false
	}
}

func ParseStatus(s string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return StatusPending, nil
	case "confirmed":
		return StatusConfirmed, nil
	case "completed":
		return StatusCompleted, nil
	case "cancelled", "canceled":
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("unknown status %q", s)
	}
}

// StatusFromCode maps the legacy integer encoding
// (0 pending, 1 confirmed, 2 completed, 3 cancelled).
func StatusFromCode(code int) (Status, error) {
	switch code {
	case 0:
		return StatusPending, nil
	case 1:
		return StatusConfirmed, nil
	case 2:
		return StatusCompleted, nil
	case 3:
		return StatusCancelled, nil
	default:
		return 0, fmt.Errorf("unknown status code %d", code)
	}
}

func (s Status) MarshalJSON() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot marshal invalid %s", s)
	}
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the canonical string form and the legacy integer code.
func (s *Status) UnmarshalJSON(b []byte) error {
	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		v, err := ParseStatus(str)
		if err != nil {
			return err
		}
		*s = v
		return nil
	}
	var code int
	if err := json.Unmarshal(b, &code); err != nil {
		return fmt.Errorf("status must be a string or integer code")
	}
	v, err := StatusFromCode(code)
	if err != nil {
		return err
	}
	*s = v
	return nil
}

func (s Status) Value() (driver.Value, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("cannot store invalid %s", s)
	}
	return s.String(), nil
}

func (s *Status) Scan(src any) error {
	switch v := src.(type) {
	case string:
		st, err := ParseStatus(v)
		if err != nil {
			return err
		}
		*s = st
	case []byte:
		return s.Scan(string(v))
	case int64:
		st, err := StatusFromCode(int(v))
		if err != nil {
			return err
		}
		*s = st
	default:
		return fmt.Errorf("cannot scan %T into Status", src)
	}
	return nil
}
