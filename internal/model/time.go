package model

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// LocalTime is a custom time type to format time as "YYYY-MM-DD HH:MM:SS".
type LocalTime time.Time

const timeFormat = "2006-01-02 15:04:05"

// MarshalJSON implements the json.Marshaler interface.
func (t LocalTime) MarshalJSON() ([]byte, error) {
	formatted := fmt.Sprintf("\"%s\"", time.Time(t).Format(timeFormat))
	return []byte(formatted), nil
}

// Value implements driver.Valuer so gorm can persist the column.
func (t LocalTime) Value() (driver.Value, error) {
	return time.Time(t), nil
}

// Scan implements sql.Scanner.
func (t *LocalTime) Scan(v interface{}) error {
	switch val := v.(type) {
	case time.Time:
		*t = LocalTime(val)
	case []byte:
		parsed, err := time.ParseInLocation(timeFormat, string(val), time.Local)
		if err != nil {
			return err
		}
		*t = LocalTime(parsed)
	case nil:
		*t = LocalTime(time.Time{})
	default:
		return fmt.Errorf("cannot scan %T into LocalTime", v)
	}
	return nil
}

func (t LocalTime) String() string {
	return time.Time(t).Format(timeFormat)
}
