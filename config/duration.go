package config

import (
	"encoding/json"
	"fmt"
	"time"
)

// Duration JSON 中可写作 "3s" 字符串或纳秒整数的 time.Duration
//
//	{"timeout": "3s"}
//	{"timeout": 3000000000}
type Duration time.Duration

// UnmarshalJSON 先按字符串解析，再按整数纳秒解析
func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := time.ParseDuration(s)
		if err != nil {
			return fmt.Errorf("config: invalid duration %q: %w", s, err)
		}
		*d = Duration(v)
		return nil
	}

	var n int64
	if err := json.Unmarshal(data, &n); err == nil {
		*d = Duration(n)
		return nil
	}
	return fmt.Errorf("config: duration must be a string like \"3s\" or integer nanoseconds, got %s", data)
}

// MarshalJSON 输出字符串形式
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Duration 底层 time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

func (d Duration) String() string {
	return time.Duration(d).String()
}
