package config

import (
	"fmt"
	"reflect"
	"strconv"
	"time"

	"github.com/go-viper/mapstructure/v2"
)

// SecondsToDuration is a DecodeHookFunc that converts a whole-number string
// or number of seconds into a time.Duration. session.timeout_seconds is
// carried over the wire as plain seconds, not a Go duration literal.
func SecondsToDuration() mapstructure.DecodeHookFunc {
	return func(f, t reflect.Type, data interface{}) (interface{}, error) {
		if t != reflect.TypeOf(time.Duration(0)) {
			return data, nil
		}
		switch v := data.(type) {
		case string:
			n, err := strconv.ParseInt(v, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid seconds value %q: %w", v, err)
			}
			return time.Duration(n) * time.Second, nil
		case int, int64, float64:
			n, err := strconv.ParseInt(fmt.Sprintf("%v", v), 10, 64)
			if err != nil {
				return nil, fmt.Errorf("invalid seconds value %v: %w", v, err)
			}
			return time.Duration(n) * time.Second, nil
		default:
			return data, nil
		}
	}
}
