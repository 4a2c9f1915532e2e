package timex

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so JSON and YAML can carry either a string
// such as "720h" or an integer number of nanoseconds.
type Duration struct {
	time.Duration
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Duration) UnmarshalJSON(b []byte) error {
	var v any
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	switch value := v.(type) {
	case float64:
		d.Duration = time.Duration(value)
		return nil
	case string:
		var err error
		d.Duration, err = time.ParseDuration(value)
		return err
	default:
		return errors.New("invalid duration")
	}
}

func (d *Duration) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return errors.New("invalid duration")
	}
	if ns, err := strconv.ParseInt(n.Value, 10, 64); err == nil {
		d.Duration = time.Duration(ns)
		return nil
	}
	var err error
	d.Duration, err = time.ParseDuration(n.Value)
	return err
}
