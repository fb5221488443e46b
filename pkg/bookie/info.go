package bookie

import "encoding/json"

// Info is the per-bookie metadata stored alongside a group. Only rack and
// hostname have names; anything else in the object is kept in Properties so
// it survives a decode untouched.
type Info struct {
	Rack       string
	Hostname   string
	Properties map[string]json.RawMessage
}

func (i Info) MarshalJSON() ([]byte, error) {
	out := make(map[string]json.RawMessage, len(i.Properties)+2)
	for k, v := range i.Properties {
		out[k] = v
	}
	if i.Rack != "" {
		b, _ := json.Marshal(i.Rack)
		out["rack"] = b
	}
	if i.Hostname != "" {
		b, _ := json.Marshal(i.Hostname)
		out["hostname"] = b
	}
	return json.Marshal(out)
}

func (i *Info) UnmarshalJSON(b []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var info Info
	for k, v := range raw {
		switch k {
		case "rack":
			if err := json.Unmarshal(v, &info.Rack); err != nil {
				return err
			}
		case "hostname":
			if err := json.Unmarshal(v, &info.Hostname); err != nil {
				return err
			}
		default:
			if info.Properties == nil {
				info.Properties = make(map[string]json.RawMessage)
			}
			info.Properties[k] = v
		}
	}
	*i = info
	return nil
}
