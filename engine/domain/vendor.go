package domain

import (
	"encoding/json"
	"math"
)

// MarshalJSON encodes an infinite distance (vendor without coordinates) as
// null; standard JSON has no Infinity literal.
func (v VendorRecord) MarshalJSON() ([]byte, error) {
	type plain VendorRecord
	aux := struct {
		plain
		Distance *float64 `json:"distance"`
	}{plain: plain(v)}
	if !math.IsInf(v.Distance, 0) {
		aux.Distance = &v.Distance
	}
	return json.Marshal(aux)
}
