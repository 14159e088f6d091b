package models

import (
	"encoding/json"
	"math"
	"strconv"
)

// PerGameStats is a single game's box score. Missing payload keys are zero.
type PerGameStats struct {
	Points  float64 `json:"points"`
	Ast     float64 `json:"ast"`
	Reb     float64 `json:"reb"`
	Stl     float64 `json:"stl"`
	Blk     float64 `json:"blk"`
	Tov     float64 `json:"tov"`
	Minutes float64 `json:"minutes"`
	Fgm     float64 `json:"fgm"`
	Fga     float64 `json:"fga"`
	Tpm     float64 `json:"tpm"`
	Tpa     float64 `json:"tpa"`
	Ftm     float64 `json:"ftm"`
	Fta     float64 `json:"fta"`
}

// StatKeys is the fixed set of numeric payload keys, in canonical order.
var StatKeys = []string{
	"points", "ast", "reb", "stl", "blk", "tov", "minutes",
	"fgm", "fga", "tpm", "tpa", "ftm", "fta",
}

// ExtractStats pulls the fixed stat keys out of an event payload.
// Upstream producers sometimes serialize numbers as quoted strings, so we
// coerce both forms; anything non-numeric counts as zero.
func ExtractStats(payload map[string]any) PerGameStats {
	get := func(key string) float64 {
		return CoerceNumber(payload[key])
	}
	return PerGameStats{
		Points:  get("points"),
		Ast:     get("ast"),
		Reb:     get("reb"),
		Stl:     get("stl"),
		Blk:     get("blk"),
		Tov:     get("tov"),
		Minutes: get("minutes"),
		Fgm:     get("fgm"),
		Fga:     get("fga"),
		Tpm:     get("tpm"),
		Tpa:     get("tpa"),
		Ftm:     get("ftm"),
		Fta:     get("fta"),
	}
}

// CoerceNumber converts a decoded JSON value to a finite float64, or zero.
func CoerceNumber(v any) float64 {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0
		}
		return n
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0
		}
		return f
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0
		}
		return f
	default:
		return 0
	}
}

// Map returns the stats as the per_game evaluation scope.
func (s PerGameStats) Map() map[string]any {
	return map[string]any{
		"points":  s.Points,
		"ast":     s.Ast,
		"reb":     s.Reb,
		"stl":     s.Stl,
		"blk":     s.Blk,
		"tov":     s.Tov,
		"minutes": s.Minutes,
		"fgm":     s.Fgm,
		"fga":     s.Fga,
		"tpm":     s.Tpm,
		"tpa":     s.Tpa,
		"ftm":     s.Ftm,
		"fta":     s.Fta,
	}
}

// DoubleDigitCount counts box-score categories at 10 or above. Two is a
// double-double, three a triple-double.
func (s PerGameStats) DoubleDigitCount() int {
	d := 0
	for _, v := range []float64{s.Points, s.Ast, s.Reb, s.Stl, s.Blk} {
		if v >= 10 {
			d++
		}
	}
	return d
}
