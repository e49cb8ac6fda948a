package osc

import "sort"

// Role is a sound role a player can take.
type Role string

// Player roles.
const (
	RoleVent     Role = "vent"
	RoleEau      Role = "eau"
	RoleForet    Role = "foret"
	RoleFeu      Role = "feu"
	RoleOiseaux  Role = "oiseaux"
	RoleTonnerre Role = "tonnerre"
)

// RoleInfo describes a role for display.
type RoleInfo struct {
	Role        Role   `json:"role"`
	Description string `json:"description"`
	Icon        string `json:"icon"`
}

// Roles lists every role in display order.
var Roles = []RoleInfo{
	{RoleVent, "Souffle granulaire, CC10/74", "🌀"},
	{RoleEau, "Flux liquide, CC21/22", "💧"},
	{RoleForet, "Ambiance forêt, CC33/34", "🌲"},
	{RoleFeu, "Craquements, CC45/46", "🔥"},
	{RoleOiseaux, "Trilles et chants, CC57/58", "🐦"},
	{RoleTonnerre, "Impacts graves, CC69/70", "⚡"},
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	for _, info := range Roles {
		if info.Role == r {
			return true
		}
	}
	return false
}

// Gyro is a device orientation reading.
type Gyro struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// Control is one named value to send for a player.
type Control struct {
	Key   string
	Value float64
}

// MapRole returns the controls a player with role sends, in key order.
// Continuous roles send a volume taken from intensity; percussive roles
// (eau, oiseaux) send tap as 1 or 0 instead. Unknown roles map to nothing.
func MapRole(role Role, gyro Gyro, intensity float64, tap bool) []Control {
	var m map[string]float64
	switch role {
	case RoleVent:
		m = map[string]float64{"cc10": gyro.X, "cc74": gyro.Y, "volume": intensity}
	case RoleEau:
		m = map[string]float64{"cc21": gyro.Y, "cc22": gyro.X, "tap": boolValue(tap)}
	case RoleForet:
		m = map[string]float64{"cc33": gyro.Z, "cc34": gyro.X, "volume": intensity}
	case RoleFeu:
		m = map[string]float64{"cc45": gyro.X, "cc46": gyro.Y, "volume": intensity}
	case RoleOiseaux:
		m = map[string]float64{"cc57": gyro.Y, "cc58": gyro.Z, "tap": boolValue(tap)}
	case RoleTonnerre:
		m = map[string]float64{"cc69": gyro.Z, "cc70": gyro.Y, "volume": intensity}
	default:
		return nil
	}

	out := make([]Control, 0, len(m))
	for k, v := range m {
		out = append(out, Control{Key: k, Value: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}
