package ranking

import (
	"fmt"
	"regexp"
	"strings"
)

// legDistance matches the "(3,2 km)" suffix the backend appends to each leg.
var legDistance = regexp.MustCompile(`(?i)\(\s*([\d.,]+)\s*km\s*\)`)

// FormatDistanceLabel cleans the backend's distance label. Multi-leg labels
// such as "Bus(3,2km)+Tram (2 km)" become "Bus (3.2 km) + Tram (2 km)".
// Without a label, the total distance is rendered as "12.50 km".
func FormatDistanceLabel(label string, distanceKm *float64) string {
	label = strings.TrimSpace(label)
	if label == "" {
		if distanceKm == nil || !isUsable(*distanceKm) {
			return ""
		}
		return fmt.Sprintf("%.2f km", *distanceKm)
	}

	parts := strings.Split(label, "+")
	legs := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		m := legDistance.FindStringSubmatch(part)
		if m == nil {
			legs = append(legs, part)
			continue
		}
		mode := strings.TrimSpace(legDistance.ReplaceAllString(part, ""))
		dist := strings.ReplaceAll(m[1], ",", ".")
		if mode == "" {
			legs = append(legs, dist+" km")
			continue
		}
		legs = append(legs, fmt.Sprintf("%s (%s km)", mode, dist))
	}
	return strings.Join(legs, " + ")
}
