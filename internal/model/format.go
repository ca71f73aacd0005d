package model

import (
	"fmt"
	"sort"
	"strings"
)

// FormatOrigin renders an origin for debug output. Arrivals are listed by
// increasing distance; picks are looked up in picks and arrivals whose pick
// is unknown are shown without station codes.
func FormatOrigin(o *Origin, picks map[string]Pick) string {
	var b strings.Builder
	fmt.Fprintf(&b, "public id  %s\n", o.ID)
	if o.CreationInfo.Author != "" {
		fmt.Fprintf(&b, "author     %s\n", o.CreationInfo.Author)
	}
	if o.MethodID != "" {
		fmt.Fprintf(&b, "method id  %s\n", o.MethodID)
	}
	fmt.Fprintf(&b, "time       %s\n", FormatTime(o.Time, 3))
	fmt.Fprintf(&b, "latitude   %s\n", LatString(o.Latitude.Value))
	fmt.Fprintf(&b, "longitude  %s\n", LonString(o.Longitude.Value))
	fmt.Fprintf(&b, "depth      %6.2f km\n", o.Depth.Value)
	b.WriteString("arrivals:")

	arrivals := make([]Arrival, len(o.Arrivals))
	copy(arrivals, o.Arrivals)
	sort.SliceStable(arrivals, func(i, j int) bool {
		return arrivals[i].Distance < arrivals[j].Distance
	})

	for _, arr := range arrivals {
		pick, ok := picks[arr.PickID]
		if !ok {
			fmt.Fprintf(&b, "\n%-2s %6.3f %3.0f  %-20s  %6.2f", arr.Phase, arr.Distance, arr.Azimuth, arr.PickID, arr.TimeResidual)
			continue
		}
		loc := pick.Stream.Location
		if loc == "" {
			loc = "--"
		}
		fmt.Fprintf(&b, "\n%-2s %6.3f %3.0f  %-2s %-5s %-2s  %s  %6.2f",
			arr.Phase, arr.Distance, arr.Azimuth,
			pick.Stream.Network, pick.Stream.Station, loc,
			FormatTime(pick.Time, 3), arr.TimeResidual)
	}
	return b.String()
}
