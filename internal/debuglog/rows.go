package debuglog

import (
	"fmt"
	"time"
)

// TitleLayout formats row titles: yyyy-MM-d HH:mm:ss.
const TitleLayout = "2006-01-2 15:04:05"

// Row is one route of one entry, as shown in the debug table.
type Row struct {
	Title      string    `json:"title"`
	Path       string    `json:"path"`
	Date       time.Time `json:"date"`
	RouteIndex int       `json:"routeIndex"`
	Distance   float64   `json:"distance"`
	Duration   float64   `json:"duration"`
	Polyline   string    `json:"polyline"`
}

// Rows flattens items into one row per route, newest entry first. Items are
// expected in List order.
func Rows(items []Item) []Row {
	rows := make([]Row, 0, len(items))
	for _, item := range items {
		for i, route := range item.Entry.Response.Routes {
			rows = append(rows, Row{
				Title:      fmt.Sprintf("%s - Route %d", item.Entry.Date.Format(TitleLayout), i+1),
				Path:       item.Path,
				Date:       item.Entry.Date,
				RouteIndex: i,
				Distance:   route.Distance,
				Duration:   route.Duration,
				Polyline:   route.Geometry.Polyline(),
			})
		}
	}
	return rows
}
