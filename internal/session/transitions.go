package session

// allowed lists the legal successors of each state kind.
var allowed = map[Kind][]Kind{
	KindInitial:           {KindRequestingRoutes},
	KindRequestingRoutes:  {KindRequestingRoutes, KindPreviewDirections, KindInitial},
	KindPreviewDirections: {KindPreviewDirections, KindRequestingRoutes, KindUpdateOrigin, KindUpdateDestination, KindRouting, KindInitial},
	KindUpdateOrigin:      {KindRequestingRoutes, KindPreviewDirections, KindInitial},
	KindUpdateDestination: {KindRequestingRoutes, KindPreviewDirections, KindInitial},
	KindRouting:           {KindInitial},
}

// CanTransition reports whether the table allows from -> to.
func CanTransition(from, to Kind) bool {
	for _, k := range allowed[from] {
		if k == to {
			return true
		}
	}
	return false
}
