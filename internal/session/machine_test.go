package session

import (
	"fmt"
	"testing"

	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/platform/apperr"
	"bikestreets_backend/platform/logger"
)

type seen struct {
	who       string
	old, next Kind
}

func sampleDirections(t *testing.T) Directions {
	t.Helper()
	resp := &osrm.RouteServiceResponse{
		Code: "Ok",
		Routes: []osrm.Route{
			{Distance: 1200, Duration: 300, Geometry: osrm.LineString{{Latitude: 39.753, Longitude: -105.0413}}},
			{Distance: 1500, Duration: 360},
		},
	}
	req := NewRouteRequest(
		CurrentLocation{Point: osrm.Coordinate{Latitude: 39.7530, Longitude: -105.0413}},
		NamedPlace{Point: osrm.Coordinate{Latitude: 39.7550, Longitude: -105.0}, PlaceName: "Coffee Shop"},
	)
	d, err := NewDirections(req, resp, resp.Routes[0])
	if err != nil {
		t.Fatalf("NewDirections: %v", err)
	}
	return d
}

func TestSetStateFansOutInRegistrationOrder(t *testing.T) {
	m := NewMachine(logger.Discard())
	var got []seen
	for _, who := range []string{"camera", "sheet", "annotations"} {
		m.Subscribe(func(old, next State) {
			got = append(got, seen{who: who, old: old.Kind(), next: next.Kind()})
		})
	}

	d := sampleDirections(t)
	steps := []State{RequestingRoutes{Request: d.Request}, PreviewDirections{Directions: d}, Routing{Directions: d}}
	for _, st := range steps {
		m.SetState(st)
	}

	var want []seen
	prev := KindInitial
	for _, st := range steps {
		for _, who := range []string{"camera", "sheet", "annotations"} {
			want = append(want, seen{who: who, old: prev, next: st.Kind()})
		}
		prev = st.Kind()
	}

	if len(got) != len(want) {
		t.Fatalf("expected %d notifications, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("notification %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}
	if m.Sequence() != 3 {
		t.Errorf("expected sequence 3, got %d", m.Sequence())
	}
}

func TestSubscribeDoesNotReplay(t *testing.T) {
	m := NewMachine(logger.Discard())
	m.SetState(RequestingRoutes{})

	calls := 0
	m.Subscribe(func(State, State) { calls++ })
	if calls != 0 {
		t.Fatalf("subscribe replayed state")
	}
}

func TestUnsubscribedListenerIsSkippedThenPruned(t *testing.T) {
	m := NewMachine(logger.Discard())
	var kept, dropped int
	m.Subscribe(func(State, State) { kept++ })
	sub := m.Subscribe(func(State, State) { dropped++ })

	sub.Unsubscribe()
	if m.SubscriberCount() != 2 {
		t.Fatalf("expected lazy pruning, count=%d", m.SubscriberCount())
	}

	m.SetState(RequestingRoutes{})
	if dropped != 0 {
		t.Errorf("cancelled subscriber was notified")
	}
	if kept != 1 {
		t.Errorf("expected 1 notification, got %d", kept)
	}
	if m.SubscriberCount() != 1 {
		t.Errorf("expected cancelled subscriber to be pruned, count=%d", m.SubscriberCount())
	}
}

func TestUnsubscribeDuringRoundSkipsLaterListener(t *testing.T) {
	m := NewMachine(logger.Discard())
	var second *Subscription
	calls := 0
	m.Subscribe(func(State, State) { second.Unsubscribe() })
	second = m.Subscribe(func(State, State) { calls++ })

	m.SetState(RequestingRoutes{})
	if calls != 0 {
		t.Errorf("listener cancelled earlier in the round was still notified")
	}
	if m.SubscriberCount() != 1 {
		t.Errorf("expected 1 subscriber after prune, got %d", m.SubscriberCount())
	}
}

func TestReentrantSetStateRunsSecondRound(t *testing.T) {
	m := NewMachine(logger.Discard())
	var log []string
	m.Subscribe(func(old, next State) {
		log = append(log, fmt.Sprintf("a:%s->%s", old.Kind(), next.Kind()))
		if next.Kind() == KindRequestingRoutes {
			m.SetState(Initial{})
			if m.State().Kind() != KindRequestingRoutes {
				t.Errorf("re-entrant SetState must not apply mid-round")
			}
		}
	})
	m.Subscribe(func(old, next State) {
		log = append(log, fmt.Sprintf("b:%s->%s", old.Kind(), next.Kind()))
	})

	m.SetState(RequestingRoutes{})

	want := []string{
		"a:initial->requesting_routes",
		"b:initial->requesting_routes",
		"a:requesting_routes->initial",
		"b:requesting_routes->initial",
	}
	if fmt.Sprint(log) != fmt.Sprint(want) {
		t.Fatalf("expected %v, got %v", want, log)
	}
	if m.State().Kind() != KindInitial {
		t.Errorf("expected Initial after both rounds, got %s", m.State().Kind())
	}
	if m.Sequence() != 2 {
		t.Errorf("expected two transitions, got %d", m.Sequence())
	}
}

func TestSetStateIsPermissive(t *testing.T) {
	m := NewMachine(logger.Discard())
	m.SetState(Routing{Directions: sampleDirections(t)})
	if m.State().Kind() != KindRouting {
		t.Fatalf("SetState should bypass the transition table")
	}
}

func TestTransitionTable(t *testing.T) {
	d := sampleDirections(t)
	states := map[Kind]State{
		KindInitial:           Initial{},
		KindRequestingRoutes:  RequestingRoutes{Request: d.Request},
		KindPreviewDirections: PreviewDirections{Directions: d},
		KindUpdateOrigin:      UpdateOrigin{Directions: d},
		KindUpdateDestination: UpdateDestination{Directions: d},
		KindRouting:           Routing{Directions: d},
	}
	legal := map[[2]Kind]bool{
		{KindInitial, KindRequestingRoutes}:            true,
		{KindRequestingRoutes, KindRequestingRoutes}:   true,
		{KindRequestingRoutes, KindPreviewDirections}:  true,
		{KindRequestingRoutes, KindInitial}:            true,
		{KindPreviewDirections, KindPreviewDirections}: true,
		{KindPreviewDirections, KindRequestingRoutes}:  true,
		{KindPreviewDirections, KindUpdateOrigin}:      true,
		{KindPreviewDirections, KindUpdateDestination}: true,
		{KindPreviewDirections, KindRouting}:           true,
		{KindPreviewDirections, KindInitial}:           true,
		{KindUpdateOrigin, KindRequestingRoutes}:       true,
		{KindUpdateOrigin, KindPreviewDirections}:      true,
		{KindUpdateOrigin, KindInitial}:                true,
		{KindUpdateDestination, KindRequestingRoutes}:  true,
		{KindUpdateDestination, KindPreviewDirections}: true,
		{KindUpdateDestination, KindInitial}:           true,
		{KindRouting, KindInitial}:                     true,
	}

	for from, fromState := range states {
		for to, toState := range states {
			name := fmt.Sprintf("%s->%s", from, to)
			t.Run(name, func(t *testing.T) {
				m := NewMachine(logger.Discard())
				m.SetState(fromState)

				err := m.Transition(toState)
				if legal[[2]Kind{from, to}] {
					if err != nil {
						t.Fatalf("expected legal transition, got %v", err)
					}
					if m.State().Kind() != to {
						t.Fatalf("state not applied")
					}
					return
				}
				if !apperr.Is(err, apperr.KindInvalidTransition) {
					t.Fatalf("expected invalid transition error, got %v", err)
				}
				if m.State().Kind() != from {
					t.Fatalf("illegal transition changed state to %s", m.State().Kind())
				}
			})
		}
	}
}

func TestNewDirectionsRejectsForeignRoute(t *testing.T) {
	d := sampleDirections(t)
	if _, err := NewDirections(d.Request, d.Response, osrm.Route{Distance: 99}); err == nil {
		t.Fatal("expected error for a route outside the response")
	}
	if _, err := d.WithSelected(5); err == nil {
		t.Fatal("expected error for out of range index")
	}
	alt, err := d.WithSelected(1)
	if err != nil || alt.SelectedIndex() != 1 {
		t.Fatalf("expected alternative 1 selected, got %d (%v)", alt.SelectedIndex(), err)
	}
}

func TestLocationNames(t *testing.T) {
	if got := (CurrentLocation{}).Name(); got != "Current Location" {
		t.Errorf("unexpected current location name %q", got)
	}
	if got := (NamedPlace{PlaceName: "Coffee Shop"}).Name(); got != "Coffee Shop" {
		t.Errorf("unexpected place name %q", got)
	}
	if got := (NamedPlace{}).Name(); got != "No Name" {
		t.Errorf("unexpected fallback name %q", got)
	}
}
