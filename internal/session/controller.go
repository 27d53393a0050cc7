package session

import (
	"context"
	"sync"

	"bikestreets_backend/internal/events"
	"bikestreets_backend/internal/osrm"
	"bikestreets_backend/platform/apperr"
	"bikestreets_backend/platform/logger"
)

// RouteRequester fetches routes between two coordinates.
type RouteRequester interface {
	RequestRoute(ctx context.Context, origin, destination osrm.Coordinate, originName, destinationName string) (*osrm.RouteServiceResponse, error)
}

// Selection is what the user picked in search. A nil Place selects the
// user's current location.
type Selection struct {
	Place *NamedPlace
}

// PlaceSelection selects a named place.
func PlaceSelection(point osrm.Coordinate, name string) Selection {
	return Selection{Place: &NamedPlace{Point: point, PlaceName: name}}
}

// CurrentLocationSelection selects the user's current location.
func CurrentLocationSelection() Selection {
	return Selection{}
}

// Controller performs the side effects of transitions: it starts a route
// request whenever the session enters RequestingRoutes and turns the result
// into the next state. Every exported method may be called from any
// goroutine except the loop's.
type Controller struct {
	ctx       context.Context
	loop      *Loop
	machine   *Machine
	requester RouteRequester
	bus       events.Bus
	log       *logger.Logger

	// Owned by the loop.
	userLocation *osrm.Coordinate
	lastErr      error

	inflight sync.WaitGroup
}

// NewController wires a controller to machine. Call it before loop runs.
// ctx bounds every route request; bus may be nil.
func NewController(ctx context.Context, loop *Loop, machine *Machine, requester RouteRequester, bus events.Bus, log *logger.Logger) *Controller {
	c := &Controller{
		ctx:       ctx,
		loop:      loop,
		machine:   machine,
		requester: requester,
		bus:       bus,
		log:       log.WithComponent("session_controller"),
	}
	machine.Subscribe(c.onTransition)
	return c
}

// ResolveResponse maps a successful response to the next state: the first
// route selected in a preview, or Initial when there is no route.
func ResolveResponse(request RouteRequest, response *osrm.RouteServiceResponse) State {
	if response == nil || len(response.Routes) == 0 {
		return Initial{}
	}
	d, err := NewDirections(request, response, response.Routes[0])
	if err != nil {
		return Initial{}
	}
	return PreviewDirections{Directions: d}
}

// Wait blocks until no route request is in flight.
func (c *Controller) Wait() {
	c.inflight.Wait()
}

// State returns the current state.
func (c *Controller) State(ctx context.Context) (State, error) {
	var st State
	err := c.loop.Do(ctx, func() { st = c.machine.State() })
	return st, err
}

// Snapshot returns the current state in JSON-ready form, including the last
// route request failure.
func (c *Controller) Snapshot(ctx context.Context) (Snapshot, error) {
	var snap Snapshot
	err := c.loop.Do(ctx, func() { snap = c.snapshot(c.machine.State()) })
	return snap, err
}

// Subscribe registers l on the machine. l runs on the loop.
func (c *Controller) Subscribe(ctx context.Context, l Listener) (*Subscription, error) {
	var sub *Subscription
	err := c.loop.Do(ctx, func() { sub = c.machine.Subscribe(l) })
	return sub, err
}

// Unsubscribe cancels sub on the loop.
func (c *Controller) Unsubscribe(ctx context.Context, sub *Subscription) error {
	return c.loop.Do(ctx, sub.Unsubscribe)
}

// UpdateUserLocation records the latest user position used for
// current-location endpoints.
func (c *Controller) UpdateUserLocation(ctx context.Context, point osrm.Coordinate) error {
	return c.do(ctx, func() error {
		c.userLocation = &point
		return nil
	})
}

// SelectDestination starts a request to the chosen destination. The origin is
// the current location from Initial, otherwise the previous origin with a
// current-location origin refreshed to the latest position.
func (c *Controller) SelectDestination(ctx context.Context, sel Selection) error {
	return c.do(ctx, func() error {
		destination, err := c.resolve(sel)
		if err != nil {
			return err
		}

		var origin Location
		switch st := c.machine.State().(type) {
		case Initial:
			origin, err = c.currentLocation()
		case RequestingRoutes:
			origin, err = c.refresh(st.Request.Origin)
		case PreviewDirections:
			origin, err = c.refresh(st.Request.Origin)
		case UpdateDestination:
			origin, err = c.refresh(st.Request.Origin)
		default:
			return apperr.InvalidTransition(st.Kind().String(), KindRequestingRoutes.String()).WithOp("session.SelectDestination")
		}
		if err != nil {
			return err
		}
		return c.machine.Transition(RequestingRoutes{Request: NewRouteRequest(origin, destination)})
	})
}

// SelectOrigin starts a request from the chosen origin to the previous
// destination.
func (c *Controller) SelectOrigin(ctx context.Context, sel Selection) error {
	return c.do(ctx, func() error {
		origin, err := c.resolve(sel)
		if err != nil {
			return err
		}

		var destination Location
		switch st := c.machine.State().(type) {
		case RequestingRoutes:
			destination = st.Request.Destination
		case PreviewDirections:
			destination = st.Request.Destination
		case UpdateOrigin:
			destination = st.Request.Destination
		default:
			return apperr.InvalidTransition(st.Kind().String(), KindRequestingRoutes.String()).WithOp("session.SelectOrigin")
		}
		return c.machine.Transition(RequestingRoutes{Request: NewRouteRequest(origin, destination)})
	})
}

// BeginUpdateOrigin opens the origin search from the preview. It is a no-op
// when the search is already open.
func (c *Controller) BeginUpdateOrigin(ctx context.Context) error {
	return c.do(ctx, func() error {
		switch st := c.machine.State().(type) {
		case PreviewDirections:
			return c.machine.Transition(UpdateOrigin{Directions: st.Directions})
		case UpdateOrigin:
			return nil
		default:
			return apperr.InvalidTransition(st.Kind().String(), KindUpdateOrigin.String()).WithOp("session.BeginUpdateOrigin")
		}
	})
}

// BeginUpdateDestination opens the destination search from the preview. It
// is a no-op when the search is already open.
func (c *Controller) BeginUpdateDestination(ctx context.Context) error {
	return c.do(ctx, func() error {
		switch st := c.machine.State().(type) {
		case PreviewDirections:
			return c.machine.Transition(UpdateDestination{Directions: st.Directions})
		case UpdateDestination:
			return nil
		default:
			return apperr.InvalidTransition(st.Kind().String(), KindUpdateDestination.String()).WithOp("session.BeginUpdateDestination")
		}
	})
}

// CancelUpdate closes an open origin or destination search without a
// selection and returns to the preview it came from.
func (c *Controller) CancelUpdate(ctx context.Context) error {
	return c.do(ctx, func() error {
		switch st := c.machine.State().(type) {
		case UpdateOrigin:
			return c.machine.Transition(PreviewDirections{Directions: st.Directions})
		case UpdateDestination:
			return c.machine.Transition(PreviewDirections{Directions: st.Directions})
		default:
			return apperr.InvalidTransition(st.Kind().String(), KindPreviewDirections.String()).WithOp("session.CancelUpdate")
		}
	})
}

// SelectRoute switches the previewed route to the alternative at index.
func (c *Controller) SelectRoute(ctx context.Context, index int) error {
	return c.do(ctx, func() error {
		st, ok := c.machine.State().(PreviewDirections)
		if !ok {
			return apperr.InvalidTransition(c.machine.State().Kind().String(), KindPreviewDirections.String()).WithOp("session.SelectRoute")
		}
		d, err := st.WithSelected(index)
		if err != nil {
			return err
		}
		return c.machine.Transition(PreviewDirections{Directions: d})
	})
}

// StartRouting begins navigation along the selected route.
func (c *Controller) StartRouting(ctx context.Context) error {
	return c.do(ctx, func() error {
		st, ok := c.machine.State().(PreviewDirections)
		if !ok {
			return apperr.InvalidTransition(c.machine.State().Kind().String(), KindRouting.String()).WithOp("session.StartRouting")
		}
		return c.machine.Transition(Routing{Directions: st.Directions})
	})
}

// EndRouting stops navigation and returns to Initial.
func (c *Controller) EndRouting(ctx context.Context) error {
	return c.do(ctx, func() error {
		if _, ok := c.machine.State().(Routing); !ok {
			return apperr.InvalidTransition(c.machine.State().Kind().String(), KindInitial.String()).WithOp("session.EndRouting")
		}
		return c.machine.Transition(Initial{})
	})
}

// Reset abandons the session from any state and clears the last request
// failure. From Initial there is no transition; when an error was cleared the
// refreshed snapshot is published as an initial -> initial event at the
// current sequence.
func (c *Controller) Reset(ctx context.Context) error {
	return c.do(ctx, func() error {
		hadErr := c.lastErr != nil
		c.lastErr = nil
		if _, ok := c.machine.State().(Initial); ok {
			if hadErr {
				c.publishTransition(Initial{}, Initial{})
			}
			return nil
		}
		return c.machine.Transition(Initial{})
	})
}

func (c *Controller) do(ctx context.Context, fn func() error) error {
	var err error
	if doErr := c.loop.Do(ctx, func() { err = fn() }); doErr != nil {
		return doErr
	}
	return err
}

func (c *Controller) onTransition(old, next State) {
	st, entering := next.(RequestingRoutes)
	if prev, ok := old.(RequestingRoutes); ok && entering && prev.Request.ID == st.Request.ID {
		entering = false
	}
	if entering {
		c.lastErr = nil
	}

	c.publishTransition(old, next)

	if entering {
		c.startRequest(st.Request)
	}
}

func (c *Controller) publishTransition(old, next State) {
	if c.bus == nil {
		return
	}
	ev := events.SessionTransitioned{
		BaseEvent: events.NewBaseEvent(),
		Sequence:  c.machine.Sequence(),
		From:      old.Kind().String(),
		To:        next.Kind().String(),
		State:     c.snapshot(next),
	}
	if req, ok := RequestOf(next); ok {
		id := req.ID
		ev.RequestID = &id
	}
	c.bus.Publish(c.ctx, ev)
}

func (c *Controller) startRequest(req RouteRequest) {
	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		resp, err := c.requester.RequestRoute(
			c.ctx,
			req.Origin.Coordinate(),
			req.Destination.Coordinate(),
			req.Origin.Name(),
			req.Destination.Name(),
		)
		if !c.loop.Post(func() { c.complete(req, resp, err) }) {
			c.log.Debug("session loop stopped, dropping route response", "request_id", req.ID.String())
		}
	}()
}

// complete runs on the loop. Only the response to the request the session is
// still waiting for may change the state.
func (c *Controller) complete(req RouteRequest, resp *osrm.RouteServiceResponse, err error) {
	current, ok := c.machine.State().(RequestingRoutes)
	if !ok || current.Request.ID != req.ID {
		c.log.Info("discarding stale route response",
			"request_id", req.ID.String(),
			"state", c.machine.State().Kind().String(),
		)
		return
	}

	if err != nil {
		c.lastErr = err
		c.log.Warn("route request failed", "request_id", req.ID.String(), "error", err)
		if c.bus != nil {
			c.bus.Publish(c.ctx, events.RouteRequestFailed{
				BaseEvent:       events.NewBaseEvent(),
				RequestID:       req.ID,
				OriginName:      req.Origin.Name(),
				DestinationName: req.Destination.Name(),
				Reason:          err.Error(),
			})
		}
		c.transition(Initial{})
		return
	}

	c.transition(ResolveResponse(req, resp))
}

func (c *Controller) transition(next State) {
	if err := c.machine.Transition(next); err != nil {
		c.log.Error("unexpected session transition", "error", err)
	}
}

func (c *Controller) snapshot(s State) Snapshot {
	snap := NewSnapshot(s, c.machine.Sequence())
	if c.lastErr != nil {
		snap.LastError = c.lastErr.Error()
	}
	return snap
}

func (c *Controller) resolve(sel Selection) (Location, error) {
	if sel.Place != nil {
		return *sel.Place, nil
	}
	return c.currentLocation()
}

func (c *Controller) refresh(l Location) (Location, error) {
	if _, ok := l.(CurrentLocation); ok {
		return c.currentLocation()
	}
	return l, nil
}

func (c *Controller) currentLocation() (Location, error) {
	if c.userLocation == nil {
		return nil, apperr.Validation("current location is not known yet")
	}
	return CurrentLocation{Point: *c.userLocation}, nil
}
