// Package registration makes sure a device is registered at most once per identity,
// however many parts of the app ask for it at the same time.
package registration

import (
	"context"
	"sync"

	"golang.org/x/sync/singleflight"

	cache "github.com/campusapp/schedule-cache"
)

// State of one identity's registration.
type State uint8

const (
	StateIdle State = iota
	StateInFlight
	StateDone
)

func (s State) String() string {
	switch s {
	case StateInFlight:
		return "in-flight"
	case StateDone:
		return "done"
	}
	return "idle"
}

// Status tells a caller of Acquire what happened.
type Status uint8

const (
	// StatusRegistered: this caller started the registration and it succeeded.
	StatusRegistered Status = iota + 1
	// StatusJoined: another caller's registration was in flight; this caller waited for it.
	StatusJoined
	// StatusAlreadyRegistered: the identity was registered earlier; nothing was sent.
	StatusAlreadyRegistered
)

// Outcome of Acquire.
type Outcome struct {
	Status Status
	Result Result
}

type lock struct {
	state  State
	result Result

	// dropped marks an in-flight call whose identity was reset. Its outcome is not
	// recorded unless someone asks for the identity again before it ends.
	dropped bool
}

/*
Guard deduplicates "register this device for this identity" calls.

	Idle     --Acquire-->        InFlight   (caller runs register)
	InFlight --Acquire-->        InFlight   (caller joins the pending call)
	InFlight --success-->        Done       (lastIdentity = identity)
	InFlight --failure-->        Idle       (next Acquire retries)
	Done     --Acquire-->        Done       (no-op while lastIdentity == identity)
	Done     --Reset-->          Idle
	InFlight --Reset-->          InFlight   (outcome dropped, Idle when the call ends)

The check-then-set happens under one mutex, before any I/O, so two callers racing
on the same identity can never both see Idle. The pending call itself is shared through
singleflight, which hands its result to every caller that joined it.

A Guard is meant to be created once and injected wherever registration can be
triggered.
*/
type Guard struct {
	mu           sync.Mutex
	locks        map[string]*lock
	lastIdentity string

	calls singleflight.Group
}

// NewGuard returns a Guard with every identity Idle.
func NewGuard() *Guard {
	return &Guard{locks: make(map[string]*lock)}
}

/*
Acquire runs register for identity unless a registration for it is already in flight
(then it waits for that one) or already done (then it returns immediately).

register runs on a context detached from ctx: a caller that stops waiting does not
cancel the registration, the next caller benefits from it. If ctx ends first Acquire
returns ctx.Err().

A failed registration returns its error to every waiter and puts the identity back to
Idle.
*/
func (g *Guard) Acquire(ctx context.Context, identity string, register func(ctx context.Context) (Result, error)) (Outcome, error) {
	g.mu.Lock()
	l := g.locks[identity]
	if l == nil {
		l = &lock{}
		g.locks[identity] = l
	}

	if l.state == StateDone && g.lastIdentity == identity {
		res := l.result
		g.mu.Unlock()
		return Outcome{Status: StatusAlreadyRegistered, Result: res}, nil
	}

	leader := l.state != StateInFlight
	if leader {
		l.state = StateInFlight
		l.result = Result{}
	}
	// Asking again for an identity reset mid-flight adopts the pending call.
	l.dropped = false

	// While l is InFlight its call is still registered in the group, so a joiner's
	// function is never run; only the leader's is.
	detached := context.WithoutCancel(ctx)
	ch := g.calls.DoChan(identity, func() (any, error) {
		res, err := register(detached)
		g.finish(identity, l, res, err)
		return res, err
	})
	g.mu.Unlock()

	select {
	case r := <-ch:
		if r.Err != nil {
			return Outcome{}, r.Err
		}
		status := StatusJoined
		if leader {
			status = StatusRegistered
		}
		return Outcome{Status: status, Result: r.Val.(Result)}, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// finish records the end of the call started for l. If l was reset meanwhile and
// nobody asked for it again, the outcome is dropped: the identity logged out while
// we were registering it.
func (g *Guard) finish(identity string, l *lock, res Result, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.locks[identity] != l {
		return
	}
	if err != nil || l.dropped {
		l.state = StateIdle
		l.result = Result{}
		l.dropped = false
	} else {
		l.state = StateDone
		l.result = res
		g.lastIdentity = identity
	}
	// The next Acquire must start a new call rather than join this finished one.
	g.calls.Forget(identity)
}

/*
Reset puts identity back to Idle, e.g. on logout.

A registration still in flight for it keeps the identity InFlight until it ends, so
an Acquire in the meantime joins it instead of sending a second request. Its outcome
is recorded only if such an Acquire happened; otherwise the identity ends up Idle.
*/
func (g *Guard) Reset(identity string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.reset(identity)
	if g.lastIdentity == identity {
		g.lastIdentity = ""
	}
}

// ResetAll resets every identity.
func (g *Guard) ResetAll() {
	g.mu.Lock()
	defer g.mu.Unlock()

	for identity := range g.locks {
		g.reset(identity)
	}
	g.lastIdentity = ""
}

// reset must be called with g.mu held.
func (g *Guard) reset(identity string) {
	l := g.locks[identity]
	if l == nil {
		return
	}
	if l.state == StateInFlight {
		l.dropped = true
		return
	}
	delete(g.locks, identity)
}

// State returns the current state of identity.
func (g *Guard) State(identity string) State {
	g.mu.Lock()
	defer g.mu.Unlock()

	if l := g.locks[identity]; l != nil {
		return l.state
	}
	return StateIdle
}

// Registered reports whether Acquire(identity) would be a no-op right now.
func (g *Guard) Registered(identity string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	l := g.locks[identity]
	return l != nil && l.state == StateDone && g.lastIdentity == identity
}

// LastIdentity is the identity of the last successful registration, "" if none.
func (g *Guard) LastIdentity() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.lastIdentity
}

func authRequired(identity string) error {
	return cache.NewError(cache.KindAuthRequired, "register", identity, nil)
}
