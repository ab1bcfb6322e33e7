package world

import (
	"errors"
	"fmt"
	"sort"

	"gathersim/internal/protocol"
)

// ErrBadRequest marks malformed inventory calls (unknown resource type or a
// non-positive amount). Insufficient quantity is not an error; Remove reports
// it through its ok result.
var ErrBadRequest = errors.New("bad request")

// ResourceAmount is a transient (type, quantity) pair produced by a gather
// cycle. The zero value means "nothing gathered".
type ResourceAmount struct {
	Resource string
	Count    int
}

func (ra ResourceAmount) IsZero() bool { return ra.Count == 0 }

// Inventory maps resource-type ids to non-negative counts. An absent key
// reads as zero. Each inventory is owned by exactly one gatherer and is only
// mutated on the world goroutine, so listener dispatch is synchronous and
// unlocked.
type Inventory struct {
	counts map[string]int
	known  func(string) bool

	nextSub      int
	resourceSubs []resourceSub
	changedSubs  []changedSub
}

type resourceSub struct {
	id int
	fn func(resource string, count int)
}

type changedSub struct {
	id int
	fn func()
}

// NewInventory builds an empty inventory. known validates resource-type ids;
// a nil known accepts any non-empty id.
func NewInventory(known func(string) bool) *Inventory {
	return &Inventory{
		counts: map[string]int{},
		known:  known,
	}
}

func (inv *Inventory) validate(resource string, n int) error {
	if resource == "" {
		return fmt.Errorf("%w: empty resource", ErrBadRequest)
	}
	if inv.known != nil && !inv.known(resource) {
		return fmt.Errorf("%w: unknown resource %q", ErrBadRequest, resource)
	}
	if n <= 0 {
		return fmt.Errorf("%w: non-positive amount %d", ErrBadRequest, n)
	}
	return nil
}

// Add increments the stored count for resource, creating the entry if
// absent, and notifies subscribers before returning.
func (inv *Inventory) Add(resource string, n int) error {
	if err := inv.validate(resource, n); err != nil {
		return err
	}
	inv.counts[resource] += n
	inv.notify(resource)
	return nil
}

// Remove decrements the stored count for resource. It returns ok=false,
// without mutating or notifying, when the stored count is below n.
func (inv *Inventory) Remove(resource string, n int) (bool, error) {
	if err := inv.validate(resource, n); err != nil {
		return false, err
	}
	if inv.counts[resource] < n {
		return false, nil
	}
	inv.counts[resource] -= n
	inv.notify(resource)
	return true, nil
}

// Has reports whether at least n units of resource are stored. n == 0 is
// trivially true.
func (inv *Inventory) Has(resource string, n int) bool {
	return inv.counts[resource] >= n
}

// QuantityOf returns the stored count, zero for unknown types.
func (inv *Inventory) QuantityOf(resource string) int {
	return inv.counts[resource]
}

// List returns the non-empty stacks sorted by resource id.
func (inv *Inventory) List() []protocol.ResourceStack {
	out := make([]protocol.ResourceStack, 0, len(inv.counts))
	for res, c := range inv.counts {
		if c <= 0 {
			continue
		}
		out = append(out, protocol.ResourceStack{Resource: res, Count: c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Resource < out[j].Resource })
	return out
}

// SubscribeResourceChanged registers fn to run synchronously after every
// successful mutation, with the mutated resource and its new count.
func (inv *Inventory) SubscribeResourceChanged(fn func(resource string, count int)) int {
	inv.nextSub++
	inv.resourceSubs = append(inv.resourceSubs, resourceSub{id: inv.nextSub, fn: fn})
	return inv.nextSub
}

func (inv *Inventory) UnsubscribeResourceChanged(id int) {
	for i, s := range inv.resourceSubs {
		if s.id == id {
			inv.resourceSubs = append(inv.resourceSubs[:i], inv.resourceSubs[i+1:]...)
			return
		}
	}
}

// SubscribeChanged registers fn to run synchronously after every successful
// mutation, after the resource-changed listeners.
func (inv *Inventory) SubscribeChanged(fn func()) int {
	inv.nextSub++
	inv.changedSubs = append(inv.changedSubs, changedSub{id: inv.nextSub, fn: fn})
	return inv.nextSub
}

func (inv *Inventory) UnsubscribeChanged(id int) {
	for i, s := range inv.changedSubs {
		if s.id == id {
			inv.changedSubs = append(inv.changedSubs[:i], inv.changedSubs[i+1:]...)
			return
		}
	}
}

func (inv *Inventory) notify(resource string) {
	count := inv.counts[resource]
	for _, s := range append([]resourceSub(nil), inv.resourceSubs...) {
		s.fn(resource, count)
	}
	for _, s := range append([]changedSub(nil), inv.changedSubs...) {
		s.fn()
	}
}
