// Package iface holds the switch's fixed set of numbered interfaces.
package iface

import (
	"errors"
	"fmt"

	"firestige.xyz/lswitch/internal/switching/frame"
)

var (
	ErrNoInterfaces     = errors.New("switch needs at least one interface")
	ErrInvalidInterface = errors.New("invalid interface")
)

// Interface is one switch port. IDs start at 1.
type Interface struct {
	ID     int
	Name   string
	MAC    frame.MAC
	HasMAC bool
}

// Registry is created once at startup; only MAC announcements mutate it.
type Registry struct {
	ifcs []Interface
}

// Configure creates count interfaces numbered 1..count without addresses.
func Configure(count int) (*Registry, error) {
	if count < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrNoInterfaces, count)
	}
	r := &Registry{ifcs: make([]Interface, count)}
	for i := range r.ifcs {
		r.ifcs[i].ID = i + 1
	}
	return r, nil
}

// ConfigureNamed is Configure with a display name per interface, in order.
func ConfigureNamed(names []string) (*Registry, error) {
	r, err := Configure(len(names))
	if err != nil {
		return nil, err
	}
	for i, name := range names {
		r.ifcs[i].Name = name
	}
	return r, nil
}

func (r *Registry) Count() int {
	return len(r.ifcs)
}

func (r *Registry) Valid(id int) bool {
	return id >= 1 && id <= len(r.ifcs)
}

func (r *Registry) check(id int) error {
	if !r.Valid(id) {
		return fmt.Errorf("%w: %d not in 1..%d", ErrInvalidInterface, id, len(r.ifcs))
	}
	return nil
}

// SetMAC records the interface's own hardware address.
func (r *Registry) SetMAC(id int, mac frame.MAC) error {
	if err := r.check(id); err != nil {
		return err
	}
	r.ifcs[id-1].MAC = mac
	r.ifcs[id-1].HasMAC = true
	return nil
}

func (r *Registry) Get(id int) (Interface, error) {
	if err := r.check(id); err != nil {
		return Interface{}, err
	}
	return r.ifcs[id-1], nil
}

// AllExcept returns every interface ID other than id in ascending order.
func (r *Registry) AllExcept(id int) []int {
	out := make([]int, 0, len(r.ifcs))
	for _, ifc := range r.ifcs {
		if ifc.ID != id {
			out = append(out, ifc.ID)
		}
	}
	return out
}

// Interfaces returns a copy of all interfaces ordered by ID.
func (r *Registry) Interfaces() []Interface {
	out := make([]Interface, len(r.ifcs))
	copy(out, r.ifcs)
	return out
}

func (i Interface) String() string {
	if i.Name != "" {
		return fmt.Sprintf("%d(%s)", i.ID, i.Name)
	}
	return fmt.Sprintf("%d", i.ID)
}
