package permission

import (
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/ethereum/go-ethereum/common"
)

var (
	// ErrNotPermitted indicates the caller is outside the permitted set.
	ErrNotPermitted = errors.New("not a permitted address")

	// ErrUnauthorized indicates the caller is not the admin.
	ErrUnauthorized = errors.New("caller is not the admin")
)

// Registry holds the admin and the closed set of permitted addresses. It is
// immutable once built and therefore safe for concurrent use.
type Registry struct {
	admin     common.Address
	permitted map[common.Address]struct{}
}

// NewRegistry builds a registry. The admin is always a member regardless of the
// list contents; duplicates and the zero address are ignored.
func NewRegistry(admin common.Address, permitted []common.Address) *Registry {
	set := make(map[common.Address]struct{}, len(permitted)+1)
	set[admin] = struct{}{}
	for _, addr := range permitted {
		if addr == (common.Address{}) {
			continue
		}
		set[addr] = struct{}{}
	}
	return &Registry{admin: admin, permitted: set}
}

// Admin returns the registry admin.
func (r *Registry) Admin() common.Address {
	return r.admin
}

// IsAdmin reports whether addr is the admin.
func (r *Registry) IsAdmin(addr common.Address) bool {
	return addr == r.admin
}

// IsPermitted reports whether addr belongs to the permitted set.
func (r *Registry) IsPermitted(addr common.Address) bool {
	_, ok := r.permitted[addr]
	return ok
}

// Members returns the permitted set ordered by address bytes.
func (r *Registry) Members() []common.Address {
	out := make([]common.Address, 0, len(r.permitted))
	for addr := range r.permitted {
		out = append(out, addr)
	}
	sort.Slice(out, func(i, j int) bool {
		return bytes.Compare(out[i].Bytes(), out[j].Bytes()) < 0
	})
	return out
}

// CheckPermitted returns ErrNotPermitted when addr is not a member.
func (r *Registry) CheckPermitted(addr common.Address) error {
	if !r.IsPermitted(addr) {
		return fmt.Errorf("%s: %w", addr.Hex(), ErrNotPermitted)
	}
	return nil
}

// CheckAdmin returns ErrUnauthorized when addr is not the admin.
func (r *Registry) CheckAdmin(addr common.Address) error {
	if !r.IsAdmin(addr) {
		return fmt.Errorf("%s: %w", addr.Hex(), ErrUnauthorized)
	}
	return nil
}
