// Package backend classifies backend identifiers. The shape of the string is
// the only source of truth for which kind of backend an id refers to.
package backend

import (
	"fmt"
	"strconv"
	"strings"
)

// Kind is the closed set of backend kinds.
type Kind int

const (
	KindInvalid Kind = iota
	KindProvider
	KindManaged
	KindVendorAssistant
)

func (k Kind) String() string {
	switch k {
	case KindProvider:
		return "provider"
	case KindManaged:
		return "managed"
	case KindVendorAssistant:
		return "vendor_assistant"
	}
	return "invalid"
}

const (
	ProviderPrefix = "provider_"
	ManagedPrefix  = "managed_"
)

// Ref is a parsed backend id. Exactly one of the typed accessors matches Kind.
type Ref interface {
	Kind() Kind
	String() string
}

// ProviderRef names a raw translation provider, "provider_google".
type ProviderRef struct {
	ProviderID string
}

func (ProviderRef) Kind() Kind       { return KindProvider }
func (r ProviderRef) String() string { return ProviderPrefix + r.ProviderID }

// ManagedRef names a centrally stored assistant, "managed_12".
type ManagedRef struct {
	AssistantID int
}

func (ManagedRef) Kind() Kind       { return KindManaged }
func (r ManagedRef) String() string { return ManagedPrefix + strconv.Itoa(r.AssistantID) }

// VendorAssistantRef is any other id; the vendor is inferred later by the
// assistant client factory.
type VendorAssistantRef struct {
	AssistantID string
}

func (VendorAssistantRef) Kind() Kind       { return KindVendorAssistant }
func (r VendorAssistantRef) String() string { return r.AssistantID }

// Parse classifies id. It fails only for empty ids, a bare prefix, or a
// managed id whose suffix is not a positive integer.
func Parse(id string) (Ref, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("empty backend id")
	}

	switch {
	case strings.HasPrefix(id, ProviderPrefix):
		name := strings.TrimPrefix(id, ProviderPrefix)
		if name == "" {
			return nil, fmt.Errorf("backend id %q names no provider", id)
		}
		return ProviderRef{ProviderID: name}, nil

	case strings.HasPrefix(id, ManagedPrefix):
		raw := strings.TrimPrefix(id, ManagedPrefix)
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || strconv.Itoa(n) != raw {
			return nil, fmt.Errorf("backend id %q: managed assistant id must be a positive integer", id)
		}
		return ManagedRef{AssistantID: n}, nil
	}

	return VendorAssistantRef{AssistantID: id}, nil
}

// KindOf classifies id without returning the parsed ref.
func KindOf(id string) Kind {
	ref, err := Parse(id)
	if err != nil {
		return KindInvalid
	}
	return ref.Kind()
}

// Provider builds a provider backend id.
func Provider(name string) string {
	return ProviderPrefix + name
}

// Managed builds a managed assistant backend id.
func Managed(id int) string {
	return ManagedPrefix + strconv.Itoa(id)
}
