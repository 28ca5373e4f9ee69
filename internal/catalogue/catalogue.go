package catalogue

import (
	"fmt"
	"sync"

	"github.com/nymea-go/thingd/pkg/corerr"
	"github.com/nymea-go/thingd/pkg/ids"
)

// Catalogue holds the immutable set of Vendors and ThingClasses parsed from
// loaded plugin metadata. It is read-mostly: writes only happen when a
// plugin is (re)loaded or unloaded, and reads never block on each other.
type Catalogue struct {
	mu          sync.RWMutex
	vendors     map[ids.VendorID]Vendor
	thingClasses map[ids.ThingClassID]*ThingClass
}

// New returns an empty Catalogue.
func New() *Catalogue {
	return &Catalogue{
		vendors:      make(map[ids.VendorID]Vendor),
		thingClasses: make(map[ids.ThingClassID]*ThingClass),
	}
}

// RegisterVendor adds or replaces a Vendor descriptor.
func (c *Catalogue) RegisterVendor(v Vendor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.vendors[v.ID] = v
}

// RegisterThingClass validates and adds a ThingClass to the catalogue. It
// rejects the schema invariants named in spec.md §4.1 before the class
// becomes visible to lookups.
func (c *Catalogue) RegisterThingClass(tc *ThingClass) error {
	if err := ValidateThingClass(tc); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.thingClasses[tc.ID] = tc
	return nil
}

// UnregisterPlugin removes every ThingClass owned by the given plugin, used
// when a plugin is unloaded from the Plugin Host.
func (c *Catalogue) UnregisterPlugin(pluginID ids.PluginID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, tc := range c.thingClasses {
		if tc.PluginID == pluginID {
			delete(c.thingClasses, id)
		}
	}
}

// ThingClass looks up a ThingClass by id.
func (c *Catalogue) ThingClass(id ids.ThingClassID) (*ThingClass, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	tc, ok := c.thingClasses[id]
	if !ok {
		return nil, fmt.Errorf("%w: thing class %s", corerr.ErrNotFound, id)
	}
	return tc, nil
}

// ThingClassByName finds a ThingClass by its (plugin-unique) name.
func (c *Catalogue) ThingClassByName(name string) (*ThingClass, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, tc := range c.thingClasses {
		if tc.Name == name {
			return tc, nil
		}
	}
	return nil, fmt.Errorf("%w: thing class %q", corerr.ErrNotFound, name)
}

// ThingClassesByVendor returns every ThingClass published by a vendor.
func (c *Catalogue) ThingClassesByVendor(vendorID ids.VendorID) []*ThingClass {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*ThingClass
	for _, tc := range c.thingClasses {
		if tc.VendorID == vendorID {
			out = append(out, tc)
		}
	}
	return out
}

// ThingClassesByInterface returns every ThingClass implementing the named
// interface — the lookup the Rule Engine uses to quantify over
// interface-addressed EventDescriptor/StateDescriptor/RuleAction targets.
func (c *Catalogue) ThingClassesByInterface(name string) []*ThingClass {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []*ThingClass
	for _, tc := range c.thingClasses {
		if tc.ImplementsInterface(name) {
			out = append(out, tc)
		}
	}
	return out
}

// Vendor looks up a Vendor by id.
func (c *Catalogue) Vendor(id ids.VendorID) (Vendor, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vendors[id]
	if !ok {
		return Vendor{}, fmt.Errorf("%w: vendor %s", corerr.ErrNotFound, id)
	}
	return v, nil
}

// Vendors returns every registered vendor.
func (c *Catalogue) Vendors() []Vendor {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Vendor, 0, len(c.vendors))
	for _, v := range c.vendors {
		out = append(out, v)
	}
	return out
}
