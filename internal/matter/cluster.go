package matter

import "fmt"

// Attribute flags
const (
	FlagWritable    uint8 = 0x01
	FlagNonvolatile uint8 = 0x02
	FlagReportable  uint8 = 0x04
)

// Bounds are the declared limits of a numeric attribute.
type Bounds struct {
	Min Value `json:"min"`
	Max Value `json:"max"`
}

// Contains reports whether v lies within the bounds. Non-numeric values are
// never constrained.
func (b *Bounds) Contains(v Value) bool {
	f, ok := v.Float64()
	if !ok {
		return true
	}
	if lo, ok := b.Min.Float64(); ok && f < lo {
		return false
	}
	if hi, ok := b.Max.Float64(); ok && f > hi {
		return false
	}
	return true
}

func (b *Bounds) String() string {
	return fmt.Sprintf("[%v, %v]", b.Min.Any(), b.Max.Any())
}

// AttributeDef defines a cluster attribute.
type AttributeDef struct {
	ID      uint32    `json:"id"`
	Name    string    `json:"name"`
	Type    ValueType `json:"type"`
	Flags   uint8     `json:"flags"`
	Feature uint32    `json:"feature,omitempty"` // feature bit that enables the attribute; 0 = always present
	Default Value     `json:"-"`
	Bounds  *Bounds   `json:"bounds,omitempty"`
}

// IsWritable returns true if the attribute accepts writes.
func (a *AttributeDef) IsWritable() bool {
	return a.Flags&FlagWritable != 0
}

// IsNonvolatile returns true if the attribute value survives a restart.
func (a *AttributeDef) IsNonvolatile() bool {
	return a.Flags&FlagNonvolatile != 0
}

// ClusterDef defines a cluster with its attributes.
type ClusterDef struct {
	ID         uint32         `json:"id"`
	Name       string         `json:"name"`
	Attributes []AttributeDef `json:"attributes,omitempty"`
}

// FindAttribute looks up an attribute by ID.
func (c *ClusterDef) FindAttribute(id uint32) *AttributeDef {
	for i := range c.Attributes {
		if c.Attributes[i].ID == id {
			return &c.Attributes[i]
		}
	}
	return nil
}

// DeepCopy returns a deep copy of the cluster definition.
func (c *ClusterDef) DeepCopy() *ClusterDef {
	cp := *c
	if c.Attributes != nil {
		cp.Attributes = make([]AttributeDef, len(c.Attributes))
		copy(cp.Attributes, c.Attributes)
		for i := range cp.Attributes {
			if b := cp.Attributes[i].Bounds; b != nil {
				bc := *b
				cp.Attributes[i].Bounds = &bc
			}
		}
	}
	return &cp
}

// Merge adds attributes from another definition that are not yet present.
func (c *ClusterDef) Merge(other *ClusterDef) {
	for _, attr := range other.Attributes {
		if c.FindAttribute(attr.ID) == nil {
			c.Attributes = append(c.Attributes, attr)
		}
	}
}

// ZeroValue returns the zero value of type t.
func ZeroValue(t ValueType) Value {
	if t == TypeInvalid {
		return Invalid()
	}
	return Value{Type: t}
}
