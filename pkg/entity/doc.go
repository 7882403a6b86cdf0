// Package entity holds the live view of a device's declared entities.
//
// A CONFIG declares descriptors; STATE deltas are folded into per-entity
// views according to the entity kind:
//
//	sensor         value passthrough
//	number         numeric value
//	switch         on/off
//	binary_sensor  on/off
//	select         current option from the option set
//	button         stateless
//
// Views are plain values. Registry owns the mutable set and is safe for
// concurrent use.
package entity
