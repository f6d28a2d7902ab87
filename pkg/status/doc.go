// Package status provides the live operational counters exposed by every
// pipeline stage instance.
//
// # Overview
//
// An Item is one typed value (Integer, Long or Text) with a display name and a
// clearable attribute. A Block groups the items declared by one stage instance
// under that stage's type and instance name. The Registry is the in-process
// list of all live blocks; taking a Snapshot of it yields frozen copies that
// are safe to hand to any number of observers.
//
// # Addressing
//
// Blocks are addressed as "{type}.{name}" (for example "path.vc42") and items
// as "{type}.{name}.{item}" (for example "path.vc42.Idle VCDUs"). Item names
// need not be unique within a block; duplicates are a display concern only.
//
// # Usage Example
//
//	idle := status.NewInteger("Idle VCDUs")
//	last := status.NewText("Last Spacecraft", status.NotClearable())
//	block := status.NewBlock("path", "vc42", idle, last)
//
//	reg := status.NewRegistry()
//	if err := reg.Register(block); err != nil {
//		log.Fatal(err)
//	}
//
//	idle.Inc()
//	blocks, _ := reg.Snapshot(ctx)
//	// blocks[0].Item("Idle VCDUs").Value() == "1"
//
// # Clearing
//
// Clear resets an item to its zero value ("0" or "") only when the item is
// clearable, which is the default. Non-clearable items hold identity-like
// values that operators must not be able to reset.
package status
