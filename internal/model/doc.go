// Package model defines the persisted records of a forestry inventory.
//
// An Inventory owns its Rows and a Row owns its Images. Every field is
// always present in the JSON form; blanks are null. Records are checked
// against CUE definitions (schema.cue) with Validate before they are
// written.
package model
