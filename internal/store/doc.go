// Package store persists forestry inventories, their rows and their images
// in the embedded kv database.
//
// A Session owns the database handle for its lifetime together with the
// in-memory state a front end works on: the current inventory, its live
// rows and the selected rows.
//
// # Object Stores
//
//   - inv_metadata: one Inventory per inv_id
//   - rows: Rows keyed by surrogate id, indexed by inv_id, row_number and
//     natural_key (inv_id, row_number)
//   - images: Images keyed by capture id, indexed by inv_id and row_id
//
// # Write Path
//
// Inventories and images are upserted by primary key. Rows go through the
// reconciler: the natural key decides whether a candidate overwrites an
// existing record (keeping that record's surrogate id) or is added. Each
// candidate commits in its own transaction, so one failing row does not
// block its siblings.
//
// # Delete Path
//
// Deletes cascade children before parents: images, then the row; or images,
// metadata, then each row. Each step is its own transaction and the first
// failure stops the sequence with a *CascadeError. Committed steps are not
// rolled back, which can leave a parent with some children gone but never a
// child without its parent.
package store
