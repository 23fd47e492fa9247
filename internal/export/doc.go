// Package export turns a saved inventory into a downloadable zip archive.
//
// The archive holds two comma-separated files built with Encode:
//
//	inventario_<inv_id>.csv   one line per row (left out when there are no rows)
//	metadatos_<inv_id>.csv    the inventory metadata
//
// and, when photographs exist, one file per image under images/, named
// <row_id>_<capture day>_<image id>.<extension>.
package export
