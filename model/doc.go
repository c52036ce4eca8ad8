// Package model defines stable boundary types for API layers.
//
// Protocol identity (canonical record/candidate bytes and token names) is
// unaffected by any projection. These structs are the only types intended
// for direct JSON serialization by consumers.
package model
