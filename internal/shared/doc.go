// Package shared is the in-memory shared data store the reducers mutate.
//
// A Doc holds named containers: insertion-ordered maps and arrays of plain
// value records. Each container name is claimed by exactly one owner through
// a Namespace; a second owner claiming the same name gets ErrContainerOwned.
//
// Values cross the container boundary by copy. Get hands out an independent
// copy, Set stores a copy, and Update performs the read-copy-modify-write
// under the container lock, so no caller ever holds a reference into stored
// state.
//
// Observers receive batches of Change records. Writes made inside
// Doc.Transact are delivered together when the outermost scope closes;
// writes outside a transaction are delivered immediately.
package shared
