// Package surrealrevision keeps the history of mutable records.
//
// Whenever a host application commits an update to a record, it hands the
// record's pre-update field values to a [Recorder], which appends them as a
// new revision document to a history collection. Every revision is tagged
// with the record's identity, its type name, the capture time and the acting
// user, and is never modified afterwards.
//
// # Wiring into an update pipeline
//
// The package does not hook into any ORM by itself. Instead the host calls a
// [Capturer] after each committed update. [Hook] is the Capturer most hosts
// want: it looks up the per-model [Config] in [Bindings], resolves the named
// connection from a [store.Registry] and delegates to a Recorder.
//
//	reg := store.NewRegistry()
//	reg.Register("surrealdb", surrealstore.New(db))
//
//	hook, err := surrealrevision.NewHook(reg, surrealrevision.NewBindings())
//	...
//	err = hook.AfterUpdate(ctx, surrealrevision.UpdateEvent{
//		Model:    "User",
//		OwnerID:  user.ID,
//		Previous: before,
//		User:     actingUserID,
//	})
//
// # Revision documents
//
// A revision is the pre-update snapshot, field for field, plus four fields
// whose names are configurable:
//
//   - ownerId: the identity of the record
//   - ownerModel: the type name of the record
//   - revisionDate: the capture time in UTC with millisecond precision, in the store's native datetime type
//   - revisionUser: the acting user, or null
//
// If the snapshot carries the field a store reserves for its own identities
// (id in SurrealDB), that field is dropped so the store can assign the
// revision an identity of its own.
//
// # Errors
//
// A [ConfigurationError] means the destination could not be resolved and
// nothing was written. A [StoreWriteError] means the insert itself failed.
// Neither is retried.
package surrealrevision
