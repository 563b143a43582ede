// Package fs is the narrow file system used by blobstore.LocalStore, with a
// fault-injecting wrapper for tests.
//
// Production code uses Default:
//
//	f, err := fs.Default.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
//
// Tests wrap it to make writes, syncs, closes or renames of matching paths fail:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule(".tmp", fs.Fault{FailOnSync: true})
//	store := blobstore.NewLocalStore(dir).WithFileSystem(ffs)
//
// Operations take no context. Local file calls are not interruptible, and
// LocalStore checks its context before each one.
package fs
