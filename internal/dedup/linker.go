package dedup

import "os"

// OSLinker is the real-filesystem Linker.
type OSLinker struct{}

func (OSLinker) Link(oldname, newname string) error   { return os.Link(oldname, newname) }
func (OSLinker) Rename(oldname, newname string) error { return os.Rename(oldname, newname) }
func (OSLinker) Remove(name string) error             { return os.Remove(name) }
