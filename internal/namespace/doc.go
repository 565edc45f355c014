// Package namespace resolves namespace selectors to directories under the
// target root and prepares those directories for dispatch.
//
// Namespaces are plain directories, created lazily (directory plus a "{}"
// manifest) the first time they are dispatched to and never deleted here.
// The "all" selector is a snapshot taken at resolve time, not a live view.
package namespace
