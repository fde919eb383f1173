// Package ipc exposes daemon control over a Unix domain socket using
// JSON-RPC. The CLI uses it for operations that must reach the running
// process, most importantly stopping a task whose subprocesses only the
// daemon can kill.
package ipc
