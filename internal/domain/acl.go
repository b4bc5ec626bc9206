package domain

// Authorized reports whether an application may read or act on a task.
//
// The original implementation synthesized and cached an access-control list
// on the task instance itself the first time it was asked (deny-all, then
// allow the owning application), convenient in a language with mutable
// per-request objects, but it made the task's authorization outcome depend
// on the order callers touched it. Authorized is a pure function instead:
// a task is visible to exactly the application that created it, computed
// fresh on every call and safe to call concurrently from many goroutines
// without any cache to keep coherent.
func Authorized(task Task, applicationID string) bool {
	return task.ApplicationID != "" && task.ApplicationID == applicationID
}
