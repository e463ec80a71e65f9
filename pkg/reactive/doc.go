// Package reactive provides the small reactive runtime statesync hooks run on.
//
// A component instance is an *Owner. A render is one call of the component
// function between StartRender and EndRender (or inside Owner.Render). Hooks
// keep per-instance state in the owner's hook slots, so they must be called
// in the same order on every render, and they release timers and
// subscriptions when the owner is disposed.
//
// # Core Types
//
// Signal[T] is a goroutine-safe reactive value container:
//
//	count := NewSignal(0)
//	value := count.Get()
//	count.Set(5)          // notifies subscribers if the value changed
//	count.Update(func(n int) int { return n + 1 })
//
// UseEffect runs a side effect when its dependency list changes:
//
//	reactive.UseEffect(o, func() reactive.Cleanup {
//	    task := reactive.Interval(time.Second, tick)
//	    return task.Stop
//	}, key)
//
// UseAsyncEffect runs a function on its own goroutine under the same rule;
// its errors and panics are logged instead of propagated.
//
// # Thread Safety
//
// Signals and owners can be used from multiple goroutines. Rendering an
// owner (and therefore calling hooks) must happen on one goroutine at a time.
package reactive
