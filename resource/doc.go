// Package resource provides handle bookkeeping on both sides of the host
// boundary.
//
// A Handle is a small unsigned integer naming a host-side resource: a header
// collection, an outgoing request, a response future, an incoming response or
// a byte stream. The guest never dereferences it; it only passes it back to
// host calls. Handle 0 is reserved and always invalid.
//
// # Guest Side: Ledger
//
// The Ledger records which handles the guest currently owns:
//
//	ledger := resource.NewLedger()
//	ledger.Track(resource.KindFields, h)   // host returned h
//	ledger.Consume(resource.KindFields, h) // h passed to an owning call
//	ledger.Live(resource.KindFields, h)    // false from now on
//
// Consume and Drop succeed at most once per Track, which is what turns a
// double use into an error instead of a host-side fault.
//
// # Host Side: Table
//
// Table allocates handle numbers for a host implementation and maps them to
// values, reusing freed slots:
//
//	table := resource.NewTable()
//	h := table.Insert(resource.KindInputStream, stream)
//	v, ok := table.GetTyped(h, resource.KindInputStream)
//	table.Remove(h) // calls Drop() if the value implements Dropper
//
// # Observers
//
// Both types notify observers on lifecycle transitions:
//
//	ledger.Subscribe(resource.ObserverFunc(func(e resource.Event) {
//	    log.Printf("%s %d %s", e.Kind, e.Handle, e.Type)
//	}))
package resource
