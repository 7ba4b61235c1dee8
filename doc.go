// Package oak is the query layer of an embedded object database client.
//
// Callers build typed, composable filter conditions over entity properties,
// compile them into a native query through the storage engine's
// query-construction protocol, and execute or stream the results.
//
// # Quick start
//
//	store, _ := oak.NewStore(backend, txns)
//	defer store.Close()
//
//	box := query.NewBox[Person](store, personEntity, personCodec)
//
//	q, _ := box.Query(query.All(
//	    ageProp.GreaterThan(21),
//	    nameProp.StartsWith("A"),
//	))
//	defer q.Close()
//
//	people, _ := q.Find(ctx)
//
// # Streaming
//
// Results can also be delivered asynchronously, either through an in-process
// channel or through an isolated worker that shares the compiled query and a
// read transaction snapshot:
//
//	st, _ := q.Stream(ctx)
//	for r := range st.Results() {
//	    ...
//	}
//
// One stream's failure never affects sibling streams, and cancellation at
// any point releases the underlying native resources exactly once.
package oak
