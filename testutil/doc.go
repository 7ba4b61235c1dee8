// Package testutil provides testing utilities for Oak.
//
// This package is intended for use in tests and benchmarks only.
// It provides a seeded thread-safe random source, a canonical Person test
// entity with its binary codec, and helpers for seeding an in-memory
// engine with deterministic datasets.
//
// # Random Data Generation
//
//	rng := testutil.NewRNG(seed)
//	p := rng.Person(id)        // one deterministic random person
//	ps := rng.People(100)      // ids 1..100
//
// # Seeding a Backend
//
//	eng := memengine.New()
//	testutil.RegisterPerson(eng)
//	testutil.SeedPeople(t, eng, rng.People(100))
package testutil
