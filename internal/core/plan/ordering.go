package plan

import (
	"sort"

	"github.com/bargehq/barge/internal/core/compose"
)

// =============================================================================
// Service Ordering Functions
// =============================================================================

// StartBatches groups services into waves that may start concurrently.
// A service lands in the first batch after all of its dependencies, using
// Kahn's algorithm over the depends_on edges:
//  1. Build a map of service dependencies (in-degree)
//  2. Batch 0 holds services with no dependencies (in-degree = 0)
//  3. Releasing a batch reduces the in-degree of its dependents
//  4. Dependents whose in-degree reaches 0 form the next batch
//
// Every edge imposes ordering here regardless of its condition; the
// condition decides what the runner waits for (started, healthy,
// completed), not whether it waits. Services within a batch are sorted by
// name for determinism.
//
// If a cycle exists (which should be caught at parse time), remaining
// services are appended as a final batch as a fallback.
//
// Example:
//
//	// backend depends on db and redis; pgadmin is independent
//	StartBatches(services)
//	// Result: [[db, pgadmin, redis], [backend]]
func StartBatches(services []compose.Service) [][]string {
	if len(services) == 0 {
		return nil
	}

	inDegree := make(map[string]int)
	dependents := make(map[string][]string)

	for _, svc := range services {
		inDegree[svc.Name] = len(svc.DependsOn)
		for _, dep := range svc.DependsOn {
			dependents[dep.Service] = append(dependents[dep.Service], svc.Name)
		}
	}

	var current []string
	for name, degree := range inDegree {
		if degree == 0 {
			current = append(current, name)
		}
	}
	sort.Strings(current)

	var batches [][]string
	placed := 0
	for len(current) > 0 {
		batches = append(batches, current)
		placed += len(current)

		var next []string
		for _, name := range current {
			for _, dep := range dependents[name] {
				inDegree[dep]--
				if inDegree[dep] == 0 {
					next = append(next, dep)
				}
			}
		}
		sort.Strings(next)
		current = next
	}

	// If we didn't place all services, there's a cycle (shouldn't happen
	// after parsing). Append the remainder as a fallback batch.
	if placed < len(services) {
		var rest []string
		for _, svc := range services {
			if inDegree[svc.Name] > 0 {
				rest = append(rest, svc.Name)
			}
		}
		sort.Strings(rest)
		batches = append(batches, rest)
	}

	return batches
}

// StopOrder returns service names in safe teardown order: dependents
// first, dependencies last. This is the reverse of the start batches,
// flattened.
//
// Example:
//
//	// backend depends on db and redis
//	StopOrder(services) // [backend, db, pgadmin, redis]
func StopOrder(services []compose.Service) []string {
	batches := StartBatches(services)

	var order []string
	for i := len(batches) - 1; i >= 0; i-- {
		order = append(order, batches[i]...)
	}
	return order
}

// TransitiveDependents returns every service that directly or indirectly
// depends on root, sorted by name. When a service fails its health gate,
// this is the set that never starts.
//
// Example:
//
//	// backend depends on db; worker depends on backend
//	TransitiveDependents(services, "db") // [backend, worker]
func TransitiveDependents(services []compose.Service, root string) []string {
	dependents := make(map[string][]string)
	for _, svc := range services {
		for _, dep := range svc.DependsOn {
			dependents[dep.Service] = append(dependents[dep.Service], svc.Name)
		}
	}

	seen := make(map[string]bool)
	queue := []string{root}
	for len(queue) > 0 {
		name := queue[0]
		queue = queue[1:]
		for _, dep := range dependents[name] {
			if !seen[dep] {
				seen[dep] = true
				queue = append(queue, dep)
			}
		}
	}

	result := make([]string, 0, len(seen))
	for name := range seen {
		result = append(result, name)
	}
	sort.Strings(result)
	return result
}
